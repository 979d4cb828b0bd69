package actions

import (
	"context"
	"fmt"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/progress"
)

// CombineFlagResults runs every child on its own copy of the revised and
// contaminated buffers, all starting from the same state, and ORs the
// resulting contaminated masks into the set. Images are left as they were.
type CombineFlagResults struct {
	action.Block `yaml:"-"`
}

func (c *CombineFlagResults) Description() string {
	return "Combine flag results"
}

func (c *CombineFlagResults) Kind() action.Kind {
	return action.KindCombineFlagResults
}

func (c *CombineFlagResults) Perform(ctx context.Context, set *artifacts.Set, listener progress.Listener) error {
	children := c.Children()
	if len(children) == 1 {
		return c.PerformChildren(ctx, set, listener)
	}
	combined := set.Contaminated.CloneMasks()
	for i, child := range children {
		branch := set.WithBuffers(set.Original, set.Revised.Clone(), set.Contaminated.Clone())
		if set.TimeProfile != nil {
			branch.TimeProfile = append([]float64(nil), set.TimeProfile...)
		}
		listener.OnStartTask(i, len(children), child.Description(), 1)
		err := child.Perform(ctx, branch, listener)
		listener.OnEndTask()
		if err != nil {
			return fmt.Errorf("%s: %w", child.Description(), err)
		}
		if err := orMasks(combined, branch.Contaminated.Masks); err != nil {
			return configErrorf(c.Description(), "%v", err)
		}
	}
	set.Contaminated.Masks = combined
	return nil
}
