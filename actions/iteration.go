package actions

import (
	"context"
	"fmt"
	"math"

	"github.com/golang/glog"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/progress"
)

// IterationBlock repeats its children IterationCount times. Iteration i of N
// runs at sensitivity s*step^(N-i) with step = SensitivityStart^(1/N), so the
// first pass is the most permissive and the last runs at the caller's
// sensitivity s. The caller's sensitivity is restored on every exit path.
type IterationBlock struct {
	action.Block `yaml:"-"`

	IterationCount   int     `yaml:"iteration-count"`
	SensitivityStart float64 `yaml:"sensitivity-start"`
}

func NewIterationBlock(count int, start float64) *IterationBlock {
	return &IterationBlock{IterationCount: count, SensitivityStart: start}
}

func (b *IterationBlock) Description() string {
	return fmt.Sprintf("Iterate %d times", b.IterationCount)
}

func (b *IterationBlock) Kind() action.Kind {
	return action.KindIterationBlock
}

func (b *IterationBlock) Perform(ctx context.Context, set *artifacts.Set, listener progress.Listener) error {
	n := b.IterationCount
	if n < 1 {
		return configErrorf(b.Description(), "iteration count must be at least 1")
	}
	if b.SensitivityStart <= 0 {
		return configErrorf(b.Description(), "start sensitivity must be positive, got %g", b.SensitivityStart)
	}
	guard := set.GuardSensitivity()
	defer guard.Restore()

	step := math.Pow(b.SensitivityStart, 1/float64(n))
	for i := 1; i <= n; i++ {
		set.Sensitivity = guard.Saved() * math.Pow(step, float64(n-i))
		glog.V(3).Infof("%s: baseline %s iteration %d at sensitivity %g", b.Description(), set.Baseline, i, set.Sensitivity)
		listener.OnStartTask(i-1, n, fmt.Sprintf("Iteration %d", i), 1)
		err := b.PerformChildren(ctx, set, listener)
		listener.OnEndTask()
		if err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
	}
	return nil
}
