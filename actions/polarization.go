package actions

import (
	"context"
	"fmt"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/progress"
	"github.com/hb9tf/rfiflag/tf"
)

// ForEachPolarization runs its children once per polarization on a
// single-polarization view and writes the revised and contaminated results
// back. A shared mask collects the flags of all polarizations.
type ForEachPolarization struct {
	action.Block `yaml:"-"`
}

func (f *ForEachPolarization) Description() string {
	return "For each polarization"
}

func (f *ForEachPolarization) Kind() action.Kind {
	return action.KindForEachPolarization
}

func (f *ForEachPolarization) Perform(ctx context.Context, set *artifacts.Set, listener progress.Listener) error {
	if err := set.Validate(); err != nil {
		return configErrorf(f.Description(), "%v", err)
	}
	n := set.Contaminated.Polarizations
	if n == 1 {
		return f.PerformChildren(ctx, set, listener)
	}
	for p := 0; p < n; p++ {
		pol := set.WithBuffers(
			set.Original.Polarization(p),
			isolate(set.Revised.Polarization(p)),
			isolate(set.Contaminated.Polarization(p)),
		)
		listener.OnStartTask(p, n, fmt.Sprintf("Polarization %d", p), 1)
		err := f.PerformChildren(ctx, pol, listener)
		listener.OnEndTask()
		if err != nil {
			return fmt.Errorf("polarization %d: %w", p, err)
		}
		if err := set.Revised.SetPolarization(p, pol.Revised); err != nil {
			return configErrorf(f.Description(), "%v", err)
		}
		if err := set.Contaminated.SetPolarization(p, pol.Contaminated); err != nil {
			return configErrorf(f.Description(), "%v", err)
		}
	}
	return nil
}

// isolate gives a polarization view its own mask so that in-place edits do not
// leak into a mask shared with other polarizations before write back.
func isolate(b *tf.Buffer) *tf.Buffer {
	b.Masks = b.CloneMasks()
	return b
}
