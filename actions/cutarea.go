package actions

import (
	"context"
	"fmt"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/progress"
	"github.com/hb9tf/rfiflag/tf"
)

// CutArea removes a border from the set, runs its children on the inner
// region and pastes the resulting masks back. The border keeps its flags.
type CutArea struct {
	action.Block `yaml:"-"`

	StartTimeSteps int `yaml:"start-time-steps"`
	EndTimeSteps   int `yaml:"end-time-steps"`
	LowChannels    int `yaml:"low-channels"`
	HighChannels   int `yaml:"high-channels"`
	// RestoreRevised pastes the revised images back as well and recomputes the
	// contaminated images inside the region.
	RestoreRevised bool `yaml:"restore-revised"`
}

func (c *CutArea) Description() string {
	return fmt.Sprintf("Cut area (time %d/%d, channels %d/%d)", c.StartTimeSteps, c.EndTimeSteps, c.LowChannels, c.HighChannels)
}

func (c *CutArea) Kind() action.Kind {
	return action.KindCutArea
}

func (c *CutArea) Perform(ctx context.Context, set *artifacts.Set, listener progress.Listener) error {
	if err := set.Validate(); err != nil {
		return configErrorf(c.Description(), "%v", err)
	}
	if c.StartTimeSteps < 0 || c.EndTimeSteps < 0 || c.LowChannels < 0 || c.HighChannels < 0 {
		return configErrorf(c.Description(), "negative border")
	}
	x0, y0 := c.StartTimeSteps, c.LowChannels
	w := set.Width() - c.StartTimeSteps - c.EndTimeSteps
	h := set.Height() - c.LowChannels - c.HighChannels
	if w < 1 || h < 1 {
		return configErrorf(c.Description(), "nothing left of a %dx%d set", set.Width(), set.Height())
	}

	var trimmed [3]*tf.Buffer
	for i, b := range []*tf.Buffer{set.Original, set.Revised, set.Contaminated} {
		t, err := tf.TrimBuffer(b, x0, y0, w, h)
		if err != nil {
			return configErrorf(c.Description(), "%v", err)
		}
		trimmed[i] = t
	}
	inner := set.WithBuffers(trimmed[0], trimmed[1], trimmed[2])
	inner.TimeProfile = nil

	if err := c.PerformChildren(ctx, inner, listener); err != nil {
		return err
	}

	cont := set.Contaminated
	masks := inner.Contaminated.Masks
	if len(masks) != len(cont.Masks) {
		if len(masks) != 1 {
			return configErrorf(c.Description(), "children produced %d masks for %d", len(masks), len(cont.Masks))
		}
		// The children equalized the masks; do the same outside.
		cont.Masks = []*tf.Mask{cont.JoinedMask()}
	}
	for i, m := range cont.Masks {
		tf.PasteMask(m, masks[i], x0, y0)
	}

	if c.RestoreRevised {
		if len(inner.Revised.Images) != len(set.Revised.Images) {
			return configErrorf(c.Description(), "children changed the image count")
		}
		for i, im := range inner.Revised.Images {
			tf.PasteImage(set.Revised.Images[i], im, x0, y0)
			diff, err := inner.Original.Images[i].Subtract(im)
			if err != nil {
				return err
			}
			tf.PasteImage(cont.Images[i], diff, x0, y0)
		}
	}
	return nil
}
