package actions

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/progress"
	"github.com/hb9tf/rfiflag/tf"
)

// ChangeResolution averages the set down by an integer factor per axis, runs
// its children on the reduced copy and maps the selected results back to the
// full resolution. Results that are not selected keep their values from before
// the action.
type ChangeResolution struct {
	action.Block `yaml:"-"`

	TimeDecreaseFactor      int `yaml:"time-decrease-factor"`
	FrequencyDecreaseFactor int `yaml:"frequency-decrease-factor"`
	// UseMaskInAveraging excludes samples flagged in the contaminated mask from
	// the averages.
	UseMaskInAveraging bool `yaml:"use-mask-in-averaging"`

	// RestoreRevised enlarges the reduced revised images and recomputes the
	// contaminated images as original - revised.
	RestoreRevised bool `yaml:"restore-revised"`
	// RestoreContaminated enlarges the reduced contaminated images. It wins over
	// the difference computed for RestoreRevised.
	RestoreContaminated bool `yaml:"restore-contaminated"`
	// RestoreMasks replaces the contaminated masks with the enlarged reduced
	// masks.
	RestoreMasks bool `yaml:"restore-masks"`
}

func NewChangeResolution(timeFactor, frequencyFactor int) *ChangeResolution {
	return &ChangeResolution{
		TimeDecreaseFactor:      timeFactor,
		FrequencyDecreaseFactor: frequencyFactor,
		UseMaskInAveraging:      true,
		RestoreRevised:          true,
		RestoreMasks:            true,
	}
}

func (c *ChangeResolution) Description() string {
	return fmt.Sprintf("Change resolution (%dx%d)", c.TimeDecreaseFactor, c.FrequencyDecreaseFactor)
}

func (c *ChangeResolution) Kind() action.Kind {
	return action.KindChangeResolution
}

func (c *ChangeResolution) Perform(ctx context.Context, set *artifacts.Set, listener progress.Listener) error {
	fx, fy := c.TimeDecreaseFactor, c.FrequencyDecreaseFactor
	if fx < 1 || fy < 1 {
		return configErrorf(c.Description(), "decrease factors must be at least 1")
	}
	if err := set.Validate(); err != nil {
		return configErrorf(c.Description(), "%v", err)
	}
	if fx == 1 && fy == 1 {
		return c.PerformChildren(ctx, set, listener)
	}

	var flags *tf.Buffer
	if c.UseMaskInAveraging {
		flags = set.Contaminated
	}
	reduced := set.WithBuffers(
		tf.ShrinkBuffer(set.Original, flags, fx, fy),
		tf.ShrinkBuffer(set.Revised, flags, fx, fy),
		tf.ShrinkBuffer(set.Contaminated, flags, fx, fy),
	)
	reduced.TimeProfile = nil
	glog.V(3).Infof("%s: baseline %s reduced to %dx%d", c.Description(), set.Baseline, reduced.Width(), reduced.Height())

	if err := c.PerformChildren(ctx, reduced, listener); err != nil {
		return err
	}
	return c.restore(set, reduced)
}

func (c *ChangeResolution) enlarge(images []*tf.Image, width, height int) []*tf.Image {
	out := make([]*tf.Image, len(images))
	for i, im := range images {
		out[i] = tf.EnlargeImage(im, c.TimeDecreaseFactor, c.FrequencyDecreaseFactor, width, height)
	}
	return out
}

// restore applies the selected results of reduced to set. Both axes are
// treated alike.
func (c *ChangeResolution) restore(set, reduced *artifacts.Set) error {
	w, h := set.Width(), set.Height()
	n := len(set.Original.Images)
	if c.RestoreRevised || c.RestoreContaminated {
		if len(reduced.Revised.Images) != n || len(reduced.Contaminated.Images) != n {
			return configErrorf(c.Description(), "children changed the image count from %d", n)
		}
	}
	if c.RestoreRevised {
		set.Revised.Images = c.enlarge(reduced.Revised.Images, w, h)
		if !c.RestoreContaminated {
			diff, err := difference(set.Original, set.Revised)
			if err != nil {
				return err
			}
			set.Contaminated.Images = diff
		}
	}
	if c.RestoreContaminated {
		set.Contaminated.Images = c.enlarge(reduced.Contaminated.Images, w, h)
	}
	if c.RestoreMasks {
		masks := make([]*tf.Mask, len(reduced.Contaminated.Masks))
		for i, m := range reduced.Contaminated.Masks {
			masks[i] = tf.EnlargeMask(m, c.TimeDecreaseFactor, c.FrequencyDecreaseFactor, w, h)
		}
		if err := set.Contaminated.SetMasks(masks); err != nil {
			return fmt.Errorf("unable to restore masks: %w", err)
		}
	}
	return nil
}
