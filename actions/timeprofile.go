package actions

import (
	"context"
	"fmt"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/progress"
	"github.com/hb9tf/rfiflag/tf"
)

type ProfileMode string

const (
	ProfileStore ProfileMode = "store"
	ProfileApply ProfileMode = "apply"
)

// TimeProfile stores the mean of every time step over the unflagged
// contaminated samples, or subtracts a stored profile from every channel.
// Profiles live on the set and never outlive one baseline.
type TimeProfile struct {
	Mode ProfileMode `yaml:"mode"`
}

func (t *TimeProfile) Description() string {
	return fmt.Sprintf("Time profile (%s)", t.Mode)
}

func (t *TimeProfile) Kind() action.Kind {
	return action.KindTimeProfile
}

func (t *TimeProfile) Perform(ctx context.Context, set *artifacts.Set, listener progress.Listener) error {
	cont := set.Contaminated
	switch t.Mode {
	case ProfileStore:
		set.TimeProfile = meanProfile(cont)
	case ProfileApply:
		if len(set.TimeProfile) != cont.Width() {
			return configErrorf(t.Description(), "stored profile has %d steps, data has %d", len(set.TimeProfile), cont.Width())
		}
		for _, im := range cont.Images {
			for y := 0; y < im.Height; y++ {
				row := im.Row(y)
				for x := range row {
					row[x] -= set.TimeProfile[x]
				}
			}
		}
	default:
		return configErrorf(t.Description(), "unknown mode %q", t.Mode)
	}
	return nil
}

func meanProfile(b *tf.Buffer) []float64 {
	sum := make([]float64, b.Width())
	count := make([]int, b.Width())
	for i, im := range b.Images {
		mask := b.MaskFor(i)
		for y := 0; y < im.Height; y++ {
			for x, v := range im.Row(y) {
				if mask.At(x, y) || !tf.Finite(v) {
					continue
				}
				sum[x] += v
				count[x]++
			}
		}
	}
	for x := range sum {
		if count[x] > 0 {
			sum[x] /= float64(count[x])
		}
	}
	return sum
}
