package actions

import (
	"context"
	"fmt"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/progress"
	"github.com/hb9tf/rfiflag/tf"
)

type FlaggingMode string

const (
	FlagNone               FlaggingMode = "none"
	FlagEverything         FlaggingMode = "everything"
	FlagFromOriginal       FlaggingMode = "from-original"
	FlagToOriginal         FlaggingMode = "to-original"
	FlagInvert             FlaggingMode = "invert"
	FlagOrOriginal         FlaggingMode = "or-original"
	FlagPolarizationsEqual FlaggingMode = "polarizations-equal"
	FlagNonFinite          FlaggingMode = "flag-nonfinite"
)

// SetFlagging rewrites the contaminated masks wholesale. to-original is the
// only operation that writes the original buffer.
type SetFlagging struct {
	Mode FlaggingMode `yaml:"mode"`
}

func (s *SetFlagging) Description() string {
	return fmt.Sprintf("Set flagging (%s)", s.Mode)
}

func (s *SetFlagging) Kind() action.Kind {
	return action.KindSetFlagging
}

func (s *SetFlagging) Perform(ctx context.Context, set *artifacts.Set, listener progress.Listener) error {
	cont := set.Contaminated
	switch s.Mode {
	case FlagNone, FlagEverything:
		for _, m := range cont.Masks {
			m.SetAll(s.Mode == FlagEverything)
		}
	case FlagFromOriginal:
		return s.wrap(cont.SetMasks(set.Original.Masks))
	case FlagToOriginal:
		return s.wrap(set.Original.SetMasks(cont.Masks))
	case FlagInvert:
		for _, m := range cont.Masks {
			m.Invert()
		}
	case FlagOrOriginal:
		return s.wrap(orMasks(cont.Masks, set.Original.Masks))
	case FlagPolarizationsEqual:
		cont.Masks = []*tf.Mask{cont.JoinedMask()}
	case FlagNonFinite:
		for i, im := range cont.Images {
			mask := cont.MaskFor(i)
			for j, v := range im.Data {
				if !tf.Finite(v) {
					mask.Data[j] = true
				}
			}
		}
	default:
		return configErrorf(s.Description(), "unknown mode %q", s.Mode)
	}
	return nil
}

func (s *SetFlagging) wrap(err error) error {
	if err != nil {
		return configErrorf(s.Description(), "%v", err)
	}
	return nil
}
