package actions

import (
	"context"
	"fmt"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/progress"
	"github.com/hb9tf/rfiflag/tf"
)

type ImageMode string

const (
	ImageZeroRevised                ImageMode = "zero-revised"
	ImageOriginalToContaminated     ImageMode = "original-to-contaminated"
	ImageRevisedToContaminated      ImageMode = "revised-to-contaminated"
	ImageContaminatedFromDifference ImageMode = "contaminated-from-difference"
	ImageSwapRevisedContaminated    ImageMode = "swap-revised-contaminated"
)

// SetImage replaces images of the revised or contaminated buffer. Masks are
// never touched.
type SetImage struct {
	Mode ImageMode `yaml:"mode"`
}

func (s *SetImage) Description() string {
	return fmt.Sprintf("Set image (%s)", s.Mode)
}

func (s *SetImage) Kind() action.Kind {
	return action.KindSetImage
}

func (s *SetImage) Perform(ctx context.Context, set *artifacts.Set, listener progress.Listener) error {
	if err := set.Validate(); err != nil {
		return configErrorf(s.Description(), "%v", err)
	}
	switch s.Mode {
	case ImageZeroRevised:
		for _, im := range set.Revised.Images {
			im.Fill(0)
		}
	case ImageOriginalToContaminated:
		return s.copyImages(set.Contaminated, set.Original)
	case ImageRevisedToContaminated:
		return s.copyImages(set.Contaminated, set.Revised)
	case ImageContaminatedFromDifference:
		diff, err := difference(set.Original, set.Revised)
		if err != nil {
			return configErrorf(s.Description(), "%v", err)
		}
		set.Contaminated.Images = diff
	case ImageSwapRevisedContaminated:
		if len(set.Revised.Images) != len(set.Contaminated.Images) {
			return configErrorf(s.Description(), "image counts differ")
		}
		set.Revised.Images, set.Contaminated.Images = set.Contaminated.Images, set.Revised.Images
	default:
		return configErrorf(s.Description(), "unknown mode %q", s.Mode)
	}
	return nil
}

func (s *SetImage) copyImages(dst, src *tf.Buffer) error {
	if len(dst.Images) != len(src.Images) {
		return configErrorf(s.Description(), "%d images vs %d", len(dst.Images), len(src.Images))
	}
	for i, im := range src.Images {
		dst.Images[i] = im.Clone()
	}
	return nil
}
