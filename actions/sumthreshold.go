package actions

import (
	"context"

	"github.com/golang/glog"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/flagger"
	"github.com/hb9tf/rfiflag/progress"
	"github.com/hb9tf/rfiflag/tf"
)

// SumThreshold runs the multi-scale SumThreshold detector on every
// contaminated image and ORs the detections into the contaminated masks.
type SumThreshold struct {
	// BaseSensitivity multiplies the set's sensitivity.
	BaseSensitivity float64 `yaml:"base-sensitivity"`
	// BaseThreshold is threshold(1) of the Rayleigh schedule.
	BaseThreshold float64 `yaml:"base-threshold"`
	// Lengths are the window lengths, ascending. Empty means flagger.DefaultLengths.
	Lengths            []int `yaml:"lengths,omitempty"`
	TimeDirection      bool  `yaml:"time-direction"`
	FrequencyDirection bool  `yaml:"frequency-direction"`
	// ScaleByStdDev measures samples relative to the winsorized mean of the
	// unflagged samples of each image and multiplies thresholds by their
	// winsorized standard deviation. When that is zero the plain moments are
	// used; an image whose unflagged samples are all equal is skipped.
	ScaleByStdDev bool `yaml:"scale-by-stddev"`
}

func NewSumThreshold() *SumThreshold {
	return &SumThreshold{
		BaseSensitivity:    1,
		BaseThreshold:      flagger.DefaultBaseThreshold,
		TimeDirection:      true,
		FrequencyDirection: true,
		ScaleByStdDev:      true,
	}
}

func (s *SumThreshold) Description() string {
	return "SumThreshold"
}

func (s *SumThreshold) Kind() action.Kind {
	return action.KindSumThreshold
}

func (s *SumThreshold) lengths() []int {
	if len(s.Lengths) == 0 {
		return flagger.DefaultLengths
	}
	return s.Lengths
}

func (s *SumThreshold) validate(set *artifacts.Set) error {
	if s.BaseThreshold <= 0 {
		return configErrorf(s.Description(), "base threshold must be positive, got %g", s.BaseThreshold)
	}
	if s.BaseSensitivity <= 0 || set.Sensitivity <= 0 {
		return configErrorf(s.Description(), "sensitivity must be positive, got %g x %g", s.BaseSensitivity, set.Sensitivity)
	}
	if !s.TimeDirection && !s.FrequencyDirection {
		return configErrorf(s.Description(), "no direction enabled")
	}
	prev := 0
	for _, l := range s.lengths() {
		if l <= prev {
			return configErrorf(s.Description(), "window lengths must be positive and ascending, got %v", s.lengths())
		}
		prev = l
	}
	return nil
}

func (s *SumThreshold) Perform(ctx context.Context, set *artifacts.Set, listener progress.Listener) error {
	if err := s.validate(set); err != nil {
		return err
	}
	cont := set.Contaminated
	cfg := flagger.SumThresholdConfig{
		Thresholds: flagger.RayleighThresholds(s.BaseThreshold, s.lengths()),
		Horizontal: s.TimeDirection,
		Vertical:   s.FrequencyDirection,
	}
	// Every image starts from the flags present before this action.
	detected := cont.CloneMasks()
	for i, im := range cont.Images {
		mask := cont.MaskFor(i).Clone()
		cfg.Scale = set.Sensitivity * s.BaseSensitivity
		if s.ScaleByStdDev {
			mean, std := flagger.WinsorizedMeanAndStdDev(im, mask)
			if std == 0 {
				// Mostly constant data; isolated outliers are clipped away
				// by the winsorized moments.
				mean, std = flagger.MeanAndStdDev(im, mask)
			}
			if std == 0 {
				glog.V(2).Infof("%s: image %d of baseline %s is flat, skipping", s.Description(), i, set.Baseline)
				continue
			}
			cfg.Scale *= std
			im = centered(im, mean)
		}
		added := flagger.SumThreshold(im, mask, cfg)
		glog.V(3).Infof("%s: image %d of baseline %s: %d samples flagged", s.Description(), i, set.Baseline, added)
		if err := detected[cont.MaskIndex(i)].Or(mask); err != nil {
			return err
		}
		listener.OnProgress(i+1, len(cont.Images))
	}
	cont.Masks = detected
	return nil
}

func centered(im *tf.Image, mean float64) *tf.Image {
	out := im.Clone()
	for i := range out.Data {
		out.Data[i] -= mean
	}
	return out
}
