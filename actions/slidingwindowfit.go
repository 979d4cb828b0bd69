package actions

import (
	"context"
	"fmt"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/flagger"
	"github.com/hb9tf/rfiflag/progress"
)

// SlidingWindowFit estimates the smooth background of the original data from
// the samples the contaminated mask leaves usable. The estimate becomes the
// revised images and the contaminated images become original - revised.
type SlidingWindowFit struct {
	Method              flagger.FitMethod `yaml:"method"`
	HalfWindowTime      int               `yaml:"half-window-time"`
	HalfWindowFrequency int               `yaml:"half-window-frequency"`
	// Gaussian kernel widths; 0 picks half the window.
	SigmaTime      float64 `yaml:"sigma-time,omitempty"`
	SigmaFrequency float64 `yaml:"sigma-frequency,omitempty"`
}

func NewSlidingWindowFit() *SlidingWindowFit {
	return &SlidingWindowFit{
		Method:              flagger.FitMean,
		HalfWindowTime:      20,
		HalfWindowFrequency: 7,
	}
}

func (s *SlidingWindowFit) Description() string {
	return fmt.Sprintf("Sliding window fit (%s)", s.method())
}

func (s *SlidingWindowFit) Kind() action.Kind {
	return action.KindSlidingWindowFit
}

func (s *SlidingWindowFit) method() flagger.FitMethod {
	if s.Method == "" {
		return flagger.FitMean
	}
	return s.Method
}

func (s *SlidingWindowFit) Perform(ctx context.Context, set *artifacts.Set, listener progress.Listener) error {
	if err := set.Validate(); err != nil {
		return configErrorf(s.Description(), "%v", err)
	}
	fit := flagger.WindowFit{
		Method:     s.method(),
		HalfWidth:  s.HalfWindowTime,
		HalfHeight: s.HalfWindowFrequency,
		SigmaX:     s.SigmaTime,
		SigmaY:     s.SigmaFrequency,
	}
	if len(set.Revised.Images) != len(set.Original.Images) || len(set.Contaminated.Images) != len(set.Original.Images) {
		return configErrorf(s.Description(), "image counts differ: %d original, %d revised, %d contaminated",
			len(set.Original.Images), len(set.Revised.Images), len(set.Contaminated.Images))
	}
	for i, im := range set.Original.Images {
		background, err := fit.Fit(im, set.Contaminated.MaskFor(i))
		if err != nil {
			return configErrorf(s.Description(), "%v", err)
		}
		residual, err := im.Subtract(background)
		if err != nil {
			return err
		}
		set.Revised.Images[i] = background
		set.Contaminated.Images[i] = residual
		listener.OnProgress(i+1, len(set.Original.Images))
	}
	return nil
}
