package actions

import (
	"context"

	"github.com/golang/glog"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/flagger"
	"github.com/hb9tf/rfiflag/progress"
)

// StatisticalFlag smooths the single contaminated mask: flagged regions are
// dilated, then every line is passed through the run acceptance test and the
// optional scale-invariant dilation, first along time and then along
// frequency.
//
// Runs are stretches of samples that are finite in every contaminated image.
type StatisticalFlag struct {
	EnlargeTimeSize      int `yaml:"enlarge-time-size"`
	EnlargeFrequencySize int `yaml:"enlarge-frequency-size"`

	// Runs whose flagged fraction is below the minimum good ratio are cleared.
	MinimumGoodTimeRatio      float64 `yaml:"minimum-good-time-ratio"`
	MinimumGoodFrequencyRatio float64 `yaml:"minimum-good-frequency-ratio"`
	// Runs whose flagged fraction is above the max contaminated ratio are
	// flagged completely; 0 disables the rejection.
	MaxContaminatedTimesRatio       float64 `yaml:"max-contaminated-times-ratio"`
	MaxContaminatedFrequenciesRatio float64 `yaml:"max-contaminated-frequencies-ratio"`

	// Eta of the scale-invariant dilation per axis, 0 disables it.
	TimeEta      float64 `yaml:"time-eta"`
	FrequencyEta float64 `yaml:"frequency-eta"`
}

func NewStatisticalFlag() *StatisticalFlag {
	return &StatisticalFlag{
		MaxContaminatedTimesRatio:       0.5,
		MaxContaminatedFrequenciesRatio: 0.5,
	}
}

func (s *StatisticalFlag) Description() string {
	return "Statistical flagging"
}

func (s *StatisticalFlag) Kind() action.Kind {
	return action.KindStatisticalFlag
}

func (s *StatisticalFlag) Perform(ctx context.Context, set *artifacts.Set, listener progress.Listener) error {
	cont := set.Contaminated
	if len(cont.Masks) != 1 {
		return configErrorf(s.Description(), "requires a single mask, got %d; equalize polarizations first", len(cont.Masks))
	}
	if s.EnlargeTimeSize < 0 || s.EnlargeFrequencySize < 0 {
		return configErrorf(s.Description(), "negative dilation %dx%d", s.EnlargeTimeSize, s.EnlargeFrequencySize)
	}
	mask := cont.Masks[0]
	before := mask.Count()

	flagger.Dilate(mask, s.EnlargeTimeSize, s.EnlargeFrequencySize)

	valid := flagger.FiniteMask(cont.Images)
	flagger.ApplyTime(mask, valid, func(flags, valid []bool) {
		flagger.AcceptReject(flags, valid, s.MinimumGoodTimeRatio, rejectRatio(s.MaxContaminatedTimesRatio))
		flagger.ScaleInvariantDilation(flags, s.TimeEta)
	})
	flagger.ApplyFrequency(mask, valid, func(flags, valid []bool) {
		flagger.AcceptReject(flags, valid, s.MinimumGoodFrequencyRatio, rejectRatio(s.MaxContaminatedFrequenciesRatio))
		flagger.ScaleInvariantDilation(flags, s.FrequencyEta)
	})

	glog.V(3).Infof("%s: baseline %s: %d -> %d flagged", s.Description(), set.Baseline, before, mask.Count())
	return nil
}

// rejectRatio maps the unset value to "never reject".
func rejectRatio(r float64) float64 {
	if r <= 0 {
		return 1
	}
	return r
}
