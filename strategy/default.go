// Package strategy assembles action trees: the built-in default strategy and
// trees loaded from YAML documents.
package strategy

import (
	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/actions"
	"github.com/hb9tf/rfiflag/flagger"
	"github.com/hb9tf/rfiflag/pipeline"
)

const (
	defaultIterations       = 2
	defaultSensitivityStart = 4
	defaultTimeReduction    = 3
	defaultFitHalfTime      = 10
	defaultFitHalfFrequency = 3
	defaultEta              = 0.2
)

// fitBackground estimates the smooth background at reduced time resolution and
// leaves the residuals in the contaminated images. Masks are not restored, so
// flags keep their full resolution.
func fitBackground() *actions.ChangeResolution {
	fit := actions.NewSlidingWindowFit()
	fit.Method = flagger.FitMedian
	fit.HalfWindowTime = defaultFitHalfTime
	fit.HalfWindowFrequency = defaultFitHalfFrequency

	cr := actions.NewChangeResolution(defaultTimeReduction, 1)
	cr.RestoreMasks = false
	cr.Add(fit)
	return cr
}

// Default returns the per-baseline strategy used when none is configured:
// per polarization, the amplitude is alternately fitted and thresholded with
// a decreasing sensitivity, then the polarizations are merged and the flags
// smoothed statistically.
func Default() *action.Sequence {
	iteration := actions.NewIterationBlock(defaultIterations, defaultSensitivityStart)
	iteration.Add(fitBackground())
	iteration.Add(actions.NewSumThreshold())

	amplitude := actions.NewForEachComplexComponent(actions.ComponentAmplitude)
	amplitude.Add(iteration)
	amplitude.Add(fitBackground())
	amplitude.Add(actions.NewSumThreshold())

	perPolarization := &actions.ForEachPolarization{}
	perPolarization.Add(amplitude)

	stat := actions.NewStatisticalFlag()
	stat.TimeEta = defaultEta
	stat.FrequencyEta = defaultEta

	return action.NewSequence("Default strategy",
		&actions.SetFlagging{Mode: actions.FlagNonFinite},
		perPolarization,
		&actions.SetFlagging{Mode: actions.FlagPolarizationsEqual},
		stat,
	)
}

// FindPipeline returns the first ForEachBaseline of the tree.
func FindPipeline(root action.Action) (*pipeline.ForEachBaseline, bool) {
	var found *pipeline.ForEachBaseline
	action.Walk(root, func(p action.Path, a action.Action) error {
		if f, ok := a.(*pipeline.ForEachBaseline); ok {
			found = f
			return action.ErrStop
		}
		return nil
	})
	return found, found != nil
}

// Wrap returns the tree to run and the pipeline inside it that needs a
// source and a sink. A tree without a pipeline is placed under a new
// ForEachBaseline over all baselines.
func Wrap(root action.Action) (action.Action, *pipeline.ForEachBaseline) {
	if f, ok := FindPipeline(root); ok {
		return root, f
	}
	f := &pipeline.ForEachBaseline{Selection: pipeline.SelectAll}
	f.Add(root)
	return f, f
}
