package pipeline

import (
	"context"

	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/tf"
)

// Source provides the baselines of one observation. Load is called from the
// reader goroutine only.
type Source interface {
	Baselines(ctx context.Context) ([]artifacts.Baseline, error)
	Load(ctx context.Context, b artifacts.Baseline) (*artifacts.Set, error)
}

// Result is what a worker hands to the sink once a baseline is done.
type Result struct {
	Baseline artifacts.Baseline
	// Masks holds one mask per polarization.
	Masks []*tf.Mask
	// Set is the final state of the baseline. The sink owns it.
	Set *artifacts.Set
}

// NewResult collects the contaminated flags of set, one mask per polarization.
func NewResult(set *artifacts.Set) Result {
	cont := set.Contaminated
	masks := make([]*tf.Mask, cont.Polarizations)
	for p := range masks {
		masks[p] = cont.MaskFor(p * cont.Components)
	}
	return Result{Baseline: set.Baseline, Masks: masks, Set: set}
}

// FlaggedRatio is the fraction of flagged samples over all polarizations.
func (r Result) FlaggedRatio() float64 {
	var flagged, total int
	for _, m := range r.Masks {
		flagged += m.Count()
		total += len(m.Data)
	}
	if total == 0 {
		return 0
	}
	return float64(flagged) / float64(total)
}

// Sink receives results in completion order. Write is called concurrently
// from the workers.
type Sink interface {
	Write(ctx context.Context, r Result) error
}

// Flusher is implemented by sinks that buffer output.
type Flusher interface {
	Flush() error
}
