package pipeline

import (
	"fmt"
	"math"

	"github.com/hb9tf/rfiflag/artifacts"
)

// Selection names a baseline selection policy.
type Selection string

const (
	SelectAll       Selection = "all"
	SelectCross     Selection = "cross"
	SelectAuto      Selection = "auto"
	SelectCurrent   Selection = "current"
	SelectRedundant Selection = "redundant"
)

// DefaultRedundancyTolerance is the length difference in meters up to which
// two baselines count as redundant.
const DefaultRedundancyTolerance = 1.0

type Filterer interface {
	ShouldIgnore(b artifacts.Baseline) bool
}

// Filter keeps the baselines no filter ignores, in input order.
func Filter(baselines []artifacts.Baseline, filters []Filterer) []artifacts.Baseline {
	var out []artifacts.Baseline
	for _, b := range baselines {
		skip := false
		for _, f := range filters {
			if f.ShouldIgnore(b) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Filters translates the policy into a filter chain relative to the current
// baseline.
func (s Selection) Filters(current artifacts.Baseline) ([]Filterer, error) {
	switch s {
	case SelectAll, "":
		return nil, nil
	case SelectCross:
		return []Filterer{&FilterAuto{}}, nil
	case SelectAuto:
		return []Filterer{&FilterCross{}}, nil
	case SelectCurrent:
		return []Filterer{&FilterCurrent{Current: current}}, nil
	case SelectRedundant:
		return []Filterer{&FilterRedundant{Current: current, Tolerance: DefaultRedundancyTolerance}}, nil
	default:
		return nil, fmt.Errorf("unknown baseline selection %q", s)
	}
}

// FilterAuto ignores auto-correlations.
type FilterAuto struct{}

func (f *FilterAuto) ShouldIgnore(b artifacts.Baseline) bool {
	return b.IsAutoCorrelation()
}

// FilterCross ignores cross-correlations.
type FilterCross struct{}

func (f *FilterCross) ShouldIgnore(b artifacts.Baseline) bool {
	return !b.IsAutoCorrelation()
}

// FilterCurrent ignores everything but the current baseline.
type FilterCurrent struct {
	Current artifacts.Baseline
}

func (f *FilterCurrent) ShouldIgnore(b artifacts.Baseline) bool {
	return b.Antenna1 != f.Current.Antenna1 || b.Antenna2 != f.Current.Antenna2
}

// FilterRedundant ignores baselines whose length differs from the current one
// by more than Tolerance meters.
type FilterRedundant struct {
	Current   artifacts.Baseline
	Tolerance float64
}

func (f *FilterRedundant) ShouldIgnore(b artifacts.Baseline) bool {
	return math.Abs(b.Length-f.Current.Length) > f.Tolerance
}

// FilterAntennas ignores baselines that involve an antenna outside the set.
type FilterAntennas struct {
	Antennas map[int]bool
}

func (f *FilterAntennas) ShouldIgnore(b artifacts.Baseline) bool {
	return !f.Antennas[b.Antenna1] || !f.Antennas[b.Antenna2]
}
