// Package flagger contains the detection and mask-morphology algorithms used
// by the strategy actions. Functions work on single images and masks and know
// nothing about the action tree.
package flagger

import (
	"math"

	"github.com/hb9tf/rfiflag/tf"
)

const (
	// DefaultBaseThreshold is the single-sample threshold of the Rayleigh schedule.
	DefaultBaseThreshold = 6.0
	// rayleighFactor is the decrease of the per-sample threshold each time the
	// window length doubles.
	rayleighFactor = 1.5
)

// DefaultLengths are the window lengths of a standard SumThreshold run.
var DefaultLengths = []int{1, 2, 4, 8, 16, 32, 64, 128, 256}

// Thresholds is a per-window-length threshold schedule. Values[i] is the
// threshold on the mean of a window of Lengths[i] samples.
type Thresholds struct {
	Lengths []int
	Values  []float64
}

// RayleighThresholds derives threshold(L) = base / 1.5^log2(L).
func RayleighThresholds(base float64, lengths []int) Thresholds {
	t := Thresholds{
		Lengths: append([]int(nil), lengths...),
		Values:  make([]float64, len(lengths)),
	}
	for i, l := range lengths {
		t.Values[i] = base / math.Pow(rayleighFactor, math.Log2(float64(l)))
	}
	return t
}

// SumThresholdConfig selects the schedule, the directions and the overall scale
// (sensitivity and data-dependent factors multiplied together).
type SumThresholdConfig struct {
	Thresholds Thresholds
	Horizontal bool
	Vertical   bool
	Scale      float64
}

// SumThreshold flags mask in place and returns the number of samples it added.
//
// For every window length, ascending, a window of L consecutive samples is
// flagged completely when the absolute sum of its unflagged finite samples
// reaches threshold(L) times the number of those samples. Samples flagged by a
// pass are excluded from all later passes. The sweep over all lengths repeats
// until it adds nothing, so a second call with the same configuration is a no-op.
func SumThreshold(im *tf.Image, mask *tf.Mask, cfg SumThresholdConfig) int {
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	total := 0
	for {
		added := sumThresholdSweep(im, mask, cfg)
		if added == 0 {
			return total
		}
		total += added
	}
}

func sumThresholdSweep(im *tf.Image, mask *tf.Mask, cfg SumThresholdConfig) int {
	added := 0
	for i, length := range cfg.Thresholds.Lengths {
		threshold := cfg.Thresholds.Values[i] * cfg.Scale
		if cfg.Horizontal && length <= im.Width {
			added += sumThresholdHorizontal(im, mask, length, threshold)
		}
		if cfg.Vertical && length <= im.Height {
			added += sumThresholdVertical(im, mask, length, threshold)
		}
	}
	return added
}

func sumThresholdHorizontal(im *tf.Image, mask *tf.Mask, length int, threshold float64) int {
	added := 0
	flagged := make([]bool, im.Width)
	for y := 0; y < im.Height; y++ {
		row := mask.Row(y)
		copy(flagged, row)
		added += sumThresholdLine(im.Row(y), flagged, row, length, threshold)
	}
	return added
}

func sumThresholdVertical(im *tf.Image, mask *tf.Mask, length int, threshold float64) int {
	added := 0
	flagged := make([]bool, im.Height)
	out := make([]bool, im.Height)
	for x := 0; x < im.Width; x++ {
		for y := 0; y < im.Height; y++ {
			flagged[y] = mask.At(x, y)
		}
		copy(out, flagged)
		n := sumThresholdLine(im.Column(x), flagged, out, length, threshold)
		if n == 0 {
			continue
		}
		added += n
		for y, v := range out {
			mask.Set(x, y, v)
		}
	}
	return added
}

// sumThresholdLine tests every window of one line. Decisions read flagged (the
// state before the pass) and write to out.
func sumThresholdLine(values []float64, flagged, out []bool, length int, threshold float64) int {
	usable := func(i int) bool {
		return !flagged[i] && tf.Finite(values[i])
	}
	var sum float64
	count := 0
	for i := 0; i < length-1; i++ {
		if usable(i) {
			sum += values[i]
			count++
		}
	}
	added := 0
	for start := 0; start+length <= len(values); start++ {
		end := start + length - 1
		if usable(end) {
			sum += values[end]
			count++
		}
		if count > 0 && math.Abs(sum) >= threshold*float64(count) {
			for i := start; i <= end; i++ {
				if !out[i] {
					out[i] = true
					added++
				}
			}
		}
		if usable(start) {
			sum -= values[start]
			count--
		}
		if count == 0 {
			// Drop accumulated rounding once the window is empty.
			sum = 0
		}
	}
	return added
}
