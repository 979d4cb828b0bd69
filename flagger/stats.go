package flagger

import (
	"math"
	"sort"

	"github.com/hb9tf/rfiflag/tf"
)

const (
	winsorizedTail = 0.1
	// winsorizedStdDevCorrection rescales the standard deviation of 10%
	// winsorized normal data back to the true standard deviation.
	winsorizedStdDevCorrection = 1.54
)

// WinsorizedMeanAndStdDev returns robust statistics of the unflagged finite
// samples of im. The lowest and highest 10% are clipped to the boundary values
// before the moments are taken. Without usable samples both results are zero.
func WinsorizedMeanAndStdDev(im *tf.Image, mask *tf.Mask) (float64, float64) {
	values := make([]float64, 0, len(im.Data))
	for i, v := range im.Data {
		if mask != nil && mask.Data[i] {
			continue
		}
		if tf.Finite(v) {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return 0, 0
	}
	sort.Float64s(values)
	low := int(float64(len(values)) * winsorizedTail)
	high := len(values) - 1 - low
	var sum float64
	for i := range values {
		sum += clampIndex(values, i, low, high)
	}
	mean := sum / float64(len(values))
	var sq float64
	for i := range values {
		d := clampIndex(values, i, low, high) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq/float64(len(values))) * winsorizedStdDevCorrection
}

func clampIndex(sorted []float64, i, low, high int) float64 {
	switch {
	case i < low:
		return sorted[low]
	case i > high:
		return sorted[high]
	default:
		return sorted[i]
	}
}

// MeanAndStdDev returns the plain moments of the unflagged finite samples of
// im. Without usable samples both results are zero.
func MeanAndStdDev(im *tf.Image, mask *tf.Mask) (float64, float64) {
	var sum float64
	n := 0
	for i, v := range im.Data {
		if (mask != nil && mask.Data[i]) || !tf.Finite(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, 0
	}
	mean := sum / float64(n)
	var sq float64
	for i, v := range im.Data {
		if (mask != nil && mask.Data[i]) || !tf.Finite(v) {
			continue
		}
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(n))
}
