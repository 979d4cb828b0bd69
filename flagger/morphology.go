package flagger

import "github.com/hb9tf/rfiflag/tf"

// Dilate grows every flagged sample by timeSize samples left and right and by
// freqSize channels up and down.
func Dilate(mask *tf.Mask, timeSize, freqSize int) {
	if timeSize > 0 {
		line := make([]bool, mask.Width)
		for y := 0; y < mask.Height; y++ {
			row := mask.Row(y)
			copy(line, row)
			dilateLine(line, row, timeSize)
		}
	}
	if freqSize > 0 {
		line := make([]bool, mask.Height)
		out := make([]bool, mask.Height)
		for x := 0; x < mask.Width; x++ {
			for y := range line {
				line[y] = mask.At(x, y)
			}
			copy(out, line)
			dilateLine(line, out, freqSize)
			for y, v := range out {
				mask.Set(x, y, v)
			}
		}
	}
}

func dilateLine(in, out []bool, size int) {
	for i, v := range in {
		if !v {
			continue
		}
		for j := max(0, i-size); j <= min(len(out)-1, i+size); j++ {
			out[j] = true
		}
	}
}

// AcceptReject applies run acceptance to one line. A run is a maximal stretch
// of valid samples; with a nil valid slice the whole line is one run. A run
// whose flagged fraction is below accept is cleared, a run whose fraction is
// above reject is flagged completely. Disable either side with accept <= 0 or
// reject >= 1.
func AcceptReject(flags, valid []bool, accept, reject float64) {
	start := 0
	for start < len(flags) {
		if valid != nil && !valid[start] {
			start++
			continue
		}
		end := start
		flagged := 0
		for end < len(flags) && (valid == nil || valid[end]) {
			if flags[end] {
				flagged++
			}
			end++
		}
		ratio := float64(flagged) / float64(end-start)
		switch {
		case ratio < accept:
			for i := start; i < end; i++ {
				flags[i] = false
			}
		case ratio > reject:
			for i := start; i < end; i++ {
				flags[i] = true
			}
		}
		start = end
	}
}

// ScaleInvariantDilation flags every sample that lies in some interval whose
// unflagged fraction is at most eta. eta = 0 leaves the line unchanged; larger
// values grow flagged regions proportionally to their size.
func ScaleInvariantDilation(flags []bool, eta float64) {
	n := len(flags)
	if n == 0 || eta <= 0 {
		return
	}
	// w[k] is the prefix sum of eta - (1 if sample unflagged).
	w := make([]float64, n+1)
	for i, f := range flags {
		v := eta
		if !f {
			v -= 1
		}
		w[i+1] = w[i] + v
	}
	minPrefix := make([]float64, n)
	minPrefix[0] = w[0]
	for i := 1; i < n; i++ {
		minPrefix[i] = min(minPrefix[i-1], w[i])
	}
	maxSuffix := make([]float64, n)
	maxSuffix[n-1] = w[n]
	for i := n - 2; i >= 0; i-- {
		maxSuffix[i] = max(maxSuffix[i+1], w[i+1])
	}
	for i := range flags {
		if maxSuffix[i]-minPrefix[i] >= 0 {
			flags[i] = true
		}
	}
}

// ApplyTime runs fn over every channel of mask (lines along the time axis).
// valid marks usable samples; a nil valid mask passes nil to fn.
func ApplyTime(mask, valid *tf.Mask, fn func(flags, valid []bool)) {
	for y := 0; y < mask.Height; y++ {
		var v []bool
		if valid != nil {
			v = valid.Row(y)
		}
		fn(mask.Row(y), v)
	}
}

// ApplyFrequency runs fn over every time step of mask (lines along the
// frequency axis).
func ApplyFrequency(mask, valid *tf.Mask, fn func(flags, valid []bool)) {
	line := make([]bool, mask.Height)
	var v []bool
	if valid != nil {
		v = make([]bool, mask.Height)
	}
	for x := 0; x < mask.Width; x++ {
		for y := range line {
			line[y] = mask.At(x, y)
			if valid != nil {
				v[y] = valid.At(x, y)
			}
		}
		fn(line, v)
		for y, f := range line {
			mask.Set(x, y, f)
		}
	}
}

// FiniteMask marks the samples that are finite in every image.
func FiniteMask(images []*tf.Image) *tf.Mask {
	if len(images) == 0 {
		return nil
	}
	valid := tf.NewMask(images[0].Width, images[0].Height)
	valid.SetAll(true)
	for _, im := range images {
		for i, v := range im.Data {
			if !tf.Finite(v) {
				valid.Data[i] = false
			}
		}
	}
	return valid
}
