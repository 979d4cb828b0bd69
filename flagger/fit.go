package flagger

import (
	"fmt"
	"math"
	"sort"

	"github.com/hb9tf/rfiflag/tf"
)

// FitMethod selects how a sliding window summarizes its samples.
type FitMethod string

const (
	FitMean     FitMethod = "mean"
	FitMedian   FitMethod = "median"
	FitGaussian FitMethod = "gaussian"
)

// WindowFit describes a sliding-window background fit. The window spans
// 2*HalfWidth+1 time steps and 2*HalfHeight+1 channels and is truncated at the
// edges. Sigmas apply to FitGaussian only.
type WindowFit struct {
	Method     FitMethod
	HalfWidth  int
	HalfHeight int
	SigmaX     float64
	SigmaY     float64
}

// Fit estimates the smooth background of im from its unflagged finite
// samples. A window without usable samples yields zero.
func (f WindowFit) Fit(im *tf.Image, mask *tf.Mask) (*tf.Image, error) {
	if f.HalfWidth < 0 || f.HalfHeight < 0 {
		return nil, fmt.Errorf("negative window size %dx%d", f.HalfWidth, f.HalfHeight)
	}
	switch f.Method {
	case FitMean, "":
		return meanFit(im, mask, f.HalfWidth, f.HalfHeight), nil
	case FitMedian:
		return medianFit(im, mask, f.HalfWidth, f.HalfHeight), nil
	case FitGaussian:
		sx, sy := f.SigmaX, f.SigmaY
		if sx <= 0 {
			sx = math.Max(float64(f.HalfWidth)/2, 0.5)
		}
		if sy <= 0 {
			sy = math.Max(float64(f.HalfHeight)/2, 0.5)
		}
		return gaussianFit(im, mask, f.HalfWidth, f.HalfHeight, sx, sy), nil
	default:
		return nil, fmt.Errorf("unknown fit method %q", f.Method)
	}
}

func usableAt(im *tf.Image, mask *tf.Mask, i int) bool {
	return tf.Finite(im.Data[i]) && (mask == nil || !mask.Data[i])
}

// meanFit uses summed-area tables of values and sample counts.
func meanFit(im *tf.Image, mask *tf.Mask, hw, hh int) *tf.Image {
	w, h := im.Width, im.Height
	stride := w + 1
	sums := make([]float64, (w+1)*(h+1))
	counts := make([]int, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			var v float64
			var c int
			if usableAt(im, mask, i) {
				v, c = im.Data[i], 1
			}
			o := (y+1)*stride + x + 1
			sums[o] = v + sums[o-1] + sums[o-stride] - sums[o-stride-1]
			counts[o] = c + counts[o-1] + counts[o-stride] - counts[o-stride-1]
		}
	}
	out := tf.NewImage(w, h)
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-hh), min(h, y+hh+1)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-hw), min(w, x+hw+1)
			n := counts[y1*stride+x1] - counts[y0*stride+x1] - counts[y1*stride+x0] + counts[y0*stride+x0]
			if n == 0 {
				continue
			}
			s := sums[y1*stride+x1] - sums[y0*stride+x1] - sums[y1*stride+x0] + sums[y0*stride+x0]
			out.Set(x, y, s/float64(n))
		}
	}
	return out
}

func medianFit(im *tf.Image, mask *tf.Mask, hw, hh int) *tf.Image {
	w, h := im.Width, im.Height
	out := tf.NewImage(w, h)
	window := make([]float64, 0, (2*hw+1)*(2*hh+1))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			window = window[:0]
			for wy := max(0, y-hh); wy < min(h, y+hh+1); wy++ {
				for wx := max(0, x-hw); wx < min(w, x+hw+1); wx++ {
					if i := wy*w + wx; usableAt(im, mask, i) {
						window = append(window, im.Data[i])
					}
				}
			}
			if len(window) == 0 {
				continue
			}
			sort.Float64s(window)
			mid := len(window) / 2
			if len(window)%2 == 1 {
				out.Set(x, y, window[mid])
			} else {
				out.Set(x, y, (window[mid-1]+window[mid])/2)
			}
		}
	}
	return out
}

// gaussianFit is a normalized convolution: the weighted values and the
// weights are both smoothed with a separable kernel and divided.
func gaussianFit(im *tf.Image, mask *tf.Mask, hw, hh int, sx, sy float64) *tf.Image {
	w, h := im.Width, im.Height
	values := tf.NewImage(w, h)
	weights := tf.NewImage(w, h)
	for i := range im.Data {
		if usableAt(im, mask, i) {
			values.Data[i] = im.Data[i]
			weights.Data[i] = 1
		}
	}
	kx, ky := gaussianKernel(hw, sx), gaussianKernel(hh, sy)
	values = convolveVertical(convolveHorizontal(values, kx), ky)
	weights = convolveVertical(convolveHorizontal(weights, kx), ky)
	out := tf.NewImage(w, h)
	for i, wt := range weights.Data {
		if wt > 1e-12 {
			out.Data[i] = values.Data[i] / wt
		}
	}
	return out
}

func gaussianKernel(half int, sigma float64) []float64 {
	k := make([]float64, 2*half+1)
	for i := range k {
		d := float64(i - half)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
	}
	return k
}

func convolveHorizontal(im *tf.Image, k []float64) *tf.Image {
	half := len(k) / 2
	out := tf.NewImage(im.Width, im.Height)
	for y := 0; y < im.Height; y++ {
		row := im.Row(y)
		for x := range row {
			var s float64
			for j, kv := range k {
				if xx := x + j - half; xx >= 0 && xx < im.Width {
					s += kv * row[xx]
				}
			}
			out.Set(x, y, s)
		}
	}
	return out
}

func convolveVertical(im *tf.Image, k []float64) *tf.Image {
	half := len(k) / 2
	out := tf.NewImage(im.Width, im.Height)
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			var s float64
			for j, kv := range k {
				if yy := y + j - half; yy >= 0 && yy < im.Height {
					s += kv * im.At(x, yy)
				}
			}
			out.Set(x, y, s)
		}
	}
	return out
}
