// Package render draws time-frequency images as waterfalls with the flags
// produced by a strategy laid over them.
package render

import (
	"errors"
	"image"
	"image/color"
	"math"
	"sort"
	"time"

	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/tf"
)

var (
	// Colors defining the gradient in the heatmap. The higher the index, the warmer.
	colors = []color.RGBA{
		{0, 0, 0, 255},       // black
		{0, 0, 255, 255},     // blue
		{0, 255, 255, 255},   // cyan
		{0, 255, 0, 255},     // green
		{255, 255, 0, 255},   // yellow
		{255, 0, 0, 255},     // red
		{255, 255, 255, 255}, // white
	}

	// FlagColor marks flagged samples when an overlay is requested.
	FlagColor = color.RGBA{255, 0, 255, 255}
	// MissingColor marks samples that are not finite.
	MissingColor = color.RGBA{64, 64, 64, 255}
)

// ErrEmpty is returned when there is nothing to draw.
var ErrEmpty = errors.New("render: empty image")

// GetColor determines the color of a pixel based on a color gradient and a pixel "level".
// http://www.andrewnoske.com/wiki/Code_-_heatmaps_and_color_gradients
func GetColor(lvl uint16) color.RGBA {
	// Find the two gradient stops around the level and interpolate between them.
	pos := float64(lvl) / math.MaxUint16 * float64(len(colors)-1)
	i := int(pos)
	if i >= len(colors)-1 {
		return colors[len(colors)-1]
	}
	fract := pos - float64(i)
	lo, hi := colors[i], colors[i+1]
	mix := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + (float64(b)-float64(a))*fract))
	}
	return color.RGBA{mix(lo.R, hi.R), mix(lo.G, hi.G), mix(lo.B, hi.B), mix(lo.A, hi.A)}
}

// Options tune how a waterfall is drawn.
type Options struct {
	// Overlay paints flagged samples in FlagColor.
	Overlay bool
	// Grid adds frequency and time labels when metadata is available.
	Grid bool
	// Clip is the fraction of samples saturated at each end of the color
	// scale. Zero uses the full range.
	Clip float64
}

// Waterfall draws im with frequency on the X axis and time going down. Each
// sample becomes one pixel.
func Waterfall(im *tf.Image, mask *tf.Mask, opts Options) (*image.RGBA, error) {
	if im == nil || im.Width == 0 || im.Height == 0 {
		return nil, ErrEmpty
	}
	low, high := levels(im, opts.Clip)
	span := high - low

	img := image.NewRGBA(image.Rect(0, 0, im.Height, im.Width))
	for t := 0; t < im.Width; t++ {
		for c := 0; c < im.Height; c++ {
			if opts.Overlay && mask != nil && mask.At(t, c) {
				img.SetRGBA(c, t, FlagColor)
				continue
			}
			v := im.At(t, c)
			if !tf.Finite(v) {
				img.SetRGBA(c, t, MissingColor)
				continue
			}
			lvl := 0.0
			if span > 0 {
				lvl = (v - low) / span
			}
			lvl = math.Max(0, math.Min(1, lvl))
			img.SetRGBA(c, t, GetColor(uint16(lvl*math.MaxUint16)))
		}
	}
	return img, nil
}

// levels returns the values mapped to the coldest and warmest colors.
func levels(im *tf.Image, clip float64) (float64, float64) {
	var vals []float64
	for _, v := range im.Data {
		if tf.Finite(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0, 0
	}
	sort.Float64s(vals)
	n := int(clip * float64(len(vals)))
	if n*2 >= len(vals) {
		n = 0
	}
	return vals[n], vals[len(vals)-1-n]
}

// Baseline draws the first image of the original data of set with the
// contaminated flags of the same polarization.
func Baseline(set *artifacts.Set, opts Options) (*image.RGBA, error) {
	if set == nil || set.Original == nil || len(set.Original.Images) == 0 {
		return nil, ErrEmpty
	}
	im := set.Original.Images[0]
	if set.Original.Components == 2 {
		im = tf.Amplitude(set.Original.Images[0], set.Original.Images[1])
	}
	var mask *tf.Mask
	if set.Contaminated != nil {
		mask = set.Contaminated.MaskFor(0)
	}
	img, err := Waterfall(im, mask, opts)
	if err != nil {
		return nil, err
	}
	if !opts.Grid || set.Metadata == nil {
		return img, nil
	}
	meta := set.Metadata
	if len(meta.Channels) != im.Height || len(meta.Times) != im.Width {
		return img, nil
	}
	return DrawGrid(img, int64(meta.Channels[0]), int64(meta.Channels[len(meta.Channels)-1]), secondsToTime(meta.Times[0]), secondsToTime(meta.Times[len(meta.Times)-1])), nil
}

func secondsToTime(s float64) time.Time {
	return time.UnixMilli(int64(s * 1000)).UTC()
}
