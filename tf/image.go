package tf

import (
	"errors"
	"fmt"
	"math"
)

// ErrShapeMismatch is returned when two matrices that must share a shape do not.
var ErrShapeMismatch = errors.New("tf: shape mismatch")

// Image is a 2-D real valued time-frequency matrix. X indexes time steps, Y indexes
// frequency channels. Samples are stored row-major per channel.
type Image struct {
	Width  int
	Height int
	Data   []float64
}

func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Data:   make([]float64, width*height),
	}
}

// NewImageFromRows builds an image from one slice per channel.
func NewImageFromRows(rows [][]float64) *Image {
	if len(rows) == 0 {
		return NewImage(0, 0)
	}
	im := NewImage(len(rows[0]), len(rows))
	for y, row := range rows {
		copy(im.Row(y), row)
	}
	return im
}

func (im *Image) At(x, y int) float64 {
	return im.Data[y*im.Width+x]
}

func (im *Image) Set(x, y int, v float64) {
	im.Data[y*im.Width+x] = v
}

// Row returns the samples of channel y. The slice aliases the image.
func (im *Image) Row(y int) []float64 {
	return im.Data[y*im.Width : (y+1)*im.Width]
}

// Column copies the samples of time step x.
func (im *Image) Column(x int) []float64 {
	col := make([]float64, im.Height)
	for y := range col {
		col[y] = im.Data[y*im.Width+x]
	}
	return col
}

func (im *Image) Clone() *Image {
	c := &Image{Width: im.Width, Height: im.Height, Data: make([]float64, len(im.Data))}
	copy(c.Data, im.Data)
	return c
}

func (im *Image) SameShape(width, height int) bool {
	return im.Width == width && im.Height == height
}

func (im *Image) Fill(v float64) {
	for i := range im.Data {
		im.Data[i] = v
	}
}

// Subtract returns im - other.
func (im *Image) Subtract(other *Image) (*Image, error) {
	if !other.SameShape(im.Width, im.Height) {
		return nil, fmt.Errorf("unable to subtract %dx%d from %dx%d: %w", other.Width, other.Height, im.Width, im.Height, ErrShapeMismatch)
	}
	out := NewImage(im.Width, im.Height)
	for i, v := range im.Data {
		out.Data[i] = v - other.Data[i]
	}
	return out, nil
}

// Amplitude combines a real and an imaginary image into sqrt(re²+im²).
func Amplitude(re, im *Image) *Image {
	out := NewImage(re.Width, re.Height)
	for i := range out.Data {
		out.Data[i] = math.Hypot(re.Data[i], im.Data[i])
	}
	return out
}

// Phase combines a real and an imaginary image into atan2(im, re).
func Phase(re, im *Image) *Image {
	out := NewImage(re.Width, re.Height)
	for i := range out.Data {
		out.Data[i] = math.Atan2(im.Data[i], re.Data[i])
	}
	return out
}

// Finite reports whether v can take part in arithmetic.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
