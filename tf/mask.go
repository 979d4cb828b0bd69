package tf

import "fmt"

// Mask marks contaminated samples. It shares the layout of Image.
type Mask struct {
	Width  int
	Height int
	Data   []bool
}

func NewMask(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Data:   make([]bool, width*height),
	}
}

func (m *Mask) At(x, y int) bool {
	return m.Data[y*m.Width+x]
}

func (m *Mask) Set(x, y int, v bool) {
	m.Data[y*m.Width+x] = v
}

func (m *Mask) Row(y int) []bool {
	return m.Data[y*m.Width : (y+1)*m.Width]
}

func (m *Mask) Clone() *Mask {
	c := &Mask{Width: m.Width, Height: m.Height, Data: make([]bool, len(m.Data))}
	copy(c.Data, m.Data)
	return c
}

func (m *Mask) SameShape(width, height int) bool {
	return m.Width == width && m.Height == height
}

func (m *Mask) SetAll(v bool) {
	for i := range m.Data {
		m.Data[i] = v
	}
}

func (m *Mask) Invert() {
	for i, v := range m.Data {
		m.Data[i] = !v
	}
}

// Count returns the number of flagged samples.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}

// Ratio returns the flagged fraction of the mask.
func (m *Mask) Ratio() float64 {
	if len(m.Data) == 0 {
		return 0
	}
	return float64(m.Count()) / float64(len(m.Data))
}

// Or merges the flags of other into m.
func (m *Mask) Or(other *Mask) error {
	if !other.SameShape(m.Width, m.Height) {
		return fmt.Errorf("unable to merge %dx%d mask into %dx%d: %w", other.Width, other.Height, m.Width, m.Height, ErrShapeMismatch)
	}
	for i, v := range other.Data {
		if v {
			m.Data[i] = true
		}
	}
	return nil
}

// Equal reports whether both masks have the same shape and flags.
func (m *Mask) Equal(other *Mask) bool {
	if !other.SameShape(m.Width, m.Height) {
		return false
	}
	for i, v := range m.Data {
		if other.Data[i] != v {
			return false
		}
	}
	return true
}
