package tf

import "fmt"

// Buffer is the unit of data an action tree operates on: one image per
// polarization/component combination plus one shared mask or one mask per
// polarization.
//
// Images are ordered polarization-major: for Components == 2 image 2p is the
// real part and image 2p+1 the imaginary part of polarization p.
type Buffer struct {
	Polarizations int
	Components    int
	Images        []*Image
	Masks         []*Mask
}

// NewBuffer allocates a zero-valued buffer. When sharedMask is set a single mask
// serves all polarizations.
func NewBuffer(width, height, polarizations, components int, sharedMask bool) *Buffer {
	b := &Buffer{
		Polarizations: polarizations,
		Components:    components,
	}
	for i := 0; i < polarizations*components; i++ {
		b.Images = append(b.Images, NewImage(width, height))
	}
	masks := polarizations
	if sharedMask {
		masks = 1
	}
	for i := 0; i < masks; i++ {
		b.Masks = append(b.Masks, NewMask(width, height))
	}
	return b
}

// NewSingleImageBuffer wraps one real valued image and a mask into a buffer.
func NewSingleImageBuffer(im *Image, mask *Mask) *Buffer {
	if mask == nil {
		mask = NewMask(im.Width, im.Height)
	}
	return &Buffer{
		Polarizations: 1,
		Components:    1,
		Images:        []*Image{im},
		Masks:         []*Mask{mask},
	}
}

func (b *Buffer) Width() int {
	if len(b.Images) > 0 {
		return b.Images[0].Width
	}
	if len(b.Masks) > 0 {
		return b.Masks[0].Width
	}
	return 0
}

func (b *Buffer) Height() int {
	if len(b.Images) > 0 {
		return b.Images[0].Height
	}
	if len(b.Masks) > 0 {
		return b.Masks[0].Height
	}
	return 0
}

// Validate checks the count and shape invariants of the buffer.
func (b *Buffer) Validate() error {
	if b.Polarizations < 1 || (b.Components != 1 && b.Components != 2) {
		return fmt.Errorf("invalid layout %d polarizations x %d components: %w", b.Polarizations, b.Components, ErrShapeMismatch)
	}
	if len(b.Images) != b.Polarizations*b.Components {
		return fmt.Errorf("expected %d images, got %d: %w", b.Polarizations*b.Components, len(b.Images), ErrShapeMismatch)
	}
	if len(b.Masks) != 1 && len(b.Masks) != b.Polarizations {
		return fmt.Errorf("expected 1 or %d masks, got %d: %w", b.Polarizations, len(b.Masks), ErrShapeMismatch)
	}
	w, h := b.Width(), b.Height()
	for i, im := range b.Images {
		if !im.SameShape(w, h) {
			return fmt.Errorf("image %d is %dx%d, want %dx%d: %w", i, im.Width, im.Height, w, h, ErrShapeMismatch)
		}
	}
	for i, m := range b.Masks {
		if !m.SameShape(w, h) {
			return fmt.Errorf("mask %d is %dx%d, want %dx%d: %w", i, m.Width, m.Height, w, h, ErrShapeMismatch)
		}
	}
	return nil
}

// SameShape reports whether other has the same width and height.
func (b *Buffer) SameShape(other *Buffer) bool {
	return b.Width() == other.Width() && b.Height() == other.Height()
}

// MaskIndex returns the index of the mask that covers image i.
func (b *Buffer) MaskIndex(i int) int {
	if len(b.Masks) == 1 {
		return 0
	}
	return i / b.Components
}

func (b *Buffer) MaskFor(i int) *Mask {
	return b.Masks[b.MaskIndex(i)]
}

// Clone deep copies images and masks.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{
		Polarizations: b.Polarizations,
		Components:    b.Components,
		Images:        make([]*Image, len(b.Images)),
		Masks:         make([]*Mask, len(b.Masks)),
	}
	for i, im := range b.Images {
		c.Images[i] = im.Clone()
	}
	for i, m := range b.Masks {
		c.Masks[i] = m.Clone()
	}
	return c
}

// CloneMasks deep copies the masks only.
func (b *Buffer) CloneMasks() []*Mask {
	out := make([]*Mask, len(b.Masks))
	for i, m := range b.Masks {
		out[i] = m.Clone()
	}
	return out
}

// SetMasks replaces the masks, adapting the count to the buffer layout. A
// single mask is replicated per polarization when the buffer has one mask per
// polarization; several masks are OR-merged when the buffer shares one.
func (b *Buffer) SetMasks(masks []*Mask) error {
	w, h := b.Width(), b.Height()
	for i, m := range masks {
		if !m.SameShape(w, h) {
			return fmt.Errorf("mask %d is %dx%d, want %dx%d: %w", i, m.Width, m.Height, w, h, ErrShapeMismatch)
		}
	}
	switch {
	case len(masks) == len(b.Masks):
		for i, m := range masks {
			b.Masks[i] = m.Clone()
		}
	case len(masks) == 1:
		for i := range b.Masks {
			b.Masks[i] = masks[0].Clone()
		}
	case len(b.Masks) == 1:
		joined := NewMask(w, h)
		for _, m := range masks {
			if err := joined.Or(m); err != nil {
				return err
			}
		}
		b.Masks[0] = joined
	default:
		return fmt.Errorf("cannot map %d masks onto %d: %w", len(masks), len(b.Masks), ErrShapeMismatch)
	}
	return nil
}

// JoinedMask returns the OR of all masks.
func (b *Buffer) JoinedMask() *Mask {
	joined := NewMask(b.Width(), b.Height())
	for _, m := range b.Masks {
		joined.Or(m)
	}
	return joined
}

// Polarization returns a single-polarization view that shares the image and
// mask pointers of polarization p.
func (b *Buffer) Polarization(p int) *Buffer {
	return &Buffer{
		Polarizations: 1,
		Components:    b.Components,
		Images:        append([]*Image(nil), b.Images[p*b.Components:(p+1)*b.Components]...),
		Masks:         []*Mask{b.Masks[b.MaskIndex(p*b.Components)]},
	}
}

// SetPolarization writes the images and mask of a single-polarization buffer
// back into polarization p.
func (b *Buffer) SetPolarization(p int, pol *Buffer) error {
	if pol.Polarizations != 1 || pol.Components != b.Components {
		return fmt.Errorf("cannot store %dx%d layout as a polarization of %dx%d: %w", pol.Polarizations, pol.Components, b.Polarizations, b.Components, ErrShapeMismatch)
	}
	if !pol.SameShape(b) {
		return fmt.Errorf("polarization %d: %w", p, ErrShapeMismatch)
	}
	copy(b.Images[p*b.Components:(p+1)*b.Components], pol.Images)
	if len(b.Masks) == 1 && b.Polarizations > 1 {
		return b.Masks[0].Or(pol.Masks[0])
	}
	b.Masks[b.MaskIndex(p*b.Components)] = pol.Masks[0]
	return nil
}

// FlaggedCount sums the flagged samples of every mask.
func (b *Buffer) FlaggedCount() int {
	n := 0
	for _, m := range b.Masks {
		n += m.Count()
	}
	return n
}
