package tf

import (
	"errors"
	"testing"
)

func TestBufferValidate(t *testing.T) {
	b := NewBuffer(8, 4, 4, 2, false)
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(b.Images) != 8 || len(b.Masks) != 4 {
		t.Fatalf("got %d images / %d masks, want 8 / 4", len(b.Images), len(b.Masks))
	}

	b.Masks[2] = NewMask(7, 4)
	if err := b.Validate(); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Validate() error = %v, want ErrShapeMismatch", err)
	}

	shared := NewBuffer(8, 4, 4, 2, true)
	shared.Images = shared.Images[:7]
	if err := shared.Validate(); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Validate() error = %v, want ErrShapeMismatch", err)
	}
}

func TestBufferMaskIndex(t *testing.T) {
	b := NewBuffer(2, 2, 4, 2, false)
	for i, want := range []int{0, 0, 1, 1, 2, 2, 3, 3} {
		if got := b.MaskIndex(i); got != want {
			t.Errorf("MaskIndex(%d) = %d, want %d", i, got, want)
		}
	}
	shared := NewBuffer(2, 2, 4, 2, true)
	if got := shared.MaskIndex(7); got != 0 {
		t.Errorf("MaskIndex(7) on shared mask = %d, want 0", got)
	}
}

func TestBufferPolarizationRoundTrip(t *testing.T) {
	b := NewBuffer(3, 2, 2, 2, false)
	pol := b.Polarization(1)
	pol.Masks[0].Set(1, 1, true)
	pol.Images[0] = NewImage(3, 2)
	pol.Images[0].Fill(5)

	if err := b.SetPolarization(1, pol); err != nil {
		t.Fatalf("SetPolarization() error = %v", err)
	}
	if !b.Masks[1].At(1, 1) || b.Masks[0].At(1, 1) {
		t.Errorf("mask written to the wrong polarization")
	}
	if b.Images[2].At(0, 0) != 5 || b.Images[0].At(0, 0) != 0 {
		t.Errorf("image written to the wrong polarization")
	}
}

func TestBufferSetMasks(t *testing.T) {
	b := NewBuffer(2, 1, 2, 1, true)
	m1, m2 := NewMask(2, 1), NewMask(2, 1)
	m1.Set(0, 0, true)
	m2.Set(1, 0, true)
	if err := b.SetMasks([]*Mask{m1, m2}); err != nil {
		t.Fatalf("SetMasks() error = %v", err)
	}
	if b.Masks[0].Count() != 2 {
		t.Errorf("joined mask count = %d, want 2", b.Masks[0].Count())
	}

	per := NewBuffer(2, 1, 2, 1, false)
	if err := per.SetMasks([]*Mask{m1}); err != nil {
		t.Fatalf("SetMasks() error = %v", err)
	}
	if !per.Masks[1].At(0, 0) {
		t.Errorf("single mask was not replicated")
	}
	per.Masks[0].Set(1, 0, true)
	if per.Masks[1].At(1, 0) {
		t.Errorf("replicated masks must not alias")
	}
}
