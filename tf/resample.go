package tf

import "fmt"

func reducedSize(size, factor int) int {
	return (size + factor - 1) / factor
}

// ShrinkImage averages groups of factorX x factorY samples into one. With a
// non-nil mask, flagged samples are left out of the mean of their group; a group
// without any usable sample becomes zero. Non-finite samples never contribute.
func ShrinkImage(im *Image, mask *Mask, factorX, factorY int) *Image {
	out := NewImage(reducedSize(im.Width, factorX), reducedSize(im.Height, factorY))
	for ry := 0; ry < out.Height; ry++ {
		for rx := 0; rx < out.Width; rx++ {
			var sum float64
			var n int
			for y := ry * factorY; y < min((ry+1)*factorY, im.Height); y++ {
				for x := rx * factorX; x < min((rx+1)*factorX, im.Width); x++ {
					v := im.At(x, y)
					if !Finite(v) || (mask != nil && mask.At(x, y)) {
						continue
					}
					sum += v
					n++
				}
			}
			if n > 0 {
				out.Set(rx, ry, sum/float64(n))
			}
		}
	}
	return out
}

// ShrinkMask reduces a mask; a reduced cell is flagged when any of its
// samples is flagged.
func ShrinkMask(m *Mask, factorX, factorY int) *Mask {
	out := NewMask(reducedSize(m.Width, factorX), reducedSize(m.Height, factorY))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.At(x, y) {
				out.Set(x/factorX, y/factorY, true)
			}
		}
	}
	return out
}

// EnlargeImage replicates every reduced sample over the width x height samples it
// was derived from.
func EnlargeImage(im *Image, factorX, factorY, width, height int) *Image {
	out := NewImage(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out.Set(x, y, im.At(x/factorX, y/factorY))
		}
	}
	return out
}

// EnlargeMask replicates every reduced cell's flag over the samples it covers.
func EnlargeMask(m *Mask, factorX, factorY, width, height int) *Mask {
	out := NewMask(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out.Set(x, y, m.At(x/factorX, y/factorY))
		}
	}
	return out
}

// ShrinkBuffer returns a reduced copy of b. When flags is non-nil each image is
// averaged with the samples flagged in the corresponding mask of flags left out.
func ShrinkBuffer(b, flags *Buffer, factorX, factorY int) *Buffer {
	out := &Buffer{
		Polarizations: b.Polarizations,
		Components:    b.Components,
		Images:        make([]*Image, len(b.Images)),
		Masks:         make([]*Mask, len(b.Masks)),
	}
	for i, im := range b.Images {
		var mask *Mask
		if flags != nil && i < len(flags.Images) {
			mask = flags.MaskFor(i)
		}
		out.Images[i] = ShrinkImage(im, mask, factorX, factorY)
	}
	for i, m := range b.Masks {
		out.Masks[i] = ShrinkMask(m, factorX, factorY)
	}
	return out
}

// TrimImage copies the region starting at (x0, y0) with the given size.
func TrimImage(im *Image, x0, y0, width, height int) *Image {
	out := NewImage(width, height)
	for y := 0; y < height; y++ {
		copy(out.Row(y), im.Row(y0 + y)[x0:x0+width])
	}
	return out
}

func TrimMask(m *Mask, x0, y0, width, height int) *Mask {
	out := NewMask(width, height)
	for y := 0; y < height; y++ {
		copy(out.Row(y), m.Row(y0 + y)[x0:x0+width])
	}
	return out
}

// TrimBuffer copies a rectangular region of every image and mask.
func TrimBuffer(b *Buffer, x0, y0, width, height int) (*Buffer, error) {
	if x0 < 0 || y0 < 0 || width < 1 || height < 1 || x0+width > b.Width() || y0+height > b.Height() {
		return nil, fmt.Errorf("region %dx%d+%d+%d outside %dx%d buffer: %w", width, height, x0, y0, b.Width(), b.Height(), ErrShapeMismatch)
	}
	out := &Buffer{
		Polarizations: b.Polarizations,
		Components:    b.Components,
		Images:        make([]*Image, len(b.Images)),
		Masks:         make([]*Mask, len(b.Masks)),
	}
	for i, im := range b.Images {
		out.Images[i] = TrimImage(im, x0, y0, width, height)
	}
	for i, m := range b.Masks {
		out.Masks[i] = TrimMask(m, x0, y0, width, height)
	}
	return out, nil
}

// PasteImage writes src into dst with its origin at (x0, y0).
func PasteImage(dst, src *Image, x0, y0 int) {
	for y := 0; y < src.Height; y++ {
		copy(dst.Row(y0 + y)[x0:x0+src.Width], src.Row(y))
	}
}

func PasteMask(dst, src *Mask, x0, y0 int) {
	for y := 0; y < src.Height; y++ {
		copy(dst.Row(y0 + y)[x0:x0+src.Width], src.Row(y))
	}
}
