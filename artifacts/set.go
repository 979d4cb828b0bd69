// Package artifacts holds the mutable state an action tree is interpreted
// against: the original data, the current background estimate (revised) and
// the flag-accumulating contaminated view of one baseline.
package artifacts

import (
	"fmt"

	"github.com/hb9tf/rfiflag/tf"
)

// UVW is the projected baseline coordinate of one time step in meters.
type UVW struct {
	U, V, W float64
}

// Metadata is shared by every baseline loaded from the same observation. It is
// published to workers read-only and must not be mutated afterwards.
type Metadata struct {
	// Times holds one timestamp per time step, in seconds.
	Times []float64
	// UVW holds one coordinate per time step.
	UVW []UVW
	// Channels holds the center frequency of every channel in Hz.
	Channels []float64
}

// Baseline identifies the antenna pair a set was loaded for.
type Baseline struct {
	Antenna1 int
	Antenna2 int
	// Length is the physical antenna separation in meters, if known.
	Length float64
}

func (b Baseline) IsAutoCorrelation() bool {
	return b.Antenna1 == b.Antenna2
}

func (b Baseline) String() string {
	return fmt.Sprintf("%d x %d", b.Antenna1, b.Antenna2)
}

// Set is the register file passed through the action tree.
type Set struct {
	Original     *tf.Buffer
	Revised      *tf.Buffer
	Contaminated *tf.Buffer

	Metadata *Metadata
	Baseline Baseline

	// Sensitivity scales every detection threshold. Lower is stricter.
	Sensitivity float64

	// TimeProfile is scratch state stored by one operator and read by a later
	// one while the same baseline is being processed.
	TimeProfile []float64
}

// New creates a set whose contaminated view starts as a copy of original and
// whose revised view is all zero.
func New(original *tf.Buffer, meta *Metadata) *Set {
	revised := original.Clone()
	for _, im := range revised.Images {
		im.Fill(0)
	}
	return &Set{
		Original:     original,
		Revised:      revised,
		Contaminated: original.Clone(),
		Metadata:     meta,
		Sensitivity:  1,
	}
}

// Validate checks that all three buffers are valid and share one shape.
func (s *Set) Validate() error {
	for name, b := range map[string]*tf.Buffer{"original": s.Original, "revised": s.Revised, "contaminated": s.Contaminated} {
		if b == nil {
			return fmt.Errorf("%s buffer missing: %w", name, tf.ErrShapeMismatch)
		}
		if err := b.Validate(); err != nil {
			return fmt.Errorf("%s buffer: %w", name, err)
		}
	}
	if !s.Original.SameShape(s.Revised) || !s.Original.SameShape(s.Contaminated) {
		return fmt.Errorf("buffers disagree on shape (%dx%d, %dx%d, %dx%d): %w",
			s.Original.Width(), s.Original.Height(),
			s.Revised.Width(), s.Revised.Height(),
			s.Contaminated.Width(), s.Contaminated.Height(), tf.ErrShapeMismatch)
	}
	return nil
}

// Clone deep copies the three buffers. Metadata stays shared.
func (s *Set) Clone() *Set {
	c := *s
	c.Original = s.Original.Clone()
	c.Revised = s.Revised.Clone()
	c.Contaminated = s.Contaminated.Clone()
	if s.TimeProfile != nil {
		c.TimeProfile = append([]float64(nil), s.TimeProfile...)
	}
	return &c
}

// WithBuffers returns a copy of the set header that refers to other buffers
// while keeping metadata, baseline and sensitivity.
func (s *Set) WithBuffers(original, revised, contaminated *tf.Buffer) *Set {
	c := *s
	c.Original = original
	c.Revised = revised
	c.Contaminated = contaminated
	return &c
}

func (s *Set) Width() int {
	return s.Original.Width()
}

func (s *Set) Height() int {
	return s.Original.Height()
}
