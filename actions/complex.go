package actions

import (
	"context"
	"fmt"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/progress"
	"github.com/hb9tf/rfiflag/tf"
)

// Component selects the real valued image derived from complex data.
type Component string

const (
	ComponentAmplitude Component = "amplitude"
	ComponentReal      Component = "real"
	ComponentImaginary Component = "imaginary"
	ComponentPhase     Component = "phase"
)

// ForEachComplexComponent runs its children on real valued images derived
// from complex data, once per selected component, and ORs the resulting flags
// into the set. For the real and imaginary parts the revised and contaminated
// images are written back as well. Real valued data is passed through.
type ForEachComplexComponent struct {
	action.Block `yaml:"-"`

	Components []Component `yaml:"components"`
}

func NewForEachComplexComponent(components ...Component) *ForEachComplexComponent {
	return &ForEachComplexComponent{Components: components}
}

func (f *ForEachComplexComponent) Description() string {
	return fmt.Sprintf("For each complex component %v", f.Components)
}

func (f *ForEachComplexComponent) Kind() action.Kind {
	return action.KindForEachComplexComponent
}

func (f *ForEachComplexComponent) Perform(ctx context.Context, set *artifacts.Set, listener progress.Listener) error {
	if err := set.Validate(); err != nil {
		return configErrorf(f.Description(), "%v", err)
	}
	if set.Original.Components == 1 {
		return f.PerformChildren(ctx, set, listener)
	}
	for i, c := range f.Components {
		derive, err := componentFunc(c)
		if err != nil {
			return configErrorf(f.Description(), "%v", err)
		}
		sub := set.WithBuffers(
			deriveBuffer(set.Original, derive),
			deriveBuffer(set.Revised, derive),
			deriveBuffer(set.Contaminated, derive),
		)
		listener.OnStartTask(i, len(f.Components), string(c), 1)
		err = f.PerformChildren(ctx, sub, listener)
		listener.OnEndTask()
		if err != nil {
			return fmt.Errorf("%s: %w", c, err)
		}
		if err := orMasks(set.Contaminated.Masks, sub.Contaminated.Masks); err != nil {
			return configErrorf(f.Description(), "%v", err)
		}
		if c == ComponentReal || c == ComponentImaginary {
			if err := writeComponent(set.Revised, sub.Revised, c); err != nil {
				return configErrorf(f.Description(), "%v", err)
			}
			if err := writeComponent(set.Contaminated, sub.Contaminated, c); err != nil {
				return configErrorf(f.Description(), "%v", err)
			}
		}
	}
	return nil
}

func componentFunc(c Component) (func(re, im *tf.Image) *tf.Image, error) {
	switch c {
	case ComponentAmplitude:
		return tf.Amplitude, nil
	case ComponentPhase:
		return tf.Phase, nil
	case ComponentReal:
		return func(re, _ *tf.Image) *tf.Image { return re.Clone() }, nil
	case ComponentImaginary:
		return func(_, im *tf.Image) *tf.Image { return im.Clone() }, nil
	default:
		return nil, fmt.Errorf("unknown component %q", c)
	}
}

// deriveBuffer turns a complex buffer into a real valued one with its own
// copy of the masks.
func deriveBuffer(b *tf.Buffer, derive func(re, im *tf.Image) *tf.Image) *tf.Buffer {
	out := &tf.Buffer{
		Polarizations: b.Polarizations,
		Components:    1,
		Masks:         b.CloneMasks(),
	}
	for p := 0; p < b.Polarizations; p++ {
		out.Images = append(out.Images, derive(b.Images[2*p], b.Images[2*p+1]))
	}
	return out
}

func writeComponent(dst, src *tf.Buffer, c Component) error {
	if len(src.Images) != dst.Polarizations {
		return fmt.Errorf("expected %d images, got %d: %w", dst.Polarizations, len(src.Images), tf.ErrShapeMismatch)
	}
	offset := 0
	if c == ComponentImaginary {
		offset = 1
	}
	for p, im := range src.Images {
		dst.Images[2*p+offset] = im
	}
	return nil
}
