// Package actions implements the operators a strategy tree is built from. Each
// file holds one operator kind; tunables are exported fields so that the
// strategy loader can fill them from YAML.
package actions

import (
	"errors"
	"fmt"

	"github.com/hb9tf/rfiflag/tf"
)

// ErrConfiguration is wrapped by every ConfigError.
var ErrConfiguration = errors.New("actions: configuration error")

// ConfigError reports data or parameters that violate an operator's
// precondition. It is fatal for the baseline being processed.
type ConfigError struct {
	Action string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

func configErrorf(action, format string, args ...any) error {
	return &ConfigError{Action: action, Reason: fmt.Sprintf(format, args...)}
}

// orMasks merges src into dst, adapting a single mask to several and the
// other way round.
func orMasks(dst, src []*tf.Mask) error {
	switch {
	case len(src) == len(dst):
		for i, m := range src {
			if err := dst[i].Or(m); err != nil {
				return err
			}
		}
	case len(src) == 1:
		for _, d := range dst {
			if err := d.Or(src[0]); err != nil {
				return err
			}
		}
	case len(dst) == 1:
		for _, m := range src {
			if err := dst[0].Or(m); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("cannot merge %d masks into %d: %w", len(src), len(dst), tf.ErrShapeMismatch)
	}
	return nil
}

// difference computes original - revised for every image pair.
func difference(original, revised *tf.Buffer) ([]*tf.Image, error) {
	if len(original.Images) != len(revised.Images) {
		return nil, fmt.Errorf("%d original images vs %d revised: %w", len(original.Images), len(revised.Images), tf.ErrShapeMismatch)
	}
	out := make([]*tf.Image, len(original.Images))
	for i, im := range original.Images {
		d, err := im.Subtract(revised.Images[i])
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}
