package export

import (
	"context"
	"errors"

	"github.com/hb9tf/rfiflag/pipeline"
)

// Multi hands every result to all of its sinks.
type Multi []pipeline.Sink

func (m Multi) Write(ctx context.Context, r pipeline.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Flush() error {
	var errs []error
	for _, s := range m {
		if f, ok := s.(pipeline.Flusher); ok {
			if err := f.Flush(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
