package action

import "fmt"

// Initializer is implemented by actions that hold state across baselines and
// must prepare it before a run.
type Initializer interface {
	Initialize() error
}

// Finisher is implemented by actions that flush state after a run.
type Finisher interface {
	Finish() error
}

// Syncer is implemented by actions that flush buffered output periodically
// during a run.
type Syncer interface {
	Sync() error
}

// Initialize calls Initialize on every action of the tree, parents first.
func Initialize(root Action) error {
	return Walk(root, func(p Path, a Action) error {
		if i, ok := a.(Initializer); ok {
			if err := i.Initialize(); err != nil {
				return fmt.Errorf("unable to initialize %q at %v: %w", a.Description(), p, err)
			}
		}
		return nil
	})
}

// Finish calls Finish on every action of the tree.
func Finish(root Action) error {
	return Walk(root, func(p Path, a Action) error {
		if f, ok := a.(Finisher); ok {
			if err := f.Finish(); err != nil {
				return fmt.Errorf("unable to finish %q at %v: %w", a.Description(), p, err)
			}
		}
		return nil
	})
}

// Sync calls Sync on every action of the tree.
func Sync(root Action) error {
	return Walk(root, func(p Path, a Action) error {
		if s, ok := a.(Syncer); ok {
			if err := s.Sync(); err != nil {
				return fmt.Errorf("unable to sync %q at %v: %w", a.Description(), p, err)
			}
		}
		return nil
	})
}
