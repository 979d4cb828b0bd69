// Package action defines the interpreter contract of a flagging strategy: a
// tree of actions performed against an artifacts.Set.
package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/progress"
)

var (
	// ErrIndex is returned when a child position does not exist.
	ErrIndex = errors.New("action: child index out of range")
	// ErrNotContainer is returned when a path descends through a leaf.
	ErrNotContainer = errors.New("action: not a container")
)

// Action transforms a set in place. Implementations must not keep references to
// the set or its buffers after Perform returns.
type Action interface {
	Description() string
	Kind() Kind
	Perform(ctx context.Context, set *artifacts.Set, listener progress.Listener) error
}

// Container is an action that owns an ordered list of children and decides
// how to recurse into them.
type Container interface {
	Action
	Children() []Action
	Add(child Action)
	Insert(i int, child Action) error
	Remove(i int) (Action, error)
	Move(from, to int) error
}

// Block is embedded by containers. It owns the children and performs them in
// order.
type Block struct {
	children []Action
}

func (b *Block) Children() []Action {
	return b.children
}

func (b *Block) Add(child Action) {
	b.children = append(b.children, child)
}

func (b *Block) Insert(i int, child Action) error {
	if i < 0 || i > len(b.children) {
		return fmt.Errorf("insert at %d of %d: %w", i, len(b.children), ErrIndex)
	}
	b.children = append(b.children, nil)
	copy(b.children[i+1:], b.children[i:])
	b.children[i] = child
	return nil
}

func (b *Block) Remove(i int) (Action, error) {
	if i < 0 || i >= len(b.children) {
		return nil, fmt.Errorf("remove %d of %d: %w", i, len(b.children), ErrIndex)
	}
	child := b.children[i]
	b.children = append(b.children[:i], b.children[i+1:]...)
	return child, nil
}

func (b *Block) Move(from, to int) error {
	child, err := b.Remove(from)
	if err != nil {
		return err
	}
	if err := b.Insert(to, child); err != nil {
		// Put it back where it was.
		return errors.Join(err, b.Insert(from, child))
	}
	return nil
}

// PerformChildren runs every child in order against set and stops at the
// first failure.
func (b *Block) PerformChildren(ctx context.Context, set *artifacts.Set, listener progress.Listener) error {
	for i, child := range b.children {
		listener.OnStartTask(i, len(b.children), child.Description(), 1)
		err := child.Perform(ctx, set, listener)
		listener.OnEndTask()
		if err != nil {
			return fmt.Errorf("%s: %w", child.Description(), err)
		}
	}
	return nil
}

// Sequence is the plain container: it performs its children in order.
type Sequence struct {
	Block
	Name string
}

func NewSequence(name string, children ...Action) *Sequence {
	s := &Sequence{Name: name}
	for _, c := range children {
		s.Add(c)
	}
	return s
}

func (s *Sequence) Description() string {
	if s.Name == "" {
		return "Sequence"
	}
	return s.Name
}

func (s *Sequence) Kind() Kind {
	return KindSequence
}

func (s *Sequence) Perform(ctx context.Context, set *artifacts.Set, listener progress.Listener) error {
	return s.PerformChildren(ctx, set, listener)
}
