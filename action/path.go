package action

import (
	"errors"
	"fmt"
)

// ErrStop can be returned by a WalkFunc to end a walk early without error.
var ErrStop = errors.New("action: stop walk")

// Path addresses a node by the child indices leading to it from the root. The
// tree keeps no upward pointers; a node's parent is found by resolving the
// path minus its last element.
type Path []int

func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

func (p Path) String() string {
	return fmt.Sprint([]int(p))
}

// WalkFunc is called for every node in depth-first pre-order.
type WalkFunc func(p Path, a Action) error

// Walk visits root and its descendants. Recursion follows child lists only.
func Walk(root Action, fn WalkFunc) error {
	err := walk(Path{}, root, fn)
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}

func walk(p Path, a Action, fn WalkFunc) error {
	if err := fn(p, a); err != nil {
		return err
	}
	c, ok := a.(Container)
	if !ok {
		return nil
	}
	for i, child := range c.Children() {
		childPath := append(append(Path{}, p...), i)
		if err := walk(childPath, child, fn); err != nil {
			return err
		}
	}
	return nil
}

// Resolve returns the node at p.
func Resolve(root Action, p Path) (Action, error) {
	cur := root
	for depth, i := range p {
		c, ok := cur.(Container)
		if !ok {
			return nil, fmt.Errorf("%q at %v: %w", cur.Description(), p[:depth], ErrNotContainer)
		}
		children := c.Children()
		if i < 0 || i >= len(children) {
			return nil, fmt.Errorf("child %d of %q: %w", i, cur.Description(), ErrIndex)
		}
		cur = children[i]
	}
	return cur, nil
}

// Locate finds the path of target inside root.
func Locate(root, target Action) (Path, bool) {
	var found Path
	Walk(root, func(p Path, a Action) error {
		if a == target {
			found = p
			return ErrStop
		}
		return nil
	})
	return found, found != nil
}

// Parent returns the container holding the node at p.
func Parent(root Action, p Path) (Container, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("root has no parent: %w", ErrIndex)
	}
	a, err := Resolve(root, p.Parent())
	if err != nil {
		return nil, err
	}
	c, ok := a.(Container)
	if !ok {
		return nil, fmt.Errorf("%q: %w", a.Description(), ErrNotContainer)
	}
	return c, nil
}

// Relocate detaches the node at from and inserts it into the container at
// toParent at position index.
func Relocate(root Action, from, toParent Path, index int) error {
	src, err := Parent(root, from)
	if err != nil {
		return err
	}
	dstNode, err := Resolve(root, toParent)
	if err != nil {
		return err
	}
	dst, ok := dstNode.(Container)
	if !ok {
		return fmt.Errorf("%q: %w", dstNode.Description(), ErrNotContainer)
	}
	node, err := Resolve(root, from)
	if err != nil {
		return err
	}
	if p, ok := Locate(node, dstNode); ok {
		return fmt.Errorf("cannot move %q below itself (%v): %w", node.Description(), p, ErrIndex)
	}
	if _, err := src.Remove(from[len(from)-1]); err != nil {
		return err
	}
	if err := dst.Insert(index, node); err != nil {
		return errors.Join(err, src.Insert(from[len(from)-1], node))
	}
	return nil
}
