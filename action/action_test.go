package action

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/progress"
	"github.com/hb9tf/rfiflag/tf"
)

type recorder struct {
	name  string
	log   *[]string
	err   error
	inits int
}

func (r *recorder) Description() string { return r.name }
func (r *recorder) Kind() Kind          { return Kind("test") }
func (r *recorder) Perform(ctx context.Context, set *artifacts.Set, listener progress.Listener) error {
	*r.log = append(*r.log, r.name)
	return r.err
}
func (r *recorder) Initialize() error {
	r.inits++
	return nil
}

func newSet() *artifacts.Set {
	return artifacts.New(tf.NewBuffer(2, 2, 1, 1, true), nil)
}

func TestSequencePerformsInOrder(t *testing.T) {
	var log []string
	seq := NewSequence("root",
		&recorder{name: "a", log: &log},
		NewSequence("nested", &recorder{name: "b", log: &log}),
		&recorder{name: "c", log: &log},
	)
	tr := &progress.Tracker{}
	if err := seq.Perform(context.Background(), newSet(), tr); err != nil {
		t.Fatalf("Perform() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, log); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if tr.Task() != "" {
		t.Errorf("task stack not unwound: %q", tr.Task())
	}
}

func TestSequenceStopsAtFailure(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	seq := NewSequence("root",
		&recorder{name: "a", log: &log, err: boom},
		&recorder{name: "b", log: &log},
	)
	err := seq.Perform(context.Background(), newSet(), progress.Discard{})
	if !errors.Is(err, boom) {
		t.Fatalf("Perform() error = %v, want boom", err)
	}
	if diff := cmp.Diff([]string{"a"}, log); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestBlockEditing(t *testing.T) {
	var log []string
	a, b, c := &recorder{name: "a", log: &log}, &recorder{name: "b", log: &log}, &recorder{name: "c", log: &log}
	seq := NewSequence("root", a, b)
	if err := seq.Insert(1, c); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := seq.Move(0, 2); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	seq.Perform(context.Background(), newSet(), progress.Discard{})
	if diff := cmp.Diff([]string{"c", "b", "a"}, log); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if _, err := seq.Remove(3); !errors.Is(err, ErrIndex) {
		t.Errorf("Remove(3) error = %v, want ErrIndex", err)
	}
	if err := seq.Insert(-1, a); !errors.Is(err, ErrIndex) {
		t.Errorf("Insert(-1) error = %v, want ErrIndex", err)
	}

	// A failed move leaves the children where they were.
	if err := seq.Move(0, 5); !errors.Is(err, ErrIndex) {
		t.Errorf("Move(0, 5) error = %v, want ErrIndex", err)
	}
	children := seq.Children()
	if len(children) != 3 || children[0] != c || children[1] != b || children[2] != a {
		t.Errorf("children after failed move = %v, want c, b, a", children)
	}
}

func TestPathNavigation(t *testing.T) {
	var log []string
	leaf := &recorder{name: "leaf", log: &log}
	inner := NewSequence("inner", &recorder{name: "x", log: &log}, leaf)
	other := NewSequence("other")
	root := NewSequence("root", inner, other)

	p, ok := Locate(root, leaf)
	if !ok {
		t.Fatalf("Locate() did not find leaf")
	}
	if diff := cmp.Diff(Path{0, 1}, p); diff != "" {
		t.Errorf("Locate() mismatch (-want +got):\n%s", diff)
	}
	parent, err := Parent(root, p)
	if err != nil || parent != Container(inner) {
		t.Fatalf("Parent() = %v, %v", parent, err)
	}

	if err := Relocate(root, p, Path{1}, 0); err != nil {
		t.Fatalf("Relocate() error = %v", err)
	}
	if p, _ := Locate(root, leaf); !cmp.Equal(Path{1, 0}, p) {
		t.Errorf("leaf now at %v, want [1 0]", p)
	}
	if err := Relocate(root, Path{0}, Path{0}, 0); !errors.Is(err, ErrIndex) {
		t.Errorf("moving a node below itself should fail, got %v", err)
	}
	if _, err := Resolve(root, Path{1, 0, 0}); !errors.Is(err, ErrNotContainer) {
		t.Errorf("Resolve() through a leaf error = %v", err)
	}
}

func TestInitializeWalksTree(t *testing.T) {
	var log []string
	a, b := &recorder{name: "a", log: &log}, &recorder{name: "b", log: &log}
	root := NewSequence("root", a, NewSequence("n", b))
	if err := Initialize(root); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if a.inits != 1 || b.inits != 1 {
		t.Errorf("Initialize() calls = %d, %d", a.inits, b.inits)
	}
	if err := Finish(root); err != nil {
		t.Errorf("Finish() error = %v", err)
	}
}
