package actions

import (
	"context"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/progress"
	"github.com/hb9tf/rfiflag/tf"
)

// funcAction adapts a closure to the action contract.
type funcAction struct {
	name string
	fn   func(set *artifacts.Set) error
}

func (f *funcAction) Description() string { return f.name }
func (f *funcAction) Kind() action.Kind   { return action.Kind("test") }

func (f *funcAction) Perform(ctx context.Context, set *artifacts.Set, listener progress.Listener) error {
	return f.fn(set)
}

func newTestSet(rows [][]float64) *artifacts.Set {
	return artifacts.New(tf.NewSingleImageBuffer(tf.NewImageFromRows(rows), nil), nil)
}

func constantRows(width, height int, v float64) [][]float64 {
	rows := make([][]float64, height)
	for y := range rows {
		rows[y] = make([]float64, width)
		for x := range rows[y] {
			rows[y][x] = v
		}
	}
	return rows
}

func perform(a action.Action, set *artifacts.Set) error {
	return a.Perform(context.Background(), set, progress.Discard{})
}

func newSetFromBuffer(b *tf.Buffer) *artifacts.Set {
	return artifacts.New(b, nil)
}
