// Package progress defines how actions report nested progress and failures.
package progress

import (
	"sync"

	"github.com/golang/glog"
)

// Listener receives progress and failure reports from the action tree.
// Containers bracket every child with OnStartTask/OnEndTask.
type Listener interface {
	OnStartTask(taskIndex, taskCount int, description string, weight float64)
	OnEndTask()
	OnProgress(done, total int)
	OnException(err error)
}

// Discard drops every report.
type Discard struct{}

func (Discard) OnStartTask(int, int, string, float64) {}
func (Discard) OnEndTask()                            {}
func (Discard) OnProgress(int, int)                   {}
func (Discard) OnException(error)                     {}

// Multi fans every report out to several listeners.
type Multi []Listener

func (m Multi) OnStartTask(taskIndex, taskCount int, description string, weight float64) {
	for _, l := range m {
		l.OnStartTask(taskIndex, taskCount, description, weight)
	}
}

func (m Multi) OnEndTask() {
	for _, l := range m {
		l.OnEndTask()
	}
}

func (m Multi) OnProgress(done, total int) {
	for _, l := range m {
		l.OnProgress(done, total)
	}
}

func (m Multi) OnException(err error) {
	for _, l := range m {
		l.OnException(err)
	}
}

// ExceptionsOnly forwards failures and drops progress. Workers hand it to
// per-baseline subtrees so that concurrent task stacks do not interleave.
type ExceptionsOnly struct {
	Next Listener
}

func (ExceptionsOnly) OnStartTask(int, int, string, float64) {}
func (ExceptionsOnly) OnEndTask()                            {}
func (ExceptionsOnly) OnProgress(int, int)                   {}

func (e ExceptionsOnly) OnException(err error) {
	if e.Next != nil {
		e.Next.OnException(err)
	}
}

// LogListener writes task boundaries and failures to glog.
type LogListener struct {
	mu    sync.Mutex
	depth int
}

func (l *LogListener) OnStartTask(taskIndex, taskCount int, description string, weight float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	glog.V(2).Infof("%*s[%d/%d] %s", l.depth*2, "", taskIndex+1, taskCount, description)
	l.depth++
}

func (l *LogListener) OnEndTask() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.depth > 0 {
		l.depth--
	}
}

func (l *LogListener) OnProgress(done, total int) {
	glog.V(3).Infof("progress %d/%d", done, total)
}

func (l *LogListener) OnException(err error) {
	glog.Errorf("strategy failure: %s", err)
}
