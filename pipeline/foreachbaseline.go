// Package pipeline drives a strategy subtree over many baselines: one reader
// goroutine loads baselines ahead into a bounded queue and a fixed pool of
// workers runs the subtree on each and hands the result to a sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/progress"
)

var (
	// ErrStopped is returned when the run was cancelled through its context.
	ErrStopped = errors.New("pipeline: stopped")
	// ErrNoSource is returned by a ForEachBaseline without a source.
	ErrNoSource = errors.New("pipeline: no baseline source")
)

// BaselineError tags the failure of one baseline.
type BaselineError struct {
	Baseline artifacts.Baseline
	Err      error
}

func (e *BaselineError) Error() string {
	return fmt.Sprintf("baseline %s: %s", e.Baseline, e.Err)
}

func (e *BaselineError) Unwrap() error {
	return e.Err
}

// Stats is a snapshot of a running or finished pipeline.
type Stats struct {
	Selected  int64 `json:"selected"`
	Loaded    int64 `json:"loaded"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	InFlight  int64 `json:"inFlight"`
}

// ForEachBaseline runs its children once per selected baseline of Source,
// concurrently on Threads workers, and writes every finished baseline to Sink.
//
// A failing baseline is reported to the listener's OnException exactly once
// and does not affect the others. With StopOnError it also stops the run: no
// new baseline starts, baselines already in flight finish. Failures of the
// source or the sink always stop the run. The listener must be safe for
// concurrent use.
type ForEachBaseline struct {
	action.Block `yaml:"-"`

	Selection Selection `yaml:"selection"`
	// Threads defaults to the number of CPUs.
	Threads int `yaml:"threads"`
	// MaxBuffered is the number of loaded baselines waiting for a worker
	// before the reader blocks. It defaults to Threads.
	MaxBuffered int  `yaml:"max-buffered"`
	StopOnError bool `yaml:"stop-on-error"`
	// SyncEvery runs the Sync hooks of the tree and flushes the sink after
	// every SyncEvery finished baselines; 0 disables it.
	SyncEvery int `yaml:"sync-every,omitempty"`

	// Filters narrow the selection further.
	Filters []Filterer `yaml:"-"`
	Source  Source     `yaml:"-"`
	Sink    Sink       `yaml:"-"`

	selected  atomic.Int64
	loaded    atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	inFlight  atomic.Int64
	finished  atomic.Int64

	syncMu sync.Mutex
}

func (f *ForEachBaseline) Description() string {
	return fmt.Sprintf("For each baseline (%s)", f.selection())
}

func (f *ForEachBaseline) Kind() action.Kind {
	return action.KindForEachBaseline
}

func (f *ForEachBaseline) selection() Selection {
	if f.Selection == "" {
		return SelectAll
	}
	return f.Selection
}

func (f *ForEachBaseline) threads() int {
	if f.Threads > 0 {
		return f.Threads
	}
	return runtime.NumCPU()
}

func (f *ForEachBaseline) Stats() Stats {
	return Stats{
		Selected:  f.selected.Load(),
		Loaded:    f.loaded.Load(),
		Succeeded: f.succeeded.Load(),
		Failed:    f.failed.Load(),
		InFlight:  f.inFlight.Load(),
	}
}

// Perform processes the selection. The baseline of set is the current
// baseline for the current and redundant policies; its sensitivity is handed
// to every loaded baseline. set may be nil when the pipeline is the root.
func (f *ForEachBaseline) Perform(ctx context.Context, set *artifacts.Set, listener progress.Listener) error {
	if f.Source == nil {
		return ErrNoSource
	}
	if set == nil {
		set = &artifacts.Set{Sensitivity: 1}
	}
	filters, err := f.selection().Filters(set.Baseline)
	if err != nil {
		return err
	}
	all, err := f.Source.Baselines(ctx)
	if err != nil {
		return fmt.Errorf("unable to list baselines: %w", err)
	}
	selected := Filter(all, append(filters, f.Filters...))

	f.selected.Store(int64(len(selected)))
	for _, c := range []*atomic.Int64{&f.loaded, &f.succeeded, &f.failed, &f.inFlight, &f.finished} {
		c.Store(0)
	}
	threads := f.threads()
	buffered := f.MaxBuffered
	if buffered < 1 {
		buffered = threads
	}
	glog.Infof("Flagging %d of %d baselines with %d workers (buffer %d)", len(selected), len(all), threads, buffered)

	q := newQueue(buffered)
	stop := context.AfterFunc(ctx, func() {
		q.Fail(ErrStopped)
	})
	defer stop()

	var g errgroup.Group
	g.Go(func() error {
		return f.read(ctx, q, set, selected)
	})
	for i := 0; i < threads; i++ {
		g.Go(func() error {
			return f.work(ctx, q, listener, len(selected))
		})
	}
	err = g.Wait()
	if ferr := f.flush(); ferr != nil && err == nil {
		err = ferr
	}
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", ErrStopped, ctx.Err())
	}
	glog.Infof("Flagging finished: %+v", f.Stats())
	return err
}

func (f *ForEachBaseline) read(ctx context.Context, q *queue, parent *artifacts.Set, baselines []artifacts.Baseline) error {
	defer q.Close()
	for _, b := range baselines {
		if ctx.Err() != nil || q.Err() != nil {
			return nil
		}
		set, err := f.Source.Load(ctx, b)
		if err != nil {
			err = fmt.Errorf("unable to load baseline %s: %w", b, err)
			q.Fail(err)
			return err
		}
		set.Baseline = b
		if parent.Sensitivity > 0 {
			set.Sensitivity = parent.Sensitivity
		}
		f.loaded.Add(1)
		if !q.Push(set) {
			return nil
		}
	}
	return nil
}

func (f *ForEachBaseline) work(ctx context.Context, q *queue, listener progress.Listener, total int) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		set, ok := q.Pop()
		if !ok {
			return nil
		}
		f.inFlight.Add(1)
		err := f.process(ctx, set, listener)
		f.inFlight.Add(-1)

		if err != nil {
			f.failed.Add(1)
			listener.OnException(err)
			if f.StopOnError {
				q.Fail(err)
				return err
			}
		} else {
			f.succeeded.Add(1)
			result := NewResult(set)
			flaggedRatio.Observe(result.FlaggedRatio())
			if f.Sink != nil {
				if err := f.Sink.Write(ctx, result); err != nil {
					err = fmt.Errorf("unable to write baseline %s: %w", set.Baseline, err)
					q.Fail(err)
					return err
				}
			}
		}

		n := f.finished.Add(1)
		listener.OnProgress(int(n), total)
		if f.SyncEvery > 0 && n%int64(f.SyncEvery) == 0 {
			f.sync()
		}
	}
}

// process runs the children on one baseline and converts failures, panics
// included, into a BaselineError.
func (f *ForEachBaseline) process(ctx context.Context, set *artifacts.Set, listener progress.Listener) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			baselinesTotal.WithLabelValues("panic").Inc()
			err = &BaselineError{Baseline: set.Baseline, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	glog.V(1).Infof("Flagging baseline %s", set.Baseline)
	if err := f.PerformChildren(ctx, set, progress.ExceptionsOnly{Next: listener}); err != nil {
		baselinesTotal.WithLabelValues("failure").Inc()
		return &BaselineError{Baseline: set.Baseline, Err: err}
	}
	baselineDuration.Observe(time.Since(start).Seconds())
	baselinesTotal.WithLabelValues("success").Inc()
	glog.V(2).Infof("Baseline %s done in %s", set.Baseline, time.Since(start))
	return nil
}

func (f *ForEachBaseline) sync() {
	f.syncMu.Lock()
	defer f.syncMu.Unlock()
	if err := action.Sync(f); err != nil {
		glog.Warningf("error syncing strategy: %s", err)
	}
	if fl, ok := f.Sink.(Flusher); ok {
		if err := fl.Flush(); err != nil {
			glog.Warningf("error flushing sink: %s", err)
		}
	}
}

func (f *ForEachBaseline) flush() error {
	f.syncMu.Lock()
	defer f.syncMu.Unlock()
	if fl, ok := f.Sink.(Flusher); ok {
		if err := fl.Flush(); err != nil {
			return fmt.Errorf("unable to flush sink: %w", err)
		}
	}
	return nil
}
