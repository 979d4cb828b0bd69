package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/progress"
	"github.com/hb9tf/rfiflag/tf"
)

var errBoom = errors.New("boom")

type fakeSource struct {
	baselines []artifacts.Baseline
	loadErr   map[int]error
	loads     atomic.Int64
}

func newFakeSource(n int) *fakeSource {
	s := &fakeSource{}
	for i := 0; i < n; i++ {
		s.baselines = append(s.baselines, artifacts.Baseline{Antenna1: 0, Antenna2: i, Length: float64(i)})
	}
	return s
}

func (s *fakeSource) Baselines(ctx context.Context) ([]artifacts.Baseline, error) {
	return s.baselines, nil
}

func (s *fakeSource) Load(ctx context.Context, b artifacts.Baseline) (*artifacts.Set, error) {
	s.loads.Add(1)
	if err := s.loadErr[b.Antenna2]; err != nil {
		return nil, err
	}
	im := tf.NewImage(8, 4)
	im.Set(b.Antenna2%8, 1, 100)
	return artifacts.New(tf.NewSingleImageBuffer(im, nil), nil), nil
}

type memSink struct {
	mu      sync.Mutex
	results map[artifacts.Baseline]Result
	flushes int
	err     error
}

func (s *memSink) Write(ctx context.Context, r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.results == nil {
		s.results = map[artifacts.Baseline]Result{}
	}
	s.results[r.Baseline] = r
	return nil
}

func (s *memSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *memSink) has(antenna2 int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for b := range s.results {
		if b.Antenna2 == antenna2 {
			return true
		}
	}
	return false
}

type exceptionRecorder struct {
	progress.Discard
	mu   sync.Mutex
	errs []error
}

func (r *exceptionRecorder) OnException(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

type funcAction struct {
	fn func(set *artifacts.Set) error
}

func (f *funcAction) Description() string { return "func" }
func (f *funcAction) Kind() action.Kind   { return action.Kind("test") }

func (f *funcAction) Perform(ctx context.Context, set *artifacts.Set, listener progress.Listener) error {
	return f.fn(set)
}

// flagPeaks flags every sample above 50 and fails on the given baseline.
func flagPeaks(failOn int) *funcAction {
	return &funcAction{fn: func(set *artifacts.Set) error {
		if set.Baseline.Antenna2 == failOn {
			return errBoom
		}
		for i, v := range set.Contaminated.Images[0].Data {
			if v > 50 {
				set.Contaminated.Masks[0].Data[i] = true
			}
		}
		return nil
	}}
}

func TestForEachBaselineIsolatesFailures(t *testing.T) {
	src := newFakeSource(50)
	sink := &memSink{}
	rec := &exceptionRecorder{}
	fb := &ForEachBaseline{Threads: 4, MaxBuffered: 3, Source: src, Sink: sink}
	fb.Add(flagPeaks(7))

	err := fb.Perform(context.Background(), nil, rec)
	require.NoError(t, err)

	assert.Len(t, sink.results, 49)
	assert.False(t, sink.has(7))
	for b, r := range sink.results {
		require.Len(t, r.Masks, 1)
		assert.Equal(t, 1, r.Masks[0].Count(), "baseline %s", b)
	}

	require.Len(t, rec.errs, 1)
	var be *BaselineError
	require.ErrorAs(t, rec.errs[0], &be)
	assert.Equal(t, 7, be.Baseline.Antenna2)
	assert.ErrorIs(t, rec.errs[0], errBoom)

	assert.Equal(t, Stats{Selected: 50, Loaded: 50, Succeeded: 49, Failed: 1}, fb.Stats())
	assert.GreaterOrEqual(t, sink.flushes, 1)
}

func TestForEachBaselineStopOnError(t *testing.T) {
	src := newFakeSource(50)
	sink := &memSink{}
	rec := &exceptionRecorder{}
	fb := &ForEachBaseline{Threads: 1, MaxBuffered: 1, StopOnError: true, Source: src, Sink: sink}
	fb.Add(flagPeaks(7))

	err := fb.Perform(context.Background(), nil, rec)
	require.ErrorIs(t, err, errBoom)
	assert.Len(t, rec.errs, 1)
	assert.Len(t, sink.results, 7)
	assert.Less(t, src.loads.Load(), int64(50))
}

func TestForEachBaselineRecoversPanics(t *testing.T) {
	sink := &memSink{}
	rec := &exceptionRecorder{}
	fb := &ForEachBaseline{Threads: 2, Source: newFakeSource(5), Sink: sink}
	fb.Add(&funcAction{fn: func(set *artifacts.Set) error {
		if set.Baseline.Antenna2 == 3 {
			panic("index out of range")
		}
		return nil
	}})

	require.NoError(t, fb.Perform(context.Background(), nil, rec))
	assert.Len(t, sink.results, 4)
	require.Len(t, rec.errs, 1)
	assert.Contains(t, rec.errs[0].Error(), "panic")
}

func TestForEachBaselineSourceFailureStopsRun(t *testing.T) {
	src := newFakeSource(10)
	src.loadErr = map[int]error{4: errBoom}
	sink := &memSink{}
	fb := &ForEachBaseline{Threads: 2, Source: src, Sink: sink}
	fb.Add(flagPeaks(-1))

	err := fb.Perform(context.Background(), nil, &exceptionRecorder{})
	require.ErrorIs(t, err, errBoom)
	assert.LessOrEqual(t, len(sink.results), 4)
	assert.Equal(t, int64(5), src.loads.Load())
}

func TestForEachBaselineSinkFailureStopsRun(t *testing.T) {
	sink := &memSink{err: errBoom}
	fb := &ForEachBaseline{Threads: 2, Source: newFakeSource(10), Sink: sink}
	fb.Add(flagPeaks(-1))

	err := fb.Perform(context.Background(), nil, &exceptionRecorder{})
	require.ErrorIs(t, err, errBoom)
}

func TestForEachBaselineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fb := &ForEachBaseline{Threads: 2, Source: newFakeSource(10), Sink: &memSink{}}
	fb.Add(flagPeaks(-1))

	err := fb.Perform(ctx, nil, progress.Discard{})
	require.ErrorIs(t, err, ErrStopped)
	require.ErrorIs(t, err, context.Canceled)
}

func TestForEachBaselineAppliesBackpressure(t *testing.T) {
	src := newFakeSource(20)
	release := make(chan struct{})
	fb := &ForEachBaseline{Threads: 1, MaxBuffered: 2, Source: src, Sink: &memSink{}}
	fb.Add(&funcAction{fn: func(*artifacts.Set) error {
		<-release
		return nil
	}})

	done := make(chan error, 1)
	go func() {
		done <- fb.Perform(context.Background(), nil, progress.Discard{})
	}()

	// One baseline in flight, two queued and one held by the blocked reader.
	require.Eventually(t, func() bool { return src.loads.Load() == 4 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(4), src.loads.Load())
	assert.Equal(t, int64(1), fb.Stats().InFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int64(20), fb.Stats().Succeeded)
}

func TestForEachBaselinePassesSensitivity(t *testing.T) {
	var mu sync.Mutex
	var seen []float64
	fb := &ForEachBaseline{Threads: 2, Source: newFakeSource(3)}
	fb.Add(&funcAction{fn: func(set *artifacts.Set) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, set.Sensitivity)
		return nil
	}})
	parent := &artifacts.Set{Sensitivity: 0.5}
	require.NoError(t, fb.Perform(context.Background(), parent, progress.Discard{}))
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, seen)
}

func TestForEachBaselineSyncEvery(t *testing.T) {
	sink := &memSink{}
	fb := &ForEachBaseline{Threads: 1, SyncEvery: 3, Source: newFakeSource(9), Sink: sink}
	fb.Add(flagPeaks(-1))
	require.NoError(t, fb.Perform(context.Background(), nil, progress.Discard{}))
	// Three periodic flushes plus the final one.
	assert.Equal(t, 4, sink.flushes)
}

func TestForEachBaselineWithoutSource(t *testing.T) {
	err := (&ForEachBaseline{}).Perform(context.Background(), nil, progress.Discard{})
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestForEachBaselineSelection(t *testing.T) {
	src := &fakeSource{baselines: []artifacts.Baseline{
		{Antenna1: 0, Antenna2: 0},
		{Antenna1: 0, Antenna2: 1},
		{Antenna1: 1, Antenna2: 1},
		{Antenna1: 1, Antenna2: 2},
	}}
	sink := &memSink{}
	fb := &ForEachBaseline{Threads: 2, Selection: SelectAuto, Source: src, Sink: sink}
	fb.Add(flagPeaks(-1))
	require.NoError(t, fb.Perform(context.Background(), nil, progress.Discard{}))
	assert.Len(t, sink.results, 2)
	for b := range sink.results {
		assert.True(t, b.IsAutoCorrelation(), fmt.Sprint(b))
	}
}
