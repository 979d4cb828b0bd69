package progress

import "sync"

type frame struct {
	index       int
	count       int
	weight      float64
	description string
}

// Tracker turns nested task reports into one completion fraction. Every open
// task occupies index/count of its parent's share, scaled by its weight.
type Tracker struct {
	mu         sync.Mutex
	stack      []frame
	done       int
	total      int
	exceptions []error
}

func (t *Tracker) OnStartTask(taskIndex, taskCount int, description string, weight float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if taskCount < 1 {
		taskCount = 1
	}
	if weight <= 0 {
		weight = 1
	}
	t.stack = append(t.stack, frame{index: taskIndex, count: taskCount, weight: weight, description: description})
	t.done, t.total = 0, 0
}

func (t *Tracker) OnEndTask() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.stack) > 0 {
		t.stack = t.stack[:len(t.stack)-1]
	}
	t.done, t.total = 0, 0
}

func (t *Tracker) OnProgress(done, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done, t.total = done, total
}

func (t *Tracker) OnException(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exceptions = append(t.exceptions, err)
}

// Fraction returns the overall completion in [0, 1].
func (t *Tracker) Fraction() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var f float64
	scale := 1.0
	for _, fr := range t.stack {
		f += scale * float64(fr.index) / float64(fr.count)
		scale *= fr.weight / float64(fr.count)
	}
	if t.total > 0 {
		f += scale * float64(t.done) / float64(t.total)
	}
	if f > 1 {
		f = 1
	}
	return f
}

// Task returns the description of the innermost open task.
func (t *Tracker) Task() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.stack) == 0 {
		return ""
	}
	return t.stack[len(t.stack)-1].description
}

// Exceptions returns every failure reported so far.
func (t *Tracker) Exceptions() []error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]error(nil), t.exceptions...)
}
