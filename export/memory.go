package export

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hb9tf/rfiflag/pipeline"
)

type pair struct {
	a1, a2 int
}

// Memory keeps the latest records of every baseline. It backs the HTTP API.
type Memory struct {
	RunID string

	mu      sync.RWMutex
	records map[pair][]Record
}

func (m *Memory) Write(ctx context.Context, r pipeline.Result) error {
	m.Add(Records(m.RunID, r, time.Now())...)
	return nil
}

func (m *Memory) WriteRecords(ctx context.Context, recs []Record) error {
	m.Add(recs...)
	return nil
}

// Add stores records as they are, replacing earlier ones for the same
// baseline and polarization.
func (m *Memory) Add(recs ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = map[pair][]Record{}
	}
	for _, rec := range recs {
		k := pair{rec.Antenna1, rec.Antenna2}
		stored := m.records[k]
		replaced := false
		for i := range stored {
			if stored[i].Polarization == rec.Polarization {
				stored[i] = rec
				replaced = true
			}
		}
		if !replaced {
			stored = append(stored, rec)
			sort.Slice(stored, func(i, j int) bool { return stored[i].Polarization < stored[j].Polarization })
		}
		m.records[k] = stored
	}
	exportedTotal.WithLabelValues("memory", "success").Add(float64(len(recs)))
}

// Get returns the records of one baseline.
func (m *Memory) Get(antenna1, antenna2 int) ([]Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs, ok := m.records[pair{antenna1, antenna2}]
	if !ok {
		return nil, false
	}
	return append([]Record(nil), recs...), true
}

// All returns every stored record ordered by baseline and polarization.
func (m *Memory) All() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []Record
	for _, recs := range m.records {
		all = append(all, recs...)
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Antenna1 != b.Antenna1 {
			return a.Antenna1 < b.Antenna1
		}
		if a.Antenna2 != b.Antenna2 {
			return a.Antenna2 < b.Antenna2
		}
		return a.Polarization < b.Polarization
	})
	return all
}

// Len is the number of baselines stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
