// Package export writes the flags produced by the pipeline to files,
// databases and remote servers. Every exporter implements pipeline.Sink.
package export

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hb9tf/rfiflag/pipeline"
	"github.com/hb9tf/rfiflag/tf"
)

// ErrBadMask is returned when an encoded mask does not match its dimensions.
var ErrBadMask = errors.New("export: malformed mask")

// Record is the exported summary of one polarization of one baseline.
type Record struct {
	RunID        string    `json:"runId"`
	Antenna1     int       `json:"antenna1"`
	Antenna2     int       `json:"antenna2"`
	Polarization int       `json:"polarization"`
	TimeSteps    int       `json:"timeSteps"`
	Channels     int       `json:"channels"`
	Flagged      int       `json:"flagged"`
	Ratio        float64   `json:"ratio"`
	Mask         string    `json:"mask"`
	Created      time.Time `json:"created"`
}

// RecordWriter stores records that were already flattened, e.g. by a remote
// flagger.
type RecordWriter interface {
	WriteRecords(ctx context.Context, recs []Record) error
}

// NewRunID returns an identifier tying together everything exported by one run.
func NewRunID() string {
	return uuid.NewString()
}

// Records flattens r into one record per polarization.
func Records(runID string, r pipeline.Result, created time.Time) []Record {
	recs := make([]Record, 0, len(r.Masks))
	for p, m := range r.Masks {
		recs = append(recs, Record{
			RunID:        runID,
			Antenna1:     r.Baseline.Antenna1,
			Antenna2:     r.Baseline.Antenna2,
			Polarization: p,
			TimeSteps:    m.Width,
			Channels:     m.Height,
			Flagged:      m.Count(),
			Ratio:        m.Ratio(),
			Mask:         EncodeMask(m),
			Created:      created,
		})
	}
	return recs
}

// EncodeMask run-length encodes m in storage order. Runs alternate between
// unflagged and flagged, starting with unflagged, so "3,2" is three clear
// samples followed by two flagged ones.
func EncodeMask(m *tf.Mask) string {
	var sb strings.Builder
	state, run := false, 0
	for _, v := range m.Data {
		if v == state {
			run++
			continue
		}
		sb.WriteString(strconv.Itoa(run))
		sb.WriteByte(',')
		state, run = v, 1
	}
	sb.WriteString(strconv.Itoa(run))
	return sb.String()
}

// MaxMaskSamples bounds the size of a decoded mask.
const MaxMaskSamples = 1 << 26

// DecodeMask reverses EncodeMask.
func DecodeMask(s string, width, height int) (*tf.Mask, error) {
	if width < 1 || height < 1 || width > MaxMaskSamples/height {
		return nil, fmt.Errorf("%dx%d mask outside 1..%d samples: %w", width, height, MaxMaskSamples, ErrBadMask)
	}
	m := tf.NewMask(width, height)
	pos, state := 0, false
	for _, field := range strings.Split(s, ",") {
		n, err := strconv.Atoi(field)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("run %q: %w", field, ErrBadMask)
		}
		if pos+n > len(m.Data) {
			return nil, fmt.Errorf("%d samples for a %dx%d mask: %w", pos+n, width, height, ErrBadMask)
		}
		for i := pos; i < pos+n; i++ {
			m.Data[i] = state
		}
		pos += n
		state = !state
	}
	if pos != len(m.Data) {
		return nil, fmt.Errorf("%d samples for a %dx%d mask: %w", pos, width, height, ErrBadMask)
	}
	return m, nil
}
