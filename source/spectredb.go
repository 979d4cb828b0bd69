package source

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/tf"
)

const (
	// SpectreSchema is the table the spectre collector writes.
	SpectreSchema = `CREATE TABLE IF NOT EXISTS spectre (
		"ID"           INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		"Identifier"   TEXT NOT NULL,
		"Source"       TEXT NOT NULL,
		"FreqCenter"   INTEGER,
		"FreqLow"      INTEGER,
		"FreqHigh"     INTEGER,
		"DBHigh"       REAL,
		"DBLow"        REAL,
		"DBAvg"        REAL,
		"SampleCount"  INTEGER,
		"Start"        INTEGER,
		"End"          INTEGER
	);`

	getReceiversTmpl = `SELECT DISTINCT
			Source,
			Identifier
		FROM
			spectre
		WHERE
			Source LIKE ?
			AND Identifier LIKE ?
			AND FreqLow >= ?
			AND FreqHigh <= ?
			AND Start >= ?
			AND End <= ?
		ORDER BY
			Source ASC,
			Identifier ASC;`
	// The frequency centers stay the same across a run, so the number of
	// distinct centers is the maximum number of channels.
	getChannelCountTmpl = `SELECT
			COUNT(DISTINCT(FreqCenter))
		FROM
			spectre
		WHERE
			Source = ?
			AND Identifier = ?
			AND FreqLow >= ?
			AND FreqHigh <= ?
			AND Start >= ?
			AND End <= ?;`
	// Timestamps differ per frequency; count those of the lowest one.
	getTimeStepCountTmpl = `SELECT
			COUNT(DISTINCT(Start))
		FROM
			spectre AS s
		WHERE
			s.FreqCenter = (
				SELECT
					MIN(FreqCenter)
				FROM
					spectre
				WHERE
					Source = ?
					AND Identifier = ?
					AND FreqLow >= ?
					AND FreqHigh <= ?
					AND Start >= ?
					AND End <= ?
			)
			AND Source = ?
			AND Identifier = ?
			AND Start >= ?
			AND End <= ?;`
	getBucketsTmpl = `SELECT
			AVG(FreqCenter),
			AVG(DBAvg),
			MIN(Start),
			TimeBucket,
			FreqBucket
		FROM (
			SELECT
				FreqCenter,
				DBAvg,
				Start,
				NTILE (?) OVER (ORDER BY Start) TimeBucket,
				NTILE (?) OVER (ORDER BY FreqCenter) FreqBucket
			FROM
				spectre
			WHERE
				Source = ?
				AND Identifier = ?
				AND FreqLow >= ?
				AND FreqHigh <= ?
				AND Start >= ?
				AND End <= ?
		)
		GROUP BY TimeBucket, FreqBucket;`
)

type receiver struct {
	source     string
	identifier string
}

// SpectreDB reads power spectra recorded by the spectre collector. Every
// receiver (SDR source and identifier) becomes one auto-correlation baseline
// whose image holds the average power in dB per time and frequency bucket.
// Buckets without data are NaN and therefore treated as flagged.
type SpectreDB struct {
	DB *sql.DB

	// SDR and Identifier are LIKE patterns; empty matches everything.
	SDR        string
	Identifier string
	StartFreq  int64
	EndFreq    int64
	StartTime  time.Time
	EndTime    time.Time
	// TimeSteps and Channels cap the image size; 0 uses the full resolution.
	TimeSteps int
	Channels  int

	mu        sync.Mutex
	receivers []receiver
}

func pattern(p string) string {
	if p == "" {
		return "%"
	}
	return p
}

func (s *SpectreDB) window() (int64, int64, int64, int64) {
	endFreq := s.EndFreq
	if endFreq <= 0 {
		endFreq = math.MaxInt64
	}
	endTime := s.EndTime
	if endTime.IsZero() {
		endTime = time.Now()
	}
	return s.StartFreq, endFreq, s.StartTime.UnixMilli(), endTime.UnixMilli()
}

func (s *SpectreDB) Baselines(ctx context.Context) ([]artifacts.Baseline, error) {
	lowFreq, highFreq, start, end := s.window()
	rows, err := s.DB.QueryContext(ctx, getReceiversTmpl, pattern(s.SDR), pattern(s.Identifier), lowFreq, highFreq, start, end)
	if err != nil {
		return nil, fmt.Errorf("unable to query receivers: %w", err)
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.receivers = nil
	var out []artifacts.Baseline
	for rows.Next() {
		var r receiver
		if err := rows.Scan(&r.source, &r.identifier); err != nil {
			return nil, fmt.Errorf("unable to read receiver: %w", err)
		}
		i := len(s.receivers)
		s.receivers = append(s.receivers, r)
		out = append(out, artifacts.Baseline{Antenna1: i, Antenna2: i})
	}
	return out, rows.Err()
}

// Receiver returns the SDR source and identifier behind a baseline.
func (s *SpectreDB) Receiver(b artifacts.Baseline) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !b.IsAutoCorrelation() || b.Antenna1 < 0 || b.Antenna1 >= len(s.receivers) {
		return "", "", fmt.Errorf("unknown receiver for baseline %s", b)
	}
	r := s.receivers[b.Antenna1]
	return r.source, r.identifier, nil
}

func (s *SpectreDB) size(ctx context.Context, src, id string) (int, int, error) {
	lowFreq, highFreq, start, end := s.window()
	var channels, steps int
	if err := s.DB.QueryRowContext(ctx, getChannelCountTmpl, src, id, lowFreq, highFreq, start, end).Scan(&channels); err != nil {
		return 0, 0, fmt.Errorf("unable to count channels: %w", err)
	}
	if err := s.DB.QueryRowContext(ctx, getTimeStepCountTmpl, src, id, lowFreq, highFreq, start, end, src, id, start, end).Scan(&steps); err != nil {
		return 0, 0, fmt.Errorf("unable to count time steps: %w", err)
	}
	if s.Channels > 0 && s.Channels < channels {
		channels = s.Channels
	}
	if s.TimeSteps > 0 && s.TimeSteps < steps {
		steps = s.TimeSteps
	}
	return steps, channels, nil
}

func (s *SpectreDB) Load(ctx context.Context, b artifacts.Baseline) (*artifacts.Set, error) {
	src, id, err := s.Receiver(b)
	if err != nil {
		return nil, err
	}
	w, h, err := s.size(ctx, src, id)
	if err != nil {
		return nil, err
	}
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("no samples for %s/%s", src, id)
	}

	lowFreq, highFreq, start, end := s.window()
	rows, err := s.DB.QueryContext(ctx, getBucketsTmpl, w, h, src, id, lowFreq, highFreq, start, end)
	if err != nil {
		return nil, fmt.Errorf("unable to query samples: %w", err)
	}
	defer rows.Close()

	im := tf.NewImage(w, h)
	im.Fill(math.NaN())
	meta := &artifacts.Metadata{
		Times:    make([]float64, w),
		Channels: make([]float64, h),
	}
	for rows.Next() {
		var freq, db float64
		var startMilli int64
		var timeBucket, freqBucket int
		if err := rows.Scan(&freq, &db, &startMilli, &timeBucket, &freqBucket); err != nil {
			glog.Warningf("unable to get sample from DB: %s\n", err)
			continue
		}
		x, y := timeBucket-1, freqBucket-1
		if x < 0 || x >= w || y < 0 || y >= h {
			continue
		}
		im.Set(x, y, db)
		meta.Times[x] = float64(startMilli) / 1000
		meta.Channels[y] = freq
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to read samples: %w", err)
	}

	set := artifacts.New(tf.NewSingleImageBuffer(im, nil), meta)
	set.Baseline = b
	glog.V(1).Infof("Loaded %s/%s as baseline %s: %d time steps x %d channels", src, id, b, w, h)
	return set, nil
}
