package export

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/rfiflag/pipeline"
)

const (
	sqlRecordCountInfo = 1000

	sqlCreateTableTmpl = `CREATE TABLE IF NOT EXISTS rfiflag (
		"ID"           INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		"RunID"        TEXT NOT NULL,
		"Antenna1"     INTEGER,
		"Antenna2"     INTEGER,
		"Polarization" INTEGER,
		"TimeSteps"    INTEGER,
		"Channels"     INTEGER,
		"Flagged"      INTEGER,
		"Ratio"        REAL,
		"Mask"         TEXT,
		"Created"      INTEGER
	);`
	sqlInsertRecordTmpl = `INSERT INTO rfiflag (
		RunID,
		Antenna1,
		Antenna2,
		Polarization,
		TimeSteps,
		Channels,
		Flagged,
		Ratio,
		Mask,
		Created
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	sqlSelectRunTmpl = `SELECT
		RunID,
		Antenna1,
		Antenna2,
		Polarization,
		TimeSteps,
		Channels,
		Flagged,
		Ratio,
		Mask,
		Created
	FROM
		rfiflag
	WHERE
		RunID = ?
	ORDER BY
		Antenna1 ASC,
		Antenna2 ASC,
		Polarization ASC;`
)

// SQL stores records in a table called rfiflag. Use NewSQLite or NewMySQL to
// pick the dialect.
type SQL struct {
	DB    *sql.DB
	RunID string

	createTmpl string
	insertTmpl string

	once    sync.Once
	initErr error

	mu     sync.Mutex
	counts map[string]int
}

func NewSQLite(db *sql.DB, runID string) *SQL {
	return &SQL{
		DB:         db,
		RunID:      runID,
		createTmpl: sqlCreateTableTmpl,
		insertTmpl: sqlInsertRecordTmpl,
	}
}

func (s *SQL) Write(ctx context.Context, r pipeline.Result) error {
	return s.WriteRecords(ctx, Records(s.RunID, r, time.Now()))
}

func (s *SQL) WriteRecords(ctx context.Context, recs []Record) error {
	s.once.Do(func() {
		s.initErr = sqlCreateTableIfNotExists(ctx, s.DB, s.createTmpl)
	})
	if s.initErr != nil {
		return fmt.Errorf("unable to create table: %w", s.initErr)
	}

	for _, rec := range recs {
		if err := sqlInsertRecord(ctx, s.DB, s.insertTmpl, rec); err != nil {
			s.count("error")
			exportedTotal.WithLabelValues("sql", "error").Inc()
			return fmt.Errorf("unable to store baseline %d x %d: %w", rec.Antenna1, rec.Antenna2, err)
		}
		s.count("success")
		exportedTotal.WithLabelValues("sql", "success").Inc()
	}
	return nil
}

func (s *SQL) count(result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts == nil {
		s.counts = map[string]int{
			"error":   0,
			"success": 0,
			"total":   0,
		}
	}
	s.counts["total"] += 1
	s.counts[result] += 1
	if s.counts["total"]%sqlRecordCountInfo == 0 {
		glog.Infof("Record export counts: %+v\n", s.counts)
	}
}

func sqlCreateTableIfNotExists(ctx context.Context, db *sql.DB, tmpl string) error {
	statement, err := db.PrepareContext(ctx, tmpl)
	if err != nil {
		return err
	}
	defer statement.Close()
	if _, err := statement.ExecContext(ctx); err != nil {
		return err
	}

	return nil
}

func sqlInsertRecord(ctx context.Context, db *sql.DB, tmpl string, r Record) error {
	statement, err := db.PrepareContext(ctx, tmpl)
	if err != nil {
		return err
	}
	defer statement.Close()
	if _, err := statement.ExecContext(ctx, r.RunID, r.Antenna1, r.Antenna2, r.Polarization, r.TimeSteps, r.Channels, r.Flagged, r.Ratio, r.Mask, r.Created.UnixMilli()); err != nil {
		return err
	}

	return nil
}

// ReadRun returns every record stored for runID. The query is the same for
// both dialects.
func ReadRun(ctx context.Context, db *sql.DB, runID string) ([]Record, error) {
	rows, err := db.QueryContext(ctx, sqlSelectRunTmpl, runID)
	if err != nil {
		return nil, fmt.Errorf("unable to query run %q: %w", runID, err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var r Record
		var created int64
		if err := rows.Scan(&r.RunID, &r.Antenna1, &r.Antenna2, &r.Polarization, &r.TimeSteps, &r.Channels, &r.Flagged, &r.Ratio, &r.Mask, &created); err != nil {
			return nil, fmt.Errorf("unable to read record: %w", err)
		}
		r.Created = time.UnixMilli(created)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to read run %q: %w", runID, err)
	}
	return recs, nil
}
