package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/rfiflag/pipeline"
)

// CSV writes one line per polarization and baseline. Out defaults to stdout.
type CSV struct {
	Out   io.Writer
	RunID string

	mu sync.Mutex
	w  *csv.Writer
}

func (c *CSV) Write(ctx context.Context, r pipeline.Result) error {
	return c.WriteRecords(ctx, Records(c.RunID, r, time.Now()))
}

func (c *CSV) WriteRecords(ctx context.Context, recs []Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.w == nil {
		out := c.Out
		if out == nil {
			out = os.Stdout
		}
		c.w = csv.NewWriter(out)
		c.w.Write([]string{
			"RunID",
			"Antenna1",
			"Antenna2",
			"Polarization",
			"TimeSteps",
			"Channels",
			"Flagged",
			"Ratio",
			"Mask",
			"CreatedUnixMilli",
		})
	}

	for _, rec := range recs {
		if err := c.w.Write([]string{
			rec.RunID,
			fmt.Sprintf("%d", rec.Antenna1),
			fmt.Sprintf("%d", rec.Antenna2),
			fmt.Sprintf("%d", rec.Polarization),
			fmt.Sprintf("%d", rec.TimeSteps),
			fmt.Sprintf("%d", rec.Channels),
			fmt.Sprintf("%d", rec.Flagged),
			fmt.Sprintf("%f", rec.Ratio),
			rec.Mask,
			fmt.Sprintf("%d", rec.Created.UnixMilli()),
		}); err != nil {
			glog.Warningf("error while writing CSV line: %s\n", err)
			exportedTotal.WithLabelValues("csv", "error").Inc()
			continue
		}
		exportedTotal.WithLabelValues("csv", "success").Inc()
	}

	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("error flushing CSV: %w", err)
	}
	return nil
}
