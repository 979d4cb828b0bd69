package export

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/golang/glog"

	"github.com/hb9tf/rfiflag/pipeline"
	"github.com/hb9tf/rfiflag/render"
)

// PNG renders every baseline into Dir as <run>-<antenna1>-<antenna2>.png.
type PNG struct {
	Dir     string
	RunID   string
	Options render.Options
}

// Path returns the file a baseline is rendered to.
func (p *PNG) Path(r pipeline.Result) string {
	return filepath.Join(p.Dir, fmt.Sprintf("%s-%d-%d.png", p.RunID, r.Baseline.Antenna1, r.Baseline.Antenna2))
}

func (p *PNG) Write(ctx context.Context, r pipeline.Result) error {
	img, err := render.Baseline(r.Set, p.Options)
	if err != nil {
		exportedTotal.WithLabelValues("png", "error").Inc()
		return fmt.Errorf("unable to render baseline %s: %w", r.Baseline, err)
	}

	path := p.Path(r)
	f, err := os.Create(path)
	if err != nil {
		exportedTotal.WithLabelValues("png", "error").Inc()
		return fmt.Errorf("unable to create %q: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		exportedTotal.WithLabelValues("png", "error").Inc()
		return fmt.Errorf("unable to encode %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		exportedTotal.WithLabelValues("png", "error").Inc()
		return fmt.Errorf("unable to write %q: %w", path, err)
	}
	exportedTotal.WithLabelValues("png", "success").Inc()
	glog.V(2).Infof("Rendered baseline %s to %s", r.Baseline, path)
	return nil
}
