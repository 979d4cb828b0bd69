package main

/*
rfiflag runs a flagging strategy over every baseline of an observation and
exports the resulting flags.

Observations are either generated (synthetic) or read from the sqlite DB
filled by the spectre collector, where every receiver becomes one baseline.
*/

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/golang/glog"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/api"
	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/export"
	"github.com/hb9tf/rfiflag/pipeline"
	"github.com/hb9tf/rfiflag/progress"
	"github.com/hb9tf/rfiflag/render"
	"github.com/hb9tf/rfiflag/source"
	"github.com/hb9tf/rfiflag/strategy"

	// Blind import support for sqlite3 used by the spectre source and the sqlite export.
	_ "github.com/mattn/go-sqlite3"
)

// Flags
var (
	strategyFile = flag.String("strategy", "", "Path of a YAML strategy. The built-in default strategy is used when empty.")
	dumpStrategy = flag.Bool("dumpStrategy", false, "Write the active strategy as YAML to stdout and exit.")
	sourceType   = flag.String("source", "synthetic", "Baseline source (one of: synthetic, spectre)")
	output       = flag.String("output", "csv", "Comma separated export mechanisms (any of: csv, sqlite, mysql, png, remote, none)")
	listen       = flag.String("listen", "", "Serve status, flagging and metrics endpoints on this address while running, e.g. :8080.")

	// Pipeline
	threads     = flag.Int("threads", 0, "Worker count; 0 keeps the strategy's setting (default: all CPUs).")
	buffer      = flag.Int("buffer", 0, "Maximum number of loaded baselines waiting for a worker; 0 keeps the strategy's setting.")
	selection   = flag.String("selection", "", "Baseline selection (one of: all, cross, auto); empty keeps the strategy's setting.")
	stopOnError = flag.Bool("stopOnError", false, "Stop the run at the first failing baseline.")
	sensitivity = flag.Float64("sensitivity", 1, "Sensitivity handed to every baseline. Lower is stricter.")
	syncEvery   = flag.Int("syncEvery", 0, "Flush the exporters after this many baselines; 0 keeps the strategy's setting.")

	// Synthetic
	antennas  = flag.Int("antennas", 4, "Number of antennas of the synthetic array.")
	timeSteps = flag.Int("timeSteps", 256, "Time steps per baseline. Caps the image height for the spectre source.")
	channels  = flag.Int("channels", 64, "Channels per baseline. Caps the image width for the spectre source.")
	seed      = flag.Uint64("seed", 1, "Seed of the synthetic observation.")

	// Spectre
	sqliteFile   = flag.String("sqliteFile", "/tmp/spectre", "File path of the sqlite DB file to use.")
	sdrSource    = flag.String("sdr", "", "Select samples of this SDR type, e.g. rtl_sdr or hackrf. Empty selects all.")
	identifier   = flag.String("id", "", "Select samples of this receiver identifier. Empty selects all.")
	startFreq    = flag.Int64("startFreq", 0, "Select samples starting with this frequency in Hz.")
	endFreq      = flag.Int64("endFreq", 0, "Select samples up to this frequency in Hz; 0 selects all.")
	startTimeRaw = flag.String("startTime", "2000-01-02T15:04:05", "Select samples collected after this time. Format: 2006-01-02T15:04:05")
	endTimeRaw   = flag.String("endTime", "2100-01-02T15:04:05", "Select samples collected before this time. Format: 2006-01-02T15:04:05")

	// PNG
	pngDir  = flag.String("pngDir", "/tmp", "Directory the png export renders waterfalls into.")
	pngGrid = flag.Bool("pngGrid", true, "Add frequency and time labels to rendered waterfalls.")

	// Remote
	server = flag.String("server", "http://localhost:8443", "rfiflag server to send records to with the remote export.")

	// MySQL
	mysqlServer       = flag.String("mysqlServer", "127.0.0.1:3306", "MySQL TCP server endpoint to connect to (IP/DNS and port).")
	mysqlUser         = flag.String("mysqlUser", "", "MySQL DB user.")
	mysqlPasswordFile = flag.String("mysqlPasswordFile", "", "Path to the file containing the password for the MySQL user.")
	mysqlDBName       = flag.String("mysqlDBName", "rfiflag", "Name of the DB to use.")
)

const timeFmt = "2006-01-02T15:04:05"

func loadStrategy() (action.Action, error) {
	if *strategyFile == "" {
		return strategy.Default(), nil
	}
	return strategy.LoadFile(*strategyFile)
}

func openSQLite() *sql.DB {
	db, err := sql.Open("sqlite3", *sqliteFile)
	if err != nil {
		glog.Exitf("unable to open sqlite DB %q: %s", *sqliteFile, err)
	}
	return db
}

func openMySQL() *sql.DB {
	pass, err := os.ReadFile(*mysqlPasswordFile)
	if err != nil {
		glog.Exitf("unable to read MySQL password file %q: %s\n", *mysqlPasswordFile, err)
	}
	cfg := mysql.Config{
		User:   *mysqlUser,
		Passwd: strings.TrimSpace(string(pass)),
		Net:    "tcp",
		Addr:   *mysqlServer,
		DBName: *mysqlDBName,
	}
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		glog.Exitf("unable to open MySQL DB %q: %s", *mysqlServer, err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	return db
}

func newSource() pipeline.Source {
	switch strings.ToLower(*sourceType) {
	case "synthetic":
		return &source.Synthetic{
			Antennas:  *antennas,
			TimeSteps: *timeSteps,
			Channels:  *channels,
			Seed:      *seed,
		}
	case "spectre":
		startTime, err := time.Parse(timeFmt, *startTimeRaw)
		if err != nil {
			glog.Exitf("unable to parse startTime (value: %q, format: %q): %s", *startTimeRaw, timeFmt, err)
		}
		endTime, err := time.Parse(timeFmt, *endTimeRaw)
		if err != nil {
			glog.Exitf("unable to parse endTime (value: %q, format: %q): %s", *endTimeRaw, timeFmt, err)
		}
		return &source.SpectreDB{
			DB:         openSQLite(),
			SDR:        *sdrSource,
			Identifier: *identifier,
			StartFreq:  *startFreq,
			EndFreq:    *endFreq,
			StartTime:  startTime,
			EndTime:    endTime,
			TimeSteps:  *timeSteps,
			Channels:   *channels,
		}
	default:
		glog.Exitf("%q is not a supported source, pick one of: synthetic, spectre", *sourceType)
	}
	return nil
}

func newSink(runID string) export.Multi {
	var sinks export.Multi
	for _, out := range strings.Split(strings.ToLower(*output), ",") {
		switch strings.TrimSpace(out) {
		case "csv":
			sinks = append(sinks, &export.CSV{RunID: runID})
		case "sqlite":
			sinks = append(sinks, export.NewSQLite(openSQLite(), runID))
		case "mysql":
			sinks = append(sinks, export.NewMySQL(openMySQL(), runID))
		case "png":
			sinks = append(sinks, &export.PNG{
				Dir:     *pngDir,
				RunID:   runID,
				Options: render.Options{Overlay: true, Grid: *pngGrid, Clip: 0.01},
			})
		case "remote":
			sinks = append(sinks, &export.Remote{Server: *server, RunID: runID})
		case "none", "":
		default:
			glog.Exitf("%q is not a supported export method, pick any of: csv, sqlite, mysql, png, remote, none", out)
		}
	}
	return sinks
}

func main() {
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()
	defer glog.Flush()

	tree, err := loadStrategy()
	if err != nil {
		glog.Exit(err)
	}
	if *dumpStrategy {
		data, err := strategy.Save(tree)
		if err != nil {
			glog.Exit(err)
		}
		fmt.Print(string(data))
		return
	}

	root, pipe := strategy.Wrap(tree)
	if *threads > 0 {
		pipe.Threads = *threads
	}
	if *buffer > 0 {
		pipe.MaxBuffered = *buffer
	}
	if *selection != "" {
		pipe.Selection = pipeline.Selection(strings.ToLower(*selection))
	}
	pipe.StopOnError = pipe.StopOnError || *stopOnError
	if *syncEvery > 0 {
		pipe.SyncEvery = *syncEvery
	}

	runID := export.NewRunID()
	store := &export.Memory{RunID: runID}
	sinks := newSink(runID)
	if *listen != "" {
		sinks = append(sinks, store)
	}
	pipe.Source = newSource()
	pipe.Sink = sinks

	tracker := &progress.Tracker{}
	listener := progress.Multi{&progress.LogListener{}, tracker}

	if *listen != "" {
		s := &api.Server{
			Strategy: action.NewSequence(tree.Description(), pipe.Children()...),
			Store:    store,
			RunID:    runID,
			Pipeline: pipe,
			Progress: tracker,
		}
		srv := &http.Server{
			Addr:    *listen,
			Handler: s.Router(),
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				glog.Errorf("status server stopped: %s", err)
			}
		}()
		defer srv.Close()
		glog.Infof("Serving status on %s", *listen)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := action.Initialize(root); err != nil {
		glog.Exit(err)
	}
	glog.Infof("Starting run %s with %q", runID, tree.Description())
	start := time.Now()
	set := &artifacts.Set{Sensitivity: *sensitivity}
	runErr := root.Perform(ctx, set, listener)
	if err := action.Finish(root); err != nil {
		glog.Warningf("unable to finish strategy: %s", err)
	}

	stats := pipe.Stats()
	glog.Infof("Run %s done in %s: %+v", runID, time.Since(start), stats)
	if runErr != nil {
		glog.Errorf("run %s failed: %s", runID, runErr)
		glog.Flush()
		os.Exit(1)
	}
	if stats.Failed > 0 {
		glog.Warningf("%d of %d baselines failed", stats.Failed, stats.Selected)
	}
}
