package main

/*
server flags baselines posted to it and collects the records sent by rfiflag
runs using the remote export.
*/

import (
	"database/sql"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/golang/glog"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/api"
	"github.com/hb9tf/rfiflag/export"
	"github.com/hb9tf/rfiflag/strategy"

	// Blind import support for sqlite3 used by the sqlite archive.
	_ "github.com/mattn/go-sqlite3"
)

var (
	listen       = flag.String("listen", ":8443", "")
	certFile     = flag.String("certFile", "", "Path of the file containing the certificate (including the chained intermediates and root) for the TLS connection.")
	keyFile      = flag.String("keyFile", "", "Path of the file containing the key for the TLS connection.")
	output       = flag.String("output", "", "Archive for flagged and collected records (one of: csv, sqlite, mysql). Empty keeps them in memory only.")
	strategyFile = flag.String("strategy", "", "Path of a YAML strategy used for posted baselines. The built-in default strategy is used when empty.")

	// SQLite
	sqliteFile = flag.String("sqliteFile", "/tmp/rfiflag", "File path of the sqlite DB file to use.")

	// MySQL
	mysqlServer       = flag.String("mysqlServer", "127.0.0.1:3306", "MySQL TCP server endpoint to connect to (IP/DNS and port).")
	mysqlUser         = flag.String("mysqlUser", "", "MySQL DB user.")
	mysqlPasswordFile = flag.String("mysqlPasswordFile", "", "Path to the file containing the password for the MySQL user.")
	mysqlDBName       = flag.String("mysqlDBName", "rfiflag", "Name of the DB to use.")
)

// perBaseline returns the part of the tree that runs on a single baseline.
func perBaseline(tree action.Action) action.Action {
	pipe, ok := strategy.FindPipeline(tree)
	if !ok {
		return tree
	}
	return action.NewSequence(tree.Description(), pipe.Children()...)
}

func main() {
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()
	defer glog.Flush()

	var tree action.Action = strategy.Default()
	if *strategyFile != "" {
		var err error
		if tree, err = strategy.LoadFile(*strategyFile); err != nil {
			glog.Exit(err)
		}
	}
	runID := export.NewRunID()

	// Archive setup
	var archive export.RecordWriter
	switch strings.ToLower(*output) {
	case "":
	case "csv":
		archive = &export.CSV{RunID: runID}
	case "sqlite":
		db, err := sql.Open("sqlite3", *sqliteFile)
		if err != nil {
			glog.Exitf("unable to open sqlite DB %q: %s", *sqliteFile, err)
		}
		archive = export.NewSQLite(db, runID)
	case "mysql":
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
		archive = export.NewMySQL(db, runID)
	default:
		glog.Exitf("%q is not a supported export method, pick one of: csv, sqlite, mysql", *output)
	}

	root := perBaseline(tree)
	if err := action.Initialize(root); err != nil {
		glog.Exit(err)
	}
	defer func() {
		if err := action.Finish(root); err != nil {
			glog.Warningf("unable to finish strategy: %s", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	s := &api.Server{
		Strategy: root,
		Store:    &export.Memory{RunID: runID},
		RunID:    runID,
		Archive:  archive,
	}
	r := s.Router()
	glog.Infof("Serving run %s with %q on %s", runID, root.Description(), *listen)
	var err error
	if *certFile != "" || *keyFile != "" {
		err = r.RunTLS(*listen, *certFile, *keyFile)
	} else {
		glog.Infoln("Resorting to serving HTTP because there was no certificate and key defined.")
		err = r.Run(*listen)
	}
	glog.Error(err)
}
