// Package api exposes the flagger over HTTP: flag a posted baseline, collect
// records from remote flaggers, and report the state of a run.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/actions"
	"github.com/hb9tf/rfiflag/artifacts"
	"github.com/hb9tf/rfiflag/export"
	"github.com/hb9tf/rfiflag/pipeline"
	"github.com/hb9tf/rfiflag/progress"
	"github.com/hb9tf/rfiflag/tf"
)

const (
	basePath = "/rfi/v1"
	// maxSamples caps the size of a posted baseline.
	maxSamples = 1 << 22
)

// FlagRequest carries one baseline. Every polarization is a row-major slice
// of Channels rows with TimeSteps samples each.
type FlagRequest struct {
	Antenna1  int         `json:"antenna1"`
	Antenna2  int         `json:"antenna2"`
	TimeSteps int         `json:"timeSteps" binding:"required,min=1"`
	Channels  int         `json:"channels" binding:"required,min=1"`
	Real      [][]float64 `json:"real" binding:"required,min=1"`
	Imaginary [][]float64 `json:"imaginary,omitempty"`
	// Sensitivity scales the thresholds of the strategy, default 1.
	Sensitivity float64 `json:"sensitivity,omitempty"`
}

type FlagResponse struct {
	RunID   string          `json:"runId"`
	Ratio   float64         `json:"ratio"`
	Records []export.Record `json:"records"`
}

type StatusResponse struct {
	RunID     string          `json:"runId"`
	Strategy  string          `json:"strategy"`
	Baselines int             `json:"baselines"`
	Pipeline  *pipeline.Stats `json:"pipeline,omitempty"`
	Progress  float64         `json:"progress,omitempty"`
	Task      string          `json:"task,omitempty"`
	Failures  int             `json:"failures,omitempty"`
}

// Server holds what the handlers share. Strategy is performed concurrently
// on independent sets.
type Server struct {
	Strategy action.Action
	Store    *export.Memory
	RunID    string
	// Archive additionally receives every flagged or collected record.
	Archive export.RecordWriter
	// Pipeline and Progress are reported by the status endpoint when set.
	Pipeline *pipeline.ForEachBaseline
	Progress *progress.Tracker
}

// Router returns the gin engine serving all endpoints.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), instrument())

	v1 := r.Group(basePath)
	v1.POST("/flag", s.Flag)
	v1.POST("/collect", s.Collect)
	v1.GET("/status", s.Status)
	v1.GET("/baselines/:antenna1/:antenna2", s.Baseline)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// buildSet validates req and turns it into an artifact set.
func (req *FlagRequest) buildSet() (*artifacts.Set, error) {
	w, h := req.TimeSteps, req.Channels
	if w < 1 || h < 1 || len(req.Real) < 1 {
		return nil, fmt.Errorf("empty baseline: %d polarizations of %dx%d", len(req.Real), w, h)
	}
	if w > maxSamples/h/len(req.Real) {
		return nil, fmt.Errorf("%d polarizations of %dx%d exceed %d samples", len(req.Real), w, h, maxSamples)
	}
	components := 1
	if len(req.Imaginary) > 0 {
		if len(req.Imaginary) != len(req.Real) {
			return nil, fmt.Errorf("%d real and %d imaginary polarizations", len(req.Real), len(req.Imaginary))
		}
		components = 2
	}
	buf := tf.NewBuffer(w, h, len(req.Real), components, false)
	for p := range req.Real {
		if len(req.Real[p]) != w*h {
			return nil, fmt.Errorf("polarization %d has %d samples, want %d", p, len(req.Real[p]), w*h)
		}
		copy(buf.Images[p*components].Data, req.Real[p])
		if components == 2 {
			if len(req.Imaginary[p]) != w*h {
				return nil, fmt.Errorf("imaginary polarization %d has %d samples, want %d", p, len(req.Imaginary[p]), w*h)
			}
			copy(buf.Images[p*components+1].Data, req.Imaginary[p])
		}
	}
	set := artifacts.New(buf, nil)
	set.Baseline = artifacts.Baseline{Antenna1: req.Antenna1, Antenna2: req.Antenna2}
	if req.Sensitivity > 0 {
		set.Sensitivity = req.Sensitivity
	}
	return set, nil
}

// Flag runs the strategy on the posted baseline and returns its flags.
func (s *Server) Flag(c *gin.Context) {
	var req FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	set, err := req.buildSet()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	if err := s.Strategy.Perform(c.Request.Context(), set, progress.ExceptionsOnly{}); err != nil {
		glog.Warningf("unable to flag baseline %s: %s", set.Baseline, err)
		status := http.StatusInternalServerError
		if errors.Is(err, actions.ErrConfiguration) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	glog.V(1).Infof("Flagged baseline %s in %s", set.Baseline, time.Since(start))

	result := pipeline.NewResult(set)
	recs := export.Records(s.RunID, result, time.Now())
	if !s.store(c, recs) {
		return
	}
	c.JSON(http.StatusOK, FlagResponse{
		RunID:   s.RunID,
		Ratio:   result.FlaggedRatio(),
		Records: recs,
	})
}

// Collect stores records posted by export.Remote.
func (s *Server) Collect(c *gin.Context) {
	var recs []export.Record
	if err := c.ShouldBindJSON(&recs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, rec := range recs {
		if rec.TimeSteps < 1 || rec.Channels < 1 || rec.TimeSteps > maxSamples/rec.Channels {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("baseline %d x %d: %dx%d mask outside 1..%d samples", rec.Antenna1, rec.Antenna2, rec.TimeSteps, rec.Channels, maxSamples)})
			return
		}
		if _, err := export.DecodeMask(rec.Mask, rec.TimeSteps, rec.Channels); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("baseline %d x %d: %s", rec.Antenna1, rec.Antenna2, err)})
			return
		}
	}
	if !s.store(c, recs) {
		return
	}
	c.JSON(http.StatusOK, export.CollectResponse{Status: "ok", RecordCount: len(recs)})
}

func (s *Server) store(c *gin.Context, recs []export.Record) bool {
	s.Store.Add(recs...)
	if s.Archive == nil {
		return true
	}
	if err := s.Archive.WriteRecords(c.Request.Context(), recs); err != nil {
		glog.Warningf("unable to archive %d records: %s", len(recs), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (s *Server) Status(c *gin.Context) {
	resp := StatusResponse{
		RunID:     s.RunID,
		Strategy:  s.Strategy.Description(),
		Baselines: s.Store.Len(),
	}
	if s.Pipeline != nil {
		stats := s.Pipeline.Stats()
		resp.Pipeline = &stats
	}
	if s.Progress != nil {
		resp.Progress = s.Progress.Fraction()
		resp.Task = s.Progress.Task()
		resp.Failures = len(s.Progress.Exceptions())
	}
	c.JSON(http.StatusOK, resp)
}

// Baseline returns the stored records of one baseline.
func (s *Server) Baseline(c *gin.Context) {
	a1, err1 := strconv.Atoi(c.Param("antenna1"))
	a2, err2 := strconv.Atoi(c.Param("antenna2"))
	if err := errors.Join(err1, err2); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	recs, ok := s.Store.Get(a1, a2)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no baseline %d x %d", a1, a2)})
		return
	}
	c.JSON(http.StatusOK, recs)
}
