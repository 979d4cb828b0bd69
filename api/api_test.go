package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hb9tf/rfiflag/actions"
	"github.com/hb9tf/rfiflag/export"
	"github.com/hb9tf/rfiflag/pipeline"
	"github.com/hb9tf/rfiflag/progress"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer() *Server {
	return &Server{
		Strategy: actions.NewSumThreshold(),
		Store:    &export.Memory{},
		RunID:    "run",
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// noisyRequest returns a single polarization baseline of bounded noise with a
// strong spike at sample spike.
func noisyRequest(w, h, spike int) FlagRequest {
	data := make([]float64, w*h)
	for i := range data {
		data[i] = math.Sin(float64(i) * 1.7)
	}
	data[spike] = 50
	return FlagRequest{Antenna1: 1, Antenna2: 2, TimeSteps: w, Channels: h, Real: [][]float64{data}}
}

func TestFlag(t *testing.T) {
	s := newServer()
	router := s.Router()

	w := do(t, router, http.MethodPost, "/rfi/v1/flag", noisyRequest(32, 8, 100))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp FlagResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "run", resp.RunID)
	require.Len(t, resp.Records, 1)
	rec := resp.Records[0]
	assert.Equal(t, 32, rec.TimeSteps)
	assert.Equal(t, 8, rec.Channels)

	mask, err := export.DecodeMask(rec.Mask, rec.TimeSteps, rec.Channels)
	require.NoError(t, err)
	assert.True(t, mask.Data[100])
	assert.Less(t, resp.Ratio, 0.5)

	// The result is kept for later queries.
	w = do(t, router, http.MethodGet, "/rfi/v1/baselines/1/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stored []export.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	assert.Equal(t, rec.Mask, stored[0].Mask)
}

func TestFlagComplex(t *testing.T) {
	s := newServer()
	req := noisyRequest(16, 4, 5)
	req.Real = append(req.Real, req.Real[0])
	req.Imaginary = [][]float64{make([]float64, 64), make([]float64, 64)}

	w := do(t, s.Router(), http.MethodPost, "/rfi/v1/flag", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp FlagResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Records, 2)
}

func TestFlagBadRequest(t *testing.T) {
	short := noisyRequest(8, 2, 0)
	short.Real[0] = short.Real[0][:10]
	mismatched := noisyRequest(8, 2, 0)
	mismatched.Imaginary = [][]float64{{1}, {2}}

	tests := []struct {
		desc string
		body any
	}{
		{"empty", map[string]any{}},
		{"no data", FlagRequest{TimeSteps: 2, Channels: 2}},
		{"short polarization", short},
		{"imaginary count", mismatched},
		{"not json", "flag me"},
		{"overflowing size", FlagRequest{TimeSteps: math.MaxInt/2 + 1, Channels: math.MaxInt/2 + 1, Real: [][]float64{{}}}},
		{"oversized", FlagRequest{TimeSteps: 1 << 12, Channels: 1 << 12, Real: [][]float64{{}}}},
	}
	router := newServer().Router()
	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/rfi/v1/flag", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestFlagConfigurationError(t *testing.T) {
	s := newServer()
	// Two polarizations with separate masks.
	s.Strategy = actions.NewStatisticalFlag()
	req := noisyRequest(8, 2, 0)
	req.Real = append(req.Real, req.Real[0])

	w := do(t, s.Router(), http.MethodPost, "/rfi/v1/flag", req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, 0, s.Store.Len())
}

func TestCollect(t *testing.T) {
	s := newServer()
	archive := &export.Memory{}
	s.Archive = archive
	router := s.Router()

	recs := []export.Record{
		{RunID: "remote", Antenna1: 0, Antenna2: 1, TimeSteps: 2, Channels: 2, Flagged: 1, Mask: "3,1"},
		{RunID: "remote", Antenna1: 0, Antenna2: 1, Polarization: 1, TimeSteps: 2, Channels: 2, Mask: "4"},
	}
	w := do(t, router, http.MethodPost, "/rfi/v1/collect", recs)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp export.CollectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, export.CollectResponse{Status: "ok", RecordCount: 2}, resp)
	assert.Equal(t, 1, s.Store.Len())
	assert.Len(t, archive.All(), 2)

	w = do(t, router, http.MethodGet, "/rfi/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 1, status.Baselines)
	assert.Equal(t, "SumThreshold", status.Strategy)
	assert.Nil(t, status.Pipeline)

	bad := []struct {
		desc string
		rec  export.Record
	}{
		{"mask too long", export.Record{TimeSteps: 2, Channels: 2, Mask: "5"}},
		{"negative size", export.Record{TimeSteps: -1, Channels: 2, Mask: "0"}},
		{"zero channels", export.Record{TimeSteps: 2, Mask: "0"}},
		{"oversized", export.Record{TimeSteps: 1000000, Channels: 1000000, Mask: "1000000000000"}},
	}
	for _, tc := range bad {
		t.Run(tc.desc, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/rfi/v1/collect", []export.Record{tc.rec})
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Equal(t, 1, s.Store.Len())
}

func TestBaselineLookup(t *testing.T) {
	router := newServer().Router()
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/rfi/v1/baselines/3/4", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/rfi/v1/baselines/a/4", nil).Code)
}

func TestStatusReportsPipeline(t *testing.T) {
	s := newServer()
	s.Pipeline = &pipeline.ForEachBaseline{}
	s.Progress = &progress.Tracker{}
	s.Progress.OnStartTask(0, 4, "baselines", 1)
	s.Progress.OnProgress(1, 2)
	s.Progress.OnException(errors.New("boom"))
	w := do(t, s.Router(), http.MethodGet, "/rfi/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	require.NotNil(t, status.Pipeline)
	assert.Equal(t, pipeline.Stats{}, *status.Pipeline)
	assert.Greater(t, status.Progress, 0.0)
	assert.Equal(t, 1, status.Failures)
}

func TestMetrics(t *testing.T) {
	router := newServer().Router()
	do(t, router, http.MethodGet, "/rfi/v1/status", nil)

	w := do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rfiflag_api_requests_total")
}
