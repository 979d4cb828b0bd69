package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/rfiflag/pipeline"
)

const (
	contentType             = "application/json"
	CollectEndpoint         = "rfi/v1/collect"
	defaultSendRecordAmount = 100
)

// CollectResponse is returned by the collect endpoint.
type CollectResponse struct {
	Status      string `json:"status"`
	RecordCount int    `json:"recordCount"`
}

// Remote batches records and POSTs them as JSON to the collect endpoint of an
// rfiflag server. Call Flush to send a partial batch.
type Remote struct {
	Server            string
	SendRecordsAmount int
	Client            *http.Client
	RunID             string

	mu      sync.Mutex
	pending []Record
}

func (s *Remote) Write(ctx context.Context, r pipeline.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sendRecordsAmount := defaultSendRecordAmount
	if s.SendRecordsAmount > 0 {
		sendRecordsAmount = s.SendRecordsAmount
	}

	s.pending = append(s.pending, Records(s.RunID, r, time.Now())...)
	if len(s.pending) < sendRecordsAmount {
		return nil // we haven't collected enough records to send yet
	}
	return s.send(ctx)
}

func (s *Remote) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	return s.send(context.Background())
}

// send posts the pending records. The caller holds mu.
func (s *Remote) send(ctx context.Context) error {
	n := len(s.pending)
	body, err := json.Marshal(s.pending)
	if err != nil {
		return fmt.Errorf("error marshalling records to JSON: %w", err)
	}

	url := fmt.Sprintf("%s/%s", strings.TrimRight(s.Server, "/"), CollectEndpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("unable to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		exportedTotal.WithLabelValues("remote", "error").Add(float64(n))
		return fmt.Errorf("error POSTing records: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		glog.Warningf("error reading POST body: %s\n", err)
	}
	if resp.StatusCode != http.StatusOK {
		exportedTotal.WithLabelValues("remote", "error").Add(float64(n))
		return fmt.Errorf("server %s rejected %d records: %s: %s", s.Server, n, resp.Status, strings.TrimSpace(string(respBody)))
	}

	collectResponseBody := CollectResponse{}
	json.Unmarshal(respBody, &collectResponseBody)
	glog.Infof("submitted %v records to server %s", collectResponseBody.RecordCount, s.Server)

	exportedTotal.WithLabelValues("remote", "success").Add(float64(n))
	s.pending = nil
	return nil
}
