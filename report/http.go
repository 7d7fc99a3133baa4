package report

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPConfig holds the ingest endpoint settings. Endpoint and credentials
// are resolved once at construction, outside the call path.
type HTTPConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// HTTPReporter posts failure events as JSON to an ingest endpoint.
type HTTPReporter struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTP creates an HTTPReporter.
func NewHTTP(cfg HTTPConfig) *HTTPReporter {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &HTTPReporter{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (r *HTTPReporter) Report(ctx context.Context, ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("Failed to encode failure event", "event_id", ev.ID, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(body))
	if err != nil {
		slog.Warn("Failed to build report request", "event_id", ev.ID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		slog.Warn("Failed to deliver failure event", "event_id", ev.ID, "error", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		slog.Warn("Ingest endpoint rejected failure event",
			"event_id", ev.ID,
			"status", resp.StatusCode,
		)
	}
}
