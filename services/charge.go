package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"realty_watch/config"
	"realty_watch/logging"
)

// Billing events.
const (
	EventExtractionCompleted = "extraction-completed"
	EventMonitorCheck        = "monitor-check"
	EventNewListingsFound    = "new-listings-found"
)

// ChargeSink records a billing event. Implementations must not block the
// caller on failure; Charge errors are only ever logged.
type ChargeSink interface {
	Charge(ctx context.Context, eventName string) error
}

// Charge sends one event through sink and logs failures.
func Charge(ctx context.Context, sink ChargeSink, eventName string) {
	if sink == nil {
		return
	}
	if err := sink.Charge(ctx, eventName); err != nil {
		logging.Warnf("Charge %s failed: %v", eventName, err)
	}
}

type LogChargeSink struct{}

func (LogChargeSink) Charge(ctx context.Context, eventName string) error {
	logging.Debugf("Charge event: %s", eventName)
	return nil
}

// ApifyChargeSink charges pay-per-event on the Apify run this process belongs to.
type ApifyChargeSink struct {
	baseURL string
	token   string
	runID   string
	client  *http.Client
}

func NewApifyChargeSink(cfg config.ApifyConfig, client *http.Client) *ApifyChargeSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &ApifyChargeSink{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		runID:   cfg.RunID,
		client:  client,
	}
}

// NewChargeSink picks the Apify sink when a run id is configured.
func NewChargeSink(cfg config.ApifyConfig, client *http.Client) ChargeSink {
	if cfg.RunID == "" || cfg.Token == "" {
		return LogChargeSink{}
	}
	return NewApifyChargeSink(cfg, client)
}

func (s *ApifyChargeSink) Charge(ctx context.Context, eventName string) error {
	body, err := json.Marshal(map[string]interface{}{
		"eventName": eventName,
		"count":     1,
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/actor-runs/%s/charge?token=%s", s.baseURL, url.PathEscape(s.runID), url.QueryEscape(s.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("charge request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("charge failed: %d %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
