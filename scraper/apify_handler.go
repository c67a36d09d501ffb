package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"realty_watch/config"
	"realty_watch/logging"
)

const (
	apifyPollTimeout = 15 * time.Minute
	apifyPollDelay   = 10 * time.Second
)

// UpstreamClient runs a specialized source and returns its raw dataset items.
type UpstreamClient interface {
	Call(ctx context.Context, sourceID string, input map[string]interface{}) ([]json.RawMessage, error)
}

// ApifyClient starts an actor run, waits for it to finish and downloads the
// default dataset.
type ApifyClient struct {
	baseURL     string
	token       string
	actors      map[string]string
	client      *http.Client
	pollDelay   time.Duration
	pollTimeout time.Duration
}

func NewApifyClient(cfg config.ApifyConfig, client *http.Client) *ApifyClient {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &ApifyClient{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		token:       cfg.Token,
		actors:      cfg.Actors,
		client:      client,
		pollDelay:   apifyPollDelay,
		pollTimeout: apifyPollTimeout,
	}
}

func (c *ApifyClient) Call(ctx context.Context, sourceID string, input map[string]interface{}) ([]json.RawMessage, error) {
	if c.token == "" {
		return nil, fmt.Errorf("APIFY_TOKEN not set")
	}
	actorID, ok := c.actors[sourceID]
	if !ok || actorID == "" {
		return nil, fmt.Errorf("no actor configured for source %s", sourceID)
	}

	runID, err := c.startRun(ctx, actorID, input)
	if err != nil {
		return nil, fmt.Errorf("failed to start apify run: %w", err)
	}
	logging.Infof("Apify run started: %s (actor: %s)", runID, actorID)

	datasetID, err := c.waitForRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("apify run failed: %w", err)
	}
	logging.Infof("Apify run complete, dataset: %s", datasetID)

	items, err := c.fetchDataset(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dataset: %w", err)
	}
	logging.Infof("Fetched %d items from Apify for %s", len(items), sourceID)
	return items, nil
}

func (c *ApifyClient) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("token", c.token)
	return c.baseURL + path + "?" + query.Encode()
}

func (c *ApifyClient) startRun(ctx context.Context, actorID string, input map[string]interface{}) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	logging.Debugf("Apify input: %s", string(body))

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint("/acts/"+actorID+"/runs", nil), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("apify start run failed %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Data.ID == "" {
		return "", fmt.Errorf("apify start run returned no run id")
	}

	return result.Data.ID, nil
}

func (c *ApifyClient) waitForRun(ctx context.Context, runID string) (string, error) {
	endpoint := c.endpoint("/actor-runs/"+runID, nil)
	deadline := time.Now().Add(c.pollTimeout)

	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
		if err != nil {
			return "", err
		}

		resp, err := c.client.Do(req)
		if err == nil {
			var result struct {
				Data struct {
					Status           string `json:"status"`
					DefaultDatasetID string `json:"defaultDatasetId"`
				} `json:"data"`
			}
			json.NewDecoder(resp.Body).Decode(&result)
			resp.Body.Close()

			switch result.Data.Status {
			case "SUCCEEDED":
				return result.Data.DefaultDatasetID, nil
			case "FAILED", "ABORTED", "TIMED-OUT":
				return "", fmt.Errorf("run %s: %s", runID, result.Data.Status)
			}
			logging.Debugf("Apify run status: %s", result.Data.Status)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollDelay):
		}
	}

	return "", fmt.Errorf("timeout waiting for run %s", runID)
}

func (c *ApifyClient) fetchDataset(ctx context.Context, datasetID string) ([]json.RawMessage, error) {
	endpoint := c.endpoint("/datasets/"+datasetID+"/items", url.Values{"format": {"json"}, "clean": {"true"}})

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("dataset fetch failed %d: %s", resp.StatusCode, string(respBody))
	}

	var items []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("malformed dataset: %w", err)
	}
	return items, nil
}
