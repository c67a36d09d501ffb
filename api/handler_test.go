package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"realty_watch/models"
	"realty_watch/scheduler"
	"realty_watch/scraper"
	"realty_watch/services"
	"realty_watch/storage"
)

type stubExtractor struct {
	result models.ExtractionResult
	got    models.SearchCriteria
}

func (s *stubExtractor) Extract(ctx context.Context, c models.SearchCriteria) (models.ExtractionResult, error) {
	s.got = c
	if _, err := c.Normalize(); err != nil {
		return models.ExtractionResult{}, err
	}
	return s.result, nil
}

type stubSweeps struct {
	err error
}

func (s stubSweeps) TriggerNow(ctx context.Context) (services.SweepStats, error) {
	return services.SweepStats{Processed: 3, Updated: 1}, s.err
}

type countingSink struct {
	events []string
}

func (c *countingSink) Charge(ctx context.Context, eventName string) error {
	c.events = append(c.events, eventName)
	return nil
}

type testServer struct {
	mux       *http.ServeMux
	extractor *stubExtractor
	sink      *countingSink
}

func newTestServer(sweepErr error) *testServer {
	ext := &stubExtractor{result: models.NewResult([]models.Listing{{Title: "A", URL: "/a", Source: "zillow"}}, "")}
	svc := services.NewMonitorService(storage.NewMemoryStore(), ext)
	svc.SetClock(func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) })
	sink := &countingSink{}
	metrics := scraper.NewMetrics()

	mux := http.NewServeMux()
	NewHandler(ext, svc, stubSweeps{err: sweepErr}, sink, metrics.Registry).RegisterRoutes(mux)
	return &testServer{mux: mux, extractor: ext, sink: sink}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func TestExtract(t *testing.T) {
	s := newTestServer(nil)

	rec := s.do("POST", "/extract", `{"location":"Seattle, WA","minPrice":700000,"maxPrice":1200000,"source":"zillow"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result models.ExtractionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Count != 1 || len(result.Listings) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if s.extractor.got.Source != models.SourceZillow || *s.extractor.got.MinPrice != 700000 {
		t.Fatalf("criteria not decoded: %+v", s.extractor.got)
	}
	if len(s.sink.events) != 1 || s.sink.events[0] != services.EventExtractionCompleted {
		t.Fatalf("expected extraction charge, got %v", s.sink.events)
	}
}

func TestExtractTerminalFailureIsNotCharged(t *testing.T) {
	s := newTestServer(nil)
	s.extractor.result = models.FailedResult("render: blocked; simple: 403")

	rec := s.do("POST", "/extract", `{"location":"Austin"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("terminal failure is still a 200 result, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"render: blocked; simple: 403"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if len(s.sink.events) != 0 {
		t.Fatalf("failed extraction should not be charged: %v", s.sink.events)
	}
}

func TestExtractValidation(t *testing.T) {
	s := newTestServer(nil)

	if rec := s.do("POST", "/extract", `{"location":""}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing location, got %d", rec.Code)
	}
	if rec := s.do("POST", "/extract", `{not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", rec.Code)
	}
	if rec := s.do("GET", "/extract", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestMonitorRoutes(t *testing.T) {
	s := newTestServer(nil)

	rec := s.do("POST", "/monitors", `{"id":"m1","criteria":{"location":"Seattle, WA"},"frequency":"weekly"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do("POST", "/monitors", `{"criteria":{"location":"Seattle, WA"},"notificationEmail":"bad"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad email, got %d", rec.Code)
	}

	rec = s.do("GET", "/monitors", "")
	var all []models.MonitorConfig
	json.Unmarshal(rec.Body.Bytes(), &all)
	if len(all) != 1 || all[0].ID != "m1" {
		t.Fatalf("unexpected list %s", rec.Body.String())
	}

	rec = s.do("GET", "/monitors/m1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status services.MonitorStatus
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status.ID != "m1" || !status.IsDue || status.Frequency != models.FrequencyWeekly {
		t.Fatalf("unexpected status %s", rec.Body.String())
	}

	if rec := s.do("GET", "/monitors/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := s.do("GET", "/monitors/monitors-list", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for the id list key, got %d", rec.Code)
	}
}

func TestSweepRoute(t *testing.T) {
	rec := newTestServer(nil).do("POST", "/monitors/sweep", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"processed":3`) {
		t.Fatalf("unexpected sweep response %d %s", rec.Code, rec.Body.String())
	}

	rec = newTestServer(scheduler.ErrSweepRunning).do("POST", "/monitors/sweep", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while running, got %d", rec.Code)
	}

	rec = newTestServer(errors.New("store down")).do("POST", "/monitors/sweep", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(nil)

	if rec := s.do("GET", "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	rec := s.do("GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "listing_extract_duration_seconds") {
		t.Fatalf("expected extract histogram in metrics output")
	}
}
