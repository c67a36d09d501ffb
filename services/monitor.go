package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"realty_watch/logging"
	"realty_watch/models"
	"realty_watch/storage"
)

var ErrMonitorNotFound = errors.New("monitor not found")

// Extractor runs one search through the tier chain.
type Extractor interface {
	Extract(ctx context.Context, c models.SearchCriteria) (models.ExtractionResult, error)
}

// Archive keeps a copy of each successful poll result.
type Archive interface {
	Put(ctx context.Context, monitorID string, ts time.Time, v interface{}) error
}

// SweepRecorder counts sweeps and monitors with new listings.
type SweepRecorder interface {
	IncSweep(updated int)
}

type SweepStats struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
}

// MonitorStatus is a stored monitor plus values derived at read time.
type MonitorStatus struct {
	models.MonitorConfig
	IsDue     bool `json:"isDue"`
	LastCount int  `json:"lastCount"`
}

// MonitorService owns monitor lifecycle: create, read, and the periodic
// sweep that polls due monitors and diffs their results. mu serializes
// every read-modify-write of stored monitor state within the process.
type MonitorService struct {
	mu        sync.Mutex
	store     storage.Store
	extractor Extractor
	charge    ChargeSink
	notifier  Notifier
	archive   Archive
	metrics   SweepRecorder
	now       func() time.Time
}

func NewMonitorService(store storage.Store, extractor Extractor) *MonitorService {
	return &MonitorService{
		store:     store,
		extractor: extractor,
		charge:    LogChargeSink{},
		notifier:  LogNotifier{},
		now:       time.Now,
	}
}

func (s *MonitorService) SetChargeSink(c ChargeSink) { s.charge = c }
func (s *MonitorService) SetNotifier(n Notifier) { s.notifier = n }
func (s *MonitorService) SetArchive(a Archive) { s.archive = a }
func (s *MonitorService) SetMetrics(m SweepRecorder) { s.metrics = m }
func (s *MonitorService) SetClock(now func() time.Time) { s.now = now }

// Create validates and stores a new monitor. An empty id gets a uuid.
func (s *MonitorService) Create(ctx context.Context, input models.MonitorConfig) (*models.MonitorConfig, error) {
	input.ID = strings.TrimSpace(input.ID)
	input.NotificationEmail = strings.TrimSpace(input.NotificationEmail)
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if input.ID == storage.MonitorsListKey {
		return nil, &models.ValidationError{Field: "id", Message: "is reserved"}
	}
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.Frequency == "" {
		input.Frequency = models.FrequencyDaily
	}
	input.Criteria.Location = strings.TrimSpace(input.Criteria.Location)

	m := input
	m.CreatedAt = s.now().UTC()
	m.LastChecked = nil
	m.LastResults = nil
	m.NextRun = nil

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := storage.SetJSON(ctx, s.store, m.ID, &m); err != nil {
		return nil, fmt.Errorf("save monitor: %w", err)
	}

	ids, err := s.monitorIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if id == m.ID {
			logging.Infof("Monitor %s replaced", m.ID)
			return &m, nil
		}
	}
	ids = append(ids, m.ID)
	if err := storage.SetJSON(ctx, s.store, storage.MonitorsListKey, ids); err != nil {
		return nil, fmt.Errorf("save monitor list: %w", err)
	}

	logging.Infof("Monitor %s created (%s, %s)", m.ID, m.Criteria.Location, m.Frequency)
	return &m, nil
}

func (s *MonitorService) Get(ctx context.Context, id string) (*models.MonitorConfig, error) {
	if id == storage.MonitorsListKey {
		return nil, ErrMonitorNotFound
	}
	var m models.MonitorConfig
	found, err := storage.GetJSON(ctx, s.store, id, &m)
	if err != nil {
		return nil, fmt.Errorf("load monitor %s: %w", id, err)
	}
	if !found {
		return nil, ErrMonitorNotFound
	}
	return &m, nil
}

func (s *MonitorService) GetStatus(ctx context.Context, id string) (*MonitorStatus, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	status := &MonitorStatus{
		MonitorConfig: *m,
		IsDue:         ShouldRun(m, s.now()),
	}
	if m.LastResults != nil {
		status.LastCount = m.LastResults.Count
	}
	return status, nil
}

// List returns every monitor in list order. Ids whose config is missing are skipped.
func (s *MonitorService) List(ctx context.Context) ([]models.MonitorConfig, error) {
	ids, err := s.monitorIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.MonitorConfig, 0, len(ids))
	for _, id := range ids {
		m, err := s.Get(ctx, id)
		if errors.Is(err, ErrMonitorNotFound) {
			logging.Warnf("Monitor %s listed but not stored", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

func (s *MonitorService) monitorIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if _, err := storage.GetJSON(ctx, s.store, storage.MonitorsListKey, &ids); err != nil {
		return nil, fmt.Errorf("load monitor list: %w", err)
	}
	return ids, nil
}

// ProcessAllMonitors polls every due monitor in list order, one at a time.
// A failing monitor is logged and left untouched; the sweep continues.
func (s *MonitorService) ProcessAllMonitors(ctx context.Context) (SweepStats, error) {
	var stats SweepStats

	ids, err := s.monitorIDs(ctx)
	if err != nil {
		return stats, err
	}

	logging.Infof("Sweep starting: %d monitors", len(ids))
	for _, id := range ids {
		if ctx.Err() != nil {
			logging.Warnf("Sweep interrupted: %v", ctx.Err())
			break
		}
		polled, newCount, err := s.pollSafe(ctx, id)
		if err != nil {
			logging.Errorf("Monitor %s poll failed: %v", id, err)
			continue
		}
		if !polled {
			continue
		}
		stats.Processed++
		if newCount > 0 {
			stats.Updated++
		}
	}

	if s.metrics != nil {
		s.metrics.IncSweep(stats.Updated)
	}
	logging.Infof("Sweep done: %d processed, %d updated", stats.Processed, stats.Updated)
	return stats, nil
}

func (s *MonitorService) pollSafe(ctx context.Context, id string) (polled bool, newCount int, err error) {
	defer func() {
		if r := recover(); r != nil {
			polled, newCount = false, 0
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.poll(ctx, id)
}

func (s *MonitorService) poll(ctx context.Context, id string) (bool, int, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return false, 0, err
	}

	now := s.now().UTC()
	if !ShouldRun(m, now) {
		logging.Debugf("Monitor %s not due", id)
		return false, 0, nil
	}

	result, err := s.extractor.Extract(ctx, m.Criteria.Search())
	if err != nil {
		return false, 0, err
	}
	if result.Failed() {
		return false, 0, fmt.Errorf("extraction failed: %s", result.Error)
	}

	var previous []models.Listing
	if m.LastResults != nil {
		previous = m.LastResults.Listings
	}
	newListings := FindNew(result.Listings, previous)

	next := NextRun(m.Frequency, now)
	m, err = s.savePoll(ctx, m, now, result, next)
	if err != nil {
		return false, 0, err
	}

	Charge(ctx, s.charge, EventMonitorCheck)
	logging.Infof("Monitor %s: %d listings, %d new, next run %s", id, result.Count, len(newListings), next.Format(time.RFC3339))

	if len(newListings) > 0 {
		Charge(ctx, s.charge, EventNewListingsFound)
		if m.NotificationEmail != "" && s.notifier != nil {
			if err := s.notifier.Notify(ctx, m, newListings); err != nil {
				logging.Warnf("Monitor %s notify failed: %v", id, err)
			}
		}
	}

	if s.archive != nil {
		if err := s.archive.Put(ctx, m.ID, now, result); err != nil {
			logging.Warnf("Monitor %s archive failed: %v", id, err)
		}
	}

	return true, len(newListings), nil
}

// savePoll writes a poll result onto the stored monitor. The monitor is
// re-read under the lock; one replaced by Create since the poll began is
// left as the caller stored it.
func (s *MonitorService) savePoll(ctx context.Context, polled *models.MonitorConfig, now time.Time, result models.ExtractionResult, next time.Time) (*models.MonitorConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Get(ctx, polled.ID)
	if err != nil {
		return nil, err
	}
	if !current.CreatedAt.Equal(polled.CreatedAt) {
		return nil, fmt.Errorf("monitor %s was replaced during the poll", polled.ID)
	}

	current.LastChecked = &now
	current.LastResults = &result
	current.NextRun = &next
	if err := storage.SetJSON(ctx, s.store, current.ID, current); err != nil {
		return nil, fmt.Errorf("save monitor: %w", err)
	}
	return current, nil
}
