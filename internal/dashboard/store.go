package dashboard

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"optionflow/marks"
	"optionflow/models"
	"optionflow/processor"
)

// Store holds the latest published portfolio state for the dashboard API.
// The orchestrator replaces whole snapshots; handlers only ever read copies,
// so a request observes one consistent aggregation run.
type Store struct {
	mu         sync.RWMutex
	snapshot   *processor.Snapshot
	valuations []marks.PositionValuation
	portfolio  models.Greeks
	excluded   []models.ExcludedTrade
	loadID     string
	updatedAt  time.Time
}

func NewStore() *Store {
	return &Store{}
}

// SetLoad records the outcome of a trade-file load.
func (s *Store) SetLoad(loadID string, excluded []models.ExcludedTrade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadID = loadID
	s.excluded = append([]models.ExcludedTrade(nil), excluded...)
}

// SetSnapshot publishes a new aggregation run with its valuations.
func (s *Store) SetSnapshot(snap *processor.Snapshot, valuations []marks.PositionValuation, portfolio models.Greeks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
	s.valuations = append([]marks.PositionValuation(nil), valuations...)
	s.portfolio = portfolio
	s.updatedAt = time.Now().UTC()
}

// Positions returns the latest valued positions.
func (s *Store) Positions() ([]marks.PositionValuation, models.Greeks, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]marks.PositionValuation, len(s.valuations))
	copy(out, s.valuations)
	return out, s.portfolio, s.updatedAt
}

// Excluded returns the refused rows of the latest load.
func (s *Store) Excluded() (string, []models.ExcludedTrade) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ExcludedTrade, len(s.excluded))
	copy(out, s.excluded)
	return s.loadID, out
}

// Dropped returns trades excluded from aggregation for missing leg fields.
func (s *Store) Dropped() []models.TradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil
	}
	out := make([]models.TradeRecord, len(s.snapshot.Dropped))
	copy(out, s.snapshot.Dropped)
	return out
}

// logRecord is the serialisable representation of a captured log entry.
type logRecord struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// logStore retains the most recent logs that flow through the global logger.
// It implements the logrus Hook interface so it can be attached directly to
// the application's logger.
type logStore struct {
	mu      sync.RWMutex
	items   []logRecord
	limit   int
	enabled atomic.Bool
}

func newLogStore(limit int) *logStore {
	if limit <= 0 {
		limit = 200
	}
	ls := &logStore{limit: limit}
	ls.enabled.Store(true)
	return ls
}

func (s *logStore) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (s *logStore) Fire(entry *logrus.Entry) error {
	if !s.enabled.Load() {
		return nil
	}

	record := logRecord{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
	}

	if component, ok := entry.Data["component"].(string); ok {
		record.Component = component
	}

	if len(entry.Data) > 0 {
		record.Fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if k == "component" {
				continue
			}

			switch val := v.(type) {
			case error:
				record.Fields[k] = val.Error()
			case fmt.Stringer:
				record.Fields[k] = val.String()
			default:
				record.Fields[k] = val
			}
		}
	}

	s.mu.Lock()
	s.items = append(s.items, record)
	if len(s.items) > s.limit {
		s.items = append([]logRecord(nil), s.items[len(s.items)-s.limit:]...)
	}
	s.mu.Unlock()
	return nil
}

func (s *logStore) snapshot() []logRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]logRecord, len(s.items))
	copy(out, s.items)
	return out
}

func (s *logStore) close() {
	s.enabled.Store(false)
}
