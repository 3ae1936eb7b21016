// Package pipeline is the boundary between the HTTP layer and the event
// core: it records every inbound event, runs the filter, processes accepted
// events, and answers the read queries over the recent-events buffer.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/luiza-sangalli/segment/internal/filter"
	"github.com/luiza-sangalli/segment/internal/logging"
	"github.com/luiza-sangalli/segment/internal/models"
	"github.com/luiza-sangalli/segment/internal/session"
	"github.com/luiza-sangalli/segment/internal/stats"
	"github.com/luiza-sangalli/segment/internal/store"
)

// DefaultRecentLimit is how many entries Recent returns when no limit is given.
const DefaultRecentLimit = 10

// ErrArchive wraps failures of the archive during processing.
var ErrArchive = errors.New("archive accepted event")

// Archiver persists accepted events. store.PostgresArchive implements it.
type Archiver interface {
	Archive(ctx context.Context, ev store.ArchivedEvent) (bool, error)
}

// Result describes what Ingest did with one event.
type Result struct {
	Status    string
	EventType string
	Entry     models.Entry
	Decision  filter.Decision
	Outcome   *models.Outcome
}

// Service owns the buffer and the filter settings for the process lifetime.
type Service struct {
	events   store.EventStore
	settings *filter.Settings
	archive  Archiver
	log      *logrus.Entry
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithArchive sends accepted events to a.
func WithArchive(a Archiver) Option {
	return func(s *Service) { s.archive = a }
}

// WithLogger sets the logger; the default discards output.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Service) { s.log = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service over events and settings.
func New(events store.EventStore, settings *filter.Settings, opts ...Option) *Service {
	s := &Service{
		events:   events,
		settings: settings,
		log:      logging.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField(logging.FieldComponent, "pipeline")
	return s
}

// Ingest records doc in the buffer, then filters it and processes it when
// accepted. Recording happens first and regardless of the decision, so
// rejected traffic still shows up in stats and sessions.
func (s *Service) Ingest(ctx context.Context, doc models.Document) (Result, error) {
	entry := s.Record(doc)

	decision := filter.Evaluate(doc, s.settings.Current(), s.now().UTC())
	s.logDecision(entry, decision)

	res := Result{
		EventType: doc.StringOr("type", "unknown"),
		Entry:     entry,
		Decision:  decision,
	}
	if !decision.Accepted {
		res.Status = models.StatusFiltered
		return res, nil
	}

	outcome, err := s.Process(ctx, entry)
	if err != nil {
		return res, err
	}
	res.Status = models.StatusSuccess
	res.Outcome = &outcome
	return res, nil
}

// Record appends doc to the buffer unconditionally.
func (s *Service) Record(doc models.Document) models.Entry {
	entry := models.Entry{
		ID:         uuid.NewString(),
		ReceivedAt: s.now().UTC(),
		Payload:    doc,
	}
	s.events.Append(entry)

	s.log.WithFields(logrus.Fields{
		logging.FieldEntryID:   entry.ID,
		logging.FieldEventType: doc.StringOr("type", "unknown"),
	}).Debug("event recorded")
	return entry
}

func (s *Service) logDecision(entry models.Entry, d filter.Decision) {
	log := s.log.WithFields(logrus.Fields{
		logging.FieldEntryID:   entry.ID,
		logging.FieldEventType: entry.Payload.StringOr("type", "unknown"),
	})

	if f := d.Freshness; f != nil && f.Status == filter.Indeterminate {
		switch f.Reason {
		case filter.ReasonMissing:
			log.Info("event has no timestamp, treating it as current")
		default:
			log.WithFields(logrus.Fields{logging.FieldReason: f.Reason, "raw": f.Raw}).
				Warn("invalid timestamp, treating event as current")
		}
	}

	if !d.Accepted {
		log.WithFields(logrus.Fields{
			logging.FieldStage:  d.Stage,
			logging.FieldReason: d.Reason,
		}).Info("event filtered")
	}
}

// Filters returns a copy of the current filter configuration.
func (s *Service) Filters() filter.Config {
	return s.settings.Snapshot()
}

// UpdateFilters merges the recognised keys of partial into the filter
// configuration. Unknown keys are ignored; an invalid value changes nothing.
func (s *Service) UpdateFilters(partial map[string]json.RawMessage) (filter.Config, []string, error) {
	cfg, keys, err := s.settings.Update(partial)
	if err != nil {
		return cfg, nil, fmt.Errorf("update filters: %w", err)
	}
	for _, k := range keys {
		s.log.WithField("key", k).WithField("value", string(partial[k])).Info("filter updated")
	}
	return cfg, keys, nil
}

// Recent returns the newest limit entries in arrival order and the buffer size.
func (s *Service) Recent(limit int) ([]models.Entry, int) {
	snap := s.events.Snapshot()
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > len(snap) {
		limit = len(snap)
	}
	return snap[len(snap)-limit:], len(snap)
}

// Stats computes counters over one buffer snapshot.
func (s *Service) Stats() stats.Stats {
	return stats.Compute(s.events.Snapshot())
}

// Sessions groups one buffer snapshot into session summaries.
func (s *Service) Sessions() session.Report {
	return session.Analyze(s.events.Snapshot())
}

// Capacity is the maximum number of buffered events.
func (s *Service) Capacity() int {
	return s.events.Capacity()
}
