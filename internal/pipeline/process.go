package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/luiza-sangalli/segment/internal/filter"
	"github.com/luiza-sangalli/segment/internal/logging"
	"github.com/luiza-sangalli/segment/internal/models"
	"github.com/luiza-sangalli/segment/internal/session"
	"github.com/luiza-sangalli/segment/internal/store"
)

// Process runs the type-specific handling for an accepted entry and, when an
// archive is configured, stores it there.
func (s *Service) Process(ctx context.Context, entry models.Entry) (models.Outcome, error) {
	doc := entry.Payload
	eventType := doc.StringOr("type", "unknown")
	log := s.log.WithFields(logrus.Fields{
		logging.FieldEntryID:   entry.ID,
		logging.FieldEventType: eventType,
		logging.FieldUserID:    doc["userId"],
	})

	var out models.Outcome
	switch eventType {
	case "track":
		out = models.Outcome{
			Event:           doc.StringOr("event", "unknown"),
			UserID:          doc["userId"],
			PropertiesCount: count(doc.Map("properties")),
		}
		log.WithField(logging.FieldEventName, out.Event).Info("processing track event")
	case "identify":
		out = models.Outcome{
			UserID:      doc["userId"],
			TraitsCount: count(doc.Map("traits")),
		}
		log.Info("processing identify event")
	case "page":
		out = models.Outcome{
			Page:            doc.StringOr("name", "unknown"),
			UserID:          doc["userId"],
			PropertiesCount: count(doc.Map("properties")),
		}
		log.WithField("page", out.Page).Info("processing page event")
	case "screen":
		out = models.Outcome{
			Screen:          doc.StringOr("name", "unknown"),
			UserID:          doc["userId"],
			PropertiesCount: count(doc.Map("properties")),
		}
		log.WithField("screen", out.Screen).Info("processing screen event")
	default:
		out = models.Outcome{
			EventType: eventType,
			Note:      "unrecognised event type",
		}
		log.Warn("processing unknown event type")
	}
	out.Processed = true

	if s.archive == nil {
		return out, nil
	}

	ev := archivedEvent(entry, eventType)
	inserted, err := s.archive.Archive(ctx, ev)
	if err != nil {
		log.WithError(err).Error("archive failed")
		return out, fmt.Errorf("%w %s: %w", ErrArchive, ev.EventID, err)
	}
	out.EventID = ev.EventID
	out.Archived = inserted
	if !inserted {
		log.WithField("event_id", ev.EventID).Info("event already archived")
	}
	return out, nil
}

func count(m map[string]any) *int {
	n := len(m)
	return &n
}

// archivedEvent maps an entry to an archive row. Segment's messageId is the
// dedupe key; a fresh UUID is used when the payload carries none.
func archivedEvent(entry models.Entry, eventType string) store.ArchivedEvent {
	doc := entry.Payload

	id := doc.StringOr("messageId", "")
	if id == "" {
		id = uuid.NewString()
	}

	ev := store.ArchivedEvent{
		EventID:     id,
		EventType:   eventType,
		EventName:   doc.StringOr("event", ""),
		UserID:      models.Stringify(doc["userId"]),
		AnonymousID: models.Stringify(doc["anonymousId"]),
		ReceivedAt:  entry.ReceivedAt,
		Payload:     doc,
	}
	if sid, ok := session.ExtractID(doc); ok {
		ev.SessionID = sid
	}
	if ts, ok := doc.String("timestamp"); ok {
		if t, _, err := filter.ParseTimestamp(ts); err == nil {
			ev.EventTime = ptr(t)
		}
	}
	return ev
}

func ptr(t time.Time) *time.Time { return &t }
