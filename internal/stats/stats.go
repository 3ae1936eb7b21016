// Package stats computes global counters over the recent-events buffer.
package stats

import (
	"time"

	"github.com/luiza-sangalli/segment/internal/models"
)

// EmptyMessage is reported when the buffer holds no events.
const EmptyMessage = "no events received yet"

// Stats summarises a buffer snapshot. FirstEvent and LastEvent are the
// receive times of the oldest and newest entries and are nil when empty.
type Stats struct {
	TotalEvents int            `json:"total_events"`
	UniqueUsers int            `json:"unique_users"`
	EventTypes  map[string]int `json:"event_types"`
	TrackEvents map[string]int `json:"track_events"`
	FirstEvent  *time.Time     `json:"first_event,omitempty"`
	LastEvent   *time.Time     `json:"last_event,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// Compute counts event types, track event names and distinct user ids.
func Compute(snapshot []models.Entry) Stats {
	s := Stats{
		EventTypes:  map[string]int{},
		TrackEvents: map[string]int{},
	}
	if len(snapshot) == 0 {
		s.Message = EmptyMessage
		return s
	}

	users := map[string]struct{}{}
	for _, e := range snapshot {
		doc := e.Payload

		eventType := "unknown"
		if v, ok := doc["type"]; ok {
			eventType = models.Stringify(v)
		}
		s.EventTypes[eventType]++

		if eventType == "track" {
			name := "unknown"
			if v, ok := doc["event"]; ok {
				name = models.Stringify(v)
			}
			s.TrackEvents[name]++
		}

		if uid := doc["userId"]; models.Truthy(uid) {
			users[models.Stringify(uid)] = struct{}{}
		}
	}

	first := snapshot[0].ReceivedAt
	last := snapshot[len(snapshot)-1].ReceivedAt
	s.TotalEvents = len(snapshot)
	s.UniqueUsers = len(users)
	s.FirstEvent = &first
	s.LastEvent = &last
	return s
}
