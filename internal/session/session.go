// Package session groups buffered events into per-session summaries.
// Summaries are derived on every call and never cached.
package session

import (
	"math"
	"sort"
	"time"

	"github.com/luiza-sangalli/segment/internal/filter"
	"github.com/luiza-sangalli/segment/internal/models"
)

// MaxSessions caps the listing to the most recently active sessions.
const MaxSessions = 20

// Member is one event of a session, as listed in a Summary.
type Member struct {
	Type       string    `json:"type"`
	Event      string    `json:"event,omitempty"`
	ScreenName string    `json:"screen_name,omitempty"`
	Timestamp  string    `json:"timestamp"`
	ReceivedAt time.Time `json:"received_at"`
}

// Summary describes one session.
type Summary struct {
	SessionID       string         `json:"session_id"`
	UserID          string         `json:"user_id,omitempty"`
	AnonymousID     string         `json:"anonymous_id,omitempty"`
	EventCount      int            `json:"event_count"`
	EventTypes      map[string]int `json:"event_types"`
	Screens         []string       `json:"screens"`
	FirstEventTime  string         `json:"first_event_time"`
	LastEventTime   string         `json:"last_event_time"`
	DurationMinutes float64        `json:"duration_minutes"`
	AppVersion      string         `json:"app_version,omitempty"`
	DeviceModel     string         `json:"device_model,omitempty"`
	OSVersion       string         `json:"os_version,omitempty"`
	Timezone        string         `json:"timezone,omitempty"`
	Network         any            `json:"network,omitempty"`
	Events          []Member       `json:"events"`
}

// Report is the response of the sessions query.
type Report struct {
	TotalSessions int       `json:"total_sessions"`
	Sessions      []Summary `json:"sessions"`
}

// ExtractID returns the session id of doc. properties.session_id wins;
// context.traits.session_id is a legacy fallback that current producers do
// not populate. String and numeric ids are accepted.
func ExtractID(doc models.Document) (string, bool) {
	v := doc.Map("properties")["session_id"]
	if !models.Truthy(v) {
		v, _ = filter.Resolve(doc, "context.traits.session_id")
	}
	if !models.Truthy(v) {
		return "", false
	}
	switch v.(type) {
	case string, float64:
		return models.Stringify(v), true
	default:
		return "", false
	}
}

type group struct {
	id      string
	entries []models.Entry // arrival order
}

// Analyze groups snapshot by session id and returns the MaxSessions sessions
// with the latest last event. Events without a session id are skipped.
func Analyze(snapshot []models.Entry) Report {
	groups := map[string]*group{}
	var order []*group
	for _, e := range snapshot {
		id, ok := ExtractID(e.Payload)
		if !ok {
			continue
		}
		g, seen := groups[id]
		if !seen {
			g = &group{id: id}
			groups[id] = g
			order = append(order, g)
		}
		g.entries = append(g.entries, e)
	}

	summaries := make([]Summary, 0, len(order))
	for _, g := range order {
		summaries = append(summaries, summarize(g))
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i].LastEventTime, summaries[j].LastEventTime
		if (a == "") != (b == "") {
			return a != ""
		}
		return a > b
	})

	report := Report{TotalSessions: len(summaries), Sessions: summaries}
	if len(report.Sessions) > MaxSessions {
		report.Sessions = report.Sessions[:MaxSessions]
	}
	return report
}

func timestampOf(doc models.Document) string {
	return doc.StringOr("timestamp", "")
}

func summarize(g *group) Summary {
	// Attribution is pinned to the first event to arrive, before sorting.
	first := g.entries[0].Payload
	s := Summary{
		SessionID:   g.id,
		UserID:      models.Stringify(first["userId"]),
		AnonymousID: models.Stringify(first["anonymousId"]),
		EventCount:  len(g.entries),
		EventTypes:  map[string]int{},
		Screens:     []string{},
	}

	sorted := append([]models.Entry(nil), g.entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return timestampOf(sorted[i].Payload) < timestampOf(sorted[j].Payload)
	})

	seenScreens := map[string]bool{}
	s.Events = make([]Member, 0, len(sorted))
	for _, e := range sorted {
		doc := e.Payload
		m := Member{
			Type:       doc.StringOr("type", "unknown"),
			Event:      doc.StringOr("event", ""),
			Timestamp:  timestampOf(doc),
			ReceivedAt: e.ReceivedAt,
		}
		if screen, ok := doc.Map("properties")["screen_name"].(string); ok && screen != "" {
			m.ScreenName = screen
			if !seenScreens[screen] {
				seenScreens[screen] = true
				s.Screens = append(s.Screens, screen)
			}
		}
		s.EventTypes[m.Type]++
		s.Events = append(s.Events, m)
	}

	s.FirstEventTime = s.Events[0].Timestamp
	s.LastEventTime = s.Events[len(s.Events)-1].Timestamp
	s.DurationMinutes = durationMinutes(s.FirstEventTime, s.LastEventTime, len(sorted))

	device := sorted[0].Payload
	s.AppVersion = stringAt(device, "context.app.version")
	s.DeviceModel = stringAt(device, "context.device.model")
	s.OSVersion = stringAt(device, "context.os.version")
	s.Timezone = stringAt(device, "context.timezone")
	if network, ok := filter.Resolve(device, "context.network"); ok && models.Truthy(network) {
		s.Network = network
	}
	return s
}

// durationMinutes is the span between first and last, rounded to 0.1 minute.
// It is 0 when there are fewer than two events or either end does not parse.
func durationMinutes(first, last string, count int) float64 {
	if count < 2 {
		return 0
	}
	start, startZoned, err := filter.ParseTimestamp(first)
	if err != nil {
		return 0
	}
	end, endZoned, err := filter.ParseTimestamp(last)
	if err != nil || startZoned != endZoned {
		return 0
	}
	return math.Round(end.Sub(start).Minutes()*10) / 10
}

func stringAt(doc models.Document, path string) string {
	v, _ := filter.Resolve(doc, path)
	return models.Stringify(v)
}
