package models

// Ingest statuses returned by POST /webhook/segment.
const (
	StatusSuccess  = "success"
	StatusFiltered = "filtered"
)

// Outcome is what type-specific processing reports for an accepted event.
// Only the fields relevant to the event type are populated.
type Outcome struct {
	Processed       bool   `json:"processed"`
	EventID         string `json:"event_id,omitempty"`
	Event           string `json:"event,omitempty"`
	Page            string `json:"page,omitempty"`
	Screen          string `json:"screen,omitempty"`
	EventType       string `json:"event_type,omitempty"`
	UserID          any    `json:"user_id,omitempty"`
	PropertiesCount *int   `json:"properties_count,omitempty"`
	TraitsCount     *int   `json:"traits_count,omitempty"`
	Archived        bool   `json:"archived,omitempty"`
	Note            string `json:"note,omitempty"`
}

// IngestResponse is returned by POST /webhook/segment.
type IngestResponse struct {
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	EventType string   `json:"event_type,omitempty"`
	Stage     string   `json:"stage,omitempty"`
	Timestamp string   `json:"timestamp"`
	Result    *Outcome `json:"result,omitempty"`
}

// RecentResponse is returned by GET /webhook/recent.
type RecentResponse struct {
	Status      string  `json:"status"`
	TotalEvents int     `json:"total_events"`
	Capacity    int     `json:"capacity"`
	Events      []Entry `json:"events"`
	Timestamp   string  `json:"timestamp"`
}
