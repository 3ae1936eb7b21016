package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luiza-sangalli/segment/internal/config"
	"github.com/luiza-sangalli/segment/internal/filter"
	"github.com/luiza-sangalli/segment/internal/logging"
	"github.com/luiza-sangalli/segment/internal/pipeline"
	"github.com/luiza-sangalli/segment/internal/store"
)

////////////////////////////////////////////////////////////////////////////////
// ROUTER TEST SUITE
//
// Drives the full HTTP surface in process:
//
//   Client → gin router → pipeline → ring buffer → query → Response
//
////////////////////////////////////////////////////////////////////////////////

const adminKey = "admin-key-123"

type server struct {
	t   *testing.T
	srv *httptest.Server
	svc *pipeline.Service
}

func newServer(t *testing.T, ready Pinger) *server {
	t.Helper()

	cfg := config.Config{GinMode: "test", AdminAPIKey: adminKey, RecentCapacity: store.DefaultCapacity}
	svc := pipeline.New(store.NewRing(cfg.RecentCapacity), filter.NewSettings(filter.DefaultConfig()))
	srv := httptest.NewServer(NewRouter(cfg, svc, ready, logging.Discard()))
	t.Cleanup(srv.Close)

	return &server{t: t, srv: srv, svc: svc}
}

////////////////////////////////////////////////////////////////////////////////
// GENERIC HTTP HELPERS
////////////////////////////////////////////////////////////////////////////////

// get performs a GET request and decodes the JSON response.
func (s *server) get(path string) (int, map[string]any) {
	s.t.Helper()

	resp, err := s.srv.Client().Get(s.srv.URL + path)
	require.NoError(s.t, err)
	return decode(s.t, resp)
}

// post sends a raw body with an optional API key.
func (s *server) post(path, apiKey string, body []byte) (int, map[string]any) {
	s.t.Helper()

	req, err := http.NewRequest(http.MethodPost, s.srv.URL+path, bytes.NewReader(body))
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := s.srv.Client().Do(req)
	require.NoError(s.t, err)
	return decode(s.t, resp)
}

// postJSON marshals payload and posts it.
func (s *server) postJSON(path, apiKey string, payload any) (int, map[string]any) {
	s.t.Helper()

	b, err := json.Marshal(payload)
	require.NoError(s.t, err)
	return s.post(path, apiKey, b)
}

// postEvent is a convenience wrapper for POST /webhook/segment.
func (s *server) postEvent(payload map[string]any) (int, map[string]any) {
	return s.postJSON("/webhook/segment", "", payload)
}

func decode(t *testing.T, resp *http.Response) (int, map[string]any) {
	t.Helper()
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out), string(b))
	return resp.StatusCode, out
}

func fresh() string {
	return time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)
}

////////////////////////////////////////////////////////////////////////////////
// HEALTH & READINESS TESTS
////////////////////////////////////////////////////////////////////////////////

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth_ReturnsOK(t *testing.T) {
	s := newServer(t, nil)

	status, body := s.get("/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = s.get("/")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
}

func TestReady(t *testing.T) {
	status, _ := newServer(t, nil).get("/ready")
	assert.Equal(t, http.StatusOK, status)

	down := pingerFunc(func(context.Context) error { return errors.New("db down") })
	status, body := newServer(t, down).get("/ready")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "not_ready", body["status"])
}

////////////////////////////////////////////////////////////////////////////////
// INGESTION TESTS
////////////////////////////////////////////////////////////////////////////////

func TestSegment_AcceptedEvent(t *testing.T) {
	s := newServer(t, nil)

	status, body := s.postEvent(map[string]any{
		"type":       "track",
		"event":      "Checkout Started",
		"userId":     "u_100",
		"timestamp":  fresh(),
		"properties": map[string]any{"cart_size": 3},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "track", body["event_type"])

	result, ok := body["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, result["processed"])
	assert.Equal(t, "Checkout Started", result["event"])
	assert.EqualValues(t, 1, result["properties_count"])
}

func TestSegment_FilteredEventIsStillBuffered(t *testing.T) {
	s := newServer(t, nil)

	status, body := s.postEvent(map[string]any{"type": "identify", "userId": "test_user_42"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "filtered", body["status"])
	assert.Equal(t, string(filter.StageTestPattern), body["stage"])

	_, recent := s.get("/webhook/recent")
	assert.EqualValues(t, 1, recent["total_events"])
}

func TestSegment_MalformedPayload(t *testing.T) {
	s := newServer(t, nil)

	for _, body := range []string{`{not json`, `[1,2,3]`, `"just a string"`, `null`, ``} {
		status, resp := s.post("/webhook/segment", "", []byte(body))
		assert.Equal(t, http.StatusBadRequest, status, body)
		assert.Equal(t, "invalid JSON payload", resp["error"])
	}

	_, recent := s.get("/webhook/recent")
	assert.EqualValues(t, 0, recent["total_events"])
}

func TestTestWebhook_Echoes(t *testing.T) {
	s := newServer(t, nil)

	status, body := s.postJSON("/webhook/test", "", map[string]any{"hello": "world"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"hello": "world"}, body["received_data"])

	status, body = s.post("/webhook/test", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{}, body["received_data"])

	_, recent := s.get("/webhook/recent")
	assert.EqualValues(t, 0, recent["total_events"])
}

////////////////////////////////////////////////////////////////////////////////
// FILTER CONFIGURATION TESTS
////////////////////////////////////////////////////////////////////////////////

func TestFilters_GetAndUpdate(t *testing.T) {
	s := newServer(t, nil)

	status, body := s.get("/webhook/filters")
	require.Equal(t, http.StatusOK, status)
	filters := body["filters"].(map[string]any)
	assert.EqualValues(t, 24, filters["max_age_hours"])

	status, _ = s.postJSON("/webhook/filters", "", map[string]any{"max_age_hours": 1})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = s.postJSON("/webhook/filters", adminKey, map[string]any{"max_age_hours": 1, "unknownKey": "x"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"max_age_hours"}, body["updated_keys"])

	updated := body["updated_filters"].(map[string]any)
	assert.EqualValues(t, 1, updated["max_age_hours"])
	assert.NotContains(t, updated, "unknownKey")
	assert.Equal(t, filters["test_patterns"], updated["test_patterns"])

	status, _ = s.postJSON("/webhook/filters", adminKey, map[string]any{"filter_by_date": "sometimes"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.post("/webhook/filters", adminKey, []byte(`{"max_age_hours": null}`))
	assert.Equal(t, http.StatusBadRequest, status)

	_, body = s.get("/webhook/filters")
	assert.Equal(t, true, body["filters"].(map[string]any)["filter_by_date"])
	assert.EqualValues(t, 1, body["filters"].(map[string]any)["max_age_hours"])
}

func TestFilters_UpdateChangesDecisions(t *testing.T) {
	s := newServer(t, nil)
	event := map[string]any{"type": "track", "event": "Video Played", "timestamp": fresh()}

	_, body := s.postEvent(event)
	assert.Equal(t, "filtered", body["status"])

	status, _ := s.postJSON("/webhook/filters", adminKey, map[string]any{"allowed_track_events": []string{}})
	require.Equal(t, http.StatusOK, status)

	_, body = s.postEvent(event)
	assert.Equal(t, "success", body["status"])
}

////////////////////////////////////////////////////////////////////////////////
// QUERY TESTS
////////////////////////////////////////////////////////////////////////////////

func TestRecent(t *testing.T) {
	s := newServer(t, nil)
	for i := 0; i < 55; i++ {
		s.postEvent(map[string]any{"type": "page", "name": fmt.Sprintf("p%d", i)})
	}

	_, body := s.get("/webhook/recent")
	assert.EqualValues(t, 50, body["total_events"])
	assert.EqualValues(t, store.DefaultCapacity, body["capacity"])
	events := body["events"].([]any)
	require.Len(t, events, 10)
	last := events[9].(map[string]any)["data"].(map[string]any)
	assert.Equal(t, "p54", last["name"])

	_, body = s.get("/webhook/recent?limit=3")
	assert.Len(t, body["events"], 3)

	status, _ := s.get("/webhook/recent?limit=zero")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStatsAndSessions(t *testing.T) {
	s := newServer(t, nil)

	_, body := s.get("/webhook/stats")
	assert.EqualValues(t, 0, body["total_events"])
	assert.NotEmpty(t, body["message"])

	base := time.Now().UTC().Add(-30 * time.Minute)
	for i, name := range []string{"Home", "Catalog", "Cart"} {
		s.postEvent(map[string]any{
			"type":       "screen",
			"name":       name,
			"userId":     "u_1",
			"timestamp":  base.Add(time.Duration(i) * 5 * time.Minute).Format(time.RFC3339),
			"properties": map[string]any{"session_id": "S1", "screen_name": name},
		})
	}
	s.postEvent(map[string]any{"type": "track", "event": "Button Clicked", "userId": "u_2", "timestamp": fresh()})

	status, body := s.get("/webhook/stats")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 4, body["total_events"])
	assert.EqualValues(t, 2, body["unique_users"])
	assert.Equal(t, map[string]any{"screen": 3.0, "track": 1.0}, body["event_types"])
	assert.Equal(t, map[string]any{"Button Clicked": 1.0}, body["track_events"])
	assert.NotEmpty(t, body["first_event"])

	status, body = s.get("/webhook/sessions")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total_sessions"])
	sessions := body["sessions"].([]any)
	require.Len(t, sessions, 1)
	s1 := sessions[0].(map[string]any)
	assert.Equal(t, "S1", s1["session_id"])
	assert.EqualValues(t, 10, s1["duration_minutes"])
	assert.Equal(t, []any{"Home", "Catalog", "Cart"}, s1["screens"])

	_, again := s.get("/webhook/sessions")
	delete(body, "timestamp")
	delete(again, "timestamp")
	assert.Equal(t, body, again)
}
