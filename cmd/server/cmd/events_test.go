package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEventsFlags(t *testing.T, server, format, category string, page int, verbose bool) {
	t.Helper()
	prev := []any{eventsServerURL, eventsFormat, eventsCategory, eventsPage, eventsLimit, eventsVerbose}
	t.Cleanup(func() {
		eventsServerURL = prev[0].(string)
		eventsFormat = prev[1].(string)
		eventsCategory = prev[2].(string)
		eventsPage = prev[3].(int)
		eventsLimit = prev[4].(int)
		eventsVerbose = prev[5].(bool)
	})
	eventsServerURL, eventsFormat, eventsCategory = server, format, category
	eventsPage, eventsLimit, eventsVerbose = page, 2, verbose
}

func eventsAPI(t *testing.T, status int, body string) (*httptest.Server, *string) {
	t.Helper()
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events", r.URL.Path)
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &query
}

const twoEvents = `{
  "success": true,
  "data": [
    {"id": "01J1", "title": "Go Meetup", "category": "networking", "dateTime": "2030-03-01T18:00:00Z",
     "capacity": 40, "availableSpots": 12, "location": {"venue": "Community Hall", "city": "Toronto"}},
    {"id": "01J2", "title": "Remote Workshop", "category": "workshop", "dateTime": "2030-03-02T15:00:00Z",
     "isVirtual": true, "capacity": 100, "availableSpots": 0, "description": "Hands-on session"}
  ],
  "pagination": {"page": 1, "limit": 2, "total": 5, "pages": 3}
}`

func TestRunEventsQueryTable(t *testing.T) {
	srv, query := eventsAPI(t, http.StatusOK, twoEvents)
	withEventsFlags(t, srv.URL, "table", "workshop", 1, false)

	var out bytes.Buffer
	require.NoError(t, runEventsQuery(context.Background(), srv.Client(), &out))

	assert.Contains(t, *query, "category=workshop")
	assert.Contains(t, *query, "limit=2")
	text := out.String()
	assert.Contains(t, text, "Go Meetup")
	assert.Contains(t, text, "Community Hall, Toronto")
	assert.Contains(t, text, "12/40")
	assert.Contains(t, text, "online")
	assert.Contains(t, text, "Mar 1, 2030 6:00 PM")
	assert.Contains(t, text, "Use --page 2 for more.")
}

func TestRunEventsQueryVerbose(t *testing.T) {
	srv, _ := eventsAPI(t, http.StatusOK, twoEvents)
	withEventsFlags(t, srv.URL, "table", "", 1, true)

	var out bytes.Buffer
	require.NoError(t, runEventsQuery(context.Background(), srv.Client(), &out))

	assert.Contains(t, out.String(), "ID:          01J2")
	assert.Contains(t, out.String(), "Spots:       0 of 100 left")
	assert.Contains(t, out.String(), "Description: Hands-on session")
}

func TestRunEventsQueryJSON(t *testing.T) {
	srv, _ := eventsAPI(t, http.StatusOK, twoEvents)
	withEventsFlags(t, srv.URL, "json", "", 3, false)

	var out bytes.Buffer
	require.NoError(t, runEventsQuery(context.Background(), srv.Client(), &out))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, true, decoded["success"])
	assert.True(t, strings.HasPrefix(out.String(), "{\n  "))
}

func TestRunEventsQueryEmpty(t *testing.T) {
	srv, _ := eventsAPI(t, http.StatusOK, `{"success": true, "data": []}`)
	withEventsFlags(t, srv.URL, "table", "", 1, false)

	var out bytes.Buffer
	require.NoError(t, runEventsQuery(context.Background(), srv.Client(), &out))
	assert.Equal(t, "No events found.\n", out.String())
}

func TestRunEventsQueryServerError(t *testing.T) {
	srv, _ := eventsAPI(t, http.StatusBadRequest, `{"success": false, "message": "Invalid category"}`)
	withEventsFlags(t, srv.URL, "table", "karaoke", 1, false)

	err := runEventsQuery(context.Background(), srv.Client(), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid category")
}

func TestEventsQueryURLRejectsRelative(t *testing.T) {
	withEventsFlags(t, "localhost:5000", "table", "", 1, false)
	_, err := eventsQueryURL()
	assert.Error(t, err)
}
