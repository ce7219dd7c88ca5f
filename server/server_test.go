package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgduncan/wheretogo"
	"github.com/dgduncan/wheretogo/server"
)

type stubSource struct {
	events []wheretogo.Event
	err    error
	query  wheretogo.Query
}

func (s *stubSource) Fetch(_ context.Context, _, _ time.Time, q wheretogo.Query) ([]wheretogo.Event, error) {
	s.query = q
	return s.events, s.err
}

func event(name, start, end string) wheretogo.Event {
	return wheretogo.Event{Name: name, Dates: wheretogo.Dates{
		Start: &wheretogo.DateSpec{DateTime: start},
		End:   &wheretogo.DateSpec{DateTime: end},
	}}
}

var seed = []wheretogo.Event{
	event("EventA", "2019-05-16T11:30:00Z", "2019-05-16T13:30:00Z"),
	event("EventB", "2019-05-16T13:00:00Z", "2019-05-16T14:30:00Z"),
	event("EventC", "2019-05-16T14:10:00Z", "2019-05-16T14:30:00Z"),
	event("EventD", "2019-05-17T19:30:00Z", "2019-05-17T20:00:00Z"),
}

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, source *stubSource, target string) *httptest.ResponseRecorder {
	t.Helper()

	r := server.New(wheretogo.New(source, nil, nil, nil), nil)

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, target, nil)
	require.NoError(t, err)

	r.ServeHTTP(w, req)
	return w
}

func decodeNames(t *testing.T, body []byte) []string {
	t.Helper()

	var events []wheretogo.Event
	require.NoError(t, json.Unmarshal(body, &events))

	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Name)
	}
	return out
}

func TestGetEvents(t *testing.T) {
	source := &stubSource{events: seed}

	w := serve(t, source, "/events?start=2019-05-16T00:00:00Z&end=2019-05-18T00:00:00Z&city=Berlin"+
		"&busy=2019-05-16T12:00:00Z/2019-05-16T14:00:00Z&busy=2019-05-17T19:00:00Z/2019-05-17T21:00:00Z")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"EventC"}, decodeNames(t, w.Body.Bytes()))
	assert.Equal(t, wheretogo.Query{"city": {"Berlin"}}, source.query)
}

func TestGetEventsWithoutBusy(t *testing.T) {
	w := serve(t, &stubSource{events: seed}, "/events?start=2019-05-16T00:00:00Z&end=2019-05-18T00:00:00Z")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"EventA", "EventB", "EventC", "EventD"}, decodeNames(t, w.Body.Bytes()))
}

func TestGetEventsEmpty(t *testing.T) {
	w := serve(t, &stubSource{}, "/events?start=2019-05-16T00:00:00Z&end=2019-05-18T00:00:00Z")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestGetEventsICS(t *testing.T) {
	w := serve(t, &stubSource{events: seed}, "/events?start=2019-05-16T00:00:00Z&end=2019-05-18T00:00:00Z&format=ics")

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/calendar"))
	assert.Equal(t, 4, strings.Count(w.Body.String(), "BEGIN:VEVENT"))
}

func TestGetEventsErrors(t *testing.T) {
	tests := []struct {
		name   string
		source *stubSource
		target string
		want   int
	}{
		{
			name:   "malformed start",
			source: &stubSource{},
			target: "/events?start=someday&end=2019-05-18T00:00:00Z",
			want:   http.StatusBadRequest,
		},
		{
			name:   "missing end",
			source: &stubSource{},
			target: "/events?start=2019-05-16T00:00:00Z",
			want:   http.StatusBadRequest,
		},
		{
			name:   "busy without separator",
			source: &stubSource{},
			target: "/events?start=2019-05-16T00:00:00Z&end=2019-05-18T00:00:00Z&busy=2019-05-16T12:00:00Z",
			want:   http.StatusBadRequest,
		},
		{
			name:   "malformed busy endpoint",
			source: &stubSource{},
			target: "/events?start=2019-05-16T00:00:00Z&end=2019-05-18T00:00:00Z&busy=2019-05-16T12:00:00Z/never",
			want:   http.StatusBadRequest,
		},
		{
			name:   "unsupported format",
			source: &stubSource{},
			target: "/events?start=2019-05-16T00:00:00Z&end=2019-05-18T00:00:00Z&format=xml",
			want:   http.StatusBadRequest,
		},
		{
			name:   "source unavailable",
			source: &stubSource{err: &wheretogo.TransportError{URL: "https://example.com", StatusCode: 503, Status: "503 Service Unavailable"}},
			target: "/events?start=2019-05-16T00:00:00Z&end=2019-05-18T00:00:00Z",
			want:   http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, tt.source, tt.target)

			assert.Equal(t, tt.want, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHealthz(t *testing.T) {
	w := serve(t, &stubSource{}, "/healthz")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
