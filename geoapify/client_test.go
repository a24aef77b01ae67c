package geoapify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *Options) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	options := &Options{
		APIKey:           "test-key",
		BaseURL:          srv.URL,
		Timeout:          time.Second,
		Retries:          2,
		Backoff:          time.Millisecond,
		BreakerThreshold: 3,
		BreakerCooldown:  time.Hour,
	}
	return New(options, nil, slog.New(slog.DiscardHandler)), options
}

var milan = []Location{
	{Lat: 45.4642, Lon: 9.1900},
	{Lat: 45.4654, Lon: 9.1859},
	{Lat: 45.4660, Lon: 9.1870},
}

func TestRouteMatrix_Request(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/routematrix", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))

		var body matrixRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "drive", body.Mode)
		assert.Equal(t, [2]float64{9.1900, 45.4642}, body.Sources[0].Location, "lon first")
		assert.Equal(t, [2]float64{9.1870, 45.4660}, body.Targets[1].Location)

		io.WriteString(w, `{"sources_to_targets":[
			[{"distance":1000,"time":120},{"distance":9,"time":9}],
			[{"distance":9,"time":9},{"distance":1000,"time":120}]
		]}`)
	})

	legs, err := c.RouteMatrix(context.Background(), milan[:2], milan[1:])
	require.NoError(t, err)
	assert.Equal(t, []Leg{{1000, 120}, {1000, 120}}, legs)
}

func TestParseLegs(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []Leg
		err  bool
	}{
		{"matrix", `{"sources_to_targets":[[{"distance":1200,"time":300},{}],[{},{"distance":800,"time":240}]]}`, []Leg{{1200, 300}, {800, 240}}, false},
		{"results", `{"results":[{"distance":1200,"duration":300},{"distance":800,"duration":240}]}`, []Leg{{1200, 300}, {800, 240}}, false},
		{"wrong row count", `{"sources_to_targets":[[{"distance":1,"time":1}]]}`, nil, true},
		{"wrong result count", `{"results":[{"distance":1,"duration":1}]}`, nil, true},
		{"null cell", `{"sources_to_targets":[[null,{}],[{},{"distance":1,"time":1}]]}`, nil, true},
		{"missing duration", `{"results":[{"distance":1},{"distance":1,"duration":1}]}`, nil, true},
		{"no matrix", `{"features":[]}`, nil, true},
		{"not json", `<html>`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			legs, err := parseLegs([]byte(tt.body), 2)
			if tt.err {
				assert.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, legs)
		})
	}
}

func TestRouteMatrix_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"results":[{"distance":500,"duration":60}]}`)
	})

	legs, err := c.RouteMatrix(context.Background(), milan[:1], milan[1:2])
	require.NoError(t, err)
	assert.Equal(t, []Leg{{500, 60}}, legs)
	assert.EqualValues(t, 3, calls.Load())
}

func TestRouteMatrix_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid apiKey", http.StatusUnauthorized)
	})

	_, err := c.RouteMatrix(context.Background(), milan[:1], milan[1:2])
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, stateClosed, c.breaker.current())
}

func TestRouteMatrix_CircuitOpens(t *testing.T) {
	var calls atomic.Int32
	c, options := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	options.Retries = 0

	for range 3 {
		_, err := c.RouteMatrix(context.Background(), milan[:1], milan[1:2])
		require.Error(t, err)
	}
	_, err := c.RouteMatrix(context.Background(), milan[:1], milan[1:2])
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.EqualValues(t, 3, calls.Load())
}

func TestBreaker_CancelledRequestReleases(t *testing.T) {
	var calls atomic.Int32
	inFlight := make(chan struct{})
	c, options := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			close(inFlight)
			<-r.Context().Done()
		default:
			io.WriteString(w, `{"results":[{"formatted":"Via Roma 123, Milano","lat":45.4642,"lon":9.19}]}`)
		}
	})
	options.Retries = 0
	c.breaker = newBreaker(1, 10*time.Millisecond, slog.New(slog.DiscardHandler))

	_, err := c.Autocomplete(context.Background(), "via roma", 0)
	require.Error(t, err)
	require.Equal(t, stateOpen, c.breaker.current())
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-inFlight
		cancel()
	}()
	_, err = c.Autocomplete(ctx, "via roma", 0)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, stateOpen, c.breaker.current())
	time.Sleep(20 * time.Millisecond)

	places, err := c.Autocomplete(context.Background(), "via roma", 0)
	require.NoError(t, err)
	assert.Len(t, places, 1)
	assert.Equal(t, stateClosed, c.breaker.current())
}

func TestBreaker_CancelledDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	failedAgain := make(chan struct{})
	c, options := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusBadGateway)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
			close(failedAgain)
		default:
			json.NewEncoder(w).Encode(map[string]any{
				"sources_to_targets": [][]map[string]any{{{"distance": 2000, "time": 300}}},
			})
		}
	})
	options.Retries = 0
	c.breaker = newBreaker(1, 10*time.Millisecond, slog.New(slog.DiscardHandler))

	_, err := c.RouteMatrix(context.Background(), milan[:1], milan[1:2])
	require.Error(t, err)
	time.Sleep(20 * time.Millisecond)

	options.Retries, options.Backoff = 1, time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-failedAgain
		cancel()
	}()
	_, err = c.RouteMatrix(ctx, milan[:1], milan[1:2])
	require.Error(t, err)
	assert.Equal(t, stateOpen, c.breaker.current())
	time.Sleep(20 * time.Millisecond)

	options.Retries = 0
	legs, err := c.RouteMatrix(context.Background(), milan[:1], milan[1:2])
	require.NoError(t, err)
	assert.Equal(t, []Leg{{Meters: 2000, Seconds: 300}}, legs)
}

func TestRouteMatrix_MissingKey(t *testing.T) {
	c, options := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected without a key")
	})
	options.APIKey = ""

	_, err := c.RouteMatrix(context.Background(), milan[:1], milan[1:2])
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestRouteMatrix_KeyNotInErrors(t *testing.T) {
	c, options := newTestClient(t, nil)
	options.BaseURL = "http://127.0.0.1:1"
	options.Retries = 0

	_, err := c.RouteMatrix(context.Background(), milan[:1], milan[1:2])
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "test-key")
}

func TestAutocomplete(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/geocode/autocomplete", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "via roma", q.Get("text"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "5", q.Get("limit"))
		io.WriteString(w, `{"results":[
			{"formatted":"Via Roma 123, Milano","lat":45.4642,"lon":9.19},
			{"formatted":"no coordinates"}
		]}`)
	})

	places, err := c.Autocomplete(context.Background(), " via roma ", 0)
	require.NoError(t, err)
	assert.Equal(t, []Place{{Address: "Via Roma 123, Milano", Location: Location{Lat: 45.4642, Lon: 9.19}}}, places)

	places, err = c.Autocomplete(context.Background(), "  ", 0)
	require.NoError(t, err)
	assert.Empty(t, places)
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{10, maxBackoff},
		{100, maxBackoff},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff(time.Second, tt.retry), "retry %d", tt.retry)
	}
}

func TestBreaker(t *testing.T) {
	now := time.Now()
	b := newBreaker(2, time.Minute, slog.New(slog.DiscardHandler))
	b.now = func() time.Time { return now }

	assert.True(t, b.allow())
	b.failure()
	assert.Equal(t, stateClosed, b.current())
	b.failure()
	assert.Equal(t, stateOpen, b.current())
	assert.False(t, b.allow())

	now = now.Add(time.Minute)
	assert.True(t, b.allow(), "probe after cooldown")
	assert.False(t, b.allow(), "single probe")
	b.failure()
	assert.Equal(t, stateOpen, b.current())

	now = now.Add(time.Minute)
	assert.True(t, b.allow())
	b.release()
	assert.Equal(t, stateOpen, b.current(), "released probe reopens")
	assert.True(t, b.allow(), "next call probes again")

	now = now.Add(time.Minute)
	require.True(t, b.allow())
	b.success()
	assert.Equal(t, stateClosed, b.current())
	assert.True(t, b.allow())
}
