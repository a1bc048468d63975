package iq

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"iqaudit/internal/telemetry"

	"github.com/stretchr/testify/require"
)

const (
	testPublicID   = "testapp"
	testInternalID = "4bb67dcfc86344e3a483832f8c496419"
	testStage      = "build"
	testStatusURL  = "api/v2/scan/applications/a20bc16e83944595a94c2e36c1cd228e/status/9cee2b6366fc4d328edc318eae46b2cb"
	testReportURL  = "http://localhost:8070/ui/links/application/test-app/report/95c4c14e"
)

var applicationInternalIDResponse = map[string]interface{}{
	"applications": []map[string]interface{}{
		{
			"id":       testInternalID,
			"publicId": testPublicID,
			"name":     "Test App",
		},
	},
}

// fakeIQ records hits per route and serves whatever the test configured.
type fakeIQ struct {
	t *testing.T

	mu      sync.Mutex
	hits    map[string]int
	bodies  map[string][]byte
	resolve http.HandlerFunc
	submit  http.HandlerFunc
	status  http.HandlerFunc
}

func newFakeIQ(t *testing.T) (*fakeIQ, *httptest.Server) {
	f := &fakeIQ{
		t:      t,
		hits:   map[string]int{},
		bodies: map[string][]byte{},
		resolve: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, applicationInternalIDResponse)
		},
		submit: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusAccepted, map[string]string{"statusUrl": testStatusURL})
		},
		status: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, terminalReport())
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v2/applications", f.route("resolve", func() http.HandlerFunc { return f.resolve }))
	mux.HandleFunc("POST /api/v2/scan/applications/{id}/sources/{source}", f.route("submit", func() http.HandlerFunc { return f.submit }))
	mux.HandleFunc("GET /api/v2/scan/applications/{id}/status/{scan}", f.route("status", func() http.HandlerFunc { return f.status }))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeIQ) route(name string, h func() http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "admin123" {
			f.t.Errorf("%s: missing or wrong credentials", name)
		}

		var body []byte
		if r.Body != nil {
			var raw json.RawMessage
			_ = json.NewDecoder(r.Body).Decode(&raw)
			body = raw
		}

		f.mu.Lock()
		f.hits[name]++
		f.bodies[name] = body
		handler := h()
		f.mu.Unlock()

		handler(w, r)
	}
}

func (f *fakeIQ) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[name]
}

func (f *fakeIQ) body(name string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[name]
}

func (f *fakeIQ) set(name string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch name {
	case "resolve":
		f.resolve = h
	case "submit":
		f.submit = h
	case "status":
		f.status = h
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func terminalReport() map[string]interface{} {
	return map[string]interface{}{
		"policyAction":  "None",
		"reportHtmlUrl": testReportURL,
		"isError":       false,
	}
}

func pendingReport() map[string]interface{} {
	return map[string]interface{}{
		"policyAction": "",
		"isError":      false,
	}
}

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		Username:     "admin",
		Token:        "admin123",
		PublicAppID:  testPublicID,
		Stage:        testStage,
		Timeout:      2 * time.Second,
		PollInterval: 10 * time.Millisecond,
	}
}

func newTestOrchestrator(t *testing.T, cfg Config, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(cfg, telemetry.Discard(), opts...)
	require.NoError(t, err)
	return o
}

// roundTripFunc lets tests fail selected requests at the transport level.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

var errConnRefused = errors.New("dial tcp: connection refused")
