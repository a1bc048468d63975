package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const testReportURL = "http://localhost:8070/ui/links/application/test-app/report/95c4c14e"

// fakeIQ serves the three IQ endpoints used by an audit. The policy action of
// the final report is configurable; the first status check is always pending.
type fakeIQ struct {
	action      string
	submissions atomic.Int32
	statusHits  atomic.Int32
}

func newFakeIQ(t *testing.T, action string) (*fakeIQ, *httptest.Server) {
	f := &fakeIQ{action: action}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v2/applications", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"applications": []map[string]any{{"id": "4bb67dcf", "publicId": r.URL.Query().Get("publicId")}},
		})
	})
	mux.HandleFunc("POST /api/v2/scan/applications/{id}/sources/{source}", func(w http.ResponseWriter, r *http.Request) {
		f.submissions.Add(1)
		writeJSON(w, http.StatusAccepted, map[string]string{
			"statusUrl": "api/v2/scan/applications/" + r.PathValue("id") + "/status/9cee2b63",
		})
	})
	mux.HandleFunc("GET /api/v2/scan/applications/{id}/status/{scan}", func(w http.ResponseWriter, r *http.Request) {
		if f.statusHits.Add(1) == 1 {
			writeJSON(w, http.StatusOK, map[string]any{"isError": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"policyAction":  f.action,
			"reportHtmlUrl": testReportURL,
			"isError":       false,
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return f, server
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// inTempDir runs the test from an empty directory so no stray manifest,
// .env or history database is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func executeCommand(args ...string) (string, string, error) {
	root := newRootCmd()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	root.SetOut(outBuf)
	root.SetErr(errBuf)
	root.SetIn(bytes.NewBufferString(""))
	root.SetArgs(args)
	err := root.Execute()
	return outBuf.String(), errBuf.String(), err
}

func serverArgs(url string, extra ...string) []string {
	args := []string{
		"--server-url", url,
		"--user", "admin",
		"--token", "admin123",
		"--application", "testapp",
		"--stage", "build",
		"--poll-interval", "10ms",
		"--timeout", "5s",
	}
	return append(args, extra...)
}
