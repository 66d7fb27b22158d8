package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
}

// fakeServer answers every request with the given status and envelope and
// records what it received.
func fakeServer(t *testing.T, status int, envelope string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var reqs []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			require.NoError(t, json.Unmarshal(data, &rec.body))
		}
		reqs = append(reqs, rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(envelope))
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func execute(t *testing.T, srv *httptest.Server, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestHealth(t *testing.T) {
	srv, reqs := fakeServer(t, http.StatusOK, `{"success":true,"data":{"status":"healthy","active_sessions":2,"registered_stages":10}}`)

	out, _, err := execute(t, srv, "", "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Server Status: healthy")
	assert.Contains(t, out, "Active Sessions: 2")
	assert.Equal(t, "/health", (*reqs)[0].path)
}

func TestListCommands(t *testing.T) {
	tests := []struct {
		args []string
		path string
	}{
		{[]string{"workflows"}, "/api/v1/workflows"},
		{[]string{"pathways"}, "/api/v1/lightning/pathways"},
		{[]string{"modules"}, "/api/v1/modules"},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			srv, reqs := fakeServer(t, http.StatusOK, `{"success":true,"data":[{"name":"x"}]}`)
			out, _, err := execute(t, srv, "", tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.path, (*reqs)[0].path)
			assert.JSONEq(t, `[{"name":"x"}]`, out)
		})
	}
}

func TestSessionCreate(t *testing.T) {
	srv, reqs := fakeServer(t, http.StatusCreated, `{"success":true,"data":{"session_id":"abc"}}`)

	out, _, err := execute(t, srv, "", "session", "create", "--owner", "alice", "--stages", "chesed,tiferet,gevurah", "--pattern", "balancing")
	require.NoError(t, err)
	assert.JSONEq(t, `{"session_id":"abc"}`, out)

	req := (*reqs)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/api/v1/sessions", req.path)
	assert.Equal(t, "alice", req.body["owner_id"])
	assert.Equal(t, "balancing", req.body["flow_pattern"])
	assert.Equal(t, []any{"chesed", "tiferet", "gevurah"}, req.body["explicit_stages"])
}

func TestSessionCreate_RequiresOwner(t *testing.T) {
	srv, reqs := fakeServer(t, http.StatusCreated, `{"success":true,"data":{}}`)
	_, _, err := execute(t, srv, "", "session", "create")
	require.Error(t, err)
	assert.Empty(t, *reqs)
}

func TestSessionProcess_ReadsStdin(t *testing.T) {
	srv, reqs := fakeServer(t, http.StatusOK, `{"success":true,"data":{"success":true}}`)

	_, _, err := execute(t, srv, "I want balance\n", "session", "process", "abc", "--context", "mood=calm")
	require.NoError(t, err)

	req := (*reqs)[0]
	assert.Equal(t, "/api/v1/sessions/abc/process", req.path)
	assert.Equal(t, "I want balance", req.body["input"])
	assert.Equal(t, map[string]any{"mood": "calm"}, req.body["context"])
}

func TestSessionAdapterAndComplete(t *testing.T) {
	srv, reqs := fakeServer(t, http.StatusOK, `{"success":true,"data":{}}`)

	_, _, err := execute(t, srv, "", "session", "adapter", "abc", "journaling", "--input", "notes")
	require.NoError(t, err)
	_, _, err = execute(t, srv, "", "session", "complete", "abc")
	require.NoError(t, err)
	_, _, err = execute(t, srv, "", "session", "get", "abc")
	require.NoError(t, err)

	require.Len(t, *reqs, 3)
	assert.Equal(t, "/api/v1/sessions/abc/adapter/journaling", (*reqs)[0].path)
	assert.Equal(t, "notes", (*reqs)[0].body["input"])
	assert.Equal(t, "/api/v1/sessions/abc/complete", (*reqs)[1].path)
	assert.Equal(t, http.MethodGet, (*reqs)[2].method)
}

func TestLightning_ConsentNotice(t *testing.T) {
	srv, reqs := fakeServer(t, http.StatusOK, `{"success":true,"data":{"success":false,"consent_required":true,"message":"Consent required"}}`)

	out, errOut, err := execute(t, srv, "", "lightning", "--owner", "alice", "--pathway", "spiral", "--input", "go")
	require.NoError(t, err)
	assert.Contains(t, errOut, "re-run with --consent")
	assert.Contains(t, out, `"consent_required": true`)

	body := (*reqs)[0].body
	assert.Equal(t, "spiral", body["pathway"])
	assert.Equal(t, "moderate", body["intensity"])
	assert.Equal(t, false, body["consent_confirmed"])
}

func TestLightningGet(t *testing.T) {
	srv, reqs := fakeServer(t, http.StatusOK, `{"success":true,"data":{"id":"r1"}}`)
	_, _, err := execute(t, srv, "", "lightning", "get", "r1")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/lightning/r1", (*reqs)[0].path)
}

func TestServerError(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusConflict, `{"success":false,"error":"session is closed"}`)

	_, _, err := execute(t, srv, "", "session", "process", "abc", "--input", "x")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "session is closed", apiErr.Message)
}

func TestParseContext(t *testing.T) {
	got, err := parseContext([]string{"a=1", "b=x=y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": "x=y"}, got)

	_, err = parseContext([]string{"novalue"})
	assert.Error(t, err)

	got, err = parseContext(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}
