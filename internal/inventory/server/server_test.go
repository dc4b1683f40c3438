package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/secproto/internal/inventory"
	"github.com/dropDatabas3/secproto/internal/inventory/memory"
	"github.com/dropDatabas3/secproto/internal/protocol"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	inv, err := memory.New(memory.Config{
		Port:      8182,
		OptionKey: "das.config.vmacore.ssl.sslOptions",
		Values:    protocol.EncodedValues{Enable: "16924672", Disable: "50479104"},
	}, memory.SimpleFleet("c1", "esx-a", "esx-b"))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	s, err := New(inv, Config{Username: "admin", Password: "pw", Registerer: reg, Gatherer: reg})
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func login(t *testing.T, url, user, pass string) *http.Response {
	t.Helper()
	b, _ := json.Marshal(SessionRequest{Username: user, Password: pass})
	resp, err := http.Post(url+"/api/session", "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func TestSession_BadCredentials(t *testing.T) {
	_, ts := newTestServer(t)
	resp := login(t, ts.URL, "admin", "nope")
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_RequiresBearer(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/clusters")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = login(t, ts.URL, "admin", "pw")
	var sess SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	resp.Body.Close()
	require.NotEmpty(t, sess.Token)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/clusters", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cs []inventory.Cluster
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cs))
	require.Equal(t, []inventory.Cluster{{Name: "c1", HAEnabled: true}}, cs)
}

func TestAuth_ExpiredToken(t *testing.T) {
	s, ts := newTestServer(t)
	s.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	raw, _, err := s.issueToken("admin")
	require.NoError(t, err)
	s.now = time.Now

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/about", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthzAndMetrics(t *testing.T) {
	_, ts := newTestServer(t)
	for _, p := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(ts.URL + p)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, p)
	}
}
