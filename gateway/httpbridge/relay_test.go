package httpbridge

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway answers every connection with one canned response line.
// It returns the socket path and a counter of accepted connections.
func fakeGateway(t *testing.T, response string) (string, *atomic.Int32) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fake.sock")
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	var accepted atomic.Int32
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			go func() {
				defer conn.Close()
				if _, err := bufio.NewReader(conn).ReadString('\n'); err != nil {
					return
				}
				_, _ = conn.Write([]byte(response + "\n"))
			}()
		}
	}()

	return path, &accepted
}

func newRelay(t *testing.T, gatewayAddr string) *Relay {
	t.Helper()
	cfg := Config{GatewayNetwork: "unix", GatewayAddr: gatewayAddr, TimeoutStr: "2s"}
	require.NoError(t, cfg.Validate())
	return NewRelay(cfg, nil, nil)
}

func postJSON(relay *Relay, apiKey, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	if apiKey != "" {
		req.Header.Set("api-key", apiKey)
	}
	w := httptest.NewRecorder()
	relay.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

func TestRelaySuccess(t *testing.T) {
	path, accepted := fakeGateway(t, `{"data":{"hello":"world"}}`)
	relay := newRelay(t, path)

	w := postJSON(relay, "k1", `{"query":"{ hello }"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	payload := decodeBody(t, w)
	data := payload["data"].(map[string]any)
	assert.Equal(t, "world", data["hello"])
	assert.Equal(t, int32(1), accepted.Load())
}

func TestRelayMissingAPIKeyNeverDials(t *testing.T) {
	path, accepted := fakeGateway(t, `{"data":{}}`)
	relay := newRelay(t, path)

	w := postJSON(relay, "", `{"query":"{ hello }"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	payload := decodeBody(t, w)
	assert.Contains(t, payload, "errors")
	assert.Equal(t, int32(0), accepted.Load())
}

func TestRelayBadBodyNeverDials(t *testing.T) {
	path, accepted := fakeGateway(t, `{"data":{}}`)
	relay := newRelay(t, path)

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "nope"},
		{name: "missing query", body: `{"variables":{}}`},
		{name: "empty query", body: `{"query":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(relay, "k1", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Equal(t, int32(0), accepted.Load())
}

func TestRelayRejectsNonPost(t *testing.T) {
	path, accepted := fakeGateway(t, `{"data":{}}`)
	relay := newRelay(t, path)

	req := httptest.NewRequest(http.MethodGet, "/graphql", nil)
	req.Header.Set("api-key", "k1")
	w := httptest.NewRecorder()
	relay.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, int32(0), accepted.Load())
}

func TestRelayMirrorsEmbeddedStatus(t *testing.T) {
	path, _ := fakeGateway(t,
		`{"errors":[{"message":"Access Denied","extensions":{"code":"FORBIDDEN"}}],"status":403}`)
	relay := newRelay(t, path)

	w := postJSON(relay, "k1", `{"query":"{ me }"}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRelayNonNumericStatusDefaultsTo200(t *testing.T) {
	path, _ := fakeGateway(t, `{"data":{},"status":"soon"}`)
	relay := newRelay(t, path)

	w := postJSON(relay, "k1", `{"query":"{ me }"}`)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRelayParseFailureOverridesStatus(t *testing.T) {
	path, _ := fakeGateway(t,
		`{"errors":[{"message":"syntax error","extensions":{"code":"GRAPHQL_PARSE_FAILED"}}],"status":200}`)
	relay := newRelay(t, path)

	w := postJSON(relay, "k1", `{"query":"{ broken"}`)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestRelayDialFailureIs500(t *testing.T) {
	relay := newRelay(t, filepath.Join(t.TempDir(), "absent.sock"))

	w := postJSON(relay, "k1", `{"query":"{ hello }"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	payload := decodeBody(t, w)
	assert.Contains(t, payload, "errors")
}

func TestRelayForwardsCredentialAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "echo.sock")
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	received := make(chan string, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, _ := bufio.NewReader(conn).ReadString('\n')
		received <- line
		_, _ = conn.Write([]byte(`{"data":{}}` + "\n"))
	}()

	relay := newRelay(t, path)
	w := postJSON(relay, "secret-key", `{"query":"query Q { me }","operationName":"Q","variables":{"a":1}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var wire map[string]any
	require.NoError(t, json.Unmarshal([]byte(<-received), &wire))
	headers := wire["headers"].(map[string]any)
	assert.Equal(t, "secret-key", headers["api-key"])
	assert.Equal(t, "query Q { me }", wire["query"])
	assert.Equal(t, "Q", wire["operationName"])
}
