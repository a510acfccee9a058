package httpbridge

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sawyersec/uds-tcp-graphql/message"
	"github.com/sawyersec/uds-tcp-graphql/metric"
)

// httpBody is the JSON shape the bridge accepts over HTTP. The
// credential rides in the api-key header, never in the body.
type httpBody struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Relay translates one HTTP request into one gateway connection. It is
// stateless: every request dials a fresh connection, writes one
// message, reads one response, and closes. No pooling, so no state
// leaks between callers.
type Relay struct {
	config  Config
	logger  *slog.Logger
	metrics *metric.Metrics
}

// NewRelay creates the relay handler. metrics may be nil.
func NewRelay(config Config, logger *slog.Logger, metrics *metric.Metrics) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

// ServeHTTP handles one GraphQL-over-HTTP request.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		if rl.metrics != nil {
			rl.metrics.BridgeDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		rl.writeEnvelope(w, message.NewEnvelope(message.CodeBadRequest, http.StatusMethodNotAllowed))
		return
	}

	// Credential and body shape are validated here, before any socket
	// is opened: a request that cannot succeed never reaches the
	// gateway.
	apiKey := r.Header.Get("api-key")
	if apiKey == "" {
		rl.writeEnvelope(w, message.Unauthorized())
		return
	}

	var body httpBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rl.writeEnvelope(w, message.BadRequest())
		return
	}
	if body.Query == "" {
		rl.writeEnvelope(w, message.BadRequest())
		return
	}

	req := message.Request{
		Query:         body.Query,
		Variables:     body.Variables,
		OperationName: body.OperationName,
	}
	req.Headers.APIKey = apiKey

	payload, err := rl.exchange(&req)
	if err != nil {
		rl.logger.Error("gateway exchange failed", "error", err)
		rl.writeEnvelope(w, message.InternalError())
		return
	}

	rl.relayPayload(w, payload)
}

// exchange performs the single-shot wire round-trip.
func (rl *Relay) exchange(req *message.Request) (map[string]any, error) {
	conn, err := net.DialTimeout(rl.config.GatewayNetwork, rl.config.GatewayAddr, rl.config.Timeout())
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(rl.config.Timeout())); err != nil {
		return nil, err
	}

	if err := message.NewEncoder(conn).Encode(req); err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := message.NewDecoder(conn, 0).Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// relayPayload writes the gateway's response, mirroring its embedded
// status. A missing or non-numeric status relays as 200; a parse
// failure overrides to 501 whatever the envelope claims.
func (rl *Relay) relayPayload(w http.ResponseWriter, payload map[string]any) {
	status := http.StatusOK
	if raw, ok := payload["status"].(float64); ok {
		status = int(raw)
	}
	if message.HasParseFailure(payload) {
		status = http.StatusNotImplemented
	}

	rl.observe(status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		rl.logger.Warn("response write failed", "error", err)
	}
}

func (rl *Relay) writeEnvelope(w http.ResponseWriter, env message.Envelope) {
	rl.observe(env.Status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.Status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		rl.logger.Warn("response write failed", "error", err)
	}
}

func (rl *Relay) observe(status int) {
	if rl.metrics != nil {
		rl.metrics.BridgeRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	}
}
