package socket

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/sawyersec/uds-tcp-graphql/auth"
	"github.com/sawyersec/uds-tcp-graphql/executor"
	"github.com/sawyersec/uds-tcp-graphql/message"
	"github.com/sawyersec/uds-tcp-graphql/metric"
)

// wireResponse is the success shape written back to the caller. Status
// rides in the payload so the HTTP bridge can mirror it.
type wireResponse struct {
	Data   map[string]any      `json:"data,omitempty"`
	Errors []message.WireError `json:"errors,omitempty"`
	Status int                 `json:"status,omitempty"`
}

// Pipeline runs the per-message sequence: decode, authenticate,
// authorize, execute, encode. One Pipeline serves all connections; it
// holds no per-connection state.
type Pipeline struct {
	resolver   *auth.Resolver
	authorizer *auth.Authorizer
	executor   executor.Interface
	logger     *slog.Logger
	metrics    *metric.Metrics

	maxFrame  int
	timeout   time.Duration
	rateLimit float64
	rateBurst int
}

// NewPipeline wires the pipeline stages together. metrics may be nil.
func NewPipeline(cfg Config, resolver *auth.Resolver, authorizer *auth.Authorizer,
	exec executor.Interface, logger *slog.Logger, metrics *metric.Metrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		resolver:   resolver,
		authorizer: authorizer,
		executor:   exec,
		logger:     logger.With("component", "pipeline"),
		metrics:    metrics,
		maxFrame:   cfg.MaxMessageBytes,
		timeout:    cfg.RequestTimeout(),
		rateLimit:  cfg.RateLimit,
		rateBurst:  cfg.RateBurst,
	}
}

// ServeConn processes one accepted connection until it closes or ctx is
// cancelled. Messages on a connection are handled strictly in order; a
// malformed frame is answered with BAD_REQUEST and the connection stays
// open.
func (p *Pipeline) ServeConn(ctx context.Context, conn net.Conn, transport string) {
	defer conn.Close()

	dec := message.NewDecoder(conn, p.maxFrame)
	enc := message.NewEncoder(conn)

	var limiter *rate.Limiter
	if p.rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(p.rateLimit), p.rateBurst)
	}

	logger := p.logger.With("remote", conn.RemoteAddr().String(), "transport", transport)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var req message.Request
		if err := dec.Decode(&req); err != nil {
			if err == io.EOF {
				return
			}
			if message.IsDecodeError(err) {
				logger.Warn("malformed frame", "error", err)
				if p.metrics != nil {
					p.metrics.DecodeErrors.Inc()
				}
				if werr := p.respond(enc, message.BadRequest()); werr != nil {
					logger.Warn("write failed", "error", werr)
					return
				}
				continue
			}
			// Transport-level read failure: nothing to answer.
			logger.Debug("connection read failed", "error", err)
			return
		}

		if p.metrics != nil {
			p.metrics.MessagesReceived.WithLabelValues(transport).Inc()
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}

		payload := p.process(ctx, &req, logger)
		if err := p.respond(enc, payload); err != nil {
			logger.Warn("write failed", "error", err)
			return
		}
	}
}

// process runs one decoded message through the pipeline and returns the
// payload to write back. Every failure maps to an error envelope; no
// failure escapes to the connection loop.
func (p *Pipeline) process(ctx context.Context, req *message.Request, logger *slog.Logger) any {
	start := time.Now()
	defer func() { p.observe("total", start) }()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := req.Validate(); err != nil {
		logger.Warn("invalid message shape", "error", err)
		return message.BadRequest()
	}

	// Missing credential short-circuits before any store round-trip.
	if req.Headers.APIKey == "" {
		return message.Unauthorized()
	}

	stage := time.Now()
	principal, err := p.resolver.Resolve(ctx, req.Headers.APIKey)
	p.observe("resolve", stage)
	if err != nil {
		logger.Error("principal resolution failed", "error", err)
		return message.InternalError()
	}
	if principal == nil {
		return message.Unauthorized()
	}

	stage = time.Now()
	allowed, err := p.authorizer.Allows(ctx, principal, req.Query)
	p.observe("authorize", stage)
	if err != nil {
		logger.Error("authorization failed", "error", err)
		return message.InternalError()
	}
	if !allowed {
		return message.Forbidden()
	}

	stage = time.Now()
	result, err := p.executor.Execute(ctx, executor.Request{
		Query:         req.Query,
		Variables:     req.Variables,
		OperationName: req.OperationName,
		Principal:     principal,
	})
	p.observe("execute", stage)
	if err != nil {
		logger.Error("execution failed", "error", err)
		return message.InternalError()
	}

	status := result.Status
	if result.HasParseFailure() {
		status = 501
	}

	return wireResponse{
		Data:   result.Data,
		Errors: result.Errors,
		Status: status,
	}
}

// observe records one pipeline stage duration when metrics are wired.
func (p *Pipeline) observe(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObservePipeline(stage, time.Since(start))
	}
}

// respond writes one payload and records its outcome status.
func (p *Pipeline) respond(enc *message.Encoder, payload any) error {
	if p.metrics != nil {
		p.metrics.MessagesProcessed.WithLabelValues(statusLabel(payload)).Inc()
	}
	return enc.Encode(payload)
}

func statusLabel(payload any) string {
	switch v := payload.(type) {
	case message.Envelope:
		return strconv.Itoa(v.Status)
	case wireResponse:
		if v.Status != 0 {
			return strconv.Itoa(v.Status)
		}
		return "200"
	default:
		return "200"
	}
}
