// Package message defines the newline-delimited JSON wire protocol spoken
// by the gateway: the request/response types, the stream codec, and the
// error envelope written back to callers.
package message

import (
	"github.com/sawyersec/uds-tcp-graphql/errors"
)

// Headers carries the request metadata. The api-key header is the only
// credential the protocol knows about.
type Headers struct {
	APIKey string `json:"api-key"`
}

// Request is one inbound wire message. Variables and OperationName are
// opaque passthrough to the query executor.
type Request struct {
	Headers       Headers        `json:"headers"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Validate checks the message shape. Credential presence is checked
// separately by the pipeline so it can map to UNAUTHORIZED rather than
// BAD_REQUEST.
func (r *Request) Validate() error {
	if r.Query == "" {
		return errors.WrapInvalid(errors.ErrInvalidMessage, "Request", "Validate", "query is required")
	}
	return nil
}
