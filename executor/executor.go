// Package executor runs GraphQL documents against the gateway's schema.
// The gateway guarantees authorization has already happened before a
// request reaches an executor; resolvers here only re-check the ADMIN
// role on administrative fields as defense in depth.
package executor

import (
	"context"

	"github.com/sawyersec/uds-tcp-graphql/auth"
	"github.com/sawyersec/uds-tcp-graphql/message"
)

// Request is one execution request with its already-resolved principal.
type Request struct {
	Query         string
	Variables     map[string]any
	OperationName string
	Principal     *auth.Principal
}

// Result is the execution outcome in GraphQL response shape. Status is
// only set when the executor wants the transport to override its status
// code (parse failures report 501).
type Result struct {
	Data   map[string]any      `json:"data,omitempty"`
	Errors []message.WireError `json:"errors,omitempty"`
	Status int                 `json:"status,omitempty"`
}

// HasParseFailure reports whether the result carries a parse-failure
// error, the category the transport maps to 501.
func (r *Result) HasParseFailure() bool {
	for _, e := range r.Errors {
		if e.Code() == message.CodeParseFailed {
			return true
		}
	}
	return false
}

// Interface is the execution contract the gateway pipeline depends on.
// Implementations must not apply their own authorization and must report
// parse failures with a distinguishable error code.
type Interface interface {
	Execute(ctx context.Context, req Request) (*Result, error)
}
