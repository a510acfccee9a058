package message

import "net/http"

// Stable error codes carried in extensions.code on the wire.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeInternal     = "INTERNAL_SERVER_ERROR"
	CodeValidation   = "GRAPHQL_VALIDATION_FAILED"
	CodeParseFailed  = "GRAPHQL_PARSE_FAILED"
)

// WireError is one GraphQL-style error on the wire.
type WireError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Code returns the extensions.code value, or "" if absent.
func (e WireError) Code() string {
	if e.Extensions == nil {
		return ""
	}
	code, _ := e.Extensions["code"].(string)
	return code
}

// Envelope is the error response shape: a GraphQL-compatible errors list
// plus the numeric status the HTTP bridge mirrors.
type Envelope struct {
	Errors []WireError `json:"errors"`
	Status int         `json:"status"`
}

// envelopeText maps error codes to the caller-facing message. Internal
// error detail never rides in these strings.
var envelopeText = map[string]string{
	CodeBadRequest:   "Bad Request",
	CodeUnauthorized: "Unauthorized",
	CodeForbidden:    "Access Denied",
	CodeInternal:     "Internal Server Error",
}

// NewEnvelope builds an error envelope for a code/status pair.
func NewEnvelope(code string, status int) Envelope {
	text, ok := envelopeText[code]
	if !ok {
		text = envelopeText[CodeInternal]
	}
	return Envelope{
		Errors: []WireError{{
			Message:    text,
			Extensions: map[string]any{"code": code},
		}},
		Status: status,
	}
}

// BadRequest returns the 400 envelope.
func BadRequest() Envelope {
	return NewEnvelope(CodeBadRequest, http.StatusBadRequest)
}

// Unauthorized returns the 401 envelope.
func Unauthorized() Envelope {
	return NewEnvelope(CodeUnauthorized, http.StatusUnauthorized)
}

// Forbidden returns the 403 envelope.
func Forbidden() Envelope {
	return NewEnvelope(CodeForbidden, http.StatusForbidden)
}

// InternalError returns the 500 envelope.
func InternalError() Envelope {
	return NewEnvelope(CodeInternal, http.StatusInternalServerError)
}

// HasParseFailure reports whether a decoded response carries a GraphQL
// parse-failure error. It accepts the generic map shape the HTTP bridge
// sees after relaying a gateway response.
func HasParseFailure(payload map[string]any) bool {
	errs, ok := payload["errors"].([]any)
	if !ok {
		return false
	}
	for _, raw := range errs {
		errMap, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		ext, ok := errMap["extensions"].(map[string]any)
		if !ok {
			continue
		}
		if code, _ := ext["code"].(string); code == CodeParseFailed {
			return true
		}
	}
	return false
}
