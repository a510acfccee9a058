package message

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeShapes(t *testing.T) {
	tests := []struct {
		name       string
		env        Envelope
		wantCode   string
		wantStatus int
		wantText   string
	}{
		{"bad request", BadRequest(), CodeBadRequest, http.StatusBadRequest, "Bad Request"},
		{"unauthorized", Unauthorized(), CodeUnauthorized, http.StatusUnauthorized, "Unauthorized"},
		{"forbidden", Forbidden(), CodeForbidden, http.StatusForbidden, "Access Denied"},
		{"internal", InternalError(), CodeInternal, http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Len(t, tt.env.Errors, 1)
			assert.Equal(t, tt.wantCode, tt.env.Errors[0].Code())
			assert.Equal(t, tt.wantStatus, tt.env.Status)
			assert.Equal(t, tt.wantText, tt.env.Errors[0].Message)
		})
	}
}

func TestEnvelopeWireFormat(t *testing.T) {
	data, err := json.Marshal(Unauthorized())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	errs := decoded["errors"].([]any)
	first := errs[0].(map[string]any)
	ext := first["extensions"].(map[string]any)

	assert.Equal(t, "Unauthorized", first["message"])
	assert.Equal(t, CodeUnauthorized, ext["code"])
	assert.Equal(t, float64(http.StatusUnauthorized), decoded["status"])
}

func TestHasParseFailure(t *testing.T) {
	parseFailed := map[string]any{
		"errors": []any{
			map[string]any{
				"message":    "Syntax Error",
				"extensions": map[string]any{"code": CodeParseFailed},
			},
		},
	}
	assert.True(t, HasParseFailure(parseFailed))

	otherError := map[string]any{
		"errors": []any{
			map[string]any{
				"message":    "boom",
				"extensions": map[string]any{"code": CodeInternal},
			},
		},
	}
	assert.False(t, HasParseFailure(otherError))

	assert.False(t, HasParseFailure(map[string]any{"data": map[string]any{}}))
	assert.False(t, HasParseFailure(map[string]any{"errors": "not a list"}))
}
