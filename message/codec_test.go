package message

import (
	"bytes"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawyersec/uds-tcp-graphql/errors"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := Request{
		Headers: Headers{APIKey: "k1"},
		Query:   "{ me }",
		Variables: map[string]any{
			"limit": float64(10),
			"tags":  []any{"a", "b"},
		},
		OperationName: "Me",
	}

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(original))

	// Exactly one newline-terminated line
	frame := buf.String()
	assert.True(t, strings.HasSuffix(frame, "\n"))
	assert.Equal(t, 1, strings.Count(frame, "\n"))

	var decoded Request
	dec := NewDecoder(&buf, 0)
	require.NoError(t, dec.Decode(&decoded))
	assert.Equal(t, original, decoded)

	assert.Equal(t, io.EOF, dec.Decode(&decoded))
}

func TestDecodeMultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(map[string]any{"n": 1}))
	require.NoError(t, enc.Encode(map[string]any{"n": 2}))
	require.NoError(t, enc.Encode(map[string]any{"n": 3}))

	dec := NewDecoder(&buf, 0)
	for want := 1; want <= 3; want++ {
		var v map[string]any
		require.NoError(t, dec.Decode(&v))
		assert.Equal(t, float64(want), v["n"])
	}

	var v map[string]any
	assert.Equal(t, io.EOF, dec.Decode(&v))
}

func TestDecodeMalformedLineKeepsStreamOpen(t *testing.T) {
	input := `{"ok":1}` + "\n" + `{not json}` + "\n" + `{"ok":2}` + "\n"
	dec := NewDecoder(strings.NewReader(input), 0)

	var v map[string]any
	require.NoError(t, dec.Decode(&v))
	assert.Equal(t, float64(1), v["ok"])

	err := dec.Decode(&v)
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))

	// Stream continues past the bad line
	require.NoError(t, dec.Decode(&v))
	assert.Equal(t, float64(2), v["ok"])
}

func TestDecodePartialReadsAcrossBoundaries(t *testing.T) {
	// Deliver a frame in arbitrary small chunks over a real socket
	client, server := net.Pipe()
	defer client.Close()

	payload := `{"headers":{"api-key":"k1"},"query":"{ me }"}` + "\n"

	go func() {
		defer server.Close()
		for i := 0; i < len(payload); i += 7 {
			end := i + 7
			if end > len(payload) {
				end = len(payload)
			}
			if _, err := server.Write([]byte(payload[i:end])); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	dec := NewDecoder(client, 0)
	var req Request
	require.NoError(t, dec.Decode(&req))
	assert.Equal(t, "k1", req.Headers.APIKey)
	assert.Equal(t, "{ me }", req.Query)
}

func TestDecodeOversizedFrame(t *testing.T) {
	big := `{"query":"` + strings.Repeat("x", 2048) + `"}`
	input := big + "\n" + `{"ok":true}` + "\n"

	dec := NewDecoder(strings.NewReader(input), 1024)

	var v map[string]any
	err := dec.Decode(&v)
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
	assert.ErrorIs(t, err, errors.ErrFrameTooLarge)

	// Next frame is still decodable
	require.NoError(t, dec.Decode(&v))
	assert.Equal(t, true, v["ok"])
}

func TestDecodeFrameCapExcludesNewline(t *testing.T) {
	frame := `{"k":"` + strings.Repeat("x", 32) + `"}`
	limit := len(frame)

	// At the cap, both terminated and unterminated frames decode.
	var v map[string]any
	dec := NewDecoder(strings.NewReader(frame+"\n"), limit)
	require.NoError(t, dec.Decode(&v))

	dec = NewDecoder(strings.NewReader(frame), limit)
	require.NoError(t, dec.Decode(&v))

	// One content byte over the cap is rejected even when the line is
	// never terminated.
	dec = NewDecoder(strings.NewReader(frame), limit-1)
	err := dec.Decode(&v)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrFrameTooLarge)
}

func TestDecodeSkipsBlankLines(t *testing.T) {
	input := "\n\r\n" + `{"ok":true}` + "\n\n"
	dec := NewDecoder(strings.NewReader(input), 0)

	var v map[string]any
	require.NoError(t, dec.Decode(&v))
	assert.Equal(t, true, v["ok"])
	assert.Equal(t, io.EOF, dec.Decode(&v))
}

func TestDecodeFinalUnterminatedLine(t *testing.T) {
	dec := NewDecoder(strings.NewReader(`{"ok":true}`), 0)

	var v map[string]any
	require.NoError(t, dec.Decode(&v))
	assert.Equal(t, true, v["ok"])
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"valid", Request{Headers: Headers{APIKey: "k"}, Query: "{ me }"}, false},
		{"empty query", Request{Headers: Headers{APIKey: "k"}}, true},
		{"missing key is still valid shape", Request{Query: "{ me }"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
