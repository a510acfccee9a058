package message

import (
	"bufio"
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"sync"

	"github.com/sawyersec/uds-tcp-graphql/errors"
)

// readerBufferSize is the bufio buffer used for line reassembly. Frames
// larger than this are assembled across multiple reads.
const readerBufferSize = 64 * 1024

// DecodeError reports a malformed or oversized frame. The stream itself
// is still intact after a DecodeError: the offending line has been fully
// consumed and the caller may keep decoding.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError checks whether err is a recoverable frame-level decode error.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return stderrors.As(err, &de)
}

// Encoder writes newline-delimited JSON frames. Each Encode produces one
// complete line emitted in a single Write call so concurrent encoders on
// the same connection never interleave partial frames.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder creates an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode marshals v and writes it as one newline-terminated frame.
func (e *Encoder) Encode(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WrapInvalid(err, "Encoder", "Encode", "marshal frame")
	}
	data = append(data, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(data); err != nil {
		return errors.WrapTransient(err, "Encoder", "Encode", "write frame")
	}
	return nil
}

// Decoder reads newline-delimited JSON frames from a byte stream. It
// performs no buffering beyond line reassembly and handles frames split
// across arbitrary read boundaries. A maxFrame of 0 disables the size
// limit.
type Decoder struct {
	r        *bufio.Reader
	maxFrame int
}

// NewDecoder creates a Decoder reading from r. Frames longer than
// maxFrame bytes (excluding the newline) are consumed and reported as a
// DecodeError wrapping ErrFrameTooLarge.
func NewDecoder(r io.Reader, maxFrame int) *Decoder {
	return &Decoder{
		r:        bufio.NewReaderSize(r, readerBufferSize),
		maxFrame: maxFrame,
	}
}

// Decode reads the next frame and unmarshals it into v. It returns
// io.EOF when the stream ends cleanly, a *DecodeError for malformed or
// oversized frames, and other errors for I/O failures. Blank lines are
// skipped.
func (d *Decoder) Decode(v any) error {
	for {
		line, err := d.readLine()
		if err != nil {
			return err
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		if err := json.Unmarshal(line, v); err != nil {
			return &DecodeError{Err: errors.WrapInvalid(err, "Decoder", "Decode", "unmarshal frame")}
		}
		return nil
	}
}

// readLine assembles one newline-terminated line, enforcing maxFrame.
func (d *Decoder) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := d.r.ReadSlice('\n')
		line = append(line, chunk...)

		// The cap applies to frame content, not the terminator.
		content := len(line)
		if content > 0 && line[content-1] == '\n' {
			content--
		}
		if d.maxFrame > 0 && content > d.maxFrame {
			// Consume the remainder of the oversized line so the
			// stream stays aligned on frame boundaries.
			if err == bufio.ErrBufferFull {
				if derr := d.discardLine(); derr != nil && derr != io.EOF {
					return nil, derr
				}
			}
			return nil, &DecodeError{Err: errors.ErrFrameTooLarge}
		}

		switch err {
		case nil:
			return line, nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			if len(line) == 0 {
				return nil, io.EOF
			}
			// Final unterminated line is still a frame.
			return line, nil
		default:
			return nil, errors.WrapTransient(err, "Decoder", "readLine", "read stream")
		}
	}
}

// discardLine consumes bytes up to and including the next newline.
func (d *Decoder) discardLine() error {
	for {
		_, err := d.r.ReadSlice('\n')
		switch err {
		case nil, io.EOF:
			return err
		case bufio.ErrBufferFull:
			continue
		default:
			return err
		}
	}
}
