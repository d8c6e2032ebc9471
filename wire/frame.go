/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wire

import (
	"errors"
	"fmt"
	"io"

	gojson "github.com/goccy/go-json"
)

// MaxFrameSize is the largest a single newline-delimited control record
// may grow to, including the trailing newline, before a session is
// failed. It mirrors the historical limit on a single log line that the
// ingest pipeline framing is built around.
const MaxFrameSize = 65536

var (
	// ErrFrameTooLarge is returned when a control record exceeds
	// MaxFrameSize before a newline terminator is observed.
	ErrFrameTooLarge = errors.New("control frame exceeds maximum size")
)

// FrameReader reads newline-delimited JSON control records off of src,
// buffering only as much as is needed to find the next record. Once the
// caller is done reading control records it can hand the same src (plus
// whatever unconsumed bytes remain buffered) to a payload reader via
// Payload.
type FrameReader struct {
	src io.Reader
	buf []byte // unconsumed bytes read from src but not yet handed back
}

// NewFrameReader wraps src for control-record reading.
func NewFrameReader(src io.Reader) *FrameReader {
	return &FrameReader{src: src}
}

// ReadFrame blocks until a full newline-terminated record is available,
// returning the record bytes (without the trailing newline). label is
// used only to annotate the error raised when the peer closes the
// connection before a full record arrives.
func (r *FrameReader) ReadFrame(label string) ([]byte, error) {
	for {
		if i := indexByte(r.buf, '\n'); i >= 0 {
			line := r.buf[:i]
			r.buf = r.buf[i+1:]
			return line, nil
		}
		if len(r.buf) >= MaxFrameSize {
			return nil, ErrFrameTooLarge
		}
		chunk := make([]byte, 4096)
		n, err := r.src.Read(chunk)
		if n > 0 {
			r.buf = append(r.buf, chunk[:n]...)
			if len(r.buf) > MaxFrameSize && indexByte(r.buf, '\n') < 0 {
				return nil, ErrFrameTooLarge
			}
		}
		if err != nil {
			if n == 0 {
				if err == io.EOF {
					return nil, fmt.Errorf("connection closed before %s", label)
				}
				return nil, err
			}
		}
	}
}

// ReadHeader reads and decodes a Header record.
func (r *FrameReader) ReadHeader() (Header, error) {
	var h Header
	b, err := r.ReadFrame("header")
	if err != nil {
		return h, err
	}
	if err := gojson.Unmarshal(b, &h); err != nil {
		return h, fmt.Errorf("malformed header: %w", err)
	}
	return h, nil
}

// ReadReady reads and decodes a Ready record.
func (r *FrameReader) ReadReady() (Ready, error) {
	var rd Ready
	b, err := r.ReadFrame("ready")
	if err != nil {
		return rd, err
	}
	if err := gojson.Unmarshal(b, &rd); err != nil {
		return rd, fmt.Errorf("malformed ready: %w", err)
	}
	return rd, nil
}

// ReadAck reads and decodes an Ack record.
func (r *FrameReader) ReadAck() (Ack, error) {
	var a Ack
	b, err := r.ReadFrame("ack")
	if err != nil {
		return a, err
	}
	if err := gojson.Unmarshal(b, &a); err != nil {
		return a, fmt.Errorf("malformed ack: %w", err)
	}
	return a, nil
}

// Payload returns an io.Reader that first drains any bytes already
// buffered past the last control record, then reads straight from the
// underlying source. After calling Payload the FrameReader must not be
// used to read further control records.
func (r *FrameReader) Payload() io.Reader {
	if len(r.buf) == 0 {
		return r.src
	}
	return io.MultiReader(&bytesReader{b: r.buf}, r.src)
}

type bytesReader struct {
	b []byte
}

func (b *bytesReader) Read(p []byte) (int, error) {
	if len(b.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.b)
	b.b = b.b[n:]
	return n, nil
}

func indexByte(b []byte, c byte) int {
	for i := range b {
		if b[i] == c {
			return i
		}
	}
	return -1
}

// WriteFrame marshals v to JSON and writes it followed by a newline.
func WriteFrame(w io.Writer, v interface{}) error {
	b, err := gojson.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
