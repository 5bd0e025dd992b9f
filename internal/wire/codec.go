// Package wire implements the native messaging channel between the
// browser extension and the host: 4-byte little-endian length-prefixed
// JSON frames on stdin/stdout, per the Chrome native messaging format.
package wire

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// maxFrameSize caps inbound and outbound frames. Chrome rejects
// messages to the browser above 1 MiB; ours are far smaller.
const maxFrameSize = 1 << 20

// ErrMalformed marks a frame whose payload was consumed but could not
// be decoded; the stream itself is still in sync and reading can
// continue.
var ErrMalformed = errors.New("malformed frame")

// Codec reads and writes native messaging frames. Reads are owned by a
// single goroutine; writes are serialized internally so sessions can
// emit effect commands concurrently.
type Codec struct {
	r *bufio.Reader

	wmu sync.Mutex
	w   *bufio.Writer
}

// NewCodec wraps the given streams, typically stdin/stdout.
func NewCodec(r io.Reader, w io.Writer) *Codec {
	return &Codec{
		r: bufio.NewReader(r),
		w: bufio.NewWriter(w),
	}
}

// Read decodes the next frame into v. Returns io.EOF when the browser
// has closed the channel.
func (c *Codec) Read(v any) error {
	var header [4]byte
	if _, err := io.ReadFull(c.r, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return io.EOF
		}
		return err
	}

	length := binary.LittleEndian.Uint32(header[:])
	if length == 0 {
		return fmt.Errorf("zero-length frame")
	}
	if length > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return fmt.Errorf("truncated frame: %w", err)
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Write encodes v as a single frame and flushes it.
func (c *Codec) Write(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if len(payload) > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit", len(payload))
	}

	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if _, err := c.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := c.w.Write(payload); err != nil {
		return err
	}
	return c.w.Flush()
}
