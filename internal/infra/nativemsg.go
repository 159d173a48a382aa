package infra

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	// MaxInboundMessage is the largest frame accepted from the browser.
	MaxInboundMessage = 1 << 20
	// MaxOutboundMessage is the browser's limit for host-to-extension frames.
	MaxOutboundMessage = 1 << 20
)

// ErrMessageTooLarge is returned for frames over the size limit.
var ErrMessageTooLarge = errors.New("native message too large")

// FrameReader reads native messaging frames: a 4-byte little-endian length
// followed by that many bytes of UTF-8 JSON.
type FrameReader struct {
	r   io.Reader
	max uint32
}

// NewFrameReader creates a reader with the default inbound limit.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r, max: MaxInboundMessage}
}

// ReadFrame returns the next message body. io.EOF means the browser closed the
// channel between frames; a partial frame yields io.ErrUnexpectedEOF.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(fr.r, header[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(header[:])
	if n > fr.max {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return body, nil
}

// FrameWriter writes native messaging frames. Safe for concurrent use.
type FrameWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewFrameWriter creates a writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteJSON marshals v and writes it as one frame.
func (fw *FrameWriter) WriteJSON(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return fw.WriteFrame(body)
}

// WriteFrame writes body as one frame.
func (fw *FrameWriter) WriteFrame(body []byte) error {
	if len(body) > MaxOutboundMessage {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(body))
	}
	frame := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	_, err := fw.w.Write(frame)
	return err
}
