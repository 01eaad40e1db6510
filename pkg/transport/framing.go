package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/muskanmahajan37/gazebo/pkg/log"
)

// A frame is a 4-byte big-endian payload length followed by the payload.
// A zero length is a valid frame with an empty payload.
const (
	// HeaderSize is the size of the length header in bytes.
	HeaderSize = 4

	// DefaultMaxMessageSize bounds a single payload (16 MiB). Topic
	// payloads such as camera images are large, so the limit is generous.
	DefaultMaxMessageSize = 16 << 20

	// MaxLoggedPayload is how much of a payload a frame event carries.
	MaxLoggedPayload = 4096
)

// Framing errors.
var (
	// ErrMessageTooLarge is returned for a payload above the size limit,
	// on either side of the stream.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrFrameTruncated is returned when the stream ends inside a frame.
	ErrFrameTruncated = errors.New("frame truncated")
)

// AppendFrame appends the encoded frame for payload to dst.
func AppendFrame(dst, payload []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}

// Framer reads and writes frames on one stream. ReadFrame must be called
// from one goroutine at a time; WriteFrame may be called concurrently.
type Framer struct {
	r   io.Reader
	w   io.Writer
	max uint32

	wmu sync.Mutex
	hdr [HeaderSize]byte

	tap *frameTap
}

// NewFramer returns a framer over rw. A zero maxSize uses
// DefaultMaxMessageSize.
func NewFramer(rw io.ReadWriter, maxSize uint32) *Framer {
	if maxSize == 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &Framer{r: rw, w: rw, max: maxSize}
}

// Tap reports every frame read or written to logger, tagged with the
// connection it belongs to. A nil logger turns reporting off.
func (f *Framer) Tap(logger log.Logger, connID, remote string, role log.Role) {
	if logger == nil {
		f.tap = nil
		return
	}
	f.tap = &frameTap{logger: logger, connID: connID, remote: remote, role: role}
}

// ReadFrame returns the next payload. The returned slice is never nil,
// even for an empty frame. A clean end of stream before a header is
// io.EOF; an end of stream inside a frame is ErrFrameTruncated.
func (f *Framer) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(f.r, f.hdr[:]); err != nil {
		switch {
		case err == io.EOF:
			return nil, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	n := binary.BigEndian.Uint32(f.hdr[:])
	if n > f.max {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, n, f.max)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("read frame payload: %w", err)
	}

	f.tap.report(log.DirectionIn, payload)
	return payload, nil
}

// WriteFrame writes payload as one frame. Header and payload go out in a
// single vectored write where the stream supports it.
func (f *Framer) WriteFrame(payload []byte) error {
	if uint64(len(payload)) > uint64(f.max) {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(payload), f.max)
	}

	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	bufs := net.Buffers{hdr[:]}
	if len(payload) > 0 {
		bufs = append(bufs, payload)
	}

	f.wmu.Lock()
	_, err := bufs.WriteTo(f.w)
	f.wmu.Unlock()
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	f.tap.report(log.DirectionOut, payload)
	return nil
}

type frameTap struct {
	logger log.Logger
	connID string
	remote string
	role   log.Role
}

func (t *frameTap) report(dir log.Direction, payload []byte) {
	if t == nil {
		return
	}
	data, truncated := payload, false
	if len(data) > MaxLoggedPayload {
		data, truncated = data[:MaxLoggedPayload], true
	}
	t.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: t.connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		LocalRole:    t.role,
		RemoteAddr:   t.remote,
		Frame: &log.FrameEvent{
			Size:      HeaderSize + len(payload),
			Data:      data,
			Truncated: truncated,
		},
	})
}
