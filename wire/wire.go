package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// LengthFieldSize is the size in bytes of the frame length prefix.
const LengthFieldSize = 8

// MaxFrameSize bounds the declared payload length of a single frame.
// Serialized evaluation keys are the largest blobs on the channel and stay
// well under this; anything larger indicates a corrupted or hostile stream.
const MaxFrameSize = 1 << 30

// ErrTransport is the class of all channel failures: short reads or
// writes, connection resets, oversized frames. Transport failures are
// always fatal to the session.
var ErrTransport = errors.New("wire: transport failure")

// ErrFrameTooLarge reports a frame whose declared length exceeds MaxFrameSize.
var ErrFrameTooLarge = fmt.Errorf("%w: frame exceeds maximum size", ErrTransport)

// Send writes one frame: the payload length as an 8-byte big-endian
// unsigned integer, then the payload itself. A zero-length payload is
// valid and produces a header-only frame.
func Send(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	var header [LengthFieldSize]byte
	binary.BigEndian.PutUint64(header[:], uint64(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("%w: write frame length: %w", ErrTransport, err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("%w: write frame payload: %w", ErrTransport, err)
	}
	return nil
}

// Receive reads one frame and returns its payload. The length field is
// read in full before any payload byte, and the payload is read until
// exactly the declared number of bytes has arrived; a stream that ends
// early on either part is a transport failure. A zero-length frame
// returns an empty, non-nil buffer.
func Receive(r io.Reader) ([]byte, error) {
	var header [LengthFieldSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: read frame length: %w", ErrTransport, err)
	}

	length := binary.BigEndian.Uint64(header[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: declared %d bytes", ErrFrameTooLarge, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: read frame payload: %w", ErrTransport, err)
	}
	return payload, nil
}

// Channel bundles a connection with the framing functions. It holds no
// state between calls beyond the connection handle and an optional
// per-operation deadline.
type Channel struct {
	conn    net.Conn
	timeout time.Duration
}

// NewChannel wraps conn in a framed channel. The channel does not own the
// connection; closing is the caller's responsibility unless Close is used.
func NewChannel(conn net.Conn) *Channel {
	return &Channel{conn: conn}
}

// SetTimeout applies a deadline to every subsequent Send and Receive.
// A zero duration disables deadlines, which is the default: the base
// protocol defines no timeout semantics and a hung peer blocks forever.
func (c *Channel) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Send transmits one frame on the connection.
func (c *Channel) Send(payload []byte) error {
	if err := c.applyDeadline(); err != nil {
		return err
	}
	return Send(c.conn, payload)
}

// Receive blocks until one full frame has arrived on the connection.
func (c *Channel) Receive() ([]byte, error) {
	if err := c.applyDeadline(); err != nil {
		return nil, err
	}
	return Receive(c.conn)
}

// Close closes the underlying connection.
func (c *Channel) Close() error {
	return c.conn.Close()
}

func (c *Channel) applyDeadline() error {
	if c.timeout == 0 {
		return nil
	}
	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return fmt.Errorf("%w: set deadline: %w", ErrTransport, err)
	}
	return nil
}
