package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

var (
	// ErrConnectionClosed is returned once the engine closes the stream. It is
	// fatal for the session.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrRequestTimeout is returned when a request's response does not arrive
	// within the configured request timeout.
	ErrRequestTimeout = errors.New("request timed out")
)

const readChunkSize = 1024

// aLongTimeAgo is a read deadline that has already passed; setting it wakes a
// blocked Read.
var aLongTimeAgo = time.Unix(1, 0)

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Stats counts traffic on a connection
type Stats struct {
	Sent      int64
	Received  int64
	Pings     int64
	Discarded int64
}

// Conn speaks the engine's framing protocol over a byte stream. Requests are
// strictly sequential: a request holds the connection until its response
// arrives.
type Conn struct {
	rw     io.ReadWriteCloser
	w      *bufio.Writer
	framer *Framer
	logger *log.Logger
	clock  quartz.Clock

	requestTimeout time.Duration

	readMu    sync.Mutex
	writeMu   sync.Mutex
	closeOnce sync.Once
	chunk     []byte

	sent      atomic.Int64
	received  atomic.Int64
	pings     atomic.Int64
	discarded atomic.Int64
}

// Option configures a Conn
type Option func(*Conn)

// WithClock sets the clock used to schedule request timeouts
func WithClock(clock quartz.Clock) Option {
	return func(c *Conn) {
		c.clock = clock
	}
}

// WithRequestTimeout bounds how long SendRequest waits for its response. Zero
// waits forever.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Conn) {
		c.requestTimeout = d
	}
}

// NewConn wraps a stream, typically a *net.TCPConn accepted from the engine
func NewConn(rw io.ReadWriteCloser, logger *log.Logger, opts ...Option) *Conn {
	logger = logger.WithPrefix("conn")
	c := &Conn{
		rw:     rw,
		w:      bufio.NewWriter(rw),
		framer: NewFramer(logger),
		logger: logger,
		clock:  quartz.NewReal(),
		chunk:  make([]byte, readChunkSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close closes the underlying stream
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.rw.Close()
	})
	return err
}

// Stats returns a snapshot of the traffic counters
func (c *Conn) Stats() Stats {
	return Stats{
		Sent:      c.sent.Load(),
		Received:  c.received.Load(),
		Pings:     c.pings.Load(),
		Discarded: c.discarded.Load(),
	}
}

// SendMessage writes one frame and flushes it
func (c *Conn) SendMessage(ctx context.Context, kind string, body any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := NewMessage(kind, body)
	if err != nil {
		return err
	}
	return c.write(msg)
}

func (c *Conn) write(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	frame := Encode(msg.Kind, msg.Body)
	c.logger.Debug("Sending", "frame", string(frame[:len(frame)-1]))

	if _, err := c.w.Write(frame); err != nil {
		return c.writeError(err)
	}
	if err := c.w.Flush(); err != nil {
		return c.writeError(err)
	}
	c.sent.Add(1)
	return nil
}

func (c *Conn) writeError(err error) error {
	if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
	}
	return fmt.Errorf("write: %w", err)
}

// ReadMessage blocks until a complete message arrives. Keepalive pings are
// answered inline and never returned.
func (c *Conn) ReadMessage(ctx context.Context) (Message, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	return c.readMessage(ctx, nil)
}

// SendRequest sends a request and waits for the response kind listed for it
// in the response table. Any other message that arrives meanwhile is logged
// and discarded; the wait carries on.
func (c *Conn) SendRequest(ctx context.Context, kind string, body any) (Message, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	expected := ExpectedResponse(kind)
	c.logger.Debug("Sending request", "kind", kind, "expect", expected)

	if err := c.SendMessage(ctx, kind, body); err != nil {
		return Message{}, err
	}

	var timedOut *atomic.Bool
	if c.requestTimeout > 0 {
		if d, ok := c.rw.(readDeadliner); ok {
			timedOut = new(atomic.Bool)
			timer := c.clock.AfterFunc(c.requestTimeout, func() {
				timedOut.Store(true)
				_ = d.SetReadDeadline(aLongTimeAgo)
			}, "conn", "request")
			defer timer.Stop()
		}
	}

	for {
		msg, err := c.readMessage(ctx, timedOut)
		if err != nil {
			return Message{}, fmt.Errorf("%s: %w", kind, err)
		}
		if msg.Kind == expected {
			return msg, nil
		}
		c.discarded.Add(1)
		c.logger.Warn("Discarding unexpected message", "kind", msg.Kind, "waiting_for", expected)
	}
}

func (c *Conn) readMessage(ctx context.Context, timedOut *atomic.Bool) (Message, error) {
	for {
		if msg, ok := c.framer.Next(); ok {
			switch msg.Kind {
			case KindPing:
				c.pings.Add(1)
				c.logger.Debug("Got ping, sending pong")
				if err := c.write(Message{Kind: KindPong}); err != nil {
					return Message{}, err
				}
				continue
			case KindPong:
				continue
			}
			c.received.Add(1)
			c.logger.Debug("Received", "kind", msg.Kind, "body_bytes", len(msg.Body))
			return msg, nil
		}

		if err := c.fill(ctx, timedOut); err != nil {
			return Message{}, err
		}
	}
}

// fill performs one read from the stream into the framer
func (c *Conn) fill(ctx context.Context, timedOut *atomic.Bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d, canInterrupt := c.rw.(readDeadliner)
	if canInterrupt && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			_ = d.SetReadDeadline(aLongTimeAgo)
		})
		defer stop()
	}

	n, err := c.rw.Read(c.chunk)
	if n > 0 {
		// A trailing error, EOF included, is reported again by the next Read.
		c.framer.Feed(c.chunk[:n])
		return nil
	}

	switch {
	case err == nil:
		return fmt.Errorf("%w: empty read", ErrConnectionClosed)
	case errors.Is(err, os.ErrDeadlineExceeded) && canInterrupt:
		_ = d.SetReadDeadline(time.Time{})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if timedOut != nil && timedOut.Load() {
			return ErrRequestTimeout
		}
		return fmt.Errorf("read: %w", err)
	default:
		c.logger.Debug("No data received, connection closed", "error", err)
		return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
	}
}
