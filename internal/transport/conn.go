package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/INDA25PlusPlus/nhg-net/internal/metrics"
	"github.com/INDA25PlusPlus/nhg-net/internal/protocol"
)

// how long the send loop waits for the peer to hang up after our quit frame
const quitGrace = 2 * time.Second

// Conn is the one stream between two peers.
// Frames are fixed size, so the read side never has to search for a delimiter.
type Conn struct {
	ID      string // unique identifier used in log lines
	conn    net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer // only touched by the send loop
	limiter *rate.Limiter // inbound frames; a frame over the limit waits for a token
	metrics *metrics.Metrics
	logger  *slog.Logger

	serving   atomic.Bool
	done      chan struct{} // closed when the receive goroutine returns
	closeOnce sync.Once
}

type ConnOption func(*Conn)

func WithLogger(logger *slog.Logger) ConnOption {
	return func(c *Conn) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) ConnOption {
	return func(c *Conn) {
		c.metrics = m
	}
}

// WithRateLimit sets the inbound frame limiter; limit <= 0 disables it
func WithRateLimit(limit float64, burst int) ConnOption {
	return func(c *Conn) {
		if limit <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
}

// constructor for Conn
func NewConn(conn net.Conn, opts ...ConnOption) *Conn {
	c := &Conn{
		ID:      uuid.NewString(),
		conn:    conn,
		reader:  bufio.NewReader(conn),
		writer:  bufio.NewWriter(conn),
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateBurst),
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Done is closed once the receive goroutine started by Serve has ended
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close closes the underlying connection; safe to call more than once
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
}

// Serve runs the receive goroutine and the send loop until one of them ends or ctx is cancelled.
// It closes the connection and waits for the receive goroutine before returning.
// A nil error means an orderly end: peer hung up, a quit was exchanged, outbound was closed or ctx was cancelled.
func (c *Conn) Serve(ctx context.Context, outbound Source, inbound Sink) error {
	if !c.serving.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: Serve called twice on %s", ErrConnection, c.ID)
	}

	c.logger.Info("peer_connected",
		"conn_id", c.ID,
		"remote_addr", c.RemoteAddr(),
	)

	recvCtx, stopReceive := context.WithCancel(ctx)
	defer stopReceive()
	go func() {
		defer close(c.done)
		c.receive(recvCtx, inbound)
	}()

	err := c.send(ctx, outbound)
	c.Close()
	stopReceive()
	<-c.done

	if err != nil {
		c.logger.Error("connection_failed",
			"conn_id", c.ID,
			"error", err.Error(),
		)
		return err
	}
	c.logger.Info("connection_closed", "conn_id", c.ID)
	return nil
}

func (c *Conn) send(ctx context.Context, outbound Source) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case msg, ok := <-outbound.Receive():
			if !ok {
				return nil
			}
			frame, err := protocol.Encode(msg)
			if err != nil {
				c.logger.Warn("frame_encode_failed",
					"conn_id", c.ID,
					"kind", string(msg.Kind()),
					"error", err.Error(),
				)
				continue
			}
			if err := c.write(frame); err != nil {
				return fmt.Errorf("%w: %v", ErrConnection, err)
			}
			c.metrics.FrameSent()

			if msg.Kind() == protocol.KindQuit {
				c.hangUp(ctx)
				return nil
			}
		}
	}
}

// write sends one frame and flushes it to the stream
func (c *Conn) write(frame []byte) error {
	if _, err := c.writer.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := c.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	return nil
}

// hangUp half-closes after a quit so the peer reads the frame before EOF
func (c *Conn) hangUp(ctx context.Context) {
	if cw, ok := c.conn.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite()
	}
	timer := time.NewTimer(quitGrace)
	defer timer.Stop()
	select {
	case <-c.done:
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (c *Conn) receive(ctx context.Context, inbound Sink) {
	buf := make([]byte, protocol.FrameSize)
	for {
		if _, err := io.ReadFull(c.reader, buf); err != nil {
			switch {
			case errors.Is(err, io.EOF):
				c.logger.Info("peer_disconnected", "conn_id", c.ID)
			case errors.Is(err, io.ErrUnexpectedEOF):
				c.logger.Info("peer_disconnected",
					"conn_id", c.ID,
					"partial_frame", true,
				)
			case isClosedConnError(err):
				// our own Close, expected during shutdown
			default:
				c.logger.Error("peer_read_error",
					"conn_id", c.ID,
					"error", err.Error(),
				)
			}
			return
		}

		// every frame is kept; the stream has no way to resend a dropped move
		if !c.limiter.Allow() {
			c.metrics.FrameThrottled()
			c.logger.Debug("rate_limit_exceeded", "conn_id", c.ID)
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
		}

		msg, ok := protocol.DecodeFrame(buf)
		if !ok {
			c.metrics.FrameDropped(metrics.ReasonUndecodable)
			c.logger.Warn("frame_dropped",
				"conn_id", c.ID,
				"reason", metrics.ReasonUndecodable,
			)
			continue
		}
		c.metrics.FrameReceived()

		if err := inbound.Deliver(msg); err != nil {
			c.logger.Warn("deliver_failed",
				"conn_id", c.ID,
				"error", err.Error(),
			)
			return
		}
		if msg.Kind() == protocol.KindQuit {
			c.logger.Info("peer_quit_received", "conn_id", c.ID)
			return
		}
	}
}

// On Windows: "wsarecv: An established connection was aborted by the software in your host machine."
// On Linux: "use of closed network connection"
func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		strings.Contains(err.Error(), "closed network connection") ||
		strings.Contains(err.Error(), "connection was aborted") ||
		strings.Contains(err.Error(), "forcibly closed")
}
