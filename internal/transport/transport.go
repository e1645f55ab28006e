package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/INDA25PlusPlus/nhg-net/internal/protocol"
)

// Role decides who opens the connection; after that both peers behave the same
type Role string

const (
	RoleListener  Role = "listen"
	RoleConnector Role = "connect"
)

const (
	DefaultAddr        = "127.0.0.1:6969"
	DefaultDialTimeout = 10 * time.Second
	DefaultRateLimit   = 10 // frames per second
	DefaultRateBurst   = 20
)

var (
	ErrConnection  = errors.New("transport: connection error")
	ErrUnknownRole = errors.New("transport: unknown role")
)

// ParseRole accepts the role names used on the command line and in PEER_ROLE
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "listen", "listener", "server", "host":
		return RoleListener, nil
	case "connect", "connector", "client", "join":
		return RoleConnector, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

type Config struct {
	Role        Role
	Addr        string
	DialTimeout time.Duration
	RateLimit   float64 // inbound frames per second, <= 0 disables the limit
	RateBurst   int
}

// Source feeds the send loop; a closed channel ends it
type Source interface {
	Receive() <-chan protocol.Message
}

// Sink takes every decoded inbound message; an error ends the receive goroutine
type Sink interface {
	Deliver(msg protocol.Message) error
}

// SinkFunc adapts a plain function to Sink
type SinkFunc func(msg protocol.Message) error

func (f SinkFunc) Deliver(msg protocol.Message) error {
	return f(msg)
}

// Establish opens the single peer connection for cfg.Role
func Establish(ctx context.Context, cfg Config, opts ...ConnOption) (*Conn, error) {
	var (
		nc  net.Conn
		err error
	)
	switch cfg.Role {
	case RoleListener:
		nc, err = Listen(ctx, cfg.Addr)
	case RoleConnector:
		nc, err = Dial(ctx, cfg.Addr, cfg.DialTimeout)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, cfg.Role)
	}
	if err != nil {
		return nil, err
	}

	opts = append([]ConnOption{WithRateLimit(cfg.RateLimit, cfg.RateBurst)}, opts...)
	return NewConn(nc, opts...), nil
}

// Listen binds addr, accepts exactly one connection and closes the listener
func Listen(ctx context.Context, addr string) (net.Conn, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to listen on %s: %v", ErrConnection, addr, err)
	}
	return Accept(ctx, ln)
}

// Accept takes one connection from ln and closes ln.
// Cancelling ctx unblocks the accept.
func Accept(ctx context.Context, ln net.Listener) (net.Conn, error) {
	defer ln.Close()
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: failed to accept: %v", ErrConnection, err)
	}
	return conn, nil
}

// Dial opens the outbound connection; timeout <= 0 means only ctx bounds it
func Dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to %s: %v", ErrConnection, addr, err)
	}
	return conn, nil
}
