package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INDA25PlusPlus/nhg-net/internal/bridge"
	"github.com/INDA25PlusPlus/nhg-net/internal/metrics"
	"github.com/INDA25PlusPlus/nhg-net/internal/protocol"
)

const testTimeout = 5 * time.Second

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newQueue(name string) *bridge.Queue {
	return bridge.NewQueue(name, bridge.WithLogger(quietLogger()))
}

func move(text string) protocol.MoveMessage {
	return protocol.MoveMessage{MoveText: text, GameState: protocol.StateOngoing, Position: "8/8/8/8/8/8/8/8"}
}

func frame(t *testing.T, msg protocol.Message) []byte {
	t.Helper()
	b, err := protocol.Encode(msg)
	require.NoError(t, err)
	return b
}

func recv(t *testing.T, q *bridge.Queue) protocol.Message {
	t.Helper()
	select {
	case msg, ok := <-q.Receive():
		require.True(t, ok, "queue closed")
		return msg
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func assertNoMessage(t *testing.T, q *bridge.Queue) {
	t.Helper()
	select {
	case msg := <-q.Receive():
		t.Fatalf("unexpected message %#v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

// tcpPair returns both ends of a real loopback connection
func tcpPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	accepted := make(chan net.Conn, 1)
	errCh := make(chan error, 1)
	go func() {
		conn, err := Accept(context.Background(), ln)
		if err != nil {
			errCh <- err
			return
		}
		accepted <- conn
	}()

	dialed, err := Dial(context.Background(), ln.Addr().String(), time.Second)
	require.NoError(t, err)

	select {
	case conn := <-accepted:
		return conn, dialed
	case err := <-errCh:
		t.Fatalf("accept failed: %v", err)
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for accept")
	}
	return nil, nil
}

func serveAsync(ctx context.Context, c *Conn, out Source, in Sink) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Serve(ctx, out, in)
	}()
	return errCh
}

func waitServe(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(testTimeout):
		t.Fatal("Serve did not return")
		return nil
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"listen", RoleListener},
		{"SERVER", RoleListener},
		{"connect", RoleConnector},
		{" client ", RoleConnector},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseRole("both")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestEstablish_UnknownRole(t *testing.T) {
	_, err := Establish(context.Background(), Config{Role: "observer", Addr: DefaultAddr})
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestEstablish_Connector(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		if conn, err := ln.Accept(); err == nil {
			conn.Close()
		}
	}()

	c, err := Establish(context.Background(), Config{
		Role:        RoleConnector,
		Addr:        ln.Addr().String(),
		DialTimeout: time.Second,
	}, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer c.Close()
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, ln.Addr().String(), c.RemoteAddr())
}

func TestDial_NothingListening(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(context.Background(), addr, time.Second)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestAccept_CancelledContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = Accept(ctx, ln)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServe_ExchangesMovesInOrderAndQuits(t *testing.T) {
	left, right := tcpPair(t)

	a := NewConn(left, WithLogger(quietLogger()))
	b := NewConn(right, WithLogger(quietLogger()))
	aOut, aIn := newQueue("a_out"), newQueue("a_in")
	bOut, bIn := newQueue("b_out"), newQueue("b_in")

	aErr := serveAsync(context.Background(), a, aOut, aIn)
	bErr := serveAsync(context.Background(), b, bOut, bIn)

	for _, text := range []string{"E2E40", "G1F30", "F1C40"} {
		require.NoError(t, aOut.Send(move(text)))
	}
	require.NoError(t, bOut.Send(move("E7E50")))

	for _, text := range []string{"E2E40", "G1F30", "F1C40"} {
		msg := recv(t, bIn)
		assert.Equal(t, move(text), msg)
	}
	assert.Equal(t, move("E7E50"), recv(t, aIn))

	require.NoError(t, aOut.Send(protocol.QuitMessage{Reason: "bye"}))
	assert.Equal(t, protocol.QuitMessage{Reason: "bye"}, recv(t, bIn))

	assert.NoError(t, waitServe(t, aErr))
	assert.NoError(t, waitServe(t, bErr))

	for _, c := range []*Conn{a, b} {
		select {
		case <-c.Done():
		default:
			t.Fatal("receive goroutine still running after Serve returned")
		}
	}
}

func TestServe_ReturnsWhenPeerCloses(t *testing.T) {
	local, remote := net.Pipe()
	c := NewConn(local, WithLogger(quietLogger()))
	errCh := serveAsync(context.Background(), c, newQueue("out"), newQueue("in"))

	remote.Close()
	assert.NoError(t, waitServe(t, errCh))
}

func TestServe_PartialFrameIsDisconnect(t *testing.T) {
	local, remote := net.Pipe()
	c := NewConn(local, WithLogger(quietLogger()))
	in := newQueue("in")
	errCh := serveAsync(context.Background(), c, newQueue("out"), in)

	_, err := remote.Write([]byte("ChessMOVE:E2E40"))
	require.NoError(t, err)
	remote.Close()

	assert.NoError(t, waitServe(t, errCh))
	assertNoMessage(t, in)
}

func TestServe_DropsUndecodableFrames(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	reg := prometheus.NewRegistry()
	c := NewConn(local, WithLogger(quietLogger()), WithMetrics(metrics.New(reg)))
	in := newQueue("in")
	ctx, cancel := context.WithCancel(context.Background())
	errCh := serveAsync(ctx, c, newQueue("out"), in)

	valid := frame(t, move("E2E40"))
	go func() {
		remote.Write(bytes.Repeat([]byte{'x'}, protocol.FrameSize))
		remote.Write(valid)
	}()

	assert.Equal(t, move("E2E40"), recv(t, in))
	assertNoMessage(t, in)

	expected := `
# HELP chesspeer_frames_dropped_total Total number of inbound frames discarded
# TYPE chesspeer_frames_dropped_total counter
chesspeer_frames_dropped_total{reason="undecodable"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, bytes.NewBufferString(expected), "chesspeer_frames_dropped_total"))

	cancel()
	assert.NoError(t, waitServe(t, errCh))
}

func TestServe_RateLimitDelaysFrames(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	reg := prometheus.NewRegistry()
	c := NewConn(local, WithLogger(quietLogger()), WithMetrics(metrics.New(reg)), WithRateLimit(10, 1))
	in := newQueue("in")
	ctx, cancel := context.WithCancel(context.Background())
	errCh := serveAsync(ctx, c, newQueue("out"), in)

	texts := []string{"E2E40", "E7E50", "G1F30"}
	frames := make([][]byte, 0, len(texts))
	for _, text := range texts {
		frames = append(frames, frame(t, move(text)))
	}
	start := time.Now()
	go func() {
		for _, f := range frames {
			remote.Write(f)
		}
	}()

	// over the limit every frame still arrives, in order, just later
	for _, text := range texts {
		assert.Equal(t, move(text), recv(t, in))
	}
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)

	expected := `
# HELP chesspeer_frames_throttled_total Total number of inbound frames held back by the rate limiter
# TYPE chesspeer_frames_throttled_total counter
chesspeer_frames_throttled_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, bytes.NewBufferString(expected), "chesspeer_frames_throttled_total"))

	cancel()
	assert.NoError(t, waitServe(t, errCh))
}

func TestServe_CancelWhileThrottled(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := NewConn(local, WithLogger(quietLogger()), WithRateLimit(0.001, 1))
	in := newQueue("in")
	ctx, cancel := context.WithCancel(context.Background())
	errCh := serveAsync(ctx, c, newQueue("out"), in)

	first, second := frame(t, move("E2E40")), frame(t, move("E7E50"))
	go func() {
		remote.Write(first)
		remote.Write(second)
	}()
	assert.Equal(t, move("E2E40"), recv(t, in))
	// the second frame waits for a token that would take 1000s
	assertNoMessage(t, in)

	cancel()
	assert.NoError(t, waitServe(t, errCh))
}

func TestServe_SkipsUnencodableMessages(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := NewConn(local, WithLogger(quietLogger()))
	out := newQueue("out")
	ctx, cancel := context.WithCancel(context.Background())
	errCh := serveAsync(ctx, c, out, newQueue("in"))

	require.NoError(t, out.Send(protocol.QuitMessage{Reason: "a:b"}))
	require.NoError(t, out.Send(move("E2E40")))

	buf := make([]byte, protocol.FrameSize)
	_, err := io.ReadFull(remote, buf)
	require.NoError(t, err)
	msg, ok := protocol.DecodeFrame(buf)
	require.True(t, ok)
	assert.Equal(t, move("E2E40"), msg)

	cancel()
	assert.NoError(t, waitServe(t, errCh))
}

type failingWriteConn struct {
	net.Conn
}

func (failingWriteConn) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestServe_WriteFailureEndsSession(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := NewConn(failingWriteConn{local}, WithLogger(quietLogger()))
	out := newQueue("out")
	errCh := serveAsync(context.Background(), c, out, newQueue("in"))

	require.NoError(t, out.Send(move("E2E40")))
	err := waitServe(t, errCh)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestServe_ClosedOutboundEndsSession(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := NewConn(local, WithLogger(quietLogger()))
	out := newQueue("out")
	errCh := serveAsync(context.Background(), c, out, newQueue("in"))

	out.Close()
	assert.NoError(t, waitServe(t, errCh))
}

func TestServe_ClosedSinkEndsReceive(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := NewConn(local, WithLogger(quietLogger()))
	in := newQueue("in")
	in.Close()
	errCh := serveAsync(context.Background(), c, newQueue("out"), in)

	valid := frame(t, move("E2E40"))
	go remote.Write(valid)
	assert.NoError(t, waitServe(t, errCh))
}

func TestServe_SinkFunc(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := NewConn(local, WithLogger(quietLogger()))

	got := make(chan protocol.Message, 1)
	sink := SinkFunc(func(msg protocol.Message) error {
		got <- msg
		return nil
	})
	errCh := serveAsync(context.Background(), c, newQueue("out"), sink)

	_, err := remote.Write(frame(t, protocol.QuitMessage{Reason: "done"}))
	require.NoError(t, err)
	assert.Equal(t, protocol.QuitMessage{Reason: "done"}, <-got)
	// a received quit ends the session
	assert.NoError(t, waitServe(t, errCh))
}

func TestServe_Twice(t *testing.T) {
	local, remote := net.Pipe()
	c := NewConn(local, WithLogger(quietLogger()))
	errCh := serveAsync(context.Background(), c, newQueue("out"), newQueue("in"))
	remote.Close()
	require.NoError(t, waitServe(t, errCh))

	err := c.Serve(context.Background(), newQueue("out"), newQueue("in"))
	assert.ErrorIs(t, err, ErrConnection)
}
