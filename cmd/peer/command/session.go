package command

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/INDA25PlusPlus/nhg-net/internal/board"
	"github.com/INDA25PlusPlus/nhg-net/internal/bridge"
	"github.com/INDA25PlusPlus/nhg-net/internal/config"
	"github.com/INDA25PlusPlus/nhg-net/internal/engine"
	"github.com/INDA25PlusPlus/nhg-net/internal/history"
	"github.com/INDA25PlusPlus/nhg-net/internal/metrics"
	"github.com/INDA25PlusPlus/nhg-net/internal/protocol"
	"github.com/INDA25PlusPlus/nhg-net/internal/rules"
	"github.com/INDA25PlusPlus/nhg-net/internal/status"
	"github.com/INDA25PlusPlus/nhg-net/internal/transport"
)

const (
	shutdownGrace  = 3 * time.Second // time for our quit frame to reach the peer
	archiveTimeout = 5 * time.Second
)

// session wires one game: engine, bridge queues, console and the connection
type session struct {
	id       string
	role     transport.Role
	logger   *slog.Logger
	engine   *engine.Engine
	console  *Console
	outbound *bridge.Queue
	inbound  *bridge.Queue // nil when inbound moves are applied directly
}

func newSession(id string, c *config.Config, role transport.Role, logger *slog.Logger, m *metrics.Metrics, recorder history.Recorder, out io.Writer) *session {
	logger = logger.With("session_id", id)

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMetrics(m),
		engine.WithLocalColor(localColorFor(role)),
	}
	if recorder != nil {
		opts = append(opts, engine.WithRecorder(recorder))
	}
	eng := engine.New(rules.NewChessGame(), opts...)

	queueOpts := []bridge.Option{
		bridge.WithLogger(logger),
		bridge.WithMetrics(m),
		bridge.WithHighWatermark(c.QueueHighWatermark),
	}
	s := &session{
		id:       id,
		role:     role,
		logger:   logger,
		engine:   eng,
		outbound: bridge.NewQueue("outbound", queueOpts...),
	}
	if !c.DirectApply {
		s.inbound = bridge.NewQueue("inbound", queueOpts...)
	}
	s.console = NewConsole(eng, s.outbound, out)
	return s
}

// sink is where the receive goroutine puts decoded messages
func (s *session) sink() transport.Sink {
	if s.inbound != nil {
		return s.inbound
	}
	return transport.SinkFunc(func(msg protocol.Message) error {
		_ = s.engine.Handle(msg)
		s.console.Remote(msg)
		return nil
	})
}

// run plays until the connection ends. Cancelling ctx sends a quit to the peer first.
func (s *session) run(ctx context.Context, conn *transport.Conn, lines <-chan string) error {
	serveCtx, cancelServe := context.WithCancel(context.Background())
	defer cancelServe()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- conn.Serve(serveCtx, s.outbound, s.sink())
	}()

	consumed := make(chan struct{})
	if s.inbound != nil {
		go func() {
			defer close(consumed)
			for msg := range s.inbound.Receive() {
				_ = s.engine.Handle(msg)
				s.console.Remote(msg)
			}
		}()
	} else {
		close(consumed)
	}

	s.console.Start(s.engine.LocalColor())

	var err error
loop:
	for {
		select {
		case err = <-serveErr:
			break loop
		case <-ctx.Done():
			s.logger.Info("received_shutdown_signal")
			s.quit("interrupted")
			select {
			case err = <-serveErr:
			case <-time.After(shutdownGrace):
				cancelServe()
				err = <-serveErr
			}
			break loop
		case line, ok := <-lines:
			if !ok {
				s.quit("input closed")
				lines = nil // keep waiting for the connection to finish
				continue
			}
			s.console.Exec(line)
		}
	}

	s.outbound.Close()
	if s.inbound != nil {
		s.inbound.Close()
	}
	<-consumed
	s.console.End()
	return err
}

func (s *session) quit(reason string) {
	if ended, _ := s.engine.Ended(); ended {
		return
	}
	if err := s.outbound.Send(s.engine.Quit(reason)); err != nil {
		s.logger.Warn("quit_not_sent", "error", err.Error())
	}
}

// runPeer is the whole life of a peer process: history, connection, status server, game
func runPeer(ctx context.Context, c *config.Config, role transport.Role, logger *slog.Logger, in io.Reader, out io.Writer) error {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	id := uuid.NewString()

	var recorder history.Recorder
	var archive *history.Archive
	if c.HistoryEnabled() {
		if c.RedisURL != "" {
			rec, err := history.NewRedisRecorder(c.RedisURL, id)
			if err != nil {
				logger.Warn("redis_unavailable", "error", err.Error())
			} else {
				recorder = rec
				defer rec.Close()
			}
		}
		if c.DatabaseURL != "" {
			a, err := history.OpenArchive(c.DatabaseURL)
			if err != nil {
				logger.Warn("archive_unavailable", "error", err.Error())
			} else {
				archive = a
				defer archive.Close()
			}
		}
	} else {
		logger.Debug("history_disabled", "session_id", id)
	}
	s := newSession(id, c, role, logger, m, recorder, out)

	if role == transport.RoleListener {
		s.logger.Info("waiting_for_peer", "addr", c.PeerAddr)
	} else {
		s.logger.Info("connecting_to_peer", "addr", c.PeerAddr)
	}
	conn, err := transport.Establish(ctx, transport.Config{
		Role:        role,
		Addr:        c.PeerAddr,
		DialTimeout: c.DialTimeout,
		RateLimit:   c.FrameRateLimit,
		RateBurst:   c.FrameRateBurst,
	}, transport.WithLogger(s.logger), transport.WithMetrics(m))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	startedAt := time.Now().UTC()

	if c.StatusAddr != "" {
		router := status.NewRouter(status.NewHandler(s.engine, status.SessionInfo{
			SessionID: s.id,
			Role:      string(role),
			PeerAddr:  conn.RemoteAddr(),
		}), reg)
		srv := status.NewServer(c.StatusAddr, router, s.logger)
		go func() {
			if err := srv.Start(); err != nil {
				s.logger.Error("status_server_error", "error", err.Error())
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	stopInput := make(chan struct{})
	runErr := s.run(ctx, conn, readLines(in, stopInput))
	close(stopInput)

	if archive != nil {
		_, reason := s.engine.Ended()
		rec := history.NewGameRecord(s.id, string(role), conn.RemoteAddr(), s.engine.Moves(), reason, startedAt, time.Now().UTC())
		archiveCtx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := archive.Save(archiveCtx, rec); err != nil {
			s.logger.Warn("archive_save_failed", "error", err.Error())
		} else {
			s.logger.Info("game_archived", "plies", rec.Plies)
		}
	}
	return runErr
}

func localColorFor(role transport.Role) board.Color {
	if role == transport.RoleConnector {
		return board.Black
	}
	return board.White
}

// readLines feeds stdin lines to the session; the channel closes at EOF or once stop is closed
func readLines(r io.Reader, stop <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case <-stop:
				return
			default:
			}
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
	}()
	return lines
}
