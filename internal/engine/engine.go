package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/INDA25PlusPlus/nhg-net/internal/board"
	"github.com/INDA25PlusPlus/nhg-net/internal/history"
	"github.com/INDA25PlusPlus/nhg-net/internal/metrics"
	"github.com/INDA25PlusPlus/nhg-net/internal/protocol"
	"github.com/INDA25PlusPlus/nhg-net/internal/rules"
)

var (
	ErrNotYourTurn  = errors.New("engine: not your turn")
	ErrSessionEnded = errors.New("engine: session ended")
)

const recordTimeout = 3 * time.Second

// Engine owns the shared game state of one peer.
// Both the local input path and the network receive path go through it; every
// validate-apply-refresh sequence runs under mu and no I/O happens while mu is held.
type Engine struct {
	mu         sync.Mutex
	game       rules.Game
	localColor board.Color     // NoColor = either side may be moved locally
	moves      []history.Entry // applied moves, local and remote, in apply order
	ended      bool
	quitReason string

	recorder history.Recorder // optional external move log
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithRecorder(recorder history.Recorder) Option {
	return func(e *Engine) {
		e.recorder = recorder
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLocalColor restricts local moves to one side
func WithLocalColor(color board.Color) Option {
	return func(e *Engine) {
		e.localColor = color
	}
}

// constructor for Engine, game is the initial position
func New(game rules.Game, opts ...Option) *Engine {
	e := &Engine{
		game:   game,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ApplyRemote applies a move received from the peer.
// A malformed move wraps protocol.ErrMalformedMove and an illegal one wraps rules.ErrIllegalMove;
// in both cases the state is unchanged and the session goes on. The peer has already applied
// the move on its side, so an illegal move here means the two boards have diverged.
func (e *Engine) ApplyRemote(msg protocol.MoveMessage) error {
	from, to, promo, err := protocol.ParseMoveText(msg.MoveText)
	if err != nil {
		e.metrics.MoveRejected(metrics.OriginRemote, metrics.ReasonMalformed)
		e.logger.Warn("malformed_remote_move",
			"move", msg.MoveText,
			"error", err.Error(),
		)
		return err
	}

	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		e.metrics.MoveRejected(metrics.OriginRemote, metrics.ReasonEnded)
		return ErrSessionEnded
	}
	outcome, err := e.game.ValidateAndExecute(from, to, promo)
	if err == nil && outcome.NeedsPromotion {
		err = fmt.Errorf("%w: %s reaches the last rank without a promotion piece", rules.ErrIllegalMove, msg.MoveText)
	}
	if err != nil {
		e.mu.Unlock()
		e.metrics.MoveRejected(metrics.OriginRemote, metrics.ReasonIllegal)
		e.logger.Warn("illegal_remote_move",
			"move", msg.MoveText,
			"peer_state", msg.GameState,
			"error", err.Error(),
		)
		return err
	}
	entry := e.appendLocked(metrics.OriginRemote, protocol.FormatMoveText(from, to, promo), outcome.Result)
	e.mu.Unlock()

	e.metrics.MoveApplied(metrics.OriginRemote)
	e.logger.Info("remote_move_applied",
		"move", msg.MoveText,
		"seq", entry.Seq,
		"check", outcome.Check,
		"checkmate", outcome.Checkmate,
	)
	if msg.Position != "" && msg.Position != entry.Position {
		// detection only: the protocol has no way to resync
		e.logger.Warn("position_mismatch",
			"move", msg.MoveText,
			"local_position", entry.Position,
			"peer_position", msg.Position,
		)
	}
	e.record(entry)
	return nil
}

// ProduceLocal renders the message for a move the caller already applied to the game state
func (e *Engine) ProduceLocal(from, to board.Square, promo board.PieceKind) protocol.MoveMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.produceLocked(from, to, promo)
}

// PlayLocal validates and applies a locally initiated move and returns the message for the peer.
// A pawn reaching the last rank without a piece is promoted to a queen.
func (e *Engine) PlayLocal(from, to board.Square, promo board.PieceKind) (protocol.MoveMessage, rules.MoveOutcome, error) {
	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		e.metrics.MoveRejected(metrics.OriginLocal, metrics.ReasonEnded)
		return protocol.MoveMessage{}, rules.MoveOutcome{}, ErrSessionEnded
	}
	if e.localColor != board.NoColor && e.game.Turn() != e.localColor {
		turn := e.game.Turn()
		e.mu.Unlock()
		e.metrics.MoveRejected(metrics.OriginLocal, metrics.ReasonNotYourTurn)
		return protocol.MoveMessage{}, rules.MoveOutcome{}, fmt.Errorf("%w: %s to move", ErrNotYourTurn, turn)
	}

	outcome, err := e.game.ValidateAndExecute(from, to, promo)
	if err == nil && outcome.NeedsPromotion {
		promo = board.Queen
		outcome, err = e.game.ValidateAndExecute(from, to, promo)
	}
	if err != nil {
		e.mu.Unlock()
		e.metrics.MoveRejected(metrics.OriginLocal, metrics.ReasonIllegal)
		return protocol.MoveMessage{}, outcome, err
	}
	msg := e.produceLocked(from, to, promo)
	entry := e.appendLocked(metrics.OriginLocal, msg.MoveText, outcome.Result)
	e.mu.Unlock()

	e.metrics.MoveApplied(metrics.OriginLocal)
	e.logger.Info("local_move_applied",
		"move", msg.MoveText,
		"seq", entry.Seq,
		"state", msg.GameState,
	)
	e.record(entry)
	return msg, outcome, nil
}

// Quit ends the session locally and returns the message telling the peer.
// The reason is cleaned so the quit frame always encodes.
func (e *Engine) Quit(reason string) protocol.QuitMessage {
	reason = protocol.CleanQuitReason(reason)
	if reason == "" {
		reason = "quit"
	}
	e.mu.Lock()
	e.ended = true
	e.quitReason = reason
	e.mu.Unlock()

	e.logger.Info("local_quit", "reason", reason)
	return protocol.QuitMessage{Reason: reason}
}

// Handle dispatches one inbound message
func (e *Engine) Handle(msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.MoveMessage:
		return e.ApplyRemote(m)
	case protocol.QuitMessage:
		e.mu.Lock()
		e.ended = true
		e.quitReason = "peer: " + m.Reason
		e.mu.Unlock()
		e.logger.Info("peer_quit", "reason", m.Reason)
		return nil
	default:
		return fmt.Errorf("engine: unexpected message %T", msg)
	}
}

// Deliver lets the engine consume inbound messages straight from the transport.
// Rejected moves were already logged; they never stop the receive loop.
func (e *Engine) Deliver(msg protocol.Message) error {
	_ = e.Handle(msg)
	return nil
}

func (e *Engine) Piece(sq board.Square) (board.Piece, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.Piece(sq)
}

func (e *Engine) Position() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.EncodePosition()
}

// Status is the game-state code sent with the next move
func (e *Engine) Status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return StateCode(e.game.Result())
}

func (e *Engine) Turn() board.Color {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.Turn()
}

// Moves returns a copy of the applied move log
func (e *Engine) Moves() []history.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]history.Entry, len(e.moves))
	copy(out, e.moves)
	return out
}

// Ended reports whether either side quit, and why
func (e *Engine) Ended() (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ended, e.quitReason
}

func (e *Engine) LocalColor() board.Color {
	return e.localColor
}

// Snapshot is a consistent view of the game for display
type Snapshot struct {
	Position   string          `json:"position"`
	GameState  string          `json:"game_state"`
	Turn       string          `json:"turn"`
	Plies      int             `json:"plies"`
	Ended      bool            `json:"ended"`
	QuitReason string          `json:"quit_reason,omitempty"`
	Board      [][]board.Piece `json:"-"` // rank 8 first, file A first; zero Piece = empty
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows := make([][]board.Piece, board.Size)
	for i := range rows {
		rank := board.Size - 1 - i
		rows[i] = make([]board.Piece, board.Size)
		for file := 0; file < board.Size; file++ {
			if p, ok := e.game.Piece(board.NewSquare(file, rank)); ok {
				rows[i][file] = p
			}
		}
	}
	return Snapshot{
		Position:   e.game.EncodePosition(),
		GameState:  StateCode(e.game.Result()),
		Turn:       e.game.Turn().String(),
		Plies:      len(e.moves),
		Ended:      e.ended,
		QuitReason: e.quitReason,
		Board:      rows,
	}
}

// StateCode maps a game result to the wire game-state field
func StateCode(result rules.Result) string {
	switch result {
	case rules.WhiteWon:
		return protocol.StateWhiteWon
	case rules.BlackWon:
		return protocol.StateBlackWon
	case rules.Draw:
		return protocol.StateDraw
	default:
		return protocol.StateOngoing
	}
}

func (e *Engine) produceLocked(from, to board.Square, promo board.PieceKind) protocol.MoveMessage {
	return protocol.MoveMessage{
		MoveText:  protocol.FormatMoveText(from, to, promo),
		GameState: StateCode(e.game.Result()),
		Position:  e.game.EncodePosition(),
	}
}

func (e *Engine) appendLocked(origin, moveText string, result rules.Result) history.Entry {
	entry := history.Entry{
		Seq:       len(e.moves) + 1,
		Origin:    origin,
		MoveText:  moveText,
		GameState: StateCode(result),
		Position:  e.game.EncodePosition(),
		At:        time.Now().UTC(),
	}
	e.moves = append(e.moves, entry)
	return entry
}

// record is called without mu held
func (e *Engine) record(entry history.Entry) {
	if e.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := e.recorder.Record(ctx, entry); err != nil {
		e.logger.Warn("history_record_failed",
			"seq", entry.Seq,
			"error", err.Error(),
		)
	}
}
