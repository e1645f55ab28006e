package rules

import (
	"errors"

	"github.com/INDA25PlusPlus/nhg-net/internal/board"
)

// the rules engine is an external collaborator: the sync engine only talks to it through Game

var ErrIllegalMove = errors.New("rules: illegal move")

// Result is the state of the game after the last move
type Result int

const (
	Ongoing Result = iota
	WhiteWon
	BlackWon
	Draw
)

func (r Result) String() string {
	switch r {
	case WhiteWon:
		return "white_won"
	case BlackWon:
		return "black_won"
	case Draw:
		return "draw"
	default:
		return "ongoing"
	}
}

// MoveOutcome describes what a validated move did
type MoveOutcome struct {
	NeedsPromotion bool // the move is a pawn reaching the last rank and no piece was given; nothing was applied
	Capture        bool
	Check          bool
	Checkmate      bool
	Stalemate      bool
	Result         Result
}

// PieceReader is the read side of a board, enough to encode a position
type PieceReader interface {
	Piece(sq board.Square) (board.Piece, bool)
}

// Game is the mutable game state plus the rules that guard it.
// Implementations are not safe for concurrent use; the sync engine serializes access.
type Game interface {
	PieceReader
	// ValidateAndExecute applies the move if legal; otherwise it returns an error
	// wrapping ErrIllegalMove and leaves the position untouched
	ValidateAndExecute(from, to board.Square, promo board.PieceKind) (MoveOutcome, error)
	EncodePosition() string
	Turn() board.Color
	Result() Result
}
