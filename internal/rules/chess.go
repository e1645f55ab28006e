package rules

import (
	"fmt"

	"github.com/notnil/chess"

	"github.com/INDA25PlusPlus/nhg-net/internal/board"
)

// ChessGame adapts github.com/notnil/chess to Game
type ChessGame struct {
	game *chess.Game
}

// NewChessGame starts from the standard initial position
func NewChessGame() *ChessGame {
	return &ChessGame{game: chess.NewGame()}
}

// NewChessGameFromFEN starts from a full FEN string
func NewChessGameFromFEN(fen string) (*ChessGame, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("invalid FEN %q: %w", fen, err)
	}
	return &ChessGame{game: chess.NewGame(opt)}, nil
}

func (g *ChessGame) ValidateAndExecute(from, to board.Square, promo board.PieceKind) (MoveOutcome, error) {
	if !from.Valid() || !to.Valid() {
		return MoveOutcome{}, fmt.Errorf("%w: %s%s is off the board", ErrIllegalMove, from, to)
	}
	s1, s2 := toChessSquare(from), toChessSquare(to)
	wantPromo := toChessPieceType(promo)

	var match *chess.Move
	needsPromotion := false
	for _, mv := range g.game.ValidMoves() {
		if mv.S1() != s1 || mv.S2() != s2 {
			continue
		}
		if mv.Promo() == wantPromo {
			match = mv
			break
		}
		if wantPromo == chess.NoPieceType && mv.Promo() != chess.NoPieceType {
			needsPromotion = true
		}
	}

	if match == nil {
		if needsPromotion {
			return MoveOutcome{NeedsPromotion: true, Result: g.Result()}, nil
		}
		return MoveOutcome{}, fmt.Errorf("%w: %s to %s (promotion %s) with %s to move",
			ErrIllegalMove, from, to, promo, g.Turn())
	}

	if err := g.game.Move(match); err != nil {
		return MoveOutcome{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	outcome := MoveOutcome{
		Capture: match.HasTag(chess.Capture) || match.HasTag(chess.EnPassant),
		Check:   match.HasTag(chess.Check),
		Result:  g.Result(),
	}
	switch g.game.Method() {
	case chess.Checkmate:
		outcome.Checkmate = true
	case chess.Stalemate:
		outcome.Stalemate = true
	}
	return outcome, nil
}

func (g *ChessGame) Piece(sq board.Square) (board.Piece, bool) {
	if !sq.Valid() {
		return board.Piece{}, false
	}
	p := g.game.Position().Board().Piece(toChessSquare(sq))
	if p == chess.NoPiece {
		return board.Piece{}, false
	}
	return board.Piece{Kind: fromChessPieceType(p.Type()), Color: fromChessColor(p.Color())}, true
}

func (g *ChessGame) EncodePosition() string {
	return EncodePosition(g)
}

func (g *ChessGame) Turn() board.Color {
	return fromChessColor(g.game.Position().Turn())
}

func (g *ChessGame) Result() Result {
	switch g.game.Outcome() {
	case chess.WhiteWon:
		return WhiteWon
	case chess.BlackWon:
		return BlackWon
	case chess.Draw:
		return Draw
	default:
		return Ongoing
	}
}

// notnil squares are numbered rank*8+file starting at A1
func toChessSquare(sq board.Square) chess.Square {
	return chess.Square(sq.Rank*board.Size + sq.File)
}

func toChessPieceType(kind board.PieceKind) chess.PieceType {
	switch kind {
	case board.Pawn:
		return chess.Pawn
	case board.Knight:
		return chess.Knight
	case board.Bishop:
		return chess.Bishop
	case board.Rook:
		return chess.Rook
	case board.Queen:
		return chess.Queen
	case board.King:
		return chess.King
	default:
		return chess.NoPieceType
	}
}

func fromChessPieceType(pt chess.PieceType) board.PieceKind {
	switch pt {
	case chess.Pawn:
		return board.Pawn
	case chess.Knight:
		return board.Knight
	case chess.Bishop:
		return board.Bishop
	case chess.Rook:
		return board.Rook
	case chess.Queen:
		return board.Queen
	case chess.King:
		return board.King
	default:
		return board.NoPiece
	}
}

func fromChessColor(c chess.Color) board.Color {
	switch c {
	case chess.White:
		return board.White
	case chess.Black:
		return board.Black
	default:
		return board.NoColor
	}
}
