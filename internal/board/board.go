package board

import (
	"errors"
	"fmt"
)

// board primitives shared by the wire protocol, the rules adapter and the sync engine
// files and ranks are 0-based: file 0 = A, rank 0 = 1 (white's back rank)

const Size = 8

var ErrInvalidSquare = errors.New("board: invalid square")

type Square struct {
	File int // column, 0 = A
	Rank int // row, 0 = rank 1
}

// constructor for Square, no bounds check (see Valid)
func NewSquare(file, rank int) Square {
	return Square{File: file, Rank: rank}
}

// Valid reports whether both coordinates are on the board
func (s Square) Valid() bool {
	return s.File >= 0 && s.File < Size && s.Rank >= 0 && s.Rank < Size
}

// String renders the canonical form, e.g. "E2"
func (s Square) String() string {
	if !s.Valid() {
		return "??"
	}
	return string([]byte{byte('A' + s.File), byte('1' + s.Rank)})
}

// ParseSquare parses "E2" or "e2"
func ParseSquare(text string) (Square, error) {
	if len(text) != 2 {
		return Square{}, fmt.Errorf("%w: %q", ErrInvalidSquare, text)
	}
	file := text[0]
	if file >= 'a' && file <= 'h' {
		file -= 'a' - 'A' // accept lowercase file letters
	}
	rank := text[1]
	if file < 'A' || file > 'H' || rank < '1' || rank > '8' {
		return Square{}, fmt.Errorf("%w: %q", ErrInvalidSquare, text)
	}
	return Square{File: int(file - 'A'), Rank: int(rank - '1')}, nil
}

// AllSquares returns the 64 squares from A1 to H8
func AllSquares() []Square {
	squares := make([]Square, 0, Size*Size)
	for rank := 0; rank < Size; rank++ {
		for file := 0; file < Size; file++ {
			squares = append(squares, Square{File: file, Rank: rank})
		}
	}
	return squares
}

type Color int

const (
	NoColor Color = iota
	White
	Black
)

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return "none"
	}
}

// Other returns the opposing side
func (c Color) Other() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

type PieceKind int

const (
	NoPiece PieceKind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

func (k PieceKind) String() string {
	switch k {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return "none"
	}
}

// Letter is the uppercase board-notation letter ('N' for knight), 0 for NoPiece
func (k PieceKind) Letter() byte {
	switch k {
	case Pawn:
		return 'P'
	case Knight:
		return 'N'
	case Bishop:
		return 'B'
	case Rook:
		return 'R'
	case Queen:
		return 'Q'
	case King:
		return 'K'
	default:
		return 0
	}
}

type Piece struct {
	Kind  PieceKind
	Color Color
}

// Symbol is the position-notation letter: uppercase for white, lowercase for black
func (p Piece) Symbol() byte {
	letter := p.Kind.Letter()
	if letter == 0 {
		return '.'
	}
	if p.Color == Black {
		return letter + ('a' - 'A')
	}
	return letter
}
