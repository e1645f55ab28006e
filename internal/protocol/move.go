package protocol

import (
	"errors"
	"fmt"

	"github.com/INDA25PlusPlus/nhg-net/internal/board"
)

// MoveTextLen is the fixed length of MoveMessage.MoveText
const MoveTextLen = 5

var ErrMalformedMove = errors.New("protocol: malformed move")

// ParseMoveText splits "E7E8Q" into from, to and promotion
func ParseMoveText(text string) (from, to board.Square, promo board.PieceKind, err error) {
	if len(text) != MoveTextLen {
		return from, to, promo, fmt.Errorf("%w: %q has length %d, want %d", ErrMalformedMove, text, len(text), MoveTextLen)
	}
	if from, err = board.ParseSquare(text[0:2]); err != nil {
		return from, to, promo, fmt.Errorf("%w: bad from-square: %v", ErrMalformedMove, err)
	}
	if to, err = board.ParseSquare(text[2:4]); err != nil {
		return from, to, promo, fmt.Errorf("%w: bad to-square: %v", ErrMalformedMove, err)
	}
	if promo, err = board.ParsePromotion(text[4]); err != nil {
		return from, to, promo, fmt.Errorf("%w: %v", ErrMalformedMove, err)
	}
	return from, to, promo, nil
}

// FormatMoveText is the inverse of ParseMoveText
func FormatMoveText(from, to board.Square, promo board.PieceKind) string {
	return from.String() + to.String() + string(board.PromotionCode(promo))
}
