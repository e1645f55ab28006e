package board

import (
	"errors"
	"fmt"
)

var ErrInvalidPromotion = errors.New("board: invalid promotion code")

// NoPromotionCode is written when a move does not promote
const NoPromotionCode = '0'

// ParsePromotion maps a wire promotion code to a piece kind.
// K/k is Knight, not King: peers already encode knights that way.
func ParsePromotion(code byte) (PieceKind, error) {
	switch code {
	case 'Q', 'q':
		return Queen, nil
	case 'R', 'r':
		return Rook, nil
	case 'B', 'b':
		return Bishop, nil
	case 'N', 'n', 'K', 'k':
		return Knight, nil
	case NoPromotionCode:
		return NoPiece, nil
	default:
		return NoPiece, fmt.Errorf("%w: %q", ErrInvalidPromotion, code)
	}
}

// PromotionCode is the inverse of ParsePromotion; kinds that cannot be promoted to map to '0'
func PromotionCode(kind PieceKind) byte {
	switch kind {
	case Queen, Rook, Bishop, Knight:
		return kind.Letter()
	default:
		return NoPromotionCode
	}
}
