package rules

import (
	"strconv"
	"strings"

	"github.com/INDA25PlusPlus/nhg-net/internal/board"
)

// EncodePosition renders the board field of FEN: rank 8 down to rank 1, file A to H,
// digits for runs of empty squares and '/' between ranks
func EncodePosition(r PieceReader) string {
	var sb strings.Builder
	for rank := board.Size - 1; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < board.Size; file++ {
			piece, ok := r.Piece(board.NewSquare(file, rank))
			if !ok {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteByte(piece.Symbol())
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}
