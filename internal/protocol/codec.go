package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// every frame is exactly FrameSize bytes of ASCII:
//
//	ChessMOVE:<move>:<state>:<position>:0000...
//	ChessQUIT:<reason>:0000...
const (
	FrameSize    = 128
	Separator    = ":"
	PaddingByte  = '0'
	moveFieldMin = 4 // tag, move, state, position
	quitFieldMin = 2 // tag, reason
)

var (
	ErrFrameTooLarge = errors.New("protocol: frame exceeds fixed size")
	ErrInvalidField  = errors.New("protocol: field contains separator")
	ErrUnknownKind   = errors.New("protocol: unknown message kind")
)

// Encode renders msg as a FrameSize-byte frame
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, ErrUnknownKind
	}
	fields := msg.fields()

	var sb strings.Builder
	sb.Grow(FrameSize)
	sb.WriteString(string(msg.Kind()))
	sb.WriteString(Separator)
	for _, field := range fields {
		if strings.Contains(field, Separator) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidField, field)
		}
		sb.WriteString(field)
		sb.WriteString(Separator)
	}

	if sb.Len() > FrameSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, sb.Len(), FrameSize)
	}

	frame := make([]byte, FrameSize)
	n := copy(frame, sb.String())
	for i := n; i < FrameSize; i++ {
		frame[i] = PaddingByte
	}
	return frame, nil
}

// DecodeFrame converts raw bytes lossily to UTF-8 and decodes them.
// partial multi-byte sequences become U+FFFD instead of failing
func DecodeFrame(raw []byte) (Message, bool) {
	return Decode(strings.ToValidUTF8(string(raw), "\uFFFD"))
}

// Decode parses one frame. Anything structurally wrong yields (nil, false);
// the padding shows up as a trailing field and is ignored.
func Decode(raw string) (Message, bool) {
	if raw == "" {
		return nil, false
	}
	parts := strings.Split(raw, Separator)

	switch Kind(parts[0]) {
	case KindMove:
		if len(parts) < moveFieldMin {
			return nil, false
		}
		return MoveMessage{
			MoveText:  parts[1],
			GameState: parts[2],
			Position:  parts[3],
		}, true
	case KindQuit:
		if len(parts) < quitFieldMin {
			return nil, false
		}
		return QuitMessage{Reason: parts[1]}, true
	default:
		return nil, false
	}
}
