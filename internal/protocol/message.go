package protocol

import "strings"

// Kind is the frame type tag; it is the first colon-separated field on the wire
type Kind string

const (
	KindMove Kind = "ChessMOVE"
	KindQuit Kind = "ChessQUIT"
)

// Message is one of MoveMessage or QuitMessage
type Message interface {
	Kind() Kind
	fields() []string // wire fields after the tag, in order
}

// MoveMessage carries one ply plus the sender's view of the game after it
type MoveMessage struct {
	MoveText  string // "E2E40": from, to, promotion code
	GameState string // "0-0" while the game is running
	Position  string // board field of FEN, rank 8 first
}

func (MoveMessage) Kind() Kind { return KindMove }

func (m MoveMessage) fields() []string {
	return []string{m.MoveText, m.GameState, m.Position}
}

// QuitMessage ends the session
type QuitMessage struct {
	Reason string
}

func (QuitMessage) Kind() Kind { return KindQuit }

func (m QuitMessage) fields() []string {
	return []string{m.Reason}
}

// MaxQuitReason is the longest reason that still fits in one frame
const MaxQuitReason = FrameSize - len(KindQuit) - 2*len(Separator)

// CleanQuitReason drops separators and cuts reason to MaxQuitReason bytes,
// so a quit built from user input always encodes
func CleanQuitReason(reason string) string {
	reason = strings.TrimSpace(strings.ReplaceAll(reason, Separator, ""))
	if len(reason) > MaxQuitReason {
		reason = strings.ToValidUTF8(reason[:MaxQuitReason], "")
	}
	return reason
}

// game state codes exchanged in MoveMessage.GameState
const (
	StateOngoing  = "0-0"
	StateWhiteWon = "1-0"
	StateBlackWon = "0-1"
	StateDraw     = "1-1"
)
