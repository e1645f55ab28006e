package command

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/INDA25PlusPlus/nhg-net/internal/board"
	"github.com/INDA25PlusPlus/nhg-net/internal/engine"
	"github.com/INDA25PlusPlus/nhg-net/internal/protocol"
)

// Outbox is where the console puts messages for the peer
type Outbox interface {
	Send(msg protocol.Message) error
}

// Console is the text front end: it reads commands and draws the board.
// Output from the input loop and from the inbound consumer is serialized by mu.
type Console struct {
	mu     sync.Mutex
	engine *engine.Engine
	outbox Outbox
	out    io.Writer
	flip   bool // draw rank 1 at the top, for the black player

	white  *color.Color
	black  *color.Color
	empty  *color.Color
	info   *color.Color
	warn   *color.Color
	notice *color.Color
}

// constructor for Console
func NewConsole(eng *engine.Engine, outbox Outbox, out io.Writer) *Console {
	return &Console{
		engine: eng,
		outbox: outbox,
		out:    out,
		white:  color.New(color.FgHiWhite, color.Bold),
		black:  color.New(color.FgRed, color.Bold),
		empty:  color.New(color.FgHiBlack),
		info:   color.New(color.FgCyan),
		warn:   color.New(color.FgYellow),
		notice: color.New(color.FgGreen),
	}
}

// Start prints the greeting and the initial board
func (c *Console) Start(local board.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flip = local == board.Black
	c.info.Fprintf(c.out, "Connected. You play %s. Type \"help\" for commands.\n", local)
	c.renderLocked()
}

// Exec runs one line of user input; it reports whether the user quit
func (c *Console) Exec(line string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToLower(fields[0]) {
	case "help", "?":
		c.helpLocked()
	case "board", "b":
		c.renderLocked()
	case "moves", "m":
		c.movesLocked()
	case "quit", "exit", "resign":
		reason := "quit"
		if len(fields) > 1 {
			reason = strings.Join(fields[1:], " ")
		}
		msg := c.engine.Quit(reason)
		if err := c.outbox.Send(msg); err != nil {
			c.warn.Fprintf(c.out, "could not tell the peer: %v\n", err)
		}
		c.info.Fprintln(c.out, "You left the game.")
		return true
	default:
		c.moveLocked(strings.Join(fields, ""))
	}
	return false
}

// Remote reports an inbound message after the engine handled it
func (c *Console) Remote(msg protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch m := msg.(type) {
	case protocol.MoveMessage:
		c.notice.Fprintf(c.out, "Peer played %s\n", m.MoveText)
		c.renderLocked()
	case protocol.QuitMessage:
		c.warn.Fprintf(c.out, "Peer left the game: %s\n", m.Reason)
	}
}

// End prints the final state once the connection is gone
func (c *Console) End() {
	c.mu.Lock()
	defer c.mu.Unlock()

	ended, reason := c.engine.Ended()
	if !ended {
		reason = "connection closed"
	}
	c.info.Fprintf(c.out, "Game over (%s), result %s after %d plies.\n",
		reason, c.engine.Status(), len(c.engine.Moves()))
}

func (c *Console) moveLocked(input string) {
	from, to, promo, err := ParseMoveInput(input)
	if err != nil {
		c.warn.Fprintf(c.out, "%v (try e2e4 or help)\n", err)
		return
	}

	msg, outcome, err := c.engine.PlayLocal(from, to, promo)
	switch {
	case errors.Is(err, engine.ErrNotYourTurn):
		c.warn.Fprintln(c.out, "Not your turn, wait for the peer.")
		return
	case errors.Is(err, engine.ErrSessionEnded):
		c.warn.Fprintln(c.out, "The game is over.")
		return
	case err != nil:
		c.warn.Fprintf(c.out, "Illegal move: %s%s\n", from, to)
		return
	}

	if err := c.outbox.Send(msg); err != nil {
		c.warn.Fprintf(c.out, "could not send the move: %v\n", err)
		return
	}
	c.renderLocked()
	switch {
	case outcome.Checkmate:
		c.notice.Fprintln(c.out, "Checkmate!")
	case outcome.Stalemate:
		c.notice.Fprintln(c.out, "Stalemate.")
	case outcome.Check:
		c.notice.Fprintln(c.out, "Check.")
	}
}

// ParseMoveInput accepts "e2e4", "e2 e4", "e7e8q" and the wire form "E2E40"
func ParseMoveInput(input string) (from, to board.Square, promo board.PieceKind, err error) {
	text := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(input), " ", ""))
	text = strings.ReplaceAll(text, "-", "")
	if len(text) == protocol.MoveTextLen-1 {
		text += string(board.NoPromotionCode)
	}
	return protocol.ParseMoveText(text)
}

func (c *Console) renderLocked() {
	snap := c.engine.Snapshot()

	files := "  a b c d e f g h"
	if c.flip {
		files = "  h g f e d c b a"
	}
	fmt.Fprintln(c.out)
	for i := 0; i < board.Size; i++ {
		row := i
		if c.flip {
			row = board.Size - 1 - i
		}
		rank := board.Size - row
		fmt.Fprintf(c.out, "%d ", rank)
		for j := 0; j < board.Size; j++ {
			file := j
			if c.flip {
				file = board.Size - 1 - j
			}
			c.squareLocked(snap.Board[row][file], (rank-1+file)%2 == 0)
			fmt.Fprint(c.out, " ")
		}
		fmt.Fprintln(c.out)
	}
	fmt.Fprintln(c.out, files)
	c.info.Fprintf(c.out, "%s to move, state %s\n", snap.Turn, snap.GameState)
}

func (c *Console) squareLocked(p board.Piece, dark bool) {
	switch p.Color {
	case board.White:
		c.white.Fprintf(c.out, "%c", p.Symbol())
	case board.Black:
		c.black.Fprintf(c.out, "%c", p.Symbol())
	default:
		if dark {
			c.empty.Fprint(c.out, ".")
		} else {
			c.empty.Fprint(c.out, " ")
		}
	}
}

func (c *Console) movesLocked() {
	moves := c.engine.Moves()
	if len(moves) == 0 {
		c.info.Fprintln(c.out, "No moves yet.")
		return
	}
	for _, m := range moves {
		fmt.Fprintf(c.out, "%3d. %s (%s)\n", m.Seq, m.MoveText, m.Origin)
	}
}

func (c *Console) helpLocked() {
	fmt.Fprint(c.out, `Commands:
  e2e4, e7e8q   make a move (promotion piece q, r, b or n; queen if omitted)
  board         print the board
  moves         list the moves so far
  quit [reason] end the game and tell the peer
`)
}
