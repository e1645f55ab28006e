package status

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/INDA25PlusPlus/nhg-net/internal/engine"
	"github.com/INDA25PlusPlus/nhg-net/internal/history"
)

// GameView is the read side of the sync engine
type GameView interface {
	Snapshot() engine.Snapshot
	Moves() []history.Entry
}

// SessionInfo identifies the running peer in responses
type SessionInfo struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	PeerAddr  string `json:"peer_addr"`
}

type Handler struct {
	game    GameView
	session SessionInfo
}

func NewHandler(game GameView, session SessionInfo) *Handler {
	return &Handler{game: game, session: session}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/healthz", h.Health)
	r.GET("/board", h.Board)
	r.GET("/moves", h.Moves)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"session": h.session,
	})
}

type boardResponse struct {
	engine.Snapshot
	Session SessionInfo `json:"session"`
	Rows    []string    `json:"rows"` // rank 8 first, '.' for empty squares
}

func (h *Handler) Board(c *gin.Context) {
	snap := h.game.Snapshot()
	rows := make([]string, 0, len(snap.Board))
	for _, rank := range snap.Board {
		row := make([]byte, len(rank))
		for i, p := range rank {
			row[i] = p.Symbol()
		}
		rows = append(rows, string(row))
	}
	c.JSON(http.StatusOK, boardResponse{
		Snapshot: snap,
		Session:  h.session,
		Rows:     rows,
	})
}

// Moves lists applied moves; ?since=N skips the first N
func (h *Handler) Moves(c *gin.Context) {
	moves := h.game.Moves()
	if raw := c.Query("since"); raw != "" {
		since, err := strconv.Atoi(raw)
		if err != nil || since < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a non-negative integer"})
			return
		}
		if since > len(moves) {
			since = len(moves)
		}
		moves = moves[since:]
	}
	c.JSON(http.StatusOK, gin.H{
		"session": h.session,
		"count":   len(moves),
		"moves":   moves,
	})
}
