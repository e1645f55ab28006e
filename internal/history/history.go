package history

import (
	"context"
	"time"
)

// Entry is one applied move as seen by this peer
type Entry struct {
	Seq       int       `json:"seq"`    // 1-based ply number on this peer
	Origin    string    `json:"origin"` // "local" or "remote"
	MoveText  string    `json:"move"`
	GameState string    `json:"state"`
	Position  string    `json:"position"`
	At        time.Time `json:"at"`
}

// Recorder persists the move log outside the process.
// The sync engine calls Record after releasing its lock, never while holding it.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
	Entries(ctx context.Context) ([]Entry, error)
	Close() error
}
