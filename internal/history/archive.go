package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GameRecord is one finished session in the archive table
type GameRecord struct {
	ID            string `gorm:"primaryKey;size:36"` // session uuid
	Role          string `gorm:"size:16"`
	RemoteAddr    string `gorm:"size:64"`
	Moves         string `gorm:"type:text"` // space separated move texts in play order
	Plies         int
	FinalPosition string `gorm:"size:96"`
	GameState     string `gorm:"size:8"`
	QuitReason    string `gorm:"size:128"`
	StartedAt     time.Time
	EndedAt       time.Time
}

func (GameRecord) TableName() string {
	return "game_archive"
}

// NewGameRecord builds the archive row from the session's move log
func NewGameRecord(sessionID, role, remoteAddr string, entries []Entry, quitReason string, startedAt, endedAt time.Time) *GameRecord {
	moves := make([]string, 0, len(entries))
	for _, e := range entries {
		moves = append(moves, e.MoveText)
	}
	rec := &GameRecord{
		ID:         sessionID,
		Role:       role,
		RemoteAddr: remoteAddr,
		Moves:      strings.Join(moves, " "),
		Plies:      len(entries),
		QuitReason: quitReason,
		StartedAt:  startedAt,
		EndedAt:    endedAt,
	}
	if len(entries) > 0 {
		last := entries[len(entries)-1]
		rec.FinalPosition = last.Position
		rec.GameState = last.GameState
	}
	return rec
}

// Archive stores finished games in Postgres
type Archive struct {
	db *gorm.DB // nil = no-op
}

// OpenArchive connects and migrates the archive table
func OpenArchive(dsn string) (*Archive, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	if err := db.AutoMigrate(&GameRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate archive: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Save(ctx context.Context, rec *GameRecord) error {
	if a == nil || a.db == nil {
		return nil
	}
	if err := a.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to archive game %s: %w", rec.ID, err)
	}
	return nil
}

func (a *Archive) Get(ctx context.Context, id string) (*GameRecord, error) {
	if a == nil || a.db == nil {
		return nil, fmt.Errorf("archive not configured")
	}
	var rec GameRecord
	if err := a.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", id, err)
	}
	return &rec, nil
}

func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
