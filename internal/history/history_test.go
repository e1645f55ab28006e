package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntries(at time.Time) []Entry {
	return []Entry{
		{Seq: 1, Origin: "local", MoveText: "E2E40", GameState: "0-0", Position: "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR", At: at},
		{Seq: 2, Origin: "remote", MoveText: "E7E50", GameState: "0-0", Position: "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR", At: at},
	}
}

func TestNewGameRecord(t *testing.T) {
	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)
	rec := NewGameRecord("abc", "listen", "127.0.0.1:5000", sampleEntries(start), "bye", start, end)

	assert.Equal(t, "abc", rec.ID)
	assert.Equal(t, "E2E40 E7E50", rec.Moves)
	assert.Equal(t, 2, rec.Plies)
	assert.Equal(t, "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR", rec.FinalPosition)
	assert.Equal(t, "0-0", rec.GameState)
	assert.Equal(t, "bye", rec.QuitReason)
	assert.Equal(t, "game_archive", rec.TableName())

	empty := NewGameRecord("abc", "connect", "", nil, "", start, end)
	assert.Equal(t, "", empty.Moves)
	assert.Equal(t, 0, empty.Plies)
}

func TestNilRecordersAreNoops(t *testing.T) {
	ctx := context.Background()

	var r *RedisRecorder
	assert.NoError(t, r.Record(ctx, Entry{}))
	entries, err := r.Entries(ctx)
	assert.NoError(t, err)
	assert.Nil(t, entries)
	assert.NoError(t, r.Close())

	var a *Archive
	assert.NoError(t, a.Save(ctx, &GameRecord{ID: "x"}))
	_, err = a.Get(ctx, "x")
	assert.Error(t, err)
	assert.NoError(t, a.Close())
}

func TestParseRedisURL(t *testing.T) {
	opts, err := parseRedisURL("redis://localhost:6379/2")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	opts, err = parseRedisURL("cache:6380")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)

	_, err = parseRedisURL("redis://localhost:6379/notadb")
	assert.Error(t, err)
}

func TestRedisRecorderIntegration(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}

	session := uuid.NewString()
	rec, err := NewRedisRecorder("localhost:6379", session)
	require.NoError(t, err)
	defer func() {
		client.Del(context.Background(), SessionKey(session))
		rec.Close()
	}()

	at := time.Now().UTC().Truncate(time.Second)
	for _, e := range sampleEntries(at) {
		require.NoError(t, rec.Record(context.Background(), e))
	}

	got, err := rec.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "E2E40", got[0].MoveText)
	assert.Equal(t, "remote", got[1].Origin)
	assert.True(t, at.Equal(got[1].At))

	ttl, err := client.TTL(context.Background(), SessionKey(session)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
