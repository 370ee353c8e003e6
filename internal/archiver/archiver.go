// Package archiver persists finished matches asynchronously. The engine
// pushes a compact completion record onto a Redis list; the archiver service
// pops records, batches them, and writes match_history rows.
package archiver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hassanwarsame/quizduel/internal/models"
)

// DefaultQueueName is the Redis list the completion records flow through.
var DefaultQueueName = "quizduel_completions"

// MatchRecord holds the minimal info needed to archive one finished match.
type MatchRecord struct {
	MatchID    uuid.UUID      `json:"match_id"`
	Subject    models.Subject `json:"subject"`
	Player1    uuid.UUID      `json:"player1"`
	Player2    uuid.UUID      `json:"player2"`
	Score1     int            `json:"score1"`
	Score2     int            `json:"score2"`
	Winner     string         `json:"winner"`
	FinishedAt int64          `json:"finished_at"` // unix millis
}

// RedisSink enqueues completion records. It satisfies match.CompletionSink.
type RedisSink struct {
	rdb   *redis.Client
	queue string
}

func NewRedisSink(rdb *redis.Client) *RedisSink {
	return &RedisSink{
		rdb:   rdb,
		queue: getEnv("ARCHIVER_QUEUE_NAME", DefaultQueueName),
	}
}

// MatchFinished serializes the match into a MatchRecord and pushes it onto
// the queue. This only costs the calling transition a quick network send.
func (s *RedisSink) MatchFinished(ctx context.Context, m *models.Match) error {
	rec := MatchRecord{
		MatchID:    m.ID,
		Subject:    m.Subject,
		Player1:    m.Order[0],
		Player2:    m.Order[1],
		Score1:     m.Players[m.Order[0]].Score,
		Score2:     m.Players[m.Order[1]].Score,
		Winner:     m.Winner,
		FinishedAt: m.LastActivity,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal MatchRecord: %w", err)
	}
	if err := s.rdb.RPush(ctx, s.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", s.queue, err)
	}
	return nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
