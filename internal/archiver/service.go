package archiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/hassanwarsame/quizduel/internal/database"
)

// Service pops completion records from the Redis queue and persists them to
// the match_history table in batches.
type Service struct {
	redisClient *redis.Client
	queue       string
	batchSize   int
	flushDelay  time.Duration

	batchMu sync.Mutex
	batch   []MatchRecord

	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewService constructs a Service from environment variables or defaults.
func NewService() *Service {
	batchSize := getEnvInt("ARCHIVER_BATCH_SIZE", 20)
	flushMs := getEnvInt("ARCHIVER_FLUSH_MS", 500)

	rdb := redis.NewClient(&redis.Options{
		Addr: getEnv("REDIS_ADDR", "localhost:6379"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		redisClient: rdb,
		queue:       getEnv("ARCHIVER_QUEUE_NAME", DefaultQueueName),
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		batch:       make([]MatchRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run connects to the database and consumes the queue until Stop is called.
func (s *Service) Run() {
	database.ConnectDB()

	go s.readLoop()

	log.Println("quizduel-archiver service started.")
	<-s.ctx.Done()
	log.Println("quizduel-archiver shutting down.")
	s.flushBatch()
}

func (s *Service) Stop() {
	s.cancelFn()
}

// readLoop uses BLPop with a short timeout so that cancellation is handled.
func (s *Service) readLoop() {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			s.flushBatch()

		default:
			res, err := s.redisClient.BLPop(s.ctx, 3*time.Second, s.queue).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if s.ctx.Err() != nil {
					return
				}
				log.Printf("[ERROR] BLPop: %v\n", err)
				continue
			}
			if len(res) < 2 {
				continue
			}

			var rec MatchRecord
			if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
				log.Printf("invalid match record: %v\n", err)
				continue
			}
			s.appendToBatch(rec)
		}
	}
}

func (s *Service) appendToBatch(rec MatchRecord) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	s.batch = append(s.batch, rec)
	if len(s.batch) >= s.batchSize {
		s.flushLocked()
	}
}

func (s *Service) flushBatch() {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.flushLocked()
}

// flushLocked writes the current batch in a single transaction. Callers hold batchMu.
func (s *Service) flushLocked() {
	if len(s.batch) == 0 {
		return
	}
	batchCopy := make([]MatchRecord, len(s.batch))
	copy(batchCopy, s.batch)
	s.batch = s.batch[:0]

	ctx := context.Background()
	err := pgx.BeginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batchCopy {
			if err := insertMatchTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertMatchTx: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[ERROR] flush batch: %v\n", err)
	} else {
		log.Printf("Archived %d matches.\n", len(batchCopy))
	}
}

func insertMatchTx(ctx context.Context, tx pgx.Tx, rec MatchRecord) error {
	q := `
	INSERT INTO match_history (match_id, subject, player1, player2, score1, score2, winner, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, to_timestamp($8::double precision / 1000))
	ON CONFLICT (match_id) DO NOTHING
	`
	_, err := tx.Exec(ctx, q,
		rec.MatchID, string(rec.Subject), rec.Player1, rec.Player2,
		rec.Score1, rec.Score2, rec.Winner, rec.FinishedAt,
	)
	return err
}
