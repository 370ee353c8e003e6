package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// maxTxnRetries bounds the optimistic retry loop in Update. A transaction
// that loses this many races in a row is reported as ErrUnavailable.
const maxTxnRetries = 8

// notifyChannel is the pub/sub channel carrying change notifications for a
// document path.
func notifyChannel(path string) string { return "store:" + path }

// RedisStore implements Store on a Redis backend. Optimistic transactions map
// to WATCH/MULTI: the primary path is watched, staged writes are applied in a
// single MULTI block together with change notifications, and a concurrent
// write to the watched key fails the EXEC and triggers a retry.
type RedisStore struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

// ConnectRedis builds a RedisStore from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis(logger *logrus.Logger) (*RedisStore, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &RedisStore{rdb: rdb, logger: logger}, nil
}

// NewRedisStore wraps an existing client, mainly for tests against a local
// Redis instance.
func NewRedisStore(rdb *redis.Client, logger *logrus.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, logger: logger}
}

// Client exposes the underlying redis client for collaborators that share
// the connection (the archiver sink).
func (s *RedisStore) Client() *redis.Client { return s.rdb }

func (s *RedisStore) Get(ctx context.Context, path string, dest any) error {
	raw, err := s.rdb.Get(ctx, path).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: get %s: %v", ErrUnavailable, path, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (s *RedisStore) Put(ctx context.Context, path string, val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, path, raw, 0)
	pipe.Publish(ctx, notifyChannel(path), raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrUnavailable, path, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, path)
	pipe.Publish(ctx, notifyChannel(path), "")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, path, err)
	}
	return nil
}

// stagedWrite is one pending mutation inside a transaction.
type stagedWrite struct {
	path string
	raw  []byte // nil means delete
}

// redisTxn adapts a watched *redis.Tx to the Txn interface.
type redisTxn struct {
	ctx    context.Context
	tx     *redis.Tx
	writes []stagedWrite
	err    error
}

func (t *redisTxn) Get(path string, dest any) (bool, error) {
	// Reads observe this transaction's own staged writes first, so a closure
	// never sees a value it already replaced or deleted.
	for i := len(t.writes) - 1; i >= 0; i-- {
		if t.writes[i].path == path {
			if t.writes[i].raw == nil {
				return false, nil
			}
			return true, json.Unmarshal(t.writes[i].raw, dest)
		}
	}
	raw, err := t.tx.Get(t.ctx, path).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: txn get %s: %v", ErrUnavailable, path, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func (t *redisTxn) Put(path string, val any) {
	raw, err := json.Marshal(val)
	if err != nil {
		t.err = fmt.Errorf("encode %s: %w", path, err)
		return
	}
	t.writes = append(t.writes, stagedWrite{path: path, raw: raw})
}

func (t *redisTxn) Delete(path string) {
	t.writes = append(t.writes, stagedWrite{path: path})
}

func (s *RedisStore) Update(ctx context.Context, path string, fn func(tx Txn) error) error {
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			view := &redisTxn{ctx: ctx, tx: tx}
			if err := fn(view); err != nil {
				return err
			}
			if view.err != nil {
				return view.err
			}
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, w := range view.writes {
					if w.raw == nil {
						pipe.Del(ctx, w.path)
						pipe.Publish(ctx, notifyChannel(w.path), "")
					} else {
						pipe.Set(ctx, w.path, w.raw, 0)
						pipe.Publish(ctx, notifyChannel(w.path), w.raw)
					}
				}
				return nil
			})
			return err
		}, path)

		if errors.Is(err, redis.TxFailedErr) || errors.Is(err, ErrConflict) {
			s.logger.WithFields(logrus.Fields{
				"path":    path,
				"attempt": attempt + 1,
			}).Debug("transaction conflict, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * 5 * time.Millisecond):
			}
			continue
		}
		return err
	}
	return fmt.Errorf("%w: update %s: retries exhausted", ErrUnavailable, path)
}

func (s *RedisStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan %s: %v", ErrUnavailable, prefix, err)
	}
	return keys, nil
}

func (s *RedisStore) Subscribe(ctx context.Context, path string) (<-chan []byte, error) {
	sub := s.rdb.Subscribe(ctx, notifyChannel(path))
	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("%w: subscribe %s: %v", ErrUnavailable, path, err)
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var payload []byte
				if msg.Payload != "" {
					payload = []byte(msg.Payload)
				}
				select {
				case out <- payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
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
