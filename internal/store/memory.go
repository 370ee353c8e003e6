package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store with the same optimistic transaction
// contract as the Redis backend. Each document carries a version counter;
// Update snapshots the primary path's version, runs the closure without the
// lock held, and commits only if the version is unchanged.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]memoryDoc
	subs map[string][]chan []byte
}

type memoryDoc struct {
	raw     []byte
	version uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]memoryDoc),
		subs: make(map[string][]chan []byte),
	}
}

func (s *MemoryStore) Get(_ context.Context, path string, dest any) error {
	s.mu.Lock()
	doc, ok := s.docs[path]
	s.mu.Unlock()
	if !ok || doc.raw == nil {
		return ErrNotFound
	}
	if err := json.Unmarshal(doc.raw, dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (s *MemoryStore) Put(_ context.Context, path string, val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	s.mu.Lock()
	s.commitLocked(path, raw)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	s.commitLocked(path, nil)
	s.mu.Unlock()
	return nil
}

// commitLocked applies one write and notifies subscribers. Callers hold mu.
// Deletes leave a tombstone so the version keeps increasing across a
// delete-recreate cycle.
func (s *MemoryStore) commitLocked(path string, raw []byte) {
	prev := s.docs[path]
	s.docs[path] = memoryDoc{raw: raw, version: prev.version + 1}
	for _, ch := range s.subs[path] {
		// Drop the notification rather than block a slow subscriber; the
		// subscriber re-reads on the next one.
		select {
		case ch <- raw:
		default:
		}
	}
}

type memoryTxn struct {
	store  *MemoryStore
	writes []stagedWrite
	err    error
}

func (t *memoryTxn) Get(path string, dest any) (bool, error) {
	for i := len(t.writes) - 1; i >= 0; i-- {
		if t.writes[i].path == path {
			if t.writes[i].raw == nil {
				return false, nil
			}
			return true, json.Unmarshal(t.writes[i].raw, dest)
		}
	}
	t.store.mu.Lock()
	doc, ok := t.store.docs[path]
	t.store.mu.Unlock()
	if !ok || doc.raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(doc.raw, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func (t *memoryTxn) Put(path string, val any) {
	raw, err := json.Marshal(val)
	if err != nil {
		t.err = fmt.Errorf("encode %s: %w", path, err)
		return
	}
	t.writes = append(t.writes, stagedWrite{path: path, raw: raw})
}

func (t *memoryTxn) Delete(path string) {
	t.writes = append(t.writes, stagedWrite{path: path})
}

func (s *MemoryStore) Update(ctx context.Context, path string, fn func(tx Txn) error) error {
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		s.mu.Lock()
		startVersion := s.docs[path].version
		s.mu.Unlock()

		view := &memoryTxn{store: s}
		if err := fn(view); err != nil {
			return err
		}
		if view.err != nil {
			return view.err
		}

		s.mu.Lock()
		if s.docs[path].version != startVersion {
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			continue
		}
		for _, w := range view.writes {
			s.commitLocked(w.path, w.raw)
		}
		s.mu.Unlock()
		return nil
	}
	return fmt.Errorf("%w: update %s: retries exhausted", ErrUnavailable, path)
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k, doc := range s.docs {
		if doc.raw != nil && strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, path string) (<-chan []byte, error) {
	ch := make(chan []byte, 16)
	s.mu.Lock()
	s.subs[path] = append(s.subs[path], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		subs := s.subs[path]
		for i, c := range subs {
			if c == ch {
				s.subs[path] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (s *MemoryStore) Close() error { return nil }
