// Package presence removes queue and room entries left behind by clients
// that disconnect before pairing completes. Each ephemeral entry is guarded
// by a lease; the owning connection heartbeats the lease while it lives, and
// a sweeper revokes entries whose lease expired.
package presence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hassanwarsame/quizduel/internal/store"
)

// LeaseDoc is the persisted form of a lease, stored at leases/{id}. Entry is
// the guarded document exactly as it stood at acquire time; revocation only
// deletes the guarded path while it still holds that document, since room
// codes and entry paths can be reused by later owners.
type LeaseDoc struct {
	Path      string          `json:"path"` // guarded entry
	ExpiresAt int64           `json:"expiresAt"`
	Entry     json.RawMessage `json:"entry"`
}

// Manager issues leases and sweeps expired ones.
type Manager struct {
	store    store.Store
	ttl      time.Duration
	interval time.Duration
	logger   *logrus.Logger

	now func() time.Time
}

func NewManager(st store.Store, ttl, interval time.Duration, logger *logrus.Logger) *Manager {
	return &Manager{
		store:    st,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Lease guards one ephemeral entry. Release it explicitly on clean teardown;
// otherwise the sweeper reclaims it after the TTL lapses.
type Lease struct {
	ID   string
	Path string

	entry json.RawMessage
	mgr   *Manager
}

// Acquire registers a lease guarding the document at path, which must
// already exist.
func (m *Manager) Acquire(ctx context.Context, path string) (*Lease, error) {
	var snapshot json.RawMessage
	if err := m.store.Get(ctx, path, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to snapshot %s for lease: %w", path, err)
	}

	id := uuid.NewString()
	doc := LeaseDoc{Path: path, ExpiresAt: m.now().Add(m.ttl).UnixMilli(), Entry: snapshot}
	if err := m.store.Put(ctx, store.LeasePath(id), doc); err != nil {
		return nil, fmt.Errorf("failed to acquire lease for %s: %w", path, err)
	}
	return &Lease{ID: id, Path: path, entry: snapshot, mgr: m}, nil
}

// Keepalive extends the lease until ctx is done, then releases it. Run it in
// its own goroutine, bound to the owning connection's context.
func (l *Lease) Keepalive(ctx context.Context) {
	ticker := time.NewTicker(l.mgr.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// The connection is gone; drop the entry right away instead of
			// waiting for the sweeper.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.Release(releaseCtx); err != nil {
				l.mgr.logger.Warnf("failed to release lease %s: %v", l.ID, err)
			}
			return
		case <-ticker.C:
			doc := LeaseDoc{Path: l.Path, ExpiresAt: l.mgr.now().Add(l.mgr.ttl).UnixMilli(), Entry: l.entry}
			if err := l.mgr.store.Put(ctx, store.LeasePath(l.ID), doc); err != nil && ctx.Err() == nil {
				l.mgr.logger.Warnf("failed to heartbeat lease %s: %v", l.ID, err)
			}
		}
	}
}

// Release deletes the guarded entry, provided it is still the document the
// lease was acquired for, then the lease itself.
func (l *Lease) Release(ctx context.Context) error {
	if err := l.mgr.revokeEntry(ctx, l.Path, l.entry); err != nil {
		return err
	}
	return l.mgr.store.Delete(ctx, store.LeasePath(l.ID))
}

// Discard drops the lease without touching the guarded entry. Used once
// pairing succeeds and the entry has already been consumed.
func (l *Lease) Discard(ctx context.Context) error {
	return l.mgr.store.Delete(ctx, store.LeasePath(l.ID))
}

// revokeEntry deletes path only while it still holds snapshot. A successor
// document written at a reused path is left alone.
func (m *Manager) revokeEntry(ctx context.Context, path string, snapshot json.RawMessage) error {
	return m.store.Update(ctx, path, func(tx store.Txn) error {
		var cur json.RawMessage
		ok, err := tx.Get(path, &cur)
		if err != nil {
			return err
		}
		if !ok || !bytes.Equal(cur, snapshot) {
			return nil
		}
		tx.Delete(path)
		return nil
	})
}

// Sweep revokes every lease whose deadline passed, deleting the guarded
// entries so no later joiner can pair against a dead player.
func (m *Manager) Sweep(ctx context.Context) error {
	keys, err := m.store.List(ctx, store.LeasePrefix)
	if err != nil {
		return err
	}
	cutoff := m.now().UnixMilli()
	for _, key := range keys {
		var doc LeaseDoc
		if err := m.store.Get(ctx, key, &doc); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return err
		}
		if doc.ExpiresAt > cutoff {
			continue
		}
		if err := m.revokeEntry(ctx, doc.Path, doc.Entry); err != nil {
			return err
		}
		if err := m.store.Delete(ctx, key); err != nil {
			return err
		}
		m.logger.WithFields(logrus.Fields{
			"lease": key,
			"path":  doc.Path,
		}).Info("revoked expired lease")
	}
	return nil
}

// StartSweeper schedules Sweep at the manager's interval. The returned
// shutdown function stops the scheduler.
func (m *Manager) StartSweeper(ctx context.Context) (func() error, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create sweeper scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(m.interval),
		gocron.NewTask(func() {
			if err := m.Sweep(ctx); err != nil {
				m.logger.Warnf("presence sweep failed: %v", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule sweep job: %w", err)
	}
	sched.Start()
	return sched.Shutdown, nil
}
