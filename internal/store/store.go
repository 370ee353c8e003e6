// Package store is the shared state layer both participants of a match
// observe and mutate. Documents are JSON values addressed by slash-separated
// paths; every read-decide-mutate sequence goes through Update, an optimistic
// transaction that re-runs on conflicting concurrent writes.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by Get when no document exists at the path.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict signals a lost optimistic transaction. Update retries these
	// internally; callers only see it wrapped in ErrUnavailable once retries
	// are exhausted.
	ErrConflict = errors.New("store: transaction conflict")

	// ErrUnavailable is a retryable transport or exhaustion failure. It is
	// never swallowed: callers decide whether to retry or surface it.
	ErrUnavailable = errors.New("store: unavailable")
)

// Txn is the view handed to an Update closure. Reads see committed state plus
// the transaction's own staged writes; staged writes are committed atomically
// only if the transaction's primary path was not modified concurrently.
type Txn interface {
	// Get unmarshals the document at path into dest. The second return is
	// false when the document does not exist.
	Get(path string, dest any) (bool, error)
	Put(path string, val any)
	Delete(path string)
}

// Store is the shared state store contract. Redis backs it in production;
// the in-memory implementation serves tests and single-node runs.
type Store interface {
	Get(ctx context.Context, path string, dest any) error
	Put(ctx context.Context, path string, val any) error
	Delete(ctx context.Context, path string) error

	// Update runs fn as an optimistic transaction keyed on path. If fn
	// returns an error the transaction is abandoned with nothing written and
	// the error is returned as-is. Conflicts are retried with backoff until
	// the retry budget is spent, after which ErrUnavailable is returned.
	Update(ctx context.Context, path string, fn func(tx Txn) error) error

	// List returns the paths of all documents under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Subscribe streams the raw document at path after every committed write
	// (nil payload for a delete) until ctx is done.
	Subscribe(ctx context.Context, path string) (<-chan []byte, error)

	Close() error
}

// Path layout, shared by every component addressing the store.
func QueuePath(subject string) string { return "queue/" + subject }
func QueuePrefix(subject string) string { return "queue/" + subject + "/" }
func QueueEntryPath(subject, entryID string) string {
	return QueuePrefix(subject) + entryID
}
func RoomPath(code string) string     { return "rooms/" + code }
func MatchPath(id uuid.UUID) string   { return "matches/" + id.String() }
func UserPath(id uuid.UUID) string    { return "users/" + id.String() }
func LeasePath(leaseID string) string { return "leases/" + leaseID }

// LeasePrefix is the subtree scanned by the presence sweeper.
const LeasePrefix = "leases/"
