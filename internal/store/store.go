package store

import (
	"context"
	"errors"
	"time"

	"github.com/nipun22325/secret-sharing/internal/models"
)

var (
	ErrNotFound      = errors.New("secret not found")
	ErrExpired       = errors.New("secret has expired")
	ErrAlreadyViewed = errors.New("secret has already been viewed")
	ErrDuplicateID   = errors.New("secret id already exists")
)

// Store is the persistence contract. Every operation must be safe under
// concurrent invocation from request handlers and the reaper.
//
// Consume is the load-bearing primitive: of any number of concurrent callers
// for one id, exactly one receives the secret, and the record is gone
// afterwards. Implementations must perform the eligibility check and the
// delete as one indivisible operation against the backend, never as a
// read-then-write sequence in application code.
type Store interface {
	// Create inserts a new secret. The id uniqueness check happens at the
	// storage layer even though the generator already screened for
	// collisions; a clash surfaces as ErrDuplicateID.
	Create(ctx context.Context, secret *models.Secret) error

	// Exists reports whether an id is present, regardless of eligibility.
	Exists(ctx context.Context, id string) (bool, error)

	// Info returns the metadata projection without ciphertext. Expired
	// records report ErrNotFound so that a secret past its window is
	// indistinguishable from one that never existed.
	Info(ctx context.Context, id string) (*models.Info, error)

	// Verifier returns the password verifier for a live record, or nil when
	// the secret is not password protected. It never touches the viewed
	// state: callers use it to check a password before attempting Consume.
	Verifier(ctx context.Context, id string) ([]byte, error)

	// Consume atomically checks that the secret is unviewed and unexpired,
	// deletes the record, and returns it. Losers of a concurrent race get
	// ErrAlreadyViewed, or ErrExpired when the window elapsed in between.
	Consume(ctx context.Context, id string, now time.Time) (*models.Secret, error)

	// DeleteExpired removes every unviewed record with expires_at <= now
	// and returns how many were removed. Reaper use only.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// ActiveCount counts live, unviewed, unexpired secrets.
	ActiveCount(ctx context.Context, now time.Time) (int64, error)

	Close() error
}
