package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/nipun22325/secret-sharing/internal/models"
)

var _ Store = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS secrets (
	id                TEXT PRIMARY KEY,
	ciphertext        BLOB NOT NULL,
	nonce             BLOB NOT NULL,
	password_verifier BLOB,
	created_at        INTEGER NOT NULL,
	expires_at        INTEGER NOT NULL,
	viewed            INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_secrets_expires_at ON secrets (expires_at);
`

// SQLiteConfig contains configuration for the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long a statement waits when the database is locked.
	BusyTimeout time.Duration
}

func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/secrets.db",
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStore persists secrets in a single SQLite database. Timestamps are
// stored as Unix nanoseconds. Like the other backends, a consumed secret
// leaves a wiped tombstone row until its expiry passes.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	// _txlock=immediate makes consume transactions take the write lock up
	// front instead of failing on upgrade.
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=%d&_journal_mode=WAL",
		config.Path, config.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	log.Info().Str("component", "store.sqlite").Str("path", config.Path).Msg("sqlite store initialized")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, secret *models.Secret) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO secrets (id, ciphertext, nonce, password_verifier, created_at, expires_at, viewed)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		secret.ID,
		secret.Ciphertext,
		secret.Nonce,
		nullableBlob(secret.Password.Verifier),
		secret.CreatedAt.UnixNano(),
		secret.ExpiresAt.UnixNano(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrDuplicateID
		}
		return fmt.Errorf("inserting secret: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM secrets WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) Info(ctx context.Context, id string) (*models.Info, error) {
	var (
		createdNano, expiresNano int64
		verifier                 []byte
		viewed                   bool
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, expires_at, password_verifier, viewed FROM secrets WHERE id = ?`,
		id,
	).Scan(&createdNano, &expiresNano, &verifier, &viewed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	expiresAt := time.Unix(0, expiresNano)
	if viewed || !time.Now().Before(expiresAt) {
		return nil, ErrNotFound
	}

	return &models.Info{
		CreatedAt:         time.Unix(0, createdNano),
		ExpiresAt:         expiresAt,
		PasswordProtected: len(verifier) > 0,
		Viewed:            viewed,
	}, nil
}

func (s *SQLiteStore) Verifier(ctx context.Context, id string) ([]byte, error) {
	var (
		expiresNano int64
		verifier    []byte
		viewed      bool
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT expires_at, password_verifier, viewed FROM secrets WHERE id = ?`,
		id,
	).Scan(&expiresNano, &verifier, &viewed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	switch {
	case viewed:
		return nil, ErrAlreadyViewed
	case !time.Now().Before(time.Unix(0, expiresNano)):
		return nil, ErrExpired
	}
	return verifier, nil
}

func (s *SQLiteStore) Consume(ctx context.Context, id string, now time.Time) (*models.Secret, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning consume transaction: %w", err)
	}
	defer tx.Rollback()

	// The conditional update is the gate: exactly one transaction can flip
	// viewed from 0 to 1 while the window is still open.
	res, err := tx.ExecContext(ctx,
		`UPDATE secrets SET viewed = 1 WHERE id = ? AND viewed = 0 AND expires_at > ?`,
		id, now.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("claiming secret: %w", err)
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	if claimed == 0 {
		// Lost the race or the record is gone; classify for the caller.
		var (
			expiresNano int64
			viewed      bool
		)
		err := tx.QueryRowContext(ctx,
			`SELECT expires_at, viewed FROM secrets WHERE id = ?`, id,
		).Scan(&expiresNano, &viewed)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		if viewed {
			return nil, ErrAlreadyViewed
		}
		return nil, ErrExpired
	}

	var (
		secret                   models.Secret
		createdNano, expiresNano int64
		verifier                 []byte
	)
	err = tx.QueryRowContext(ctx,
		`SELECT ciphertext, nonce, password_verifier, created_at, expires_at FROM secrets WHERE id = ?`,
		id,
	).Scan(&secret.Ciphertext, &secret.Nonce, &verifier, &createdNano, &expiresNano)
	if err != nil {
		return nil, fmt.Errorf("reading claimed secret: %w", err)
	}

	// Wipe the content; only the tombstone row outlives the consume.
	_, err = tx.ExecContext(ctx,
		`UPDATE secrets SET ciphertext = x'', nonce = x'', password_verifier = NULL WHERE id = ?`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("wiping consumed secret: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing consume: %w", err)
	}

	secret.ID = id
	secret.CreatedAt = time.Unix(0, createdNano)
	secret.ExpiresAt = time.Unix(0, expiresNano)
	secret.Password = models.Password{Verifier: verifier}
	return &secret, nil
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM secrets WHERE expires_at <= ?`, now.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting expired secrets: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) ActiveCount(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM secrets WHERE viewed = 0 AND expires_at > ?`, now.UnixNano(),
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullableBlob(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
