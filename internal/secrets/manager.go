// Package secrets implements the secret lifecycle: create, info, retrieve
// exactly once, expire. All mutation of a secret funnels through the store's
// atomic primitives; this package holds no locks of its own.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nipun22325/secret-sharing/internal/crypto"
	"github.com/nipun22325/secret-sharing/internal/ids"
	"github.com/nipun22325/secret-sharing/internal/metrics"
	"github.com/nipun22325/secret-sharing/internal/models"
	"github.com/nipun22325/secret-sharing/internal/stats"
	"github.com/nipun22325/secret-sharing/internal/store"
)

const (
	MinTTLHours     = 1
	MaxTTLHours     = 168
	DefaultTTLHours = 24
)

var (
	ErrEmptyContent     = errors.New("content is required")
	ErrContentTooLarge  = errors.New("content exceeds maximum length")
	ErrInvalidTTL       = errors.New("ttl_hours must be between 1 and 168")
	ErrMissingPassword  = errors.New("access_password is required for a password protected secret")
	ErrPasswordRequired = errors.New("password required")
	ErrWrongPassword    = errors.New("invalid password")
	ErrExhausted        = errors.New("could not allocate a secret id")
	ErrIntegrity        = errors.New("stored secret failed integrity verification")
	ErrUnavailable      = errors.New("secret store unavailable")
)

// IsValidationError reports whether err was rejected before any work was
// done, i.e. the request itself was malformed.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrContentTooLarge) ||
		errors.Is(err, ErrInvalidTTL) ||
		errors.Is(err, ErrMissingPassword)
}

type Config struct {
	// MaxContentLength bounds the plaintext size in bytes.
	MaxContentLength int

	// StoreTimeout bounds every store call so a slow backend surfaces as a
	// transient failure instead of a hung request.
	StoreTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxContentLength: 10000,
		StoreTimeout:     5 * time.Second,
	}
}

type Manager struct {
	store   store.Store
	engine  *crypto.Engine
	ids     *ids.Generator
	tracker *stats.Tracker
	cfg     Config
	logger  zerolog.Logger
}

func NewManager(st store.Store, engine *crypto.Engine, tracker *stats.Tracker, cfg Config) *Manager {
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = DefaultConfig().MaxContentLength
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultConfig().StoreTimeout
	}
	return &Manager{
		store:   st,
		engine:  engine,
		ids:     ids.NewGenerator(st),
		tracker: tracker,
		cfg:     cfg,
		logger:  log.With().Str("component", "secrets").Logger(),
	}
}

type CreateParams struct {
	Content  string
	TTLHours int
	// Password is empty for an unprotected secret. The variant is resolved
	// here, once, at creation time.
	Password string
}

type CreateResult struct {
	ID        string
	ExpiresAt time.Time
}

// Create validates, encrypts and persists a new secret.
func (m *Manager) Create(ctx context.Context, params CreateParams) (*CreateResult, error) {
	switch {
	case params.Content == "":
		return nil, ErrEmptyContent
	case len(params.Content) > m.cfg.MaxContentLength:
		return nil, ErrContentTooLarge
	case params.TTLHours < MinTTLHours || params.TTLHours > MaxTTLHours:
		return nil, ErrInvalidTTL
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	defer cancel()

	id, err := m.ids.Generate(ctx)
	if err != nil {
		if errors.Is(err, ids.ErrExhausted) {
			return nil, ErrExhausted
		}
		return nil, m.storeFault("generating id", err)
	}

	ciphertext, nonce, err := m.engine.Encrypt([]byte(params.Content))
	if err != nil {
		return nil, fmt.Errorf("encrypting content: %w", err)
	}

	var password models.Password
	if params.Password != "" {
		verifier, err := crypto.HashPassword(params.Password)
		if err != nil {
			return nil, fmt.Errorf("hashing access password: %w", err)
		}
		password = models.Password{Verifier: verifier}
	}

	now := time.Now().UTC()
	secret := &models.Secret{
		ID:         id,
		Ciphertext: ciphertext,
		Nonce:      nonce,
		Password:   password,
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Duration(params.TTLHours) * time.Hour),
	}

	if err := m.store.Create(ctx, secret); err != nil {
		if errors.Is(err, store.ErrDuplicateID) {
			// The generator screened this id moments ago; treat the clash
			// as exhaustion rather than retrying indefinitely.
			return nil, ErrExhausted
		}
		return nil, m.storeFault("persisting secret", err)
	}

	m.tracker.RecordCreated()
	m.logger.Debug().Str("id", id).Time("expires_at", secret.ExpiresAt).Msg("secret created")

	return &CreateResult{ID: id, ExpiresAt: secret.ExpiresAt}, nil
}

// Info returns the metadata projection for a live secret. Consumed and
// expired secrets read as not found.
func (m *Manager) Info(ctx context.Context, id string) (*models.Info, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	defer cancel()

	info, err := m.store.Info(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, m.storeFault("reading secret info", err)
	}
	return info, nil
}

type Content struct {
	Content   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Retrieve redeems a secret exactly once. The password is verified before
// the consume so a wrong password never burns the single view; the consume
// itself is the store's atomic primitive, so of N concurrent callers exactly
// one gets the content.
func (m *Manager) Retrieve(ctx context.Context, id, password string) (*Content, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	defer cancel()

	verifier, err := m.store.Verifier(ctx, id)
	if err != nil {
		return nil, m.retrieveFailure(err)
	}

	if len(verifier) > 0 {
		if password == "" {
			metrics.RecordRetrieveFailure("password_required")
			return nil, ErrPasswordRequired
		}
		if !crypto.VerifyPassword(verifier, password) {
			metrics.RecordRetrieveFailure("wrong_password")
			return nil, ErrWrongPassword
		}
	}

	secret, err := m.store.Consume(ctx, id, time.Now())
	if err != nil {
		return nil, m.retrieveFailure(err)
	}

	plaintext, err := m.engine.Decrypt(secret.Ciphertext, secret.Nonce)
	if err != nil {
		// The record was intact enough to consume but its ciphertext no
		// longer authenticates: corruption or tampering in the store.
		metrics.IntegrityFailuresTotal.Inc()
		m.logger.Error().Str("id", id).Msg("stored ciphertext failed authentication")
		return nil, ErrIntegrity
	}

	m.tracker.RecordViewed()
	m.logger.Debug().Str("id", id).Msg("secret retrieved and destroyed")

	return &Content{
		Content:   string(plaintext),
		CreatedAt: secret.CreatedAt,
		ExpiresAt: secret.ExpiresAt,
	}, nil
}

type Stats struct {
	TotalCreated int64
	TotalViewed  int64
	Active       int64
}

func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	defer cancel()

	active, err := m.tracker.Active(ctx)
	if err != nil {
		return nil, m.storeFault("counting active secrets", err)
	}

	return &Stats{
		TotalCreated: m.tracker.TotalCreated(),
		TotalViewed:  m.tracker.TotalViewed(),
		Active:       active,
	}, nil
}

// Cleanup triggers an immediate expiry sweep, outside the reaper's schedule.
func (m *Manager) Cleanup(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	defer cancel()

	deleted, err := m.store.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, m.storeFault("deleting expired secrets", err)
	}
	if deleted > 0 {
		metrics.SecretsReapedTotal.Add(float64(deleted))
	}
	return deleted, nil
}

// retrieveFailure passes the store's lookup verdicts through unchanged and
// wraps everything else as a transient store fault.
func (m *Manager) retrieveFailure(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		metrics.RecordRetrieveFailure("not_found")
		return err
	case errors.Is(err, store.ErrExpired):
		metrics.RecordRetrieveFailure("expired")
		return err
	case errors.Is(err, store.ErrAlreadyViewed):
		metrics.RecordRetrieveFailure("already_viewed")
		return err
	default:
		metrics.RecordRetrieveFailure("store_unavailable")
		return m.storeFault("consuming secret", err)
	}
}

func (m *Manager) storeFault(op string, err error) error {
	m.logger.Error().Err(err).Str("op", op).Msg("store operation failed")
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
