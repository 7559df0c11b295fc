package secrets

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nipun22325/secret-sharing/internal/crypto"
	"github.com/nipun22325/secret-sharing/internal/models"
	"github.com/nipun22325/secret-sharing/internal/stats"
	"github.com/nipun22325/secret-sharing/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.MemoryStore) {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	engine, err := crypto.NewEngine(key)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	st := newMemoryStore(t)
	return NewManager(st, engine, stats.NewTracker(st), DefaultConfig()), st
}

func newMemoryStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })
	return st
}

func TestCreateValidation(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		params  CreateParams
		wantErr error
	}{
		{"empty content", CreateParams{Content: "", TTLHours: 24}, ErrEmptyContent},
		{"ttl zero", CreateParams{Content: "x", TTLHours: 0}, ErrInvalidTTL},
		{"ttl too large", CreateParams{Content: "x", TTLHours: 169}, ErrInvalidTTL},
		{"ttl negative", CreateParams{Content: "x", TTLHours: -1}, ErrInvalidTTL},
		{"ttl lower bound", CreateParams{Content: "x", TTLHours: 1}, nil},
		{"ttl upper bound", CreateParams{Content: "x", TTLHours: 168}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Create(ctx, tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create(%+v) = %v, want %v", tt.params, err, tt.wantErr)
			}
		})
	}
}

func TestCreateRejectsOversizedContent(t *testing.T) {
	m, _ := newTestManager(t)

	big := make([]byte, DefaultConfig().MaxContentLength+1)
	for i := range big {
		big[i] = 'a'
	}

	_, err := m.Create(context.Background(), CreateParams{Content: string(big), TTLHours: 24})
	if !errors.Is(err, ErrContentTooLarge) {
		t.Fatalf("expected ErrContentTooLarge, got %v", err)
	}
}

func TestCreateExpiryWindow(t *testing.T) {
	m, _ := newTestManager(t)

	before := time.Now()
	result, err := m.Create(context.Background(), CreateParams{Content: "x", TTLHours: 24})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	want := before.Add(24 * time.Hour)
	if result.ExpiresAt.Before(want) || result.ExpiresAt.After(want.Add(time.Minute)) {
		t.Errorf("ExpiresAt = %v, want ~%v", result.ExpiresAt, want)
	}
}

func TestRetrieveOnce(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx, CreateParams{Content: "the secret", TTLHours: 24})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Info first: the secret exists and is unviewed.
	info, err := m.Info(ctx, created.ID)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Viewed {
		t.Error("fresh secret reads as viewed")
	}

	content, err := m.Retrieve(ctx, created.ID, "")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if content.Content != "the secret" {
		t.Errorf("content = %q, want %q", content.Content, "the secret")
	}

	// A second retrieval must not yield content.
	if _, err := m.Retrieve(ctx, created.ID, ""); !errors.Is(err, store.ErrAlreadyViewed) {
		t.Fatalf("second Retrieve = %v, want ErrAlreadyViewed", err)
	}

	// And the secret no longer exists as far as Info is concerned.
	if _, err := m.Info(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Info after retrieve = %v, want ErrNotFound", err)
	}
}

func TestRetrieveUnknownID(t *testing.T) {
	m, _ := newTestManager(t)

	if _, err := m.Retrieve(context.Background(), "nosuchid", ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRetrieveExactlyOnceConcurrent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx, CreateParams{Content: "contested", TTLHours: 24})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	const callers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		losers    int
	)
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := m.Retrieve(ctx, created.ID, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, store.ErrAlreadyViewed):
				losers++
			default:
				t.Errorf("unexpected retrieve error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}
	if losers != callers-1 {
		t.Errorf("losers = %d, want %d", losers, callers-1)
	}
}

func TestPasswordGating(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx, CreateParams{Content: "locked", TTLHours: 24, Password: "pass"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	info, err := m.Info(ctx, created.ID)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if !info.PasswordProtected {
		t.Error("info does not report password protection")
	}

	// Missing and wrong passwords fail without consuming the view.
	if _, err := m.Retrieve(ctx, created.ID, ""); !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("Retrieve without password = %v, want ErrPasswordRequired", err)
	}
	if _, err := m.Retrieve(ctx, created.ID, "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("Retrieve with wrong password = %v, want ErrWrongPassword", err)
	}

	content, err := m.Retrieve(ctx, created.ID, "pass")
	if err != nil {
		t.Fatalf("Retrieve with correct password failed: %v", err)
	}
	if content.Content != "locked" {
		t.Errorf("content = %q, want %q", content.Content, "locked")
	}
}

func TestRetrieveExpired(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	// Plant an already-expired record directly; Create refuses to make one.
	now := time.Now().UTC()
	err := st.Create(ctx, &models.Secret{
		ID:         "expired1",
		Ciphertext: []byte("x"),
		Nonce:      []byte("y"),
		CreatedAt:  now.Add(-2 * time.Hour),
		ExpiresAt:  now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := m.Retrieve(ctx, "expired1", ""); !errors.Is(err, store.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestRetrieveCorruptedCiphertext(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	now := time.Now().UTC()
	err := st.Create(ctx, &models.Secret{
		ID:         "corrupt1",
		Ciphertext: []byte("not a real ciphertext"),
		Nonce:      []byte("bad nonce"),
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := m.Retrieve(ctx, "corrupt1", ""); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
}

func TestStatsConsistency(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	const created = 5
	const viewed = 3

	var ids []string
	for i := 0; i < created; i++ {
		result, err := m.Create(ctx, CreateParams{Content: "payload", TTLHours: 24})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		ids = append(ids, result.ID)
	}
	for i := 0; i < viewed; i++ {
		if _, err := m.Retrieve(ctx, ids[i], ""); err != nil {
			t.Fatalf("Retrieve failed: %v", err)
		}
	}

	st, err := m.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.TotalCreated != created {
		t.Errorf("TotalCreated = %d, want %d", st.TotalCreated, created)
	}
	if st.TotalViewed != viewed {
		t.Errorf("TotalViewed = %d, want %d", st.TotalViewed, viewed)
	}
	if st.Active != created-viewed {
		t.Errorf("Active = %d, want %d", st.Active, created-viewed)
	}
}

func TestCleanup(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	now := time.Now().UTC()
	err := st.Create(ctx, &models.Secret{
		ID:         "sweepme1",
		Ciphertext: []byte("x"),
		Nonce:      []byte("y"),
		CreatedAt:  now.Add(-2 * time.Hour),
		ExpiresAt:  now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	deleted, err := m.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Cleanup = %d, want 1", deleted)
	}
}
