package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nipun22325/secret-sharing/internal/models"
)

// newSecret builds a live test record expiring in ttl.
func newSecret(id string, ttl time.Duration) *models.Secret {
	now := time.Now().UTC()
	return &models.Secret{
		ID:         id,
		Ciphertext: []byte("ciphertext-" + id),
		Nonce:      []byte("nonce-" + id),
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

// runStoreSuite exercises the Store contract against a backend. Every
// backend must pass the same suite, in particular the exactly-once consume
// under concurrency.
func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("CreateAndConsume", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		secret := newSecret("abc12345", time.Hour)
		if err := s.Create(ctx, secret); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		got, err := s.Consume(ctx, secret.ID, time.Now())
		if err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
		if string(got.Ciphertext) != string(secret.Ciphertext) {
			t.Errorf("ciphertext mismatch: got %q", got.Ciphertext)
		}
		if string(got.Nonce) != string(secret.Nonce) {
			t.Errorf("nonce mismatch: got %q", got.Nonce)
		}
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		secret := newSecret("dup00001", time.Hour)
		if err := s.Create(ctx, secret); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if err := s.Create(ctx, newSecret("dup00001", time.Hour)); !errors.Is(err, ErrDuplicateID) {
			t.Fatalf("expected ErrDuplicateID, got %v", err)
		}
	})

	t.Run("Exists", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		if err := s.Create(ctx, newSecret("exist001", time.Hour)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		ok, err := s.Exists(ctx, "exist001")
		if err != nil || !ok {
			t.Errorf("Exists(existing) = %v, %v; want true, nil", ok, err)
		}
		ok, err = s.Exists(ctx, "missing0")
		if err != nil || ok {
			t.Errorf("Exists(missing) = %v, %v; want false, nil", ok, err)
		}

		// Consumed ids stay reserved until expiry.
		if _, err := s.Consume(ctx, "exist001", time.Now()); err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
		ok, err = s.Exists(ctx, "exist001")
		if err != nil || !ok {
			t.Errorf("Exists(consumed) = %v, %v; want true, nil", ok, err)
		}
	})

	t.Run("ConsumeNotFound", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		if _, err := s.Consume(ctx, "missing0", time.Now()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ConsumeTwice", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		if err := s.Create(ctx, newSecret("once0001", time.Hour)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if _, err := s.Consume(ctx, "once0001", time.Now()); err != nil {
			t.Fatalf("first Consume failed: %v", err)
		}
		if _, err := s.Consume(ctx, "once0001", time.Now()); !errors.Is(err, ErrAlreadyViewed) {
			t.Fatalf("expected ErrAlreadyViewed, got %v", err)
		}
	})

	t.Run("ConsumeExpired", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		secret := newSecret("late0001", time.Hour)
		if err := s.Create(ctx, secret); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		_, err := s.Consume(ctx, secret.ID, secret.ExpiresAt.Add(time.Minute))
		if !errors.Is(err, ErrExpired) && !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrExpired or ErrNotFound for elapsed window, got %v", err)
		}
	})

	t.Run("ConsumeExactlyOnce", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		if err := s.Create(ctx, newSecret("race0001", time.Hour)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		const callers = 50
		var (
			wg        sync.WaitGroup
			successes sync.Map
			wins      int
		)
		start := make(chan struct{})

		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				<-start
				if _, err := s.Consume(ctx, "race0001", time.Now()); err == nil {
					successes.Store(n, true)
				}
			}(i)
		}
		close(start)
		wg.Wait()

		successes.Range(func(_, _ any) bool {
			wins++
			return true
		})
		if wins != 1 {
			t.Fatalf("expected exactly 1 successful consume, got %d", wins)
		}
	})

	t.Run("InfoProjection", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		secret := newSecret("info0001", time.Hour)
		secret.Password = models.Password{Verifier: []byte("verifier")}
		if err := s.Create(ctx, secret); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		info, err := s.Info(ctx, secret.ID)
		if err != nil {
			t.Fatalf("Info failed: %v", err)
		}
		if !info.PasswordProtected {
			t.Error("expected password_protected true")
		}
		if info.Viewed {
			t.Error("expected viewed false")
		}
		if !info.ExpiresAt.After(info.CreatedAt) {
			t.Error("expires_at must be after created_at")
		}

		if _, err := s.Info(ctx, "missing0"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Info(missing) = %v, want ErrNotFound", err)
		}
	})

	t.Run("InfoAfterConsume", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		if err := s.Create(ctx, newSecret("gone0001", time.Hour)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if _, err := s.Consume(ctx, "gone0001", time.Now()); err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
		if _, err := s.Info(ctx, "gone0001"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Info(consumed) = %v, want ErrNotFound", err)
		}
	})

	t.Run("Verifier", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		locked := newSecret("lock0001", time.Hour)
		locked.Password = models.Password{Verifier: []byte("verifier")}
		if err := s.Create(ctx, locked); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		plain := newSecret("open0001", time.Hour)
		if err := s.Create(ctx, plain); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		v, err := s.Verifier(ctx, "lock0001")
		if err != nil || string(v) != "verifier" {
			t.Errorf("Verifier(protected) = %q, %v", v, err)
		}
		v, err = s.Verifier(ctx, "open0001")
		if err != nil || len(v) != 0 {
			t.Errorf("Verifier(unprotected) = %q, %v; want empty, nil", v, err)
		}
		if _, err := s.Verifier(ctx, "missing0"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Verifier(missing) = %v, want ErrNotFound", err)
		}

		if _, err := s.Consume(ctx, "lock0001", time.Now()); err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
		if _, err := s.Verifier(ctx, "lock0001"); !errors.Is(err, ErrAlreadyViewed) {
			t.Errorf("Verifier(consumed) = %v, want ErrAlreadyViewed", err)
		}
	})

	t.Run("ConsumedContentIsGone", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		if err := s.Create(ctx, newSecret("burn0001", time.Hour)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if _, err := s.Consume(ctx, "burn0001", time.Now()); err != nil {
			t.Fatalf("Consume failed: %v", err)
		}

		// No operation may yield the ciphertext again.
		if _, err := s.Consume(ctx, "burn0001", time.Now()); err == nil {
			t.Fatal("second Consume returned content")
		}
		if _, err := s.Info(ctx, "burn0001"); err == nil {
			t.Fatal("Info returned a consumed secret")
		}
	})

	t.Run("ActiveCount", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		now := time.Now()
		if err := s.Create(ctx, newSecret("live0001", time.Hour)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if err := s.Create(ctx, newSecret("live0002", time.Hour)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		count, err := s.ActiveCount(ctx, now)
		if err != nil {
			t.Fatalf("ActiveCount failed: %v", err)
		}
		if count != 2 {
			t.Errorf("ActiveCount = %d, want 2", count)
		}

		if _, err := s.Consume(ctx, "live0001", time.Now()); err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
		count, err = s.ActiveCount(ctx, now)
		if err != nil {
			t.Fatalf("ActiveCount failed: %v", err)
		}
		if count != 1 {
			t.Errorf("ActiveCount after consume = %d, want 1", count)
		}
	})
}
