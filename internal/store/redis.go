// redis.go
package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nipun22325/secret-sharing/internal/models"
)

var _ Store = (*RedisStore)(nil)

// tombstone replaces a consumed record's value. The expiry TTL of the key is
// preserved so the "already viewed" answer survives exactly as long as the
// secret would have.
var tombstone = []byte("__viewed__")

// consumeScript atomically swaps a live record for a tombstone and returns
// the original payload. Exactly one concurrent caller can observe the live
// value; everyone after sees the tombstone.
var consumeScript = redis.NewScript(`
	local data = redis.call('GET', KEYS[1])
	if not data then
		return false
	end
	if data == ARGV[1] then
		return 1
	end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl > 0 then
		redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
	else
		redis.call('SET', KEYS[1], ARGV[1])
	end
	return data
`)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(options *redis.Options) (*RedisStore, error) {
	client := redis.NewClient(options)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Create(ctx context.Context, secret *models.Secret) error {
	data, err := encode(secret)
	if err != nil {
		return err
	}

	ttl := time.Until(secret.ExpiresAt)
	if ttl <= 0 {
		return ErrExpired
	}

	ok, err := r.client.SetNX(ctx, secretKey(secret.ID), data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicateID
	}
	return nil
}

func (r *RedisStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, secretKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisStore) Info(ctx context.Context, id string) (*models.Info, error) {
	secret, err := r.get(ctx, id)
	if err != nil {
		// Consumed and expired records read as nonexistent.
		if errors.Is(err, ErrAlreadyViewed) || errors.Is(err, ErrExpired) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &models.Info{
		CreatedAt:         secret.CreatedAt,
		ExpiresAt:         secret.ExpiresAt,
		PasswordProtected: secret.Password.Protected(),
		Viewed:            secret.Viewed,
	}, nil
}

func (r *RedisStore) Verifier(ctx context.Context, id string) ([]byte, error) {
	secret, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return secret.Password.Verifier, nil
}

func (r *RedisStore) Consume(ctx context.Context, id string, now time.Time) (*models.Secret, error) {
	result, err := consumeScript.Run(ctx, r.client, []string{secretKey(id)}, tombstone).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// The key either never existed or was evicted by its TTL;
			// redis cannot tell the two apart.
			return nil, ErrNotFound
		}
		return nil, err
	}

	switch v := result.(type) {
	case int64:
		return nil, ErrAlreadyViewed
	case string:
		secret, err := decode([]byte(v))
		if err != nil {
			return nil, err
		}
		if !now.Before(secret.ExpiresAt) {
			// The TTL had not fired yet but the window is over. The script
			// already tombstoned the record; the outcome is the same.
			return nil, ErrExpired
		}
		return secret, nil
	default:
		return nil, fmt.Errorf("unexpected consume script reply type %T", result)
	}
}

// DeleteExpired is a no-op for redis: every key carries a TTL equal to its
// secret's expiry, so eviction happens server-side.
func (r *RedisStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (r *RedisStore) ActiveCount(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	iter := r.client.Scan(ctx, 0, secretKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return 0, err
		}
		if bytes.Equal(data, tombstone) {
			continue
		}
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// get fetches and classifies a record without mutating it.
func (r *RedisStore) get(ctx context.Context, id string) (*models.Secret, error) {
	data, err := r.client.Get(ctx, secretKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if bytes.Equal(data, tombstone) {
		return nil, ErrAlreadyViewed
	}

	secret, err := decode(data)
	if err != nil {
		return nil, err
	}

	if !time.Now().Before(secret.ExpiresAt) {
		return nil, ErrExpired
	}

	return secret, nil
}

// Helpers

func secretKey(id string) string {
	return "secret:" + id
}

func encode(secret *models.Secret) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(secret); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (*models.Secret, error) {
	var secret models.Secret
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&secret); err != nil {
		return nil, err
	}
	return &secret, nil
}
