package signing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConsentStore implements ConsentStore using Redis as the backing
// store. Records are stored as JSON under "consent:<token>" with
// TTL = expiresAt - now, so expired references vanish on their own.
type RedisConsentStore struct {
	client *redis.Client
	prefix string
}

// NewRedisConsentStore creates a Redis-based consent store. Prefix may be empty.
func NewRedisConsentStore(client *redis.Client, prefix string) *RedisConsentStore {
	if prefix == "" {
		prefix = "consent:"
	}
	return &RedisConsentStore{client: client, prefix: prefix}
}

func (r *RedisConsentStore) key(token string) string {
	return r.prefix + token
}

func (r *RedisConsentStore) Put(ctx context.Context, rec *ConsentRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	exp := time.Until(rec.ExpiresAt)
	if exp <= 0 {
		// minimal TTL so Redis never stores an already-expired record
		exp = time.Second
	}
	return r.client.Set(ctx, r.key(rec.Token), b, exp).Err()
}

func (r *RedisConsentStore) Get(ctx context.Context, token string) (*ConsentRecord, error) {
	b, err := r.client.Get(ctx, r.key(token)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var rec ConsentRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	if time.Now().UTC().After(rec.ExpiresAt) {
		_ = r.client.Del(ctx, r.key(token)).Err()
		return nil, nil
	}
	return &rec, nil
}

func (r *RedisConsentStore) Delete(ctx context.Context, token string) error {
	return r.client.Del(ctx, r.key(token)).Err()
}
