package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevocationList stores revoked tokens in Redis so every server
// instance sees the same logouts. Keys are the SHA-256 of the token and
// expire together with it.
type RedisRevocationList struct {
	client *redis.Client
	prefix string
}

// NewRedisRevocationList connects to redisURL (redis://host:port/db) and
// checks the connection.
func NewRedisRevocationList(redisURL string) (*RedisRevocationList, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("auth: parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("auth: connect to redis: %w", err)
	}

	return NewRedisRevocationListWithClient(client), nil
}

// NewRedisRevocationListWithClient wraps an existing client.
func NewRedisRevocationListWithClient(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client, prefix: "revoked:"}
}

func (l *RedisRevocationList) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return l.prefix + hex.EncodeToString(sum[:])
}

// Revoke stores the token until the given time. Already expired tokens are
// not stored; they fail validation on their own.
func (l *RedisRevocationList) Revoke(ctx context.Context, token string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := l.client.Set(ctx, l.key(token), 1, ttl).Err(); err != nil {
		return fmt.Errorf("auth: revoke token: %w", err)
	}
	return nil
}

func (l *RedisRevocationList) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("auth: lookup revoked token: %w", err)
	}
	return n > 0, nil
}

// Ping checks if Redis is reachable.
func (l *RedisRevocationList) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (l *RedisRevocationList) Close() error {
	return l.client.Close()
}
