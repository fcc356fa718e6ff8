// Package redisstate implements the connection and room repositories on
// Redis, so room and connection state survives a server restart. Room
// mutations are read-modify-write guarded by the server's per-room locks, so
// the backend assumes a single writing server instance; only DeleteIfEmpty
// re-checks its condition in the store itself.
package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"collab-realtime/internal/domain"
	"collab-realtime/internal/repository"
)

// RedisConnectionRepository is the Redis-backed ConnectionRepository.
type RedisConnectionRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisConnectionRepository creates a RedisConnectionRepository.
func NewRedisConnectionRepository(client *redis.Client, keyPrefix string) *RedisConnectionRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisConnectionRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "rt:"
	}
	return &RedisConnectionRepository{client: client, keyPrefix: keyPrefix}
}

func (r *RedisConnectionRepository) connKey(socketID domain.SocketID) string {
	return fmt.Sprintf("%sconn:%s", r.keyPrefix, socketID)
}

func (r *RedisConnectionRepository) connSetKey() string {
	return r.keyPrefix + "conns"
}

func (r *RedisConnectionRepository) Save(ctx context.Context, conn *domain.SocketConnection) error {
	payload, err := json.Marshal(conn)
	if err != nil {
		return fmt.Errorf("redis: marshal connection %s: %w", conn.SocketID, err)
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.connKey(conn.SocketID), payload, 0)
	pipe.SAdd(ctx, r.connSetKey(), string(conn.SocketID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: save connection %s: %w", conn.SocketID, err)
	}
	return nil
}

func (r *RedisConnectionRepository) FindBySocketID(ctx context.Context, socketID domain.SocketID) (*domain.SocketConnection, error) {
	raw, err := r.client.Get(ctx, r.connKey(socketID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrConnectionNotFound
		}
		return nil, fmt.Errorf("redis: get connection %s: %w", socketID, err)
	}
	var conn domain.SocketConnection
	if err := json.Unmarshal([]byte(raw), &conn); err != nil {
		return nil, fmt.Errorf("redis: unmarshal connection %s: %w", socketID, err)
	}
	return &conn, nil
}

func (r *RedisConnectionRepository) FindByUserID(ctx context.Context, userID string) ([]*domain.SocketConnection, error) {
	ids, err := r.client.SMembers(ctx, r.connSetKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list connection ids: %w", err)
	}
	var result []*domain.SocketConnection
	for _, id := range ids {
		conn, err := r.FindBySocketID(ctx, domain.SocketID(id))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// index entry outlived the record; drop it
				r.client.SRem(ctx, r.connSetKey(), id)
				continue
			}
			return nil, err
		}
		if conn.UserID == userID {
			result = append(result, conn)
		}
	}
	return result, nil
}

func (r *RedisConnectionRepository) Delete(ctx context.Context, socketID domain.SocketID) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.connKey(socketID))
	pipe.SRem(ctx, r.connSetKey(), string(socketID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: delete connection %s: %w", socketID, err)
	}
	return nil
}

func (r *RedisConnectionRepository) CountActive(ctx context.Context) (int, error) {
	count, err := r.client.SCard(ctx, r.connSetKey()).Result()
	if err != nil {
		logrus.WithError(err).Error("redis: count connections failed")
		return 0, fmt.Errorf("redis: count connections: %w", err)
	}
	return int(count), nil
}
