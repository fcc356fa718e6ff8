package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"collab-realtime/internal/domain"
	"collab-realtime/internal/repository"
)

// deleteIfEmptyScript removes a room only if its participant map is empty,
// atomically on the Redis side. Returns 1 when the room was deleted.
var deleteIfEmptyScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then return 0 end
local room = cjson.decode(raw)
local count = 0
if type(room['participants']) == 'table' then
  for _ in pairs(room['participants']) do count = count + 1 end
end
if count > 0 then return 0 end
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
return 1
`)

// RedisRoomRepository is the Redis-backed RoomRepository.
type RedisRoomRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRoomRepository creates a RedisRoomRepository.
func NewRedisRoomRepository(client *redis.Client, keyPrefix string) *RedisRoomRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisRoomRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "rt:"
	}
	return &RedisRoomRepository{client: client, keyPrefix: keyPrefix}
}

func (r *RedisRoomRepository) roomKey(roomID domain.RoomID) string {
	return fmt.Sprintf("%sroom:%s", r.keyPrefix, roomID)
}

func (r *RedisRoomRepository) roomSetKey() string {
	return r.keyPrefix + "rooms"
}

func (r *RedisRoomRepository) Save(ctx context.Context, room *domain.CollaborationRoom) error {
	payload, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("redis: marshal room %s: %w", room.ID, err)
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.roomKey(room.ID), payload, 0)
	pipe.SAdd(ctx, r.roomSetKey(), string(room.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: save room %s: %w", room.ID, err)
	}
	return nil
}

func (r *RedisRoomRepository) FindByID(ctx context.Context, roomID domain.RoomID) (*domain.CollaborationRoom, error) {
	raw, err := r.client.Get(ctx, r.roomKey(roomID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("redis: get room %s: %w", roomID, err)
	}
	var room domain.CollaborationRoom
	if err := json.Unmarshal([]byte(raw), &room); err != nil {
		return nil, fmt.Errorf("redis: unmarshal room %s: %w", roomID, err)
	}
	if room.Participants == nil {
		room.Participants = make(map[domain.SocketID]domain.RoomParticipant)
	}
	return &room, nil
}

func (r *RedisRoomRepository) FindAll(ctx context.Context) ([]*domain.CollaborationRoom, error) {
	ids, err := r.client.SMembers(ctx, r.roomSetKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list room ids: %w", err)
	}
	result := make([]*domain.CollaborationRoom, 0, len(ids))
	for _, id := range ids {
		room, err := r.FindByID(ctx, domain.RoomID(id))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				r.client.SRem(ctx, r.roomSetKey(), id)
				continue
			}
			return nil, err
		}
		result = append(result, room)
	}
	return result, nil
}

func (r *RedisRoomRepository) CountActive(ctx context.Context) (int, error) {
	rooms, err := r.FindAll(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, room := range rooms {
		if !room.IsEmpty() {
			count++
		}
	}
	return count, nil
}

func (r *RedisRoomRepository) DeleteIfEmpty(ctx context.Context, roomID domain.RoomID) (bool, error) {
	res, err := deleteIfEmptyScript.Run(ctx, r.client,
		[]string{r.roomKey(roomID), r.roomSetKey()}, string(roomID)).Int()
	if err != nil {
		return false, fmt.Errorf("redis: conditional delete of room %s: %w", roomID, err)
	}
	return res == 1, nil
}

func (r *RedisRoomRepository) UpdateMetadata(ctx context.Context, roomID domain.RoomID, metadata map[string]string) error {
	room, err := r.FindByID(ctx, roomID)
	if err != nil {
		return err
	}
	room.UpdateMetadata(metadata, time.Now())
	room.PullEvents()
	return r.Save(ctx, room)
}

func (r *RedisRoomRepository) TouchActivity(ctx context.Context, roomID domain.RoomID, at time.Time) error {
	room, err := r.FindByID(ctx, roomID)
	if err != nil {
		return err
	}
	// Monotonic: a stale timestamp must not move the sweep clock backwards.
	if !at.After(room.LastActivityAt) {
		return nil
	}
	room.LastActivityAt = at
	return r.Save(ctx, room)
}

func (r *RedisRoomRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	rooms, err := r.FindAll(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, room := range rooms {
		if !room.LastActivityAt.Before(cutoff) {
			continue
		}
		pipe := r.client.Pipeline()
		pipe.Del(ctx, r.roomKey(room.ID))
		pipe.SRem(ctx, r.roomSetKey(), string(room.ID))
		if _, err := pipe.Exec(ctx); err != nil {
			return deleted, fmt.Errorf("redis: delete stale room %s: %w", room.ID, err)
		}
		deleted++
	}
	return deleted, nil
}
