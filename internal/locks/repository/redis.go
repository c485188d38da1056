package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lockserrors "agendly/internal/locks/errors"
	"agendly/pkg/model"

	"github.com/redis/go-redis/v9"
)

const (
	redisSlotPrefix = "slotlock:"
	redisIDPrefix   = "slotlock:id:"
)

// Two keys per lock: the slot key holds the lock document and enforces
// uniqueness, the id key points back at it so release works by id.
var createLockScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SET", KEYS[2], KEYS[1], "PX", ARGV[2])
return 1
`)

var extendLockScript = redis.NewScript(`
local slotKey = redis.call("GET", KEYS[1])
if not slotKey then
  return false
end
local raw = redis.call("GET", slotKey)
if not raw then
  return false
end
local lock = cjson.decode(raw)
if lock["id"] ~= ARGV[1] or lock["session_id"] ~= ARGV[2] then
  return false
end
lock["expires_at"] = ARGV[3]
local encoded = cjson.encode(lock)
redis.call("SET", slotKey, encoded, "PX", ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return encoded
`)

// The slot key embeds the tenant, so a pointer outside ARGV[2]'s prefix
// belongs to another tenant and is left alone.
var releaseLockScript = redis.NewScript(`
local slotKey = redis.call("GET", KEYS[1])
if not slotKey then
  return 1
end
if string.sub(slotKey, 1, string.len(ARGV[2])) ~= ARGV[2] then
  return 0
end
local raw = redis.call("GET", slotKey)
if raw then
  local lock = cjson.decode(raw)
  if lock["id"] == ARGV[1] then
    redis.call("DEL", slotKey)
  end
end
redis.call("DEL", KEYS[1])
return 1
`)

type redisSlotLockRepository struct {
	client *redis.Client
}

// NewRedisSlotLockRepository keeps locks as expiring keys, so Redis itself
// performs the TTL sweep.
func NewRedisSlotLockRepository(client *redis.Client) SlotLockRepository {
	return &redisSlotLockRepository{client: client}
}

func slotRedisKey(tenantID, slotKey string) string {
	return tenantRedisPrefix(tenantID) + slotKey
}

func tenantRedisPrefix(tenantID string) string {
	return redisSlotPrefix + tenantID + ":"
}

func idRedisKey(lockID string) string {
	return redisIDPrefix + lockID
}

func ttlMillis(d time.Duration) int64 {
	return max(d.Milliseconds(), 1)
}

func (r *redisSlotLockRepository) FindLive(ctx context.Context, tenantID, slotKey string, now time.Time) (*model.SlotLock, error) {
	raw, err := r.client.Get(ctx, slotRedisKey(tenantID, slotKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, lockserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find slot lock: %w", err)
	}

	var lock model.SlotLock
	if err := json.Unmarshal(raw, &lock); err != nil {
		return nil, fmt.Errorf("failed to decode slot lock: %w", err)
	}
	if !lock.IsLive(now) {
		return nil, lockserrors.ErrNotFound
	}
	return &lock, nil
}

func (r *redisSlotLockRepository) Create(ctx context.Context, lock *model.SlotLock) error {
	payload, err := json.Marshal(lock)
	if err != nil {
		return fmt.Errorf("failed to encode slot lock: %w", err)
	}

	keys := []string{slotRedisKey(lock.TenantID, lock.SlotKey), idRedisKey(lock.ID)}
	created, err := createLockScript.Run(ctx, r.client, keys, payload, ttlMillis(lock.ExpiresAt.Sub(lock.CreatedAt))).Int()
	if err != nil {
		return fmt.Errorf("failed to create slot lock: %w", err)
	}
	if created == 0 {
		return lockserrors.ErrLockHeld
	}
	return nil
}

func (r *redisSlotLockRepository) Extend(ctx context.Context, lockID, sessionID string, now, expiresAt time.Time) (*model.SlotLock, error) {
	raw, err := extendLockScript.Run(ctx, r.client, []string{idRedisKey(lockID)},
		lockID, sessionID, expiresAt.UTC().Format(time.RFC3339Nano), ttlMillis(expiresAt.Sub(now)),
	).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, lockserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to extend slot lock: %w", err)
	}

	var lock model.SlotLock
	if err := json.Unmarshal([]byte(raw), &lock); err != nil {
		return nil, fmt.Errorf("failed to decode slot lock: %w", err)
	}
	return &lock, nil
}

func (r *redisSlotLockRepository) Delete(ctx context.Context, tenantID, lockID string) error {
	if err := releaseLockScript.Run(ctx, r.client, []string{idRedisKey(lockID)}, lockID, tenantRedisPrefix(tenantID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete slot lock: %w", err)
	}
	return nil
}

// DeleteExpiredForKey is a no-op: an expired key no longer exists.
func (r *redisSlotLockRepository) DeleteExpiredForKey(context.Context, string, string, time.Time) error {
	return nil
}

func (r *redisSlotLockRepository) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
