package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yavishsahrawat40/My-Notes/internal/model"
)

// ErrRedisUnavailable wraps transport and script failures of the Redis store.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusRevoked  int64 = 2
	rotateStatusRotated  int64 = 3
)

// Record layout: a hash per refresh session keyed by token hash, plus a set of
// token hashes per user. Times are unix milliseconds; revoked_at is empty
// while the session is active.
const rotateSessionScript = `
local old_key = KEYS[1]
local next_key = KEYS[2]
local now_ms = tonumber(ARGV[1])
local next_id = ARGV[2]
local next_hash = ARGV[3]
local next_issued = ARGV[4]
local next_expires = ARGV[5]
local next_ttl = ARGV[6]
local user_prefix = ARGV[7]
local reason = ARGV[8]

if redis.call("EXISTS", old_key) == 0 then
  return {0}
end

local rec = redis.call("HMGET", old_key, "id", "user_id", "issued_at", "expires_at", "revoked_at", "revoked_reason", "replaced_by")
local out = {}
for i = 1, 7 do
  out[i] = rec[i] or ""
end

if out[5] ~= "" then
  return {2, out[1], out[2], out[3], out[4], out[5], out[6], out[7]}
end
if tonumber(out[4]) <= now_ms then
  return {1, out[1], out[2], out[3], out[4], out[5], out[6], out[7]}
end

redis.call("HSET", next_key, "id", next_id, "user_id", out[2], "issued_at", next_issued, "expires_at", next_expires, "revoked_at", "", "revoked_reason", "", "replaced_by", "")
redis.call("PEXPIRE", next_key, next_ttl)
redis.call("SADD", user_prefix .. out[2], next_hash)
redis.call("HSET", old_key, "revoked_at", ARGV[1], "revoked_reason", reason, "replaced_by", next_id)

return {3, out[1], out[2], out[3], out[4], ARGV[1], reason, next_id}
`

const revokeSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
local revoked = redis.call("HGET", KEYS[1], "revoked_at")
if revoked and revoked ~= "" then
  return 0
end
redis.call("HSET", KEYS[1], "revoked_at", ARGV[1], "revoked_reason", ARGV[2])
return 1
`

const revokeUserSessionsScript = `
local members = redis.call("SMEMBERS", KEYS[1])
local count = 0
for _, hash in ipairs(members) do
  local key = ARGV[1] .. hash
  if redis.call("EXISTS", key) == 0 then
    redis.call("SREM", KEYS[1], hash)
  else
    local revoked = redis.call("HGET", key, "revoked_at")
    if not revoked or revoked == "" then
      redis.call("HSET", key, "revoked_at", ARGV[2], "revoked_reason", ARGV[3])
      count = count + 1
    end
  end
end
return count
`

const pruneUserIndexScript = `
local members = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, hash in ipairs(members) do
  if redis.call("EXISTS", ARGV[1] .. hash) == 0 then
    redis.call("SREM", KEYS[1], hash)
    removed = removed + 1
  end
end
return removed
`

var (
	rotateSessionLua      = redis.NewScript(rotateSessionScript)
	revokeSessionLua      = redis.NewScript(revokeSessionScript)
	revokeUserSessionsLua = redis.NewScript(revokeUserSessionsScript)
	pruneUserIndexLua     = redis.NewScript(pruneUserIndexScript)
)

// RedisSessionStore keeps refresh sessions in Redis. Records expire through
// key TTLs; the Lua scripts make rotation and revocation atomic.
type RedisSessionStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisSessionStore(client redis.UniversalClient, prefix string) *RedisSessionStore {
	return &RedisSessionStore{redis: client, prefix: prefix}
}

// NewRedisClient connects to REDIS_URL and verifies the connection.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisSessionStore) sessionPrefix() string {
	return s.prefix + ":rs:"
}

func (s *RedisSessionStore) userPrefix() string {
	return s.prefix + ":ru:"
}

func (s *RedisSessionStore) key(tokenHash string) string {
	return s.sessionPrefix() + tokenHash
}

func (s *RedisSessionStore) userKey(userID string) string {
	return s.userPrefix() + userID
}

func (s *RedisSessionStore) InsertSession(ctx context.Context, session model.RefreshSession) error {
	key := s.key(session.TokenHash)
	ttl := sessionTTL(session)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"id", session.ID,
			"user_id", session.UserID,
			"issued_at", formatMillis(session.IssuedAt),
			"expires_at", formatMillis(session.ExpiresAt),
			"revoked_at", "",
			"revoked_reason", "",
			"replaced_by", "",
		)
		pipe.PExpire(ctx, key, ttl)
		pipe.SAdd(ctx, s.userKey(session.UserID), session.TokenHash)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisSessionStore) getSessionByHash(ctx context.Context, tokenHash string) (*model.RefreshSession, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(tokenHash)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}
	return decodeSession(tokenHash, []string{
		fields["id"],
		fields["user_id"],
		fields["issued_at"],
		fields["expires_at"],
		fields["revoked_at"],
		fields["revoked_reason"],
		fields["replaced_by"],
	})
}

func (s *RedisSessionStore) RotateSession(ctx context.Context, tokenHash string, next model.RefreshSession, now time.Time) (*model.RefreshSession, error) {
	res, err := rotateSessionLua.Run(ctx, s.redis,
		[]string{s.key(tokenHash), s.key(next.TokenHash)},
		formatMillis(now),
		next.ID,
		next.TokenHash,
		formatMillis(next.IssuedAt),
		formatMillis(next.ExpiresAt),
		sessionTTL(next).Milliseconds(),
		s.userPrefix(),
		model.RevokeReasonRotated,
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: empty rotate reply", ErrRedisUnavailable)
	}

	status, ok := res[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected rotate status %T", ErrRedisUnavailable, res[0])
	}
	if status == rotateStatusNotFound {
		return nil, ErrSessionNotFound
	}

	values := make([]string, 0, len(res)-1)
	for _, v := range res[1:] {
		str, _ := v.(string)
		values = append(values, str)
	}
	old, err := decodeSession(tokenHash, values)
	if err != nil {
		return nil, err
	}

	switch status {
	case rotateStatusRotated:
		return old, nil
	case rotateStatusRevoked:
		return old, ErrSessionRevoked
	case rotateStatusExpired:
		return old, ErrSessionExpired
	default:
		return nil, fmt.Errorf("%w: unexpected rotate status %d", ErrRedisUnavailable, status)
	}
}

func (s *RedisSessionStore) RevokeSessionByHash(ctx context.Context, tokenHash, reason string, now time.Time) (int64, error) {
	count, err := revokeSessionLua.Run(ctx, s.redis, []string{s.key(tokenHash)}, formatMillis(now), reason).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

func (s *RedisSessionStore) RevokeUserSessions(ctx context.Context, userID, reason string, now time.Time) (int64, error) {
	count, err := revokeUserSessionsLua.Run(ctx, s.redis,
		[]string{s.userKey(userID)},
		s.sessionPrefix(),
		formatMillis(now),
		reason,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

// DeleteExpiredSessions drops user index entries whose session keys have
// already expired. Redis removes the records themselves.
func (s *RedisSessionStore) DeleteExpiredSessions(ctx context.Context, _ time.Time) (int64, error) {
	var (
		cursor  uint64
		removed int64
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.userPrefix()+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		for _, key := range keys {
			n, err := pruneUserIndexLua.Run(ctx, s.redis, []string{key}, s.sessionPrefix()).Int64()
			if err != nil {
				return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			removed += n
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

// decodeSession builds a record from the ordered field values
// id, user_id, issued_at, expires_at, revoked_at, revoked_reason, replaced_by.
func decodeSession(tokenHash string, values []string) (*model.RefreshSession, error) {
	if len(values) != 7 {
		return nil, fmt.Errorf("%w: corrupt session record", ErrRedisUnavailable)
	}

	issuedAt, err := parseMillis(values[2])
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt issued_at: %v", ErrRedisUnavailable, err)
	}
	expiresAt, err := parseMillis(values[3])
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt expires_at: %v", ErrRedisUnavailable, err)
	}

	session := &model.RefreshSession{
		ID:        values[0],
		UserID:    values[1],
		TokenHash: tokenHash,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}
	if values[4] != "" {
		revokedAt, err := parseMillis(values[4])
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt revoked_at: %v", ErrRedisUnavailable, err)
		}
		session.RevokedAt = &revokedAt
	}
	if values[5] != "" {
		reason := values[5]
		session.RevokedReason = &reason
	}
	if values[6] != "" {
		replacedBy := values[6]
		session.ReplacedBy = &replacedBy
	}
	return session, nil
}

// sessionTTL keeps at least a millisecond so PEXPIRE never deletes on write.
func sessionTTL(session model.RefreshSession) time.Duration {
	ttl := session.ExpiresAt.Sub(session.IssuedAt)
	if ttl < time.Millisecond {
		return time.Millisecond
	}
	return ttl
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
