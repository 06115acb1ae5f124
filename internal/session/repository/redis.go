package repository

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"data-portal/backend/internal/session/domain"
)

const redisKeyPrefix = "portal:session:"

// Hash fields of a session key.
const (
	fieldTokenHash    = "token_hash"
	fieldRole         = "role"
	fieldExpiresAt    = "expires_at"
	fieldLastActivity = "last_activity"
	fieldIP           = "ip"
	fieldUserAgent    = "user_agent"
	fieldCreatedAt    = "created_at"
)

// touchScript updates expiry (and activity) only when the stored token matches.
var touchScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "token_hash") ~= ARGV[1] then
  return 0
end
redis.call("HSET", KEYS[1], "expires_at", ARGV[2])
if ARGV[3] ~= "" then
  redis.call("HSET", KEYS[1], "last_activity", ARGV[3])
end
redis.call("PEXPIREAT", KEYS[1], ARGV[4])
return 1
`)

// deleteScript deletes the key only when the stored token matches.
var deleteScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "token_hash") == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRepository stores one hash per user under portal:session:<user_id>.
// Keys outlive expires_at by retention so that an expired session can still be
// reported as expired rather than missing.
type RedisRepository struct {
	client    redis.UniversalClient
	retention time.Duration
}

// NewRedisRepository returns a session repository backed by client. retention
// is how long a key is kept past its expires_at; non-positive means one hour.
func NewRedisRepository(client redis.UniversalClient, retention time.Duration) *RedisRepository {
	if retention <= 0 {
		retention = time.Hour
	}
	return &RedisRepository{client: client, retention: retention}
}

func redisKey(userID string) string {
	return redisKeyPrefix + userID
}

// GetByUser returns the session for userID, or nil if none.
func (r *RedisRepository) GetByUser(ctx context.Context, userID string) (*domain.Session, error) {
	vals, err := r.client.HGetAll(ctx, redisKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decodeRedisSession(userID, vals)
}

// GetByUserAndToken returns the session for userID when its token hash matches.
func (r *RedisRepository) GetByUserAndToken(ctx context.Context, userID, tokenHash string) (*domain.Session, error) {
	s, err := r.GetByUser(ctx, userID)
	if err != nil || s == nil {
		return nil, err
	}
	if s.TokenHash != tokenHash {
		return nil, nil
	}
	return s, nil
}

// Create replaces any stored session for the user with s.
func (r *RedisRepository) Create(ctx context.Context, s *domain.Session) error {
	key := redisKey(s.UserID)
	fields := map[string]any{
		fieldTokenHash: s.TokenHash,
		fieldRole:      string(s.Role),
		fieldExpiresAt: formatNanos(s.ExpiresAt),
		fieldIP:        s.IPAddress,
		fieldUserAgent: s.UserAgent,
		fieldCreatedAt: formatNanos(s.CreatedAt),
	}
	if s.LastActivity != nil {
		fields[fieldLastActivity] = formatNanos(*s.LastActivity)
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.PExpireAt(ctx, key, s.ExpiresAt.Add(r.retention))
		return nil
	})
	return err
}

// Touch updates expires_at and, when activity is set, last_activity.
func (r *RedisRepository) Touch(ctx context.Context, userID, tokenHash string, expiresAt time.Time, activity *time.Time) error {
	act := ""
	if activity != nil {
		act = formatNanos(*activity)
	}
	keepUntil := expiresAt.Add(r.retention).UnixMilli()
	return touchScript.Run(ctx, r.client, []string{redisKey(userID)},
		tokenHash, formatNanos(expiresAt), act, keepUntil).Err()
}

// DeleteByUser removes the user's session key.
func (r *RedisRepository) DeleteByUser(ctx context.Context, userID string) error {
	return r.client.Del(ctx, redisKey(userID)).Err()
}

// DeleteByUserAndToken removes the user's session key when the token matches.
func (r *RedisRepository) DeleteByUserAndToken(ctx context.Context, userID, tokenHash string) error {
	return deleteScript.Run(ctx, r.client, []string{redisKey(userID)}, tokenHash).Err()
}

// ListActive scans all session keys and returns those not yet expired.
func (r *RedisRepository) ListActive(ctx context.Context, now time.Time) ([]*domain.Session, error) {
	all, err := r.scanAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Session, 0, len(all))
	for _, s := range all {
		if s.ExpiresAt.After(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteStale removes expired or idle session keys.
func (r *RedisRepository) DeleteStale(ctx context.Context, expiredBy, idleBefore time.Time) (int64, error) {
	all, err := r.scanAll(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, s := range all {
		if !s.ExpiresAt.After(expiredBy) || s.EffectiveLastActivity().Before(idleBefore) {
			if err := r.DeleteByUserAndToken(ctx, s.UserID, s.TokenHash); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func (r *RedisRepository) scanAll(ctx context.Context) ([]*domain.Session, error) {
	var out []*domain.Session
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		s, err := r.GetByUser(ctx, strings.TrimPrefix(key, redisKeyPrefix))
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, s)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeRedisSession(userID string, vals map[string]string) (*domain.Session, error) {
	if len(vals) == 0 || vals[fieldTokenHash] == "" {
		return nil, nil
	}
	expiresAt, err := parseNanos(vals[fieldExpiresAt])
	if err != nil {
		return nil, err
	}
	createdAt, err := parseNanos(vals[fieldCreatedAt])
	if err != nil {
		return nil, err
	}
	s := &domain.Session{
		UserID:    userID,
		TokenHash: vals[fieldTokenHash],
		Role:      domain.ParseRole(vals[fieldRole]),
		ExpiresAt: expiresAt,
		IPAddress: vals[fieldIP],
		UserAgent: vals[fieldUserAgent],
		CreatedAt: createdAt,
	}
	if raw := vals[fieldLastActivity]; raw != "" {
		t, err := parseNanos(raw)
		if err != nil {
			return nil, err
		}
		s.LastActivity = &t
	}
	return s, nil
}

func formatNanos(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseNanos(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}
