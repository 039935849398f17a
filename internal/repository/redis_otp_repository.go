package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Brownie44l1/extension-admin/internal/models"
	"github.com/redis/go-redis/v9"
)

// markUsedLua flips the used flag only if it is still unset.
// KEYS[1] = record key
// ARGV[1] = used_at (unix micro)
//
// Returns 1 when this call flipped the flag, 0 otherwise.
var markUsedLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
if redis.call('HGET', KEYS[1], 'used') == '1' then
  return 0
end
redis.call('HSET', KEYS[1], 'used', '1', 'used_at', ARGV[1])
return 1
`)

// ==============================================
// REDIS OTP REPOSITORY
// ==============================================

// RedisOTPRepository keeps each record in a hash and indexes records per
// (address, purpose) in a sorted set scored by generation time.
type RedisOTPRepository struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisOTPRepository builds a store whose keys expire after retention.
// Retention must cover the daily throttle window.
func NewRedisOTPRepository(redisClient redis.UniversalClient, prefix string, retention time.Duration) *RedisOTPRepository {
	if prefix == "" {
		prefix = "otp"
	}
	if retention < models.DailyWindow {
		retention = models.DefaultOTPRetention
	}
	return &RedisOTPRepository{
		redis:     redisClient,
		prefix:    prefix,
		retention: retention,
	}
}

func (r *RedisOTPRepository) seqKey() string {
	return r.prefix + ":seq"
}

func (r *RedisOTPRepository) recordKey(id int64) string {
	return r.prefix + ":rec:" + strconv.FormatInt(id, 10)
}

func (r *RedisOTPRepository) indexKey(address string, purpose models.Purpose) string {
	return r.prefix + ":idx:" + string(purpose) + ":" + address
}

// members are zero-padded so equal scores still order by id
func member(id int64) string {
	return fmt.Sprintf("%019d", id)
}

// ==============================================
// INSERT
// ==============================================

func (r *RedisOTPRepository) Insert(ctx context.Context, rec *models.OTPRecord) error {
	id, err := r.redis.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate OTP id: %w", err)
	}

	recKey := r.recordKey(id)
	idxKey := r.indexKey(rec.Address, rec.Purpose)
	cutoff := rec.GeneratedAt.Add(-r.retention).UnixMicro()

	pipe := r.redis.TxPipeline()
	pipe.HSet(ctx, recKey,
		"address", rec.Address,
		"purpose", string(rec.Purpose),
		"code", rec.Code,
		"generated_at", rec.GeneratedAt.UnixMicro(),
		"expires_at", rec.ExpiresAt.UnixMicro(),
		"used", "0",
	)
	pipe.Expire(ctx, recKey, r.retention)
	pipe.ZAdd(ctx, idxKey, redis.Z{Score: float64(rec.GeneratedAt.UnixMicro()), Member: member(id)})
	pipe.ZRemRangeByScore(ctx, idxKey, "-inf", "("+strconv.FormatInt(cutoff, 10))
	pipe.Expire(ctx, idxKey, r.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert OTP: %w", err)
	}

	rec.ID = id
	return nil
}

// ==============================================
// READ
// ==============================================

func (r *RedisOTPRepository) FindMostRecent(ctx context.Context, address string, purpose models.Purpose) (*models.OTPRecord, error) {
	members, err := r.redis.ZRevRange(ctx, r.indexKey(address, purpose), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get OTP: %w", err)
	}
	if len(members) == 0 {
		return nil, models.ErrOTPNotFound
	}

	id, err := strconv.ParseInt(members[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt OTP index member %q: %w", members[0], err)
	}

	fields, err := r.redis.HGetAll(ctx, r.recordKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get OTP: %w", err)
	}
	if len(fields) == 0 {
		// index outlived the record
		return nil, models.ErrOTPNotFound
	}

	return decodeRecord(id, fields)
}

func (r *RedisOTPRepository) CountSince(ctx context.Context, address string, purpose models.Purpose, since time.Time) (int, error) {
	min := "(" + strconv.FormatInt(since.UnixMicro(), 10)
	n, err := r.redis.ZCount(ctx, r.indexKey(address, purpose), min, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count recent OTPs: %w", err)
	}
	return int(n), nil
}

// GeneratedAtSince reads the index scores after since, oldest first.
func (r *RedisOTPRepository) GeneratedAtSince(ctx context.Context, address string, purpose models.Purpose, since time.Time) ([]time.Time, error) {
	entries, err := r.redis.ZRangeByScoreWithScores(ctx, r.indexKey(address, purpose), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(since.UnixMicro(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list recent OTPs: %w", err)
	}

	generated := make([]time.Time, 0, len(entries))
	for _, z := range entries {
		generated = append(generated, time.UnixMicro(int64(z.Score)).UTC())
	}
	return generated, nil
}

// ==============================================
// REDEEM
// ==============================================

func (r *RedisOTPRepository) MarkUsed(ctx context.Context, id int64, at time.Time) (bool, error) {
	n, err := markUsedLua.Run(ctx, r.redis, []string{r.recordKey(id)}, at.UnixMicro()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to mark OTP as used: %w", err)
	}
	return n == 1, nil
}

// ==============================================
// DECODING
// ==============================================

func decodeRecord(id int64, f map[string]string) (*models.OTPRecord, error) {
	generated, err1 := strconv.ParseInt(f["generated_at"], 10, 64)
	expires, err2 := strconv.ParseInt(f["expires_at"], 10, 64)
	if err := errors.Join(err1, err2); err != nil {
		return nil, fmt.Errorf("corrupt OTP record %d: %w", id, err)
	}

	rec := &models.OTPRecord{
		ID:          id,
		Address:     f["address"],
		Purpose:     models.Purpose(f["purpose"]),
		Code:        f["code"],
		GeneratedAt: time.UnixMicro(generated).UTC(),
		ExpiresAt:   time.UnixMicro(expires).UTC(),
		Used:        f["used"] == "1",
	}

	if raw, ok := f["used_at"]; ok && raw != "" {
		usedAt, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt OTP record %d: %w", id, err)
		}
		t := time.UnixMicro(usedAt).UTC()
		rec.UsedAt = &t
	}

	return rec, nil
}
