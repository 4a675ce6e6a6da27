package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// OTPRepo keeps hashed one-time codes in redis, keyed by phone number.
type OTPRepo struct {
	rdb *redis.Client
}

func NewOTPRepo(rdb *redis.Client) *OTPRepo {
	return &OTPRepo{rdb: rdb}
}

func otpKey(phone string) string {
	return "otp:" + phone
}

func otpAttemptsKey(phone string) string {
	return "otp:attempts:" + phone
}

// Save stores a new code hash and resets the failed attempt counter.
func (r *OTPRepo) Save(ctx context.Context, phone string, codeHash []byte, ttl time.Duration) error {
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, otpKey(phone), codeHash, ttl)
	pipe.Del(ctx, otpAttemptsKey(phone))
	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr("save otp", err)
	}
	return nil
}

// RecordFailure counts a wrong guess for phone and returns the running total.
// The counter lives no longer than the code it guards.
func (r *OTPRepo) RecordFailure(ctx context.Context, phone string, ttl time.Duration) (int64, error) {
	key := otpAttemptsKey(phone)
	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, storeErr("record otp failure", err)
	}
	return incr.Val(), nil
}

// Get returns ErrNotFound when no live code exists for phone.
func (r *OTPRepo) Get(ctx context.Context, phone string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, otpKey(phone)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get otp", err)
	}
	return b, nil
}

// Delete removes the code and its attempt counter, and reports whether a
// live code was removed.
func (r *OTPRepo) Delete(ctx context.Context, phone string) (bool, error) {
	pipe := r.rdb.TxPipeline()
	del := pipe.Del(ctx, otpKey(phone))
	pipe.Del(ctx, otpAttemptsKey(phone))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, storeErr("delete otp", err)
	}
	return del.Val() > 0, nil
}
