package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/config"
)

const (
	statePending = "pending"
	stateDone    = "done"

	DefaultTTL = 24 * time.Hour
	// ClaimTTL bounds a pending claim to the longest lambda run.
	ClaimTTL = 15 * time.Minute
)

// ErrInFlight is returned by Acquire while another run holds a pending claim.
var ErrInFlight = errors.New("event is being processed")

// Guard makes sure an event id is processed at most once while its key lives.
type Guard struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewClient(cfg config.Redis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewGuard(client redis.Cmdable, prefix string, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{client: client, prefix: prefix, ttl: ttl}
}

func (g *Guard) key(id string) string {
	return g.prefix + ":" + id
}

// Acquire claims id. It returns false once id is done. A pending claim held
// elsewhere yields ErrInFlight so the caller retries after the claim expires.
func (g *Guard) Acquire(ctx context.Context, id string) (bool, error) {
	key := g.key(id)
	ok, err := g.client.SetNX(ctx, key, statePending, ClaimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("error acquiring %s:\n>>> %w", id, err)
	}
	if ok {
		return true, nil
	}
	state, err := g.client.Get(ctx, key).Result()
	switch {
	case err == nil && state == stateDone:
		return false, nil
	case err == nil || errors.Is(err, redis.Nil):
		return false, fmt.Errorf("%s: %w", id, ErrInFlight)
	default:
		return false, fmt.Errorf("error reading state of %s:\n>>> %w", id, err)
	}
}

// Complete marks id as processed for the rest of the TTL.
func (g *Guard) Complete(ctx context.Context, id string) error {
	if err := g.client.Set(ctx, g.key(id), stateDone, g.ttl).Err(); err != nil {
		return fmt.Errorf("error completing %s:\n>>> %w", id, err)
	}
	return nil
}

// Release drops the claim so a retry can pick id up again.
func (g *Guard) Release(ctx context.Context, id string) error {
	if err := g.client.Del(ctx, g.key(id)).Err(); err != nil {
		return fmt.Errorf("error releasing %s:\n>>> %w", id, err)
	}
	return nil
}
