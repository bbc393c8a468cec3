// Package lease provides Redis-backed execution ownership. At most one worker
// holds the lease for an execution at a time; the TTL acts as a visibility
// timeout so a crashed worker's execution becomes claimable again.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL bounds how long a crashed worker keeps an execution invisible.
	DefaultTTL = 2 * time.Minute

	connectTimeout = 2 * time.Second
)

// ErrNotHeld is returned when releasing or renewing a lease the worker does
// not own.
var ErrNotHeld = errors.New("lease not held by this worker")

// Manager acquires and releases execution leases in Redis.
type Manager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewManager connects to Redis and returns a lease manager.
func NewManager(redisURL string, ttl time.Duration) (*Manager, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Manager{client: client, ttl: ttl}, nil
}

// Close shuts down the Redis client.
func (m *Manager) Close() error {
	if m == nil || m.client == nil {
		return nil
	}

	return m.client.Close()
}

// Acquire attempts to claim the lease for an execution on behalf of a worker.
// It returns false when another worker already holds it.
func (m *Manager) Acquire(ctx context.Context, executionID, workerID string) (bool, error) {
	if executionID == "" || workerID == "" {
		return false, errors.New("execution ID and worker ID required")
	}

	acquired, err := m.client.SetNX(ctx, leaseKey(executionID), workerID, m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease for execution %s: %w", executionID, err)
	}

	return acquired, nil
}

// Renew extends the lease TTL while a long healing run is still in progress.
// Only the holding worker may renew.
func (m *Manager) Renew(ctx context.Context, executionID, workerID string) error {
	res, err := m.client.Eval(ctx, renewScript, []string{leaseKey(executionID)},
		workerID,
		m.ttl.Milliseconds(),
	).Result()
	if err != nil {
		return fmt.Errorf("failed to renew lease for execution %s: %w", executionID, err)
	}

	if ok, _ := res.(int64); ok != 1 {
		return ErrNotHeld
	}

	return nil
}

// Release gives up the lease. Only the holding worker may release; a stale
// worker coming back after its TTL expired cannot drop another worker's lease.
func (m *Manager) Release(ctx context.Context, executionID, workerID string) error {
	res, err := m.client.Eval(ctx, releaseScript, []string{leaseKey(executionID)},
		workerID,
	).Result()
	if err != nil {
		return fmt.Errorf("failed to release lease for execution %s: %w", executionID, err)
	}

	if ok, _ := res.(int64); ok != 1 {
		return ErrNotHeld
	}

	return nil
}

// Holder returns the worker currently holding the lease, or empty when the
// lease is free.
func (m *Manager) Holder(ctx context.Context, executionID string) (string, error) {
	holder, err := m.client.Get(ctx, leaseKey(executionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}

		return "", fmt.Errorf("failed to look up lease for execution %s: %w", executionID, err)
	}

	return holder, nil
}

func leaseKey(executionID string) string {
	return "lease:execution:" + executionID
}

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const renewScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`
