package redis

// Package redis provides Redis-based adapters shared by all gateway replicas.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/caregrid/caregrid/internal/ports"
)

// AdmissionStore is a Redis-backed token bucket. The refill computation and
// the check-and-decrement run as a single Lua script, so two replicas can
// never both consume the last token. A naive read-then-write from two hosts
// is a race this design excludes.
type AdmissionStore struct {
	client redis.UniversalClient
	prefix string
	script *redis.Script
	now    func() time.Time
}

// consumeScript refills the bucket from elapsed time, then atomically checks
// and decrements. ARGV: capacity, refill tokens/sec, now (unix millis), cost,
// key TTL millis. Returns {allowed, waitSeconds}.
const consumeScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
end

local elapsed = now - ts
if elapsed < 0 then
  elapsed = 0
end
tokens = tokens + (elapsed / 1000.0) * refill
if tokens > capacity then
  tokens = capacity
end

local allowed = 0
local wait = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
else
  wait = math.ceil((cost - tokens) / refill)
end

redis.call("HSET", key, "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", key, ttl)
return {allowed, wait}
`

// NewAdmissionStore creates a Redis-backed admission store.
func NewAdmissionStore(client redis.UniversalClient) *AdmissionStore {
	return &AdmissionStore{
		client: client,
		prefix: "admission:",
		script: redis.NewScript(consumeScript),
		now:    time.Now,
	}
}

var _ ports.AdmissionStore = (*AdmissionStore)(nil)

// TryConsume attempts to take one unit of capacity from the bucket for key.
// Store errors propagate to the caller; fail-open is a configuration decision
// made above this layer, never a fallback for store failure.
func (s *AdmissionStore) TryConsume(
	ctx context.Context,
	key string,
	policy ports.AdmissionPolicy,
) (ports.AdmissionDecision, error) {
	if key == "" {
		return ports.AdmissionDecision{}, errors.New("admission key cannot be empty")
	}
	if policy.Capacity <= 0 || policy.RefillTokens <= 0 || policy.RefillPeriod <= 0 {
		return ports.AdmissionDecision{}, fmt.Errorf("invalid admission policy %+v", policy)
	}

	refillPerSec := float64(policy.RefillTokens) / policy.RefillPeriod.Seconds()

	// Keep idle buckets around long enough to fully refill, then let them expire.
	ttl := 2 * policy.RefillPeriod
	if ttl < time.Minute {
		ttl = time.Minute
	}

	res, err := s.script.Run(ctx, s.client, []string{s.prefix + key},
		policy.Capacity,
		refillPerSec,
		s.now().UnixMilli(),
		1,
		ttl.Milliseconds(),
	).Slice()
	if err != nil {
		return ports.AdmissionDecision{}, fmt.Errorf("admission script: %w", err)
	}
	if len(res) != 2 {
		return ports.AdmissionDecision{}, fmt.Errorf("admission script: unexpected reply %v", res)
	}

	allowed, ok := res[0].(int64)
	if !ok {
		return ports.AdmissionDecision{}, fmt.Errorf("admission script: unexpected allowed type %T", res[0])
	}
	wait, ok := res[1].(int64)
	if !ok {
		return ports.AdmissionDecision{}, fmt.Errorf("admission script: unexpected wait type %T", res[1])
	}

	return ports.AdmissionDecision{
		Allowed:     allowed == 1,
		WaitSeconds: int(wait),
	}, nil
}
