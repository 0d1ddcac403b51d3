// Package queue is a small Redis-backed task queue. Ready tasks live in a
// sorted set scored by the time they become due; claimed tasks move to a
// lease set so a crashed worker's tasks get redelivered after the lease
// expires. Failed tasks retry with exponential backoff until their attempt
// budget runs out, then land in a dead letter list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultMaxAttempts = 10
	defaultLease       = 30 * time.Second
	defaultRetryBase   = 200 * time.Millisecond
	pollInterval       = 100 * time.Millisecond
	reapInterval       = time.Second
)

// Task is a unit of asynchronous work.
type Task struct {
	Kind        string
	Payload     []byte
	Key         string
	MaxAttempts int
	Delay       time.Duration
}

type envelope struct {
	Kind        string          `json:"kind"`
	Key         string          `json:"key,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	NotBefore   int64           `json:"not_before"`
}

type keys struct {
	prefix string
}

func (k keys) ready(kind string) string   { return k.prefix + ":q:" + kind }
func (k keys) claimed(kind string) string { return k.prefix + ":q:" + kind + ":claimed" }
func (k keys) dlq(kind string) string     { return k.prefix + ":q:" + kind + ":dead" }
func (k keys) seen(kind, key string) string {
	return k.prefix + ":q:" + kind + ":seen:" + key
}

func validKind(kind string) bool {
	if kind == "" {
		return false
	}
	for i := 0; i < len(kind); i++ {
		c := kind[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '.', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// Enqueuer publishes tasks.
type Enqueuer struct {
	R        *redis.Client
	Prefix   string
	DedupTTL time.Duration
}

// Enqueue inserts the task. When a key is supplied the task is enqueued at
// most once within the dedup window; a duplicate enqueue is a silent no-op.
func (e Enqueuer) Enqueue(ctx context.Context, t Task) error {
	if e.R == nil {
		return errors.New("queue: redis client not configured")
	}
	if !validKind(t.Kind) {
		return fmt.Errorf("queue: invalid task kind %q", t.Kind)
	}
	k := keys{prefix: e.Prefix}

	if t.Key != "" {
		ttl := e.DedupTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		fresh, err := e.R.SetNX(ctx, k.seen(t.Kind, t.Key), "1", ttl).Result()
		if err != nil {
			return fmt.Errorf("queue: dedup check: %w", err)
		}
		if !fresh {
			return nil
		}
	}

	env := envelope{
		Kind:        t.Kind,
		Key:         t.Key,
		Payload:     t.Payload,
		MaxAttempts: t.MaxAttempts,
		NotBefore:   time.Now().Add(t.Delay).UnixMilli(),
	}
	if env.MaxAttempts <= 0 {
		env.MaxAttempts = defaultMaxAttempts
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("queue: encoding task: %w", err)
	}
	if err := e.R.ZAdd(ctx, k.ready(t.Kind), redis.Z{Score: float64(env.NotBefore), Member: raw}).Err(); err != nil {
		return fmt.Errorf("queue: enqueueing %s task: %w", t.Kind, err)
	}
	return nil
}

// Depth reports the number of tasks waiting for the kind, due or not.
func (e Enqueuer) Depth(ctx context.Context, kind string) (int64, error) {
	k := keys{prefix: e.Prefix}
	return e.R.ZCard(ctx, k.ready(kind)).Result()
}

// Worker consumes tasks of one kind.
type Worker struct {
	R           *redis.Client
	Prefix      string
	Kind        string
	Concurrency int
	Lease       time.Duration
	RetryBase   time.Duration
	RetryJitter float64
	Handler     func(context.Context, Task) error
	Log         zerolog.Logger
}

// Run processes tasks until the context is cancelled. It spawns Concurrency
// polling goroutines plus one reaper that redelivers tasks whose lease
// expired without an ack.
func (w Worker) Run(ctx context.Context) error {
	if w.R == nil {
		return errors.New("queue: worker redis client not configured")
	}
	if w.Handler == nil {
		return errors.New("queue: worker handler not configured")
	}
	if !validKind(w.Kind) {
		return fmt.Errorf("queue: invalid worker kind %q", w.Kind)
	}
	concurrency := w.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.poll(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reap(ctx)
	}()
	wg.Wait()
	return nil
}

func (w Worker) poll(ctx context.Context) {
	k := keys{prefix: w.Prefix}
	for {
		if ctx.Err() != nil {
			return
		}
		raw, ok := w.claim(ctx, k)
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			continue
		}
		w.process(ctx, k, raw)
	}
}

// claim atomically takes one due task from the ready set and parks it in the
// claimed set under a lease. ZRem arbitrates between competing pollers: only
// the one that removes the member owns it.
func (w Worker) claim(ctx context.Context, k keys) (string, bool) {
	now := time.Now().UnixMilli()
	due, err := w.R.ZRangeByScore(ctx, k.ready(w.Kind), &redis.ZRangeBy{
		Min: "-inf", Max: strconv.FormatInt(now, 10), Count: 1,
	}).Result()
	if err != nil || len(due) == 0 {
		return "", false
	}
	raw := due[0]
	removed, err := w.R.ZRem(ctx, k.ready(w.Kind), raw).Result()
	if err != nil || removed == 0 {
		return "", false
	}
	lease := w.Lease
	if lease <= 0 {
		lease = defaultLease
	}
	deadline := time.Now().Add(lease).UnixMilli()
	if err := w.R.ZAdd(ctx, k.claimed(w.Kind), redis.Z{Score: float64(deadline), Member: raw}).Err(); err != nil {
		w.Log.Warn().Err(err).Str("kind", w.Kind).Msg("queue_claim_failed")
	}
	return raw, true
}

func (w Worker) process(ctx context.Context, k keys, raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		_ = w.R.ZRem(ctx, k.claimed(w.Kind), raw).Err()
		w.Log.Error().Err(err).Str("kind", w.Kind).Msg("queue_undecodable_task_dropped")
		return
	}
	env.Attempt++

	err := w.Handler(ctx, Task{
		Kind:        env.Kind,
		Payload:     env.Payload,
		Key:         env.Key,
		MaxAttempts: env.MaxAttempts,
	})
	_ = w.R.ZRem(ctx, k.claimed(w.Kind), raw).Err()
	if err == nil {
		if env.Key != "" {
			_ = w.R.Del(ctx, k.seen(env.Kind, env.Key)).Err()
		}
		if TasksProcessedTotal != nil {
			TasksProcessedTotal.WithLabelValues(w.Kind, "ok").Inc()
		}
		return
	}

	if env.Attempt >= env.MaxAttempts {
		dead, merr := json.Marshal(env)
		if merr == nil {
			_ = w.R.LPush(ctx, k.dlq(w.Kind), dead).Err()
		}
		if env.Key != "" {
			_ = w.R.Del(ctx, k.seen(env.Kind, env.Key)).Err()
		}
		if TasksProcessedTotal != nil {
			TasksProcessedTotal.WithLabelValues(w.Kind, "dead").Inc()
		}
		w.Log.Error().Err(err).Str("kind", w.Kind).Int("attempt", env.Attempt).Msg("queue_task_dead_lettered")
		return
	}

	env.NotBefore = time.Now().Add(backoff(w.RetryBase, env.Attempt, w.RetryJitter)).UnixMilli()
	retry, merr := json.Marshal(env)
	if merr != nil {
		return
	}
	_ = w.R.ZAdd(ctx, k.ready(w.Kind), redis.Z{Score: float64(env.NotBefore), Member: retry}).Err()
	if TasksProcessedTotal != nil {
		TasksProcessedTotal.WithLabelValues(w.Kind, "retried").Inc()
	}
	w.Log.Warn().Err(err).Str("kind", w.Kind).Int("attempt", env.Attempt).Msg("queue_task_retried")
}

// reap moves tasks with expired leases back to the ready set.
func (w Worker) reap(ctx context.Context) {
	k := keys{prefix: w.Prefix}
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		now := time.Now().UnixMilli()
		expired, err := w.R.ZRangeByScore(ctx, k.claimed(w.Kind), &redis.ZRangeBy{
			Min: "-inf", Max: strconv.FormatInt(now, 10),
		}).Result()
		if err != nil {
			continue
		}
		for _, raw := range expired {
			removed, err := w.R.ZRem(ctx, k.claimed(w.Kind), raw).Result()
			if err != nil || removed == 0 {
				continue
			}
			_ = w.R.ZAdd(ctx, k.ready(w.Kind), redis.Z{Score: float64(now), Member: raw}).Err()
			if TasksProcessedTotal != nil {
				TasksProcessedTotal.WithLabelValues(w.Kind, "redelivered").Inc()
			}
		}
	}
}

func backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if base <= 0 {
		base = defaultRetryBase
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitterPct <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * float64(d) * jitterPct
	return d + time.Duration(delta)
}
