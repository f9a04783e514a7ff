// internal/tasks/queue.go
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueKey is the sorted set holding pending tasks.
const DefaultQueueKey = "lobbybot:tasks"

// Task is a single-shot HTTP callback due at DueAt.
type Task struct {
	ID      string          `json:"id"`
	URL     string          `json:"url"`
	Payload json.RawMessage `json:"payload"`
	DueAt   time.Time       `json:"due_at"`
}

// Dispatcher schedules a JSON POST to url after delay. Fire-and-forget: the
// returned id is only used for logging.
type Dispatcher interface {
	Schedule(ctx context.Context, url string, payload any, delay time.Duration) (string, error)
}

// RedisQueue stores tasks in a Redis sorted set scored by due time in
// milliseconds.
type RedisQueue struct {
	rdb *redis.Client
	key string
	now func() time.Time
}

// NewRedisQueue returns a queue on key (DefaultQueueKey when empty).
func NewRedisQueue(rdb *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{rdb: rdb, key: key, now: time.Now}
}

// Schedule implements Dispatcher.
func (q *RedisQueue) Schedule(ctx context.Context, url string, payload any, delay time.Duration) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}
	task := Task{
		ID:      uuid.NewString(),
		URL:     url,
		Payload: body,
		DueAt:   q.now().Add(delay).UTC(),
	}
	data, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task: %w", err)
	}

	z := redis.Z{Score: float64(task.DueAt.UnixMilli()), Member: data}
	if err := q.rdb.ZAdd(ctx, q.key, z).Err(); err != nil {
		return "", fmt.Errorf("failed to ZADD to '%s': %w", q.key, err)
	}
	return task.ID, nil
}

// Claim pops up to limit tasks due at or before now. Each task is removed
// with ZREM before it is returned, so concurrent workers never share one.
func (q *RedisQueue) Claim(ctx context.Context, now time.Time, limit int) ([]Task, error) {
	members, err := q.rdb.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due tasks: %w", err)
	}

	claimed := make([]Task, 0, len(members))
	for _, m := range members {
		removed, err := q.rdb.ZRem(ctx, q.key, m).Result()
		if err != nil {
			return claimed, fmt.Errorf("failed to claim task: %w", err)
		}
		if removed == 0 {
			continue // another worker got it
		}
		var t Task
		if err := json.Unmarshal([]byte(m), &t); err != nil {
			continue
		}
		claimed = append(claimed, t)
	}
	return claimed, nil
}

// Len returns how many tasks are pending.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, q.key).Result()
}
