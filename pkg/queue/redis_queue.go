package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries    = 5
	defaultBaseDelay     = 5 * time.Second
	defaultPollTimeout   = 5 * time.Second
	defaultDelayedTicker = time.Second
)

// Handler processes one task. Returning a PermanentError sends it straight to the DLQ.
type Handler func(ctx context.Context, task *Task) error

type Config struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces the Redis keys, e.g. "agro:webhook".
	Prefix string

	MaxRetries  int
	BaseDelay   time.Duration
	PollTimeout time.Duration
}

// RedisQueue is a durable at-least-once task queue with delayed retries and a dead-letter list.
//
// Keys: <prefix>:tasks (list), <prefix>:tasks:processing (list),
// <prefix>:tasks:delayed (zset scored by unix time), <prefix>:dlq (list).
type RedisQueue struct {
	client          *redis.Client
	mainQueue       string
	processingQueue string
	delayedQueue    string
	dlq             string
	retry           *RetryManager
	pollTimeout     time.Duration
	maxRetries      int
	log             *zap.Logger
	now             func() time.Time
	wg              sync.WaitGroup
}

func NewRedisQueue(ctx context.Context, cfg Config, log *zap.Logger) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return newRedisQueue(client, cfg, log), nil
}

func newRedisQueue(client *redis.Client, cfg Config, log *zap.Logger) *RedisQueue {
	if cfg.Prefix == "" {
		cfg.Prefix = "agro:queue"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}

	return &RedisQueue{
		client:          client,
		mainQueue:       cfg.Prefix + ":tasks",
		processingQueue: cfg.Prefix + ":tasks:processing",
		delayedQueue:    cfg.Prefix + ":tasks:delayed",
		dlq:             cfg.Prefix + ":dlq",
		retry:           NewRetryManager(cfg.MaxRetries, cfg.BaseDelay),
		pollTimeout:     cfg.PollTimeout,
		maxRetries:      cfg.MaxRetries,
		log:             log.With(zap.String("queue", cfg.Prefix)),
		now:             time.Now,
	}
}

// Publish enqueues task, immediately or at task.ExecuteAt when that is in the future.
func (q *RedisQueue) Publish(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	if task.MaxRetries == 0 {
		task.MaxRetries = q.maxRetries
	}
	now := q.now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	if task.ExecuteAt.After(now) {
		err = q.client.ZAdd(ctx, q.delayedQueue, redis.Z{
			Score:  float64(task.ExecuteAt.Unix()),
			Member: data,
		}).Err()
	} else {
		err = q.client.LPush(ctx, q.mainQueue, data).Err()
	}
	if err != nil {
		return fmt.Errorf("publish task %s: %w", task.ID, err)
	}

	q.log.Debug("Task published",
		zap.String("task_id", task.ID),
		zap.String("type", string(task.Type)),
		zap.Time("execute_at", task.ExecuteAt),
	)
	return nil
}

// Run consumes tasks until ctx is cancelled.
func (q *RedisQueue) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	if err := q.requeueOrphans(ctx); err != nil {
		q.log.Warn("Failed to requeue orphaned tasks", zap.Error(err))
	}

	q.wg.Add(1)
	go q.promoteDelayed(ctx)

	q.log.Info("Queue consumer started")
	for {
		select {
		case <-ctx.Done():
			q.wg.Wait()
			q.log.Info("Queue consumer stopped")
			return nil
		default:
		}

		if err := q.processOne(ctx, handler); err != nil {
			if ctx.Err() != nil {
				continue
			}
			q.log.Error("Failed to process task", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// requeueOrphans moves tasks left in the processing list by a crashed consumer back to the main queue.
func (q *RedisQueue) requeueOrphans(ctx context.Context) error {
	moved := 0
	for {
		err := q.client.RPopLPush(ctx, q.processingQueue, q.mainQueue).Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return err
		}
		moved++
	}
	if moved > 0 {
		q.log.Warn("Requeued orphaned tasks", zap.Int("count", moved))
	}
	return nil
}

func (q *RedisQueue) processOne(ctx context.Context, handler Handler) error {
	raw, err := q.client.BRPopLPush(ctx, q.mainQueue, q.processingQueue, q.pollTimeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("move task to processing queue: %w", err)
	}

	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		q.log.Error("Corrupted task moved to DLQ", zap.Error(err), zap.String("raw", raw))
		if err := q.client.LPush(ctx, q.dlq, raw).Err(); err != nil {
			return fmt.Errorf("move corrupted task to DLQ: %w", err)
		}
		q.ack(ctx, raw)
		return nil
	}

	task.Attempts++
	start := q.now()
	handlerErr := handler(ctx, &task)
	if handlerErr == nil {
		q.log.Info("Task completed",
			zap.String("task_id", task.ID),
			zap.String("type", string(task.Type)),
			zap.Int("attempt", task.Attempts),
			zap.Duration("duration", q.now().Sub(start)),
		)
		q.ack(ctx, raw)
		return nil
	}

	// On error the task stays in the processing list until requeueOrphans picks it up.
	if err := q.fail(context.WithoutCancel(ctx), &task, handlerErr); err != nil {
		return fmt.Errorf("reschedule task %s: %w", task.ID, err)
	}
	q.ack(ctx, raw)
	return nil
}

// ack drops a finished task from the processing list.
func (q *RedisQueue) ack(ctx context.Context, raw string) {
	if err := q.client.LRem(context.WithoutCancel(ctx), q.processingQueue, 1, raw).Err(); err != nil {
		q.log.Error("Failed to remove task from processing queue", zap.Error(err))
	}
}

func (q *RedisQueue) fail(ctx context.Context, task *Task, cause error) error {
	task.LastError = cause.Error()

	retry, delay := q.retry.ShouldRetry(task, cause)
	if retry {
		task.ExecuteAt = q.now().Add(delay)
		q.log.Warn("Task failed, retry scheduled",
			zap.String("task_id", task.ID),
			zap.String("type", string(task.Type)),
			zap.Int("attempt", task.Attempts),
			zap.Int("max_retries", task.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(cause),
		)
		return q.Publish(ctx, task)
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal failed task: %w", err)
	}
	q.log.Error("Task moved to DLQ",
		zap.String("task_id", task.ID),
		zap.String("type", string(task.Type)),
		zap.Int("attempts", task.Attempts),
		zap.Error(cause),
	)
	return q.client.LPush(ctx, q.dlq, data).Err()
}

func (q *RedisQueue) promoteDelayed(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(defaultDelayedTicker)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.moveReadyDelayed(ctx); err != nil && ctx.Err() == nil {
				q.log.Error("Failed to promote delayed tasks", zap.Error(err))
			}
		}
	}
}

// promoteScript moves one delayed task to the main list. The task leaves the
// zset only after the push succeeded, and a task already claimed by another
// consumer is skipped.
var promoteScript = redis.NewScript(`
if not redis.call('ZSCORE', KEYS[1], ARGV[1]) then
	return 0
end
redis.call('LPUSH', KEYS[2], ARGV[1])
redis.call('ZREM', KEYS[1], ARGV[1])
return 1
`)

// moveReadyDelayed moves due tasks to the main queue.
func (q *RedisQueue) moveReadyDelayed(ctx context.Context) error {
	until := strconv.FormatInt(q.now().Unix(), 10)
	due, err := q.client.ZRangeByScore(ctx, q.delayedQueue, &redis.ZRangeBy{Min: "-inf", Max: until}).Result()
	if err != nil {
		return fmt.Errorf("read delayed tasks: %w", err)
	}

	for _, data := range due {
		if err := promoteScript.Run(ctx, q.client, []string{q.delayedQueue, q.mainQueue}, data).Err(); err != nil {
			return fmt.Errorf("promote delayed task: %w", err)
		}
	}
	return nil
}

type Stats struct {
	Main       int64 `json:"main"`
	Delayed    int64 `json:"delayed"`
	Processing int64 `json:"processing"`
	DLQ        int64 `json:"dlq"`
}

func (q *RedisQueue) Stats(ctx context.Context) (*Stats, error) {
	pipe := q.client.Pipeline()
	mainLen := pipe.LLen(ctx, q.mainQueue)
	delayedLen := pipe.ZCard(ctx, q.delayedQueue)
	processingLen := pipe.LLen(ctx, q.processingQueue)
	dlqLen := pipe.LLen(ctx, q.dlq)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("read queue stats: %w", err)
	}

	return &Stats{
		Main:       mainLen.Val(),
		Delayed:    delayedLen.Val(),
		Processing: processingLen.Val(),
		DLQ:        dlqLen.Val(),
	}, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
