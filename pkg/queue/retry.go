package queue

import (
	"math/rand"
	"time"
)

// RetryManager decides whether and when a failed task runs again.
type RetryManager struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	jitter     func(n int64) int64
}

func NewRetryManager(maxRetries int, baseDelay time.Duration) *RetryManager {
	return &RetryManager{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   baseDelay * 16,
		jitter:     rand.Int63n,
	}
}

// ShouldRetry reports whether task gets another attempt after err, and the delay before it.
// task.Attempts counts attempts already made.
func (r *RetryManager) ShouldRetry(task *Task, err error) (bool, time.Duration) {
	if err == nil {
		return false, 0
	}

	if IsPermanent(err) {
		return false, 0
	}

	limit := task.MaxRetries
	if limit <= 0 {
		limit = r.maxRetries
	}
	if task.Attempts >= limit {
		return false, 0
	}

	return true, r.backoff(task.Attempts)
}

// backoff is base * 2^(attempt-1), capped, with +-25% jitter.
func (r *RetryManager) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := r.baseDelay
	for i := 1; i < attempt && delay < r.maxDelay; i++ {
		delay *= 2
	}
	if delay > r.maxDelay {
		delay = r.maxDelay
	}

	quarter := int64(delay / 4)
	if quarter <= 0 {
		return delay
	}
	return delay - time.Duration(quarter) + time.Duration(r.jitter(2*quarter+1))
}
