package service

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RequestLimiter 出网请求共享的令牌桶
// 按 HTTP 请求计费：一次出网一个令牌，多跳操作（演员搜索、类型表）逐跳扣减，
// 保证窗口内的真实请求数不超过提供方额度
type RequestLimiter struct {
	limiter *rate.Limiter
	maxWait time.Duration
}

// NewRequestLimiter 窗口内 tokens 个令牌匀速回填，排队最多等 maxWait
func NewRequestLimiter(tokens int, window, maxWait time.Duration) *RequestLimiter {
	interval := window / time.Duration(tokens)
	return &RequestLimiter{
		limiter: rate.NewLimiter(rate.Every(interval), tokens),
		maxWait: maxWait,
	}
}

// Acquire 取一个令牌，排队超过 maxWait 返回 ThrottledError
func (l *RequestLimiter) Acquire(ctx context.Context) error {
	r := l.limiter.Reserve()
	if !r.OK() {
		return &ThrottledError{RetryAfter: l.maxWait}
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	if delay > l.maxWait {
		r.Cancel()
		return &ThrottledError{RetryAfter: delay}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}
