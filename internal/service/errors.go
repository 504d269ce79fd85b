package service

import (
	"errors"
	"fmt"
	"time"
)

// ErrColdStart 协同过滤无可用信号（用户无评分或邻居无共同评分）
// 不是失败，混合层收到后走内容兜底
var ErrColdStart = errors.New("collaborative cold start")

// ThrottledError 限流排队超出最大等待时间
type ThrottledError struct {
	RetryAfter time.Duration // 建议的重试间隔
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("元数据请求被限流，建议 %s 后重试", e.RetryAfter.Round(time.Millisecond))
}

// ProviderUnavailableError 提供方不可用且没有缓存可兜底
type ProviderUnavailableError struct {
	MovieID int
	Err     error
}

func (e *ProviderUnavailableError) Error() string {
	if e.MovieID > 0 {
		return fmt.Sprintf("电影 %d 元数据获取失败且无缓存: %v", e.MovieID, e.Err)
	}
	return fmt.Sprintf("元数据提供方不可用: %v", e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}

// ValidationError 输入非法，直接拒绝，不重试
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("参数 %s 非法: %s", e.Field, e.Reason)
}
