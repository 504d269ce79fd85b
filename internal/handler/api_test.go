package handler

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/user/movierec/internal/service"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{}

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"参数非法", &service.ValidationError{Field: "user_id", Reason: "必须为正整数"}, 400},
		{"限流", &service.ThrottledError{RetryAfter: time.Second}, 429},
		{"提供方不可用", &service.ProviderUnavailableError{Err: errors.New("connection refused")}, 503},
		{"客户端取消", context.Canceled, 499},
		{"处理超时", context.DeadlineExceeded, 504},
		{"未知错误", errors.New("boom"), 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			h.writeError(c, tc.err)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestWriteErrorThrottledSetsRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	h.writeError(c, &service.ThrottledError{RetryAfter: 1500 * time.Millisecond})

	assert.Equal(t, 429, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
}
