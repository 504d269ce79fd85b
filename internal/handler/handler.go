package handler

import (
	"github.com/user/movierec/internal/config"
	"github.com/user/movierec/internal/service"
)

// Handler 上游 API 入口集合
// 上层（聊天/页面）只允许经过这三个入口访问推荐核心
type Handler struct {
	Hybrid   *service.HybridService
	Rating   *service.RatingService
	Metadata *service.MetadataService
	Config   *config.Config
}

// NewHandler 创建 Handler
func NewHandler(hybrid *service.HybridService, rating *service.RatingService, metadata *service.MetadataService, cfg *config.Config) *Handler {
	return &Handler{
		Hybrid:   hybrid,
		Rating:   rating,
		Metadata: metadata,
		Config:   cfg,
	}
}
