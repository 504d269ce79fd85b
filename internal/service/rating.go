package service

import (
	"context"
	"math"
)

// RatingService 评分写入
// 这是用户-物品矩阵唯一的变更路径：先持久化，成功后才改矩阵单格
type RatingService struct {
	ratingRepo RatingStore
	collab     *CollaborativeService
}

func NewRatingService(store RatingStore, collab *CollaborativeService) *RatingService {
	return &RatingService{
		ratingRepo: store,
		collab:     collab,
	}
}

// Upsert 写入或覆盖评分，同一 (userID, movieID) 后写生效
// 持久化失败时矩阵保持原状，调用方重试即可
func (s *RatingService) Upsert(ctx context.Context, userID, movieID int, rating float64) error {
	if userID <= 0 {
		return &ValidationError{Field: "user_id", Reason: "必须为正整数"}
	}
	if movieID <= 0 {
		return &ValidationError{Field: "movie_id", Reason: "必须为正整数"}
	}
	if math.IsNaN(rating) || rating < 0 || rating > 10 {
		return &ValidationError{Field: "rating", Reason: "必须在 [0,10] 区间内"}
	}

	// 内部统一保留一位小数
	rating = math.Round(rating*10) / 10

	if err := s.ratingRepo.UpsertRating(userID, movieID, rating); err != nil {
		return err
	}

	// 单格覆盖 + 置脏；重建由请求路径异步触发，这里不等
	s.collab.ApplyRating(userID, movieID, rating)
	return nil
}
