package model

import (
	"time"
)

// RatingEvent 一次评分事件
// 同一 (user_id, movie_id) 后到的事件覆盖先到的，矩阵里只保留最终生效值
type RatingEvent struct {
	UserID    int       `json:"user_id" db:"user_id"`
	MovieID   int       `json:"movie_id" db:"movie_id"`
	Rating    float64   `json:"rating" db:"rating"` // 内部统一 [0,10]
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}
