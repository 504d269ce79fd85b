package repository

import (
	"time"

	"github.com/user/movierec/internal/model"
	"gorm.io/gorm"
)

type RatingRepository struct {
	db *gorm.DB
}

func NewRatingRepository(db *gorm.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// UpsertRating 写入评分，同一 (user_id, movie_id) 后写覆盖
func (r *RatingRepository) UpsertRating(userID, movieID int, rating float64) error {
	return r.db.Exec(`
		INSERT INTO ratings (user_id, movie_id, rating, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, movie_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			created_at = EXCLUDED.created_at
	`, userID, movieID, rating, time.Now()).Error
}

// StreamAllRatings 逐行遍历全部评分（启动时重建用户-物品矩阵用）
// 回调返回错误即中断遍历
func (r *RatingRepository) StreamAllRatings(fn func(ev model.RatingEvent) error) error {
	rows, err := r.db.Raw(`
		SELECT user_id, movie_id, rating, created_at
		FROM ratings
		ORDER BY created_at
	`).Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var ev model.RatingEvent
		if err := rows.Scan(&ev.UserID, &ev.MovieID, &ev.Rating, &ev.Timestamp); err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return rows.Err()
}
