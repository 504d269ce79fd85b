package service

import (
	"github.com/user/movierec/internal/model"
)

// MovieStore 持久化电影缓存的窄契约
// 核心不自己开存储连接，读写都走这里
type MovieStore interface {
	GetCachedMovie(movieID int) (*model.MovieRecord, error)
	PutCachedMovie(m *model.MovieRecord) error
	Trending(limit int) ([]*model.MovieRecord, error)
}

// RatingStore 评分持久化契约
type RatingStore interface {
	UpsertRating(userID, movieID int, rating float64) error
}
