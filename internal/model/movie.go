package model

import (
	"time"
)

// MovieRecord 电影元数据（TMDB 归一化后的内部结构）
// 一旦写入缓存即视为不可变，刷新时整体替换而不是原地修改
type MovieRecord struct {
	MovieID     int       `json:"movie_id" db:"movie_id"`
	Title       string    `json:"title" db:"title"`
	Genres      []string  `json:"genres" db:"genres"`
	Overview    string    `json:"overview" db:"overview"`
	ReleaseYear int       `json:"release_year" db:"release_year"`
	VoteAverage float64   `json:"vote_average" db:"vote_average"` // 0-10 分
	Popularity  float64   `json:"popularity" db:"popularity"`
	Runtime     int       `json:"runtime" db:"runtime"`
	Cast        []string  `json:"cast" db:"movie_cast"` // 有序，主演在前
	Director    string    `json:"director" db:"director"`
	PosterPath  string    `json:"poster_path" db:"poster_path"`
	CachedAt    time.Time `json:"cached_at" db:"cached_at"`
}

// MovieRecordRef 搜索结果的轻量引用
type MovieRecordRef struct {
	MovieID     int     `json:"movie_id"`
	Title       string  `json:"title"`
	ReleaseYear int     `json:"release_year"`
	VoteAverage float64 `json:"vote_average"`
	Popularity  float64 `json:"popularity"`
}

// SearchFilters 搜索过滤条件
type SearchFilters struct {
	Genre     string  `json:"genre"`
	Year      int     `json:"year"`
	MinRating float64 `json:"min_rating"`
}

// 推荐来源标记
const (
	SourceContent       = "content"
	SourceCollaborative = "collaborative"
	SourceHybrid        = "hybrid"
)

// ScoredMovie 单条推荐
type ScoredMovie struct {
	MovieID int     `json:"movie_id"`
	Score   float64 `json:"score"` // 归一化到 [0,1]
	Source  string  `json:"source"`
}

// RecommendationResult 按分数降序的推荐列表
type RecommendationResult []ScoredMovie

// RecommendContext 推荐请求的可选上下文
type RecommendContext struct {
	SeedMovieID int `json:"seed_movie_id"`
}
