package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/user/movierec/internal/model"
	"gorm.io/gorm"
)

type MovieRepository struct {
	db *gorm.DB
}

func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

const movieColumns = `movie_id, title, genres, overview, release_year, vote_average,
	popularity, runtime, movie_cast, director, poster_path, cached_at`

func scanMovie(row *sql.Row) (*model.MovieRecord, error) {
	var m model.MovieRecord
	err := row.Scan(
		&m.MovieID, &m.Title, pq.Array(&m.Genres), &m.Overview, &m.ReleaseYear,
		&m.VoteAverage, &m.Popularity, &m.Runtime, pq.Array(&m.Cast),
		&m.Director, &m.PosterPath, &m.CachedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// GetCachedMovie 读取缓存的电影记录，不存在时返回 (nil, nil)
// TTL 判断交给调用方，这里总是返回最后一次写入的值（stale-if-error 需要过期数据）
func (r *MovieRepository) GetCachedMovie(movieID int) (*model.MovieRecord, error) {
	row := r.db.Raw(`
		SELECT `+movieColumns+`
		FROM movies_cache
		WHERE movie_id = ?
	`, movieID).Row()
	return scanMovie(row)
}

// PutCachedMovie 写入/覆盖电影记录，cached_at 取当前时间
func (r *MovieRepository) PutCachedMovie(m *model.MovieRecord) error {
	if m.CachedAt.IsZero() {
		m.CachedAt = time.Now()
	}
	return r.db.Exec(`
		INSERT INTO movies_cache (movie_id, title, genres, overview, release_year,
		                          vote_average, popularity, runtime, movie_cast,
		                          director, poster_path, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (movie_id) DO UPDATE SET
			title = EXCLUDED.title,
			genres = EXCLUDED.genres,
			overview = EXCLUDED.overview,
			release_year = EXCLUDED.release_year,
			vote_average = EXCLUDED.vote_average,
			popularity = EXCLUDED.popularity,
			runtime = EXCLUDED.runtime,
			movie_cast = EXCLUDED.movie_cast,
			director = EXCLUDED.director,
			poster_path = EXCLUDED.poster_path,
			cached_at = EXCLUDED.cached_at
	`, m.MovieID, m.Title, pq.Array(m.Genres), m.Overview, m.ReleaseYear,
		m.VoteAverage, m.Popularity, m.Runtime, pq.Array(m.Cast),
		m.Director, m.PosterPath, m.CachedAt).Error
}

// ListCached 返回全部缓存电影（内容索引重建用）
func (r *MovieRepository) ListCached() ([]*model.MovieRecord, error) {
	rows, err := r.db.Raw(`
		SELECT ` + movieColumns + `
		FROM movies_cache
		ORDER BY movie_id
	`).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movies []*model.MovieRecord
	for rows.Next() {
		var m model.MovieRecord
		if err := rows.Scan(
			&m.MovieID, &m.Title, pq.Array(&m.Genres), &m.Overview, &m.ReleaseYear,
			&m.VoteAverage, &m.Popularity, &m.Runtime, pq.Array(&m.Cast),
			&m.Director, &m.PosterPath, &m.CachedAt,
		); err != nil {
			return nil, err
		}
		movies = append(movies, &m)
	}
	return movies, rows.Err()
}

// Trending 按热度取缓存电影，兜底榜单用
func (r *MovieRepository) Trending(limit int) ([]*model.MovieRecord, error) {
	rows, err := r.db.Raw(`
		SELECT `+movieColumns+`
		FROM movies_cache
		ORDER BY popularity DESC, movie_id
		LIMIT ?
	`, limit).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movies []*model.MovieRecord
	for rows.Next() {
		var m model.MovieRecord
		if err := rows.Scan(
			&m.MovieID, &m.Title, pq.Array(&m.Genres), &m.Overview, &m.ReleaseYear,
			&m.VoteAverage, &m.Popularity, &m.Runtime, pq.Array(&m.Cast),
			&m.Director, &m.PosterPath, &m.CachedAt,
		); err != nil {
			return nil, err
		}
		movies = append(movies, &m)
	}
	return movies, rows.Err()
}

// Count 缓存电影总数
func (r *MovieRepository) Count() (int, error) {
	var count int64
	err := r.db.Raw(`SELECT COUNT(*) FROM movies_cache`).Scan(&count).Error
	return int(count), err
}
