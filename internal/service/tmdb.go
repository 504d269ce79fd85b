package service

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/user/movierec/internal/config"
	"github.com/user/movierec/internal/model"
	"github.com/user/movierec/internal/utils"
)

// MetadataProvider 外部元数据提供方的窄接口
// 核心只依赖这个接口，缓存在 MetadataService 那一层，限流在具体实现里按请求计费
type MetadataProvider interface {
	GetMovieDetails(ctx context.Context, movieID int) (*model.MovieRecord, error)
	SearchMovies(ctx context.Context, query string, filters model.SearchFilters) ([]*model.MovieRecord, error)
	GetTrendingMovies(ctx context.Context, window string) ([]*model.MovieRecord, error)
	GetPopularMovies(ctx context.Context, page int) ([]*model.MovieRecord, error)
	SearchByActor(ctx context.Context, name string, limit int) ([]*model.MovieRecord, error)
}

// TMDBClient TMDB API 客户端
// 限流在这一层计费：每个出网请求扣一个令牌，多跳操作逐跳扣
type TMDBClient struct {
	config  *config.Config
	client  *utils.HTTPClient
	limiter *RequestLimiter
}

func NewTMDBClient(cfg *config.Config, limiter *RequestLimiter) *TMDBClient {
	return &TMDBClient{
		config:  cfg,
		client:  utils.NewHTTPClient(cfg.ProviderTimeout),
		limiter: limiter,
	}
}

// get 出网前取一个令牌，再发请求
func (s *TMDBClient) get(ctx context.Context, url string, target interface{}) error {
	if err := s.limiter.Acquire(ctx); err != nil {
		return err
	}
	return s.client.GetJSON(ctx, url, target)
}

func (s *TMDBClient) buildURL(endpoint string, params map[string]string) string {
	values := url.Values{}
	values.Set("api_key", s.config.TMDBAPIKey)
	values.Set("language", "en-US")
	for k, v := range params {
		values.Set(k, v)
	}
	return s.config.TMDBBaseURL + endpoint + "?" + values.Encode()
}

type tmdbMovieDetails struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
	VoteAverage float64 `json:"vote_average"`
	Popularity  float64 `json:"popularity"`
	Runtime     int     `json:"runtime"`
	PosterPath  string  `json:"poster_path"`
	Genres      []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Credits struct {
		Cast []struct {
			Name  string `json:"name"`
			Order int    `json:"order"`
		} `json:"cast"`
		Crew []struct {
			Name string `json:"name"`
			Job  string `json:"job"`
		} `json:"crew"`
	} `json:"credits"`
}

// GetMovieDetails 获取电影详情（带演职员表），并归一化为内部结构
func (s *TMDBClient) GetMovieDetails(ctx context.Context, movieID int) (*model.MovieRecord, error) {
	u := s.buildURL(fmt.Sprintf("/movie/%d", movieID), map[string]string{
		"append_to_response": "credits",
	})

	var result tmdbMovieDetails
	if err := s.get(ctx, u, &result); err != nil {
		return nil, err
	}

	return s.normalizeDetails(&result), nil
}

// normalizeDetails 提供方原始结构只在这一层出现，出了这里就是内部 MovieRecord
func (s *TMDBClient) normalizeDetails(d *tmdbMovieDetails) *model.MovieRecord {
	m := &model.MovieRecord{
		MovieID:     d.ID,
		Title:       d.Title,
		Overview:    d.Overview,
		ReleaseYear: parseYear(d.ReleaseDate),
		VoteAverage: d.VoteAverage,
		Popularity:  d.Popularity,
		Runtime:     d.Runtime,
		PosterPath:  d.PosterPath,
		CachedAt:    time.Now(),
	}
	for _, g := range d.Genres {
		if g.Name != "" {
			m.Genres = append(m.Genres, g.Name)
		}
	}
	// 主演取前 10 位，保持出场顺序
	for i, c := range d.Credits.Cast {
		if i >= 10 {
			break
		}
		m.Cast = append(m.Cast, c.Name)
	}
	for _, c := range d.Credits.Crew {
		if c.Job == "Director" {
			m.Director = c.Name
			break
		}
	}
	return m
}

type tmdbListResponse struct {
	Results []tmdbListMovie `json:"results"`
}

type tmdbListMovie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
	VoteAverage float64 `json:"vote_average"`
	Popularity  float64 `json:"popularity"`
	PosterPath  string  `json:"poster_path"`
	GenreIDs    []int   `json:"genre_ids"`
}

func (s *TMDBClient) normalizeList(ctx context.Context, results []tmdbListMovie) []*model.MovieRecord {
	genres, err := s.genreTable(ctx)
	if err != nil {
		genres = map[int]string{}
	}

	movies := make([]*model.MovieRecord, 0, len(results))
	for _, r := range results {
		m := &model.MovieRecord{
			MovieID:     r.ID,
			Title:       r.Title,
			Overview:    r.Overview,
			ReleaseYear: parseYear(r.ReleaseDate),
			VoteAverage: r.VoteAverage,
			Popularity:  r.Popularity,
			PosterPath:  r.PosterPath,
			CachedAt:    time.Now(),
		}
		for _, id := range r.GenreIDs {
			if name, ok := genres[id]; ok {
				m.Genres = append(m.Genres, name)
			}
		}
		movies = append(movies, m)
	}
	return movies
}

// SearchMovies 按标题搜索；带过滤条件时走 discover 接口
func (s *TMDBClient) SearchMovies(ctx context.Context, query string, filters model.SearchFilters) ([]*model.MovieRecord, error) {
	var u string
	if query != "" {
		u = s.buildURL("/search/movie", map[string]string{"query": query})
	} else {
		params := map[string]string{"sort_by": "popularity.desc"}
		if filters.Genre != "" {
			if id, ok := s.genreID(ctx, filters.Genre); ok {
				params["with_genres"] = strconv.Itoa(id)
			}
		}
		if filters.Year > 0 {
			params["primary_release_year"] = strconv.Itoa(filters.Year)
		}
		if filters.MinRating > 0 {
			params["vote_average.gte"] = strconv.FormatFloat(filters.MinRating, 'f', 1, 64)
			params["vote_count.gte"] = "100" // 票数太少的分数不可信
		}
		u = s.buildURL("/discover/movie", params)
	}

	var result tmdbListResponse
	if err := s.get(ctx, u, &result); err != nil {
		return nil, err
	}
	return s.normalizeList(ctx, result.Results), nil
}

// GetTrendingMovies 热门电影，window 取 day 或 week
func (s *TMDBClient) GetTrendingMovies(ctx context.Context, window string) ([]*model.MovieRecord, error) {
	if window != "day" {
		window = "week"
	}
	var result tmdbListResponse
	if err := s.get(ctx, s.buildURL("/trending/movie/"+window, nil), &result); err != nil {
		return nil, err
	}
	return s.normalizeList(ctx, result.Results), nil
}

// GetPopularMovies 人气榜（冷启动时用来灌目录）
func (s *TMDBClient) GetPopularMovies(ctx context.Context, page int) ([]*model.MovieRecord, error) {
	if page < 1 {
		page = 1
	}
	var result tmdbListResponse
	u := s.buildURL("/movie/popular", map[string]string{"page": strconv.Itoa(page)})
	if err := s.get(ctx, u, &result); err != nil {
		return nil, err
	}
	return s.normalizeList(ctx, result.Results), nil
}

// SearchByActor 查找演员参演的电影，按人气排序
func (s *TMDBClient) SearchByActor(ctx context.Context, name string, limit int) ([]*model.MovieRecord, error) {
	var people struct {
		Results []struct {
			ID int `json:"id"`
		} `json:"results"`
	}
	u := s.buildURL("/search/person", map[string]string{"query": name})
	if err := s.get(ctx, u, &people); err != nil {
		return nil, err
	}
	if len(people.Results) == 0 {
		return nil, nil
	}

	var credits struct {
		Cast []tmdbListMovie `json:"cast"`
	}
	u = s.buildURL(fmt.Sprintf("/person/%d/movie_credits", people.Results[0].ID), nil)
	if err := s.get(ctx, u, &credits); err != nil {
		return nil, err
	}

	movies := s.normalizeList(ctx, credits.Cast)
	// 人气降序，取前 limit 部
	sort.Slice(movies, func(i, j int) bool {
		return movies[i].Popularity > movies[j].Popularity
	})
	if limit > 0 && len(movies) > limit {
		movies = movies[:limit]
	}
	return movies, nil
}

// genreTable 类型 ID 到名称的映射表，12 小时缓存一份
func (s *TMDBClient) genreTable(ctx context.Context) (map[int]string, error) {
	const key = "tmdb:genres"
	if cached, ok := utils.CacheGet(key); ok {
		return cached.(map[int]string), nil
	}

	var result struct {
		Genres []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"genres"`
	}
	if err := s.get(ctx, s.buildURL("/genre/movie/list", nil), &result); err != nil {
		return nil, err
	}

	table := make(map[int]string, len(result.Genres))
	for _, g := range result.Genres {
		table[g.ID] = g.Name
	}
	utils.CacheSet(key, table, 12*time.Hour)
	return table, nil
}

func (s *TMDBClient) genreID(ctx context.Context, name string) (int, bool) {
	table, err := s.genreTable(ctx)
	if err != nil {
		return 0, false
	}
	for id, n := range table {
		if strings.EqualFold(n, name) {
			return id, true
		}
	}
	return 0, false
}

func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, _ := strconv.Atoi(date[:4])
	return year
}
