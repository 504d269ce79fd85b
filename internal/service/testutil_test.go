package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/movierec/internal/config"
	"github.com/user/movierec/internal/model"
)

// newTestConfig 测试用配置，默认值与线上一致，限流参数各测试自行覆盖
func newTestConfig() *config.Config {
	return &config.Config{
		TMDBBaseURL:         "https://api.themoviedb.org/3",
		ProviderTimeout:     time.Second,
		RateLimitTokens:     40,
		RateLimitWindow:     10 * time.Second,
		RateLimitMaxWait:    100 * time.Millisecond,
		CacheTTL:            24 * time.Hour,
		CacheSize:           100,
		ContentWeight:       0.4,
		CollaborativeWeight: 0.6,
		KNeighbors:          10,
		StaleThreshold:      20,
		DefaultTopN:         10,
		MaxTopN:             50,
		RecencyBoostCap:     1.2,
		PopularityBoostCap:  1.15,
	}
}

// fakeProvider 可计数、可注入故障的提供方测试替身
// 挂上 limiter 后和真实客户端一样按请求扣令牌
type fakeProvider struct {
	mu      sync.Mutex
	movies  map[int]*model.MovieRecord
	failing bool
	limiter *RequestLimiter

	detailCalls atomic.Int64
	listCalls   atomic.Int64
}

func newFakeProvider(movies ...*model.MovieRecord) *fakeProvider {
	p := &fakeProvider{movies: make(map[int]*model.MovieRecord)}
	for _, m := range movies {
		p.movies[m.MovieID] = m
	}
	return p
}

func (p *fakeProvider) setFailing(failing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failing = failing
}

func (p *fakeProvider) acquire(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Acquire(ctx)
}

func (p *fakeProvider) GetMovieDetails(ctx context.Context, movieID int) (*model.MovieRecord, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	p.detailCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failing {
		return nil, errors.New("connection refused")
	}
	m, ok := p.movies[movieID]
	if !ok {
		return nil, errors.New("404 not found")
	}
	cp := *m
	cp.CachedAt = time.Now()
	return &cp, nil
}

func (p *fakeProvider) SearchMovies(ctx context.Context, query string, filters model.SearchFilters) ([]*model.MovieRecord, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	p.listCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failing {
		return nil, errors.New("connection refused")
	}
	var out []*model.MovieRecord
	for _, m := range p.movies {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (p *fakeProvider) GetTrendingMovies(ctx context.Context, window string) ([]*model.MovieRecord, error) {
	return p.SearchMovies(ctx, "", model.SearchFilters{})
}

func (p *fakeProvider) GetPopularMovies(ctx context.Context, page int) ([]*model.MovieRecord, error) {
	return p.SearchMovies(ctx, "", model.SearchFilters{})
}

func (p *fakeProvider) SearchByActor(ctx context.Context, name string, limit int) ([]*model.MovieRecord, error) {
	return p.SearchMovies(ctx, "", model.SearchFilters{})
}

// memMovieStore 内存版持久化缓存
type memMovieStore struct {
	mu     sync.Mutex
	movies map[int]*model.MovieRecord
}

func newMemMovieStore(movies ...*model.MovieRecord) *memMovieStore {
	s := &memMovieStore{movies: make(map[int]*model.MovieRecord)}
	for _, m := range movies {
		s.movies[m.MovieID] = m
	}
	return s
}

func (s *memMovieStore) GetCachedMovie(movieID int) (*model.MovieRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movies[movieID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *memMovieStore) PutCachedMovie(m *model.MovieRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.movies[m.MovieID] = &cp
	return nil
}

func (s *memMovieStore) Trending(limit int) ([]*model.MovieRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.MovieRecord
	for _, m := range s.movies {
		cp := *m
		out = append(out, &cp)
	}
	// 热度降序
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Popularity > out[i].Popularity {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memRatingStore 内存版评分存储，failing 置位后写入一律失败
type memRatingStore struct {
	mu      sync.Mutex
	ratings map[[2]int]float64
	failing bool
}

func newMemRatingStore() *memRatingStore {
	return &memRatingStore{ratings: make(map[[2]int]float64)}
}

func (s *memRatingStore) UpsertRating(userID, movieID int, rating float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("write failed")
	}
	s.ratings[[2]int{userID, movieID}] = rating
	return nil
}

// 造数据的小工具

func movie(id int, title string, genres []string, overview string, year int, popularity float64) *model.MovieRecord {
	return &model.MovieRecord{
		MovieID:     id,
		Title:       title,
		Genres:      genres,
		Overview:    overview,
		ReleaseYear: year,
		VoteAverage: 7,
		Popularity:  popularity,
		CachedAt:    time.Now(),
	}
}
