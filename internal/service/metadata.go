package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/user/movierec/internal/config"
	"github.com/user/movierec/internal/model"
	"github.com/user/movierec/internal/utils"
	"golang.org/x/sync/singleflight"
)

// MetadataService 元数据缓存与取数
// 这是访问外部提供方的唯一通道：命中缓存零外部调用，未命中才出网。
// 限流计费在 TMDB 客户端那一层按请求数进行，这里只负责缓存与兜底：
// 提供方挂了就退回最后一次缓存值（哪怕已过期），被限流则原样上抛
type MetadataService struct {
	provider  MetadataProvider
	movieRepo MovieStore
	cache     *utils.TTLCache[int, *model.MovieRecord]
	ttl       time.Duration
	timeout   time.Duration
	group     singleflight.Group
}

func NewMetadataService(provider MetadataProvider, store MovieStore, cfg *config.Config) *MetadataService {
	return &MetadataService{
		provider:  provider,
		movieRepo: store,
		cache:     utils.NewTTLCache[int, *model.MovieRecord](cfg.CacheSize, cfg.CacheTTL),
		ttl:       cfg.CacheTTL,
		timeout:   cfg.ProviderTimeout,
	}
}

// passthroughErr 限流与调用方取消需要原样上抛，不算提供方故障
func passthroughErr(err error) bool {
	var throttled *ThrottledError
	return errors.As(err, &throttled) || errors.Is(err, context.Canceled)
}

// Fetch 获取电影元数据，缓存优先
func (s *MetadataService) Fetch(ctx context.Context, movieID int) (*model.MovieRecord, error) {
	// 1. 进程内缓存
	if m, ok := s.cache.Get(movieID); ok {
		return m, nil
	}

	// 2. 持久化缓存，TTL 内直接用
	stale, err := s.movieRepo.GetCachedMovie(movieID)
	if err != nil {
		log.Printf("[Metadata] 读取电影缓存失败 (MovieID: %d): %v", movieID, err)
		stale = nil
	}
	if stale != nil && time.Since(stale.CachedAt) < s.ttl {
		s.cache.Set(movieID, stale)
		return stale, nil
	}

	// 3. 出网，singleflight 合并同一 ID 的并发请求
	val, err, _ := s.group.Do("movie:"+strconv.Itoa(movieID), func() (interface{}, error) {
		return s.fetchRemote(ctx, movieID, stale)
	})
	if err != nil {
		return nil, err
	}
	return val.(*model.MovieRecord), nil
}

// fetchRemote 请求提供方，失败时退回过期缓存
func (s *MetadataService) fetchRemote(ctx context.Context, movieID int, stale *model.MovieRecord) (*model.MovieRecord, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	m, err := s.provider.GetMovieDetails(reqCtx, movieID)
	if err != nil {
		// 限流和取消不走过期缓存兜底
		if passthroughErr(err) {
			return nil, err
		}
		// stale-if-error：网络错误/超时/5xx 都走这里
		if stale != nil {
			log.Printf("[Metadata] 提供方请求失败，使用过期缓存 (MovieID: %d): %v", movieID, err)
			return stale, nil
		}
		return nil, &ProviderUnavailableError{MovieID: movieID, Err: err}
	}

	s.writeThrough(m)
	return m, nil
}

// writeThrough 回写缓存：先持久化再进内存
func (s *MetadataService) writeThrough(m *model.MovieRecord) {
	if m == nil {
		return
	}
	if err := s.movieRepo.PutCachedMovie(m); err != nil {
		log.Printf("[Metadata] 持久化电影缓存失败 (MovieID: %d): %v", m.MovieID, err)
	}
	s.cache.Set(m.MovieID, m)
}

// Search 搜索电影，搜索响应本身不缓存，但结果逐条回写缓存
func (s *MetadataService) Search(ctx context.Context, query string, filters model.SearchFilters) ([]model.MovieRecordRef, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	movies, err := s.provider.SearchMovies(reqCtx, query, filters)
	if err != nil {
		if passthroughErr(err) {
			return nil, err
		}
		return nil, &ProviderUnavailableError{Err: err}
	}

	return s.writeThroughRefs(movies), nil
}

// SearchByActor 按演员找片，提供方先查人再查参演作品，结果同样逐条回写缓存
func (s *MetadataService) SearchByActor(ctx context.Context, name string, limit int) ([]model.MovieRecordRef, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	movies, err := s.provider.SearchByActor(reqCtx, name, limit)
	if err != nil {
		if passthroughErr(err) {
			return nil, err
		}
		return nil, &ProviderUnavailableError{Err: err}
	}

	return s.writeThroughRefs(movies), nil
}

func (s *MetadataService) writeThroughRefs(movies []*model.MovieRecord) []model.MovieRecordRef {
	refs := make([]model.MovieRecordRef, 0, len(movies))
	for _, m := range movies {
		s.writeThrough(m)
		refs = append(refs, model.MovieRecordRef{
			MovieID:     m.MovieID,
			Title:       m.Title,
			ReleaseYear: m.ReleaseYear,
			VoteAverage: m.VoteAverage,
			Popularity:  m.Popularity,
		})
	}
	return refs
}

// Trending 当周热门，进程缓存 5 分钟避免反复打提供方
func (s *MetadataService) Trending(ctx context.Context) ([]*model.MovieRecord, error) {
	const key = "metadata:trending"
	if cached, ok := utils.CacheGet(key); ok {
		return cached.([]*model.MovieRecord), nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	movies, err := s.provider.GetTrendingMovies(reqCtx, "week")
	if err != nil {
		if passthroughErr(err) {
			return nil, err
		}
		return nil, &ProviderUnavailableError{Err: err}
	}
	for _, m := range movies {
		s.writeThrough(m)
	}
	utils.CacheSet(key, movies, 5*time.Minute)
	return movies, nil
}

// SeedCatalog 目录太小时从人气榜灌入若干页电影（启动预热用，尽力而为）
func (s *MetadataService) SeedCatalog(ctx context.Context, pages int) int {
	seeded := 0
	for page := 1; page <= pages; page++ {
		reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
		movies, err := s.provider.GetPopularMovies(reqCtx, page)
		cancel()
		if err != nil {
			log.Printf("[Metadata] 预热第 %d 页失败: %v", page, err)
			break
		}
		for _, m := range movies {
			s.writeThrough(m)
			seeded++
		}
	}
	return seeded
}
