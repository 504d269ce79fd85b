package service

import (
	"context"
	"errors"
	"log"
	"math"
	"sort"
	"time"

	"github.com/user/movierec/internal/config"
	"github.com/user/movierec/internal/model"
)

// HybridService 混合推荐：协同 0.6 + 内容 0.4，再按新旧和热度做有界加成
type HybridService struct {
	content   *ContentService
	collab    *CollaborativeService
	metadata  *MetadataService
	movieRepo MovieStore
	cfg       *config.Config
}

func NewHybridService(
	content *ContentService,
	collab *CollaborativeService,
	metadata *MetadataService,
	movieRepo MovieStore,
	cfg *config.Config,
) *HybridService {
	return &HybridService{
		content:   content,
		collab:    collab,
		metadata:  metadata,
		movieRepo: movieRepo,
		cfg:       cfg,
	}
}

// clampTopN 规范化 topN，超上限会拖慢融合排序
func (s *HybridService) clampTopN(topN int) int {
	if topN <= 0 {
		return s.cfg.DefaultTopN
	}
	if topN > s.cfg.MaxTopN {
		return s.cfg.MaxTopN
	}
	return topN
}

// Recommend 给用户出混合推荐
// 回退阶梯：协同冷启动 -> 纯内容；两路都空 -> 缓存里的热度榜
func (s *HybridService) Recommend(ctx context.Context, userID int, rc model.RecommendContext, topN int) (model.RecommendationResult, error) {
	topN = s.clampTopN(topN)

	// 拉宽候选集再融合截断
	candidateN := topN * 2

	collabList, collabErr := s.collab.RecommendForUser(userID, candidateN)
	if collabErr != nil && !errors.Is(collabErr, ErrColdStart) {
		return nil, collabErr
	}
	s.collab.MaybeRebuild()

	contentList := s.contentCandidates(ctx, userID, rc, candidateN)

	normalize(collabList)
	normalize(contentList)

	// 协同冷启动：整单交给内容，分数原样透传
	if errors.Is(collabErr, ErrColdStart) || len(collabList) == 0 {
		log.Printf("[Hybrid] 用户 %d 协同信号不足，回退纯内容推荐", userID)
		if len(contentList) > 0 {
			if len(contentList) > topN {
				contentList = contentList[:topN]
			}
			return contentList, nil
		}
		return s.trendingFallback(ctx, topN)
	}
	if len(contentList) == 0 && len(collabList) == 0 {
		return s.trendingFallback(ctx, topN)
	}

	merged := s.blend(collabList, contentList)
	s.applyBoosts(merged)

	sortScored(merged)
	if len(merged) > topN {
		merged = merged[:topN]
	}
	return merged, nil
}

// contentCandidates 内容侧候选：显式种子优先，否则拿用户评分最高的电影当种子
func (s *HybridService) contentCandidates(ctx context.Context, userID int, rc model.RecommendContext, topN int) model.RecommendationResult {
	seedID := rc.SeedMovieID
	if seedID == 0 {
		seedID = s.topRatedMovie(userID)
	}
	if seedID == 0 {
		return model.RecommendationResult{}
	}

	seed, err := s.metadata.Fetch(ctx, seedID)
	if err != nil {
		log.Printf("[Hybrid] 种子电影 %d 元数据获取失败: %v", seedID, err)
		return model.RecommendationResult{}
	}
	return s.content.RecommendSimilar(seed, topN)
}

// topRatedMovie 用户评分最高的电影，平分取 ID 小的，保证可重复
func (s *HybridService) topRatedMovie(userID int) int {
	ratings := s.collab.Matrix().UserRatings(userID)
	best, bestRating := 0, -1.0
	for movieID, r := range ratings {
		if r > bestRating || (r == bestRating && movieID < best) {
			best, bestRating = movieID, r
		}
	}
	return best
}

// blend 融合两路候选
// 双路都有的：0.6·协同 + 0.4·内容；单路的按该路权重折算，不做隐式补零惩罚
func (s *HybridService) blend(collabList, contentList model.RecommendationResult) model.RecommendationResult {
	type entry struct {
		collab, content float64
		inCollab        bool
		inContent       bool
	}
	entries := make(map[int]*entry, len(collabList)+len(contentList))
	for _, sm := range collabList {
		entries[sm.MovieID] = &entry{collab: sm.Score, inCollab: true}
	}
	for _, sm := range contentList {
		e, ok := entries[sm.MovieID]
		if !ok {
			e = &entry{}
			entries[sm.MovieID] = e
		}
		e.content = sm.Score
		e.inContent = true
	}

	merged := make(model.RecommendationResult, 0, len(entries))
	for movieID, e := range entries {
		var score float64
		var source string
		switch {
		case e.inCollab && e.inContent:
			score = s.cfg.CollaborativeWeight*e.collab + s.cfg.ContentWeight*e.content
			source = model.SourceHybrid
		case e.inCollab:
			score = s.cfg.CollaborativeWeight * e.collab
			source = model.SourceCollaborative
		default:
			score = s.cfg.ContentWeight * e.content
			source = model.SourceContent
		}
		merged = append(merged, model.ScoredMovie{MovieID: movieID, Score: score, Source: source})
	}
	return merged
}

// applyBoosts 有界加成：新片至多 ×1.2，热度至多 ×1.15，最终分压回 [0,1]
func (s *HybridService) applyBoosts(list model.RecommendationResult) {
	idx := s.content.Index()
	now := time.Now().Year()
	for i := range list {
		m := idx.Movie(list[i].MovieID)
		if m == nil {
			continue // 元数据缺失就不加成，绝不因此失败
		}
		boost := recencyBoost(m.ReleaseYear, now, s.cfg.RecencyBoostCap) *
			popularityBoost(m.Popularity, s.cfg.PopularityBoostCap)
		list[i].Score = math.Min(1, list[i].Score*boost)
	}
}

// recencyBoost 发行越近加成越高，20 年以上归 1，上限 cap
func recencyBoost(releaseYear, nowYear int, cap float64) float64 {
	if releaseYear <= 0 || releaseYear > nowYear {
		return 1
	}
	age := float64(nowYear - releaseYear)
	const horizon = 20.0
	if age >= horizon {
		return 1
	}
	return 1 + (cap-1)*(1-age/horizon)
}

// popularityBoost 热度对数加成，上限 cap
func popularityBoost(popularity, cap float64) float64 {
	if popularity <= 0 {
		return 1
	}
	b := 1 + math.Log10(1+popularity)/20
	return math.Min(b, cap)
}

// trendingFallback 两路都出不来时直接用缓存里的热度榜
func (s *HybridService) trendingFallback(ctx context.Context, topN int) (model.RecommendationResult, error) {
	movies, err := s.movieRepo.Trending(topN)
	if err != nil || len(movies) == 0 {
		// 本地缓存也空，最后再试一次提供方的热门榜
		movies, err = s.metadata.Trending(ctx)
		if err != nil {
			return nil, err
		}
	}
	if len(movies) > topN {
		movies = movies[:topN]
	}

	var maxPop float64
	for _, m := range movies {
		if m.Popularity > maxPop {
			maxPop = m.Popularity
		}
	}

	result := make(model.RecommendationResult, 0, len(movies))
	for _, m := range movies {
		score := 1.0
		if maxPop > 0 {
			score = m.Popularity / maxPop
		}
		result = append(result, model.ScoredMovie{
			MovieID: m.MovieID,
			Score:   score,
			Source:  model.SourceHybrid,
		})
	}
	sortScored(result)
	return result, nil
}

// SimilarTo 纯内容相似推荐（similarTo 入口）
func (s *HybridService) SimilarTo(ctx context.Context, seedMovieID, topN int) (model.RecommendationResult, error) {
	if seedMovieID <= 0 {
		return nil, &ValidationError{Field: "movie_id", Reason: "必须为正整数"}
	}
	topN = s.clampTopN(topN)

	seed, err := s.metadata.Fetch(ctx, seedMovieID)
	if err != nil {
		return nil, err
	}
	return s.content.RecommendSimilar(seed, topN), nil
}

// normalize 列表内分数除以最大值归一到 [0,1]，空列表保持为空
func normalize(list model.RecommendationResult) {
	var max float64
	for _, sm := range list {
		if sm.Score > max {
			max = sm.Score
		}
	}
	if max <= 0 {
		return
	}
	for i := range list {
		list[i].Score /= max
	}
}

// sortScored 分数降序；平分时协同优先于内容，再比 ID
var sourceRank = map[string]int{
	model.SourceCollaborative: 0,
	model.SourceHybrid:        1,
	model.SourceContent:       2,
}

func sortScored(list model.RecommendationResult) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		if sourceRank[list[i].Source] != sourceRank[list[j].Source] {
			return sourceRank[list[i].Source] < sourceRank[list[j].Source]
		}
		return list[i].MovieID < list[j].MovieID
	})
}
