package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/movierec/internal/model"
)

func sciFiCatalog() []*model.MovieRecord {
	return []*model.MovieRecord{
		movie(1, "Dark Star", []string{"Sci-Fi", "Thriller"}, "a derelict ship drifts toward a dying sun", 2020, 50),
		movie(2, "Void Protocol", []string{"Sci-Fi"}, "an astronaut uncovers a signal from deep space", 2021, 80),
		movie(3, "Neural Divide", []string{"Sci-Fi"}, "a hacker breaks into a sentient network", 2019, 30),
		movie(4, "Quantum Echo", []string{"Sci-Fi"}, "physicists trapped inside a collapsing experiment", 2022, 60),
		movie(5, "Country Wedding", []string{"Romance"}, "two families meet during harvest season", 2018, 90),
		movie(6, "Pasta Nonna", []string{"Documentary"}, "grandmothers cook regional dishes in small villages", 2017, 20),
	}
}

func TestRecommendSimilarGenreOverlapRanksFirst(t *testing.T) {
	svc := NewContentService()
	catalog := sciFiCatalog()
	svc.BuildIndex(catalog)

	// 种子与 2/3/4 同为 Sci-Fi，5/6 完全无交集
	result := svc.RecommendSimilar(catalog[0], 10)
	require.NotEmpty(t, result)

	top := map[int]bool{}
	for i, sm := range result {
		if i < 3 {
			top[sm.MovieID] = true
		}
		// 无类型交集又无文本交集的电影不应出现
		assert.NotEqual(t, 5, sm.MovieID)
		assert.NotEqual(t, 6, sm.MovieID)
	}
	assert.True(t, top[2] && top[3] && top[4], "三部 Sci-Fi 应排在最前: %v", result)
}

func TestRecommendSimilarExcludesSeed(t *testing.T) {
	svc := NewContentService()
	catalog := sciFiCatalog()
	svc.BuildIndex(catalog)

	result := svc.RecommendSimilar(catalog[0], 10)
	for _, sm := range result {
		assert.NotEqual(t, catalog[0].MovieID, sm.MovieID)
	}
}

func TestCosineBounds(t *testing.T) {
	catalog := sciFiCatalog()
	svc := NewContentService()
	idx := svc.BuildIndex(catalog)

	// 自相似为 1，任意两部电影相似度落在 [-1,1]
	for _, a := range catalog {
		va, na := idx.vectors[a.MovieID], idx.norms[a.MovieID]
		require.Greater(t, na, 0.0)
		assert.InDelta(t, 1.0, cosine(va, na, va, na), 1e-9)
		for _, b := range catalog {
			vb, nb := idx.vectors[b.MovieID], idx.norms[b.MovieID]
			sim := cosine(va, na, vb, nb)
			assert.GreaterOrEqual(t, sim, -1.0-1e-9)
			assert.LessOrEqual(t, sim, 1.0+1e-9)
		}
	}
}

func TestCosineZeroVector(t *testing.T) {
	assert.Equal(t, 0.0, cosine(map[string]float64{}, 0, map[string]float64{"x": 1}, 1))
}

func TestRecommendByTerms(t *testing.T) {
	svc := NewContentService()
	svc.BuildIndex(sciFiCatalog())

	result := svc.RecommendByTerms([]string{"Sci-Fi"}, 10)
	require.NotEmpty(t, result)
	for _, sm := range result {
		assert.Contains(t, []int{1, 2, 3, 4}, sm.MovieID)
		assert.Equal(t, model.SourceContent, sm.Source)
		assert.GreaterOrEqual(t, sm.Score, 0.0)
		assert.LessOrEqual(t, sm.Score, 1.0)
	}
}

func TestRecommendEmptyCorpusAndEmptySeed(t *testing.T) {
	svc := NewContentService()

	// 索引未构建
	assert.Empty(t, svc.RecommendSimilar(movie(1, "X", nil, "", 2020, 1), 5))

	// 空目录
	svc.BuildIndex(nil)
	assert.Empty(t, svc.RecommendSimilar(movie(1, "X", []string{"Drama"}, "something", 2020, 1), 5))

	// 空种子
	svc.BuildIndex(sciFiCatalog())
	assert.Empty(t, svc.RecommendByTerms(nil, 5))
	assert.Empty(t, svc.RecommendSimilar(nil, 5))
}

func TestRecommendTieBreakByPopularityThenID(t *testing.T) {
	svc := NewContentService()
	// 三部电影对种子的相似度完全一致，只有热度和 ID 不同
	catalog := []*model.MovieRecord{
		movie(10, "Seed", []string{"Horror"}, "", 2020, 1),
		movie(21, "A", []string{"Horror"}, "", 2020, 5),
		movie(22, "B", []string{"Horror"}, "", 2020, 9),
		movie(23, "C", []string{"Horror"}, "", 2020, 5),
	}
	svc.BuildIndex(catalog)

	result := svc.RecommendSimilar(catalog[0], 10)
	require.Len(t, result, 3)
	assert.Equal(t, 22, result[0].MovieID) // 热度最高
	assert.Equal(t, 21, result[1].MovieID) // 热度并列取 ID 小的
	assert.Equal(t, 23, result[2].MovieID)
}

func TestIndexSnapshotSwap(t *testing.T) {
	svc := NewContentService()
	old := svc.BuildIndex(sciFiCatalog()[:2])
	require.Equal(t, 2, svc.Index().Size())

	// 重建后旧快照保持完整，新查询走新快照
	svc.BuildIndex(sciFiCatalog())
	assert.Equal(t, 2, old.Size())
	assert.Equal(t, 6, svc.Index().Size())
}

func TestTokenize(t *testing.T) {
	terms := tokenize("The ship drifts... toward a DYING sun!")
	assert.Equal(t, []string{"ship", "drifts", "toward", "dying", "sun"}, terms)
}
