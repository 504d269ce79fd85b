package service

import (
	"log"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/user/movierec/internal/model"
)

// 分类信号比文本信号强，类型词权重×3，演员/导演×2（正文与标题×1）
const (
	genreTermWeight    = 3
	castTermWeight     = 2
	directorTermWeight = 2
)

// SimilarityIndex 内容相似度索引快照
// 构建完成后不可变，重建产出新快照原子替换，读到旧快照的请求继续用旧的
type SimilarityIndex struct {
	BuiltAt time.Time
	vectors map[int]map[string]float64 // movieID -> 词 -> TF-IDF 权重
	norms   map[int]float64            // 向量模长，查询时免得反复算
	idf     map[string]float64
	movies  map[int]*model.MovieRecord // 排序与加成要用到的元数据
	docs    int
}

// Size 索引内电影数
func (idx *SimilarityIndex) Size() int {
	if idx == nil {
		return 0
	}
	return len(idx.vectors)
}

// Movie 按 ID 取索引内的电影元数据
func (idx *SimilarityIndex) Movie(movieID int) *model.MovieRecord {
	if idx == nil {
		return nil
	}
	return idx.movies[movieID]
}

// ContentService 基于内容的推荐
type ContentService struct {
	index atomic.Pointer[SimilarityIndex]
}

func NewContentService() *ContentService {
	return &ContentService{}
}

// Index 当前索引快照，可能为 nil（尚未构建）
func (s *ContentService) Index() *SimilarityIndex {
	return s.index.Load()
}

// BuildIndex 从目录全量构建 TF-IDF 索引并原子切换
// 空目录产出空索引而不是报错，查询时自然返回空结果
func (s *ContentService) BuildIndex(catalog []*model.MovieRecord) *SimilarityIndex {
	idx := &SimilarityIndex{
		BuiltAt: time.Now(),
		vectors: make(map[int]map[string]float64, len(catalog)),
		norms:   make(map[int]float64, len(catalog)),
		idf:     make(map[string]float64),
		movies:  make(map[int]*model.MovieRecord, len(catalog)),
		docs:    len(catalog),
	}

	// 1. 词频统计
	termCounts := make(map[int]map[string]float64, len(catalog))
	df := make(map[string]int)
	for _, m := range catalog {
		counts := extractTerms(m)
		termCounts[m.MovieID] = counts
		idx.movies[m.MovieID] = m
		for term := range counts {
			df[term]++
		}
	}

	// 2. IDF
	for term, n := range df {
		idx.idf[term] = math.Log(float64(len(catalog))/float64(1+n)) + 1
	}

	// 3. TF-IDF 向量与模长
	for movieID, counts := range termCounts {
		vec := make(map[string]float64, len(counts))
		var sum float64
		for term, tf := range counts {
			w := tf * idx.idf[term]
			vec[term] = w
			sum += w * w
		}
		idx.vectors[movieID] = vec
		idx.norms[movieID] = math.Sqrt(sum)
	}

	s.index.Store(idx)
	log.Printf("[Content] 索引构建完成: %d 部电影, %d 个词", len(catalog), len(df))
	return idx
}

// extractTerms 从元数据抽取加权词频
func extractTerms(m *model.MovieRecord) map[string]float64 {
	counts := make(map[string]float64)
	add := func(text string, weight float64) {
		for _, term := range tokenize(text) {
			counts[term] += weight
		}
	}

	add(m.Overview, 1)
	add(m.Title, 1)
	for _, g := range m.Genres {
		add(g, genreTermWeight)
	}
	for _, c := range m.Cast {
		add(c, castTermWeight)
	}
	add(m.Director, directorTermWeight)
	return counts
}

// 常见英文停用词，TF-IDF 里留着只会稀释信号
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "he": {}, "her": {}, "his": {}, "in": {},
	"into": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {}, "or": {}, "she": {},
	"that": {}, "the": {}, "their": {}, "them": {}, "they": {}, "this": {}, "to": {},
	"was": {}, "when": {}, "where": {}, "which": {}, "while": {}, "who": {}, "will": {},
	"with": {},
}

// tokenize 小写化后按非字母数字切词，丢掉停用词和单字符
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// vectorize 用当前索引的 IDF 把任意词频转成查询向量
// 种子电影不在索引里也能当查询用，只是它不会出现在结果里
func (idx *SimilarityIndex) vectorize(counts map[string]float64) (map[string]float64, float64) {
	vec := make(map[string]float64, len(counts))
	var sum float64
	for term, tf := range counts {
		idf, ok := idx.idf[term]
		if !ok {
			continue // 语料之外的词对相似度没有贡献
		}
		w := tf * idf
		vec[term] = w
		sum += w * w
	}
	return vec, math.Sqrt(sum)
}

// cosine 稀疏向量余弦相似度，零模长向量相似度为 0
func cosine(a map[string]float64, normA float64, b map[string]float64, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	// 遍历短的那个
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for term, wa := range a {
		if wb, ok := b[term]; ok {
			dot += wa * wb
		}
	}
	return dot / (normA * normB)
}

// RecommendSimilar 找与种子电影相似的电影
func (s *ContentService) RecommendSimilar(seed *model.MovieRecord, topN int) model.RecommendationResult {
	if seed == nil {
		return model.RecommendationResult{}
	}
	return s.recommend(extractTerms(seed), seed.MovieID, topN)
}

// RecommendByTerms 用自由词集当种子（类型/演员过滤也走这里）
func (s *ContentService) RecommendByTerms(terms []string, topN int) model.RecommendationResult {
	counts := make(map[string]float64, len(terms))
	for _, t := range terms {
		for _, term := range tokenize(t) {
			counts[term] += genreTermWeight // 手选的词都是强信号
		}
	}
	return s.recommend(counts, 0, topN)
}

func (s *ContentService) recommend(seedCounts map[string]float64, excludeID, topN int) model.RecommendationResult {
	idx := s.index.Load()
	if idx == nil || idx.Size() == 0 || len(seedCounts) == 0 {
		return model.RecommendationResult{}
	}

	qVec, qNorm := idx.vectorize(seedCounts)
	if qNorm == 0 {
		return model.RecommendationResult{}
	}

	type candidate struct {
		movieID int
		score   float64
	}
	candidates := make([]candidate, 0, idx.Size())
	for movieID, vec := range idx.vectors {
		if movieID == excludeID {
			continue
		}
		sim := cosine(qVec, qNorm, vec, idx.norms[movieID])
		if sim <= 0 {
			continue
		}
		candidates = append(candidates, candidate{movieID: movieID, score: sim})
	}

	// 相似度降序，平分先比人气再比 ID，保证全序确定
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		pi, pj := idx.movies[candidates[i].movieID].Popularity, idx.movies[candidates[j].movieID].Popularity
		if pi != pj {
			return pi > pj
		}
		return candidates[i].movieID < candidates[j].movieID
	})

	if topN > 0 && len(candidates) > topN {
		candidates = candidates[:topN]
	}

	result := make(model.RecommendationResult, 0, len(candidates))
	for _, c := range candidates {
		result = append(result, model.ScoredMovie{
			MovieID: c.movieID,
			Score:   c.score,
			Source:  model.SourceContent,
		})
	}
	return result
}
