package service

import (
	"log"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/movierec/internal/model"
	"golang.org/x/sync/singleflight"
)

// UserItemMatrix 用户-物品评分稀疏矩阵
// 只有评分写入路径会改它；单格覆盖写，不同格的写互不阻塞读写锁之外的逻辑
type UserItemMatrix struct {
	mu      sync.RWMutex
	ratings map[int]map[int]float64 // userID -> movieID -> 生效评分
}

func NewUserItemMatrix() *UserItemMatrix {
	return &UserItemMatrix{ratings: make(map[int]map[int]float64)}
}

// Set 写入单格，后写覆盖
func (m *UserItemMatrix) Set(userID, movieID int, rating float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.ratings[userID]
	if !ok {
		row = make(map[int]float64)
		m.ratings[userID] = row
	}
	row[movieID] = rating
}

// Get 读单格
func (m *UserItemMatrix) Get(userID, movieID int) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.ratings[userID][movieID]
	return r, ok
}

// UserRatings 返回某用户评分的拷贝
func (m *UserItemMatrix) UserRatings(userID int) map[int]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row := m.ratings[userID]
	if len(row) == 0 {
		return nil
	}
	out := make(map[int]float64, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// snapshot 整矩阵深拷贝，邻居表重建在拷贝上算，不占着读锁跑 O(n²)
func (m *UserItemMatrix) snapshot() map[int]map[int]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int]map[int]float64, len(m.ratings))
	for u, row := range m.ratings {
		cp := make(map[int]float64, len(row))
		for mv, r := range row {
			cp[mv] = r
		}
		out[u] = cp
	}
	return out
}

// Neighbor 一个相似用户
type Neighbor struct {
	UserID int
	Sim    float64
}

// NeighborTable 邻居表快照，构建后不可变
type NeighborTable struct {
	BuiltAt   time.Time
	neighbors map[int][]Neighbor // 相似度降序
	ratings   map[int]map[int]float64
}

// CollaborativeService 协同过滤推荐
type CollaborativeService struct {
	matrix         *UserItemMatrix
	table          atomic.Pointer[NeighborTable]
	dirty          atomic.Int64 // 上次重建以来的新评分数
	k              int
	staleThreshold int
	rebuildGroup   singleflight.Group
}

func NewCollaborativeService(k, staleThreshold int) *CollaborativeService {
	return &CollaborativeService{
		matrix:         NewUserItemMatrix(),
		k:              k,
		staleThreshold: staleThreshold,
	}
}

// Matrix 暴露矩阵给评分写入路径
func (s *CollaborativeService) Matrix() *UserItemMatrix {
	return s.matrix
}

// ApplyRating 评分写入：单格覆盖 + 置脏
// 不触发同步重建，脏计数过阈值由请求路径异步补
func (s *CollaborativeService) ApplyRating(userID, movieID int, rating float64) {
	s.matrix.Set(userID, movieID, rating)
	s.dirty.Add(1)
}

// StaleCount 上次重建以来累计的新评分数
func (s *CollaborativeService) StaleCount() int64 {
	return s.dirty.Load()
}

// BuildNeighbors 全量重建邻居表并原子切换
// 相似度只在双方共同评分的电影上算，没有交集的用户互不为邻居候选
func (s *CollaborativeService) BuildNeighbors() *NeighborTable {
	ratings := s.matrix.snapshot()

	users := make([]int, 0, len(ratings))
	for u := range ratings {
		users = append(users, u)
	}
	sort.Ints(users)

	table := &NeighborTable{
		BuiltAt:   time.Now(),
		neighbors: make(map[int][]Neighbor, len(users)),
		ratings:   ratings,
	}

	for i := 0; i < len(users); i++ {
		for j := i + 1; j < len(users); j++ {
			sim, ok := coRatedCosine(ratings[users[i]], ratings[users[j]])
			if !ok || sim <= 0 {
				continue
			}
			table.neighbors[users[i]] = append(table.neighbors[users[i]], Neighbor{UserID: users[j], Sim: sim})
			table.neighbors[users[j]] = append(table.neighbors[users[j]], Neighbor{UserID: users[i], Sim: sim})
		}
	}
	for u := range table.neighbors {
		ns := table.neighbors[u]
		sort.Slice(ns, func(a, b int) bool {
			if ns[a].Sim != ns[b].Sim {
				return ns[a].Sim > ns[b].Sim
			}
			return ns[a].UserID < ns[b].UserID
		})
	}

	s.table.Store(table)
	s.dirty.Store(0)
	log.Printf("[Collab] 邻居表构建完成: %d 个用户", len(users))
	return table
}

// coRatedCosine 两个用户在共同评分集上的余弦相似度
// 没有共同评分返回 ok=false
func coRatedCosine(a, b map[int]float64) (float64, bool) {
	var dot, na, nb float64
	co := false
	for movieID, ra := range a {
		rb, ok := b[movieID]
		if !ok {
			continue
		}
		co = true
		dot += ra * rb
		na += ra * ra
		nb += rb * rb
	}
	if !co || na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

// RecommendForUser 给用户做邻居预测
// 冷启动（无评分/无邻居）返回 ErrColdStart，由混合层兜底
func (s *CollaborativeService) RecommendForUser(userID int, topN int) (model.RecommendationResult, error) {
	userRatings := s.matrix.UserRatings(userID)
	if len(userRatings) == 0 {
		return nil, ErrColdStart
	}

	table := s.table.Load()
	if table == nil {
		return nil, ErrColdStart
	}

	neighbors := table.neighbors[userID]
	if len(neighbors) == 0 {
		return nil, ErrColdStart
	}
	if len(neighbors) > s.k {
		neighbors = neighbors[:s.k]
	}

	// 预测分 = Σ(sim·rating) / Σ(sim)，只累计真正评过该片的邻居
	type agg struct{ num, den float64 }
	scores := make(map[int]*agg)
	for _, n := range neighbors {
		for movieID, r := range table.ratings[n.UserID] {
			if _, seen := userRatings[movieID]; seen {
				continue
			}
			a, ok := scores[movieID]
			if !ok {
				a = &agg{}
				scores[movieID] = a
			}
			a.num += n.Sim * r
			a.den += n.Sim
		}
	}

	result := make(model.RecommendationResult, 0, len(scores))
	for movieID, a := range scores {
		if a.den <= 0 {
			continue // 没有邻居贡献的电影不给 0 分，直接排除
		}
		result = append(result, model.ScoredMovie{
			MovieID: movieID,
			Score:   (a.num / a.den) / 10, // 预测评分 [0,10] 归一到 [0,1]
			Source:  model.SourceCollaborative,
		})
	}
	if len(result) == 0 {
		return nil, ErrColdStart
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].MovieID < result[j].MovieID
	})
	if topN > 0 && len(result) > topN {
		result = result[:topN]
	}
	return result, nil
}

// MaybeRebuild 脏计数过阈值时异步重建，singleflight 保证同时只有一个在跑
// 进行中的请求继续用旧快照，这里只记一条告警日志
func (s *CollaborativeService) MaybeRebuild() {
	if s.dirty.Load() < int64(s.staleThreshold) {
		return
	}
	log.Printf("[Collab] 邻居表已落后 %d 条评分，后台重建中，期间继续使用旧快照", s.dirty.Load())
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Collab] 后台重建发生恐慌: %v", r)
			}
		}()
		_, _, _ = s.rebuildGroup.Do("rebuild", func() (interface{}, error) {
			s.BuildNeighbors()
			return nil, nil
		})
	}()
}
