package service

import (
	"context"
	"log"

	"github.com/user/movierec/internal/config"
	"github.com/user/movierec/internal/model"
	"github.com/user/movierec/internal/repository"
)

// Warmup 启动预热：回放评分流重建矩阵，缓存目录建内容索引
// 目录太小就从人气榜灌一批（尽力而为，失败只记日志）
func Warmup(ctx context.Context, repos *repository.Repositories, content *ContentService, collab *CollaborativeService, metadata *MetadataService, cfg *config.Config) {
	// 1. 评分流 -> 用户-物品矩阵（按时间序回放，后到覆盖先到）
	count := 0
	err := repos.Rating.StreamAllRatings(func(ev model.RatingEvent) error {
		collab.Matrix().Set(ev.UserID, ev.MovieID, ev.Rating)
		count++
		return nil
	})
	if err != nil {
		log.Printf("[Warmup] 评分流回放失败: %v", err)
	} else {
		log.Printf("[Warmup] 评分流回放完成: %d 条", count)
	}
	collab.BuildNeighbors()

	// 2. 目录不足先灌人气榜
	catalogSize, err := repos.Movie.Count()
	if err != nil {
		log.Printf("[Warmup] 统计目录失败: %v", err)
	}
	if catalogSize < cfg.MinCatalogSize {
		log.Printf("[Warmup] 目录只有 %d 部电影，从人气榜补充", catalogSize)
		seeded := metadata.SeedCatalog(ctx, 5)
		log.Printf("[Warmup] 人气榜补充 %d 部", seeded)
	}

	// 3. 全量目录 -> 内容索引
	catalog, err := repos.Movie.ListCached()
	if err != nil {
		log.Printf("[Warmup] 读取目录失败: %v", err)
		return
	}
	content.BuildIndex(catalog)
}

// Rebuild 全量重建两套快照，给外部调度器定时调用
// 重建失败不会污染在用快照，旧的继续生效
func Rebuild(repos *repository.Repositories, content *ContentService, collab *CollaborativeService) error {
	catalog, err := repos.Movie.ListCached()
	if err != nil {
		return err
	}
	content.BuildIndex(catalog)
	collab.BuildNeighbors()
	return nil
}
