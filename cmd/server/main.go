package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 确保在精简镜像中也能识别时区

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/user/movierec/internal/config"
	"github.com/user/movierec/internal/handler"
	"github.com/user/movierec/internal/middleware"
	"github.com/user/movierec/internal/repository"
	"github.com/user/movierec/internal/router"
	"github.com/user/movierec/internal/service"
	"github.com/user/movierec/internal/utils"
)

func main() {
	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	// 初始化数据库
	db, err := repository.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	// 初始化仓库与缓存
	repos := repository.NewRepositories(db)
	utils.InitCache()

	// 组装推荐核心，令牌桶在客户端按出网请求计费
	limiter := service.NewRequestLimiter(cfg.RateLimitTokens, cfg.RateLimitWindow, cfg.RateLimitMaxWait)
	provider := service.NewTMDBClient(cfg, limiter)
	metadata := service.NewMetadataService(provider, repos.Movie, cfg)
	content := service.NewContentService()
	collab := service.NewCollaborativeService(cfg.KNeighbors, cfg.StaleThreshold)
	hybrid := service.NewHybridService(content, collab, metadata, repos.Movie, cfg)
	rating := service.NewRatingService(repos.Rating, collab)

	// 启动预热：回放评分流、构建两套快照
	warmupCtx, cancelWarmup := context.WithTimeout(context.Background(), 60*time.Second)
	service.Warmup(warmupCtx, repos, content, collab, metadata, cfg)
	cancelWarmup()

	// 初始化 Gin
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// 启用 gzip，默认压缩级别
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(middleware.Logger())

	// 注册路由
	h := handler.NewHandler(hybrid, rating, metadata, cfg)
	router.RegisterRoutes(r, h)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// 在 goroutine 中启动服务器，这样我们就可以监听信号
	go func() {
		log.Printf("服务器启动于 http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("正在关闭服务器...")

	// 5 秒超时上下文用于关闭过程
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("服务器强制关闭:", err)
	}

	log.Println("服务器已退出")
}
