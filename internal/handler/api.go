package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/movierec/internal/model"
	"github.com/user/movierec/internal/service"
	"github.com/user/movierec/internal/utils"
)

// Recommend 混合推荐入口
// GET /api/recommendations?user_id=1&n=10&seed_movie_id=550
func (h *Handler) Recommend(c *gin.Context) {
	userID, err := strconv.Atoi(c.Query("user_id"))
	if err != nil || userID <= 0 {
		utils.BadRequest(c, "user_id 必须为正整数")
		return
	}
	topN, _ := strconv.Atoi(c.DefaultQuery("n", "0"))
	seedID, _ := strconv.Atoi(c.DefaultQuery("seed_movie_id", "0"))

	result, err := h.Hybrid.Recommend(c.Request.Context(), userID, model.RecommendContext{SeedMovieID: seedID}, topN)
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.Success(c, result)
}

// RateRequest 评分请求体
type RateRequest struct {
	UserID  int      `json:"user_id" binding:"required,gt=0"`
	MovieID int      `json:"movie_id" binding:"required,gt=0"`
	Rating  *float64 `json:"rating" binding:"required"` // 指针区分 0 分和缺失
}

// RateMovie 评分入口
// POST /api/ratings
func (h *Handler) RateMovie(c *gin.Context) {
	var req RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "请求体不合法: "+err.Error())
		return
	}

	if err := h.Rating.Upsert(c.Request.Context(), req.UserID, req.MovieID, *req.Rating); err != nil {
		h.writeError(c, err)
		return
	}
	utils.Success(c, gin.H{"user_id": req.UserID, "movie_id": req.MovieID})
}

// SimilarTo 内容相似推荐入口
// GET /api/movies/:id/similar?n=10
func (h *Handler) SimilarTo(c *gin.Context) {
	movieID, err := strconv.Atoi(c.Param("id"))
	if err != nil || movieID <= 0 {
		utils.BadRequest(c, "电影 ID 必须为正整数")
		return
	}
	topN, _ := strconv.Atoi(c.DefaultQuery("n", "0"))

	result, err := h.Hybrid.SimilarTo(c.Request.Context(), movieID, topN)
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.Success(c, result)
}

// SearchMovies 搜索/发现电影
// GET /api/movies/search?query=&genre=&year=&min_rating=&actor=
func (h *Handler) SearchMovies(c *gin.Context) {
	query := c.Query("query")
	actor := c.Query("actor")
	year, _ := strconv.Atoi(c.DefaultQuery("year", "0"))
	minRating, _ := strconv.ParseFloat(c.DefaultQuery("min_rating", "0"), 64)
	filters := model.SearchFilters{
		Genre:     c.Query("genre"),
		Year:      year,
		MinRating: minRating,
	}

	if actor != "" {
		refs, err := h.Metadata.SearchByActor(c.Request.Context(), actor, 20)
		if err != nil {
			h.writeError(c, err)
			return
		}
		utils.Success(c, refs)
		return
	}
	if query == "" && filters.Genre == "" && filters.Year == 0 && filters.MinRating == 0 {
		utils.BadRequest(c, "query、actor 或过滤条件至少提供一个")
		return
	}

	refs, err := h.Metadata.Search(c.Request.Context(), query, filters)
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.Success(c, refs)
}

// TrendingMovies 当周热门
// GET /api/movies/trending
func (h *Handler) TrendingMovies(c *gin.Context) {
	movies, err := h.Metadata.Trending(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.Success(c, movies)
}

// writeError 错误分类映射到 HTTP 状态码
func (h *Handler) writeError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	var throttledErr *service.ThrottledError
	var unavailableErr *service.ProviderUnavailableError

	switch {
	case errors.As(err, &validationErr):
		utils.BadRequest(c, validationErr.Error())
	case errors.As(err, &throttledErr):
		c.Header("Retry-After", strconv.Itoa(int(throttledErr.RetryAfter/time.Second)+1))
		utils.TooManyRequests(c, throttledErr.Error())
	case errors.As(err, &unavailableErr):
		utils.ServiceUnavailable(c, unavailableErr.Error())
	case errors.Is(err, context.Canceled):
		utils.Error(c, 499, "请求已被客户端取消")
	case errors.Is(err, context.DeadlineExceeded):
		utils.Error(c, 504, "请求处理超时")
	default:
		utils.InternalServerError(c, "")
	}
}
