package router

import (
	"github.com/gin-gonic/gin"
	"github.com/user/movierec/internal/handler"
)

// RegisterRoutes 注册路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	api := r.Group("/api")
	{
		api.GET("/recommendations", h.Recommend)
		api.POST("/ratings", h.RateMovie)
		api.GET("/movies/search", h.SearchMovies)
		api.GET("/movies/trending", h.TrendingMovies)
		api.GET("/movies/:id/similar", h.SimilarTo)
	}
}
