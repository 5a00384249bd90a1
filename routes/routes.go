package routes

import (
	"github.com/gin-gonic/gin"

	"trend_backend/controllers"
	"trend_backend/middleware"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, sc *controllers.StockController, limiter *middleware.RateLimiter) {
	// Health check endpoints
	router.GET("/health", sc.Health)
	router.GET("/ready", sc.Ready)

	// Dashboard API
	router.POST("/stock_data", sc.GetStockData)
	router.GET("/stocks", sc.GetStocks)
	router.POST("/analyze", sc.Analyze)
	router.GET("/market_status", sc.GetMarketStatus)
	router.GET("/refresh_status", sc.GetRefreshStatus)

	// Endpoints that call the provider synchronously share the rate limit
	onDemand := router.Group("/", limiter.Middleware())
	{
		onDemand.POST("/add_stock", sc.AddStock)
		onDemand.POST("/technical_analysis", sc.GetTechnicalAnalysis)
	}
}
