// Package server assembles the HTTP surface of the API.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "tally/internal/docs" // swagger spec registration
	"tally/internal/handlers"
	"tally/internal/ledger"
	"tally/internal/middleware"
	"tally/internal/services"
)

// Deps are the services the router dispatches to.
type Deps struct {
	Users      services.UserServicer
	Categories services.CategoryServicer
	Settings   services.SettingsServicer
	Audit      services.AuditServicer
	Entries    ledger.EntryServicer
	Stats      ledger.StatsServicer
}

// NewRouter builds the gin engine with middleware and all API routes.
func NewRouter(deps Deps) *gin.Engine {
	authHandler := handlers.NewAuthHandler(deps.Users, deps.Audit)
	categoryHandler := handlers.NewCategoryHandler(deps.Categories, deps.Audit)
	settingsHandler := handlers.NewSettingsHandler(deps.Settings, deps.Audit)
	entryHandler := handlers.NewEntryHandler(deps.Entries, deps.Audit)
	statsHandler := handlers.NewStatsHandler(deps.Stats)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(cors())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetUserCategories)
	categories.DELETE("", categoryHandler.DeleteCategory)

	protected.GET("/settings", settingsHandler.GetSettings)
	protected.PUT("/settings", settingsHandler.UpdateSettings)

	entries := protected.Group("/entries")
	entries.POST("", entryHandler.CreateEntry)
	entries.GET("", entryHandler.GetEntries)
	entries.GET("/:id", entryHandler.GetEntry)
	entries.DELETE("/:id", entryHandler.DeleteEntry)

	stats := protected.Group("/stats")
	stats.GET("/balance", statsHandler.GetBalance)
	stats.GET("/categories", statsHandler.GetCategoryBreakdown)

	history := protected.Group("/history")
	history.GET("/periods", statsHandler.GetAvailableYears)
	history.GET("/data", statsHandler.GetTimeSeries)

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
