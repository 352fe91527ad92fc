package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"orgsetup/internal/api/handlers"
	"orgsetup/internal/api/middleware"
	"orgsetup/internal/config"
	"orgsetup/internal/progress"
	"orgsetup/internal/store"
)

type Deps struct {
	Config   *config.Config
	Executor handlers.Submitter
	Store    store.RunStore
	Hub      *progress.Hub
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func SetupRoutes(deps Deps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(middleware.DefaultCORSConfig()))

	authHandler := &handlers.Auth{Admin: deps.Config.Admin, ExpireTime: deps.Config.JWT.ExpireTime}
	runs := &handlers.Runs{Executor: deps.Executor, Store: deps.Store}
	stream := &handlers.Stream{Hub: deps.Hub}

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/login", authHandler.Login)
		v1.GET("/health", handlers.HealthCheck)

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// browsers cannot set headers on an upgrade, so the token comes as ?token=
			protected.GET("/ws/runs", stream.RunEvents)

			r := protected.Group("/runs")
			{
				r.GET("", runs.List)
				r.GET("/active", runs.Active)
				r.POST("/state-country", runs.StartStateCountry)
				r.POST("/email-deliverability", runs.StartEmailDeliverability)
				r.GET("/:id", runs.Get)
				r.GET("/:id/records", runs.Records)
				r.GET("/:id/logs", runs.Logs)
				r.GET("/:id/screenshots/:name", runs.Screenshot)
			}
		}
	}

	return router
}
