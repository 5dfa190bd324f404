package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports whether the backing store is reachable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	Rooms     *RoomHandler
	Occupancy *OccupancyHandler
	Sessions  *SessionHandler
	// Metrics serves GET /metrics when set.
	Metrics            http.Handler
	Observer           RequestObserver
	Health             HealthCheck
	Logger             *slog.Logger
	RateLimitPerMinute int
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	logger := defaultLogger(cfg.Logger)

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(
		RequestLogger(logger, cfg.Observer),
		Recovery(logger),
		RateLimit(cfg.RateLimitPerMinute, logger),
	)

	responder := newResponder(logger)
	router.NoRoute(func(c *gin.Context) {
		responder.writeError(c, http.StatusNotFound, nil)
	})
	router.NoMethod(func(c *gin.Context) {
		responder.writeJSON(c, http.StatusMethodNotAllowed, errorResponse{Message: "許可されていないメソッドです。"})
	})

	router.GET("/healthz", func(c *gin.Context) {
		if cfg.Health != nil {
			if err := cfg.Health(c.Request.Context()); err != nil {
				responder.writeError(c, http.StatusServiceUnavailable, err)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	if cfg.Rooms != nil {
		router.GET("/rooms", cfg.Rooms.List)
		router.POST("/rooms", cfg.Rooms.Create)
		router.GET("/rooms/:number", cfg.Rooms.Get)
		router.PUT("/rooms/:number", cfg.Rooms.Update)
	}

	if cfg.Occupancy != nil {
		router.GET("/occupancy", cfg.Occupancy.Grid)
		router.GET("/availability", cfg.Occupancy.Availability)
	}

	if cfg.Sessions != nil {
		sessions := router.Group("/sessions")
		sessions.POST("", cfg.Sessions.Open)
		sessions.GET("/:id", cfg.Sessions.Get)
		sessions.DELETE("/:id", cfg.Sessions.Discard)
		sessions.POST("/:id/selections", cfg.Sessions.Stage)
		sessions.DELETE("/:id/selections/:selectionID", cfg.Sessions.Unstage)
		sessions.POST("/:id/commit", cfg.Sessions.Commit)
	}

	return router
}
