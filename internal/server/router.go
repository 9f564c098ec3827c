package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"guardian-gateway/internal/authflow"
	"guardian-gateway/internal/backend"
	"guardian-gateway/internal/handler"
	"guardian-gateway/internal/hub"
	"guardian-gateway/internal/metrics"
	"guardian-gateway/internal/middleware"
	"guardian-gateway/internal/model"
	"guardian-gateway/internal/realtime"
	"guardian-gateway/internal/session"
	"guardian-gateway/internal/store"
)

type Deps struct {
	Session   *session.Store
	Cache     *store.Store
	Backend   *backend.Client
	Flow      *authflow.Service
	Transport *realtime.Transport
	Hub       *hub.Hub

	// Metrics and Gatherer are optional; /metrics is only mounted with a Gatherer.
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer

	LoginLimiter *middleware.RateLimiter
	Version      string
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	versionHandler := &handler.VersionHandler{Version: deps.Version}
	r.GET("/v1/version", versionHandler.Check)

	loginLimiter := deps.LoginLimiter
	if loginLimiter == nil {
		loginLimiter = middleware.NewRateLimiter(10, time.Minute)
	}
	var denials middleware.DenyRecorder
	if deps.Metrics != nil {
		denials = deps.Metrics
	}
	limited := middleware.RateLimitMiddleware(loginLimiter, denials)

	authHandler := &handler.AuthHandler{Flow: deps.Flow, Session: deps.Session}
	r.POST("/v1/auth/login", limited, authHandler.Login)
	r.POST("/v1/auth/signup", limited, authHandler.Signup)
	r.POST("/v1/auth/robot/login", limited, authHandler.RobotLogin)

	sessionHandler := &handler.SessionHandler{Session: deps.Session, Transport: deps.Transport}
	r.GET("/v1/redirect", sessionHandler.Redirect)

	protected := r.Group("/v1")
	protected.Use(middleware.RequireSession(deps.Session))
	protected.GET("/session", sessionHandler.Get)
	protected.POST("/auth/refresh", authHandler.Refresh)
	protected.POST("/auth/logout", authHandler.Logout)

	guardians := middleware.RequireRole(model.RoleWorker, model.RoleFamily)

	robotHandler := &handler.RobotHandler{Backend: deps.Backend}
	protected.GET("/robots/:id/status", robotHandler.Status)
	protected.POST("/robots/:id/commands", guardians, robotHandler.Command)
	protected.GET("/robots/:id/lcd", robotHandler.LCD)
	protected.POST("/robots/:id/emergency", robotHandler.Emergency)

	elderHandler := &handler.ElderHandler{Backend: deps.Backend}
	protected.GET("/elders/:id", guardians, elderHandler.Get)
	protected.GET("/elders/:id/robot", guardians, elderHandler.Robot)

	emergencyHandler := &handler.EmergencyHandler{Backend: deps.Backend}
	protected.GET("/emergencies", guardians, emergencyHandler.List)
	protected.GET("/emergencies/:id", guardians, emergencyHandler.Get)
	protected.PATCH("/emergencies/:id/resolve", guardians, emergencyHandler.Resolve)

	notificationHandler := &handler.NotificationHandler{Backend: deps.Backend, Cache: deps.Cache}
	protected.GET("/notifications", notificationHandler.List)
	protected.GET("/notifications/recent", notificationHandler.Recent)
	protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
	protected.PATCH("/notifications/read-all", notificationHandler.MarkAllRead)
	protected.PATCH("/notifications/:id/read", notificationHandler.MarkRead)

	settingsHandler := &handler.SettingsHandler{Backend: deps.Backend, Cache: deps.Cache}
	protected.GET("/settings", settingsHandler.Get)
	protected.PATCH("/settings", settingsHandler.Update)

	realtimeHandler := &handler.RealtimeHandler{Transport: deps.Transport}
	protected.POST("/realtime/reconnect", realtimeHandler.Reconnect)

	wsHandler := &handler.WebSocketHandler{Hub: deps.Hub, Transport: deps.Transport}
	r.GET("/ws", middleware.RequireSession(deps.Session), wsHandler.Serve)

	return r
}
