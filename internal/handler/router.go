package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rescuelog/backend/internal/metrics"
	"github.com/rescuelog/backend/internal/model"
	"github.com/rescuelog/backend/internal/service"
	"github.com/rescuelog/backend/internal/telemetry"
)

type RouterConfig struct {
	ServiceName      string
	AllowedOrigins   []string
	MetricsPath      string
	EnableTestRoutes bool
	Tracing          bool
}

type RouterDeps struct {
	Auth     *service.AuthService
	FirstAid *service.FirstAidService
	Health   *Health
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

func NewRouter(cfg RouterConfig, deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(RequestID(), Recovery(logger))
	if cfg.Tracing {
		router.Use(telemetry.Middleware(cfg.ServiceName))
	}
	router.Use(RequestLogger(logger), CORSMiddleware(cfg.AllowedOrigins, false))

	// 운영용 엔드포인트
	router.GET("/ping", Ping)
	router.GET("/", Root)
	router.GET("/openapi.json", OpenAPIDoc)
	if deps.Health != nil {
		router.GET("/healthz", deps.Health.Liveness)
		router.GET("/readyz", deps.Health.Readiness)
	}
	if deps.Registry != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(metrics.Handler(deps.Registry)))
	}

	authHandler := NewAuthHandler(deps.Auth, logger)
	requireAuth := AuthMiddleware(deps.Auth)

	auth := router.Group("/api/auth")
	auth.POST("/signup", authHandler.Signup)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh-token", authHandler.RefreshToken)
	auth.POST("/logout", requireAuth, authHandler.Logout)
	auth.GET("/me", requireAuth, authHandler.Me)
	if cfg.EnableTestRoutes {
		auth.POST("/delete-test-user", authHandler.DeleteTestUser)
	}

	user := router.Group("/api/user", requireAuth)
	user.GET("/profile", Profile)
	user.GET("/general-info", GeneralInfo)
	user.GET("/doctor-dashboard", RequireRole(model.RoleDoctor), DoctorDashboard)
	user.GET("/admin-panel", RequireRole(model.RoleAdmin), AdminPanel)
	user.PUT("/password", authHandler.ChangePassword)

	admin := router.Group("/api/admin", requireAuth, RequireRole(model.RoleAdmin))
	admin.GET("/dashboard", AdminDashboard)

	if deps.FirstAid != nil {
		firstAidHandler := NewFirstAidHandler(deps.FirstAid, logger)
		router.GET("/api/first-aid", firstAidHandler.ListGuides)
		router.GET("/api/first-aid/:condition", firstAidHandler.GetGuide)
	}

	return router
}
