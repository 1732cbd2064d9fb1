package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/schoolgate/schoolgate/internal/app"
	"github.com/schoolgate/schoolgate/internal/app/maintenance"
	iauth "github.com/schoolgate/schoolgate/internal/auth"
	"github.com/schoolgate/schoolgate/internal/handlers"
	"github.com/schoolgate/schoolgate/internal/middleware"
	"github.com/schoolgate/schoolgate/internal/realtime"
	"github.com/schoolgate/schoolgate/internal/services"
)

// Dependencies bundles everything the router needs beyond its own services.
type Dependencies struct {
	DB         *gorm.DB
	Config     *app.Config
	JWT        *iauth.JWTService
	Hub        *realtime.Hub
	Dispatcher services.WorkflowDispatcher
	Purger     *maintenance.Purger
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	userService, err := services.NewUserService(deps.DB)
	if err != nil {
		return nil, err
	}
	classService, err := services.NewClassService(deps.DB)
	if err != nil {
		return nil, err
	}
	studentService, err := services.NewStudentService(deps.DB)
	if err != nil {
		return nil, err
	}
	notificationService, err := services.NewNotificationService(deps.DB, deps.Dispatcher)
	if err != nil {
		return nil, err
	}
	statisticsService, err := services.NewStatisticsService(deps.DB)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RateLimit(middleware.GeneralRateLimit, middleware.RateLimitWindow))

	if deps.Config.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health())
	}
	if deps.Config.Monitoring.Prometheus.Enabled {
		endpoint := deps.Config.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(userService, deps.JWT)
	notificationHandler := handlers.NewNotificationHandler(notificationService, deps.Hub, deps.JWT, deps.Purger)

	// Public routes. The stream endpoint authenticates through its token
	// parameter because browsers cannot set headers on WebSocket dials.
	// Credential endpoints carry a stricter limiter than the rest of the API.
	authLimiter := middleware.RateLimit(middleware.AuthRateLimit, middleware.RateLimitWindow)
	r.POST("/api/auth/login", authLimiter, authHandler.Login)
	r.POST("/api/auth/forgot-password", authLimiter, authHandler.ForgotPassword)
	r.POST("/api/auth/reset-password", authLimiter, authHandler.ResetPassword)
	r.GET("/api/notifications/stream", notificationHandler.Stream)

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	registerAuthRoutes(api, authHandler)
	registerUserRoutes(api, handlers.NewUserHandler(userService))
	registerClassRoutes(api, handlers.NewClassHandler(classService, studentService))
	registerStudentRoutes(api, handlers.NewStudentHandler(studentService))
	registerNotificationRoutes(api, notificationHandler)
	registerStatisticsRoutes(api, handlers.NewStatisticsHandler(statisticsService))

	return r, nil
}
