package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/huddleapp/huddle/internal/app"
	iauth "github.com/huddleapp/huddle/internal/auth"
	"github.com/huddleapp/huddle/internal/handlers"
	"github.com/huddleapp/huddle/internal/middleware"
	"github.com/huddleapp/huddle/internal/realtime"
	"github.com/huddleapp/huddle/internal/services"
	"github.com/huddleapp/huddle/pkg/mail"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, hub *realtime.Hub, mailer mail.Mailer) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if hub == nil {
		hub = realtime.NewHub()
	}

	notifications, err := services.NewNotificationService(db, hub)
	if err != nil {
		return nil, err
	}
	workspaces, err := services.NewWorkspaceService(db, notifications)
	if err != nil {
		return nil, err
	}
	invites, err := services.NewInviteService(db, workspaces, notifications, mailer,
		services.WithInviteBaseURL(cfg.Server.BaseURL),
		services.WithInviteExpiry(cfg.Invites.Expiry),
	)
	if err != nil {
		return nil, err
	}
	projects, err := services.NewProjectService(db, workspaces, notifications)
	if err != nil {
		return nil, err
	}
	tasks, err := services.NewTaskService(db, workspaces, projects, notifications)
	if err != nil {
		return nil, err
	}
	messages, err := services.NewMessageService(db, workspaces, notifications, hub)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	r.NoRoute(middleware.NotFoundHandler)

	// Health endpoint (public)
	r.GET("/health", handlers.Health())

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler, err := handlers.NewAuthHandler(db, jwt)
	if err != nil {
		return nil, err
	}
	notificationHandler := handlers.NewNotificationHandler(notifications, hub, jwt)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	// The realtime stream authenticates inside the handler because browser
	// WebSocket clients cannot set an Authorization header.
	r.GET("/api/notifications/stream", notificationHandler.Stream)

	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))

	api.GET("/auth/me", authHandler.Me)

	registerNotificationRoutes(api, notificationHandler)
	registerWorkspaceRoutes(api, handlers.NewWorkspaceHandler(workspaces), handlers.NewInviteHandler(invites))
	registerProjectRoutes(api, handlers.NewProjectHandler(projects), handlers.NewTaskHandler(tasks))
	registerThreadRoutes(api, handlers.NewThreadHandler(messages))

	return r, nil
}
