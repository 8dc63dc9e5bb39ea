package main

import (
	"scouthub/internal/handler"
	"scouthub/internal/middleware"
	"scouthub/internal/model"
	"scouthub/internal/tenancy"
	"scouthub/pkg/config"
	"scouthub/pkg/database"
	"scouthub/pkg/jwtutil"
	"scouthub/pkg/logger"
	"scouthub/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// publicRoutes is the single allow-list of routes served without a
// credential or a resolved organization. Declared here, next to the route
// registration below, and owned by the context binder.
var publicRoutes = []string{
	"/health",
	"/metrics",
	"/auth/login",
	"/auth/register",
	"/auth/password-reset",
	"/auth/password-reset/confirm",
	"/auth/verify-email",
	"/domain-lookup",
	"/public/settings",
	"/public/news",
	"/organizations",
	"/organizations/mine",
}

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting scouthub...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Construct the context-resolution core. Everything is passed its
	// dependencies explicitly; there are no ambient singletons.
	tokens := jwtutil.New(&cfg.JWT)
	resolver := tenancy.NewResolver(db, log)
	memberships := tenancy.NewMembershipStore(db)
	binder := middleware.NewContextBinder(tokens, resolver, memberships, publicRoutes)

	// Handlers
	authHandler := handler.NewAuthHandler(db, tokens, cfg)
	orgHandler := handler.NewOrganizationHandler(db, resolver)
	participantHandler := handler.NewParticipantHandler(db)
	publicHandler := handler.NewPublicHandler(db)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())
	e.Use(binder.Middleware)

	// Public routes - every path here must appear in publicRoutes above
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)
	e.GET("/domain-lookup", orgHandler.DomainLookup)
	e.GET("/public/settings", publicHandler.Settings)
	e.GET("/public/news", publicHandler.News)

	auth := e.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/register", authHandler.Register)
	auth.POST("/password-reset", authHandler.RequestPasswordReset)
	auth.POST("/password-reset/confirm", authHandler.ConfirmPasswordReset)
	auth.GET("/verify-email", authHandler.VerifyEmail)

	// Organization bootstrap - needs a verified subject but no resolved
	// tenant yet, so these sit on the allow-list and check identity
	// themselves
	e.POST("/organizations", orgHandler.Create)
	e.GET("/organizations/mine", orgHandler.ListMine)

	// Protected routes - the binder requires a credential and a resolved
	// organization for everything below
	api := e.Group("/api")

	api.GET("/organization", orgHandler.Get,
		middleware.RequireRoles(model.RoleParent, model.RoleStaff, model.RoleAdmin))

	members := api.Group("/members", middleware.RequireRoles(model.RoleAdmin))
	members.POST("", orgHandler.AddMember)
	members.DELETE("/:user_id", orgHandler.RemoveMember)

	bindings := api.Group("/domain-bindings", middleware.RequireRoles(model.RoleAdmin))
	bindings.GET("", orgHandler.ListDomainBindings)
	bindings.POST("", orgHandler.CreateDomainBinding)
	bindings.DELETE("/:id", orgHandler.DeleteDomainBinding)

	participants := api.Group("/participants")
	participants.GET("", participantHandler.List, middleware.RequireRoles(model.RoleStaff, model.RoleAdmin))
	participants.POST("", participantHandler.Create, middleware.RequireRoles(model.RoleStaff, model.RoleAdmin))
	participants.DELETE("/:id", participantHandler.Delete, middleware.RequireRoles(model.RoleStaff, model.RoleAdmin))
	participants.POST("/:id/guardians", participantHandler.AddGuardian, middleware.RequireRoles(model.RoleStaff, model.RoleAdmin))
	// Dual-channel access: staff/admin role or a guardian link, decided in
	// the handler
	participants.GET("/:id", participantHandler.Get)
	participants.PATCH("/:id", participantHandler.Update)

	api.POST("/news", publicHandler.CreateNews,
		middleware.RequireRoles(model.RoleStaff, model.RoleAdmin))

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
