package api

import (
	"github.com/gin-gonic/gin"
	"github.com/vibelog/backend/internal/api/handler"
	"github.com/vibelog/backend/internal/api/middleware"
	"github.com/vibelog/backend/internal/logger"
	"github.com/vibelog/backend/internal/service"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Pipeline  *service.Pipeline
	Vibelogs  *service.VibelogService
	Narration *service.NarrationService
	Reactions *service.ReactionService
	Comments  *service.CommentService
	Profiles  *service.ProfileService
	Brain     *service.BrainService
	Feeds     *service.FeedService
	Admin     *service.AdminConfigService
	Costs     *service.CostGuard
	Limiter   *service.RateLimiter
}

// RouterConfig holds the transport-level settings.
type RouterConfig struct {
	Mode         string
	CORS         middleware.CORSConfig
	Auth         *middleware.Authenticator
	Logger       *logger.Logger
	HealthChecks map[string]handler.Pinger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svc *Services, cfg RouterConfig) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler(cfg.HealthChecks)
	uploadHandler := handler.NewUploadHandler(svc.Pipeline)
	vibelogHandler := handler.NewVibelogHandler(svc.Vibelogs, svc.Narration)
	reactionHandler := handler.NewReactionHandler(svc.Reactions)
	commentHandler := handler.NewCommentHandler(svc.Comments)
	profileHandler := handler.NewProfileHandler(svc.Profiles)
	brainHandler := handler.NewBrainHandler(svc.Brain)
	feedHandler := handler.NewFeedHandler(svc.Feeds)
	adminHandler := handler.NewAdminHandler(svc.Admin, svc.Costs)

	auth := cfg.Auth
	breaker := middleware.CircuitBreaker(svc.Costs)
	limit := func(endpoint string) gin.HandlerFunc {
		return middleware.RateLimit(svc.Limiter, endpoint)
	}

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Paid AI endpoints. The breaker runs before the limiter.
		v1.POST("/uploads/presign", auth.RequireAuth(), limit("upload"), uploadHandler.Presign)
		v1.POST("/uploads", breaker, auth.RequireAuth(), limit("upload"), uploadHandler.Upload)
		v1.POST("/transcribe", breaker, auth.OptionalAuth(), limit("transcribe"), uploadHandler.Transcribe)
		v1.POST("/generate", breaker, auth.OptionalAuth(), limit("generate"), uploadHandler.Generate)

		// Vibelogs
		vibelogs := v1.Group("/vibelogs")
		{
			vibelogs.GET("", auth.OptionalAuth(), vibelogHandler.List)
			vibelogs.GET("/:id", auth.OptionalAuth(), vibelogHandler.Get)
			vibelogs.GET("/:id/translations", auth.OptionalAuth(), vibelogHandler.Translations)
			vibelogs.GET("/:id/related", breaker, auth.OptionalAuth(), limit("related"), vibelogHandler.Related)
			vibelogs.PATCH("/:id", auth.RequireAuth(), vibelogHandler.Update)
			vibelogs.POST("/:id/regenerate", breaker, auth.RequireAuth(), limit("generate"), vibelogHandler.Regenerate)
			vibelogs.POST("/:id/cover", breaker, auth.RequireAuth(), limit("cover"), vibelogHandler.Cover)
			vibelogs.POST("/:id/narration", breaker, auth.RequireAuth(), limit("narration"), vibelogHandler.Narration)

			// Comments
			vibelogs.GET("/:id/comments", auth.OptionalAuth(), commentHandler.List)
			vibelogs.POST("/:id/comments", auth.RequireAuth(), commentHandler.Create)
		}
		v1.DELETE("/comments/:id", auth.RequireAuth(), commentHandler.Delete)

		// Reactions
		v1.GET("/reactions/:type/:id", auth.OptionalAuth(), reactionHandler.Summary)
		v1.POST("/reactions", auth.RequireAuth(), limit("reactions"), reactionHandler.Add)
		v1.DELETE("/reactions", auth.RequireAuth(), limit("reactions"), reactionHandler.Remove)

		// Profile
		me := v1.Group("/me", auth.RequireAuth())
		{
			me.GET("", profileHandler.Me)
			me.PATCH("", profileHandler.Update)
			me.POST("/voice-sample", profileHandler.VoiceSample)
		}

		// Vibe Brain
		v1.POST("/brain/chat", breaker, auth.RequireAuth(), limit("brain_chat"), brainHandler.Chat)

		// Feeds
		feeds := v1.Group("/feeds")
		{
			feeds.GET("/rss.xml", feedHandler.RSS)
			feeds.GET("/atom.xml", feedHandler.Atom)
			feeds.GET("/feed.json", feedHandler.JSON)
		}

		// Admin
		admin := v1.Group("/admin", auth.RequireAuth(), middleware.RequireAdmin(svc.Profiles))
		{
			admin.GET("/config", adminHandler.ListConfig)
			admin.GET("/config/:key", adminHandler.GetConfig)
			admin.PUT("/config/:key", adminHandler.PutConfig)
			admin.GET("/costs", adminHandler.Costs)
		}
	}

	return r
}
