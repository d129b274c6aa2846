package server

import (
	"github.com/a4sr3s/voxpipe/internal/config"
	"github.com/a4sr3s/voxpipe/internal/domains/user"
	"github.com/a4sr3s/voxpipe/internal/handlers"
	"github.com/a4sr3s/voxpipe/pkg/Logger"
	"github.com/gin-gonic/gin"
)

// Dependencies carries the services the routes are built from.
type Dependencies struct {
	UserService user.UserService
	Stores      handlers.StoreFactory
	VoiceDeps   handlers.VoiceDeps
	Logger      *Logger.Logger
	Configs     *config.Settings
}

func NewServerDependencies(
	userService user.UserService,
	stores handlers.StoreFactory,
	voiceDeps handlers.VoiceDeps,
	logger *Logger.Logger,
	cfg *config.Settings,
) Dependencies {
	return Dependencies{
		UserService: userService,
		Stores:      stores,
		VoiceDeps:   voiceDeps,
		Logger:      logger,
		Configs:     cfg,
	}
}

func InitializeRoutes(cfg *config.Settings, r *gin.Engine, dep Dependencies) {
	r.Use(handlers.ErrorHandlerMiddleware(dep.Logger))
	r.Use(handlers.CORSMiddleware())
	r.Use(handlers.RequestLoggerMiddleware(dep.Logger))

	r.GET("/", func(ctx *gin.Context) { ctx.JSON(200, gin.H{"message": "Server healthy"}) })
	r.GET("/health", func(ctx *gin.Context) { ctx.JSON(200, gin.H{"status": "ok"}) })

	userHandler := handlers.NewUserHandler(dep.UserService, dep.Logger)
	prefsHandler := handlers.NewSpeechPrefsHandler(dep.Stores, dep.Logger)
	voiceHandler := handlers.NewVoiceHandler(dep.VoiceDeps, dep.Logger)

	auth := r.Group("/auth")
	{
		auth.POST("/register", userHandler.Register)
		auth.POST("/login", userHandler.Login)
		auth.POST("/refresh", userHandler.RefreshToken)
	}

	v1 := r.Group("/v1")
	v1.Use(handlers.AuthMiddleware(dep.UserService, dep.Logger))
	{
		v1.GET("/user/profile", userHandler.GetProfile)

		speech := v1.Group("/speech")
		{
			speech.GET("/prefs", prefsHandler.GetPrefs)
			speech.PUT("/prefs", prefsHandler.UpdatePrefs)
			speech.GET("/history", voiceHandler.History)
			speech.GET("/stream", voiceHandler.Stream)
		}
	}
}
