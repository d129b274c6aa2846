package app

import (
	"time"

	"github.com/a4sr3s/voxpipe/internal/config"
	"github.com/a4sr3s/voxpipe/internal/domains/transcript"
	"github.com/a4sr3s/voxpipe/internal/domains/user"
	"github.com/a4sr3s/voxpipe/internal/handlers"
	transcriptRepo "github.com/a4sr3s/voxpipe/internal/repository/transcript"
	userRepo "github.com/a4sr3s/voxpipe/internal/repository/user"
	"github.com/a4sr3s/voxpipe/internal/server"
	"github.com/a4sr3s/voxpipe/pkg/Logger"
	"github.com/a4sr3s/voxpipe/pkg/assistant"
	"github.com/a4sr3s/voxpipe/pkg/capture"
	"github.com/a4sr3s/voxpipe/pkg/io/stt"
	"github.com/a4sr3s/voxpipe/pkg/io/tts"
	"github.com/a4sr3s/voxpipe/pkg/playback"
	"github.com/a4sr3s/voxpipe/pkg/prefs"
	"github.com/go-redis/redis"
	"gorm.io/gorm"
)

// App represents the application with all its dependencies
type App struct {
	Config *config.Settings
	Logger *Logger.Logger
	DB     *gorm.DB
	RC     *redis.Client
	// repos
	UserRepo       user.UserRepository
	TranscriptRepo transcript.TranscriptRepository
	ServerDeps     server.Dependencies
}

// NewApp creates a new application instance with all dependencies properly wired
func NewApp(cfg *config.Settings, logger *Logger.Logger, db *gorm.DB, rc *redis.Client) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
		DB:     db,
		RC:     rc,
	}

	if err := app.setupDependencies(); err != nil {
		return nil, err
	}

	return app, nil
}

// setupDependencies initializes all application dependencies
func (a *App) setupDependencies() error {
	a.UserRepo = userRepo.NewGormUserRepo(a.DB)
	a.TranscriptRepo = transcriptRepo.NewGormTranscriptRepo(a.DB)

	jwtSecret := a.Config.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "default-secret-key-change-in-production"
		a.Logger.Warn("JWT secret not configured, using default (not secure for production)")
	}
	tokenTTLHours := a.Config.Auth.TokenTTLHours
	if tokenTTLHours == 0 {
		tokenTTLHours = 24
	}
	userService := user.NewUserService(a.UserRepo, a.Logger, jwtSecret, time.Duration(tokenTTLHours)*time.Hour)

	// per-user preference namespace in redis
	stores := handlers.StoreFactory(func(userID string) prefs.Store {
		return prefs.NewRedisStore(a.RC, "voxpipe:prefs:"+userID+":")
	})

	ttsClient := tts.New(a.Config.Voice.TTSURL)
	ttsClient.Voice = a.Config.Voice.TTSVoice
	ttsClient.Timeout = a.Config.Voice.Timeout()

	voiceDeps := handlers.VoiceDeps{
		CaptureCfg:    a.captureConfig(),
		PlaybackCfg:   a.playbackConfig(),
		MaxChunkChars: a.Config.Playback.MaxChunkChars,
		Stores:        stores,
		STT:           stt.NewClient(a.Config.Voice.STTURL, a.Logger),
		Synth:         ttsClient,
		Responder:     assistant.NewResponder(a.Config.AssistantKeys),
		Transcripts:   a.TranscriptRepo,
	}

	a.ServerDeps = server.NewServerDependencies(userService, stores, voiceDeps, a.Logger, a.Config)
	return nil
}

// captureConfig maps the tunables onto the recorder, falling back to
// the recorder defaults for anything unset.
func (a *App) captureConfig() capture.Config {
	cfg := capture.DefaultConfig()
	c := a.Config.Capture
	if c.SilenceThreshold > 0 {
		cfg.VAD.SilenceThreshold = c.SilenceThreshold
	}
	if c.SilenceTimeoutMs > 0 {
		cfg.VAD.SilenceTimeout = time.Duration(c.SilenceTimeoutMs) * time.Millisecond
	}
	if c.MinRecordingMs > 0 {
		cfg.VAD.MinRecording = time.Duration(c.MinRecordingMs) * time.Millisecond
	}
	if c.MaxRecordingMs > 0 {
		cfg.MaxRecording = time.Duration(c.MaxRecordingMs) * time.Millisecond
	}
	if c.TickMs > 0 {
		cfg.Tick = time.Duration(c.TickMs) * time.Millisecond
	}
	if c.FragmentBufferBytes > 0 {
		cfg.BufferBytes = c.FragmentBufferBytes
	}
	return cfg
}

func (a *App) playbackConfig() playback.Config {
	cfg := playback.DefaultConfig()
	cfg.Voice = a.Config.Voice.TTSVoice
	if a.Config.Playback.MinAudioBytes > 0 {
		cfg.MinAudioBytes = a.Config.Playback.MinAudioBytes
	}
	return cfg
}

// GetServerDependencies returns the server dependencies
func (a *App) GetServerDependencies() server.Dependencies {
	return a.ServerDeps
}
