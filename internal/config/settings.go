package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
}

func (d DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Name)
}

type RedisConfig struct {
	Addr string `mapstructure:"addr"`
	Pass string `mapstructure:"pass"`
}

type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`
	TokenTTLHours int    `mapstructure:"token_ttl_hours"`
}

// VoiceConfig holds the external speech collaborator endpoints.
type VoiceConfig struct {
	STTURL     string `mapstructure:"stt_url"`
	TTSURL     string `mapstructure:"tts_url"`
	TTSVoice   string `mapstructure:"tts_voice"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

func (v VoiceConfig) Timeout() time.Duration {
	if v.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(v.TimeoutSec) * time.Second
}

// CaptureConfig tunes the VAD-gated recorder.
type CaptureConfig struct {
	SilenceThreshold    float64 `mapstructure:"silence_threshold"`     // 0-255 amplitude scale
	SilenceTimeoutMs    int     `mapstructure:"silence_timeout_ms"`    // continuous silence before auto-stop
	MinRecordingMs      int     `mapstructure:"min_recording_ms"`      // VAD inert before this
	MaxRecordingMs      int     `mapstructure:"max_recording_ms"`      // hard ceiling
	TickMs              int     `mapstructure:"tick_ms"`               // VAD sampling period
	FragmentBufferBytes int     `mapstructure:"fragment_buffer_bytes"` // ring capacity for encoded fragments
}

// PlaybackConfig tunes the chunked TTS playback pipeline.
type PlaybackConfig struct {
	MaxChunkChars int `mapstructure:"max_chunk_chars"`
	MinAudioBytes int `mapstructure:"min_audio_bytes"`
}

type AssistantKeysObj struct {
	OpenAiApiKey string `mapstructure:"open_ai_api_key"`
}

type Settings struct {
	Server        ServerConfig     `mapstructure:"server"`
	DB            DBConfig         `mapstructure:"database"`
	Redis         RedisConfig      `mapstructure:"redis"`
	Auth          AuthConfig       `mapstructure:"auth"`
	Voice         VoiceConfig      `mapstructure:"voice"`
	Capture       CaptureConfig    `mapstructure:"capture"`
	Playback      PlaybackConfig   `mapstructure:"playback"`
	AssistantKeys AssistantKeysObj `mapstructure:"assistantKeys"`
	Env           string           `mapstructure:"env"`
	Debug         bool             `mapstructure:"debug" default:"false"`
}

func Load() (*Settings, error) {
	// Load settings from a configuration file or environment variables
	viper.SetConfigName("config_" + genEnv())
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var settings Settings
	if err := viper.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &settings, nil
}

func genEnv() string {
	env := viper.GetString("ENV")
	if env == "" {
		return "dev"
	}
	return env
}
