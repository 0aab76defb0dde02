package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"voiceprint-server/pkg/errors"
)

// Config represents the complete application configuration
type Config struct {
	Logging      LoggingConfig      `json:"logging"`
	Audio        AudioConfig        `json:"audio"`
	Pitch        PitchConfig        `json:"pitch"`
	Embedding    EmbeddingConfig    `json:"embedding"`
	Verification VerificationConfig `json:"verification"`
	Database     DatabaseConfig     `json:"database"`
	Metrics      MetricsConfig      `json:"metrics"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level" env:"LOG_LEVEL" default:"info"`
	Format string `json:"format" env:"LOG_FORMAT" default:"text"`
}

// AudioConfig holds preprocessing parameters
type AudioConfig struct {
	// TargetSampleRate is the canonical analysis rate in Hz
	TargetSampleRate int `json:"target_sample_rate" env:"AUDIO_TARGET_SAMPLE_RATE" default:"16000"`

	// TargetLoudnessDB is the RMS normalization target in dBFS
	TargetLoudnessDB float64 `json:"target_loudness_db" env:"AUDIO_TARGET_LOUDNESS_DB" default:"-23"`

	// VAD parameters
	VADFrameSize    int     `json:"vad_frame_size" env:"AUDIO_VAD_FRAME_SIZE" default:"2048"`
	VADHopSize      int     `json:"vad_hop_size" env:"AUDIO_VAD_HOP_SIZE" default:"512"`
	VADRMSThreshold float64 `json:"vad_rms_threshold" env:"AUDIO_VAD_RMS_THRESHOLD" default:"0.02"`
}

// PitchConfig holds the F0 search ranges per audio category
type PitchConfig struct {
	SpokenMinHz float64 `json:"spoken_min_hz" env:"PITCH_SPOKEN_MIN_HZ" default:"75"`
	SpokenMaxHz float64 `json:"spoken_max_hz" env:"PITCH_SPOKEN_MAX_HZ" default:"500"`
	SungMinHz   float64 `json:"sung_min_hz" env:"PITCH_SUNG_MIN_HZ" default:"50"`
	SungMaxHz   float64 `json:"sung_max_hz" env:"PITCH_SUNG_MAX_HZ" default:"1000"`
}

// EmbeddingConfig holds speaker embedding parameters
type EmbeddingConfig struct {
	// Dimension is the fixed embedding vector length
	Dimension int `json:"dimension" env:"EMBEDDING_DIMENSION" default:"256"`

	// MinEnrollmentSamples is the minimum sample count accepted at enrollment
	MinEnrollmentSamples int `json:"min_enrollment_samples" env:"EMBEDDING_MIN_ENROLLMENT_SAMPLES" default:"3"`
}

// VerificationConfig holds identity verification parameters
type VerificationConfig struct {
	// MatchThreshold is the minimum similarity (0-100) to declare a match
	MatchThreshold float64 `json:"match_threshold" env:"VERIFICATION_MATCH_THRESHOLD" default:"70"`

	// LivenessQualityThreshold is the minimum probe quality for liveness
	LivenessQualityThreshold float64 `json:"liveness_quality_threshold" env:"VERIFICATION_LIVENESS_QUALITY_THRESHOLD" default:"50"`
}

// DatabaseConfig holds signature store configuration
type DatabaseConfig struct {
	// Path to the sqlite database file; empty selects the in-memory store
	Path string `json:"path" env:"DATABASE_PATH" default:"voiceprint.db"`
}

// MetricsConfig holds prometheus exposure configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" env:"METRICS_ENABLED" default:"true"`
	Address string `json:"address" env:"METRICS_ADDRESS" default:":9090"`
}

// Load loads the configuration from environment variables, consulting a
// .env file first when one is present
func Load(logger *logrus.Logger) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logger.Info("Loaded configuration from .env file")
	}

	cfg := &Config{
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Audio: AudioConfig{
			TargetSampleRate: getEnvInt("AUDIO_TARGET_SAMPLE_RATE", 16000),
			TargetLoudnessDB: getEnvFloat("AUDIO_TARGET_LOUDNESS_DB", -23),
			VADFrameSize:     getEnvInt("AUDIO_VAD_FRAME_SIZE", 2048),
			VADHopSize:       getEnvInt("AUDIO_VAD_HOP_SIZE", 512),
			VADRMSThreshold:  getEnvFloat("AUDIO_VAD_RMS_THRESHOLD", 0.02),
		},
		Pitch: PitchConfig{
			SpokenMinHz: getEnvFloat("PITCH_SPOKEN_MIN_HZ", 75),
			SpokenMaxHz: getEnvFloat("PITCH_SPOKEN_MAX_HZ", 500),
			SungMinHz:   getEnvFloat("PITCH_SUNG_MIN_HZ", 50),
			SungMaxHz:   getEnvFloat("PITCH_SUNG_MAX_HZ", 1000),
		},
		Embedding: EmbeddingConfig{
			Dimension:            getEnvInt("EMBEDDING_DIMENSION", 256),
			MinEnrollmentSamples: getEnvInt("EMBEDDING_MIN_ENROLLMENT_SAMPLES", 3),
		},
		Verification: VerificationConfig{
			MatchThreshold:           getEnvFloat("VERIFICATION_MATCH_THRESHOLD", 70),
			LivenessQualityThreshold: getEnvFloat("VERIFICATION_LIVENESS_QUALITY_THRESHOLD", 50),
		},
		Database: DatabaseConfig{
			// An explicitly empty path selects the in-memory store, so
			// unset and empty must be told apart here
			Path: getEnvAllowEmpty("DATABASE_PATH", "voiceprint.db"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Address: getEnv("METRICS_ADDRESS", ":9090"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for inconsistent values
func (c *Config) Validate() error {
	if c.Audio.TargetSampleRate < 8000 {
		return errors.New(fmt.Sprintf("target sample rate %d is below 8000 Hz", c.Audio.TargetSampleRate)).
			WithCode("INVALID_CONFIG")
	}
	if c.Audio.VADFrameSize <= 0 || c.Audio.VADHopSize <= 0 {
		return errors.New("VAD frame and hop sizes must be positive").WithCode("INVALID_CONFIG")
	}
	if c.Audio.VADHopSize > c.Audio.VADFrameSize {
		return errors.New("VAD hop size must not exceed frame size").WithCode("INVALID_CONFIG")
	}
	if c.Pitch.SpokenMinHz >= c.Pitch.SpokenMaxHz || c.Pitch.SungMinHz >= c.Pitch.SungMaxHz {
		return errors.New("pitch search range minimum must be below maximum").WithCode("INVALID_CONFIG")
	}
	if c.Embedding.Dimension <= 0 {
		return errors.New("embedding dimension must be positive").WithCode("INVALID_CONFIG")
	}
	if c.Embedding.MinEnrollmentSamples < 1 {
		return errors.New("minimum enrollment sample count must be at least 1").WithCode("INVALID_CONFIG")
	}
	if c.Verification.MatchThreshold < 0 || c.Verification.MatchThreshold > 100 {
		return errors.New("verification match threshold must be within [0,100]").WithCode("INVALID_CONFIG")
	}
	return nil
}

// SetupLogger applies the logging configuration to a logrus logger
func (c *Config) SetupLogger(logger *logrus.Logger) {
	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(c.Logging.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// Helper function to get an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Helper function to get a string environment variable where an explicitly
// empty value is meaningful
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// Helper function to get a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(value) {
	case "true", "yes", "1", "on":
		return true
	case "false", "no", "0", "off":
		return false
	default:
		return defaultValue
	}
}

// Helper function to get an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// Helper function to get a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatValue
}
