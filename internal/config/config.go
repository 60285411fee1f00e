// Package config loads all service settings from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	AOIConfigPath string

	// Imagery catalog.
	CatalogBaseURL string
	CatalogToken   string
	CatalogTimeout time.Duration
	LookbackDays   int

	// Classifier artifact.
	ModelPath string

	// Raster processing.
	PatchSize     int
	Stride        int
	SpeckleFilter string
	SpeckleKernel int
	Normalization string
	ConvertToDB   bool

	// Feature extraction and postprocessing.
	FeatureLevel     string
	PostprocessLevel string
	// ConfidenceThreshold overrides the preset's minimum confidence when > 0.
	ConfidenceThreshold float64

	// Scheduler.
	ScheduleInterval    time.Duration
	ScheduleWindowStart int // -1 disables the window
	ScheduleWindowEnd   int
	MaxRetries          int
	BackoffBase         time.Duration
	BackoffCap          time.Duration
	StatePath           string

	// Result sink.
	SinkKind     string // file, kafka, or postgres
	ResultsDir   string
	KafkaBrokers []string
	KafkaTopic   string
	PostgresDSN  string

	// Service surface.
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	catalogTimeout, err := envDuration("CATALOG_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	scheduleInterval, err := envDuration("SCHEDULE_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	backoffBase, err := envDuration("BACKOFF_BASE", time.Second)
	if err != nil {
		return nil, err
	}
	backoffCap, err := envDuration("BACKOFF_CAP", time.Minute)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	patchSize, err := envInt("PATCH_SIZE", 128)
	if err != nil {
		return nil, err
	}
	stride, err := envInt("STRIDE", 64)
	if err != nil {
		return nil, err
	}
	speckleKernel, err := envInt("SPECKLE_KERNEL", 2)
	if err != nil {
		return nil, err
	}
	maxRetries, err := envInt("MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	lookbackDays, err := envInt("LOOKBACK_DAYS", 7)
	if err != nil {
		return nil, err
	}
	windowStart, err := envInt("SCHEDULE_WINDOW_START", -1)
	if err != nil {
		return nil, err
	}
	windowEnd, err := envInt("SCHEDULE_WINDOW_END", -1)
	if err != nil {
		return nil, err
	}
	confidenceThreshold, err := envFloat("CONFIDENCE_THRESHOLD", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AOIConfigPath: envOrDefault("AOI_CONFIG_PATH", "aois.json"),

		CatalogBaseURL: os.Getenv("CATALOG_BASE_URL"),
		CatalogToken:   os.Getenv("CATALOG_TOKEN"),
		CatalogTimeout: catalogTimeout,
		LookbackDays:   lookbackDays,

		ModelPath: envOrDefault("MODEL_PATH", "model.json"),

		PatchSize:     patchSize,
		Stride:        stride,
		SpeckleFilter: envOrDefault("SPECKLE_FILTER", "median"),
		SpeckleKernel: speckleKernel,
		Normalization: envOrDefault("NORMALIZATION", "minmax"),
		ConvertToDB:   envOrDefault("CONVERT_TO_DB", "true") == "true",

		FeatureLevel:        envOrDefault("FEATURE_LEVEL", "standard"),
		PostprocessLevel:    envOrDefault("POSTPROCESS_LEVEL", "standard"),
		ConfidenceThreshold: confidenceThreshold,

		ScheduleInterval:    scheduleInterval,
		ScheduleWindowStart: windowStart,
		ScheduleWindowEnd:   windowEnd,
		MaxRetries:          maxRetries,
		BackoffBase:         backoffBase,
		BackoffCap:          backoffCap,
		StatePath:           envOrDefault("STATE_PATH", "pipeline_state.json"),

		SinkKind:     envOrDefault("SINK_KIND", "file"),
		ResultsDir:   envOrDefault("RESULTS_DIR", "results"),
		KafkaBrokers: parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_SINK_TOPIC", "slick-detections"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CatalogBaseURL == "" {
		return errors.New("CATALOG_BASE_URL is required")
	}
	if c.PatchSize <= 0 {
		return errors.New("PATCH_SIZE must be positive")
	}
	if c.Stride <= 0 || c.Stride > c.PatchSize {
		return errors.New("STRIDE must satisfy 0 < STRIDE <= PATCH_SIZE")
	}
	switch c.SpeckleFilter {
	case "none", "median", "bilateral", "morphological":
	default:
		return fmt.Errorf("unknown SPECKLE_FILTER %q", c.SpeckleFilter)
	}
	switch c.Normalization {
	case "minmax", "zscore":
	default:
		return fmt.Errorf("unknown NORMALIZATION %q", c.Normalization)
	}
	switch c.FeatureLevel {
	case "minimal", "standard", "comprehensive":
	default:
		return fmt.Errorf("unknown FEATURE_LEVEL %q", c.FeatureLevel)
	}
	switch c.PostprocessLevel {
	case "minimal", "standard", "aggressive":
	default:
		return fmt.Errorf("unknown POSTPROCESS_LEVEL %q", c.PostprocessLevel)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold >= 1 {
		return errors.New("CONFIDENCE_THRESHOLD must be in [0, 1)")
	}
	if c.MaxRetries < 0 {
		return errors.New("MAX_RETRIES must not be negative")
	}
	if c.ScheduleInterval <= 0 {
		return errors.New("SCHEDULE_INTERVAL must be positive")
	}
	if c.LookbackDays <= 0 {
		return errors.New("LOOKBACK_DAYS must be positive")
	}
	if (c.ScheduleWindowStart < 0) != (c.ScheduleWindowEnd < 0) {
		return errors.New("SCHEDULE_WINDOW_START and SCHEDULE_WINDOW_END must be set together")
	}

	switch c.SinkKind {
	case "file":
		if c.ResultsDir == "" {
			return errors.New("RESULTS_DIR is required for the file sink")
		}
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required for the kafka sink")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_SINK_TOPIC is required for the kafka sink")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres sink")
		}
	default:
		return fmt.Errorf("unknown SINK_KIND %q", c.SinkKind)
	}

	return nil
}

// WindowEnabled reports whether a run window is configured.
func (c *Config) WindowEnabled() bool {
	return c.ScheduleWindowStart >= 0 && c.ScheduleWindowEnd >= 0
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
