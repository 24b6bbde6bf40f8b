package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"github.com/couchcryptid/wildfire-linker/internal/match"
	"github.com/couchcryptid/wildfire-linker/internal/spatial"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// TargetsPath is the CSV or JSON lines file of zones loaded at startup.
	TargetsPath string
	// ProfilePath is an optional YAML tuning profile.
	ProfilePath string
	// IncludeRejections adds rejected candidates to every linked record.
	IncludeRejections bool
	Match             match.Config

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
// Matching settings start from match.DefaultConfig, then the profile named by
// MATCH_PROFILE_PATH, then individual MATCH_* and INDEX_* variables.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeoutStr := sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s")
	mapboxTimeout, err2 := time.ParseDuration(mapboxTimeoutStr)
	if err2 != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	mapboxCacheSize := parseMapboxCacheSize()

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	profilePath := os.Getenv("MATCH_PROFILE_PATH")
	matchCfg, err := LoadMatch(profilePath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-wildfire-incidents"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "linked-wildfire-incidents"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "wildfire-linker"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		TargetsPath:       os.Getenv("TARGETS_PATH"),
		ProfilePath:       profilePath,
		IncludeRejections: os.Getenv("MATCH_INCLUDE_REJECTIONS") == "true",
		Match:             matchCfg,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: mapboxCacheSize,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.TargetsPath == "" {
		return nil, errors.New("TARGETS_PATH is required")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// LoadMatch builds the matching configuration from defaults, an optional
// profile, and MATCH_* / INDEX_* environment overrides, then validates it.
func LoadMatch(profilePath string) (match.Config, error) {
	cfg := match.DefaultConfig()

	if profilePath != "" {
		p, err := LoadProfile(profilePath)
		if err != nil {
			return match.Config{}, err
		}
		if err := p.Apply(&cfg); err != nil {
			return match.Config{}, err
		}
	}

	if err := applyMatchEnv(&cfg); err != nil {
		return match.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return match.Config{}, fmt.Errorf("match config: %w", err)
	}
	return cfg, nil
}

func applyMatchEnv(cfg *match.Config) error {
	if v := os.Getenv("MATCH_MODE"); v != "" {
		mode, ok := domain.ParseMode(v)
		if !ok {
			return fmt.Errorf("invalid MATCH_MODE %q", v)
		}
		cfg.Mode = mode
	}
	if v := os.Getenv("INDEX_KIND"); v != "" {
		kind := spatial.Kind(v)
		if kind != spatial.KindGrid && kind != spatial.KindRTree {
			return fmt.Errorf("invalid INDEX_KIND %q", v)
		}
		cfg.IndexKind = kind
	}

	var err error
	if cfg.CellSize, err = envFloat("INDEX_CELL_SIZE", cfg.CellSize); err != nil {
		return err
	}
	if cfg.NeighborRadius, err = envInt("INDEX_NEIGHBOR_RADIUS", cfg.NeighborRadius); err != nil {
		return err
	}
	if cfg.MaxDistanceMiles, err = envFloat("MATCH_MAX_DISTANCE_MILES", cfg.MaxDistanceMiles); err != nil {
		return err
	}
	if cfg.Threshold, err = envFloat("MATCH_CONFIDENCE_THRESHOLD", cfg.Threshold); err != nil {
		return err
	}
	if cfg.TemporalDefault, err = envFloat("MATCH_TEMPORAL_DEFAULT", cfg.TemporalDefault); err != nil {
		return err
	}
	if cfg.EnforceBounds, err = envBool("MATCH_ENFORCE_BOUNDS", cfg.EnforceBounds); err != nil {
		return err
	}
	if cfg.Workers, err = envInt("MATCH_WORKERS", cfg.Workers); err != nil {
		return err
	}
	if cfg.ChunkSize, err = envInt("MATCH_CHUNK_SIZE", cfg.ChunkSize); err != nil {
		return err
	}
	return nil
}

func envFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
