package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database     DatabaseConfig     `yaml:"database"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Redis        RedisConfig        `yaml:"redis"`
	FreightWatch FreightWatchConfig `yaml:"freightwatch"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	PointTransitionTopicName string `yaml:"point_transition_topic_name"`
	SyncRequestedTopicName   string `yaml:"sync_requested_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type FreightWatchConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	TripCacheTTLSeconds int   `yaml:"trip_cache_ttl_seconds"`

	WorkerPollIntervalSeconds int `yaml:"worker_poll_interval_seconds"`
	WorkerTripLimit           int `yaml:"worker_trip_limit"`
	WorkerConcurrency         int `yaml:"worker_concurrency"`
	WorkerRateLimitPerMinute  int `yaml:"worker_rate_limit_per_minute"`

	// Monitoring thresholds (optional). Zeros fall back to regulator-mandated
	// defaults: 1 m geofence, 5/10 no-signal attempts, 24 h appointment gap.
	GeofenceToleranceMeters        float64 `yaml:"geofence_tolerance_meters"`
	NoTrackWarnAttempts            int     `yaml:"no_track_warn_attempts"`
	NoTrackNoveltyAttempts         int     `yaml:"no_track_novelty_attempts"`
	AppointmentBreachMinGapMinutes int     `yaml:"appointment_breach_min_gap_minutes"`

	BridgeBaseURL string `yaml:"bridge_base_url"`
	BridgeMode    string `yaml:"bridge_mode"` // "http" | "fake"
	BridgeAPIKey  string `yaml:"bridge_api_key"`

	// "pg" reads gps_tracks from the shared database, "fake" is for dev runs.
	TelemetryMode string `yaml:"telemetry_mode"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
