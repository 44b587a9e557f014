package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Matchmaking MatchmakingConfig
	Tournament  TournamentConfig
	Kafka       KafkaConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Path          string
	MigrationsURL string
}

// MatchmakingConfig tunes the queue. The rating band starts at Base and
// widens by Growth for every second the oldest entry has waited; both 0
// means every pair of entries is compatible.
type MatchmakingConfig struct {
	SweepInterval    time.Duration
	RatingBandBase   int
	RatingBandGrowth int
	DefaultPartySize int
}

type TournamentConfig struct {
	MinRosterSize  int
	MaxRosterSize  int
	AutoStartDelay time.Duration
	MatchTimeout   time.Duration
	SweepInterval  time.Duration
}

// KafkaConfig enables the Kafka notifier when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Path:          getEnv("DB_PATH", "arena.db"),
			MigrationsURL: getEnv("MIGRATIONS_URL", "file://migrations"),
		},
		Matchmaking: MatchmakingConfig{
			SweepInterval:    getEnvAsDuration("QUEUE_SWEEP_INTERVAL", 2*time.Second),
			RatingBandBase:   getEnvAsInt("RATING_BAND_BASE", 100),
			RatingBandGrowth: getEnvAsInt("RATING_BAND_GROWTH", 10),
			DefaultPartySize: getEnvAsInt("DEFAULT_PARTY_SIZE", 2),
		},
		Tournament: TournamentConfig{
			MinRosterSize:  getEnvAsInt("MIN_ROSTER_SIZE", 2),
			MaxRosterSize:  getEnvAsInt("MAX_ROSTER_SIZE", 64),
			AutoStartDelay: getEnvAsDuration("AUTO_START_DELAY", 5*time.Second),
			MatchTimeout:   getEnvAsDuration("MATCH_TIMEOUT", 30*time.Minute),
			SweepInterval:  getEnvAsDuration("TOURNAMENT_SWEEP_INTERVAL", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsSlice("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "arena-events"),
		},
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a duration or returns a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsSlice splits a comma-separated environment variable; empty yields nil
func getEnvAsSlice(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	parts := strings.Split(valueStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
