package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config carries the process configuration, read from the environment
// with an optional .env file for local development.
type Config struct {
	HTTPAddr string

	MongoURI string
	MongoDB  string

	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTTopicPrefix string

	PollInterval time.Duration
	SimInterval  time.Duration
	SimEnabled   bool

	LogLevel string
}

// Load reads configuration from a .env file (if present) and the
// process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment variables")
	}

	return Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "gaadi_fleet"),

		MQTTBrokerURL:   getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "gaadi-fleet-agent"),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "fleet"),

		PollInterval: getDuration("POLL_INTERVAL", 30*time.Second),
		SimInterval:  getDuration("SIM_INTERVAL", 2*time.Second),
		SimEnabled:   getEnv("SIM_ENABLED", "true") == "true",

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("Invalid duration, using default")
		return fallback
	}
	return d
}
