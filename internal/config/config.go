// Package config loads the coordinator's runtime configuration from the environment, with an optional .env file
// loaded first so local development doesn't need exported shell variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

func init() {
	_ = godotenv.Load()
}

// Config holds every tunable the coordinator needs to dial its collaborators and run its control plane.
type Config struct {
	MQTT     MQTTConfig
	Mongo    MongoConfig
	SMTP     SMTPConfig
	HTTPAddr string
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Host         string
	Port         int
	UseTLS       bool
	Username     string
	Password     string
	ClientID     string
	CleanSession bool
}

// MongoConfig configures the persistence/directory/threshold store.
type MongoConfig struct {
	URI    string
	DBName string
}

// SMTPConfig configures the outbound mail gateway.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Load reads configuration from the process environment, applying defaults for anything unset.
func Load() (Config, error) {
	mqttPort, err := intEnv("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}

	smtpPort, err := intEnv("SMTP_PORT", 587)
	if err != nil {
		return Config{}, err
	}

	return Config{
		MQTT: MQTTConfig{
			Host:         stringEnv("MQTT_HOST", "localhost"),
			Port:         mqttPort,
			UseTLS:       boolEnv("MQTT_TLS", false),
			Username:     os.Getenv("MQTT_USERNAME"),
			Password:     os.Getenv("MQTT_PASSWORD"),
			ClientID:     stringEnv("MQTT_CLIENT_ID", "telemetrymon"),
			CleanSession: boolEnv("MQTT_CLEAN_SESSION", true),
		},
		Mongo: MongoConfig{
			URI:    stringEnv("MONGO_URI", "mongodb://localhost:27017"),
			DBName: stringEnv("MONGO_DB", "telemetrymon"),
		},
		SMTP: SMTPConfig{
			Host:     stringEnv("SMTP_HOST", "localhost"),
			Port:     smtpPort,
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     stringEnv("SMTP_FROM", "alerts@telemetrymon.local"),
		},
		HTTPAddr: stringEnv("HTTP_ADDR", ":8080"),
	}, nil
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return n, nil
}
