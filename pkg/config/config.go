package config

import (
	"fmt"
	"strings"
	"time"

	"callmesh-backend/pkg/constants"
	"callmesh-backend/pkg/env"
)

// Config holds all configuration for the signaling service
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cassandra CassandraConfig
	MinIO     MinIOConfig
	JWT       JWTConfig
	Push      PushConfig
	Log       LogConfig
	Signaling SignalingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port        int
	Environment string // development, staging, production
	ServiceName string
}

// DatabaseConfig holds CockroachDB configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// CassandraConfig holds Cassandra configuration
type CassandraConfig struct {
	Hosts       []string
	Keyspace    string
	Consistency string
	Timeout     time.Duration
}

// MinIOConfig holds MinIO configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// PushConfig holds push notification configuration
type PushConfig struct {
	Provider           string // fcm, apns, mock
	FCMProjectID       string
	FCMCredentialsPath string
	APNsKeyPath        string
	APNsKeyID          string
	APNsTeamID         string
	APNsBundleID       string
	APNsProduction     bool
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string // debug, info, warn, error
	Format   string // json, text
	Output   string // stdout, file
	FilePath string
}

// SignalingConfig holds call signaling configuration
type SignalingConfig struct {
	// RingTimeout is how long a one-to-one call may stay ringing; zero disables the reaper
	RingTimeout time.Duration
	// ReapInterval is how often the reaper scans for expired ringing calls
	ReapInterval time.Duration
	// MaxConnections caps concurrent signaling WebSocket connections
	MaxConnections int
	// SendBuffer is the per-connection outbound event buffer size
	SendBuffer int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        env.GetInt("PORT", 8083),
			Environment: env.GetString("ENV", "development"),
			ServiceName: env.GetString("SERVICE_NAME", "signaling-service"),
		},
		Database: DatabaseConfig{
			Host:     env.GetString("DB_HOST", "localhost"),
			Port:     env.GetInt("DB_PORT", 26257),
			User:     env.GetString("DB_USER", "root"),
			Password: env.GetStringFromFile("DB_PASSWORD", ""),
			Database: env.GetString("DB_NAME", "callmesh"),
			SSLMode:  env.GetString("DB_SSL_MODE", "disable"),
			MaxConns: env.GetInt("DB_MAX_CONNS", 25),
			MinConns: env.GetInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     env.GetString("REDIS_HOST", "localhost"),
			Port:     env.GetInt("REDIS_PORT", 6379),
			Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
			DB:       env.GetInt("REDIS_DB", 0),
			PoolSize: env.GetInt("REDIS_POOL_SIZE", 10),
			Timeout:  time.Duration(env.GetInt("REDIS_TIMEOUT", 5)) * time.Second,
		},
		Cassandra: CassandraConfig{
			Hosts:       splitHosts(env.GetString("CASSANDRA_HOSTS", "localhost")),
			Keyspace:    env.GetString("CASSANDRA_KEYSPACE", "callmesh"),
			Consistency: env.GetString("CASSANDRA_CONSISTENCY", "QUORUM"),
			Timeout:     time.Duration(env.GetInt("CASSANDRA_TIMEOUT", 600)) * time.Millisecond,
		},
		MinIO: MinIOConfig{
			Endpoint:  env.GetString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env.GetStringFromFile("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env.GetStringFromFile("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:    env.GetBool("MINIO_USE_SSL", false),
			Bucket:    env.GetString("MINIO_BUCKET", "callmesh-avatars"),
		},
		JWT: JWTConfig{
			Secret:             env.GetStringFromFile("JWT_SECRET", ""),
			AccessTokenExpiry:  env.GetDuration("JWT_ACCESS_EXPIRY", constants.AccessTokenExpiry),
			RefreshTokenExpiry: env.GetDuration("JWT_REFRESH_EXPIRY", 30*24*time.Hour),
		},
		Push: PushConfig{
			Provider:           env.GetString("PUSH_PROVIDER", "mock"),
			FCMProjectID:       env.GetString("FCM_PROJECT_ID", ""),
			FCMCredentialsPath: env.GetString("FCM_CREDENTIALS_PATH", ""),
			APNsKeyPath:        env.GetString("APNS_KEY_PATH", ""),
			APNsKeyID:          env.GetStringFromFile("APNS_KEY_ID", ""),
			APNsTeamID:         env.GetStringFromFile("APNS_TEAM_ID", ""),
			APNsBundleID:       env.GetString("APNS_BUNDLE_ID", "com.callmesh.app"),
			APNsProduction:     env.GetBool("APNS_PRODUCTION", false),
		},
		Log: LogConfig{
			Level:    env.GetString("LOG_LEVEL", "info"),
			Format:   env.GetString("LOG_FORMAT", "json"),
			Output:   env.GetString("LOG_OUTPUT", "stdout"),
			FilePath: env.GetString("LOG_FILE_PATH", "/logs/app.log"),
		},
		Signaling: SignalingConfig{
			RingTimeout:    env.GetDuration("SIGNALING_RING_TIMEOUT", constants.DefaultRingTimeout),
			ReapInterval:   env.GetDuration("SIGNALING_REAP_INTERVAL", constants.ReapInterval),
			MaxConnections: env.GetInt("WS_MAX_SIGNALING_CONNECTIONS", constants.MaxSignalingConnections),
			SendBuffer:     env.GetInt("WS_CLIENT_SEND_BUFFER", constants.ClientSendBuffer),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Environment == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
		if c.Push.Provider == "mock" {
			return fmt.Errorf("PUSH_PROVIDER=mock is not allowed in production")
		}
	}

	if c.Signaling.SendBuffer <= 0 {
		return fmt.Errorf("WS_CLIENT_SEND_BUFFER must be positive")
	}

	return nil
}

func splitHosts(value string) []string {
	parts := strings.Split(value, ",")
	hosts := make([]string, 0, len(parts))
	for _, p := range parts {
		if h := strings.TrimSpace(p); h != "" {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) == 0 {
		return []string{"localhost"}
	}
	return hosts
}
