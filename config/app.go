package config

import (
	"strings"
	"sync"
	"time"
)

var (
	serverOnce   sync.Once
	serverConfig *ServerConfig

	loggerOnce   sync.Once
	loggerConfig *LoggerConfig

	authOnce   sync.Once
	authConfig *AuthConfig

	workerOnce   sync.Once
	workerConfig *WorkerConfig

	storageOnce   sync.Once
	storageConfig *StorageConfig
)

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	Mode           string        `yaml:"mode"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
	SessionTTL     time.Duration `yaml:"sessionTTL"`
	SniffContent   bool          `yaml:"sniffContent"`
}

type LoggerConfig struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"outputPaths"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
	Issuer    string `yaml:"issuer"`
}

type WorkerConfig struct {
	Concurrency int           `yaml:"concurrency"`
	MaxRetry    int           `yaml:"maxRetry"`
	TaskTimeout time.Duration `yaml:"taskTimeout"`
}

type StorageConfig struct {
	Type string `yaml:"type"`
}

func GetServerConfig() *ServerConfig {
	serverOnce.Do(func() {
		fc := loadFile().Server
		origins := fc.AllowedOrigins
		if v := envString("CORS_ALLOWED_ORIGINS", ""); v != "" {
			origins = strings.Split(v, ",")
		}
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000"}
		}
		serverConfig = &ServerConfig{
			Addr:           envString("SERVER_ADDR", orString(fc.Addr, ":8080")),
			Mode:           envString("GIN_MODE", orString(fc.Mode, "release")),
			AllowedOrigins: origins,
			SessionTTL:     envDuration("SESSION_TTL", orDuration(fc.SessionTTL, 2*time.Hour)),
			SniffContent:   envBool("UPLOAD_SNIFF_CONTENT", fc.SniffContent),
		}
	})
	return serverConfig
}

func GetLoggerConfig() *LoggerConfig {
	loggerOnce.Do(func() {
		fc := loadFile().Logger
		loggerConfig = &LoggerConfig{
			Level:       envString("LOG_LEVEL", orString(fc.Level, "info")),
			Encoding:    envString("LOG_ENCODING", orString(fc.Encoding, "json")),
			OutputPaths: fc.OutputPaths,
		}
	})
	return loggerConfig
}

func GetAuthConfig() *AuthConfig {
	authOnce.Do(func() {
		fc := loadFile().Auth
		authConfig = &AuthConfig{
			JWTSecret: envString("JWT_SECRET", fc.JWTSecret),
			Issuer:    envString("JWT_ISSUER", fc.Issuer),
		}
	})
	return authConfig
}

func GetWorkerConfig() *WorkerConfig {
	workerOnce.Do(func() {
		fc := loadFile().Worker
		workerConfig = &WorkerConfig{
			Concurrency: envInt("WORKER_CONCURRENCY", orInt(fc.Concurrency, 5)),
			MaxRetry:    envInt("WORKER_MAX_RETRY", orInt(fc.MaxRetry, 2)),
			TaskTimeout: envDuration("WORKER_TASK_TIMEOUT", orDuration(fc.TaskTimeout, 3*time.Minute)),
		}
	})
	return workerConfig
}

func GetStorageConfig() *StorageConfig {
	storageOnce.Do(func() {
		fc := loadFile().Storage
		storageConfig = &StorageConfig{
			Type: envString("STORAGE_TYPE", orString(fc.Type, "minio")),
		}
	})
	return storageConfig
}
