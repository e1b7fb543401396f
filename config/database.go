package config

import (
	"sync"
)

var (
	databaseOnce   sync.Once
	databaseConfig *DatabaseConfig

	redisOnce   sync.Once
	redisConfig *RedisConfig
)

type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Name         string `yaml:"name"`
	SSLMode      string `yaml:"sslMode"`
	MaxOpenConns int    `yaml:"maxOpenConns"`
	MaxIdleConns int    `yaml:"maxIdleConns"`
	AutoMigrate  bool   `yaml:"autoMigrate"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func GetDatabaseConfig() *DatabaseConfig {
	databaseOnce.Do(func() {
		fc := loadFile().Database
		databaseConfig = &DatabaseConfig{
			Host:         envString("DB_HOST", orString(fc.Host, "localhost")),
			Port:         envInt("DB_PORT", orInt(fc.Port, 5432)),
			User:         envString("DB_USER", orString(fc.User, "postgres")),
			Password:     envString("DB_PASSWORD", fc.Password),
			Name:         envString("DB_NAME", orString(fc.Name, "certificates")),
			SSLMode:      envString("DB_SSLMODE", orString(fc.SSLMode, "disable")),
			MaxOpenConns: envInt("DB_MAX_OPEN_CONNS", orInt(fc.MaxOpenConns, 20)),
			MaxIdleConns: envInt("DB_MAX_IDLE_CONNS", orInt(fc.MaxIdleConns, 5)),
			AutoMigrate:  envBool("DB_AUTO_MIGRATE", fc.AutoMigrate),
		}
	})
	return databaseConfig
}

func GetRedisConfig() *RedisConfig {
	redisOnce.Do(func() {
		fc := loadFile().Redis
		redisConfig = &RedisConfig{
			Addr:     envString("REDIS_ADDR", orString(fc.Addr, "localhost:6379")),
			Password: envString("REDIS_PASSWORD", fc.Password),
			DB:       envInt("REDIS_DB", fc.DB),
		}
	})
	return redisConfig
}
