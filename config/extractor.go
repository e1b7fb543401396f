package config

import (
	"sync"
	"time"
)

var (
	extractorOnce   sync.Once
	extractorConfig *ExtractorConfig
)

type ExtractorConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"apiKey"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"maxTokens"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxPoolSize int           `yaml:"maxPoolSize"`
}

// GetExtractorConfig 未设置的值由 extractor 包填充默认值
func GetExtractorConfig() *ExtractorConfig {
	extractorOnce.Do(func() {
		fc := loadFile().Extractor
		extractorConfig = &ExtractorConfig{
			Endpoint:    envString("EXTRACTOR_ENDPOINT", fc.Endpoint),
			APIKey:      envString("ZHIPU_API_KEY", fc.APIKey),
			Model:       envString("EXTRACTOR_MODEL", fc.Model),
			Temperature: envFloat("EXTRACTOR_TEMPERATURE", fc.Temperature),
			MaxTokens:   envInt("EXTRACTOR_MAX_TOKENS", fc.MaxTokens),
			Timeout:     envDuration("EXTRACTOR_TIMEOUT", fc.Timeout),
			MaxPoolSize: envInt("EXTRACTOR_MAX_POOL_SIZE", fc.MaxPoolSize),
		}
	})
	return extractorConfig
}
