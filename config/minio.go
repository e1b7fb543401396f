package config

import (
	"sync"
)

var (
	minioOnce   sync.Once
	minioConfig *MinioConfig
)

type MinioConfig struct {
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	Endpoint   string `yaml:"endpoint"`
	UseSSL     bool   `yaml:"useSSL"`
	Region     string `yaml:"region"`
	BucketName string `yaml:"bucketName"`
}

func GetMinioConfig() *MinioConfig {
	minioOnce.Do(func() {
		fc := loadFile().Minio
		minioConfig = &MinioConfig{
			AccessKey:  envString("MINIO_ACCESS_KEY", fc.AccessKey),
			SecretKey:  envString("MINIO_SECRET_KEY", fc.SecretKey),
			Endpoint:   envString("MINIO_ENDPOINT", orString(fc.Endpoint, "localhost:9000")),
			UseSSL:     envBool("MINIO_USE_SSL", fc.UseSSL),
			Region:     envString("MINIO_REGION", fc.Region),
			BucketName: envString("MINIO_BUCKET_NAME", orString(fc.BucketName, "certificates")),
		}
	})
	return minioConfig
}
