package config

import (
	"sync"
)

var (
	s3Once   sync.Once
	s3Config *S3Config
)

type S3Config struct {
	BucketName   string `yaml:"bucketName"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"accessKey"`
	SecretKey    string `yaml:"secretKey"`
	UsePathStyle bool   `yaml:"usePathStyle"`
}

func GetS3Config() *S3Config {
	s3Once.Do(func() {
		fc := loadFile().S3
		s3Config = &S3Config{
			BucketName:   envString("AWS_S3_BUCKET_NAME", fc.BucketName),
			Region:       envString("AWS_REGION", fc.Region),
			Endpoint:     envString("AWS_ENDPOINT", fc.Endpoint),
			AccessKey:    envString("AWS_ACCESS_KEY", fc.AccessKey),
			SecretKey:    envString("AWS_SECRET_KEY", fc.SecretKey),
			UsePathStyle: envBool("AWS_S3_USE_PATH_STYLE", fc.UsePathStyle),
		}
	})
	return s3Config
}
