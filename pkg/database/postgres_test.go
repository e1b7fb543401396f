package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feichai0017/certificate-processor/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host: "db", Port: 5432, User: "cert", Password: "secret", Name: "awards", SSLMode: "disable",
	})
	assert.Equal(t, "host=db port=5432 user=cert password=secret dbname=awards sslmode=disable", dsn)
}
