package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.True(t, cfg.Database.Transactions)
	assert.Equal(t, time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 800*time.Millisecond, cfg.Client.DebounceDelay)
}

func TestLoadFile_OverridesAndEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  address: ":9090"
database:
  driver: mongo
  uri: mongodb://db:27017
  transactions: true
jwt:
  expiration: 30m
client:
  debounce_delay: 250ms
`), 0o600))
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := LoadFile(file)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, DriverMongo, cfg.Database.Driver)
	assert.Equal(t, "mongodb://db:27017", cfg.Database.URI)
	assert.True(t, cfg.Database.Transactions)
	assert.Equal(t, 30*time.Minute, cfg.JWT.Expiration)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 250*time.Millisecond, cfg.Client.DebounceDelay)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	base := Config{Database: DatabaseConfig{Driver: DriverSQLite, Path: "x.db"}, JWT: JWTConfig{Secret: "s"}}
	require.NoError(t, base.Validate())

	noSecret := base
	noSecret.JWT.Secret = ""
	assert.Error(t, noSecret.Validate())

	unknown := base
	unknown.Database.Driver = "postgres"
	assert.Error(t, unknown.Validate())

	mongoNoURI := base
	mongoNoURI.Database = DatabaseConfig{Driver: DriverMongo, Name: "db", Transactions: true}
	assert.Error(t, mongoNoURI.Validate())

	mongoNoTx := base
	mongoNoTx.Database = DatabaseConfig{Driver: DriverMongo, URI: "mongodb://db:27017", Name: "db"}
	assert.ErrorContains(t, mongoNoTx.Validate(), "database.transactions")

	mongoNoTx.Database.Transactions = true
	assert.NoError(t, mongoNoTx.Validate())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}
