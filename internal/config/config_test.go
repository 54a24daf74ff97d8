package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  env: development\n"))
	require.NoError(t, err)

	assert.True(t, cfg.Dev())
	assert.Equal(t, 8085, cfg.App.Port)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, "sqlite", cfg.Metadata.Driver)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 30*time.Second, cfg.StorageTimeout)
	assert.Equal(t, int64(20*1024*1024), cfg.MaxUploadBytes)
	assert.Equal(t, 100, cfg.Encoder.Quality)
	assert.Equal(t, "admin", cfg.JWT.AdminRole)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 10*time.Second, cfg.PublishTimeout)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 9000
storage:
  driver: s3
  timeout_seconds: 5
aws:
  region: eu-central-1
  bucket: images
kafka:
  brokers: ["k1:9092", "k2:9092"]
  timeout_seconds: 3
`)
	t.Setenv("APP_APP_PORT", "9100")
	t.Setenv("APP_METADATA_SQLITE_PATH", "/tmp/x.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.App.Port)
	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.Equal(t, 5*time.Second, cfg.StorageTimeout)
	assert.Equal(t, "images", cfg.AWS.Bucket)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3*time.Second, cfg.PublishTimeout)
	assert.Equal(t, "/tmp/x.db", cfg.Metadata.SQLite.Path)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown storage": "storage:\n  driver: ftp\n",
		"s3 no bucket":    "storage:\n  driver: s3\n",
		"unknown meta":    "metadata:\n  driver: postgres\n",
		"mongo no uri":    "metadata:\n  driver: mongo\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, DefaultPath, Path())
	t.Setenv("CONFIG_PATH", "/etc/images.yaml")
	assert.Equal(t, "/etc/images.yaml", Path())
}
