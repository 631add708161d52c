package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DefaultConfig aggregate ---

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	// Each sub-config should be non-zero
	assert.NotEqual(t, ServerConfig{}, cfg.Server)
	assert.NotEqual(t, OriginConfig{}, cfg.Origin)
	assert.NotEqual(t, PipelineConfig{}, cfg.Pipeline)
	assert.NotEqual(t, LogConfig{}, cfg.Log)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
	// TLS is disabled by default, but ClientTimeout keeps it non-zero
	assert.NotEqual(t, TLSConfig{}, cfg.TLS)
}

// --- Individual Default*Config functions ---

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9091, cfg.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.AllowQueryAPIKey)
	assert.InDelta(t, 200, cfg.RateLimitRPS, 0.001)
	assert.Equal(t, 400, cfg.RateLimitBurst)
}

func TestDefaultOriginConfig(t *testing.T) {
	cfg := DefaultOriginConfig()
	assert.Equal(t, "localhost:8081", cfg.Address)
	assert.Equal(t, "http", cfg.Scheme)
	assert.Equal(t, 10*time.Second, cfg.DialTimeout)
	assert.Equal(t, 30*time.Second, cfg.ResponseHeaderTimeout)
	assert.Equal(t, 32, cfg.MaxIdleConnsPerHost)
}

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()
	assert.Equal(t, 32*1024, cfg.ReadChunkSize)
	assert.Equal(t, 16*1024, cfg.BufferPoolCapacity)
	assert.Equal(t, 5*time.Second, cfg.TearDownGrace)
	assert.InDelta(t, 0, cfg.ReadRateLimitBytesPerSec, 0.001)
	assert.Equal(t, 4, cfg.PermitChannelCapacity)
}

func TestDefaultTLSConfig(t *testing.T) {
	cfg := DefaultTLSConfig()
	assert.False(t, cfg.Enabled)
	assert.Empty(t, cfg.CertFile)
	assert.Empty(t, cfg.KeyFile)
	assert.Equal(t, 30*time.Second, cfg.ClientTimeout)
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
	assert.True(t, cfg.EnableCaller)
	assert.False(t, cfg.EnableStacktrace)
}

func TestDefaultTelemetryConfig(t *testing.T) {
	cfg := DefaultTelemetryConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, "streamrelay", cfg.ServiceName)
	assert.InDelta(t, 0.1, cfg.SampleRate, 0.001)
}
