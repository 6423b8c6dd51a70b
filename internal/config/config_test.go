package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirosfoundation/go-soap/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: 9090
  gzip: true
endpoints:
  - path: /PingService.svc
    service: ping
    caseInsensitive: true
    namespaces:
      tem: http://tempuri.org/
    encoders:
      - version: soap11
      - version: soap12-wsa10
        maxMessageSize: 1048576
        quotas:
          maxDepth: 16
          maxArrayLength: 100
  - path: /Calculator.svc
    service: calculator
    convention: xmlserializer
    auth: true
    duplicateWindow: 5m
oauth2:
  issuer: https://auth.example.com
  secret: ${TEST_SOAP_SECRET}
rateLimit:
  requestsPerSecond: 20
`

func TestParse(t *testing.T) {
	t.Setenv("TEST_SOAP_SECRET", "s3cr3t")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.Gzip)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "s3cr3t", cfg.OAuth2.Secret)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.Equal(t, "/metrics", cfg.Metrics.Metrics.Path)

	require.Len(t, cfg.Endpoints, 2)
	ping := cfg.Endpoints[0]
	assert.Equal(t, "DataContract", ping.Convention)
	assert.Equal(t, 500, ping.FaultStatus)
	assert.Equal(t, map[string]string{"tem": "http://tempuri.org/"}, ping.Namespaces)
	require.Len(t, ping.Encoders, 2)

	v, err := ping.Encoders[1].MessageVersion()
	require.NoError(t, err)
	assert.Equal(t, message.Soap12WSAddressing10, v)
	require.NotNil(t, ping.Encoders[1].Quotas)
	assert.Equal(t, 16, ping.Encoders[1].Quotas.MaxDepth)
	assert.Len(t, ping.Encoders[1].Options(), 2)
	assert.Empty(t, ping.Encoders[0].Options())

	calc := cfg.Endpoints[1]
	assert.Equal(t, "xmlserializer", calc.Convention)
	assert.Equal(t, 5*time.Minute, calc.DuplicateWindow)
	require.Len(t, calc.Encoders, 1)
	assert.Equal(t, "soap11", calc.Encoders[0].Version)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soapd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoints:\n  - path: /a\n    service: ping\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no endpoints", "server:\n  port: 1\n", "at least one endpoint"},
		{"relative path", "endpoints:\n  - path: a\n    service: s\n", "must start with '/'"},
		{"duplicate path", "endpoints:\n  - path: /a\n    service: s\n  - path: /a\n    service: t\n", "configured twice"},
		{"no service", "endpoints:\n  - path: /a\n", "service is required"},
		{"convention", "endpoints:\n  - path: /a\n    service: s\n    convention: json\n", "convention"},
		{"version", "endpoints:\n  - path: /a\n    service: s\n    encoders:\n      - version: soap13\n", "version"},
		{"fault status", "endpoints:\n  - path: /a\n    service: s\n    faultStatus: 42\n", "faultStatus"},
		{"duplicate window", "endpoints:\n  - path: /a\n    service: s\n    duplicateWindow: -1s\n", "duplicateWindow"},
		{"auth without keys", "endpoints:\n  - path: /a\n    service: s\n    auth: true\n", "requires oauth2"},
		{"tls files", "server:\n  tls:\n    enabled: true\nendpoints:\n  - path: /a\n    service: s\n", "certFile and keyFile"},
		{"tls version", "server:\n  tls:\n    enabled: true\n    certFile: c\n    keyFile: k\n    minVersion: \"1.0\"\nendpoints:\n  - path: /a\n    service: s\n", "minVersion"},
		{"log level", "endpoints:\n  - path: /a\n    service: s\nobservability:\n  logging:\n    level: loud\n", "logging.level"},
		{"yaml", "endpoints: [", "parsing config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
