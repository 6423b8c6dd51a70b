// Package config handles configuration loading for the SOAP host.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax), so that secrets such as the
// token signing key can be injected at runtime.
//
// # Configuration Sections
//
//   - server: HTTP server settings (port, timeouts, TLS, compression)
//   - endpoints: one entry per served path with its encoders and quotas
//   - rateLimit: request rate shared by all endpoints
//   - oauth2: bearer token validation (issuer, audience, JWKS URL)
//   - observability: metrics endpoint and log level
//
// # Example Configuration
//
//	server:
//	  port: 8080
//	  gzip: true
//
//	endpoints:
//	  - path: /PingService.svc
//	    service: ping
//	    caseInsensitive: true
//	    encoders:
//	      - version: soap11
//	      - version: soap12
//	        maxMessageSize: 1048576
//
//	oauth2:
//	  issuer: https://auth.example.com
//	  audience: https://soap.example.com
//	  jwksUrl: https://auth.example.com/.well-known/jwks.json
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirosfoundation/go-soap/pkg/encoder"
	"github.com/sirosfoundation/go-soap/pkg/message"
	"github.com/sirosfoundation/go-soap/pkg/serialization"
	"github.com/sirosfoundation/go-soap/pkg/transport"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Endpoints []EndpointConfig `yaml:"endpoints"`
	RateLimit RateLimitConfig  `yaml:"rateLimit"`
	OAuth2    OAuth2Config     `yaml:"oauth2"`
	Metrics   MetricsConfig    `yaml:"observability"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// Gzip enables gzip Content-Encoding for requests and replies
	Gzip bool `yaml:"gzip"`
	TLS  struct {
		Enabled  bool   `yaml:"enabled"`
		CertFile string `yaml:"certFile"`
		KeyFile  string `yaml:"keyFile"`
		// MinVersion is 1.2 or 1.3
		MinVersion string `yaml:"minVersion"`
		// ClientCAFile enables mutual TLS
		ClientCAFile string `yaml:"clientCAFile"`
	} `yaml:"tls"`
}

// EndpointConfig describes one served path
type EndpointConfig struct {
	Path string `yaml:"path"`
	// Service names a service registered with the host
	Service         string `yaml:"service"`
	CaseInsensitive bool   `yaml:"caseInsensitive"`
	// TrailingPath accepts request paths ending with Path, as sent through
	// gateways that add a prefix
	TrailingPath bool `yaml:"trailingPath"`
	// Convention is datacontract or xmlserializer
	Convention  string            `yaml:"convention"`
	FaultStatus int               `yaml:"faultStatus"`
	Namespaces  map[string]string `yaml:"namespaces"`
	// Auth requires a bearer token on every operation of the endpoint
	Auth bool `yaml:"auth"`
	// DuplicateWindow rejects requests repeating a WS-Addressing MessageID
	// received within the window; zero disables the check
	DuplicateWindow time.Duration   `yaml:"duplicateWindow"`
	Encoders        []EncoderConfig `yaml:"encoders"`
}

// EncoderConfig describes one message encoder of an endpoint
type EncoderConfig struct {
	// Version is none, soap11 or soap12, optionally suffixed with wsa10
	// or wsa2004
	Version            string                `yaml:"version"`
	Encoding           string                `yaml:"encoding"`
	MaxMessageSize     int64                 `yaml:"maxMessageSize"`
	BufferSize         int                   `yaml:"bufferSize"`
	OmitXMLDeclaration bool                  `yaml:"omitXmlDeclaration"`
	Binding            string                `yaml:"binding"`
	Port               string                `yaml:"port"`
	Quotas             *encoder.ReaderQuotas `yaml:"quotas"`
}

// RateLimitConfig bounds the request rate. A zero rate disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
	// PerClient keeps one bucket per remote address instead of a global one
	PerClient bool          `yaml:"perClient"`
	IdleTTL   time.Duration `yaml:"idleTTL"`
}

// OAuth2Config holds bearer token settings
type OAuth2Config struct {
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
	JWKSUrl  string `yaml:"jwksUrl"`
	// Secret is an HMAC key accepted instead of JWKS, for development
	Secret string `yaml:"secret"`
	// Scope is required in the scope claim when set
	Scope string `yaml:"scope"`
}

// MetricsConfig holds observability settings
type MetricsConfig struct {
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse reads configuration from YAML data
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	for i := range c.Endpoints {
		ep := &c.Endpoints[i]
		if ep.Convention == "" {
			ep.Convention = serialization.DataContract.String()
		}
		if ep.FaultStatus == 0 {
			ep.FaultStatus = http.StatusInternalServerError
		}
		if len(ep.Encoders) == 0 {
			ep.Encoders = []EncoderConfig{{Version: "soap11"}}
		}
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = max(1, int(c.RateLimit.RequestsPerSecond))
	}
	if c.RateLimit.IdleTTL == 0 {
		c.RateLimit.IdleTTL = 10 * time.Minute
	}
	if c.Metrics.Metrics.Path == "" {
		c.Metrics.Metrics.Path = "/metrics"
	}
	if c.Metrics.Logging.Level == "" {
		c.Metrics.Logging.Level = "info"
	}
	if c.Metrics.Logging.Format == "" {
		c.Metrics.Logging.Format = "text"
	}
}

func (c *Config) validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required")
	}

	if tlsCfg := c.Server.TLS; tlsCfg.Enabled {
		if tlsCfg.CertFile == "" || tlsCfg.KeyFile == "" {
			return fmt.Errorf("server.tls requires certFile and keyFile")
		}
		if _, err := transport.ParseTLSVersion(tlsCfg.MinVersion); err != nil {
			return fmt.Errorf("server.tls.minVersion: %w", err)
		}
	}

	paths := make(map[string]bool)
	for i, ep := range c.Endpoints {
		if !strings.HasPrefix(ep.Path, "/") {
			return fmt.Errorf("endpoints[%d].path must start with '/', got '%s'", i, ep.Path)
		}
		if paths[ep.Path] {
			return fmt.Errorf("endpoints[%d].path '%s' is configured twice", i, ep.Path)
		}
		paths[ep.Path] = true

		if ep.Service == "" {
			return fmt.Errorf("endpoints[%d].service is required", i)
		}
		if _, err := serialization.ParseConvention(ep.Convention); err != nil {
			return fmt.Errorf("endpoints[%d].convention: %w", i, err)
		}
		if ep.FaultStatus < 200 || ep.FaultStatus > 599 {
			return fmt.Errorf("endpoints[%d].faultStatus must be an HTTP status, got %d", i, ep.FaultStatus)
		}
		if ep.DuplicateWindow < 0 {
			return fmt.Errorf("endpoints[%d].duplicateWindow must not be negative", i)
		}
		for j, enc := range ep.Encoders {
			if _, err := message.ParseVersion(enc.Version); err != nil {
				return fmt.Errorf("endpoints[%d].encoders[%d].version: %w", i, j, err)
			}
			if enc.MaxMessageSize < 0 || enc.BufferSize < 0 {
				return fmt.Errorf("endpoints[%d].encoders[%d]: sizes must not be negative", i, j)
			}
		}
		if ep.Auth && !c.OAuth2.Enabled() {
			return fmt.Errorf("endpoints[%d].auth requires oauth2.jwksUrl or oauth2.secret", i)
		}
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rateLimit.requestsPerSecond must not be negative")
	}

	switch strings.ToLower(c.Metrics.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("observability.logging.level must be 'debug', 'info', 'warn' or 'error', got '%s'", c.Metrics.Logging.Level)
	}
	switch c.Metrics.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("observability.logging.format must be 'text' or 'json', got '%s'", c.Metrics.Logging.Format)
	}

	return nil
}

// Enabled reports whether bearer tokens can be validated
func (o *OAuth2Config) Enabled() bool {
	return o.JWKSUrl != "" || o.Secret != ""
}

// MessageVersion returns the parsed message version
func (e EncoderConfig) MessageVersion() (message.Version, error) {
	return message.ParseVersion(e.Version)
}

// Options returns the encoder options described by the configuration
func (e EncoderConfig) Options() []encoder.Option {
	var opts []encoder.Option
	if e.Encoding != "" {
		opts = append(opts, encoder.WithEncoding(e.Encoding))
	}
	if e.MaxMessageSize > 0 {
		opts = append(opts, encoder.WithMaxMessageSize(e.MaxMessageSize))
	}
	if e.BufferSize > 0 {
		opts = append(opts, encoder.WithBufferSize(e.BufferSize))
	}
	if e.OmitXMLDeclaration {
		opts = append(opts, encoder.WithOmitXMLDeclaration(true))
	}
	if e.Binding != "" || e.Port != "" {
		opts = append(opts, encoder.WithBinding(e.Binding, e.Port))
	}
	if e.Quotas != nil {
		opts = append(opts, encoder.WithReaderQuotas(*e.Quotas))
	}
	return opts
}
