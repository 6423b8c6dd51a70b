package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
)

// TLS version constants
const (
	TLS12 = tls.VersionTLS12
	TLS13 = tls.VersionTLS13
)

// ErrNoCertificates is returned for CA files without a PEM certificate
var ErrNoCertificates = errors.New("no certificates found")

// Recommended TLS 1.2 cipher suites
var RecommendedTLS12CipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// TLSConfig contains server TLS settings
type TLSConfig struct {
	// MinVersion defaults to TLS12
	MinVersion uint16
	// ClientCAFile enables client certificate verification against the
	// CAs in the PEM file
	ClientCAFile string
}

// ParseTLSVersion parses "1.2" or "1.3". An empty string yields TLS12.
func ParseTLSVersion(s string) (uint16, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "tls") {
	case "", "1.2":
		return TLS12, nil
	case "1.3":
		return TLS13, nil
	}
	return 0, fmt.Errorf("unsupported TLS version %q", s)
}

// NewServerTLSConfig creates the TLS configuration of an HTTPS server.
func NewServerTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	minVersion := cfg.MinVersion
	if minVersion == 0 {
		minVersion = TLS12
	}
	tlsConfig := &tls.Config{
		MinVersion:   minVersion,
		MaxVersion:   TLS13,
		CipherSuites: RecommendedTLS12CipherSuites,
		ClientAuth:   tls.NoClientCert,
	}
	if cfg.ClientCAFile != "" {
		pool, err := LoadCertPool(cfg.ClientCAFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return tlsConfig, nil
}

// LoadCertPool reads PEM encoded certificates from path
func LoadCertPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoCertificates)
	}
	return pool, nil
}
