// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package transport configures TLS for SOAP over HTTPS.

# TLS Configuration

The package recommends TLS 1.3 with fallback to TLS 1.2:

	tlsConfig, err := transport.NewServerTLSConfig(transport.TLSConfig{
	    MinVersion: transport.TLS12,
	})
	srv := &http.Server{Handler: router, TLSConfig: tlsConfig}

For TLS 1.2, the following cipher suites are used:
  - TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384
  - TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256
  - TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384
  - TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256

# Client Certificates

Setting ClientCAFile requires clients to present a certificate issued by
one of the CAs in the PEM file (mutual TLS).

# References

  - RFC 8446 TLS 1.3: https://datatracker.ietf.org/doc/html/rfc8446
  - RFC 9325 Recommendations for Secure Use of TLS: https://datatracker.ietf.org/doc/html/rfc9325
*/
package transport
