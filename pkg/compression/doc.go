// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package compression provides gzip Content-Encoding for SOAP over HTTP.

Large SOAP envelopes compress well. The middleware accepts gzip encoded
request bodies and compresses replies for clients that send an
Accept-Encoding header allowing gzip.

# Middleware

Wrap the SOAP router:

	compressor := compression.NewCompressor()
	handler := compressor.Middleware(router)

Requests with Content-Encoding gzip are decoded before the router reads
them; any other encoding except identity is rejected with 415. Replies are
compressed when the client accepts gzip, unless the reply is empty (202
Accepted for one-way operations) or its content type is already
compressed.

# Writers

gzip writers are pooled per Compressor and reset for every reply. A
Compressor created with an invalid level leaves replies uncompressed.

# Content Type Detection

Not compressed (already compressed):
  - application/gzip
  - application/zip
  - image/jpeg, image/png

# References

  - HTTP Semantics, Content-Encoding: https://datatracker.ietf.org/doc/html/rfc9110#section-8.4
  - GZIP RFC 1952: https://datatracker.ietf.org/doc/html/rfc1952
*/
package compression
