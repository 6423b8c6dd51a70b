// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package encoder reads and writes SOAP messages for one message version and
character encoding.

An [Encoder] is immutable once created and may serve any number of
concurrent requests. Several encoders can be registered on one endpoint, for
example one for SOAP 1.1 and one for SOAP 1.2; the dispatcher picks the one
whose content type matches the request.

# Content Types

	SOAP 1.1   text/xml; charset=utf-8
	SOAP 1.2   application/soap+xml; charset=utf-8
	None       application/xml; charset=utf-8 (text/xml also accepted)

A request without a charset parameter is assumed to use the write encoding
of the encoder.

# Reading

Messages are decoded with a streaming XML reader that enforces
[ReaderQuotas] while the document is built, so oversized or deeply nested
input is rejected before it is held in memory. DTDs are rejected.

# Writing

Messages are written through a pooled chunk writer: XML text is collected
in a character buffer, converted to the target encoding chunk by chunk and
handed to the sink only when the byte buffer is full or the message is
complete. The encoding preamble (byte order mark) is written once per
message. The XML declaration is left out only for UTF-8 when requested.
*/
package encoder
