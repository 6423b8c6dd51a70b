// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package mime handles multipart/related packaging of SOAP messages.

SOAP with Attachments (SwA) and MTOM carry the envelope as the root part of
a multipart/related body. The dispatcher uses this package to locate the
root part, hand it to the message encoder and expose the remaining parts to
the invoked operation.

# MIME Structure

	Content-Type: multipart/related;
	    type="application/soap+xml";
	    start="<root@soap.siros.org>";
	    boundary="----=_Part_..."

	------=_Part_...
	Content-Type: application/soap+xml; charset=utf-8
	Content-ID: <root@soap.siros.org>

	[SOAP Envelope]

	------=_Part_...
	Content-Type: application/octet-stream
	Content-ID: <photo-1>
	Content-Transfer-Encoding: binary

	[Binary data]

The root part is the one named by the start parameter. When start is
absent the first part is the root.

# Creating Multipart Messages

	msg := mime.NewMessage(envelope, enc.ContentType(), []mime.Attachment{
		mime.CreateAttachmentWithID(photo, "image/png", "photo-1"),
	})
	body, contentType, err := msg.Serialize()

# Parsing Multipart Messages

	msg, err := mime.Parse(r.Body, r.Header.Get("Content-Type"))
	env, err := enc.ReadMessage(ctx, bytes.NewReader(msg.Envelope), msg.RootContentType())

# MTOM

An MTOM root part has the media type application/xop+xml and carries the
SOAP media type in its type parameter. RootContentType unwraps it, and
InlineXOP replaces xop:Include references with the base64 content of the
referenced part so that binary members bind like inline ones.

# References

  - SOAP with Attachments: https://www.w3.org/TR/SOAP-attachments
  - SOAP MTOM: https://www.w3.org/TR/soap12-mtom/
  - XOP: https://www.w3.org/TR/xop10/
  - MIME Multipart: https://datatracker.ietf.org/doc/html/rfc2046
  - multipart/related: https://datatracker.ietf.org/doc/html/rfc2387
*/
package mime
