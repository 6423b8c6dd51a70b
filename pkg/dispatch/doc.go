// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package dispatch serves SOAP services over HTTP.

An [Endpoint] binds one service description to one path and one or more
message encoders. A [Router] selects the endpoint for a request path.

# Serving a Service

	router := dispatch.NewRouter()
	_, err := router.Handle("/PingService.svc", svc, &PingService{},
		dispatch.WithEncoders(soap11, soap12),
		dispatch.WithCaseInsensitivePath(),
	)
	http.ListenAndServe(":8080", router)

# Request Pipeline

Each request passes through:
  - encoder selection by Content-Type and envelope decoding
  - message processors, outermost first
  - message filters and inspectors
  - operation matching
  - argument binding and model binding filters
  - action filters and operation tuners
  - invocation
  - reply construction, filters and inspectors

A request moves through the states Received, Matched, Bound and Invoked
and ends in Responded or Faulted. A request that fails to match goes
directly from Received to Faulted.

# Operation Matching

The action is read from the SOAPAction header, the action parameter of the
Content-Type, the WS-Addressing Action header or, when none is present,
the local name of the body element. Operations are matched by:

 1. the action equal to the SOAP action of the operation
 2. the last segment of the action equal to the operation name
 3. the action containing the operation name, longest name first

Each rule is tried case-sensitively and then ignoring case.

# Faults

Errors become SOAP faults. Matching, decoding and authorization errors are
Sender faults; everything else, including panics in an operation, is a
Receiver fault whose reason is the error message. A [contract.FaultError]
sets the code explicitly and carries a detail value, serialized when the
operation declares its type. Faults use HTTP status 500 by default, 401 for
[ErrUnauthorized] and 403 for [ErrForbidden]. A [FaultTransformer] may
replace the default fault.

Requests that cannot be decoded at all are answered without an envelope:
404 for an unknown path, 405 for methods other than POST, 415 when no
encoder accepts the Content-Type and 400 for unreadable bodies.

# Attachments

A multipart/related request is unpacked before decoding. MTOM xop:Include
references are inlined, and the remaining parts are available to the
operation through [AttachmentsFromContext].

# References

  - SOAP 1.1: https://www.w3.org/TR/2000/NOTE-SOAP-20000508/
  - SOAP 1.2 Part 1: https://www.w3.org/TR/soap12-part1/
  - WS-Addressing 1.0 SOAP Binding: https://www.w3.org/TR/ws-addr-soap/
  - SOAP MTOM: https://www.w3.org/TR/soap12-mtom/
*/
package dispatch
