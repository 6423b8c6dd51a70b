// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package gosoap hosts SOAP 1.1 and SOAP 1.2 services over HTTP.

# Overview

go-soap exposes plain Go types as SOAP services. A service is described by
contracts naming its operations, parameters, results and declared faults.
Incoming envelopes are decoded, matched to an operation, bound to Go
values, invoked and answered with a reply or a fault, with hooks at every
stage of the pipeline.

# Specifications Implemented

  - SOAP 1.1: https://www.w3.org/TR/2000/NOTE-SOAP-20000508/
  - SOAP 1.2 Part 1: https://www.w3.org/TR/soap12-part1/
  - WS-Addressing 1.0 SOAP Binding: https://www.w3.org/TR/ws-addr-soap/
  - XML-binary Optimized Packaging (XOP): https://www.w3.org/TR/xop10/
  - SOAP Message Transmission Optimization Mechanism: https://www.w3.org/TR/soap12-mtom/
  - SOAP Messages with Attachments: https://www.w3.org/TR/SOAP-attachments

# Package Structure

	github.com/sirosfoundation/go-soap/pkg/message       - Envelopes, versions, faults and addressing headers
	github.com/sirosfoundation/go-soap/pkg/contract      - Service, operation and parameter descriptions
	github.com/sirosfoundation/go-soap/pkg/serialization - DataContract and XmlSerializer conventions
	github.com/sirosfoundation/go-soap/pkg/encoder       - Reading and writing envelopes, charsets and quotas
	github.com/sirosfoundation/go-soap/pkg/mime          - MIME multipart, MTOM and XOP
	github.com/sirosfoundation/go-soap/pkg/dispatch      - Routing, matching, binding, invocation and hooks
	github.com/sirosfoundation/go-soap/pkg/compression   - gzip Content-Encoding middleware

The soapd command hosts services from a YAML configuration with OAuth2
bearer token authorization, rate limiting and Prometheus metrics.

# Quick Start

	svc, _ := contract.NewService("GreeterService",
	    contract.Contract("IGreeter",
	        contract.Operation("Greet", contract.Unary(Greeter.Greet),
	            contract.Param[string]("name"), contract.Returns[string]()),
	    ),
	)

	soap11, _ := encoder.New(message.Soap11)
	soap12, _ := encoder.New(message.Soap12)

	router := dispatch.NewRouter()
	router.Handle("/Greeter.svc", svc, Greeter{}, dispatch.WithEncoders(soap11, soap12))
	http.ListenAndServe(":8080", router)

# References

  - W3C XML Protocol Working Group: https://www.w3.org/2000/xp/Group/
  - WS-I Basic Profile 1.2: http://ws-i.org/profiles/basicprofile-1.2-2010-11-09.html

# License

BSD-2-Clause License
*/
package gosoap
