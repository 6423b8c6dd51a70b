// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package message provides the SOAP envelope model shared by the encoder and
the dispatcher.

A [Message] wraps an etree document holding the Envelope, Header and Body
elements for one request or response. Messages are created per request and
never shared between concurrent calls.

# Versions

A [Version] combines an envelope version (SOAP 1.1, SOAP 1.2 or the
header-less None version) with an optional WS-Addressing version:

	message.Soap11                 // text/xml, no addressing
	message.Soap12                 // application/soap+xml, no addressing
	message.Soap12WSAddressing10   // application/soap+xml, WS-Addressing 1.0
	message.None                   // bare XML payload, no envelope

# Building Messages

	msg := message.New(message.Soap11)
	body := msg.Body().CreateElement("PingResponse")
	body.CreateAttr("xmlns", "http://tempuri.org/")

# Faults

Faults are modelled by [Fault] with an abstract [FaultCode]. The XML shape is
chosen from the version when the fault is written:

	SOAP 1.1: faultcode / faultstring / faultactor / detail
	SOAP 1.2: Code/Value[/Subcode] / Reason/Text / Node / Detail

Sender and Receiver are written as Client and Server in SOAP 1.1 and mapped
back when a fault is parsed.

# Namespaces

	NsSOAP11 = "http://schemas.xmlsoap.org/soap/envelope/"
	NsSOAP12 = "http://www.w3.org/2003/05/soap-envelope"
	NsWSA10  = "http://www.w3.org/2005/08/addressing"

# References

  - SOAP 1.1: https://www.w3.org/TR/2000/NOTE-SOAP-20000508/
  - SOAP 1.2 Part 1: https://www.w3.org/TR/soap12-part1/
  - WS-Addressing 1.0 SOAP Binding: https://www.w3.org/TR/ws-addr-soap/
*/
package message
