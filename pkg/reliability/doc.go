// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package reliability detects duplicate SOAP requests.

Clients retrying a request after a lost reply resend the same
WS-Addressing MessageID. Processing such a retry twice is harmful for
operations that are not idempotent.

# Duplicate Detection

A [Detector] remembers the MessageIDs received within a window:

	detector := reliability.NewDetector(10 * time.Minute)
	defer detector.Close()

	if !detector.Mark(messageID) {
	    // Handle duplicate
	}

# Dispatch Integration

The detector plugs into an endpoint as a message processor. Requests
repeating a MessageID within the window are answered with a Sender fault
with subcode DuplicateMessage; requests without a MessageID are not
checked.

	router.Handle("/Orders.svc", svc, impl,
	    dispatch.WithMessageProcessor(detector.Processor()))

A request whose processing fails is forgotten, so that the client may
retry it.

# References

  - WS-Addressing 1.0 Core, MessageID: https://www.w3.org/TR/ws-addr-core/#msgaddrpropsinfoset
*/
package reliability
