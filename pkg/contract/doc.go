// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package contract describes SOAP services: their contracts, operations,
parameters and declared faults.

Descriptions are built once with a declarative builder and are read-only
afterwards, so a single [ServiceDescription] can be shared by any number of
concurrent requests.

# Declaring a Service

	type PingService struct{}

	func (s *PingService) Ping(ctx context.Context, text string) (string, error) {
		return text, nil
	}

	svc, err := contract.NewService("PingService",
		contract.Contract("IPingService",
			contract.Namespace("http://tempuri.org/"),
			contract.Operation("Ping", contract.Unary((*PingService).Ping),
				contract.Param[string]("s"),
				contract.Returns[string](),
			),
		),
	)

# Parameter Directions

Parameters are input-only by default. [OutParam] declares an output-only
parameter and [RefParam] an input-and-output parameter. Invokers write the
values of these parameters back into the argument slice:

	contract.Operation("Swap", func(ctx context.Context, svc any, args []any) (any, error) {
		a, b := args[0].(string), args[1].(string)
		args[0], args[1] = b, a
		return nil, nil
	},
		contract.RefParam[string]("a"),
		contract.RefParam[string]("b"),
	)

A parameter marked [Out] but not [ByRef] is rejected by [NewService] with
[ErrInvalidDirection].

# Defaults

	Namespace        http://tempuri.org/
	SoapAction       {namespace}/{contract}/{operation}
	ReplyAction      {namespace}/{contract}/{operation}Response
	Response element {operation}Response
	Result element   {operation}Result

# Message Contracts

A type implementing [MessageContract] is written as its own wire envelope
instead of a parameter wrapper. Struct fields tagged soap:"header" are bound
to SOAP header blocks, the others to body members.

# Faults

Operations return [*FaultError] to control the fault code, reason and
detail. A detail value is written only when its type is declared on the
operation with [Faults] or [FaultNamed].
*/
package contract
