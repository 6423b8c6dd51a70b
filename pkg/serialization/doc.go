// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package serialization converts Go values to and from XML elements using one
of two conventions.

# Conventions

DataContract writes struct members as prefixed elements in a namespace
derived from the Go package of the type, ordered by name, and marks nil
values with i:nil:

	<GetOrderResult xmlns="http://tempuri.org/"
	    xmlns:a="http://schemas.datacontract.org/2004/07/orders"
	    xmlns:i="http://www.w3.org/2001/XMLSchema-instance">
	  <a:ID>7</a:ID>
	  <a:Note i:nil="true"/>
	</GetOrderResult>

XmlSerializer writes members unprefixed in the namespace of the enclosing
element, in declaration order, and leaves nil members out:

	<GetOrderResult xmlns="http://tempuri.org/">
	  <ID>7</ID>
	</GetOrderResult>

Struct members are named by their xml tag ("name", "ns name", ",attr",
",omitempty" and "-" are honoured), or by the field name.

# Reading

Reading is lenient: members are matched by local name, namespaces and
member order are ignored. A value that cannot be converted to the declared
type is reported as an error naming the member path.

# Custom Serializers

A [Resolver] supplies a [Serializer] for specific types. It is consulted for
the top-level value and for every struct member before the convention is
applied.
*/
package serialization
