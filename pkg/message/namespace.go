package message

import (
	"sort"
	"strings"

	"github.com/beevik/etree"
)

// Namespace constants for SOAP envelopes and the serializers
const (
	NsSOAP11          = "http://schemas.xmlsoap.org/soap/envelope/"
	NsSOAP12          = "http://www.w3.org/2003/05/soap-envelope"
	NsWSA10           = "http://www.w3.org/2005/08/addressing"
	NsWSAAugust2004   = "http://schemas.xmlsoap.org/ws/2004/08/addressing"
	NsXSI             = "http://www.w3.org/2001/XMLSchema-instance"
	NsXSD             = "http://www.w3.org/2001/XMLSchema"
	NsXML             = "http://www.w3.org/XML/1998/namespace"
	NsDataContract    = "http://schemas.datacontract.org/2004/07/"
	NsSerializationMS = "http://schemas.microsoft.com/2003/10/Serialization/"
	DefaultNamespace  = "http://tempuri.org/"
)

// Prefixes used when writing envelopes
const (
	PrefixEnvelope   = "s"
	PrefixAddressing = "a"
	PrefixXSI        = "i"
)

// AnonymousAddress is the WS-Addressing 1.0 anonymous endpoint
const AnonymousAddress = "http://www.w3.org/2005/08/addressing/anonymous"

// LocalName strips any namespace prefix from a qualified name.
func LocalName(qname string) string {
	if i := strings.LastIndexByte(qname, ':'); i >= 0 {
		return qname[i+1:]
	}
	return qname
}

// SplitQName splits "prefix:local" into its parts. An unprefixed name has an
// empty prefix.
func SplitQName(qname string) (prefix, local string) {
	if i := strings.IndexByte(qname, ':'); i >= 0 {
		return qname[:i], qname[i+1:]
	}
	return "", qname
}

// Matches reports whether el has the given local name and, when ns is not
// empty, the given namespace URI.
func Matches(el *etree.Element, local, ns string) bool {
	if el == nil || el.Tag != local {
		return false
	}
	return ns == "" || el.NamespaceURI() == ns
}

// InScopeNamespaces returns every namespace declaration visible from el,
// nearest declaration winning. The default namespace is keyed by "".
func InScopeNamespaces(el *etree.Element) map[string]string {
	scope := make(map[string]string)
	for e := el; e != nil; e = e.Parent() {
		for _, a := range e.Attr {
			switch {
			case a.Space == "" && a.Key == "xmlns":
				if _, ok := scope[""]; !ok {
					scope[""] = a.Value
				}
			case a.Space == "xmlns":
				if _, ok := scope[a.Key]; !ok {
					scope[a.Key] = a.Value
				}
			}
		}
	}
	return scope
}

// Detach returns a deep copy of el that carries every namespace declaration
// in scope at its original position, so it can be written or parsed on its
// own without losing prefix bindings.
func Detach(el *etree.Element) *etree.Element {
	cp := el.Copy()
	declared := make(map[string]bool)
	for _, a := range cp.Attr {
		if a.Space == "xmlns" {
			declared[a.Key] = true
		} else if a.Space == "" && a.Key == "xmlns" {
			declared[""] = true
		}
	}
	scope := InScopeNamespaces(el)
	prefixes := make([]string, 0, len(scope))
	for prefix := range scope {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	for _, prefix := range prefixes {
		if declared[prefix] {
			continue
		}
		uri := scope[prefix]
		if prefix == "" {
			cp.CreateAttr("xmlns", uri)
		} else {
			cp.CreateAttr("xmlns:"+prefix, uri)
		}
	}
	return cp
}

// IsNil reports whether el carries xsi:nil="true".
func IsNil(el *etree.Element) bool {
	for _, a := range el.Attr {
		if a.Key == "nil" && a.Space != "" && a.NamespaceURI() == NsXSI {
			return a.Value == "true" || a.Value == "1"
		}
	}
	return false
}
