package message

import (
	"fmt"
	"strings"
)

// EnvelopeVersion identifies the SOAP envelope namespace in use
type EnvelopeVersion int

const (
	// EnvelopeNone carries a bare XML payload without an envelope
	EnvelopeNone EnvelopeVersion = iota
	EnvelopeSoap11
	EnvelopeSoap12
)

// AddressingVersion identifies the WS-Addressing namespace in use
type AddressingVersion int

const (
	AddressingNone AddressingVersion = iota
	AddressingAugust2004
	Addressing10
)

// Version is a message version: an envelope version paired with an
// addressing version.
type Version struct {
	Envelope   EnvelopeVersion
	Addressing AddressingVersion
}

// Predefined message versions
var (
	None                         = Version{Envelope: EnvelopeNone}
	Soap11                       = Version{Envelope: EnvelopeSoap11}
	Soap12                       = Version{Envelope: EnvelopeSoap12}
	Soap11WSAddressing10         = Version{Envelope: EnvelopeSoap11, Addressing: Addressing10}
	Soap12WSAddressing10         = Version{Envelope: EnvelopeSoap12, Addressing: Addressing10}
	Soap11WSAddressingAugust2004 = Version{Envelope: EnvelopeSoap11, Addressing: AddressingAugust2004}
	Soap12WSAddressingAugust2004 = Version{Envelope: EnvelopeSoap12, Addressing: AddressingAugust2004}
)

// Namespace returns the envelope namespace, empty for None.
func (v Version) Namespace() string {
	switch v.Envelope {
	case EnvelopeSoap11:
		return NsSOAP11
	case EnvelopeSoap12:
		return NsSOAP12
	}
	return ""
}

// AddressingNamespace returns the WS-Addressing namespace, empty when the
// version carries no addressing headers.
func (v Version) AddressingNamespace() string {
	switch v.Addressing {
	case Addressing10:
		return NsWSA10
	case AddressingAugust2004:
		return NsWSAAugust2004
	}
	return ""
}

// HasAddressing reports whether WS-Addressing headers are in use.
func (v Version) HasAddressing() bool {
	return v.Addressing != AddressingNone
}

// MediaType returns the media type used on the wire for this version.
func (v Version) MediaType() string {
	switch v.Envelope {
	case EnvelopeSoap11:
		return "text/xml"
	case EnvelopeSoap12:
		return "application/soap+xml"
	}
	return "application/xml"
}

func (v Version) String() string {
	var b strings.Builder
	switch v.Envelope {
	case EnvelopeSoap11:
		b.WriteString("Soap11")
	case EnvelopeSoap12:
		b.WriteString("Soap12")
	default:
		return "None"
	}
	switch v.Addressing {
	case Addressing10:
		b.WriteString("WSAddressing10")
	case AddressingAugust2004:
		b.WriteString("WSAddressingAugust2004")
	}
	return b.String()
}

// ParseVersion parses the configuration spelling of a message version:
// none, soap11, soap12, optionally suffixed with wsa10 or wsa2004.
func ParseVersion(s string) (Version, error) {
	key := strings.NewReplacer("-", "", "_", "", ".", "", " ", "").Replace(strings.ToLower(s))
	switch key {
	case "none":
		return None, nil
	case "soap11", "":
		return Soap11, nil
	case "soap12":
		return Soap12, nil
	case "soap11wsa10", "soap11wsaddressing10":
		return Soap11WSAddressing10, nil
	case "soap12wsa10", "soap12wsaddressing10":
		return Soap12WSAddressing10, nil
	case "soap11wsa2004", "soap11wsaddressingaugust2004":
		return Soap11WSAddressingAugust2004, nil
	case "soap12wsa2004", "soap12wsaddressingaugust2004":
		return Soap12WSAddressingAugust2004, nil
	}
	return Version{}, fmt.Errorf("unknown message version %q", s)
}

// EnvelopeVersionFor maps an envelope namespace URI to its version.
func EnvelopeVersionFor(ns string) (EnvelopeVersion, bool) {
	switch ns {
	case NsSOAP11:
		return EnvelopeSoap11, true
	case NsSOAP12:
		return EnvelopeSoap12, true
	}
	return EnvelopeNone, false
}
