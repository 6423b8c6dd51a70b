package message

import (
	"errors"
	"strings"

	"github.com/beevik/etree"
)

// FaultCode is the version-independent top level fault code
type FaultCode string

const (
	// FaultCodeSender marks faults caused by the request (SOAP 1.1 Client)
	FaultCodeSender FaultCode = "Sender"
	// FaultCodeReceiver marks faults caused by the server (SOAP 1.1 Server)
	FaultCodeReceiver FaultCode = "Receiver"
	// FaultCodeVersionMismatch marks an unsupported envelope namespace
	FaultCodeVersionMismatch FaultCode = "VersionMismatch"
	// FaultCodeMustUnderstand marks an unprocessed mandatory header
	FaultCodeMustUnderstand FaultCode = "MustUnderstand"
)

// ErrNotFault is returned by ParseFault when the body has no Fault element
var ErrNotFault = errors.New("message body does not contain a fault")

// Fault describes a SOAP fault independently of the envelope version.
type Fault struct {
	Code    FaultCode
	Subcode string
	Reason  string
	Lang    string
	// Actor is faultactor in SOAP 1.1 and Node in SOAP 1.2
	Actor string
	// Detail holds the application specific detail entries, if any
	Detail []*etree.Element
}

// soap11Code maps an abstract code to its SOAP 1.1 local name
func (c FaultCode) soap11Code() string {
	switch c {
	case FaultCodeSender:
		return "Client"
	case FaultCodeReceiver:
		return "Server"
	}
	return string(c)
}

func faultCodeFromSoap11(local string) FaultCode {
	switch local {
	case "Client":
		return FaultCodeSender
	case "Server":
		return FaultCodeReceiver
	}
	return FaultCode(local)
}

// NewFaultMessage builds a message whose body is the fault written in the
// shape required by version.
func NewFaultMessage(version Version, f *Fault, opts ...Option) *Message {
	m := New(version, opts...)
	m.AddBodyElement(f.Element(version))
	return m
}

// Element renders the fault for the given version.
func (f *Fault) Element(version Version) *etree.Element {
	lang := f.Lang
	if lang == "" {
		lang = "en"
	}
	if version.Envelope == EnvelopeSoap12 {
		return f.soap12Element(lang)
	}

	// SOAP 1.1 shape, also used unqualified for the None version
	tag := func(local string) string {
		if version.Envelope == EnvelopeNone {
			return local
		}
		return PrefixEnvelope + ":" + local
	}
	fault := etree.NewElement(tag("Fault"))
	if version.Envelope != EnvelopeNone {
		fault.CreateAttr("xmlns:"+PrefixEnvelope, version.Namespace())
	}

	code := f.Code.soap11Code()
	if version.Envelope != EnvelopeNone {
		code = PrefixEnvelope + ":" + code
	}
	if f.Subcode != "" {
		code += "." + f.Subcode
	}
	fault.CreateElement("faultcode").SetText(code)
	reason := fault.CreateElement("faultstring")
	reason.CreateAttr("xml:lang", lang)
	reason.SetText(f.Reason)
	if f.Actor != "" {
		fault.CreateElement("faultactor").SetText(f.Actor)
	}
	if len(f.Detail) > 0 {
		detail := fault.CreateElement("detail")
		for _, d := range f.Detail {
			detail.AddChild(d)
		}
	}
	return fault
}

func (f *Fault) soap12Element(lang string) *etree.Element {
	p := PrefixEnvelope + ":"
	fault := etree.NewElement(p + "Fault")
	fault.CreateAttr("xmlns:"+PrefixEnvelope, NsSOAP12)

	code := fault.CreateElement(p + "Code")
	code.CreateElement(p + "Value").SetText(p + string(f.Code))
	if f.Subcode != "" {
		sub := code.CreateElement(p + "Subcode")
		sub.CreateElement(p + "Value").SetText(f.Subcode)
	}

	text := fault.CreateElement(p + "Reason").CreateElement(p + "Text")
	text.CreateAttr("xml:lang", lang)
	text.SetText(f.Reason)

	if f.Actor != "" {
		fault.CreateElement(p + "Node").SetText(f.Actor)
	}
	if len(f.Detail) > 0 {
		detail := fault.CreateElement(p + "Detail")
		for _, d := range f.Detail {
			detail.AddChild(d)
		}
	}
	return fault
}

// ParseFault extracts the fault carried by m.
func ParseFault(m *Message) (*Fault, error) {
	if !m.IsFault() {
		return nil, ErrNotFault
	}
	el := m.BodyElement()
	if m.Version.Envelope == EnvelopeSoap12 {
		return parseSoap12Fault(el), nil
	}

	f := &Fault{}
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "faultcode":
			_, local := SplitQName(strings.TrimSpace(child.Text()))
			code, sub, _ := strings.Cut(local, ".")
			f.Code = faultCodeFromSoap11(code)
			f.Subcode = sub
		case "faultstring":
			f.Reason = child.Text()
			f.Lang = child.SelectAttrValue("xml:lang", "")
		case "faultactor":
			f.Actor = child.Text()
		case "detail":
			f.Detail = child.ChildElements()
		}
	}
	return f, nil
}

func parseSoap12Fault(el *etree.Element) *Fault {
	f := &Fault{}
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "Code":
			if v := child.SelectElement("Value"); v != nil {
				f.Code = FaultCode(LocalName(strings.TrimSpace(v.Text())))
			}
			if sub := child.SelectElement("Subcode"); sub != nil {
				if v := sub.SelectElement("Value"); v != nil {
					f.Subcode = LocalName(strings.TrimSpace(v.Text()))
				}
			}
		case "Reason":
			if text := child.SelectElement("Text"); text != nil {
				f.Reason = text.Text()
				f.Lang = text.SelectAttrValue("xml:lang", "")
			}
		case "Node":
			f.Actor = child.Text()
		case "Detail":
			f.Detail = child.ChildElements()
		}
	}
	return f
}
