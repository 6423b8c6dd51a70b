package message

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

// Action returns the WS-Addressing Action header value, empty when the
// version has no addressing or the header is absent.
func (m *Message) Action() string {
	return m.addressingValue("Action")
}

// MessageID returns the WS-Addressing MessageID header value.
func (m *Message) MessageID() string {
	return m.addressingValue("MessageID")
}

func (m *Message) addressingValue(local string) string {
	ns := m.Version.AddressingNamespace()
	if ns == "" {
		return ""
	}
	if h := m.Header(local, ns); h != nil {
		return strings.TrimSpace(h.Text())
	}
	return ""
}

// SetAddressing writes the reply addressing headers: Action, a fresh
// MessageID, RelatesTo when relatesTo is set, and To for the anonymous
// reply address. It is a no-op for versions without addressing.
func (m *Message) SetAddressing(action, relatesTo string) {
	if !m.Version.HasAddressing() {
		return
	}
	p := PrefixAddressing + ":"
	m.SetNamespace(PrefixAddressing, m.Version.AddressingNamespace())

	a := etree.NewElement(p + "Action")
	a.CreateAttr(PrefixEnvelope+":mustUnderstand", "1")
	a.SetText(action)
	m.AddHeader(a)

	id := etree.NewElement(p + "MessageID")
	id.SetText("urn:uuid:" + uuid.NewString())
	m.AddHeader(id)

	if relatesTo != "" {
		rel := etree.NewElement(p + "RelatesTo")
		rel.SetText(relatesTo)
		m.AddHeader(rel)
	}

	if m.Version.Addressing == Addressing10 {
		to := etree.NewElement(p + "To")
		to.CreateAttr(PrefixEnvelope+":mustUnderstand", "1")
		to.SetText(AnonymousAddress)
		m.AddHeader(to)
	}
}
