package message

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
)

var (
	// ErrNotEnvelope is returned when the document root is not a SOAP Envelope
	ErrNotEnvelope = errors.New("document root is not a SOAP Envelope")
	// ErrVersionMismatch is returned when the envelope namespace does not match the expected version
	ErrVersionMismatch = errors.New("envelope version mismatch")
	// ErrMissingBody is returned when an envelope has no Body element
	ErrMissingBody = errors.New("envelope has no Body element")
)

// Message is one SOAP message: an envelope with a header collection and a
// body. For the None version the envelope is absent and the body is a
// detached container whose single child is the document root.
type Message struct {
	Version Version

	doc    *etree.Document
	env    *etree.Element
	header *etree.Element
	body   *etree.Element
}

// Option configures a new outbound Message
type Option func(*Message)

// WithNamespace declares an additional namespace on the Envelope element.
func WithNamespace(prefix, uri string) Option {
	return func(m *Message) {
		if m.env == nil {
			return
		}
		if prefix == "" {
			m.env.CreateAttr("xmlns", uri)
			return
		}
		m.env.CreateAttr("xmlns:"+prefix, uri)
	}
}

// New creates an empty outbound message for the given version.
func New(version Version, opts ...Option) *Message {
	m := &Message{Version: version, doc: etree.NewDocument()}

	if version.Envelope == EnvelopeNone {
		m.body = etree.NewElement("Body")
	} else {
		m.env = m.doc.CreateElement(PrefixEnvelope + ":Envelope")
		m.env.CreateAttr("xmlns:"+PrefixEnvelope, version.Namespace())
		if version.HasAddressing() {
			m.env.CreateAttr("xmlns:"+PrefixAddressing, version.AddressingNamespace())
		}
		m.header = m.env.CreateElement(PrefixEnvelope + ":Header")
		m.body = m.env.CreateElement(PrefixEnvelope + ":Body")
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FromDocument wraps a parsed document. The envelope namespace must match
// the expected version; for the None version the document root becomes the
// single body element.
func FromDocument(doc *etree.Document, version Version) (*Message, error) {
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrNotEnvelope)
	}

	m := &Message{Version: version, doc: doc}

	if version.Envelope == EnvelopeNone {
		m.body = etree.NewElement("Body")
		m.body.AddChild(root)
		return m, nil
	}

	if root.Tag != "Envelope" {
		return nil, fmt.Errorf("%w: found %s", ErrNotEnvelope, root.FullTag())
	}
	ns := root.NamespaceURI()
	got, ok := EnvelopeVersionFor(ns)
	if !ok {
		return nil, fmt.Errorf("%w: unknown envelope namespace %q", ErrNotEnvelope, ns)
	}
	if got != version.Envelope {
		return nil, fmt.Errorf("%w: expected %s, got namespace %s", ErrVersionMismatch, version.Namespace(), ns)
	}

	m.env = root
	for _, child := range root.ChildElements() {
		switch {
		case child.Tag == "Header" && child.NamespaceURI() == ns:
			m.header = child
		case child.Tag == "Body" && child.NamespaceURI() == ns:
			m.body = child
		}
	}
	if m.body == nil {
		return nil, ErrMissingBody
	}
	return m, nil
}

// Document returns the document for writing. For the None version the
// first body element is promoted to the document root.
func (m *Message) Document() *etree.Document {
	if m.Version.Envelope == EnvelopeNone {
		doc := etree.NewDocument()
		if el := m.BodyElement(); el != nil {
			doc.SetRoot(Detach(el))
		}
		return doc
	}
	return m.doc
}

// Envelope returns the Envelope element, nil for the None version.
func (m *Message) Envelope() *etree.Element {
	return m.env
}

// Body returns the Body element.
func (m *Message) Body() *etree.Element {
	return m.body
}

// BodyElement returns the first child element of the body, nil when empty.
func (m *Message) BodyElement() *etree.Element {
	if children := m.body.ChildElements(); len(children) > 0 {
		return children[0]
	}
	return nil
}

// BodyElements returns all child elements of the body.
func (m *Message) BodyElements() []*etree.Element {
	return m.body.ChildElements()
}

// AddBodyElement appends el to the body.
func (m *Message) AddBodyElement(el *etree.Element) {
	m.body.AddChild(el)
}

// IsEmpty reports whether the body has no element content.
func (m *Message) IsEmpty() bool {
	return m.BodyElement() == nil
}

// IsFault reports whether the body carries a SOAP Fault.
func (m *Message) IsFault() bool {
	el := m.BodyElement()
	if el == nil || el.Tag != "Fault" {
		return false
	}
	return m.Version.Envelope == EnvelopeNone || el.NamespaceURI() == m.Version.Namespace()
}

// Headers returns the header blocks in document order.
func (m *Message) Headers() []*etree.Element {
	if m.header == nil {
		return nil
	}
	return m.header.ChildElements()
}

// Header returns the first header block with the given local name and
// namespace, nil when absent. An empty ns matches any namespace.
func (m *Message) Header(local, ns string) *etree.Element {
	for _, h := range m.Headers() {
		if Matches(h, local, ns) {
			return h
		}
	}
	return nil
}

// AddHeader appends a header block, creating the Header element if the
// envelope has none.
func (m *Message) AddHeader(el *etree.Element) {
	if m.env == nil {
		return
	}
	if m.header == nil {
		tag := "Header"
		if m.env.Space != "" {
			tag = m.env.Space + ":Header"
		}
		m.header = etree.NewElement(tag)
		m.env.InsertChildAt(0, m.header)
	}
	m.header.AddChild(el)
}

// SetNamespace declares a namespace on the Envelope element unless the
// prefix is already declared there.
func (m *Message) SetNamespace(prefix, uri string) {
	if m.env == nil {
		return
	}
	key := "xmlns"
	if prefix != "" {
		key = "xmlns:" + prefix
	}
	if m.env.SelectAttr(key) == nil {
		m.env.CreateAttr(key, uri)
	}
}

// finalize drops an empty Header element before writing.
func (m *Message) finalize() {
	if m.header != nil && len(m.header.ChildElements()) == 0 && m.env != nil {
		m.env.RemoveChild(m.header)
		m.header = nil
	}
}

// Prepare readies the message for writing and returns its document.
func (m *Message) Prepare() *etree.Document {
	m.finalize()
	return m.Document()
}
