package mime

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

const (
	// ContentTypeMultipartRelated is the MIME type for multipart/related
	ContentTypeMultipartRelated = "multipart/related"
	// ContentTypeXOP is the root part type of an MTOM message
	ContentTypeXOP = "application/xop+xml"
	// ContentTypeTextXML is the SOAP 1.1 media type
	ContentTypeTextXML = "text/xml"
	// ContentTypeSOAPXML is the SOAP 1.2 media type
	ContentTypeSOAPXML = "application/soap+xml"

	// NsXOP is the XML-binary Optimized Packaging namespace
	NsXOP = "http://www.w3.org/2004/08/xop/include"
)

// Message is a multipart/related container: a root part holding the SOAP
// envelope and any number of attachments.
type Message struct {
	Boundary    string
	ContentType string
	StartID     string
	// Type is the media type of the root part as announced in the
	// multipart Content-Type
	Type string
	// StartInfo carries the SOAP media type parameters of an MTOM root
	StartInfo string

	Envelope     []byte
	EnvelopeType string
	Attachments  []Attachment
}

// Attachment is one non-root MIME part
type Attachment struct {
	ContentID       string
	ContentType     string
	ContentTransfer string
	Data            []byte
	Headers         textproto.MIMEHeader
}

// IsMultipart reports whether contentType denotes a multipart/related body.
func IsMultipart(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.EqualFold(mediaType, ContentTypeMultipartRelated)
}

// NewMessage packages an encoded envelope with attachments. envelopeType is
// the Content-Type the envelope was written with.
func NewMessage(envelope []byte, envelopeType string, attachments []Attachment) *Message {
	rootType, _, err := mime.ParseMediaType(envelopeType)
	if err != nil {
		rootType = ContentTypeSOAPXML
	}
	return &Message{
		Boundary:     generateBoundary(),
		ContentType:  ContentTypeMultipartRelated,
		StartID:      fmt.Sprintf("<%s@soap.siros.org>", uuid.New().String()),
		Type:         rootType,
		Envelope:     envelope,
		EnvelopeType: envelopeType,
		Attachments:  attachments,
	}
}

// NewMTOMMessage packages an encoded envelope as the XOP root of an MTOM
// message. soapType is the SOAP media type the envelope was written with.
func NewMTOMMessage(envelope []byte, soapType, charset string, attachments []Attachment) *Message {
	params := map[string]string{"type": soapType}
	if charset != "" {
		params["charset"] = charset
	}
	m := NewMessage(envelope, mime.FormatMediaType(ContentTypeXOP, params), attachments)
	m.StartInfo = soapType
	return m
}

// IsMTOM reports whether the root part is an XOP package.
func (m *Message) IsMTOM() bool {
	ct := m.EnvelopeType
	if ct == "" {
		ct = m.Type
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	return err == nil && strings.EqualFold(mediaType, ContentTypeXOP)
}

// Serialize writes the multipart body and returns it together with the
// Content-Type header value.
func (m *Message) Serialize() ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.SetBoundary(m.Boundary); err != nil {
		return nil, "", fmt.Errorf("failed to set boundary: %w", err)
	}

	rootHeader := textproto.MIMEHeader{}
	rootHeader.Set("Content-Type", m.EnvelopeType)
	rootHeader.Set("Content-Transfer-Encoding", "8bit")
	rootHeader.Set("Content-ID", AddContentIDBrackets(m.StartID))

	rootPart, err := writer.CreatePart(rootHeader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create root part: %w", err)
	}
	if _, err := rootPart.Write(m.Envelope); err != nil {
		return nil, "", fmt.Errorf("failed to write root part: %w", err)
	}

	for _, a := range m.Attachments {
		header := textproto.MIMEHeader{}
		for key, values := range a.Headers {
			for _, value := range values {
				header.Add(key, value)
			}
		}

		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		transferEncoding := a.ContentTransfer
		if transferEncoding == "" {
			transferEncoding = "binary"
		}
		header.Set("Content-Transfer-Encoding", transferEncoding)

		contentID := a.ContentID
		if contentID == "" {
			contentID = fmt.Sprintf("%s@soap.siros.org", uuid.New().String())
		}
		header.Set("Content-ID", AddContentIDBrackets(contentID))

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create attachment part: %w", err)
		}
		if _, err := part.Write(a.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write attachment part: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	// start references the Content-ID without angle brackets
	params := map[string]string{
		"boundary": m.Boundary,
		"type":     m.Type,
		"start":    GetContentIDWithoutBrackets(m.StartID),
	}
	if m.StartInfo != "" {
		params["start-info"] = m.StartInfo
	}
	return buf.Bytes(), mime.FormatMediaType(m.ContentType, params), nil
}

// Parse reads a multipart/related body. The root part is the one named by
// the start parameter, or the first part when start is absent.
func Parse(r io.Reader, contentType string) (*Message, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to parse content type: %w", err)
	}
	if !strings.HasPrefix(strings.ToLower(mediaType), "multipart/") {
		return nil, fmt.Errorf("not a multipart message: %s", mediaType)
	}

	boundary := params["boundary"]
	if boundary == "" {
		return nil, fmt.Errorf("boundary not found in content type")
	}

	msg := &Message{
		Boundary:    boundary,
		ContentType: mediaType,
		StartID:     params["start"],
		Type:        params["type"],
		StartInfo:   params["start-info"],
	}
	start := normalizeContentID(msg.StartID)

	reader := multipart.NewReader(r, boundary)
	found := false
	for first := true; ; first = false {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read part: %w", err)
		}

		data, err := io.ReadAll(part)
		if err != nil {
			return nil, fmt.Errorf("failed to read part data: %w", err)
		}
		contentID := part.Header.Get("Content-ID")
		partType := part.Header.Get("Content-Type")

		isRoot := !found && ((start == "" && first) || (start != "" && normalizeContentID(contentID) == start))
		if isRoot {
			found = true
			msg.Envelope = data
			msg.EnvelopeType = partType
			continue
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			ContentID:       contentID,
			ContentType:     partType,
			ContentTransfer: part.Header.Get("Content-Transfer-Encoding"),
			Data:            data,
			Headers:         part.Header,
		})
	}

	if !found {
		return nil, fmt.Errorf("SOAP envelope not found in message")
	}
	return msg, nil
}

// RootContentType returns the Content-Type the envelope is to be read
// with. For an MTOM root the SOAP media type is taken from the type
// parameter of the part, or from start-info, keeping the part charset.
func (m *Message) RootContentType() string {
	ct := m.EnvelopeType
	if ct == "" {
		ct = m.Type
	}
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil || !strings.EqualFold(mediaType, ContentTypeXOP) {
		return ct
	}

	inner := params["type"]
	if inner == "" {
		inner = m.StartInfo
	}
	if inner == "" {
		inner = ContentTypeSOAPXML
	}
	innerType, innerParams, err := mime.ParseMediaType(inner)
	if err != nil {
		return inner
	}
	if cs := params["charset"]; cs != "" {
		innerParams["charset"] = cs
	}
	if action := params["action"]; action != "" {
		innerParams["action"] = action
	}
	return mime.FormatMediaType(innerType, innerParams)
}

// GetAttachmentByContentID finds an attachment by Content-ID, accepting
// the cid: scheme and angle brackets.
func (m *Message) GetAttachmentByContentID(contentID string) *Attachment {
	want := normalizeContentID(contentID)
	for i := range m.Attachments {
		if normalizeContentID(m.Attachments[i].ContentID) == want {
			return &m.Attachments[i]
		}
	}
	return nil
}

// InlineXOP replaces every xop:Include below root with the base64 text of
// the referenced attachment, so that the envelope can be bound like an
// inline one.
func (m *Message) InlineXOP(root *etree.Element) error {
	var includes []*etree.Element
	collectIncludes(root, &includes)

	for _, inc := range includes {
		href := inc.SelectAttrValue("href", "")
		a := m.GetAttachmentByContentID(href)
		if a == nil {
			return fmt.Errorf("xop:Include references unknown part %q", href)
		}
		parent := inc.Parent()
		parent.RemoveChild(inc)
		parent.SetText(base64.StdEncoding.EncodeToString(a.Data))
	}
	return nil
}

func collectIncludes(el *etree.Element, out *[]*etree.Element) {
	for _, child := range el.ChildElements() {
		if child.Tag == "Include" && child.NamespaceURI() == NsXOP {
			*out = append(*out, child)
			continue
		}
		collectIncludes(child, out)
	}
}

// normalizeContentID strips the cid: scheme and angle brackets.
func normalizeContentID(contentID string) string {
	contentID = strings.TrimPrefix(strings.TrimSpace(contentID), "cid:")
	contentID = strings.TrimPrefix(contentID, "<")
	contentID = strings.TrimSuffix(contentID, ">")
	return contentID
}

// CreateAttachment creates an attachment with a fresh Content-ID
func CreateAttachment(data []byte, contentType string) Attachment {
	return Attachment{
		ContentID:       fmt.Sprintf("<%s@soap.siros.org>", uuid.New().String()),
		ContentType:     contentType,
		ContentTransfer: "binary",
		Data:            data,
		Headers:         make(textproto.MIMEHeader),
	}
}

// CreateAttachmentWithID creates an attachment with a specific Content-ID
func CreateAttachmentWithID(data []byte, contentType, contentID string) Attachment {
	return Attachment{
		ContentID:       AddContentIDBrackets(contentID),
		ContentType:     contentType,
		ContentTransfer: "binary",
		Data:            data,
		Headers:         make(textproto.MIMEHeader),
	}
}

func generateBoundary() string {
	return fmt.Sprintf("----=_Part_%s", strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// GetContentIDWithoutBrackets removes < and > from Content-ID
func GetContentIDWithoutBrackets(contentID string) string {
	contentID = strings.TrimPrefix(contentID, "<")
	contentID = strings.TrimSuffix(contentID, ">")
	return contentID
}

// AddContentIDBrackets adds < and > to Content-ID if not present
func AddContentIDBrackets(contentID string) string {
	if !strings.HasPrefix(contentID, "<") {
		contentID = "<" + contentID
	}
	if !strings.HasSuffix(contentID, ">") {
		contentID = contentID + ">"
	}
	return contentID
}
