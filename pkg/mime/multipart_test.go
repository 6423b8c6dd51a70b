package mime

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEnvelope = `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope"><s:Body><Echo xmlns="http://tempuri.org/"><data>x</data></Echo></s:Body></s:Envelope>`

func TestCreateAttachment(t *testing.T) {
	data := []byte("test payload data")

	a := CreateAttachment(data, "text/plain")

	assert.True(t, strings.HasPrefix(a.ContentID, "<"))
	assert.True(t, strings.HasSuffix(a.ContentID, ">"))
	assert.Equal(t, "text/plain", a.ContentType)
	assert.Equal(t, "binary", a.ContentTransfer)
	assert.Equal(t, data, a.Data)
	assert.NotNil(t, a.Headers)
}

func TestCreateAttachmentWithID(t *testing.T) {
	a := CreateAttachmentWithID([]byte("test"), "application/json", "custom-id-123")
	assert.Equal(t, "<custom-id-123>", a.ContentID)
	assert.Equal(t, "application/json", a.ContentType)
}

func TestIsMultipart(t *testing.T) {
	assert.True(t, IsMultipart(`multipart/related; boundary="b"; type="text/xml"`))
	assert.True(t, IsMultipart(`Multipart/Related; boundary=b`))
	assert.False(t, IsMultipart("text/xml; charset=utf-8"))
	assert.False(t, IsMultipart("multipart/form-data; boundary=b"))
	assert.False(t, IsMultipart(""))
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage([]byte(testEnvelope), "application/soap+xml; charset=utf-8", []Attachment{
		CreateAttachment([]byte("payload1"), "text/plain"),
	})

	assert.NotEmpty(t, msg.Boundary)
	assert.NotEmpty(t, msg.StartID)
	assert.Equal(t, ContentTypeMultipartRelated, msg.ContentType)
	assert.Equal(t, ContentTypeSOAPXML, msg.Type)
	assert.Len(t, msg.Attachments, 1)
}

func TestMessage_SerializeAndParse(t *testing.T) {
	msg := NewMessage([]byte(testEnvelope), "application/soap+xml; charset=utf-8", []Attachment{
		CreateAttachmentWithID([]byte("payload data 1"), "text/plain", "payload-1"),
		CreateAttachmentWithID([]byte("payload data 2"), "application/json", "payload-2"),
	})

	data, contentType, err := msg.Serialize()
	require.NoError(t, err)
	assert.Contains(t, contentType, "multipart/related")
	assert.Contains(t, contentType, "boundary=")
	assert.Contains(t, contentType, "start=")

	parsed, err := Parse(bytes.NewReader(data), contentType)
	require.NoError(t, err)
	assert.Equal(t, testEnvelope, string(parsed.Envelope))
	assert.Equal(t, "application/soap+xml; charset=utf-8", parsed.RootContentType())
	require.Len(t, parsed.Attachments, 2)
	assert.Equal(t, []byte("payload data 2"), parsed.GetAttachmentByContentID("cid:payload-2").Data)
}

func TestParse_StartSelectsRoot(t *testing.T) {
	body := "--b\r\n" +
		"Content-Type: image/png\r\n" +
		"Content-ID: <img>\r\n\r\n" +
		"PNG\r\n" +
		"--b\r\n" +
		"Content-Type: text/xml; charset=utf-8\r\n" +
		"Content-ID: <root>\r\n\r\n" +
		testEnvelope + "\r\n" +
		"--b--\r\n"

	parsed, err := Parse(strings.NewReader(body), `multipart/related; boundary=b; type="text/xml"; start="<root>"`)
	require.NoError(t, err)
	assert.Equal(t, testEnvelope, string(parsed.Envelope))
	require.Len(t, parsed.Attachments, 1)
	assert.Equal(t, "<img>", parsed.Attachments[0].ContentID)

	// without start the first part is the root
	parsed, err = Parse(strings.NewReader(body), `multipart/related; boundary=b`)
	require.NoError(t, err)
	assert.Equal(t, "PNG", string(parsed.Envelope))

	// a start naming no part is an error
	_, err = Parse(strings.NewReader(body), `multipart/related; boundary=b; start="<missing>"`)
	assert.Error(t, err)
}

func TestParse_InvalidContentType(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte("some data")), "text/plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a multipart message")

	_, err = Parse(bytes.NewReader([]byte("some data")), "multipart/related")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boundary not found")
}

func TestRootContentType_MTOM(t *testing.T) {
	msg := &Message{
		EnvelopeType: `application/xop+xml; charset=UTF-8; type="application/soap+xml"`,
		StartInfo:    `application/soap+xml; action="urn:Echo"`,
	}
	assert.Equal(t, "application/soap+xml; charset=UTF-8", msg.RootContentType())

	msg.EnvelopeType = `application/xop+xml; charset=UTF-8`
	assert.Equal(t, `application/soap+xml; action="urn:Echo"; charset=UTF-8`, msg.RootContentType())

	msg = &Message{Type: "text/xml"}
	assert.Equal(t, "text/xml", msg.RootContentType())
}

func TestNewMTOMMessage(t *testing.T) {
	msg := NewMTOMMessage([]byte(testEnvelope), ContentTypeSOAPXML, "utf-8", nil)
	assert.True(t, msg.IsMTOM())
	assert.Equal(t, ContentTypeXOP, msg.Type)

	data, contentType, err := msg.Serialize()
	require.NoError(t, err)
	assert.True(t, IsMultipart(contentType))
	assert.Contains(t, contentType, `start-info="application/soap+xml"`)

	parsed, err := Parse(bytes.NewReader(data), contentType)
	require.NoError(t, err)
	assert.True(t, parsed.IsMTOM())
	assert.Equal(t, testEnvelope, string(parsed.Envelope))
	assert.Equal(t, "application/soap+xml; charset=utf-8", parsed.RootContentType())

	swa := NewMessage([]byte(testEnvelope), ContentTypeSOAPXML, nil)
	assert.False(t, swa.IsMTOM())
}

func TestInlineXOP(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(
		`<Echo xmlns="http://tempuri.org/" xmlns:xop="http://www.w3.org/2004/08/xop/include">`+
			`<data><xop:Include href="cid:photo-1"/></data></Echo>`))

	msg := &Message{Attachments: []Attachment{CreateAttachmentWithID([]byte{0x89, 'P', 'N', 'G'}, "image/png", "photo-1")}}
	require.NoError(t, msg.InlineXOP(doc.Root()))

	data := doc.Root().SelectElement("data")
	assert.Empty(t, data.ChildElements())
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'}), data.Text())

	doc = etree.NewDocument()
	require.NoError(t, doc.ReadFromString(
		`<Echo xmlns:xop="http://www.w3.org/2004/08/xop/include"><data><xop:Include href="cid:nope"/></data></Echo>`))
	assert.Error(t, msg.InlineXOP(doc.Root()))
}

func TestGetContentIDWithoutBrackets(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"<id-123>", "id-123"},
		{"id-456", "id-456"},
		{"<some@example.com>", "some@example.com"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetContentIDWithoutBrackets(tt.input))
		})
	}
}

func TestAddContentIDBrackets(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"id-123", "<id-123>"},
		{"<id-456>", "<id-456>"},
		{"<id-789", "<id-789>"},
		{"id-abc>", "<id-abc>"},
		{"", "<>"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, AddContentIDBrackets(tt.input))
		})
	}
}

func TestMessage_GetAttachmentByContentID(t *testing.T) {
	msg := &Message{
		Attachments: []Attachment{
			CreateAttachmentWithID([]byte("data1"), "text/plain", "id1@example.com"),
			CreateAttachmentWithID([]byte("data2"), "text/plain", "id2@example.com"),
			CreateAttachmentWithID([]byte("data3"), "text/plain", "id3@example.com"),
		},
	}

	tests := []struct {
		name      string
		contentID string
		wantData  []byte
		wantNil   bool
	}{
		{"find by exact id", "id2@example.com", []byte("data2"), false},
		{"find with cid prefix", "cid:id1@example.com", []byte("data1"), false},
		{"find with brackets", "<id3@example.com>", []byte("data3"), false},
		{"not found", "nonexistent@example.com", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := msg.GetAttachmentByContentID(tt.contentID)
			if tt.wantNil {
				assert.Nil(t, result)
			} else {
				require.NotNil(t, result)
				assert.Equal(t, tt.wantData, result.Data)
			}
		})
	}
}
