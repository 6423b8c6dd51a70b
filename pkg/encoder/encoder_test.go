package encoder

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/sirosfoundation/go-soap/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const soap11Ping = `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><Ping xmlns="http://tempuri.org/"><s>hello, world</s></Ping></s:Body></s:Envelope>`

func newEncoder(t *testing.T, v message.Version, opts ...Option) *Encoder {
	t.Helper()
	e, err := New(v, opts...)
	require.NoError(t, err)
	return e
}

func TestNew(t *testing.T) {
	e := newEncoder(t, message.Soap12, WithBinding("BasicHttpBinding_IPing", "BasicHttpBinding_IPing_soap12"))

	assert.Equal(t, "application/soap+xml", e.MediaType())
	assert.Equal(t, "utf-8", e.CharSet())
	assert.Equal(t, "application/soap+xml; charset=utf-8", e.ContentType())
	assert.Equal(t, "BasicHttpBinding_IPing", e.BindingName())
	assert.Equal(t, "BasicHttpBinding_IPing_soap12", e.PortName())
	assert.Equal(t, DefaultReaderQuotas(), e.ReaderQuotas())
	assert.Equal(t, int64(DefaultMaxMessageSize), e.MaxMessageSize())

	_, err := New(message.Soap11, WithEncoding("no-such-charset"))
	assert.Error(t, err)
	_, err = New(message.Soap11, WithBufferSize(8))
	assert.Error(t, err)
	_, err = New(message.Soap11, WithMaxMessageSize(0))
	assert.Error(t, err)
}

func TestIsContentTypeSupported(t *testing.T) {
	soap11 := newEncoder(t, message.Soap11)
	soap12 := newEncoder(t, message.Soap12)
	none := newEncoder(t, message.None)
	unicode11 := newEncoder(t, message.Soap11, WithEncoding("utf-16"))
	latin11 := newEncoder(t, message.Soap11, WithEncoding("latin1"))
	ansi12 := newEncoder(t, message.Soap12, WithEncoding("windows-1252"))

	tests := []struct {
		name        string
		enc         *Encoder
		contentType string
		want        bool
	}{
		{"soap11 bare", soap11, "text/xml", true},
		{"soap11 charset", soap11, "text/xml; charset=utf-8", true},
		{"soap11 charset alias", soap11, "text/xml;charset=UTF8", true},
		{"soap11 quoted charset", soap11, `text/xml; charset="utf-8"`, true},
		{"soap11 other charset", soap11, "text/xml; charset=utf-16", false},
		{"soap11 rejects soap12", soap11, "application/soap+xml; charset=utf-8", false},
		{"soap11 empty", soap11, "", false},
		{"soap11 prefix only", soap11, "text/xmlfoo", false},
		{"soap12 with action", soap12, `application/soap+xml; charset=utf-8; action="http://tempuri.org/IPing/Ping"`, true},
		{"soap12 case", soap12, "Application/SOAP+XML", true},
		{"soap12 rejects soap11", soap12, "text/xml; charset=utf-8", false},
		{"none application/xml", none, "application/xml", true},
		{"none text/xml", none, "text/xml; charset=utf-8", true},
		{"utf-16 omitted charset", unicode11, "text/xml", true},
		{"utf-16 alias", unicode11, "text/xml; charset=unicode", true},
		{"utf-16 rejects utf-8", unicode11, "text/xml; charset=utf-8", false},
		{"latin1 mime name", latin11, "text/xml; charset=iso-8859-1", true},
		{"latin1 alias", latin11, "text/xml; charset=latin1", true},
		{"latin1 iana name", latin11, "text/xml; charset=ISO_8859-1:1987", true},
		{"latin1 rejects utf-8", latin11, "text/xml; charset=utf-8", false},
		{"latin1 rejects windows-1252", latin11, "text/xml; charset=windows-1252", false},
		{"windows-1252 quoted", ansi12, `application/soap+xml; charset="Windows-1252"`, true},
		{"windows-1252 rejects unknown", ansi12, "application/soap+xml; charset=x-nothing", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.enc.IsContentTypeSupported(tt.contentType))
		})
	}
}

func TestReadMessage(t *testing.T) {
	e := newEncoder(t, message.Soap11)

	m, err := e.ReadMessage(context.Background(), strings.NewReader(soap11Ping), "text/xml")
	require.NoError(t, err)
	require.NotNil(t, m.BodyElement())
	assert.Equal(t, "Ping", m.BodyElement().Tag)
	assert.Equal(t, "http://tempuri.org/", m.BodyElement().NamespaceURI())
	assert.Equal(t, "hello, world", m.BodyElement().SelectElement("s").Text())
}

func TestReadMessage_Prolog(t *testing.T) {
	e := newEncoder(t, message.Soap11)
	body := "\xEF\xBB\xBF<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<!-- comment -->\n" + soap11Ping

	m, err := e.ReadMessage(context.Background(), strings.NewReader(body), "text/xml")
	require.NoError(t, err)
	assert.Equal(t, "Ping", m.BodyElement().Tag)
}

func TestReadMessage_Charsets(t *testing.T) {
	e := newEncoder(t, message.Soap11)
	latin := strings.Replace(soap11Ping, "hello, world", "smörgåsbord", 1)

	t.Run("utf-16 from content type", func(t *testing.T) {
		encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().String(latin)
		require.NoError(t, err)

		m, err := e.ReadMessage(context.Background(), strings.NewReader(encoded), "text/xml; charset=utf-16le")
		require.NoError(t, err)
		assert.Equal(t, "smörgåsbord", m.BodyElement().SelectElement("s").Text())
	})

	t.Run("utf-16 from byte order mark", func(t *testing.T) {
		encoded, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().String(latin)
		require.NoError(t, err)

		m, err := e.ReadMessage(context.Background(), strings.NewReader(encoded), "text/xml")
		require.NoError(t, err)
		assert.Equal(t, "smörgåsbord", m.BodyElement().SelectElement("s").Text())
	})

	t.Run("iso-8859-1 from declaration", func(t *testing.T) {
		encoded, err := charmap.ISO8859_1.NewEncoder().String(`<?xml version="1.0" encoding="ISO-8859-1"?>` + latin)
		require.NoError(t, err)

		m, err := e.ReadMessage(context.Background(), strings.NewReader(encoded), "text/xml")
		require.NoError(t, err)
		assert.Equal(t, "smörgåsbord", m.BodyElement().SelectElement("s").Text())
	})
}

func TestReadMessage_Quotas(t *testing.T) {
	deep := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><a><b><c><d/></c></b></a></s:Body></s:Envelope>`
	long := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><a>` + strings.Repeat("x", 100) + `</a></s:Body></s:Envelope>`
	wide := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><a>` + strings.Repeat("<i/>", 11) + `</a></s:Body></s:Envelope>`
	name := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><` + strings.Repeat("n", 40) + `/></s:Body></s:Envelope>`
	attr := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><a v="` + strings.Repeat("x", 100) + `"/></s:Body></s:Envelope>`

	quotas := ReaderQuotas{MaxDepth: 5, MaxStringContentLength: 50, MaxArrayLength: 10, MaxNameLength: 32}
	e := newEncoder(t, message.Soap11, WithReaderQuotas(quotas))

	tests := []struct {
		name  string
		body  string
		quota string
	}{
		{"depth", deep, "MaxDepth"},
		{"string content", long, "MaxStringContentLength"},
		{"attribute content", attr, "MaxStringContentLength"},
		{"array length", wide, "MaxArrayLength"},
		{"name length", name, "MaxNameLength"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ReadMessage(context.Background(), strings.NewReader(tt.body), "text/xml")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrQuotaExceeded)

			var qe *QuotaError
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, tt.quota, qe.Quota)
		})
	}

	unlimited := newEncoder(t, message.Soap11, WithReaderQuotas(ReaderQuotas{}))
	for _, tt := range tests {
		_, err := unlimited.ReadMessage(context.Background(), strings.NewReader(tt.body), "text/xml")
		assert.NoError(t, err, tt.name)
	}
}

func TestReadMessage_Errors(t *testing.T) {
	e := newEncoder(t, message.Soap11, WithMaxMessageSize(128))

	_, err := e.ReadMessage(context.Background(), strings.NewReader(soap11Ping+strings.Repeat(" ", 200)), "text/xml")
	assert.ErrorIs(t, err, ErrMessageTooLarge)

	_, err = e.ReadMessage(context.Background(), strings.NewReader(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>`), "text/xml")
	assert.ErrorIs(t, err, ErrMalformedXML)

	_, err = e.ReadMessage(context.Background(), strings.NewReader(`<a><b></a></b>`), "text/xml")
	assert.ErrorIs(t, err, ErrMalformedXML)

	_, err = e.ReadMessage(context.Background(), strings.NewReader(`<!DOCTYPE x [<!ENTITY e "x">]><x/>`), "text/xml")
	assert.ErrorIs(t, err, ErrMalformedXML)

	_, err = e.ReadMessage(context.Background(), strings.NewReader(""), "text/xml")
	assert.ErrorIs(t, err, ErrMalformedXML)

	_, err = e.ReadMessage(context.Background(), strings.NewReader(`<e:Envelope xmlns:e="http://www.w3.org/2003/05/soap-envelope"><e:Body/></e:Envelope>`), "text/xml")
	assert.ErrorIs(t, err, message.ErrVersionMismatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.ReadMessage(ctx, strings.NewReader(soap11Ping), "text/xml")
	assert.ErrorIs(t, err, context.Canceled)
}

func pingResponse(v message.Version, text string) *message.Message {
	m := message.New(v)
	el := etree.NewElement("PingResponse")
	el.CreateAttr("xmlns", "http://tempuri.org/")
	el.CreateElement("PingResult").SetText(text)
	m.AddBodyElement(el)
	return m
}

func TestWriteMessage(t *testing.T) {
	e := newEncoder(t, message.Soap11)

	var buf bytes.Buffer
	require.NoError(t, e.WriteMessage(context.Background(), &buf, pingResponse(message.Soap11, "hello, world")))
	assert.Equal(t,
		`<?xml version="1.0" encoding="utf-8"?>`+
			`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>`+
			`<PingResponse xmlns="http://tempuri.org/"><PingResult>hello, world</PingResult></PingResponse>`+
			`</s:Body></s:Envelope>`,
		buf.String())
}

func TestWriteMessage_OmitDeclaration(t *testing.T) {
	e := newEncoder(t, message.Soap11, WithOmitXMLDeclaration(true))
	var buf bytes.Buffer
	require.NoError(t, e.WriteMessage(context.Background(), &buf, pingResponse(message.Soap11, "x")))
	assert.True(t, strings.HasPrefix(buf.String(), "<s:Envelope"))

	// the declaration is kept for encodings other than utf-8
	e = newEncoder(t, message.Soap11, WithOmitXMLDeclaration(true), WithEncoding("utf-16"))
	buf.Reset()
	require.NoError(t, e.WriteMessage(context.Background(), &buf, pingResponse(message.Soap11, "x")))
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(buf.Bytes())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(decoded), `<?xml version="1.0" encoding="utf-16"?>`))
}

func TestWriteMessage_UTF16Preamble(t *testing.T) {
	text := strings.Repeat("åäö€", 200)
	e := newEncoder(t, message.Soap12, WithEncoding("utf-16"), WithBufferSize(64))

	var buf bytes.Buffer
	require.NoError(t, e.WriteMessage(context.Background(), &buf, pingResponse(message.Soap12, text)))

	out := buf.Bytes()
	require.True(t, bytes.HasPrefix(out, []byte{0xFF, 0xFE}))
	assert.Equal(t, 1, bytes.Count(out, []byte{0xFF, 0xFE}), "preamble is written once")

	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(out)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "<PingResult>"+text+"</PingResult>")

	// the same encoder reads its own output
	m, err := e.ReadMessage(context.Background(), bytes.NewReader(out), e.ContentType())
	require.NoError(t, err)
	assert.Equal(t, text, m.BodyElement().SelectElement("PingResult").Text())
}

func TestWriteMessage_ChunkBoundaries(t *testing.T) {
	text := strings.Repeat("üö€", 300)
	small := newEncoder(t, message.Soap11, WithEncoding("iso-8859-15"), WithBufferSize(64))
	large := newEncoder(t, message.Soap11, WithEncoding("iso-8859-15"), WithBufferSize(1<<16))

	var a, b bytes.Buffer
	require.NoError(t, small.WriteMessage(context.Background(), &a, pingResponse(message.Soap11, text)))
	require.NoError(t, large.WriteMessage(context.Background(), &b, pingResponse(message.Soap11, text)))
	assert.Equal(t, b.Bytes(), a.Bytes())

	// characters outside the charset become references, also when a
	// surrogate pair straddles a chunk
	text = strings.Repeat("ü€𝄞", 300)
	a.Reset()
	b.Reset()
	require.NoError(t, small.WriteMessage(context.Background(), &a, pingResponse(message.Soap11, text)))
	require.NoError(t, large.WriteMessage(context.Background(), &b, pingResponse(message.Soap11, text)))
	assert.Equal(t, b.Bytes(), a.Bytes())
	assert.Equal(t, 300, strings.Count(a.String(), "&#119070;"))
}

func TestCharsetNames(t *testing.T) {
	tests := []struct {
		encoding    string
		charset     string
		contentType string
	}{
		{"utf8", "utf-8", "text/xml; charset=utf-8"},
		{"iso-8859-1", "iso-8859-1", "text/xml; charset=iso-8859-1"},
		{"latin1", "iso-8859-1", "text/xml; charset=iso-8859-1"},
		{"ISO-8859-15", "iso-8859-15", "text/xml; charset=iso-8859-15"},
		{"windows-1252", "windows-1252", "text/xml; charset=windows-1252"},
	}
	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			e := newEncoder(t, message.Soap11, WithEncoding(tt.encoding))
			assert.Equal(t, tt.charset, e.CharSet())
			assert.Equal(t, tt.contentType, e.ContentType())
			assert.True(t, e.IsContentTypeSupported(e.ContentType()))
		})
	}
}

func TestWriteRead_SingleByteCharsets(t *testing.T) {
	tests := []struct {
		encoding string
		header   string
		text     string
		refs     []string
	}{
		{"iso-8859-1", "text/xml; charset=iso-8859-1", "Grüße Ω €", []string{"&#937;", "&#8364;"}},
		{"latin1", "text/xml; charset=latin1", "Grüße Ω", []string{"&#937;"}},
		{"windows-1252", "text/xml; charset=windows-1252", "Grüße Ω €", []string{"&#937;"}},
		{"iso-8859-15", "text/xml; charset=iso-8859-15", "smörgåsbord € 𝄞", []string{"&#119070;"}},
	}
	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			e := newEncoder(t, message.Soap11, WithEncoding(tt.encoding))
			require.True(t, e.IsContentTypeSupported(tt.header))

			var buf bytes.Buffer
			require.NoError(t, e.WriteMessage(context.Background(), &buf, pingResponse(message.Soap11, tt.text)))
			assert.True(t, strings.HasPrefix(buf.String(), `<?xml version="1.0" encoding="`+e.CharSet()+`"?>`))
			for _, ref := range tt.refs {
				assert.Contains(t, buf.String(), ref)
			}

			m, err := e.ReadMessage(context.Background(), bytes.NewReader(buf.Bytes()), tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.text, m.BodyElement().SelectElement("PingResult").Text())
		})
	}
}

type countingWriter struct {
	writes int
	bytes.Buffer
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(p)
}

func TestWriteMessage_BufferedFlush(t *testing.T) {
	e := newEncoder(t, message.Soap11, WithBufferSize(1024))

	var w countingWriter
	require.NoError(t, e.WriteMessage(context.Background(), &w, pingResponse(message.Soap11, strings.Repeat("x", 3000))))
	assert.Equal(t, (w.Len()+1023)/1024, w.writes)
}

func TestWriteMessage_Canceled(t *testing.T) {
	e := newEncoder(t, message.Soap11)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := e.WriteMessage(ctx, &buf, pingResponse(message.Soap11, "x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}

func TestWriteRead_None(t *testing.T) {
	e := newEncoder(t, message.None, WithOmitXMLDeclaration(true))

	var buf bytes.Buffer
	require.NoError(t, e.WriteMessage(context.Background(), &buf, pingResponse(message.None, "bare")))
	assert.Equal(t, `<PingResponse xmlns="http://tempuri.org/"><PingResult>bare</PingResult></PingResponse>`, buf.String())

	m, err := e.ReadMessage(context.Background(), &buf, "application/xml")
	require.NoError(t, err)
	assert.Equal(t, "PingResponse", m.BodyElement().Tag)
}
