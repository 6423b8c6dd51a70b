package message

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, xml string, version Version) *Message {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xml))
	m, err := FromDocument(doc, version)
	require.NoError(t, err)
	return m
}

func TestNew_Soap11(t *testing.T) {
	m := New(Soap11, WithNamespace("tns", "http://tempuri.org/"))
	el := etree.NewElement("PingResponse")
	el.CreateAttr("xmlns", "http://tempuri.org/")
	m.AddBodyElement(el)

	doc := m.Prepare()
	out, err := doc.WriteToString()
	require.NoError(t, err)

	assert.Contains(t, out, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" xmlns:tns="http://tempuri.org/">`)
	assert.Contains(t, out, `<s:Body><PingResponse xmlns="http://tempuri.org/"/></s:Body>`)
	assert.NotContains(t, out, "s:Header", "empty header is dropped")
}

func TestFromDocument(t *testing.T) {
	xml := `<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:tem="http://tempuri.org/" xmlns:extra="urn:extra">
  <soapenv:Header><tem:Token>abc</tem:Token></soapenv:Header>
  <soapenv:Body><tem:Ping><tem:s>hello</tem:s></tem:Ping></soapenv:Body>
</soapenv:Envelope>`

	m := parse(t, xml, Soap11)

	require.NotNil(t, m.BodyElement())
	assert.Equal(t, "Ping", m.BodyElement().Tag)
	assert.Equal(t, "http://tempuri.org/", m.BodyElement().NamespaceURI())
	require.Len(t, m.Headers(), 1)
	assert.Equal(t, "abc", m.Header("Token", "http://tempuri.org/").Text())
	assert.Nil(t, m.Header("Token", "urn:other"))
	assert.False(t, m.IsFault())
}

func TestFromDocument_VersionMismatch(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<e:Envelope xmlns:e="http://www.w3.org/2003/05/soap-envelope"><e:Body/></e:Envelope>`))

	_, err := FromDocument(doc, Soap11)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestFromDocument_NotEnvelope(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<Ping xmlns="http://tempuri.org/"/>`))

	_, err := FromDocument(doc, Soap12)
	assert.ErrorIs(t, err, ErrNotEnvelope)
}

func TestFromDocument_MissingBody(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<e:Envelope xmlns:e="http://schemas.xmlsoap.org/soap/envelope/"><e:Header/></e:Envelope>`))

	_, err := FromDocument(doc, Soap11)
	assert.ErrorIs(t, err, ErrMissingBody)
}

func TestFromDocument_None(t *testing.T) {
	m := parse(t, `<Ping xmlns="http://tempuri.org/"><s>x</s></Ping>`, None)

	require.NotNil(t, m.BodyElement())
	assert.Equal(t, "Ping", m.BodyElement().Tag)
	assert.Nil(t, m.Envelope())

	out, err := m.Prepare().WriteToString()
	require.NoError(t, err)
	assert.Equal(t, `<Ping xmlns="http://tempuri.org/"><s>x</s></Ping>`, out)
}

func TestDetach_CarriesNamespaces(t *testing.T) {
	m := parse(t, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" xmlns:t="urn:t"><s:Body><t:Ping><t:a>1</t:a></t:Ping></s:Body></s:Envelope>`, Soap11)

	detached := Detach(m.BodyElement())
	doc := etree.NewDocument()
	doc.SetRoot(detached)
	out, err := doc.WriteToString()
	require.NoError(t, err)

	assert.Contains(t, out, `xmlns:t="urn:t"`)
	assert.Contains(t, out, `xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"`)
	assert.Equal(t, "urn:t", detached.NamespaceURI())
}

func TestIsNil(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<r xmlns:i="http://www.w3.org/2001/XMLSchema-instance"><a i:nil="true"/><b/></r>`))

	assert.True(t, IsNil(doc.Root().SelectElement("a")))
	assert.False(t, IsNil(doc.Root().SelectElement("b")))
}

func TestAddressing(t *testing.T) {
	in := parse(t, `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope" xmlns:a="http://www.w3.org/2005/08/addressing">
<s:Header><a:Action s:mustUnderstand="1">http://tempuri.org/IPing/Ping</a:Action><a:MessageID>urn:uuid:1</a:MessageID></s:Header>
<s:Body/></s:Envelope>`, Soap12WSAddressing10)

	assert.Equal(t, "http://tempuri.org/IPing/Ping", in.Action())
	assert.Equal(t, "urn:uuid:1", in.MessageID())

	out := New(Soap12WSAddressing10)
	out.SetAddressing("http://tempuri.org/IPing/PingResponse", in.MessageID())
	assert.Equal(t, "http://tempuri.org/IPing/PingResponse", out.Action())
	assert.NotEmpty(t, out.MessageID())
	rel := out.Header("RelatesTo", NsWSA10)
	require.NotNil(t, rel)
	assert.Equal(t, "urn:uuid:1", rel.Text())
}

func TestAddressing_NoopWithoutAddressing(t *testing.T) {
	out := New(Soap11)
	out.SetAddressing("action", "")
	assert.Empty(t, out.Headers())
	assert.Empty(t, out.Action())
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in   string
		want Version
	}{
		{"soap11", Soap11},
		{"Soap12", Soap12},
		{"soap12-wsa10", Soap12WSAddressing10},
		{"soap11_wsa2004", Soap11WSAddressingAugust2004},
		{"none", None},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseVersion("soap13")
	assert.Error(t, err)
}

func TestVersion_MediaType(t *testing.T) {
	assert.Equal(t, "text/xml", Soap11.MediaType())
	assert.Equal(t, "application/soap+xml", Soap12WSAddressing10.MediaType())
	assert.Equal(t, "application/xml", None.MediaType())
	assert.Equal(t, "Soap12WSAddressing10", Soap12WSAddressing10.String())
}

func TestFault_CodeMapping(t *testing.T) {
	tests := []struct {
		name    string
		version Version
		code    FaultCode
		subcode string
		want    string
	}{
		{"soap11 receiver", Soap11, FaultCodeReceiver, "", "s:Server"},
		{"soap11 sender", Soap11, FaultCodeSender, "", "s:Client"},
		{"soap11 receiver subcode", Soap11, FaultCodeReceiver, "ServerTooBusy", "s:Server.ServerTooBusy"},
		{"soap11 version mismatch", Soap11, FaultCodeVersionMismatch, "", "s:VersionMismatch"},
		{"none receiver", None, FaultCodeReceiver, "", "Server"},
		{"soap12 receiver", Soap12, FaultCodeReceiver, "", "s:Receiver"},
		{"soap12 sender", Soap12, FaultCodeSender, "", "s:Sender"},
		{"soap12 sender subcode", Soap12, FaultCodeSender, "DuplicateMessage", "s:Sender"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewFaultMessage(tt.version, &Fault{Code: tt.code, Subcode: tt.subcode, Reason: "failed"})
			el := m.BodyElement()

			if tt.version.Envelope == EnvelopeSoap12 {
				code := el.SelectElement("Code")
				require.NotNil(t, code)
				assert.Equal(t, tt.want, code.SelectElement("Value").Text())
				if sub := code.SelectElement("Subcode"); tt.subcode != "" {
					require.NotNil(t, sub)
					assert.Equal(t, tt.subcode, sub.SelectElement("Value").Text())
				} else {
					assert.Nil(t, sub)
				}
			} else {
				assert.Equal(t, tt.want, el.SelectElement("faultcode").Text())
			}

			f, err := ParseFault(m)
			require.NoError(t, err)
			assert.Equal(t, tt.code, f.Code)
			assert.Equal(t, tt.subcode, f.Subcode)
			assert.Equal(t, "failed", f.Reason)
		})
	}
}
