package serialization

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ns = "http://tempuri.org/"

type Status string

type Address struct {
	Street string
	City   string `xml:"Town"`
	Zip    *int
}

type Customer struct {
	ID       int     `xml:"id,attr"`
	Name     string
	Email    *string
	Active   bool
	Balance  float64
	Created  time.Time
	Tags     []string
	Status   Status
	Home     *Address
	Previous []Address
	Avatar   []byte
	Notes    string `xml:"-"`
}

type Shape interface {
	Area() float64
}

type Square struct {
	Side float64
}

func (s Square) Area() float64 { return s.Side * s.Side }

type Drawing struct {
	Title string
	Main  Shape
	Any   any
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func sampleCustomer() Customer {
	return Customer{
		ID:      42,
		Name:    "Ada",
		Email:   strPtr("ada@example.org"),
		Active:  true,
		Balance: 1234.5,
		Created: time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		Tags:    []string{"gold", "early"},
		Status:  Status("active"),
		Home:    &Address{Street: "Main St 1", City: "Stockholm", Zip: intPtr(11122)},
		Previous: []Address{
			{Street: "Old Rd", City: "Uppsala"},
		},
		Avatar: []byte{0x01, 0x02, 0xff},
	}
}

// reparse writes el to text and parses it again so reads never see the
// writer's in-memory tree.
func reparse(t *testing.T, el *etree.Element) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	doc.SetRoot(el)
	s, err := doc.WriteToString()
	require.NoError(t, err)

	parsed := etree.NewDocument()
	require.NoError(t, parsed.ReadFromString(s))
	return parsed.Root()
}

func TestRoundTrip(t *testing.T) {
	for _, conv := range []Convention{DataContract, XmlSerializer} {
		t.Run(conv.String(), func(t *testing.T) {
			codec := New(conv)
			in := sampleCustomer()

			el, err := codec.Marshal(Element{Name: "customer", Namespace: ns}, in)
			require.NoError(t, err)

			out, err := codec.Unmarshal(reparse(t, el), Element{Name: "customer"}, reflect.TypeFor[Customer]())
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestRoundTrip_NilMembers(t *testing.T) {
	for _, conv := range []Convention{DataContract, XmlSerializer} {
		t.Run(conv.String(), func(t *testing.T) {
			codec := New(conv)
			in := Customer{Name: "Bob", Created: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}

			el, err := codec.Marshal(Element{Name: "customer", Namespace: ns}, in)
			require.NoError(t, err)

			out, err := codec.Unmarshal(reparse(t, el), Element{}, reflect.TypeFor[Customer]())
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestDataContract_Layout(t *testing.T) {
	codec := New(DataContract)
	el, err := codec.Marshal(Element{Name: "GetResult", Namespace: ns}, Address{Street: "Main", City: "Lund"})
	require.NoError(t, err)

	doc := etree.NewDocument()
	doc.SetRoot(el)
	out, err := doc.WriteToString()
	require.NoError(t, err)

	assert.Equal(t,
		`<GetResult xmlns="http://tempuri.org/" xmlns:a="http://schemas.datacontract.org/2004/07/serialization" xmlns:i="http://www.w3.org/2001/XMLSchema-instance">`+
			`<a:Street>Main</a:Street><a:Town>Lund</a:Town><a:Zip i:nil="true"/></GetResult>`,
		out)
}

func TestXmlSerializer_Layout(t *testing.T) {
	codec := New(XmlSerializer)
	el, err := codec.Marshal(Element{Name: "GetResult", Namespace: ns}, Address{Street: "Main", City: "Lund"})
	require.NoError(t, err)

	doc := etree.NewDocument()
	doc.SetRoot(el)
	out, err := doc.WriteToString()
	require.NoError(t, err)

	assert.Equal(t, `<GetResult xmlns="http://tempuri.org/"><Street>Main</Street><Town>Lund</Town></GetResult>`, out)
}

func TestCollections(t *testing.T) {
	codec := New(DataContract)

	el, err := codec.Marshal(Element{Name: "values", Namespace: ns}, []int{1, 2, 3})
	require.NoError(t, err)
	items := el.ChildElements()
	require.Len(t, items, 3)
	assert.Equal(t, "int", items[0].Tag)
	assert.Equal(t, NsArrays, items[0].NamespaceURI())

	el, err = codec.Marshal(Element{Name: "values", Namespace: ns, ItemName: "v"}, []string{"x"})
	require.NoError(t, err)
	require.Len(t, el.ChildElements(), 1)
	assert.Equal(t, "v", el.ChildElements()[0].FullTag())

	out, err := codec.Unmarshal(reparse(t, el), Element{}, reflect.TypeFor[[]string]())
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, out)

	el, err = codec.Marshal(Element{Name: "empty", Namespace: ns}, []string{})
	require.NoError(t, err)
	out, err = codec.Unmarshal(reparse(t, el), Element{}, reflect.TypeFor[[]string]())
	require.NoError(t, err)
	assert.Equal(t, []string{}, out)

	var none []string
	el, err = codec.Marshal(Element{Name: "none", Namespace: ns}, none)
	require.NoError(t, err)
	out, err = codec.Unmarshal(reparse(t, el), Element{}, reflect.TypeFor[[]string]())
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestKnownTypes(t *testing.T) {
	for _, conv := range []Convention{DataContract, XmlSerializer} {
		t.Run(conv.String(), func(t *testing.T) {
			codec := New(conv, WithKnownTypes(reflect.TypeFor[Square]()))
			in := Drawing{Title: "box", Main: Square{Side: 2}, Any: int64(7)}

			el, err := codec.Marshal(Element{Name: "drawing", Namespace: ns}, in)
			require.NoError(t, err)

			out, err := codec.Unmarshal(reparse(t, el), Element{}, reflect.TypeFor[Drawing]())
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestUnknownInterfaceType(t *testing.T) {
	codec := New(DataContract)
	el, err := codec.Marshal(Element{Name: "drawing", Namespace: ns}, Drawing{Main: Square{Side: 1}})
	require.NoError(t, err)

	_, err = codec.Unmarshal(reparse(t, el), Element{}, reflect.TypeFor[Drawing]())
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestLenientRead(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<c xmlns:x="urn:other" id="9">
  <x:town>Malmo</x:town>
  <Unknown>ignored</Unknown>
  <Street>Long</Street>
</c>`))

	out, err := New(XmlSerializer).Unmarshal(doc.Root(), Element{}, reflect.TypeFor[Address]())
	require.NoError(t, err)
	assert.Equal(t, Address{Street: "Long", City: "Malmo"}, out)
}

func TestMismatchReportsPath(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<c><Home><Zip>abc</Zip></Home></c>`))

	_, err := New(DataContract).Unmarshal(doc.Root(), Element{Name: "customer"}, reflect.TypeFor[Customer]())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deserialize customer: Home.Zip:")
}

func TestUnsupportedType(t *testing.T) {
	_, err := New(DataContract).Marshal(Element{Name: "m", Namespace: ns}, map[string]int{"a": 1})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestScalars(t *testing.T) {
	codec := New(XmlSerializer)
	tests := []struct {
		in   any
		text string
	}{
		{"hello, world", "hello, world"},
		{true, "true"},
		{int32(-5), "-5"},
		{uint16(7), "7"},
		{1.5, "1.5"},
		{float32(0.25), "0.25"},
	}
	for _, tt := range tests {
		el, err := codec.Marshal(Element{Name: "v", Namespace: ns}, tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.text, el.Text())

		out, err := codec.Unmarshal(el, Element{}, reflect.TypeOf(tt.in))
		require.NoError(t, err)
		assert.Equal(t, tt.in, out)
	}
}

type upperSerializer struct{}

func (upperSerializer) Marshal(e Element, v any) (*etree.Element, error) {
	el := etree.NewElement(e.Name)
	el.CreateAttr("xmlns", e.Namespace)
	el.SetText(strings.ToUpper(string(v.(Status))))
	return el, nil
}

func (upperSerializer) Unmarshal(el *etree.Element, _ Element, _ reflect.Type) (any, error) {
	return Status(strings.ToLower(el.Text())), nil
}

func TestResolver(t *testing.T) {
	resolver := ResolverFunc(func(t reflect.Type) (Serializer, bool) {
		if t == reflect.TypeFor[Status]() {
			return upperSerializer{}, true
		}
		return nil, false
	})
	codec := New(DataContract, WithResolver(resolver))

	in := sampleCustomer()
	el, err := codec.Marshal(Element{Name: "customer", Namespace: ns}, in)
	require.NoError(t, err)

	var status *etree.Element
	for _, child := range el.ChildElements() {
		if child.Tag == "Status" {
			status = child
		}
	}
	require.NotNil(t, status)
	assert.Equal(t, "ACTIVE", status.Text())

	out, err := codec.Unmarshal(reparse(t, el), Element{}, reflect.TypeFor[Customer]())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseConvention(t *testing.T) {
	c, err := ParseConvention("XmlSerializer")
	require.NoError(t, err)
	assert.Equal(t, XmlSerializer, c)

	c, err = ParseConvention("data-contract")
	require.NoError(t, err)
	assert.Equal(t, DataContract, c)

	_, err = ParseConvention("json")
	assert.Error(t, err)
}
