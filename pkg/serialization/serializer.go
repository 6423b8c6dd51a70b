package serialization

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/beevik/etree"
)

// NsArrays is the namespace of primitive collection items in the
// DataContract convention
const NsArrays = "http://schemas.microsoft.com/2003/10/Serialization/Arrays"

// ErrUnsupportedType is returned for values that have no XML form
var ErrUnsupportedType = errors.New("unsupported type")

// Convention selects the XML layout of serialized values
type Convention int

const (
	// DataContract is the structural convention with prefixed members
	DataContract Convention = iota
	// XmlSerializer is the document-literal convention
	XmlSerializer
)

func (c Convention) String() string {
	if c == XmlSerializer {
		return "XmlSerializer"
	}
	return "DataContract"
}

// ParseConvention parses a configuration value such as "datacontract" or
// "xmlserializer".
func ParseConvention(s string) (Convention, error) {
	switch strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(s)) {
	case "", "datacontract", "datacontractserializer":
		return DataContract, nil
	case "xmlserializer", "xml", "documentliteral":
		return XmlSerializer, nil
	}
	return 0, fmt.Errorf("unknown serialization convention %q", s)
}

// Element names the XML element a value is written to or read from.
type Element struct {
	Name      string
	Namespace string
	// ItemName overrides the item element name of a collection
	ItemName string
}

// Serializer converts values of specific types to and from XML elements.
type Serializer interface {
	Marshal(e Element, v any) (*etree.Element, error)
	Unmarshal(el *etree.Element, e Element, t reflect.Type) (any, error)
}

// Resolver returns a custom serializer for a type, if it has one.
type Resolver interface {
	Resolve(t reflect.Type) (Serializer, bool)
}

// ResolverFunc adapts a function to the Resolver interface
type ResolverFunc func(t reflect.Type) (Serializer, bool)

func (f ResolverFunc) Resolve(t reflect.Type) (Serializer, bool) {
	return f(t)
}

// Codec is the built-in Serializer for one convention. It is safe for
// concurrent use.
type Codec struct {
	convention Convention
	knownTypes map[string]reflect.Type
	resolver   Resolver
	fields     sync.Map // reflect.Type -> []fieldInfo
}

// Option configures a Codec
type Option func(*Codec)

// WithKnownTypes registers the concrete types that interface typed values
// may carry, keyed by type name.
func WithKnownTypes(types ...reflect.Type) Option {
	return func(c *Codec) {
		for _, t := range types {
			base := t
			if base.Kind() == reflect.Pointer {
				base = base.Elem()
			}
			c.knownTypes[base.Name()] = t
		}
	}
}

// WithResolver installs a custom serializer resolver.
func WithResolver(r Resolver) Option {
	return func(c *Codec) {
		c.resolver = r
	}
}

// New creates a codec for the given convention.
func New(convention Convention, opts ...Option) *Codec {
	c := &Codec{
		convention: convention,
		knownTypes: make(map[string]reflect.Type),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convention returns the codec convention.
func (c *Codec) Convention() Convention {
	return c.convention
}

func (c *Codec) custom(t reflect.Type) (Serializer, bool) {
	if c.resolver == nil || t == nil {
		return nil, false
	}
	return c.resolver.Resolve(t)
}

// Marshal writes v as element e.
func (c *Codec) Marshal(e Element, v any) (*etree.Element, error) {
	if v != nil {
		if s, ok := c.custom(reflect.TypeOf(v)); ok {
			return s.Marshal(e, v)
		}
	}

	root := etree.NewElement(e.Name)
	root.CreateAttr("xmlns", e.Namespace)

	w := &writer{codec: c, prefixes: make(map[string]string), elementNS: e.Namespace}
	if err := w.value(root, reflect.ValueOf(v), e.ItemName); err != nil {
		return nil, fmt.Errorf("serialize %s: %w", e.Name, err)
	}
	w.declare(root)
	return root, nil
}

// Unmarshal reads el into a new value of type t.
func (c *Codec) Unmarshal(el *etree.Element, e Element, t reflect.Type) (any, error) {
	if s, ok := c.custom(t); ok {
		return s.Unmarshal(el, e, t)
	}
	v, err := c.read(el, t)
	if err != nil {
		name := e.Name
		if name == "" {
			name = el.Tag
		}
		return nil, fmt.Errorf("deserialize %s: %w", name, err)
	}
	return v.Interface(), nil
}

// fieldError prefixes err with a member name, building a dotted path as
// errors bubble up.
func fieldError(name string, err error) error {
	var fe *pathError
	if errors.As(err, &fe) {
		return &pathError{path: name + "." + fe.path, err: fe.err}
	}
	return &pathError{path: name, err: err}
}

type pathError struct {
	path string
	err  error
}

func (e *pathError) Error() string {
	return e.path + ": " + e.err.Error()
}

func (e *pathError) Unwrap() error {
	return e.err
}
