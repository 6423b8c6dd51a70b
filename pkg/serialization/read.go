package serialization

import (
	"encoding"
	"encoding/base64"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/sirosfoundation/go-soap/pkg/message"
)

var elementType = reflect.TypeOf((*etree.Element)(nil))

func (c *Codec) read(el *etree.Element, t reflect.Type) (reflect.Value, error) {
	if s, ok := c.custom(t); ok {
		v, err := s.Unmarshal(el, Element{Name: el.Tag, Namespace: el.NamespaceURI()}, t)
		if err != nil {
			return reflect.Value{}, err
		}
		return assignable(v, t)
	}
	if message.IsNil(el) {
		return reflect.Zero(t), nil
	}

	switch {
	case t.Kind() == reflect.Pointer:
		if t == elementType {
			return reflect.ValueOf(message.Detach(el)), nil
		}
		inner, err := c.read(el, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(inner)
		return p, nil

	case t.Kind() == reflect.Interface:
		return c.readInterface(el, t)

	case reflect.PointerTo(t).Implements(textUnmarshalerType):
		return unmarshalText(strings.TrimSpace(el.Text()), t)

	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(el.Text()))
		if err != nil {
			return reflect.Value{}, err
		}
		v := reflect.New(t).Elem()
		v.SetBytes(b)
		return v, nil

	case t.Kind() == reflect.Struct:
		return c.readStruct(el, t)

	case t.Kind() == reflect.Slice:
		children := el.ChildElements()
		s := reflect.MakeSlice(t, 0, len(children))
		for i, child := range children {
			item, err := c.read(child, t.Elem())
			if err != nil {
				return reflect.Value{}, fieldError(fmt.Sprintf("[%d]", i), err)
			}
			s = reflect.Append(s, item)
		}
		return s, nil

	case t.Kind() == reflect.Array:
		v := reflect.New(t).Elem()
		for i, child := range el.ChildElements() {
			if i >= t.Len() {
				return reflect.Value{}, fmt.Errorf("more than %d items", t.Len())
			}
			item, err := c.read(child, t.Elem())
			if err != nil {
				return reflect.Value{}, fieldError(fmt.Sprintf("[%d]", i), err)
			}
			v.Index(i).Set(item)
		}
		return v, nil
	}

	return parseScalar(el.Text(), t)
}

// readInterface resolves the concrete type from i:type against the known
// types and the xsd primitives. Untyped simple content reads as a string and
// untyped complex content as a detached *etree.Element.
func (c *Codec) readInterface(el *etree.Element, t reflect.Type) (reflect.Value, error) {
	if qname := xsiType(el); qname != "" {
		local := message.LocalName(qname)
		concrete, ok := c.knownTypes[local]
		if !ok {
			concrete, ok = primitiveTypes[local]
		}
		if !ok {
			return reflect.Value{}, fmt.Errorf("%w: unknown type %q", ErrUnsupportedType, qname)
		}
		v, err := c.read(el, concrete)
		if err != nil {
			return reflect.Value{}, err
		}
		switch {
		case v.Type().Implements(t):
			return v, nil
		case reflect.PointerTo(v.Type()).Implements(t):
			p := reflect.New(v.Type())
			p.Elem().Set(v)
			return p, nil
		}
		return reflect.Value{}, fmt.Errorf("type %s does not implement %s", v.Type(), t)
	}

	if t.NumMethod() > 0 {
		return reflect.Value{}, fmt.Errorf("%w: no type information for %s", ErrUnsupportedType, t)
	}
	if len(el.ChildElements()) == 0 {
		return reflect.ValueOf(el.Text()), nil
	}
	return reflect.ValueOf(message.Detach(el)), nil
}

func (c *Codec) readStruct(el *etree.Element, t reflect.Type) (reflect.Value, error) {
	v := reflect.New(t).Elem()
	fields := c.structFields(t)

	for _, f := range fields {
		switch {
		case f.chardata:
			fv, err := fromText(el.Text(), f.typ)
			if err != nil {
				return reflect.Value{}, fieldError(f.name, err)
			}
			v.FieldByIndex(f.index).Set(fv)
		case f.attr:
			for _, a := range el.Attr {
				if a.Key != f.name || a.Space == "xmlns" {
					continue
				}
				fv, err := fromText(a.Value, f.typ)
				if err != nil {
					return reflect.Value{}, fieldError(f.name, err)
				}
				v.FieldByIndex(f.index).Set(fv)
				break
			}
		}
	}

	for _, child := range el.ChildElements() {
		f, ok := matchField(fields, child.Tag)
		if !ok {
			continue
		}
		fv, err := c.read(child, f.typ)
		if err != nil {
			return reflect.Value{}, fieldError(f.name, err)
		}
		v.FieldByIndex(f.index).Set(fv)
	}
	return v, nil
}

// matchField finds the element member with the given local name, falling
// back to a case-insensitive match.
func matchField(fields []fieldInfo, local string) (fieldInfo, bool) {
	for _, f := range fields {
		if !f.attr && !f.chardata && f.name == local {
			return f, true
		}
	}
	for _, f := range fields {
		if !f.attr && !f.chardata && strings.EqualFold(f.name, local) {
			return f, true
		}
	}
	return fieldInfo{}, false
}

func xsiType(el *etree.Element) string {
	for i := range el.Attr {
		a := &el.Attr[i]
		if a.Key == "type" && a.Space != "" && a.NamespaceURI() == message.NsXSI {
			return a.Value
		}
	}
	return ""
}

// fromText converts attribute or character data to t.
func fromText(s string, t reflect.Type) (reflect.Value, error) {
	if t.Kind() == reflect.Pointer {
		inner, err := fromText(s, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(inner)
		return p, nil
	}
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return unmarshalText(strings.TrimSpace(s), t)
	}
	return parseScalar(s, t)
}

func unmarshalText(s string, t reflect.Type) (reflect.Value, error) {
	p := reflect.New(t)
	if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
		return reflect.Value{}, err
	}
	return p.Elem(), nil
}

func parseScalar(s string, t reflect.Type) (reflect.Value, error) {
	v := reflect.New(t).Elem()
	trimmed := strings.TrimSpace(s)

	switch t.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(trimmed)
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(trimmed, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(trimmed, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := parseFloat(trimmed, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetFloat(f)
	default:
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	return v, nil
}

func parseFloat(s string, bits int) (float64, error) {
	switch s {
	case "INF", "+INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	case "NaN":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, bits)
}

// assignable checks a value returned by a custom serializer against t.
func assignable(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(t):
		return rv, nil
	case rv.Type().ConvertibleTo(t):
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("custom serializer returned %T, want %s", v, t)
}
