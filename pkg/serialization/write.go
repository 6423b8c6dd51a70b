package serialization

import (
	"encoding"
	"encoding/base64"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/beevik/etree"
	"github.com/sirosfoundation/go-soap/pkg/message"
)

// writer holds the state of one Marshal call. Prefix declarations are
// collected while writing and placed on the root element at the end so
// every prefix is in scope for the whole subtree.
type writer struct {
	codec     *Codec
	elementNS string
	prefixes  map[string]string
	order     []string
	next      int
	usesXSI   bool
}

func (w *writer) prefix(ns string) string {
	if ns == message.NsXSI {
		w.usesXSI = true
		return message.PrefixXSI
	}
	if p, ok := w.prefixes[ns]; ok {
		return p
	}
	var p string
	for {
		p = prefixName(w.next)
		w.next++
		if p != message.PrefixXSI && p != message.PrefixEnvelope {
			break
		}
	}
	w.prefixes[ns] = p
	w.order = append(w.order, ns)
	return p
}

// prefixName maps 0, 1, ... 25, 26 to a, b, ... z, aa.
func prefixName(n int) string {
	name := ""
	for {
		name = string(rune('a'+n%26)) + name
		n = n/26 - 1
		if n < 0 {
			return name
		}
	}
}

func (w *writer) declare(root *etree.Element) {
	for _, ns := range w.order {
		root.CreateAttr("xmlns:"+w.prefixes[ns], ns)
	}
	if w.usesXSI {
		root.CreateAttr("xmlns:"+message.PrefixXSI, message.NsXSI)
	}
}

func (w *writer) qualify(ns, local string) string {
	if ns == "" {
		return local
	}
	return w.prefix(ns) + ":" + local
}

func (w *writer) setNil(el *etree.Element) {
	w.usesXSI = true
	el.CreateAttr(message.PrefixXSI+":nil", "true")
}

func (w *writer) value(el *etree.Element, v reflect.Value, itemName string) error {
	if !v.IsValid() {
		w.setNil(el)
		return nil
	}
	t := v.Type()

	switch {
	case v.Kind() == reflect.Interface:
		if v.IsNil() {
			w.setNil(el)
			return nil
		}
		concrete := v.Elem()
		w.typeAttr(el, concrete.Type())
		return w.value(el, concrete, itemName)

	case v.Kind() == reflect.Pointer:
		if v.IsNil() {
			w.setNil(el)
			return nil
		}
		return w.value(el, v.Elem(), itemName)

	case t.Implements(textMarshalerType):
		return w.text(el, v)

	case v.CanAddr() && reflect.PointerTo(t).Implements(textMarshalerType):
		return w.text(el, v.Addr())

	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		if v.IsNil() {
			w.setNil(el)
			return nil
		}
		el.SetText(base64.StdEncoding.EncodeToString(v.Bytes()))
		return nil

	case t.Kind() == reflect.Struct:
		return w.structValue(el, v)

	case t.Kind() == reflect.Slice, t.Kind() == reflect.Array:
		if t.Kind() == reflect.Slice && v.IsNil() {
			w.setNil(el)
			return nil
		}
		return w.collection(el, v, itemName)
	}

	s, err := formatScalar(v)
	if err != nil {
		return err
	}
	el.SetText(s)
	return nil
}

func (w *writer) text(el *etree.Element, v reflect.Value) error {
	b, err := v.Interface().(encoding.TextMarshaler).MarshalText()
	if err != nil {
		return err
	}
	el.SetText(string(b))
	return nil
}

// typeAttr writes i:type for a value held in an interface typed slot.
func (w *writer) typeAttr(el *etree.Element, t reflect.Type) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	var ns string
	switch {
	case isPrimitive(t):
		ns = message.NsXSD
	case w.codec.convention == DataContract:
		ns = typeNamespace(t, w.elementNS)
	default:
		ns = w.elementNS
	}
	w.usesXSI = true
	el.CreateAttr(message.PrefixXSI+":type", w.qualify(ns, typeName(t)))
}

func (w *writer) structValue(el *etree.Element, v reflect.Value) error {
	t := v.Type()
	ns := ""
	if w.codec.convention == DataContract {
		ns = typeNamespace(t, w.elementNS)
	}

	for _, f := range w.codec.structFields(t) {
		fv := v.FieldByIndex(f.index)
		if f.omitEmpty && fv.IsZero() {
			continue
		}
		if f.attr || f.chardata {
			if isNilable(fv) && fv.IsNil() {
				continue
			}
			s, err := w.plainText(fv)
			if err != nil {
				return fieldError(f.name, err)
			}
			if f.chardata {
				el.SetText(s)
			} else {
				el.CreateAttr(f.name, s)
			}
			continue
		}
		if w.codec.convention == XmlSerializer && isNilable(fv) && fv.IsNil() {
			continue
		}
		if err := w.member(el, f, fv, ns); err != nil {
			return fieldError(f.name, err)
		}
	}
	return nil
}

func (w *writer) member(el *etree.Element, f fieldInfo, fv reflect.Value, typeNS string) error {
	ns := f.namespace
	if s, ok := w.codec.custom(f.typ); ok {
		if ns == "" {
			ns = typeNS
		}
		if ns == "" {
			ns = w.elementNS
		}
		child, err := s.Marshal(Element{Name: f.name, Namespace: ns}, fv.Interface())
		if err != nil {
			return err
		}
		el.AddChild(child)
		return nil
	}

	var child *etree.Element
	if w.codec.convention == DataContract {
		if ns == "" {
			ns = typeNS
		}
		child = el.CreateElement(w.qualify(ns, f.name))
	} else {
		child = el.CreateElement(f.name)
		if ns != "" {
			child.CreateAttr("xmlns", ns)
		}
	}
	return w.value(child, fv, "")
}

func (w *writer) collection(el *etree.Element, v reflect.Value, itemName string) error {
	et := v.Type().Elem()
	name, ns := itemName, ""
	if name == "" {
		name = typeName(et)
		if w.codec.convention == DataContract {
			base := et
			for base.Kind() == reflect.Pointer {
				base = base.Elem()
			}
			if isPrimitive(base) || base.Kind() == reflect.Interface {
				ns = NsArrays
			} else {
				ns = typeNamespace(base, w.elementNS)
			}
		}
	}

	for i := 0; i < v.Len(); i++ {
		item := el.CreateElement(w.qualify(ns, name))
		if err := w.value(item, v.Index(i), ""); err != nil {
			return fieldError(fmt.Sprintf("[%d]", i), err)
		}
	}
	return nil
}

// plainText formats a value written as an attribute or character data.
func (w *writer) plainText(v reflect.Value) (string, error) {
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Type().Implements(textMarshalerType) {
		b, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		return string(b), err
	}
	return formatScalar(v)
}

func formatScalar(v reflect.Value) (string, error) {
	switch v.Kind() {
	case reflect.String:
		return v.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return formatFloat(v.Float(), v.Type().Bits()), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, v.Type())
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	case math.IsNaN(f):
		return "NaN"
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.FormatFloat(f, 'E', -1, bits)
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}
