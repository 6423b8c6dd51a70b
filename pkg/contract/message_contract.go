package contract

import (
	"reflect"
	"strings"
)

// MessageContract is implemented by types that are written as their own
// message instead of being wrapped as an operation parameter.
type MessageContract interface {
	// WrapperName is the body wrapper element, used when IsWrapped is true.
	// Empty selects the type name.
	WrapperName() string
	// WrapperNamespace of the wrapper and members. Empty selects the
	// contract namespace.
	WrapperNamespace() string
	// IsWrapped reports whether body members are written under a wrapper
	// element or directly into the body.
	IsWrapped() bool
}

var messageContractType = reflect.TypeOf((*MessageContract)(nil)).Elem()

// MessageDescription is the wire layout of a message contract type.
type MessageDescription struct {
	// Type is the struct type, never a pointer
	Type             reflect.Type
	WrapperName      string
	WrapperNamespace string
	IsWrapped        bool
	Headers          []MemberDescription
	Body             []MemberDescription
}

// MemberDescription is one header or body member of a message contract.
type MemberDescription struct {
	FieldIndex []int
	Name       string
	Namespace  string
	Type       reflect.Type
}

// IsMessageContract reports whether t, or a pointer to it, implements
// MessageContract.
func IsMessageContract(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && reflect.PointerTo(t).Implements(messageContractType)
}

// DescribeMessage builds the wire layout of a message contract type. The
// second result is false when t is not a message contract.
func DescribeMessage(t reflect.Type, defaultNamespace string) (*MessageDescription, bool) {
	if !IsMessageContract(t) {
		return nil, false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	mc := reflect.New(t).Interface().(MessageContract)

	d := &MessageDescription{
		Type:             t,
		WrapperName:      mc.WrapperName(),
		WrapperNamespace: mc.WrapperNamespace(),
		IsWrapped:        mc.IsWrapped(),
	}
	if d.WrapperNamespace == "" {
		d.WrapperNamespace = defaultNamespace
	}
	if d.IsWrapped && d.WrapperName == "" {
		d.WrapperName = t.Name()
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, ns, skip := memberName(f)
		if skip {
			continue
		}
		if ns == "" {
			ns = d.WrapperNamespace
		}
		m := MemberDescription{FieldIndex: f.Index, Name: name, Namespace: ns, Type: f.Type}
		if hasTagOption(f.Tag.Get("soap"), "header") {
			d.Headers = append(d.Headers, m)
		} else {
			d.Body = append(d.Body, m)
		}
	}
	return d, true
}

// memberName reads the element name and namespace from an xml struct tag
// of the form "ns name" or "name".
func memberName(f reflect.StructField) (name, ns string, skip bool) {
	if f.Name == "XMLName" {
		return "", "", true
	}
	tag := f.Tag.Get("xml")
	if tag == "-" {
		return "", "", true
	}
	tag, _, _ = strings.Cut(tag, ",")
	if i := strings.LastIndexByte(tag, ' '); i >= 0 {
		ns, tag = tag[:i], tag[i+1:]
	}
	if tag == "" {
		tag = f.Name
	}
	return tag, ns, false
}

func hasTagOption(tag, option string) bool {
	for _, part := range strings.Split(tag, ",") {
		if strings.TrimSpace(part) == option {
			return true
		}
	}
	return false
}
