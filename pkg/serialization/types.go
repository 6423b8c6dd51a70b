package serialization

import (
	"encoding"
	"path"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/sirosfoundation/go-soap/pkg/message"
)

var (
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	timeType            = reflect.TypeOf(time.Time{})
	bytesType           = reflect.TypeOf([]byte(nil))
)

// DataContractNamespacer overrides the DataContract namespace of a type
type DataContractNamespacer interface {
	DataContractNamespace() string
}

var namespacerType = reflect.TypeOf((*DataContractNamespacer)(nil)).Elem()

type fieldInfo struct {
	index     []int
	name      string
	namespace string
	attr      bool
	chardata  bool
	omitEmpty bool
	typ       reflect.Type
}

// structFields returns the serializable members of t, flattening embedded
// structs. DataContract orders members by name, XmlSerializer keeps
// declaration order.
func (c *Codec) structFields(t reflect.Type) []fieldInfo {
	if cached, ok := c.fields.Load(t); ok {
		return cached.([]fieldInfo)
	}
	fields := collectFields(t, nil)
	if c.convention == DataContract {
		sort.SliceStable(fields, func(i, j int) bool {
			return fields[i].name < fields[j].name
		})
	}
	c.fields.Store(t, fields)
	return fields
}

func collectFields(t reflect.Type, parent []int) []fieldInfo {
	var fields []fieldInfo
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Name == "XMLName" {
			continue
		}
		tag := f.Tag.Get("xml")
		if tag == "-" {
			continue
		}
		index := append(append([]int(nil), parent...), i)

		name, opts, _ := strings.Cut(tag, ",")
		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct {
			fields = append(fields, collectFields(f.Type, index)...)
			continue
		}
		if !f.IsExported() {
			continue
		}

		fi := fieldInfo{index: index, name: f.Name, typ: f.Type}
		if ns, local, ok := strings.Cut(name, " "); ok {
			fi.namespace, name = ns, local
		}
		if name != "" {
			fi.name = name
		}
		for _, o := range strings.Split(opts, ",") {
			switch o {
			case "attr":
				fi.attr = true
			case "chardata":
				fi.chardata = true
			case "omitempty":
				fi.omitEmpty = true
			}
		}
		fields = append(fields, fi)
	}
	return fields
}

// typeNamespace is the DataContract namespace of a named type: the
// datacontract base URI followed by the Go package name.
func typeNamespace(t reflect.Type, fallback string) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if reflect.PointerTo(t).Implements(namespacerType) {
		if ns := reflect.New(t).Interface().(DataContractNamespacer).DataContractNamespace(); ns != "" {
			return ns
		}
	}
	if t.PkgPath() == "" || isPrimitive(t) {
		return fallback
	}
	return message.NsDataContract + path.Base(t.PkgPath())
}

var primitiveNames = map[reflect.Kind]string{
	reflect.String:  "string",
	reflect.Bool:    "boolean",
	reflect.Int:     "int",
	reflect.Int8:    "byte",
	reflect.Int16:   "short",
	reflect.Int32:   "int",
	reflect.Int64:   "long",
	reflect.Uint:    "unsignedLong",
	reflect.Uint8:   "unsignedByte",
	reflect.Uint16:  "unsignedShort",
	reflect.Uint32:  "unsignedInt",
	reflect.Uint64:  "unsignedLong",
	reflect.Float32: "float",
	reflect.Float64: "double",
}

var primitiveTypes = map[string]reflect.Type{
	"string":        reflect.TypeOf(""),
	"boolean":       reflect.TypeOf(false),
	"int":           reflect.TypeOf(0),
	"byte":          reflect.TypeOf(int8(0)),
	"short":         reflect.TypeOf(int16(0)),
	"long":          reflect.TypeOf(int64(0)),
	"unsignedByte":  reflect.TypeOf(uint8(0)),
	"unsignedShort": reflect.TypeOf(uint16(0)),
	"unsignedInt":   reflect.TypeOf(uint32(0)),
	"unsignedLong":  reflect.TypeOf(uint64(0)),
	"float":         reflect.TypeOf(float32(0)),
	"double":        reflect.TypeOf(float64(0)),
	"dateTime":      timeType,
	"base64Binary":  bytesType,
}

// isPrimitive reports whether t is an unnamed scalar, []byte or time.Time.
func isPrimitive(t reflect.Type) bool {
	if t == timeType || t == bytesType {
		return true
	}
	_, ok := primitiveNames[t.Kind()]
	return ok && t.PkgPath() == ""
}

// typeName is the XML name of t: the xsd name of primitives, otherwise
// the Go type name.
func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch {
	case t == timeType:
		return "dateTime"
	case t == bytesType:
		return "base64Binary"
	case isPrimitive(t):
		return primitiveNames[t.Kind()]
	case t.Kind() == reflect.Slice || t.Kind() == reflect.Array:
		return "ArrayOf" + upperFirst(typeName(t.Elem()))
	case t.Name() != "":
		return t.Name()
	}
	return "anyType"
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func isNilable(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return true
	}
	return false
}
