package contract

import (
	"reflect"
	"strings"
)

// Direction is the data flow of one operation parameter
type Direction int

const (
	// In parameters are read from the request only
	In Direction = iota
	// Out parameters are written to the response only
	Out
	// InOut parameters are read from the request and written back
	InOut
)

func (d Direction) String() string {
	switch d {
	case In:
		return "In"
	case Out:
		return "Out"
	case InOut:
		return "InOut"
	}
	return "Unknown"
}

// ClassifyDirection maps the output and by-reference flags of a parameter
// to its direction. An output parameter that is not passed by reference
// cannot be expressed on the wire and yields ErrInvalidDirection.
func ClassifyDirection(isOut, byRef bool) (Direction, error) {
	switch {
	case !isOut && !byRef:
		return In, nil
	case isOut && byRef:
		return Out, nil
	case !isOut && byRef:
		return InOut, nil
	}
	return 0, ErrInvalidDirection
}

// ServiceDescription is the set of contracts a service implements.
// The fields must not be modified after NewService returns.
type ServiceDescription struct {
	Name      string
	Contracts []*ContractDescription
}

// Operations returns every operation of every contract in declaration order.
func (s *ServiceDescription) Operations() []*OperationDescription {
	var ops []*OperationDescription
	for _, c := range s.Contracts {
		ops = append(ops, c.Operations...)
	}
	return ops
}

// Contract returns the contract with the given name, nil if absent.
func (s *ServiceDescription) Contract(name string) *ContractDescription {
	for _, c := range s.Contracts {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// KnownTypes returns the known types of all contracts.
func (s *ServiceDescription) KnownTypes() []reflect.Type {
	var types []reflect.Type
	for _, c := range s.Contracts {
		types = append(types, c.KnownTypes...)
	}
	return types
}

// ContractDescription describes one service boundary.
type ContractDescription struct {
	Name       string
	Namespace  string
	KnownTypes []reflect.Type
	Operations []*OperationDescription
}

// Operation returns the operation with the given wire name, nil if absent.
func (c *ContractDescription) Operation(name string) *OperationDescription {
	for _, op := range c.Operations {
		if op.Name == name {
			return op
		}
	}
	return nil
}

// ParameterBinding describes the wire form of one operation parameter.
type ParameterBinding struct {
	Index         int
	Name          string
	DeclaredName  string
	Namespace     string
	ArrayName     string
	ArrayItemName string
	Direction     Direction
	Type          reflect.Type

	// MessageContract is set when Type implements MessageContract
	MessageContract *MessageDescription
}

// Qualified reports whether the parameter element is namespace qualified.
func (p *ParameterBinding) Qualified() bool {
	return p.Namespace != ""
}

// IsArray reports whether the parameter is a collection other than []byte.
func (p *ParameterBinding) IsArray() bool {
	return isCollection(p.Type)
}

// ReturnChoice maps a concrete return type to the element name used when
// the result has that runtime type.
type ReturnChoice struct {
	Type        reflect.Type
	ElementName string
}

// FaultDescription is a declared fault detail type.
type FaultDescription struct {
	Name      string
	Namespace string
	Type      reflect.Type
}

// OperationDescription describes one operation of a contract.
type OperationDescription struct {
	Contract *ContractDescription

	Name        string
	MethodName  string
	SoapAction  string
	ReplyAction string
	IsOneWay    bool
	IsAsync     bool

	AllParameters []*ParameterBinding
	InParameters  []*ParameterBinding
	OutParameters []*ParameterBinding

	// ReturnType is nil when the operation has no result
	ReturnType        reflect.Type
	ReturnName        string
	ReturnElementName string
	ReturnNamespace   string
	ReturnChoices     []ReturnChoice

	IsMessageContractRequest  bool
	IsMessageContractResponse bool
	RequestContract           *MessageDescription
	ResponseContract          *MessageDescription

	Faults []FaultDescription
	Invoke Invoker
}

// Namespace returns the contract namespace of the operation.
func (o *OperationDescription) Namespace() string {
	if o.Contract == nil {
		return ""
	}
	return o.Contract.Namespace
}

// RequestElementName is the wrapper element expected in a classic request,
// or the wrapper of a message contract request.
func (o *OperationDescription) RequestElementName() string {
	if o.IsMessageContractRequest && o.RequestContract.WrapperName != "" {
		return o.RequestContract.WrapperName
	}
	return o.Name
}

// ChoiceFor returns the element name declared for the runtime type of v.
func (o *OperationDescription) ChoiceFor(v any) (string, bool) {
	if v == nil || len(o.ReturnChoices) == 0 {
		return "", false
	}
	t := reflect.TypeOf(v)
	for _, c := range o.ReturnChoices {
		if c.Type == t {
			return c.ElementName, true
		}
	}
	for _, c := range o.ReturnChoices {
		if c.Type.Kind() == reflect.Interface && t.Implements(c.Type) {
			return c.ElementName, true
		}
	}
	return "", false
}

// FaultFor returns the declared fault whose type matches detail, preferring
// an exact type match over an assignable one.
func (o *OperationDescription) FaultFor(detail any) (FaultDescription, bool) {
	if detail == nil {
		return FaultDescription{}, false
	}
	t := reflect.TypeOf(detail)
	for _, f := range o.Faults {
		if f.Type == t {
			return f, true
		}
	}
	for _, f := range o.Faults {
		if t.AssignableTo(f.Type) || (t.Kind() == reflect.Pointer && t.Elem() == f.Type) {
			return f, true
		}
	}
	return FaultDescription{}, false
}

func isCollection(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return t.Elem().Kind() != reflect.Uint8
	}
	return false
}

// trimAction reduces an action URI to its last path segment.
func trimAction(action string) string {
	action = strings.TrimRight(strings.Trim(action, `"`), "/")
	if i := strings.LastIndexByte(action, '/'); i >= 0 {
		return action[i+1:]
	}
	return action
}
