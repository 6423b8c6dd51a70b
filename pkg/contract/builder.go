package contract

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/sirosfoundation/go-soap/pkg/message"
)

// ErrOneWayResult is returned for a one-way operation declaring a result or
// output parameters
var ErrOneWayResult = errors.New("one-way operation cannot have a result or output parameters")

type contractDef struct {
	name       string
	namespace  string
	knownTypes []reflect.Type
	operations []*operationDef
}

// ContractOption configures a contract declaration
type ContractOption func(*contractDef)

// ContractDecl is a contract declaration passed to NewService
type ContractDecl struct {
	def contractDef
}

// Contract declares a contract with its operations.
func Contract(name string, opts ...ContractOption) ContractDecl {
	d := ContractDecl{def: contractDef{name: name}}
	for _, opt := range opts {
		opt(&d.def)
	}
	return d
}

// Namespace sets the contract namespace.
func Namespace(ns string) ContractOption {
	return func(c *contractDef) {
		c.namespace = ns
	}
}

// KnownType declares an extra type the serializer must be able to produce
// for interface typed values.
func KnownType[T any]() ContractOption {
	return func(c *contractDef) {
		c.knownTypes = append(c.knownTypes, reflect.TypeFor[T]())
	}
}

type operationDef struct {
	method      string
	invoke      Invoker
	name        string
	action      string
	replyAction string
	oneWay      bool
	async       bool
	params      []*paramDef
	returnType  reflect.Type
	ret         returnDef
	faults      []FaultDescription
}

// OperationOption configures an operation declaration
type OperationOption func(*operationDef)

// Operation declares an operation backed by invoke. method is the Go method
// name the wire name is derived from unless Name or Action override it.
func Operation(method string, invoke Invoker, opts ...OperationOption) ContractOption {
	op := &operationDef{method: method, invoke: invoke}
	for _, opt := range opts {
		opt(op)
	}
	return func(c *contractDef) {
		c.operations = append(c.operations, op)
	}
}

// Name overrides the operation wire name.
func Name(name string) OperationOption {
	return func(o *operationDef) { o.name = name }
}

// Action sets the SOAP action.
func Action(action string) OperationOption {
	return func(o *operationDef) { o.action = action }
}

// ReplyAction sets the reply action.
func ReplyAction(action string) OperationOption {
	return func(o *operationDef) { o.replyAction = action }
}

// OneWay marks an operation that sends no reply.
func OneWay() OperationOption {
	return func(o *operationDef) { o.oneWay = true }
}

// Async marks an operation that completes asynchronously. An Async suffix
// on the method name is dropped from the derived wire name.
func Async() OperationOption {
	return func(o *operationDef) { o.async = true }
}

type paramDef struct {
	name             string
	typ              reflect.Type
	isOut            bool
	byRef            bool
	elementName      string
	arrayName        string
	arrayItemName    string
	rootElement      string
	messageParameter string
	namespace        string
	hasNamespace     bool
	unqualified      bool
}

// ParamOption configures a parameter declaration
type ParamOption func(*paramDef)

// Param declares a parameter of type T. Parameters are bound in the order
// they are declared.
func Param[T any](name string, opts ...ParamOption) OperationOption {
	p := &paramDef{name: name, typ: reflect.TypeFor[T]()}
	for _, opt := range opts {
		opt(p)
	}
	return func(o *operationDef) {
		o.params = append(o.params, p)
	}
}

// OutParam declares an output-only parameter.
func OutParam[T any](name string, opts ...ParamOption) OperationOption {
	return Param[T](name, append(opts, AsOut(), ByRef())...)
}

// RefParam declares an input-and-output parameter.
func RefParam[T any](name string, opts ...ParamOption) OperationOption {
	return Param[T](name, append(opts, ByRef())...)
}

// AsOut marks a parameter as output.
func AsOut() ParamOption {
	return func(p *paramDef) { p.isOut = true }
}

// ByRef marks a parameter as passed by reference.
func ByRef() ParamOption {
	return func(p *paramDef) { p.byRef = true }
}

// ElementName overrides the parameter element name.
func ElementName(name string) ParamOption {
	return func(p *paramDef) { p.elementName = name }
}

// ArrayName sets the wrapper element name of a collection parameter.
func ArrayName(name string) ParamOption {
	return func(p *paramDef) { p.arrayName = name }
}

// ArrayItemName sets the item element name of a collection parameter.
func ArrayItemName(name string) ParamOption {
	return func(p *paramDef) { p.arrayItemName = name }
}

// RootElement sets the root element name used for the parameter value.
func RootElement(name string) ParamOption {
	return func(p *paramDef) { p.rootElement = name }
}

// MessageParameter sets the message part name of the parameter.
func MessageParameter(name string) ParamOption {
	return func(p *paramDef) { p.messageParameter = name }
}

// ParamNamespace overrides the parameter namespace.
func ParamNamespace(ns string) ParamOption {
	return func(p *paramDef) {
		p.namespace = ns
		p.hasNamespace = true
	}
}

// Unqualified writes the parameter element without a namespace.
func Unqualified() ParamOption {
	return func(p *paramDef) { p.unqualified = true }
}

type returnDef struct {
	name      string
	element   string
	namespace string
	choices   []ReturnChoice
}

// ReturnOption configures the result of an operation
type ReturnOption func(*returnDef)

// Returns declares the result type. For asynchronous operations T is the
// type the Future resolves to.
func Returns[T any](opts ...ReturnOption) OperationOption {
	return func(o *operationDef) {
		o.returnType = reflect.TypeFor[T]()
		for _, opt := range opts {
			opt(&o.ret)
		}
	}
}

// ReturnName overrides the result element name.
func ReturnName(name string) ReturnOption {
	return func(r *returnDef) { r.name = name }
}

// ReturnElement overrides the response wrapper element name.
func ReturnElement(name string) ReturnOption {
	return func(r *returnDef) { r.element = name }
}

// ReturnNamespace overrides the response namespace.
func ReturnNamespace(ns string) ReturnOption {
	return func(r *returnDef) { r.namespace = ns }
}

// Choice declares the result element name used when the result has
// runtime type T.
func Choice[T any](elementName string) ReturnOption {
	return func(r *returnDef) {
		r.choices = append(r.choices, ReturnChoice{Type: reflect.TypeFor[T](), ElementName: elementName})
	}
}

// Faults declares a fault detail type named after T.
func Faults[T any]() OperationOption {
	return FaultNamed[T]("")
}

// FaultNamed declares a fault detail type written as element name.
func FaultNamed[T any](name string) OperationOption {
	return func(o *operationDef) {
		o.faults = append(o.faults, FaultDescription{Name: name, Type: reflect.TypeFor[T]()})
	}
}

// NewService builds a service description from contract declarations.
// Every malformed declaration is reported as a *ConfigError; the result is
// nil unless all declarations are valid.
func NewService(name string, contracts ...ContractDecl) (*ServiceDescription, error) {
	if name == "" {
		return nil, &ConfigError{Err: fmt.Errorf("service %w", ErrEmptyName)}
	}

	svc := &ServiceDescription{Name: name}
	var errs []error
	for _, decl := range contracts {
		c, cerrs := buildContract(decl.def)
		errs = append(errs, cerrs...)
		svc.Contracts = append(svc.Contracts, c)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return svc, nil
}

func buildContract(def contractDef) (*ContractDescription, []error) {
	c := &ContractDescription{
		Name:       def.name,
		Namespace:  def.namespace,
		KnownTypes: def.knownTypes,
	}
	if c.Namespace == "" {
		c.Namespace = message.DefaultNamespace
	}

	var errs []error
	if c.Name == "" {
		errs = append(errs, &ConfigError{Err: fmt.Errorf("contract %w", ErrEmptyName)})
	}

	seen := make(map[string]bool)
	for _, decl := range def.operations {
		op, err := buildOperation(c, decl)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[op.Name] {
			errs = append(errs, &ConfigError{Contract: c.Name, Operation: op.Name, Err: ErrDuplicateOperation})
			continue
		}
		seen[op.Name] = true
		c.Operations = append(c.Operations, op)
	}
	return c, errs
}

func operationName(def *operationDef) string {
	switch {
	case def.name != "":
		return def.name
	case def.action != "":
		if name := trimAction(def.action); name != "" {
			return name
		}
	}
	if def.async && len(def.method) > len("Async") {
		return strings.TrimSuffix(def.method, "Async")
	}
	return def.method
}

func buildOperation(c *ContractDescription, def *operationDef) (*OperationDescription, error) {
	name := operationName(def)
	configErr := func(param string, err error) error {
		return &ConfigError{Contract: c.Name, Operation: name, Parameter: param, Err: err}
	}
	if name == "" {
		return nil, configErr("", fmt.Errorf("operation %w", ErrEmptyName))
	}
	if def.invoke == nil {
		return nil, configErr("", ErrMissingInvoker)
	}

	base := strings.TrimRight(c.Namespace, "/")
	op := &OperationDescription{
		Contract:    c,
		Name:        name,
		MethodName:  def.method,
		SoapAction:  def.action,
		ReplyAction: def.replyAction,
		IsOneWay:    def.oneWay,
		IsAsync:     def.async,
		ReturnType:  def.returnType,
		Invoke:      def.invoke,
	}
	if op.SoapAction == "" {
		op.SoapAction = fmt.Sprintf("%s/%s/%s", base, c.Name, name)
	}
	if op.ReplyAction == "" {
		op.ReplyAction = fmt.Sprintf("%s/%s/%sResponse", base, c.Name, name)
	}

	for i, ps := range def.params {
		p, err := buildParameter(c, i, ps)
		if err != nil {
			return nil, configErr(ps.name, err)
		}
		op.AllParameters = append(op.AllParameters, p)
		if p.Direction != Out {
			op.InParameters = append(op.InParameters, p)
		}
		if p.Direction != In {
			op.OutParameters = append(op.OutParameters, p)
		}
	}

	for _, p := range op.InParameters {
		if p.MessageContract == nil {
			continue
		}
		if len(op.InParameters) != 1 {
			return nil, configErr(p.DeclaredName, ErrMixedMessageContract)
		}
		op.IsMessageContractRequest = true
		op.RequestContract = p.MessageContract
	}

	op.ReturnNamespace = def.ret.namespace
	if op.ReturnNamespace == "" {
		op.ReturnNamespace = c.Namespace
	}
	if md, ok := DescribeMessage(op.ReturnType, op.ReturnNamespace); ok {
		if len(op.OutParameters) > 0 {
			return nil, configErr("", ErrMixedMessageContract)
		}
		op.IsMessageContractResponse = true
		op.ResponseContract = md
	}

	op.ReturnName = def.ret.name
	if op.ReturnName == "" {
		op.ReturnName = name + "Result"
	}
	op.ReturnElementName = def.ret.element
	if op.ReturnElementName == "" {
		op.ReturnElementName = name + "Response"
		if op.IsMessageContractResponse && op.ResponseContract.WrapperName != "" {
			op.ReturnElementName = op.ResponseContract.WrapperName
		}
	}
	op.ReturnChoices = def.ret.choices

	if op.IsOneWay && (op.ReturnType != nil || len(op.OutParameters) > 0) {
		return nil, configErr("", ErrOneWayResult)
	}

	for _, f := range def.faults {
		if f.Name == "" {
			t := f.Type
			if t.Kind() == reflect.Pointer {
				t = t.Elem()
			}
			f.Name = t.Name()
		}
		if f.Namespace == "" {
			f.Namespace = c.Namespace
		}
		op.Faults = append(op.Faults, f)
	}
	return op, nil
}

func buildParameter(c *ContractDescription, index int, def *paramDef) (*ParameterBinding, error) {
	if def.name == "" {
		return nil, fmt.Errorf("parameter %w", ErrEmptyName)
	}
	dir, err := ClassifyDirection(def.isOut, def.byRef)
	if err != nil {
		return nil, err
	}

	p := &ParameterBinding{
		Index:         index,
		DeclaredName:  def.name,
		Namespace:     c.Namespace,
		ArrayName:     def.arrayName,
		ArrayItemName: def.arrayItemName,
		Direction:     dir,
		Type:          def.typ,
	}
	switch {
	case def.unqualified:
		p.Namespace = ""
	case def.hasNamespace:
		p.Namespace = def.namespace
	}
	if md, ok := DescribeMessage(def.typ, p.Namespace); ok {
		p.MessageContract = md
	}

	p.Name = parameterName(def, p.MessageContract)
	return p, nil
}

// parameterName applies the wire name priority: element override, array
// wrapper, root element, message parameter, message contract wrapper and
// finally the declared name.
func parameterName(def *paramDef, md *MessageDescription) string {
	for _, name := range []string{def.elementName, def.arrayName, def.rootElement, def.messageParameter} {
		if name != "" {
			return name
		}
	}
	if md != nil && md.WrapperName != "" {
		return md.WrapperName
	}
	return def.name
}
