package dispatch

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/beevik/etree"
	"github.com/sirosfoundation/go-soap/pkg/contract"
	"github.com/sirosfoundation/go-soap/pkg/message"
	"github.com/sirosfoundation/go-soap/pkg/serialization"
)

// childByName finds the first child element with the given local name,
// preferring an exact match over one that differs only in case.
func childByName(parent *etree.Element, name string) *etree.Element {
	if parent == nil {
		return nil
	}
	children := parent.ChildElements()
	for _, c := range children {
		if c.Tag == name {
			return c
		}
	}
	for _, c := range children {
		if strings.EqualFold(c.Tag, name) {
			return c
		}
	}
	return nil
}

// bindArguments builds the argument list of op from the request body.
// Output-only parameters receive their zero value.
func (e *Endpoint) bindArguments(ctx context.Context, op *contract.OperationDescription, m *message.Message) ([]any, error) {
	args := make([]any, len(op.AllParameters))
	for _, p := range op.AllParameters {
		if p.Direction == contract.Out {
			args[p.Index] = reflect.Zero(p.Type).Interface()
		}
	}
	if len(op.InParameters) == 0 {
		return args, nil
	}

	if op.IsMessageContractRequest {
		p := op.InParameters[0]
		v, err := e.bindMessageContract(op.RequestContract, p.Type, m)
		if err != nil {
			return nil, err
		}
		if args[p.Index], err = e.filterModel(ctx, op, p.Type, v); err != nil {
			return nil, err
		}
		return args, nil
	}

	wrapper := requestWrapper(op, m)
	if wrapper == nil {
		return nil, fmt.Errorf("%w: body has no %s element", ErrMalformedRequest, op.RequestElementName())
	}
	for _, p := range op.InParameters {
		v, err := e.bindParameter(wrapper, p)
		if err != nil {
			return nil, err
		}
		if args[p.Index], err = e.filterModel(ctx, op, p.Type, v); err != nil {
			return nil, err
		}
	}
	return args, nil
}

// requestWrapper returns the body element named after the operation, or
// the first body element when none carries that name.
func requestWrapper(op *contract.OperationDescription, m *message.Message) *etree.Element {
	if el := childByName(m.Body(), op.RequestElementName()); el != nil {
		return el
	}
	return m.BodyElement()
}

// bindParameter reads one classic parameter by element name. An absent
// element yields the zero value.
func (e *Endpoint) bindParameter(wrapper *etree.Element, p *contract.ParameterBinding) (any, error) {
	el := childByName(wrapper, p.Name)
	if el == nil {
		return reflect.Zero(p.Type).Interface(), nil
	}
	return e.codec.Unmarshal(el, serialization.Element{
		Name:      p.Name,
		Namespace: p.Namespace,
		ItemName:  p.ArrayItemName,
	}, p.Type)
}

// bindMessageContract reads header and body members into a new value of
// the contract type. t is the declared parameter type, a struct or a
// pointer to one.
func (e *Endpoint) bindMessageContract(md *contract.MessageDescription, t reflect.Type, m *message.Message) (any, error) {
	v := reflect.New(md.Type).Elem()

	for _, member := range md.Headers {
		el := m.Header(member.Name, "")
		if el == nil {
			continue
		}
		if err := e.bindMember(v, member, el); err != nil {
			return nil, err
		}
	}

	container := m.Body()
	if md.IsWrapped {
		container = childByName(m.Body(), md.WrapperName)
		if container == nil {
			return nil, fmt.Errorf("%w: body has no %s element", ErrMalformedRequest, md.WrapperName)
		}
	}
	for _, member := range md.Body {
		el := childByName(container, member.Name)
		if el == nil {
			continue
		}
		if err := e.bindMember(v, member, el); err != nil {
			return nil, err
		}
	}

	if t.Kind() == reflect.Pointer {
		return v.Addr().Interface(), nil
	}
	return v.Interface(), nil
}

func (e *Endpoint) bindMember(v reflect.Value, member contract.MemberDescription, el *etree.Element) error {
	value, err := e.codec.Unmarshal(el, serialization.Element{Name: member.Name, Namespace: member.Namespace}, member.Type)
	if err != nil {
		return err
	}
	if value != nil {
		v.FieldByIndex(member.FieldIndex).Set(reflect.ValueOf(value))
	}
	return nil
}

// filterModel passes a bound value through the model binding filters
// registered for t.
func (e *Endpoint) filterModel(ctx context.Context, op *contract.OperationDescription, t reflect.Type, v any) (any, error) {
	for _, f := range e.modelFilters[t] {
		var err error
		if v, err = f.OnModelBound(ctx, op, v); err != nil {
			return nil, err
		}
	}
	return v, nil
}
