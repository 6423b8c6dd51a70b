package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/beevik/etree"
	"github.com/sirosfoundation/go-soap/pkg/contract"
	"github.com/sirosfoundation/go-soap/pkg/message"
	"github.com/sirosfoundation/go-soap/pkg/serialization"
)

// Fault actions of the WS-Addressing versions
const (
	FaultActionAddressing10         = "http://www.w3.org/2005/08/addressing/soap/fault"
	FaultActionAddressingAugust2004 = "http://schemas.xmlsoap.org/ws/2004/08/addressing/fault"
)

func (e *Endpoint) envelopeOptions() []message.Option {
	opts := make([]message.Option, 0, len(e.namespaces))
	for _, ns := range e.namespaces {
		opts = append(opts, message.WithNamespace(ns.prefix, ns.uri))
	}
	return opts
}

// appendElement adds el to parent, dropping a default namespace
// declaration that parent already provides.
func appendElement(parent, el *etree.Element, inherited string) {
	if attr := el.SelectAttr("xmlns"); attr != nil && attr.Value == inherited {
		el.RemoveAttr("xmlns")
	}
	parent.AddChild(el)
}

// buildResponse writes the result and the output parameters of op.
func (e *Endpoint) buildResponse(op *contract.OperationDescription, req *message.Message, args []any, result any) (*message.Message, error) {
	reply := message.New(req.Version, e.envelopeOptions()...)

	if op.IsMessageContractResponse {
		if err := e.writeMessageContract(reply, op.ResponseContract, result); err != nil {
			return nil, err
		}
	} else {
		ns := op.ReturnNamespace
		wrapper := etree.NewElement(op.ReturnElementName)
		wrapper.CreateAttr("xmlns", ns)

		if op.ReturnType != nil {
			name := op.ReturnName
			if choice, ok := op.ChoiceFor(result); ok {
				name = choice
			}
			el, err := e.codec.Marshal(serialization.Element{Name: name, Namespace: ns}, result)
			if err != nil {
				return nil, err
			}
			appendElement(wrapper, el, ns)
		}

		for _, p := range op.OutParameters {
			el, err := e.codec.Marshal(serialization.Element{
				Name:      p.Name,
				Namespace: p.Namespace,
				ItemName:  p.ArrayItemName,
			}, args[p.Index])
			if err != nil {
				return nil, err
			}
			appendElement(wrapper, el, ns)
		}
		reply.AddBodyElement(wrapper)
	}

	reply.SetAddressing(op.ReplyAction, req.MessageID())
	return reply, nil
}

// writeMessageContract writes the members of a message contract value.
func (e *Endpoint) writeMessageContract(reply *message.Message, md *contract.MessageDescription, result any) error {
	v := reflect.ValueOf(result)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil
	}
	if v.Type() != md.Type {
		return fmt.Errorf("response is %s, want %s", v.Type(), md.Type)
	}

	for _, member := range md.Headers {
		el, err := e.codec.Marshal(serialization.Element{Name: member.Name, Namespace: member.Namespace}, v.FieldByIndex(member.FieldIndex).Interface())
		if err != nil {
			return err
		}
		reply.AddHeader(el)
	}

	add := reply.AddBodyElement
	if md.IsWrapped {
		wrapper := etree.NewElement(md.WrapperName)
		wrapper.CreateAttr("xmlns", md.WrapperNamespace)
		reply.AddBodyElement(wrapper)
		add = func(el *etree.Element) { appendElement(wrapper, el, md.WrapperNamespace) }
	}
	for _, member := range md.Body {
		el, err := e.codec.Marshal(serialization.Element{Name: member.Name, Namespace: member.Namespace}, v.FieldByIndex(member.FieldIndex).Interface())
		if err != nil {
			return err
		}
		add(el)
	}
	return nil
}

// buildFault turns err into a fault reply. A registered FaultTransformer
// decides first; otherwise the default fault carries the error message
// and, for a *contract.FaultError, the detail when its type is declared on
// the operation.
func (e *Endpoint) buildFault(err error, version message.Version, req *message.Message) *message.Message {
	if e.faultTransformer != nil {
		if m := e.faultTransformer.ProvideFault(err, version, req); m != nil {
			return m
		}
	}

	f := &message.Fault{Code: faultCode(err), Reason: err.Error()}
	var fe *contract.FaultError
	if errors.As(err, &fe) {
		f.Subcode = fe.Subcode
		f.Reason = fe.Error()
		if op := operationOf(err); op != nil && fe.Detail != nil {
			if fd, ok := op.FaultFor(fe.Detail); ok {
				el, mErr := e.codec.Marshal(serialization.Element{Name: fd.Name, Namespace: fd.Namespace}, fe.Detail)
				if mErr != nil {
					e.logger.Warn("fault detail not serialized",
						slog.String("fault", fd.Name),
						slog.String("error", mErr.Error()))
				} else {
					f.Detail = append(f.Detail, el)
				}
			}
		}
	}

	reply := message.NewFaultMessage(version, f, e.envelopeOptions()...)
	if req != nil {
		reply.SetAddressing(faultAction(version), req.MessageID())
	}
	return reply
}

func faultAction(version message.Version) string {
	if version.Addressing == message.AddressingAugust2004 {
		return FaultActionAddressingAugust2004
	}
	return FaultActionAddressing10
}
