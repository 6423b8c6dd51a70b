package dispatch

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/sirosfoundation/go-soap/pkg/contract"
	"github.com/sirosfoundation/go-soap/pkg/message"
)

// MessageFilter observes the request before matching and the reply before
// it is written. An error from OnRequestExecuting becomes a fault.
type MessageFilter interface {
	OnRequestExecuting(ctx context.Context, m *message.Message) error
	OnResponseExecuting(ctx context.Context, m *message.Message) error
}

// MessageInspector sees the raw request and the reply. The value returned
// by AfterReceiveRequest is passed back to BeforeSendReply.
type MessageInspector interface {
	AfterReceiveRequest(ctx context.Context, m *message.Message) (any, error)
	BeforeSendReply(ctx context.Context, reply *message.Message, correlationState any)
}

// MessageInspector2 additionally receives the service description.
type MessageInspector2 interface {
	AfterReceiveRequest(ctx context.Context, m *message.Message, service *contract.ServiceDescription) (any, error)
	BeforeSendReply(ctx context.Context, reply *message.Message, service *contract.ServiceDescription, correlationState any)
}

// MessageInspector3 additionally receives the HTTP request.
type MessageInspector3 interface {
	AfterReceiveRequest(ctx context.Context, m *message.Message, service *contract.ServiceDescription, r *http.Request) (any, error)
	BeforeSendReply(ctx context.Context, reply *message.Message, service *contract.ServiceDescription, r *http.Request, correlationState any)
}

// ModelBindingFilter may replace a bound argument of type ModelType.
type ModelBindingFilter interface {
	ModelType() reflect.Type
	OnModelBound(ctx context.Context, op *contract.OperationDescription, value any) (any, error)
}

// ActionContext is the state shared by action filters around one
// invocation. Arguments may be modified before the call; Result and Err
// are set after it. A filter replacing Request with one carrying a derived
// context makes the operation run with that context.
type ActionContext struct {
	Operation *contract.OperationDescription
	Instance  any
	Arguments []any
	Request   *http.Request
	Message   *message.Message
	Result    any
	Err       error
}

// ActionFilter runs immediately before and after invocation. An error
// from OnActionExecuting prevents the call and becomes a fault.
type ActionFilter interface {
	OnActionExecuting(ctx context.Context, ac *ActionContext) error
	OnActionExecuted(ctx context.Context, ac *ActionContext)
}

// OperationTuner may adjust the service instance before invocation.
type OperationTuner interface {
	TuneOperation(r *http.Request, instance any, op *contract.OperationDescription)
}

// PathTuner accepts request paths that do not equal the registered path.
type PathTuner interface {
	MatchPath(requestPath, registeredPath string) bool
}

// TrailingPathTuner accepts request paths that end with the registered
// path on a segment boundary, as produced by gateways that prepend their
// own prefix.
type TrailingPathTuner struct {
	IgnoreCase bool
}

func (t TrailingPathTuner) MatchPath(requestPath, registeredPath string) bool {
	if registeredPath == "" {
		return false
	}
	if t.IgnoreCase {
		requestPath, registeredPath = strings.ToLower(requestPath), strings.ToLower(registeredPath)
	}
	if !strings.HasSuffix(requestPath, registeredPath) {
		return false
	}
	rest := requestPath[:len(requestPath)-len(registeredPath)]
	return rest == "" || strings.HasSuffix(rest, "/") || strings.HasPrefix(registeredPath, "/")
}

// FaultTransformer builds the fault reply for err. Returning nil selects
// the default fault.
type FaultTransformer interface {
	ProvideFault(err error, version message.Version, request *message.Message) *message.Message
}

// ProcessFunc continues the processing chain.
type ProcessFunc func(ctx context.Context, m *message.Message, r *http.Request) (*message.Message, error)

// MessageProcessor intercepts the whole exchange. It may return its own
// reply without calling next. A nil reply without error is sent as
// 202 Accepted.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, m *message.Message, r *http.Request, next ProcessFunc) (*message.Message, error)
}

// MessageProcessorFunc adapts a function to MessageProcessor
type MessageProcessorFunc func(ctx context.Context, m *message.Message, r *http.Request, next ProcessFunc) (*message.Message, error)

func (f MessageProcessorFunc) ProcessMessage(ctx context.Context, m *message.Message, r *http.Request, next ProcessFunc) (*message.Message, error) {
	return f(ctx, m, r, next)
}

// inspector unifies the three inspector revisions.
type inspector struct {
	after  func(ctx context.Context, m *message.Message, service *contract.ServiceDescription, r *http.Request) (any, error)
	before func(ctx context.Context, reply *message.Message, service *contract.ServiceDescription, r *http.Request, state any)
}

func inspectorV1(i MessageInspector) inspector {
	return inspector{
		after: func(ctx context.Context, m *message.Message, _ *contract.ServiceDescription, _ *http.Request) (any, error) {
			return i.AfterReceiveRequest(ctx, m)
		},
		before: func(ctx context.Context, reply *message.Message, _ *contract.ServiceDescription, _ *http.Request, state any) {
			i.BeforeSendReply(ctx, reply, state)
		},
	}
}

func inspectorV2(i MessageInspector2) inspector {
	return inspector{
		after: func(ctx context.Context, m *message.Message, service *contract.ServiceDescription, _ *http.Request) (any, error) {
			return i.AfterReceiveRequest(ctx, m, service)
		},
		before: func(ctx context.Context, reply *message.Message, service *contract.ServiceDescription, _ *http.Request, state any) {
			i.BeforeSendReply(ctx, reply, service, state)
		},
	}
}

func inspectorV3(i MessageInspector3) inspector {
	return inspector{
		after:  i.AfterReceiveRequest,
		before: i.BeforeSendReply,
	}
}
