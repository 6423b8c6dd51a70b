package dispatch

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirosfoundation/go-soap/pkg/contract"
	"github.com/sirosfoundation/go-soap/pkg/encoder"
	"github.com/sirosfoundation/go-soap/pkg/message"
)

// Client faults. A request failing with one of these errors is answered
// with a Sender fault.
var (
	// ErrOperationNotFound is returned when no operation matches the action
	ErrOperationNotFound = errors.New("operation not found")
	// ErrMalformedRequest is returned for bodies that cannot be read as a
	// request for the matched operation
	ErrMalformedRequest = errors.New("malformed request")
	// ErrUnauthorized is returned by authorization hooks for missing or
	// invalid credentials
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned by authorization hooks for valid credentials
	// without sufficient rights
	ErrForbidden = errors.New("forbidden")
	// ErrVersionMismatch is returned when the envelope version does not
	// match the negotiated encoder
	ErrVersionMismatch = message.ErrVersionMismatch
)

// Transport errors, answered without an envelope.
var (
	// ErrEndpointNotFound is returned when no endpoint is registered for a path
	ErrEndpointNotFound = errors.New("no endpoint for path")
	// ErrMethodNotAllowed is returned for requests other than POST
	ErrMethodNotAllowed = errors.New("method not allowed")
	// ErrUnsupportedMediaType is returned when no encoder accepts the
	// request Content-Type
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrUnreadableBody is returned when the request body cannot be read
	ErrUnreadableBody = errors.New("unreadable request body")
)

var (
	// ErrInvocationPanic wraps a panic recovered from an operation
	ErrInvocationPanic = errors.New("operation panicked")
	// ErrDuplicateEndpoint is returned by Router.Register for a path that
	// is already registered
	ErrDuplicateEndpoint = errors.New("endpoint already registered")
	// ErrInvalidTransition is returned when the request state machine is
	// driven out of order
	ErrInvalidTransition = errors.New("invalid request state transition")
)

var clientErrors = []error{
	ErrOperationNotFound,
	ErrMalformedRequest,
	ErrUnauthorized,
	ErrForbidden,
	ErrVersionMismatch,
	encoder.ErrMalformedXML,
	encoder.ErrQuotaExceeded,
	message.ErrNotEnvelope,
	message.ErrMissingBody,
}

// IsClientFault reports whether err is caused by the request rather than
// by the service.
func IsClientFault(err error) bool {
	var fe *contract.FaultError
	if errors.As(err, &fe) {
		return fe.FaultCode() == message.FaultCodeSender
	}
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// faultCode classifies err into the code of the default fault.
func faultCode(err error) message.FaultCode {
	var fe *contract.FaultError
	if errors.As(err, &fe) {
		return fe.FaultCode()
	}
	if IsClientFault(err) {
		return message.FaultCodeSender
	}
	return message.FaultCodeReceiver
}

// faultStatus maps err to the HTTP status of the fault response.
func faultStatus(err error, def int) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	}
	return def
}

// transportStatus maps errors raised before decoding to an HTTP status.
func transportStatus(err error) int {
	switch {
	case errors.Is(err, ErrEndpointNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	}
	return http.StatusBadRequest
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// operationError carries the matched operation with a failure so that the
// fault can use its declared details. Error returns the message of the
// wrapped error unchanged.
type operationError struct {
	op  *contract.OperationDescription
	err error
}

func (e *operationError) Error() string { return e.err.Error() }

func (e *operationError) Unwrap() error { return e.err }

func withOperation(op *contract.OperationDescription, err error) error {
	if op == nil || err == nil {
		return err
	}
	return &operationError{op: op, err: err}
}

func operationOf(err error) *contract.OperationDescription {
	var oe *operationError
	if errors.As(err, &oe) {
		return oe.op
	}
	return nil
}
