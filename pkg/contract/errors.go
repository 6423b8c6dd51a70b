package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirosfoundation/go-soap/pkg/message"
)

var (
	// ErrInvalidDirection is returned for a parameter marked as output but
	// not passed by reference
	ErrInvalidDirection = errors.New("output parameter must be passed by reference")
	// ErrMissingInvoker is returned for an operation without an invoker
	ErrMissingInvoker = errors.New("operation has no invoker")
	// ErrDuplicateOperation is returned when two operations of a contract
	// resolve to the same name
	ErrDuplicateOperation = errors.New("duplicate operation name")
	// ErrMixedMessageContract is returned when a message contract is combined
	// with other parameters of the same message
	ErrMixedMessageContract = errors.New("message contract cannot be combined with other parameters")
	// ErrEmptyName is returned for a service, contract or parameter without a name
	ErrEmptyName = errors.New("name is required")
)

// ConfigError reports malformed contract metadata found while building a
// service description.
type ConfigError struct {
	Contract  string
	Operation string
	Parameter string
	Err       error
}

func (e *ConfigError) Error() string {
	var where []string
	if e.Contract != "" {
		where = append(where, "contract "+e.Contract)
	}
	if e.Operation != "" {
		where = append(where, "operation "+e.Operation)
	}
	if e.Parameter != "" {
		where = append(where, "parameter "+e.Parameter)
	}
	if len(where) == 0 {
		return "contract configuration: " + e.Err.Error()
	}
	return fmt.Sprintf("contract configuration: %s: %v", strings.Join(where, ", "), e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// FaultError is returned by invokers to produce a SOAP fault with a chosen
// code, reason and detail.
type FaultError struct {
	Code    message.FaultCode
	Subcode string
	Reason  string
	// Detail is serialized into the fault when its type is declared on the
	// operation
	Detail any
	Err    error
}

// NewFault creates a Receiver fault carrying detail.
func NewFault(reason string, detail any) *FaultError {
	return &FaultError{Code: message.FaultCodeReceiver, Reason: reason, Detail: detail}
}

// NewSenderFault creates a Sender fault.
func NewSenderFault(reason string) *FaultError {
	return &FaultError{Code: message.FaultCodeSender, Reason: reason}
}

func (e *FaultError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "fault"
}

func (e *FaultError) Unwrap() error {
	return e.Err
}

// FaultCode returns the code, Receiver when unset.
func (e *FaultError) FaultCode() message.FaultCode {
	if e.Code == "" {
		return message.FaultCodeReceiver
	}
	return e.Code
}
