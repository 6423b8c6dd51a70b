package dispatch

import (
	"mime"
	"net/http"
	"strings"

	"github.com/sirosfoundation/go-soap/pkg/contract"
	"github.com/sirosfoundation/go-soap/pkg/message"
)

// requestAction returns the action of a request: the SOAPAction header,
// the action parameter of the Content-Type, the WS-Addressing Action
// header and finally the local name of the body root element.
func requestAction(r *http.Request, contentType string, m *message.Message) string {
	if a := strings.Trim(strings.TrimSpace(r.Header.Get("SOAPAction")), `"`); a != "" {
		return a
	}
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if a := strings.Trim(params["action"], `"`); a != "" {
			return a
		}
	}
	if a := m.Action(); a != "" {
		return a
	}
	if el := m.BodyElement(); el != nil {
		return el.Tag
	}
	return ""
}

// trimmedAction removes quotes, the path before the last slash and a
// namespace prefix from an action.
func trimmedAction(action string) string {
	action = strings.TrimRight(strings.Trim(action, `"`), "/")
	if i := strings.LastIndexByte(action, '/'); i >= 0 {
		action = action[i+1:]
	}
	return message.LocalName(action)
}

type matchRule func(action string, op *contract.OperationDescription, eq func(a, b string) bool) bool

var matchRules = []matchRule{
	// exact action
	func(action string, op *contract.OperationDescription, eq func(a, b string) bool) bool {
		return eq(action, op.SoapAction)
	},
	// trimmed action equals the operation or request wrapper name
	func(action string, op *contract.OperationDescription, eq func(a, b string) bool) bool {
		t := trimmedAction(action)
		return eq(t, op.Name) || eq(t, op.RequestElementName())
	},
}

func equalExact(a, b string) bool { return a == b }

// matchOperation selects the operation targeted by action. Each rule is
// tried case-sensitively, then ignoring case, before the next rule; the
// substring rule prefers the longest operation name.
func matchOperation(ops []*contract.OperationDescription, action string) (*contract.OperationDescription, bool) {
	if action == "" {
		return nil, false
	}
	for _, rule := range matchRules {
		for _, eq := range []func(a, b string) bool{equalExact, strings.EqualFold} {
			for _, op := range ops {
				if rule(action, op, eq) {
					return op, true
				}
			}
		}
	}

	lower := strings.ToLower(action)
	for _, fold := range []bool{false, true} {
		var best *contract.OperationDescription
		for _, op := range ops {
			name := op.Name
			ok := strings.Contains(action, name)
			if fold {
				ok = strings.Contains(lower, strings.ToLower(name))
			}
			if ok && (best == nil || len(name) > len(best.Name)) {
				best = op
			}
		}
		if best != nil {
			return best, true
		}
	}
	return nil, false
}
