package dispatch

import (
	"context"

	"github.com/sirosfoundation/go-soap/pkg/contract"
	"github.com/sirosfoundation/go-soap/pkg/mime"
)

type contextKey int

const (
	attachmentsKey contextKey = iota
	operationKey
	mtomKey
)

func withAttachments(ctx context.Context, attachments []mime.Attachment) context.Context {
	return context.WithValue(ctx, attachmentsKey, attachments)
}

// AttachmentsFromContext returns the non-root parts of a multipart/related
// request. ok is false for plain requests.
func AttachmentsFromContext(ctx context.Context) ([]mime.Attachment, bool) {
	a, ok := ctx.Value(attachmentsKey).([]mime.Attachment)
	return a, ok
}

// withMTOM marks a request that arrived as MTOM, whose reply is packaged
// the same way.
func withMTOM(ctx context.Context) context.Context {
	return context.WithValue(ctx, mtomKey, true)
}

func isMTOM(ctx context.Context) bool {
	v, _ := ctx.Value(mtomKey).(bool)
	return v
}

func withOperationContext(ctx context.Context, op *contract.OperationDescription) context.Context {
	return context.WithValue(ctx, operationKey, op)
}

// OperationFromContext returns the operation matched for the current
// request, nil before matching.
func OperationFromContext(ctx context.Context) *contract.OperationDescription {
	op, _ := ctx.Value(operationKey).(*contract.OperationDescription)
	return op
}
