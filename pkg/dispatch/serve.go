package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sirosfoundation/go-soap/pkg/contract"
	"github.com/sirosfoundation/go-soap/pkg/encoder"
	"github.com/sirosfoundation/go-soap/pkg/message"
	"github.com/sirosfoundation/go-soap/pkg/mime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ServeHTTP handles one SOAP request on the endpoint path.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := e.tracer.Start(r.Context(), "soap.dispatch",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("soap.path", e.path)))
	defer span.End()
	r = r.WithContext(ctx)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		e.transportError(w, r, fmt.Errorf("%w: %s", ErrMethodNotAllowed, r.Method))
		return
	}

	in, err := e.readRequest(w, r)
	if err != nil {
		var rerr *readError
		switch {
		case isCanceled(err):
			e.logger.DebugContext(ctx, "request canceled while reading", slog.String("error", err.Error()))
		case errors.As(err, &rerr):
			// the envelope could not be read: answer with a fault
			e.writeFault(w, r, rerr.enc, nil, rerr.err)
		default:
			e.transportError(w, r, err)
		}
		return
	}
	enc, req, contentType := in.enc, in.msg, in.contentType
	if in.attachments != nil {
		ctx = withAttachments(ctx, in.attachments)
		if in.mtom {
			ctx = withMTOM(ctx)
		}
		r = r.WithContext(ctx)
	}
	span.SetAttributes(attribute.String("soap.version", req.Version.String()))

	chain := e.chain(contentType)
	reply, err := chain(ctx, req, r)
	if err != nil {
		if isCanceled(err) && ctx.Err() != nil {
			e.logger.DebugContext(ctx, "request canceled", slog.String("error", err.Error()))
			return
		}
		e.writeFault(w, r, enc, req, err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	e.writeReply(w, r, enc, reply, http.StatusOK)
}

// readError marks a decode failure that is answered with a fault.
type readError struct {
	enc *encoder.Encoder
	err error
}

func (e *readError) Error() string { return e.err.Error() }

func (e *readError) Unwrap() error { return e.err }

// inbound is a decoded request
type inbound struct {
	enc         *encoder.Encoder
	msg         *message.Message
	contentType string
	attachments []mime.Attachment
	mtom        bool
}

// readRequest selects the encoder and decodes the envelope, unpacking a
// multipart/related body first.
func (e *Endpoint) readRequest(w http.ResponseWriter, r *http.Request) (*inbound, error) {
	ctx := r.Context()
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return nil, fmt.Errorf("%w: missing Content-Type", ErrUnsupportedMediaType)
	}

	var (
		body      io.Reader = r.Body
		multipart *mime.Message
	)
	if mime.IsMultipart(contentType) {
		parsed, err := mime.Parse(http.MaxBytesReader(w, r.Body, e.maxMessageSize()), contentType)
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return nil, fmt.Errorf("%w: %w", ErrUnreadableBody, encoder.ErrMessageTooLarge)
			}
			return nil, fmt.Errorf("%w: %w", ErrUnreadableBody, err)
		}
		multipart = parsed
		body = bytes.NewReader(parsed.Envelope)
		contentType = parsed.RootContentType()
	}

	enc, ok := e.encoderFor(contentType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, contentType)
	}

	m, err := enc.ReadMessage(ctx, body, contentType)
	if err != nil {
		switch {
		case isCanceled(err):
			return nil, err
		case IsClientFault(err):
			return nil, &readError{enc: enc, err: err}
		}
		return nil, fmt.Errorf("%w: %w", ErrUnreadableBody, err)
	}

	in := &inbound{enc: enc, msg: m, contentType: contentType}
	if multipart != nil {
		if err := multipart.InlineXOP(m.Body()); err != nil {
			return nil, &readError{enc: enc, err: fmt.Errorf("%w: %w", ErrMalformedRequest, err)}
		}
		in.attachments = multipart.Attachments
		in.mtom = multipart.IsMTOM()
		if in.attachments == nil {
			in.attachments = []mime.Attachment{}
		}
	}
	return in, nil
}

func (e *Endpoint) maxMessageSize() int64 {
	var limit int64
	for _, enc := range e.encoders {
		limit = max(limit, enc.MaxMessageSize())
	}
	return limit
}

// chain wraps the dispatcher in the message processors, the first
// registered outermost.
func (e *Endpoint) chain(contentType string) ProcessFunc {
	next := func(ctx context.Context, m *message.Message, r *http.Request) (*message.Message, error) {
		return e.dispatch(ctx, m, r, contentType)
	}
	for i := len(e.processors) - 1; i >= 0; i-- {
		p, inner := e.processors[i], next
		next = func(ctx context.Context, m *message.Message, r *http.Request) (*message.Message, error) {
			return p.ProcessMessage(ctx, m, r, inner)
		}
	}
	return next
}

// dispatch runs one request through matching, binding and invocation. A
// nil reply without error answers a one-way operation.
func (e *Endpoint) dispatch(ctx context.Context, req *message.Message, r *http.Request, contentType string) (reply *message.Message, err error) {
	log := e.logger
	st := newRequestState(log)
	var op *contract.OperationDescription
	defer func() {
		if err != nil {
			st.fault(ctx)
			err = withOperation(op, err)
		}
	}()

	for _, f := range e.filters {
		if err := f.OnRequestExecuting(ctx, req); err != nil {
			return nil, err
		}
	}

	states := make([]any, len(e.inspectors))
	for i, in := range e.inspectors {
		if states[i], err = in.after(ctx, req, e.service, r); err != nil {
			return nil, err
		}
	}

	action := requestAction(r, contentType, req)
	op, ok := matchOperation(e.operations, action)
	if !ok {
		return nil, fmt.Errorf("%w: no operation for action %q", ErrOperationNotFound, action)
	}
	log = log.With(slog.String("operation", op.Name))
	st.logger = log
	ctx = withOperationContext(ctx, op)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("soap.operation", op.Name))
	if err := st.to(ctx, StateMatched); err != nil {
		return nil, err
	}

	instance, err := e.instance(ctx)
	if err != nil {
		return nil, fmt.Errorf("service instance: %w", err)
	}
	args, err := e.bindArguments(ctx, op, req)
	if err != nil {
		return nil, err
	}
	if err := st.to(ctx, StateBound); err != nil {
		return nil, err
	}

	ac := &ActionContext{Operation: op, Instance: instance, Arguments: args, Request: r, Message: req}
	for _, f := range e.actionFilters {
		if err := f.OnActionExecuting(ctx, ac); err != nil {
			return nil, err
		}
	}
	if ac.Request != nil && ac.Request != r {
		ctx = ac.Request.Context()
	}
	for _, t := range e.tuners {
		t.TuneOperation(ac.Request, ac.Instance, op)
	}

	ac.Result, ac.Err = invoke(ctx, op, ac.Instance, ac.Arguments)
	for i := len(e.actionFilters) - 1; i >= 0; i-- {
		e.actionFilters[i].OnActionExecuted(ctx, ac)
	}
	if err := st.to(ctx, StateInvoked); err != nil {
		return nil, err
	}
	if ac.Err != nil {
		log.DebugContext(ctx, "operation failed", slog.String("error", ac.Err.Error()))
		return nil, ac.Err
	}

	if op.IsOneWay {
		if err := st.to(ctx, StateResponded); err != nil {
			return nil, err
		}
		return nil, nil
	}

	reply, err = e.buildResponse(op, req, ac.Arguments, ac.Result)
	if err != nil {
		return nil, err
	}
	for _, f := range e.filters {
		if err := f.OnResponseExecuting(ctx, reply); err != nil {
			return nil, err
		}
	}
	for i := len(e.inspectors) - 1; i >= 0; i-- {
		e.inspectors[i].before(ctx, reply, e.service, r, states[i])
	}
	if err := st.to(ctx, StateResponded); err != nil {
		return nil, err
	}
	return reply, nil
}

// invoke calls the operation, awaiting a Future result and recovering
// panics.
func invoke(ctx context.Context, op *contract.OperationDescription, instance any, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("%w: %v", ErrInvocationPanic, r)
		}
	}()
	result, err = op.Invoke(ctx, instance, args)
	if err != nil {
		return nil, err
	}
	return contract.Resolve(ctx, result)
}

// writeFault answers err with a fault reply.
func (e *Endpoint) writeFault(w http.ResponseWriter, r *http.Request, enc *encoder.Encoder, req *message.Message, err error) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	version := enc.Version()
	if req != nil {
		version = req.Version
	}
	level := slog.LevelWarn
	if IsClientFault(err) {
		level = slog.LevelInfo
	}
	e.logger.Log(ctx, level, "fault",
		slog.String("code", string(faultCode(err))),
		slog.String("error", err.Error()))

	fault := e.buildFault(err, version, req)
	e.writeReply(w, r, enc, fault, faultStatus(err, e.faultStatus))
}

// writeReply encodes reply. A nil reply is answered with 202 Accepted and
// an empty body.
func (e *Endpoint) writeReply(w http.ResponseWriter, r *http.Request, enc *encoder.Encoder, reply *message.Message, status int) {
	if reply == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	ctx := r.Context()
	lw := &lazyWriter{w: w, status: status, contentType: enc.ContentType()}
	var err error
	if isMTOM(ctx) {
		err = writeMTOM(ctx, lw, enc, reply)
	} else {
		err = enc.WriteMessage(ctx, lw, reply)
	}
	switch {
	case err == nil:
		return
	case lw.err != nil:
		e.logger.DebugContext(ctx, "writing reply failed", slog.String("error", lw.err.Error()))
	case isCanceled(err):
		if lw.wrote {
			panic(http.ErrAbortHandler)
		}
	case lw.wrote:
		// the envelope is incomplete: drop the connection instead of
		// ending the response as if it were whole
		e.logger.ErrorContext(ctx, "encoding reply failed after commit", slog.String("error", err.Error()))
		panic(http.ErrAbortHandler)
	case reply.IsFault():
		e.logger.ErrorContext(ctx, "encoding fault failed", slog.String("error", err.Error()))
		http.Error(w, "failed to encode reply", http.StatusInternalServerError)
	default:
		e.logger.ErrorContext(ctx, "encoding reply failed", slog.String("error", err.Error()))
		fault := e.buildFault(fmt.Errorf("encoding reply: %w", err), reply.Version, nil)
		e.writeReply(w, r, enc, fault, faultStatus(err, e.faultStatus))
	}
}

// writeMTOM packages the encoded reply as the root of an MTOM message.
func writeMTOM(ctx context.Context, lw *lazyWriter, enc *encoder.Encoder, reply *message.Message) error {
	var buf bytes.Buffer
	if err := enc.WriteMessage(ctx, &buf, reply); err != nil {
		return err
	}
	data, contentType, err := mime.NewMTOMMessage(buf.Bytes(), enc.MediaType(), enc.CharSet(), nil).Serialize()
	if err != nil {
		return fmt.Errorf("packaging MTOM reply: %w", err)
	}
	lw.contentType = contentType
	_, err = lw.Write(data)
	return err
}

// lazyWriter sends the status line with the first body bytes so that an
// encoding failure can still be answered with a fault.
type lazyWriter struct {
	w           http.ResponseWriter
	status      int
	contentType string
	wrote       bool
	err         error
}

func (lw *lazyWriter) Write(p []byte) (int, error) {
	if !lw.wrote {
		lw.wrote = true
		lw.w.Header().Set("Content-Type", lw.contentType)
		lw.w.WriteHeader(lw.status)
	}
	n, err := lw.w.Write(p)
	if err != nil {
		lw.err = err
	}
	return n, err
}

func (e *Endpoint) transportError(w http.ResponseWriter, r *http.Request, err error) {
	status := transportStatus(err)
	span := trace.SpanFromContext(r.Context())
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.logger.InfoContext(r.Context(), "request rejected",
		slog.Int("status", status),
		slog.String("error", err.Error()))
	http.Error(w, err.Error(), status)
}
