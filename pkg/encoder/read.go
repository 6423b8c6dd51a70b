package encoder

import (
	"bufio"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"

	"github.com/beevik/etree"
	"github.com/sirosfoundation/go-soap/pkg/message"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ReadMessage decodes one message from r. contentType is the Content-Type
// of the request (or of the root part of a multipart request) and selects
// the input charset.
func (e *Encoder) ReadMessage(ctx context.Context, r io.Reader, contentType string) (*message.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r = &limitedReader{ctx: ctx, r: r, remaining: e.maxMessageSize}

	in, transcoded, err := inputReader(r, contentType)
	if err != nil {
		return nil, err
	}

	doc, err := e.decode(in, transcoded)
	if err != nil {
		return nil, err
	}
	m, err := message.FromDocument(doc, e.version)
	if err != nil {
		return nil, fmt.Errorf("read %s message: %w", e.version, err)
	}
	return m, nil
}

// inputReader converts the body to UTF-8 when the charset is known from the
// content type or a byte order mark. transcoded reports whether the XML
// declaration must be ignored.
func inputReader(r io.Reader, contentType string) (io.Reader, bool, error) {
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			if cs := params["charset"]; cs != "" && !sameCharset(cs, "utf-8") {
				in, err := charset.NewReaderLabel(cs, r)
				if err != nil {
					return nil, false, fmt.Errorf("unsupported charset %q: %w", cs, err)
				}
				// a byte order mark survives transcoding as U+FEFF
				br := bufio.NewReader(in)
				if bom, _ := br.Peek(3); len(bom) == 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
					_, _ = br.Discard(3)
				}
				return br, true, nil
			}
		}
	}

	br := bufio.NewReader(r)
	bom, _ := br.Peek(3)
	switch {
	case len(bom) >= 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF:
		_, _ = br.Discard(3)
	case len(bom) >= 2 && ((bom[0] == 0xFF && bom[1] == 0xFE) || (bom[0] == 0xFE && bom[1] == 0xFF)):
		return transform.NewReader(br, unicode.BOMOverride(unicode.UTF8.NewDecoder())), true, nil
	}
	return br, false, nil
}

// decode builds the document token by token, enforcing the reader quotas.
func (e *Encoder) decode(r io.Reader, transcoded bool) (*etree.Document, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		if transcoded {
			return input, nil
		}
		return charset.NewReaderLabel(label, input)
	}

	q := e.quotas
	doc := etree.NewDocument()
	var (
		stack    []*etree.Element
		children []int
		textLen  []int
	)
	parent := func() *etree.Element {
		if len(stack) == 0 {
			return &doc.Element
		}
		return stack[len(stack)-1]
	}

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, readError(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if q.MaxDepth > 0 && len(stack)+1 > q.MaxDepth {
				return nil, &QuotaError{Quota: "MaxDepth", Limit: q.MaxDepth}
			}
			if len(stack) == 0 && doc.Root() != nil {
				return nil, fmt.Errorf("%w: multiple root elements", ErrMalformedXML)
			}
			if len(children) > 0 {
				children[len(children)-1]++
				if q.MaxArrayLength > 0 && children[len(children)-1] > q.MaxArrayLength {
					return nil, &QuotaError{Quota: "MaxArrayLength", Limit: q.MaxArrayLength}
				}
			}
			if err := checkName(t.Name, q); err != nil {
				return nil, err
			}
			el := parent().CreateElement(qualifiedName(t.Name))
			for _, a := range t.Attr {
				if err := checkName(a.Name, q); err != nil {
					return nil, err
				}
				if q.MaxStringContentLength > 0 && len(a.Value) > q.MaxStringContentLength {
					return nil, &QuotaError{Quota: "MaxStringContentLength", Limit: q.MaxStringContentLength}
				}
				el.CreateAttr(qualifiedName(a.Name), a.Value)
			}
			stack = append(stack, el)
			children = append(children, 0)
			textLen = append(textLen, 0)

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unexpected end element %s", ErrMalformedXML, qualifiedName(t.Name))
			}
			top := stack[len(stack)-1]
			if top.FullTag() != qualifiedName(t.Name) {
				return nil, fmt.Errorf("%w: element %s closed by %s", ErrMalformedXML, top.FullTag(), qualifiedName(t.Name))
			}
			stack = stack[:len(stack)-1]
			children = children[:len(children)-1]
			textLen = textLen[:len(textLen)-1]

		case xml.CharData:
			if len(stack) == 0 {
				// whitespace between the prolog and the root element
				continue
			}
			textLen[len(textLen)-1] += len(t)
			if q.MaxStringContentLength > 0 && textLen[len(textLen)-1] > q.MaxStringContentLength {
				return nil, &QuotaError{Quota: "MaxStringContentLength", Limit: q.MaxStringContentLength}
			}
			parent().CreateText(string(t))

		case xml.Comment:
			parent().CreateComment(string(t))

		case xml.ProcInst:
			if len(stack) == 0 && t.Target == "xml" {
				continue
			}
			parent().CreateProcInst(t.Target, string(t.Inst))

		case xml.Directive:
			return nil, fmt.Errorf("%w: DTD is not allowed", ErrMalformedXML)
		}
	}

	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: unexpected end of input inside %s", ErrMalformedXML, stack[len(stack)-1].FullTag())
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedXML)
	}
	return doc, nil
}

func checkName(name xml.Name, q ReaderQuotas) error {
	if q.MaxNameLength > 0 && len(name.Space)+len(name.Local) > q.MaxNameLength {
		return &QuotaError{Quota: "MaxNameLength", Limit: q.MaxNameLength}
	}
	return nil
}

// qualifiedName rebuilds prefix:local from a raw token name.
func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func readError(err error) error {
	var syntax *xml.SyntaxError
	switch {
	case errors.Is(err, ErrMessageTooLarge), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.As(err, &syntax):
		return fmt.Errorf("%w: %v", ErrMalformedXML, err)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %v", ErrMalformedXML, err)
	}
	return fmt.Errorf("read message: %w", err)
}

// limitedReader fails once more than remaining bytes are read and aborts
// when the request context is done.
type limitedReader struct {
	ctx       context.Context
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if err := l.ctx.Err(); err != nil {
		return 0, err
	}
	if l.remaining < 0 {
		return 0, ErrMessageTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrMessageTooLarge
	}
	return n, err
}
