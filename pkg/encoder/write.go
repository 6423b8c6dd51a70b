package encoder

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirosfoundation/go-soap/pkg/message"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// WriteMessage encodes m to w. Nothing is written when ctx is already done.
func (e *Encoder) WriteMessage(ctx context.Context, w io.Writer, m *message.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := m.Prepare()

	cw := e.writers.Get().(*chunkWriter)
	defer e.writers.Put(cw)
	cw.reset(ctx, w)

	if !e.omitDecl || e.charset.enc != nil {
		if _, err := io.WriteString(cw, `<?xml version="1.0" encoding="`+e.charset.name+`"?>`); err != nil {
			return err
		}
	}
	if _, err := doc.WriteTo(cw); err != nil {
		return fmt.Errorf("write %s message: %w", e.version, err)
	}
	return cw.Close()
}

// chunkWriter collects UTF-8 text in a character buffer and converts it to
// the target encoding one chunk at a time. Encoded bytes are buffered and
// reach the sink only when the byte buffer is full or on Close.
type chunkWriter struct {
	ctx      context.Context
	dst      io.Writer
	enc      transform.Transformer
	preamble []byte
	pending  bool
	chars    []byte
	bytes    []byte
	scratch  []byte
	err      error
}

func newChunkWriter(cs charsetInfo, size int) *chunkWriter {
	cw := &chunkWriter{
		preamble: cs.preamble,
		chars:    make([]byte, 0, size),
		bytes:    make([]byte, 0, size),
	}
	if cs.enc != nil {
		// runes outside the target charset become character references
		cw.enc = encoding.HTMLEscapeUnsupported(cs.enc.NewEncoder())
		cw.scratch = make([]byte, size)
	}
	return cw
}

func (cw *chunkWriter) reset(ctx context.Context, dst io.Writer) {
	cw.ctx = ctx
	cw.dst = dst
	cw.pending = true
	cw.chars = cw.chars[:0]
	cw.bytes = cw.bytes[:0]
	cw.err = nil
	if cw.enc != nil {
		cw.enc.Reset()
	}
}

func (cw *chunkWriter) Write(p []byte) (int, error) {
	if cw.err != nil {
		return 0, cw.err
	}
	n := 0
	for len(p) > 0 {
		space := cap(cw.chars) - len(cw.chars)
		if space == 0 {
			if err := cw.encodeChunk(false); err != nil {
				return n, err
			}
			continue
		}
		k := min(space, len(p))
		cw.chars = append(cw.chars, p[:k]...)
		p = p[k:]
		n += k
	}
	return n, nil
}

// encodeChunk converts the character buffer. An incomplete rune at the end
// of a chunk is kept for the next one unless final is set.
func (cw *chunkWriter) encodeChunk(final bool) error {
	if cw.pending {
		cw.pending = false
		if err := cw.emit(cw.preamble); err != nil {
			return err
		}
	}
	if cw.enc == nil {
		err := cw.emit(cw.chars)
		cw.chars = cw.chars[:0]
		return err
	}

	src := cw.chars
	for {
		nDst, nSrc, err := cw.enc.Transform(cw.scratch, src, final)
		if emitErr := cw.emit(cw.scratch[:nDst]); emitErr != nil {
			return emitErr
		}
		src = src[nSrc:]
		if errors.Is(err, transform.ErrShortDst) {
			continue
		}
		if errors.Is(err, transform.ErrShortSrc) && !final {
			break
		}
		if err != nil {
			cw.err = fmt.Errorf("encode output: %w", err)
			return cw.err
		}
		break
	}
	cw.chars = cw.chars[:copy(cw.chars, src)]
	return nil
}

func (cw *chunkWriter) emit(b []byte) error {
	for len(b) > 0 {
		space := cap(cw.bytes) - len(cw.bytes)
		if space == 0 {
			if err := cw.flush(); err != nil {
				return err
			}
			continue
		}
		k := min(space, len(b))
		cw.bytes = append(cw.bytes, b[:k]...)
		b = b[k:]
	}
	return nil
}

func (cw *chunkWriter) flush() error {
	if len(cw.bytes) == 0 {
		return nil
	}
	if err := cw.ctx.Err(); err != nil {
		cw.err = err
		return err
	}
	if _, err := cw.dst.Write(cw.bytes); err != nil {
		cw.err = err
		return err
	}
	cw.bytes = cw.bytes[:0]
	return nil
}

// Close encodes the remaining characters and flushes the byte buffer.
func (cw *chunkWriter) Close() error {
	if cw.err != nil {
		return cw.err
	}
	if err := cw.encodeChunk(true); err != nil {
		return err
	}
	err := cw.flush()
	cw.dst = nil
	cw.ctx = nil
	return err
}
