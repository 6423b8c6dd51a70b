package compression

import (
	"compress/gzip"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
)

const (
	// CompressionTypeGzip is the standard GZIP compression
	CompressionTypeGzip = "application/gzip"
	// EncodingGzip is the Content-Encoding token for gzip
	EncodingGzip = "gzip"
)

// Compressor handles payload compression
type Compressor struct {
	compressionLevel int
	writers          sync.Pool
}

// NewCompressor creates a new compressor with default compression level
func NewCompressor() *Compressor {
	return NewCompressorWithLevel(gzip.DefaultCompression)
}

// NewCompressorWithLevel creates a new compressor with specified compression level
func NewCompressorWithLevel(level int) *Compressor {
	return &Compressor{
		compressionLevel: level,
	}
}

// writer returns a pooled gzip writer reset to w
func (c *Compressor) writer(w io.Writer) (*gzip.Writer, error) {
	if gz, ok := c.writers.Get().(*gzip.Writer); ok {
		gz.Reset(w)
		return gz, nil
	}
	gz, err := gzip.NewWriterLevel(w, c.compressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	return gz, nil
}

// ShouldCompress determines if payload should be compressed based on content type
func ShouldCompress(contentType string) bool {
	// Don't compress already compressed formats
	compressedTypes := map[string]bool{
		"application/gzip":   true,
		"application/zip":    true,
		"application/x-gzip": true,
		"image/jpeg":         true,
		"image/png":          true,
		"video/mp4":          true,
		"audio/mp3":          true,
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	return !compressedTypes[mediaType]
}

// AcceptsGzip reports whether an Accept-Encoding header value allows gzip
func AcceptsGzip(acceptEncoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(coding), EncodingGzip) && strings.TrimSpace(coding) != "*" {
			continue
		}
		q := strings.ReplaceAll(strings.TrimSpace(params), " ", "")
		return q != "q=0" && q != "q=0.0" && q != "q=0.00" && q != "q=0.000"
	}
	return false
}

// Middleware decodes gzip request bodies and compresses replies for
// clients accepting gzip. Request bodies with another Content-Encoding
// are rejected with 415.
func (c *Compressor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch enc := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding"))); enc {
		case "", "identity":
		case EncodingGzip, "x-gzip":
			body, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid gzip body: %v", err), http.StatusBadRequest)
				return
			}
			defer body.Close()
			r.Body = body
			r.Header.Del("Content-Encoding")
			r.Header.Del("Content-Length")
			r.ContentLength = -1
		default:
			http.Error(w, fmt.Sprintf("unsupported Content-Encoding %q", enc), http.StatusUnsupportedMediaType)
			return
		}

		if !AcceptsGzip(r.Header.Get("Accept-Encoding")) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Add("Vary", "Accept-Encoding")
		gw := &gzipResponseWriter{ResponseWriter: w, c: c}
		defer gw.close()
		next.ServeHTTP(gw, r)
	})
}

// gzipResponseWriter decides on compression when the header is written:
// empty replies and compressed media types pass through unchanged.
type gzipResponseWriter struct {
	http.ResponseWriter
	c           *Compressor
	gz          *gzip.Writer
	wroteHeader bool
}

func (g *gzipResponseWriter) WriteHeader(status int) {
	if g.wroteHeader {
		return
	}
	g.wroteHeader = true
	h := g.ResponseWriter.Header()
	compress := status != http.StatusNoContent &&
		status != http.StatusNotModified &&
		status != http.StatusAccepted &&
		h.Get("Content-Encoding") == "" &&
		ShouldCompress(h.Get("Content-Type"))
	if compress {
		if gz, err := g.c.writer(g.ResponseWriter); err == nil {
			g.gz = gz
			h.Set("Content-Encoding", EncodingGzip)
			h.Del("Content-Length")
		}
	}
	g.ResponseWriter.WriteHeader(status)
}

func (g *gzipResponseWriter) Write(p []byte) (int, error) {
	if !g.wroteHeader {
		g.WriteHeader(http.StatusOK)
	}
	if g.gz == nil {
		return g.ResponseWriter.Write(p)
	}
	return g.gz.Write(p)
}

// Flush flushes buffered compressed data to the client.
func (g *gzipResponseWriter) Flush() {
	if g.gz != nil {
		_ = g.gz.Flush()
	}
	if f, ok := g.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (g *gzipResponseWriter) Unwrap() http.ResponseWriter {
	return g.ResponseWriter
}

func (g *gzipResponseWriter) close() {
	if g.gz == nil {
		return
	}
	_ = g.gz.Close()
	g.c.writers.Put(g.gz)
	g.gz = nil
}
