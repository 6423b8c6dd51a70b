package encoder

import (
	"errors"
	"fmt"
	"mime"
	"strings"
	"sync"

	"github.com/sirosfoundation/go-soap/pkg/message"
)

const (
	// DefaultMaxMessageSize bounds the request body
	DefaultMaxMessageSize = 4 << 20
	// DefaultBufferSize is the size of the pooled character and byte buffers
	DefaultBufferSize = 4096
	minBufferSize     = 64
)

var (
	// ErrMessageTooLarge is returned when a request body exceeds the
	// configured maximum message size
	ErrMessageTooLarge = errors.New("message exceeds maximum size")
	// ErrQuotaExceeded is matched by every QuotaError
	ErrQuotaExceeded = errors.New("reader quota exceeded")
	// ErrMalformedXML is returned when the body is not well-formed XML
	ErrMalformedXML = errors.New("malformed XML")
)

// ReaderQuotas bound the resources spent decoding one message. A zero
// field disables the corresponding check.
type ReaderQuotas struct {
	// MaxDepth is the maximum element nesting depth
	MaxDepth int `yaml:"maxDepth"`
	// MaxStringContentLength is the maximum length of the text of one
	// element or attribute
	MaxStringContentLength int `yaml:"maxStringContentLength"`
	// MaxArrayLength is the maximum number of child elements of one element
	MaxArrayLength int `yaml:"maxArrayLength"`
	// MaxNameLength is the maximum length of an element or attribute name
	MaxNameLength int `yaml:"maxNameLength"`
}

// DefaultReaderQuotas returns the quotas used when none are configured.
func DefaultReaderQuotas() ReaderQuotas {
	return ReaderQuotas{
		MaxDepth:               64,
		MaxStringContentLength: 1 << 20,
		MaxArrayLength:         65536,
		MaxNameLength:          1024,
	}
}

// QuotaError reports which quota a message exceeded
type QuotaError struct {
	Quota string
	Limit int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("reader quota %s (%d) exceeded", e.Quota, e.Limit)
}

func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// Encoder reads and writes messages of one version and encoding.
type Encoder struct {
	version        message.Version
	charset        charsetInfo
	quotas         ReaderQuotas
	mediaType      string
	contentType    string
	bindingName    string
	portName       string
	omitDecl       bool
	maxMessageSize int64
	bufferSize     int
	writers        sync.Pool
}

// Option configures an Encoder
type Option func(*Encoder) error

// WithEncoding sets the write encoding by IANA name, utf-8 by default.
func WithEncoding(name string) Option {
	return func(e *Encoder) error {
		cs, err := lookupCharset(name)
		if err != nil {
			return err
		}
		e.charset = cs
		return nil
	}
}

// WithReaderQuotas replaces the default reader quotas.
func WithReaderQuotas(q ReaderQuotas) Option {
	return func(e *Encoder) error {
		e.quotas = q
		return nil
	}
}

// WithBinding sets the binding and port names reported for this encoder.
func WithBinding(bindingName, portName string) Option {
	return func(e *Encoder) error {
		e.bindingName = bindingName
		e.portName = portName
		return nil
	}
}

// WithOmitXMLDeclaration drops the XML declaration from UTF-8 output.
func WithOmitXMLDeclaration(omit bool) Option {
	return func(e *Encoder) error {
		e.omitDecl = omit
		return nil
	}
}

// WithMaxMessageSize bounds the size of a request body in bytes.
func WithMaxMessageSize(n int64) Option {
	return func(e *Encoder) error {
		if n <= 0 {
			return fmt.Errorf("max message size must be positive, got %d", n)
		}
		e.maxMessageSize = n
		return nil
	}
}

// WithBufferSize sets the size of the pooled write buffers.
func WithBufferSize(n int) Option {
	return func(e *Encoder) error {
		if n < minBufferSize {
			return fmt.Errorf("buffer size must be at least %d, got %d", minBufferSize, n)
		}
		e.bufferSize = n
		return nil
	}
}

// New creates an encoder for version.
func New(version message.Version, opts ...Option) (*Encoder, error) {
	e := &Encoder{
		version:        version,
		charset:        charsetInfo{name: "utf-8"},
		quotas:         DefaultReaderQuotas(),
		maxMessageSize: DefaultMaxMessageSize,
		bufferSize:     DefaultBufferSize,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("encoder %s: %w", version, err)
		}
	}
	e.mediaType = version.MediaType()
	e.contentType = e.mediaType + "; charset=" + e.charset.name
	e.writers.New = func() any {
		return newChunkWriter(e.charset, e.bufferSize)
	}
	return e, nil
}

// Version returns the message version.
func (e *Encoder) Version() message.Version { return e.version }

// MediaType returns the media type without parameters.
func (e *Encoder) MediaType() string { return e.mediaType }

// CharSet returns the write encoding name.
func (e *Encoder) CharSet() string { return e.charset.name }

// ContentType returns the Content-Type of written messages.
func (e *Encoder) ContentType() string { return e.contentType }

// BindingName returns the configured binding name.
func (e *Encoder) BindingName() string { return e.bindingName }

// PortName returns the configured port name.
func (e *Encoder) PortName() string { return e.portName }

// ReaderQuotas returns the decode quotas.
func (e *Encoder) ReaderQuotas() ReaderQuotas { return e.quotas }

// MaxMessageSize returns the request body limit.
func (e *Encoder) MaxMessageSize() int64 { return e.maxMessageSize }

// legacyMediaTypes are accepted in addition to the media type of the None
// version
var legacyMediaTypes = []string{"text/xml", "application/xml"}

// IsContentTypeSupported reports whether a request with the given
// Content-Type can be read by this encoder.
func (e *Encoder) IsContentTypeSupported(contentType string) bool {
	if contentType == "" {
		return false
	}
	if e.supports(contentType, e.mediaType) {
		return true
	}
	if e.version.Envelope == message.EnvelopeNone {
		for _, mt := range legacyMediaTypes {
			if e.supports(contentType, mt) {
				return true
			}
		}
	}
	return false
}

func (e *Encoder) supports(contentType, mediaType string) bool {
	ct := strings.TrimSpace(contentType)
	if strings.EqualFold(ct, e.contentType) || strings.EqualFold(ct, mediaType) {
		return true
	}

	// fast path: media type followed by parameters
	if len(ct) > len(mediaType) && strings.EqualFold(ct[:len(mediaType)], mediaType) {
		rest := strings.TrimLeft(ct[len(mediaType):], " ")
		if strings.HasPrefix(rest, ";") {
			return e.charsetAccepted(ct)
		}
	}

	mt, _, err := mime.ParseMediaType(ct)
	if err != nil || !strings.EqualFold(mt, mediaType) {
		return false
	}
	return e.charsetAccepted(ct)
}

// charsetAccepted checks the charset parameter; a missing charset is taken
// to be the write encoding.
func (e *Encoder) charsetAccepted(contentType string) bool {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	cs, ok := params["charset"]
	if !ok || cs == "" {
		return true
	}
	return sameCharset(cs, e.charset.name)
}
