package writer

import (
	"io"

	"github.com/wudi/pdflin/ir/raw"
	"github.com/wudi/pdflin/observability"
)

type PDFVersion string

const (
	PDF14 PDFVersion = "1.4"
	PDF15 PDFVersion = "1.5"
	PDF16 PDFVersion = "1.6"
	PDF17 PDFVersion = "1.7"
)

type Config struct {
	// Version is used when the document does not declare one.
	Version PDFVersion
	// Linearize selects the web-optimized file layout.
	Linearize bool
	// Deterministic derives the file identifier from document content so
	// repeated saves of the same document are byte-identical.
	Deterministic bool
	// Logger receives phase and summary events. Nil means no logging.
	Logger observability.Logger
}

type Writer interface {
	Write(ctx Context, doc *raw.Document, out io.Writer, cfg Config) error
	SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error)
}

type Interceptor interface {
	BeforeWrite(ctx Context, obj raw.Object) error
	AfterWrite(ctx Context, obj raw.Object, bytesWritten int64) error
}

type WriterBuilder struct{ interceptors []Interceptor }

func (b *WriterBuilder) WithInterceptor(i Interceptor) *WriterBuilder {
	b.interceptors = append(b.interceptors, i)
	return b
}
func (b *WriterBuilder) Build() Writer { return &impl{interceptors: b.interceptors} }

func NewWriter() Writer { return (&WriterBuilder{}).Build() }

// Context carries cancellation; context.Context satisfies it.
type Context interface{ Done() <-chan struct{} }
