package writer

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/wudi/pdflin/ir/raw"
	"github.com/wudi/pdflin/observability"
)

type impl struct{ interceptors []Interceptor }

// SerializeObject writes the full indirect-object envelope in the compact
// layout. Stream dictionaries get their /Length forced to the actual data
// length before serialization.
func (w *impl) SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	if s, ok := obj.(*raw.StreamObj); ok {
		s.Dict.Set(raw.NameLiteral("Length"), raw.NumberInt(s.Length()))
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	buf.Write(serializePrimitive(obj))
	buf.WriteString("\nendobj\n")
	return buf.Bytes(), nil
}

func (w *impl) Write(ctx Context, doc *raw.Document, out io.Writer, cfg Config) error {
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	if cfg.Linearize {
		lw := &linearizedWriter{w: w, log: log}
		return lw.write(ctx, doc, out, cfg)
	}
	return w.writeClassic(ctx, doc, out, cfg, log)
}

// writeClassic produces a plain single-xref file: header, objects in
// numeric order, one cross-reference table, trailer, startxref, EOF.
func (w *impl) writeClassic(ctx Context, doc *raw.Document, out io.Writer, cfg Config, log observability.Logger) error {
	rootRef, _, err := doc.Catalog()
	if err != nil {
		return err
	}

	ordered := make([]raw.ObjectRef, 0, len(doc.Objects))
	for ref := range doc.Objects {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Num < ordered[j].Num })

	var buf bytes.Buffer
	buf.Write(headerBytes(pdfVersion(doc, cfg)))

	type xrefEntry struct {
		offset int64
		gen    int
	}
	entries := make(map[int]xrefEntry, len(ordered))
	for _, ref := range ordered {
		if err := canceled(ctx); err != nil {
			return err
		}
		obj := doc.Objects[ref]
		for _, ic := range w.interceptors {
			if err := ic.BeforeWrite(ctx, obj); err != nil {
				return err
			}
		}
		entries[ref.Num] = xrefEntry{offset: int64(buf.Len()), gen: ref.Gen}
		data, err := w.SerializeObject(ref, obj)
		if err != nil {
			return err
		}
		buf.Write(data)
		for _, ic := range w.interceptors {
			if err := ic.AfterWrite(ctx, obj, int64(len(data))); err != nil {
				return err
			}
		}
	}

	xrefOffset := int64(buf.Len())
	maxNum := 0
	if len(ordered) > 0 {
		maxNum = ordered[len(ordered)-1].Num
	}
	buf.WriteString("xref\n")
	fmt.Fprintf(&buf, "0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= maxNum; i++ {
		if e, ok := entries[i]; ok {
			fmt.Fprintf(&buf, "%010d %05d n \n", e.offset, e.gen)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}

	ids := fileID(doc, cfg)
	infoNum := 0
	if infoRef, ok := doc.Info(); ok {
		infoNum = infoRef.Num
	}
	trailer := buildTrailer(maxNum+1, rootRef.Num, infoNum, ids)
	buf.WriteString("trailer\n")
	buf.Write(serializePrimitive(trailer))
	buf.WriteString("\n")
	appendEOF(&buf, xrefOffset)

	if _, err := out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", ErrSink, err)
	}
	log.Debug("write: classic save complete",
		observability.Int(observability.MetricObjectCount, len(ordered)),
		observability.Int64(observability.MetricFileBytes, int64(buf.Len())))
	return nil
}

func canceled(ctx Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ErrCanceled
	default:
		return nil
	}
}
