package writer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wudi/pdflin/ir/raw"
	"github.com/wudi/pdflin/observability"
)

// writePhase tracks the linearized writer's progress. The only backward
// step permitted is re-finalizing the linearization dictionary while laid
// out; any fault aborts the write without touching the sink.
type writePhase int

const (
	phaseInit writePhase = iota
	phaseCollected
	phaseSized
	phaseLaidOut
	phaseEmitting
	phaseDone
)

type linearizedWriter struct {
	w     *impl
	log   observability.Logger
	phase writePhase
}

func (lw *linearizedWriter) write(ctx Context, doc *raw.Document, out io.Writer, cfg Config) error {
	sets, err := collectObjectSets(doc)
	if err != nil {
		return err
	}
	lw.phase = phaseCollected
	lw.log.Debug("linearize: collected",
		observability.Int(observability.MetricPageCount, len(sets.pages)),
		observability.Int(observability.MetricSharedCount, len(sets.shared)))
	if err := canceled(ctx); err != nil {
		return err
	}

	rn := renumber(doc, sets)

	linDict := newLinearizationDict(rn.pageObj[0], len(sets.pages))
	rn.objects[rn.linDict] = linDict
	hintStream := raw.NewStream(raw.Dict(), nil)
	hintStream.Dict.Set(raw.NameLiteral("S"), raw.NumberInt(0))
	rn.objects[rn.hint] = hintStream

	sizes, err := measureSizes(lw.w, rn)
	if err != nil {
		return err
	}
	lw.phase = phaseSized
	if err := canceled(ctx); err != nil {
		return err
	}

	ids := fileID(doc, cfg)
	rootNum := rn.docLevel[0]
	infoNum := 0
	if infoRef, ok := doc.Info(); ok {
		if num, ok := rn.oldToNew[infoRef]; ok {
			infoNum = num
		}
	}

	header := headerBytes(pdfVersion(doc, cfg))
	headerLen := int64(len(header))
	fpXRefOffset := headerLen + sizes[rn.linDict]

	// The first-page trailer's /Prev names the main table, whose offset is
	// unknown until the layout is solved; it is measured with a fixed-width
	// placeholder and patched in place.
	fpTrailer := buildTrailer(rn.hint+1, rootNum, infoNum, ids)
	fpTrailer.Set(raw.NameLiteral("Prev"), raw.PaddedInt(0, fixedFieldWidth))
	fpXRefSize := int64(len(firstPageXrefSection(rn.hint, nil, fpTrailer, fpXRefOffset)))

	// Provisional pass: the encoded hint-table length depends only on
	// object sizes and counts, never on the hint stream's own position, so
	// one encode fixes the stream size and the second pass is final.
	off1, _ := assignOffsets(rn, sizes, headerLen, fpXRefSize, 0)
	data1, sharedOff := buildHintRecords(rn, sets, sizes, off1).encode()
	hintStream.Dict.Set(raw.NameLiteral("S"), raw.NumberInt(int64(sharedOff)))
	hintStream.Data = data1
	hintEnvelope, err := lw.w.SerializeObject(raw.ObjectRef{Num: rn.hint}, hintStream)
	if err != nil {
		return err
	}
	sizes[rn.hint] = int64(len(hintEnvelope))

	offsets, marks := assignOffsets(rn, sizes, headerLen, fpXRefSize, sizes[rn.hint])
	data2, sharedOff2 := buildHintRecords(rn, sets, sizes, offsets).encode()
	if len(data2) != len(data1) || sharedOff2 != sharedOff {
		return fmt.Errorf("%w: hint table length changed between passes", ErrLayoutDrift)
	}
	hintStream.Data = data2

	mainTrailer := buildTrailer(rn.total+1, rootNum, infoNum, ids)
	mainBytes := mainXrefSection(rn.total, offsets, mainTrailer, marks.mainXRefOffset)
	total := marks.mainXRefOffset + int64(len(mainBytes))
	if err := checkFileLength(total); err != nil {
		return err
	}
	lw.phase = phaseLaidOut
	if err := canceled(ctx); err != nil {
		return err
	}

	linDict.Set(raw.NameLiteral("L"), raw.PaddedInt(total, fixedFieldWidth))
	linDict.Set(raw.NameLiteral("H"), raw.NewArray(
		raw.PaddedInt(marks.hintOffset, fixedFieldWidth),
		raw.PaddedInt(sizes[rn.hint], fixedFieldWidth),
	))
	linDict.Set(raw.NameLiteral("E"), raw.PaddedInt(marks.endFirstPage, fixedFieldWidth))
	linDict.Set(raw.NameLiteral("T"), raw.PaddedInt(mainXrefEntriesOffset(rn.total, marks.mainXRefOffset), fixedFieldWidth))
	fpTrailer.Set(raw.NameLiteral("Prev"), raw.PaddedInt(marks.mainXRefOffset, fixedFieldWidth))

	lw.phase = phaseEmitting
	var buf bytes.Buffer
	buf.Write(header)

	linData, err := lw.w.SerializeObject(raw.ObjectRef{Num: rn.linDict}, linDict)
	if err != nil {
		return err
	}
	if int64(len(linData)) != sizes[rn.linDict] {
		return fmt.Errorf("%w: linearization dictionary resized on finalize", ErrLayoutDrift)
	}
	buf.Write(linData)

	fpx := firstPageXrefSection(rn.hint, offsets, fpTrailer, fpXRefOffset)
	if int64(len(fpx)) != fpXRefSize {
		return fmt.Errorf("%w: first-page xref resized on finalize", ErrLayoutDrift)
	}
	if int64(buf.Len()) != marks.fpXRefOffset {
		return fmt.Errorf("%w: first-page xref at %d, laid out at %d", ErrLayoutDrift, buf.Len(), marks.fpXRefOffset)
	}
	buf.Write(fpx)

	if err := lw.emitObjects(ctx, &buf, rn, sizes, offsets); err != nil {
		return err
	}

	if int64(buf.Len()) != marks.mainXRefOffset {
		return fmt.Errorf("%w: main xref at %d, laid out at %d", ErrLayoutDrift, buf.Len(), marks.mainXRefOffset)
	}
	buf.Write(mainBytes)
	if int64(buf.Len()) != total {
		return fmt.Errorf("%w: file length %d, laid out %d", ErrLayoutDrift, buf.Len(), total)
	}

	if _, err := out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", ErrSink, err)
	}
	lw.phase = phaseDone
	lw.log.Debug("linearize: save complete",
		observability.Int(observability.MetricObjectCount, rn.total),
		observability.Int64(observability.MetricHintBytes, sizes[rn.hint]),
		observability.Int64(observability.MetricFileBytes, total))
	return nil
}

// emitObjects writes every object after the linearization dictionary in
// numeric order, verifying each against the size pass. Numeric order is
// emission order: first-page section, hint stream, remaining pages,
// shared, then out-of-closure objects.
func (lw *linearizedWriter) emitObjects(ctx Context, buf *bytes.Buffer, rn *renumbering, sizes, offsets map[int]int64) error {
	for num := rn.linDict + 1; num <= rn.total; num++ {
		if err := canceled(ctx); err != nil {
			return err
		}
		if int64(buf.Len()) != offsets[num] {
			return fmt.Errorf("%w: object %d at %d, laid out at %d", ErrLayoutDrift, num, buf.Len(), offsets[num])
		}
		obj := rn.objects[num]
		for _, ic := range lw.w.interceptors {
			if err := ic.BeforeWrite(ctx, obj); err != nil {
				return err
			}
		}
		data, err := lw.w.SerializeObject(raw.ObjectRef{Num: num}, obj)
		if err != nil {
			return err
		}
		if int64(len(data)) != sizes[num] {
			return fmt.Errorf("%w: object %d serialized to %d bytes, measured %d", ErrLayoutDrift, num, len(data), sizes[num])
		}
		buf.Write(data)
		for _, ic := range lw.w.interceptors {
			if err := ic.AfterWrite(ctx, obj, int64(len(data))); err != nil {
				return err
			}
		}
	}
	return nil
}

func newLinearizationDict(pageObjNum, pageCount int) *raw.DictObj {
	d := raw.Dict()
	d.Set(raw.NameLiteral("Linearized"), raw.NumberInt(1))
	d.Set(raw.NameLiteral("L"), raw.PaddedInt(0, fixedFieldWidth))
	d.Set(raw.NameLiteral("H"), raw.NewArray(
		raw.PaddedInt(0, fixedFieldWidth),
		raw.PaddedInt(0, fixedFieldWidth),
	))
	d.Set(raw.NameLiteral("O"), raw.NumberInt(int64(pageObjNum)))
	d.Set(raw.NameLiteral("E"), raw.PaddedInt(0, fixedFieldWidth))
	d.Set(raw.NameLiteral("N"), raw.NumberInt(int64(pageCount)))
	d.Set(raw.NameLiteral("T"), raw.PaddedInt(0, fixedFieldWidth))
	return d
}
