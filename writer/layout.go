package writer

import (
	"bytes"
	"fmt"

	"github.com/wudi/pdflin/ir/raw"
)

// renumbering maps the classified sets onto the dense object numbering of
// the linearized file: 1 is the linearization dictionary, then document-
// level objects, page-0 exclusives, the hint stream, each later page's
// exclusives, shared objects, and finally objects outside every page
// closure. Objects are rebuilt with rewritten references; the source
// document is not mutated.
type renumbering struct {
	objects   map[int]raw.Object
	oldToNew  map[raw.ObjectRef]int
	linDict   int // always 1
	docLevel  []int
	firstPage []int
	hint      int
	remaining [][]int
	shared    []int
	other     []int
	pageObj   []int // new number of each page dictionary
	total     int   // highest object number
}

func renumber(doc *raw.Document, sets *objectSets) *renumbering {
	rn := &renumbering{
		objects:  make(map[int]raw.Object),
		oldToNew: make(map[raw.ObjectRef]int),
	}
	next := 1
	rn.linDict = next
	next++
	assign := func(refs []raw.ObjectRef) []int {
		nums := make([]int, 0, len(refs))
		for _, ref := range refs {
			rn.oldToNew[ref] = next
			nums = append(nums, next)
			next++
		}
		return nums
	}
	rn.docLevel = assign(sets.docLevel)
	rn.firstPage = assign(sets.firstPage)
	rn.hint = next
	next++
	rn.remaining = make([][]int, len(sets.remaining))
	for p, refs := range sets.remaining {
		rn.remaining[p] = assign(refs)
	}
	rn.shared = assign(sets.shared)
	rn.other = assign(sets.other)
	rn.total = next - 1

	for old, num := range rn.oldToNew {
		rn.objects[num] = rewriteRefs(doc.Objects[old], rn.oldToNew)
	}
	rn.pageObj = make([]int, len(sets.pages))
	for i, pg := range sets.pages {
		rn.pageObj[i] = rn.oldToNew[pg]
	}
	return rn
}

// rewriteRefs rebuilds containers with references renamed to the new
// numbering. References to objects outside the live set are left alone.
func rewriteRefs(obj raw.Object, oldToNew map[raw.ObjectRef]int) raw.Object {
	switch v := obj.(type) {
	case raw.RefObj:
		if num, ok := oldToNew[v.Ref()]; ok {
			return raw.Ref(num, 0)
		}
		return v
	case *raw.ArrayObj:
		newArr := raw.NewArray()
		for _, item := range v.Items {
			newArr.Append(rewriteRefs(item, oldToNew))
		}
		return newArr
	case *raw.DictObj:
		newDict := raw.Dict()
		for _, k := range v.SortedKeys() {
			newDict.Set(raw.NameLiteral(k), rewriteRefs(v.KV[k], oldToNew))
		}
		return newDict
	case *raw.StreamObj:
		newDict := rewriteRefs(v.Dict, oldToNew).(*raw.DictObj)
		return raw.NewStream(newDict, v.Data)
	default:
		return v
	}
}

// measureSizes serializes every renumbered object except the hint stream
// (whose data does not exist yet) to record exact envelope lengths.
func measureSizes(w *impl, rn *renumbering) (map[int]int64, error) {
	sizes := make(map[int]int64, rn.total)
	for num := 1; num <= rn.total; num++ {
		if num == rn.hint {
			continue
		}
		data, err := w.SerializeObject(raw.ObjectRef{Num: num}, rn.objects[num])
		if err != nil {
			return nil, err
		}
		sizes[num] = int64(len(data))
	}
	return sizes, nil
}

// layoutMarks are the section boundaries of the laid-out file.
type layoutMarks struct {
	fpXRefOffset   int64
	endFirstPage   int64
	hintOffset     int64
	mainXRefOffset int64
}

// assignOffsets runs the cursor over the file regions in emission order.
// The hint-stream size is the only input that changes between the
// provisional and final pass.
func assignOffsets(rn *renumbering, sizes map[int]int64, headerLen, fpXRefSize, hintSize int64) (map[int]int64, layoutMarks) {
	offsets := make(map[int]int64, rn.total)
	cur := headerLen
	offsets[rn.linDict] = cur
	cur += sizes[rn.linDict]
	m := layoutMarks{fpXRefOffset: cur}
	cur += fpXRefSize
	for num := rn.linDict + 1; num < rn.hint; num++ {
		offsets[num] = cur
		cur += sizes[num]
	}
	m.endFirstPage = cur
	m.hintOffset = cur
	offsets[rn.hint] = cur
	cur += hintSize
	for num := rn.hint + 1; num <= rn.total; num++ {
		offsets[num] = cur
		cur += sizes[num]
	}
	m.mainXRefOffset = cur
	return offsets, m
}

// firstPageXrefSection renders the cross-reference subsection covering
// objects 0..maxNum (the linearization dictionary through the hint
// stream), the first-page trailer, and its startxref/EOF. All entry
// fields are fixed-width, so the section's length does not depend on the
// offset values.
func firstPageXrefSection(maxNum int, offsets map[int]int64, trailer *raw.DictObj, ownOffset int64) []byte {
	var b bytes.Buffer
	b.WriteString("xref\n")
	fmt.Fprintf(&b, "0 %d\n", maxNum+1)
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= maxNum; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	b.WriteString("trailer\n")
	b.Write(serializePrimitive(trailer))
	b.WriteString("\n")
	appendEOF(&b, ownOffset)
	return b.Bytes()
}

// mainXrefSection renders the single-subsection table covering the whole
// document, the main trailer, and the final startxref/EOF.
func mainXrefSection(total int, offsets map[int]int64, trailer *raw.DictObj, ownOffset int64) []byte {
	var b bytes.Buffer
	b.WriteString("xref\n")
	fmt.Fprintf(&b, "0 %d\n", total+1)
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= total; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	b.WriteString("trailer\n")
	b.Write(serializePrimitive(trailer))
	b.WriteString("\n")
	appendEOF(&b, ownOffset)
	return b.Bytes()
}

// checkFileLength rejects layouts whose offsets cannot fit the 10-digit
// fixed-width fields. Every offset in the file is bounded by the total
// length, so one check covers them all. Runs before any byte reaches the
// sink.
func checkFileLength(total int64) error {
	if total > maxFixedDecimal {
		return fmt.Errorf("%w: file length %d", ErrFormatOverflow, total)
	}
	return nil
}

// mainXrefEntriesOffset returns the byte offset of the whitespace
// preceding the table's first 20-byte entry, the linearization
// dictionary's /T value.
func mainXrefEntriesOffset(total int, ownOffset int64) int64 {
	header := fmt.Sprintf("0 %d\n", total+1)
	return ownOffset + int64(len("xref\n")) + int64(len(header)) - 1
}

// buildHintRecords derives both hint tables' records from the solved
// layout. A page's content stream is only recorded when it is exclusive
// to that page's own section; its offset is taken relative to the page
// object so the record is stable across hint-size passes.
func buildHintRecords(rn *renumbering, sets *objectSets, sizes, offsets map[int]int64) *hintTables {
	sharedIdx := make(map[raw.ObjectRef]int, len(sets.shared))
	for i, ref := range sets.shared {
		sharedIdx[ref] = i
	}

	pages := make([]pageHintRecord, len(sets.pages))
	for p := range sets.pages {
		var nums []int
		if p == 0 {
			nums = append(append([]int{}, rn.docLevel...), rn.firstPage...)
		} else {
			nums = rn.remaining[p-1]
		}
		exclusive := make(map[int]bool, len(nums))
		var length int64
		for _, num := range nums {
			exclusive[num] = true
			length += sizes[num]
		}
		rec := pageHintRecord{objectCount: len(nums), sectionLength: length}

		pageNum := rn.pageObj[p]
		if pageDict, ok := rn.objects[pageNum].(*raw.DictObj); ok {
			if cNum, ok := firstContentRef(pageDict); ok && exclusive[cNum] {
				rec.contentOffset = offsets[cNum] - offsets[pageNum]
				rec.contentLength = sizes[cNum]
			}
		}
		for _, ref := range sets.closures[p] {
			if idx, ok := sharedIdx[ref]; ok {
				rec.sharedRefs = append(rec.sharedRefs, idx)
			}
		}
		pages[p] = rec
	}

	shared := make([]sharedHintRecord, len(rn.shared))
	for i, num := range rn.shared {
		shared[i] = sharedHintRecord{length: sizes[num]}
	}

	h := &hintTables{
		pages:                pages,
		shared:               shared,
		firstPageObjOffset:   offsets[rn.pageObj[0]],
		firstPageSharedCount: len(pages[0].sharedRefs),
	}
	if len(rn.shared) > 0 {
		h.firstSharedNum = rn.shared[0]
		h.firstSharedOffset = offsets[rn.shared[0]]
	}
	return h
}

func firstContentRef(pageDict *raw.DictObj) (int, bool) {
	obj, ok := pageDict.Get(raw.NameLiteral("Contents"))
	if !ok {
		return 0, false
	}
	switch v := obj.(type) {
	case raw.RefObj:
		return v.Ref().Num, true
	case *raw.ArrayObj:
		if v.Len() > 0 {
			if r, ok := v.Items[0].(raw.RefObj); ok {
				return r.Ref().Num, true
			}
		}
	}
	return 0, false
}
