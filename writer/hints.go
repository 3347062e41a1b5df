package writer

import "bytes"

// pageHintRecord summarizes one page for the page offset hint table.
// contentOffset is relative to the page object's own byte position so the
// encoded table length is independent of where the hint stream lands.
type pageHintRecord struct {
	objectCount   int
	sectionLength int64
	contentOffset int64
	contentLength int64
	sharedRefs    []int
}

// sharedHintRecord summarizes one shared object group. The encoder emits
// one object per group.
type sharedHintRecord struct {
	length    int64
	signature bool
}

// hintTables holds the records both hint tables are encoded from.
type hintTables struct {
	pages                []pageHintRecord
	shared               []sharedHintRecord
	firstPageObjOffset   int64
	firstSharedNum       int
	firstSharedOffset    int64
	firstPageSharedCount int
}

// encode produces the page offset hint table followed by the shared
// object hint table and returns the combined payload plus the byte offset
// of the shared table within it (the hint stream's /S value).
func (h *hintTables) encode() (data []byte, sharedOffset int) {
	var buf bytes.Buffer
	bw := newBitWriter(&buf)

	objCounts := make([]int64, len(h.pages))
	pageLens := make([]int64, len(h.pages))
	contentOffs := make([]int64, len(h.pages))
	contentLens := make([]int64, len(h.pages))
	maxSharedCount := int64(0)
	for i, p := range h.pages {
		objCounts[i] = int64(p.objectCount)
		pageLens[i] = p.sectionLength
		contentOffs[i] = p.contentOffset
		contentLens[i] = p.contentLength
		if n := int64(len(p.sharedRefs)); n > maxSharedCount {
			maxSharedCount = n
		}
	}
	minObjs, objDeltas, bitsObj := deltaEncode(objCounts)
	minLen, lenDeltas, bitsLen := deltaEncode(pageLens)
	minCOff, cOffDeltas, bitsCOff := deltaEncode(contentOffs)
	minCLen, cLenDeltas, bitsCLen := deltaEncode(contentLens)
	bitsSharedCount := bitsNeeded(maxSharedCount)
	maxSharedID := int64(0)
	if len(h.shared) > 0 {
		maxSharedID = int64(len(h.shared) - 1)
	}
	bitsSharedID := bitsNeeded(maxSharedID)
	const bitsFraction = 1

	// Header, 13 fields in table order.
	bw.writeUint32(uint32(minObjs))
	bw.writeUint32(uint32(h.firstPageObjOffset))
	bw.writeUint16(uint16(bitsObj))
	bw.writeUint32(uint32(minLen))
	bw.writeUint16(uint16(bitsLen))
	bw.writeUint32(uint32(minCOff))
	bw.writeUint16(uint16(bitsCOff))
	bw.writeUint32(uint32(minCLen))
	bw.writeUint16(uint16(bitsCLen))
	bw.writeUint16(uint16(bitsSharedCount))
	bw.writeUint16(uint16(bitsSharedID))
	bw.writeUint16(bitsFraction)
	bw.writeUint16(1)

	// Per-page arrays, each emitted contiguously across all pages.
	for _, d := range objDeltas {
		bw.writeBits(d, uint(bitsObj))
	}
	for _, d := range lenDeltas {
		bw.writeBits(d, uint(bitsLen))
	}
	for _, p := range h.pages {
		bw.writeBits(uint64(len(p.sharedRefs)), uint(bitsSharedCount))
	}
	for _, p := range h.pages {
		for _, id := range p.sharedRefs {
			bw.writeBits(uint64(id), uint(bitsSharedID))
		}
	}
	for _, p := range h.pages {
		for range p.sharedRefs {
			bw.writeBits(0, bitsFraction)
		}
	}
	for _, d := range cOffDeltas {
		bw.writeBits(d, uint(bitsCOff))
	}
	for _, d := range cLenDeltas {
		bw.writeBits(d, uint(bitsCLen))
	}
	bw.flush()

	sharedOffset = buf.Len()

	sharedLens := make([]int64, len(h.shared))
	for i, s := range h.shared {
		sharedLens[i] = s.length
	}
	minShared, sharedDeltas, bitsShared := deltaEncode(sharedLens)

	bw.writeUint32(uint32(h.firstSharedNum))
	bw.writeUint32(uint32(h.firstSharedOffset))
	bw.writeUint32(uint32(h.firstPageSharedCount))
	bw.writeUint32(uint32(len(h.shared)))
	bw.writeUint32(uint32(minShared))
	bw.writeUint16(uint16(bitsShared))

	for _, d := range sharedDeltas {
		bw.writeBits(d, uint(bitsShared))
	}
	for _, s := range h.shared {
		if s.signature {
			bw.writeBits(1, 1)
		} else {
			bw.writeBits(0, 1)
		}
	}
	for range h.shared {
		bw.writeBits(0, 1) // one object per group
	}
	bw.flush()

	return buf.Bytes(), sharedOffset
}

// deltaEncode returns the minimum of values, each value's delta from it,
// and the bit width covering the largest delta.
func deltaEncode(values []int64) (min int64, deltas []uint64, width int) {
	if len(values) == 0 {
		return 0, nil, 1
	}
	min = values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
	}
	maxDelta := int64(0)
	deltas = make([]uint64, len(values))
	for i, v := range values {
		d := v - min
		deltas[i] = uint64(d)
		if d > maxDelta {
			maxDelta = d
		}
	}
	return min, deltas, bitsNeeded(maxDelta)
}
