package writer

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/wudi/pdflin/ir/raw"
)

// The linearization dictionary and first-page trailer are emitted before
// some of the values they carry are known. Those fields are formatted at a
// fixed decimal width so patching the final value never changes the
// serialized length.
const fixedFieldWidth = 10

const maxFixedDecimal = int64(9999999999)

func pdfVersion(doc *raw.Document, cfg Config) string {
	if doc != nil && doc.Version != "" {
		return doc.Version
	}
	if cfg.Version != "" {
		return string(cfg.Version)
	}
	return string(PDF17)
}

func headerBytes(version string) []byte {
	return []byte("%PDF-" + version + "\n%\xE2\xE3\xCF\xD3\n")
}

func appendEOF(b *bytes.Buffer, xrefOffset int64) {
	fmt.Fprintf(b, "startxref\n%d\n%%%%EOF\n", xrefOffset)
}

// fileID returns the /ID pair for the trailer. An identifier already
// present in the source trailer is preserved so relinearizing a file
// reproduces it byte for byte.
func fileID(doc *raw.Document, cfg Config) [2][]byte {
	if doc != nil && doc.Trailer != nil {
		if idObj, ok := doc.Trailer.Get(raw.NameLiteral("ID")); ok {
			if arr, ok := idObj.(*raw.ArrayObj); ok && arr.Len() == 2 {
				a, okA := arr.Items[0].(raw.String)
				b, okB := arr.Items[1].(raw.String)
				if okA && okB {
					return [2][]byte{a.Value(), b.Value()}
				}
			}
		}
	}
	seed := deterministicIDSeed(doc, cfg)
	if cfg.Deterministic {
		return [2][]byte{seed, seed}
	}
	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		id = seed
	}
	idB := make([]byte, len(id))
	copy(idB, id)
	return [2][]byte{id, idB}
}

func deterministicIDSeed(doc *raw.Document, cfg Config) []byte {
	h := sha256.New()
	h.Write([]byte(pdfVersion(doc, cfg)))
	if doc != nil {
		fmt.Fprintf(h, "%d", len(doc.Objects))
		if pages, err := doc.Pages(); err == nil {
			fmt.Fprintf(h, "%d", len(pages))
		}
	}
	sum := h.Sum(nil)
	return sum[:16]
}

func buildTrailer(size, rootNum, infoNum int, ids [2][]byte) *raw.DictObj {
	trailer := raw.Dict()
	trailer.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(size)))
	trailer.Set(raw.NameLiteral("Root"), raw.Ref(rootNum, 0))
	if infoNum != 0 {
		trailer.Set(raw.NameLiteral("Info"), raw.Ref(infoNum, 0))
	}
	trailer.Set(raw.NameLiteral("ID"), raw.NewArray(raw.HexStr(ids[0]), raw.HexStr(ids[1])))
	return trailer
}

// serializePrimitive writes an object body in the compact layout: minimal
// whitespace, sorted dictionary keys, so repeated serialization of the
// same value is byte-identical.
func serializePrimitive(o raw.Object) []byte {
	switch v := o.(type) {
	case raw.NameObj:
		return []byte("/" + v.Value())
	case raw.PaddedNumberObj:
		return []byte(fmt.Sprintf("%0*d", v.Width, v.I))
	case raw.NumberObj:
		if v.IsInteger() {
			return []byte(fmt.Sprintf("%d", v.Int()))
		}
		return []byte(fmt.Sprintf("%f", v.Float()))
	case raw.BoolObj:
		if v.Value() {
			return []byte("true")
		}
		return []byte("false")
	case raw.NullObj:
		return []byte("null")
	case raw.String:
		if v.IsHex() {
			dst := make([]byte, hex.EncodedLen(len(v.Value())))
			hex.Encode(dst, v.Value())
			return []byte("<" + strings.ToUpper(string(dst)) + ">")
		}
		return escapeLiteralString(v.Value())
	case *raw.ArrayObj:
		var b bytes.Buffer
		b.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.Write(serializePrimitive(it))
		}
		b.WriteByte(']')
		return b.Bytes()
	case *raw.DictObj:
		var b bytes.Buffer
		b.WriteString("<<")
		for _, k := range v.SortedKeys() {
			b.WriteString("/" + k + " ")
			b.Write(serializePrimitive(v.KV[k]))
		}
		b.WriteString(">>")
		return b.Bytes()
	case *raw.StreamObj:
		var b bytes.Buffer
		b.Write(serializePrimitive(v.Dict))
		b.WriteString("stream\n")
		b.Write(v.Data)
		b.WriteString("\nendstream")
		return b.Bytes()
	case raw.RefObj:
		return []byte(fmt.Sprintf("%d %d R", v.Ref().Num, v.Ref().Gen))
	default:
		return []byte("null")
	}
}

func escapeLiteralString(rawBytes []byte) []byte {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, ch := range rawBytes {
		switch ch {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(ch)
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		case '\b':
			b.WriteString("\\b")
		case '\f':
			b.WriteString("\\f")
		default:
			if ch < 0x20 || ch >= 0x80 {
				fmt.Fprintf(&b, "\\%03o", ch)
			} else {
				b.WriteByte(ch)
			}
		}
	}
	b.WriteByte(')')
	return b.Bytes()
}
