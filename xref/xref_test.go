package xref

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type pdfBuilder struct {
	buf     bytes.Buffer
	offsets map[int]int64
}

func newPDFBuilder() *pdfBuilder {
	b := &pdfBuilder{offsets: make(map[int]int64)}
	b.buf.WriteString("%PDF-1.7\n")
	return b
}

func (b *pdfBuilder) addObject(num int, body string) {
	b.offsets[num] = int64(b.buf.Len())
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

func (b *pdfBuilder) addXref(nums []int, trailer string) int64 {
	off := int64(b.buf.Len())
	b.buf.WriteString("xref\n")
	fmt.Fprintf(&b.buf, "0 1\n")
	b.buf.WriteString("0000000000 65535 f \n")
	for _, num := range nums {
		fmt.Fprintf(&b.buf, "%d 1\n%010d 00000 n \n", num, b.offsets[num])
	}
	fmt.Fprintf(&b.buf, "trailer\n%s\n", trailer)
	fmt.Fprintf(&b.buf, "startxref\n%d\n%%%%EOF\n", off)
	return off
}

func TestResolveClassicTable(t *testing.T) {
	b := newPDFBuilder()
	b.addObject(1, "<</Type /Catalog /Pages 2 0 R>>")
	b.addObject(2, "<</Count 0 /Kids [] /Type /Pages>>")
	b.addXref([]int{1, 2}, "<</Root 1 0 R/Size 3>>")

	resolver := NewResolver(ResolverConfig{})
	table, err := resolver.Resolve(context.Background(), bytes.NewReader(b.buf.Bytes()))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolver.Linearized() {
		t.Error("plain file misdetected as linearized")
	}

	got := make(map[int]int64)
	for _, num := range table.Objects() {
		off, gen, found := table.Lookup(num)
		if !found || gen != 0 {
			t.Errorf("lookup(%d) = gen %d found %v", num, gen, found)
		}
		got[num] = off
	}
	if diff := cmp.Diff(b.offsets, got); diff != "" {
		t.Errorf("offsets mismatch (-want +got):\n%s", diff)
	}
}

func TestResolvePrevChain(t *testing.T) {
	b := newPDFBuilder()
	b.addObject(1, "<</Type /Catalog /Pages 2 0 R>>")
	b.addObject(2, "<</Count 0 /Kids [] /Type /Pages>>")
	baseOff := b.addXref([]int{1, 2}, "<</Root 1 0 R/Size 3>>")

	// Incremental update adding one object, chained via /Prev.
	b.addObject(3, "<</Producer (pdflin)>>")
	b.addXref([]int{3}, fmt.Sprintf("<</Prev %d/Root 1 0 R/Size 4>>", baseOff))

	resolver := NewResolver(ResolverConfig{})
	table, err := resolver.Resolve(context.Background(), bytes.NewReader(b.buf.Bytes()))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, table.Objects()); diff != "" {
		t.Errorf("merged objects mismatch (-want +got):\n%s", diff)
	}
	if n := len(resolver.Incremental()); n != 2 {
		t.Errorf("sections = %d, want 2", n)
	}
}

func TestResolveLinearizedLayout(t *testing.T) {
	var buf bytes.Buffer
	offsets := make(map[int]int64)
	buf.WriteString("%PDF-1.4\n")

	offsets[1] = int64(buf.Len())
	buf.WriteString("1 0 obj\n<</Linearized 1/L 0000000000>>\nendobj\n")

	fpOff := int64(buf.Len())
	buf.WriteString("xref\n0 2\n")
	buf.WriteString("0000000000 65535 f \n")
	fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[1])
	buf.WriteString("trailer\n<</Root 2 0 R/Size 2>>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", fpOff)

	offsets[2] = int64(buf.Len())
	buf.WriteString("2 0 obj\n<</Pages 3 0 R/Type /Catalog>>\nendobj\n")

	mainOff := int64(buf.Len())
	buf.WriteString("xref\n0 3\n")
	buf.WriteString("0000000000 65535 f \n")
	fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[1])
	fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[2])
	buf.WriteString("trailer\n<</Root 2 0 R/Size 3>>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", mainOff)

	resolver := NewResolver(ResolverConfig{})
	table, err := resolver.Resolve(context.Background(), bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !resolver.Linearized() {
		t.Error("linearized file not detected")
	}
	if n := len(resolver.Incremental()); n != 2 {
		t.Errorf("sections = %d, want main and first-page tables", n)
	}
	got := make(map[int]int64)
	for _, num := range table.Objects() {
		off, _, _ := table.Lookup(num)
		got[num] = off
	}
	if diff := cmp.Diff(offsets, got); diff != "" {
		t.Errorf("merged offsets mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveMissingStartxref(t *testing.T) {
	resolver := NewResolver(ResolverConfig{})
	_, err := resolver.Resolve(context.Background(), bytes.NewReader([]byte("%PDF-1.7\nnothing here")))
	if err == nil {
		t.Fatal("expected an error for a file without startxref")
	}
}
