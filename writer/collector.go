package writer

import (
	"fmt"
	"sort"

	"github.com/wudi/pdflin/ir/raw"
)

// objectSets is the partition of the live object graph the linearized
// layout is built from. Every live object lands in exactly one of
// docLevel, firstPage, remaining, shared, or other.
type objectSets struct {
	pages     []raw.ObjectRef   // page dictionaries, document order
	docLevel  []raw.ObjectRef   // catalog, pages-tree root, info, outlines
	firstPage []raw.ObjectRef   // exclusive to page 0, discovery order
	remaining [][]raw.ObjectRef // remaining[p-1]: exclusive to page p
	shared    []raw.ObjectRef   // reachable from two or more page closures
	other     []raw.ObjectRef   // live but outside every page closure
	closures  [][]raw.ObjectRef // discovery-ordered closure per page
}

type collector struct {
	doc         *raw.Document
	docLevelSet map[raw.ObjectRef]bool
}

// collectObjectSets computes every page's transitive closure and applies
// the classification rules: the document-level seed set first, then page-0
// exclusives vs shared, then each later page in order.
func collectObjectSets(doc *raw.Document) (*objectSets, error) {
	c := &collector{doc: doc, docLevelSet: make(map[raw.ObjectRef]bool)}

	if doc.Trailer == nil {
		return nil, raw.ErrNoCatalog
	}
	rootObj, ok := doc.Trailer.Get(raw.NameLiteral("Root"))
	if !ok {
		return nil, raw.ErrNoCatalog
	}
	rootRef, ok := rootObj.(raw.RefObj)
	if !ok {
		return nil, raw.ErrNoCatalog
	}
	catObj, err := c.resolveRequired(rootRef.Ref())
	if err != nil {
		return nil, err
	}
	catalog, ok := catObj.(*raw.DictObj)
	if !ok {
		return nil, fmt.Errorf("writer: catalog %s is not a dictionary", rootRef.Ref())
	}
	pagesObj, ok := catalog.Get(raw.NameLiteral("Pages"))
	if !ok {
		return nil, fmt.Errorf("writer: catalog has no /Pages")
	}
	pagesRef, ok := pagesObj.(raw.RefObj)
	if !ok {
		return nil, fmt.Errorf("writer: catalog /Pages is not a reference")
	}
	if _, err := c.resolveRequired(pagesRef.Ref()); err != nil {
		return nil, err
	}

	pages, err := c.pageList(pagesRef.Ref())
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, ErrEmptyDocument
	}

	sets := &objectSets{pages: pages}
	sets.docLevel = append(sets.docLevel, rootRef.Ref(), pagesRef.Ref())
	if infoRef, ok := doc.Info(); ok {
		if _, status := doc.Resolve(infoRef); status == raw.Resolved {
			sets.docLevel = append(sets.docLevel, infoRef)
		}
	}
	if outObj, ok := catalog.Get(raw.NameLiteral("Outlines")); ok {
		if outRef, ok := outObj.(raw.RefObj); ok {
			if _, status := doc.Resolve(outRef.Ref()); status == raw.Resolved {
				sets.docLevel = append(sets.docLevel, outRef.Ref())
			}
		}
	}
	sets.docLevel = dedupeRefs(sets.docLevel)
	for _, ref := range sets.docLevel {
		c.docLevelSet[ref] = true
	}

	sets.closures = make([][]raw.ObjectRef, len(pages))
	for i, pg := range pages {
		closure, err := c.closure(pg)
		if err != nil {
			return nil, err
		}
		sets.closures[i] = closure
	}

	membership := make(map[raw.ObjectRef]int)
	for _, closure := range sets.closures {
		for _, ref := range closure {
			membership[ref]++
		}
	}

	classified := make(map[raw.ObjectRef]bool, len(doc.Objects))
	for _, ref := range sets.docLevel {
		classified[ref] = true
	}
	for _, ref := range sets.closures[0] {
		if classified[ref] {
			continue
		}
		classified[ref] = true
		if membership[ref] >= 2 {
			sets.shared = append(sets.shared, ref)
		} else {
			sets.firstPage = append(sets.firstPage, ref)
		}
	}
	sets.remaining = make([][]raw.ObjectRef, len(pages)-1)
	for p := 1; p < len(pages); p++ {
		for _, ref := range sets.closures[p] {
			if classified[ref] {
				continue
			}
			classified[ref] = true
			if membership[ref] >= 2 {
				sets.shared = append(sets.shared, ref)
			} else {
				sets.remaining[p-1] = append(sets.remaining[p-1], ref)
			}
		}
	}

	// Live objects outside every page closure (outline items, named
	// destinations, unreferenced leftovers) are carried after the shared
	// section so the main table still covers the whole document.
	for ref := range doc.Objects {
		if !classified[ref] {
			sets.other = append(sets.other, ref)
		}
	}
	sort.Slice(sets.other, func(i, j int) bool {
		if sets.other[i].Num != sets.other[j].Num {
			return sets.other[i].Num < sets.other[j].Num
		}
		return sets.other[i].Gen < sets.other[j].Gen
	})

	return sets, nil
}

// resolveRequired resolves a reference on the catalog/page-tree path,
// where an unresolvable target is a hard error rather than a skip.
func (c *collector) resolveRequired(ref raw.ObjectRef) (raw.Object, error) {
	obj, status := c.doc.Resolve(ref)
	switch status {
	case raw.Missing:
		return nil, fmt.Errorf("%w: %s", ErrDanglingReference, ref)
	case raw.ForeignGeneration:
		return nil, fmt.Errorf("%w: %s", ErrCrossDocumentReference, ref)
	}
	return obj, nil
}

// pageList walks the page tree collecting leaf pages in document order.
func (c *collector) pageList(root raw.ObjectRef) ([]raw.ObjectRef, error) {
	var list []raw.ObjectRef
	visited := make(map[raw.ObjectRef]bool)
	var visit func(ref raw.ObjectRef) error
	visit = func(ref raw.ObjectRef) error {
		if visited[ref] {
			return nil
		}
		visited[ref] = true
		obj, err := c.resolveRequired(ref)
		if err != nil {
			return err
		}
		dict, ok := obj.(*raw.DictObj)
		if !ok {
			return nil
		}
		typ, ok := dict.Get(raw.NameLiteral("Type"))
		if !ok {
			return nil
		}
		name, ok := typ.(raw.NameObj)
		if !ok {
			return nil
		}
		switch name.Value() {
		case "Page":
			list = append(list, ref)
		case "Pages":
			kids, ok := dict.Get(raw.NameLiteral("Kids"))
			if !ok {
				return nil
			}
			arr, ok := kids.(*raw.ArrayObj)
			if !ok {
				return nil
			}
			for _, item := range arr.Items {
				if kRef, ok := item.(raw.RefObj); ok {
					if err := visit(kRef.Ref()); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}
	if err := visit(root); err != nil {
		return nil, err
	}
	return list, nil
}

// closure expands the object graph from a page dictionary as an iterative
// DFS, recording objects in discovery order. Document-level objects are
// recorded when reached but not expanded, and page-tree parent links are
// not followed, so one page's closure does not leak into its siblings.
// References with object number zero and references into another document
// revision are skipped; a missing target is a dangling-reference error.
func (c *collector) closure(start raw.ObjectRef) ([]raw.ObjectRef, error) {
	var order []raw.ObjectRef
	visited := make(map[raw.ObjectRef]bool)
	stack := []raw.ObjectRef{start}
	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if ref.Num == 0 || visited[ref] {
			continue
		}
		obj, status := c.doc.Resolve(ref)
		switch status {
		case raw.ForeignGeneration:
			continue
		case raw.Missing:
			return nil, fmt.Errorf("%w: %s", ErrDanglingReference, ref)
		}
		visited[ref] = true
		order = append(order, ref)
		if c.docLevelSet[ref] && ref != start {
			continue
		}
		children := extractRefs(obj)
		for i := len(children) - 1; i >= 0; i-- {
			if !visited[children[i]] {
				stack = append(stack, children[i])
			}
		}
	}
	return order, nil
}

// extractRefs lists the references contained in obj in deterministic
// order: sorted dictionary keys (the serializer's order), then array
// element order. Stream data is opaque.
func extractRefs(obj raw.Object) []raw.ObjectRef {
	var refs []raw.ObjectRef
	switch v := obj.(type) {
	case raw.RefObj:
		refs = append(refs, v.Ref())
	case *raw.ArrayObj:
		for _, item := range v.Items {
			refs = append(refs, extractRefs(item)...)
		}
	case *raw.DictObj:
		skipParent := isPageTreeNode(v)
		for _, k := range v.SortedKeys() {
			if skipParent && k == "Parent" {
				continue
			}
			refs = append(refs, extractRefs(v.KV[k])...)
		}
	case *raw.StreamObj:
		refs = append(refs, extractRefs(v.Dict)...)
	}
	return refs
}

func isPageTreeNode(d *raw.DictObj) bool {
	typ, ok := d.Get(raw.NameLiteral("Type"))
	if !ok {
		return false
	}
	name, ok := typ.(raw.NameObj)
	if !ok {
		return false
	}
	return name.Value() == "Page" || name.Value() == "Pages"
}

func dedupeRefs(refs []raw.ObjectRef) []raw.ObjectRef {
	seen := make(map[raw.ObjectRef]bool, len(refs))
	out := refs[:0]
	for _, ref := range refs {
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	return out
}
