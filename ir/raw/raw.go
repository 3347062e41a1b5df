package raw

import (
	"errors"
	"fmt"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// FreeHead is the head of the cross-reference free list.
var FreeHead = ObjectRef{Num: 0, Gen: 65535}

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
	IsIndirect() bool
}

// Dictionary represents a PDF dictionary object.
type Dictionary interface {
	Object
	Get(key Name) (Object, bool)
	Set(key Name, value Object)
	Keys() []Name
	Len() int
}

// Array represents a PDF array object.
type Array interface {
	Object
	Get(index int) (Object, bool)
	Len() int
	Append(obj Object)
}

// Stream represents a raw (undecoded) PDF stream.
type Stream interface {
	Object
	Dictionary() Dictionary
	RawData() []byte
	Length() int64
}

// Name represents a PDF name object.
type Name interface {
	Object
	Value() string
}

// String represents a PDF string (literal or hex).
type String interface {
	Object
	Value() []byte
	IsHex() bool
}

// Number represents a PDF numeric value.
type Number interface {
	Object
	Int() int64
	Float() float64
	IsInteger() bool
}

// Boolean represents a PDF boolean.
type Boolean interface {
	Object
	Value() bool
}

// Null represents the PDF null object.
type Null interface{ Object }

// Reference represents an indirect object reference.
type Reference interface {
	Object
	Ref() ObjectRef
}

// ErrNoCatalog is returned when the trailer has no usable /Root.
var ErrNoCatalog = errors.New("raw: document catalog not found")

// Document is the root container for raw PDF objects. A writer takes
// exclusive use of the object table for the duration of a save.
type Document struct {
	Objects map[ObjectRef]Object
	Trailer *DictObj
	Version string // e.g., "1.7"
}

// NewDocument returns an empty document with an initialized object table.
func NewDocument() *Document {
	return &Document{
		Objects: make(map[ObjectRef]Object),
		Trailer: Dict(),
	}
}

// Insert adds obj to the object table under a fresh object number and
// returns its reference.
func (d *Document) Insert(obj Object) ObjectRef {
	if d.Objects == nil {
		d.Objects = make(map[ObjectRef]Object)
	}
	ref := ObjectRef{Num: d.MaxObjectNumber() + 1, Gen: 0}
	d.Objects[ref] = obj
	return ref
}

// MaxObjectNumber returns the highest object number currently in use.
func (d *Document) MaxObjectNumber() int {
	max := 0
	for ref := range d.Objects {
		if ref.Num > max {
			max = ref.Num
		}
	}
	return max
}

// ResolveStatus reports the outcome of a Document.Resolve call.
type ResolveStatus int

const (
	Resolved ResolveStatus = iota
	Missing
	ForeignGeneration
)

// Resolve looks up ref in the object table. A reference whose number is
// live under a different generation names an object from another document
// revision; Resolve reports that distinctly from a missing number.
func (d *Document) Resolve(ref ObjectRef) (Object, ResolveStatus) {
	if obj, ok := d.Objects[ref]; ok {
		return obj, Resolved
	}
	for other := range d.Objects {
		if other.Num == ref.Num {
			return nil, ForeignGeneration
		}
	}
	return nil, Missing
}

// Catalog returns the document catalog named by the trailer's /Root.
func (d *Document) Catalog() (ObjectRef, *DictObj, error) {
	if d.Trailer == nil {
		return ObjectRef{}, nil, ErrNoCatalog
	}
	rootObj, ok := d.Trailer.Get(NameLiteral("Root"))
	if !ok {
		return ObjectRef{}, nil, ErrNoCatalog
	}
	rootRef, ok := rootObj.(RefObj)
	if !ok {
		return ObjectRef{}, nil, ErrNoCatalog
	}
	obj, status := d.Resolve(rootRef.Ref())
	if status != Resolved {
		return ObjectRef{}, nil, ErrNoCatalog
	}
	dict, ok := obj.(*DictObj)
	if !ok {
		return ObjectRef{}, nil, ErrNoCatalog
	}
	return rootRef.Ref(), dict, nil
}

// Info returns the trailer's /Info reference, if present.
func (d *Document) Info() (ObjectRef, bool) {
	if d.Trailer == nil {
		return ObjectRef{}, false
	}
	obj, ok := d.Trailer.Get(NameLiteral("Info"))
	if !ok {
		return ObjectRef{}, false
	}
	ref, ok := obj.(RefObj)
	if !ok {
		return ObjectRef{}, false
	}
	return ref.Ref(), true
}

// Pages returns the page objects in document order by walking the page
// tree from the catalog's /Pages entry. Tolerates reference cycles.
func (d *Document) Pages() ([]ObjectRef, error) {
	_, catalog, err := d.Catalog()
	if err != nil {
		return nil, err
	}
	pagesObj, ok := catalog.Get(NameLiteral("Pages"))
	if !ok {
		return nil, fmt.Errorf("raw: catalog has no /Pages")
	}
	pagesRef, ok := pagesObj.(RefObj)
	if !ok {
		return nil, fmt.Errorf("raw: catalog /Pages is not a reference")
	}

	var list []ObjectRef
	visited := make(map[ObjectRef]bool)
	var visit func(ref ObjectRef) error
	visit = func(ref ObjectRef) error {
		if visited[ref] {
			return nil
		}
		visited[ref] = true
		obj, status := d.Resolve(ref)
		if status != Resolved {
			return fmt.Errorf("raw: page tree node %s unresolved", ref)
		}
		dict, ok := obj.(*DictObj)
		if !ok {
			return nil
		}
		typ, ok := dict.Get(NameLiteral("Type"))
		if !ok {
			return nil
		}
		name, ok := typ.(NameObj)
		if !ok {
			return nil
		}
		switch name.Value() {
		case "Page":
			list = append(list, ref)
		case "Pages":
			kids, ok := dict.Get(NameLiteral("Kids"))
			if !ok {
				return nil
			}
			arr, ok := kids.(*ArrayObj)
			if !ok {
				return nil
			}
			for _, item := range arr.Items {
				if kRef, ok := item.(RefObj); ok {
					if err := visit(kRef.Ref()); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}
	if err := visit(pagesRef.Ref()); err != nil {
		return nil, err
	}
	return list, nil
}
