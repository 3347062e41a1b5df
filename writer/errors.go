package writer

import "errors"

// All write failures are fatal: either the save produces a complete file
// or the caller discards the partial output.
var (
	// ErrEmptyDocument reports a document with zero pages.
	ErrEmptyDocument = errors.New("writer: document has no pages")

	// ErrDanglingReference reports a reachable reference whose target is
	// not present in the indirect-object table.
	ErrDanglingReference = errors.New("writer: dangling object reference")

	// ErrCrossDocumentReference reports a reference into another document
	// revision found on the catalog/page-tree path.
	ErrCrossDocumentReference = errors.New("writer: reference into another document")

	// ErrLayoutDrift reports that an object's emitted size disagrees with
	// the size pass. The output is inconsistent and must be discarded.
	ErrLayoutDrift = errors.New("writer: serialized size changed between layout and emission")

	// ErrFormatOverflow reports an offset or length that exceeds the
	// 10-decimal-digit budget of the fixed-width fields.
	ErrFormatOverflow = errors.New("writer: offset exceeds fixed-width field")

	// ErrSink wraps a byte-sink I/O failure.
	ErrSink = errors.New("writer: sink error")

	// ErrCanceled reports that the caller canceled the write.
	ErrCanceled = errors.New("writer: canceled")
)
