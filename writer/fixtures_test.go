package writer

import (
	"github.com/wudi/pdflin/ir/raw"
)

const helloContent = "BT /F1 12 Tf 100 700 Td (Hi) Tj ET"

// buildDoc assembles an n-page document: catalog, pages-tree root, one
// content stream per page, and either a single font shared by every page
// or a private font per page. The trailer carries a fixed /ID so repeated
// saves are comparable byte for byte.
func buildDoc(pageCount int, sharedFont bool) *raw.Document {
	doc := raw.NewDocument()
	doc.Version = "1.4"

	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalogRef := doc.Insert(catalog)

	pagesDict := raw.Dict()
	pagesDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pagesRef := doc.Insert(pagesDict)
	catalog.Set(raw.NameLiteral("Pages"), raw.Ref(pagesRef.Num, pagesRef.Gen))

	var fontRef raw.ObjectRef
	if sharedFont {
		fontRef = doc.Insert(helvetica())
	}

	kids := raw.NewArray()
	for i := 0; i < pageCount; i++ {
		f := fontRef
		if !sharedFont {
			f = doc.Insert(helvetica())
		}
		contentRef := doc.Insert(raw.NewStream(raw.Dict(), []byte(helloContent)))

		pageDict := raw.Dict()
		pageDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
		pageDict.Set(raw.NameLiteral("Parent"), raw.Ref(pagesRef.Num, pagesRef.Gen))
		pageDict.Set(raw.NameLiteral("MediaBox"), raw.NewArray(
			raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(612), raw.NumberInt(792)))
		res := raw.Dict()
		fonts := raw.Dict()
		fonts.Set(raw.NameLiteral("F1"), raw.Ref(f.Num, f.Gen))
		res.Set(raw.NameLiteral("Font"), fonts)
		pageDict.Set(raw.NameLiteral("Resources"), res)
		pageDict.Set(raw.NameLiteral("Contents"), raw.Ref(contentRef.Num, contentRef.Gen))
		pageRef := doc.Insert(pageDict)
		kids.Append(raw.Ref(pageRef.Num, pageRef.Gen))
	}
	pagesDict.Set(raw.NameLiteral("Kids"), kids)
	pagesDict.Set(raw.NameLiteral("Count"), raw.NumberInt(int64(pageCount)))

	doc.Trailer.Set(raw.NameLiteral("Root"), raw.Ref(catalogRef.Num, catalogRef.Gen))
	doc.Trailer.Set(raw.NameLiteral("ID"), raw.NewArray(
		raw.HexStr([]byte("0123456789abcdef")),
		raw.HexStr([]byte("0123456789abcdef")),
	))
	return doc
}

func helvetica() *raw.DictObj {
	font := raw.Dict()
	font.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	font.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type1"))
	font.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral("Helvetica"))
	return font
}

// emptyDoc has a catalog and pages root but no pages.
func emptyDoc() *raw.Document {
	doc := raw.NewDocument()
	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalogRef := doc.Insert(catalog)
	pagesDict := raw.Dict()
	pagesDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pagesDict.Set(raw.NameLiteral("Kids"), raw.NewArray())
	pagesDict.Set(raw.NameLiteral("Count"), raw.NumberInt(0))
	pagesRef := doc.Insert(pagesDict)
	catalog.Set(raw.NameLiteral("Pages"), raw.Ref(pagesRef.Num, pagesRef.Gen))
	doc.Trailer.Set(raw.NameLiteral("Root"), raw.Ref(catalogRef.Num, catalogRef.Gen))
	return doc
}
