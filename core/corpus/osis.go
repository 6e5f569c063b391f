package corpus

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

// osisID is the participle grammar for chapter and verse identifiers.
// Examples: "Gen.1", "Gen.1.1", "1John.3.16"
//
//nolint:govet // participle grammar tags are not standard struct tags
type osisID struct {
	BookPrefix string `@Int?`
	BookName   string `@Ident`
	Chapter    int    `"." @Int`
	Verse      *int   `( "." @Int )?`
}

func (id *osisID) book() string {
	return id.BookPrefix + id.BookName
}

var osisLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z]+`},
	{Name: "Punct", Pattern: `\.`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var osisParser = participle.MustBuild[osisID](
	participle.Lexer(osisLexer),
	participle.Elide("Whitespace"),
)

var (
	osisBookXPath    = xpath.MustCompile(`//div[@type='book']`)
	osisChapterXPath = xpath.MustCompile(`.//chapter[@osisID]`)
	osisVerseXPath   = xpath.MustCompile(`.//verse[@osisID]`)
	osisTitleXPath   = xpath.MustCompile(`./title[@type='main' or @short]`)
)

func parseOSISID(s string) (*osisID, error) {
	// Multi-verse ids ("Gen.1.1 Gen.1.2") address the first verse.
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	id, err := osisParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("invalid osisID %q: %w", s, err)
	}
	return id, nil
}

// LoadOSIS imports an OSIS document whose books are <div type="book">
// elements holding <chapter> and <verse> containers.
func LoadOSIS(r io.Reader) (*Index, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, &errors.ParseError{Format: "OSIS", Message: "malformed XML", Err: err}
	}

	bookNodes := xmlquery.QuerySelectorAll(doc, osisBookXPath)
	if len(bookNodes) == 0 {
		return nil, errors.NewParse("OSIS", "", "no book divisions found")
	}

	books := make([]*Book, 0, len(bookNodes))
	for _, bn := range bookNodes {
		b, err := osisBook(bn)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return NewIndex(books)
}

func osisBook(bn *xmlquery.Node) (*Book, error) {
	id := bn.SelectAttr("osisID")
	b := &Book{Name: id, Abbrev: strings.ToLower(id)}
	if t := xmlquery.QuerySelector(bn, osisTitleXPath); t != nil {
		if short := t.SelectAttr("short"); short != "" {
			b.Name = short
		} else if text := strings.TrimSpace(t.InnerText()); text != "" {
			b.Name = text
		}
	}

	for _, cn := range xmlquery.QuerySelectorAll(bn, osisChapterXPath) {
		cid, err := parseOSISID(cn.SelectAttr("osisID"))
		if err != nil {
			return nil, errors.NewParse("OSIS", "", err.Error())
		}
		ch := Chapter{Number: cid.Chapter}
		for _, vn := range xmlquery.QuerySelectorAll(cn, osisVerseXPath) {
			vid, err := parseOSISID(vn.SelectAttr("osisID"))
			if err != nil {
				return nil, errors.NewParse("OSIS", "", err.Error())
			}
			if vid.Verse == nil {
				return nil, errors.NewParse("OSIS", "", fmt.Sprintf("verse %q has no verse number", vn.SelectAttr("osisID")))
			}
			ch.Verses = append(ch.Verses, Verse{
				Number: *vid.Verse,
				Text:   strings.Join(strings.Fields(vn.InnerText()), " "),
			})
		}
		b.Chapters = append(b.Chapters, ch)
	}
	return b, nil
}
