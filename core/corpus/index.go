// Package corpus holds the immutable book/chapter/verse hierarchy and the
// canonical reading order used by every navigation primitive.
package corpus

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

// Index is the canonical ordered corpus with name and abbreviation lookup.
// An Index is safe for concurrent reads.
type Index struct {
	books    []*Book
	byKey    map[string]*Book
	position map[*Book]int
}

// Fold returns the case-folded form of s used for all case-insensitive
// comparisons.
func Fold(s string) string {
	// A Caser carries state and is not safe for concurrent use.
	return cases.Fold().String(s)
}

// NewIndex validates books and builds lookup tables. The slice order defines
// the canonical reading sequence.
func NewIndex(books []*Book) (*Index, error) {
	if len(books) == 0 {
		return nil, errors.NewValidation("corpus", "corpus has no books")
	}

	idx := &Index{
		books:    make([]*Book, 0, len(books)),
		byKey:    make(map[string]*Book, len(books)*2),
		position: make(map[*Book]int, len(books)),
	}

	for i, b := range books {
		if err := validateBook(b); err != nil {
			return nil, err
		}

		name := Fold(b.Name)
		if _, dup := idx.byKey[name]; dup {
			return nil, errors.NewValidation("book", fmt.Sprintf("duplicate book identifier %q", b.Name))
		}
		idx.byKey[name] = b

		if b.Abbrev != "" {
			abbrev := Fold(b.Abbrev)
			if other, dup := idx.byKey[abbrev]; dup && other != b {
				return nil, errors.NewValidation("book", fmt.Sprintf("duplicate book identifier %q", b.Abbrev))
			}
			idx.byKey[abbrev] = b
		}

		idx.books = append(idx.books, b)
		idx.position[b] = i
	}

	return idx, nil
}

func validateBook(b *Book) error {
	if b == nil {
		return errors.NewValidation("book", "nil book")
	}
	if strings.TrimSpace(b.Name) == "" {
		return errors.NewValidation("book", "book has no name")
	}
	if len(b.Chapters) == 0 {
		return errors.NewValidation("book", fmt.Sprintf("%s has no chapters", b.Name))
	}
	for _, ch := range b.Chapters {
		if ch.Number < 1 {
			return errors.NewValidation("chapter", fmt.Sprintf("%s has chapter number %d", b.Name, ch.Number))
		}
		if len(ch.Verses) == 0 {
			return errors.NewValidation("chapter", fmt.Sprintf("%s %d has no verses", b.Name, ch.Number))
		}
		for _, v := range ch.Verses {
			if v.Number < 1 {
				return errors.NewValidation("verse", fmt.Sprintf("%s %d has verse number %d", b.Name, ch.Number, v.Number))
			}
		}
	}
	return nil
}

// Book returns the book whose name or abbreviation matches identifier,
// ignoring case.
func (idx *Index) Book(identifier string) (*Book, error) {
	if b, ok := idx.byKey[Fold(strings.TrimSpace(identifier))]; ok {
		return b, nil
	}
	return nil, errors.NewNotFound("book", identifier)
}

// Position returns the canonical position of b, or -1 if b does not belong
// to this index.
func (idx *Index) Position(b *Book) int {
	if p, ok := idx.position[b]; ok {
		return p
	}
	return -1
}

// BookAt returns the book at canonical position i, or nil when out of range.
func (idx *Index) BookAt(i int) *Book {
	if i < 0 || i >= len(idx.books) {
		return nil
	}
	return idx.books[i]
}

// Books returns the books in canonical order. The slice must not be modified.
func (idx *Index) Books() []*Book {
	return idx.books
}

// Len returns the number of books.
func (idx *Index) Len() int {
	return len(idx.books)
}

// First returns the first chapter of the first book.
func (idx *Index) First() Coordinate {
	return At(idx.books[0], 0)
}

// Last returns the last chapter of the last book.
func (idx *Index) Last() Coordinate {
	b := idx.books[len(idx.books)-1]
	return At(b, b.LastIndex())
}

// Lookup returns the coordinate of the chapter with the given number.
func (idx *Index) Lookup(book string, chapterNumber int) (Coordinate, error) {
	b, err := idx.Book(book)
	if err != nil {
		return Coordinate{}, err
	}
	i := b.ChapterIndex(chapterNumber)
	if i < 0 {
		return Coordinate{}, errors.NewNotFound("chapter", fmt.Sprintf("%s %d", b.Name, chapterNumber))
	}
	return At(b, i), nil
}

// Contains reports whether c addresses a chapter of this index.
func (idx *Index) Contains(c Coordinate) bool {
	return c.Valid() && idx.Position(c.Book) >= 0
}
