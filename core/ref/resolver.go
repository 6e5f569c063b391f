// Package ref resolves free-form queries and relative steps to corpus
// coordinates.
package ref

import (
	"strings"

	"github.com/FocuswithJustin/JuniperReader/core/corpus"
	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

// Keyword scores. Book-name hits always outrank verse hits.
const (
	bookNameScore   = 100
	verseScore      = 1
	verseStartBonus = 5
)

// Resolver maps queries and directions onto coordinates of one Index.
type Resolver struct {
	idx   *corpus.Index
	books []foldedBook
}

// foldedBook is the case-folded search text of one book.
type foldedBook struct {
	book   *corpus.Book
	name   string
	abbrev string
	verses [][]string // [chapter index][verse index]
}

// NewResolver creates a resolver over idx. Book names and verse text are
// folded once here; the index is immutable.
func NewResolver(idx *corpus.Index) *Resolver {
	books := make([]foldedBook, 0, idx.Len())
	for _, b := range idx.Books() {
		fb := foldedBook{
			book:   b,
			name:   corpus.Fold(b.Name),
			abbrev: corpus.Fold(b.Abbrev),
			verses: make([][]string, len(b.Chapters)),
		}
		for i, ch := range b.Chapters {
			fb.verses[i] = make([]string, len(ch.Verses))
			for j, v := range ch.Verses {
				fb.verses[i][j] = corpus.Fold(v.Text)
			}
		}
		books = append(books, fb)
	}
	return &Resolver{idx: idx, books: books}
}

// Index returns the underlying corpus index.
func (r *Resolver) Index() *corpus.Index {
	return r.idx
}

// Search resolves a free-form query. Rules are tried in order and the first
// one that yields a coordinate wins:
//
//  1. "<verse> <text>": first chapter holding that verse number whose text
//     contains <text>.
//  2. "<book> <chapter>[:<verse>]": book by name prefix or exact
//     abbreviation, chapter by number.
//  3. Keyword scoring over book names and verse text.
//
// A miss returns a *errors.NotFoundError echoing query.
func (r *Resolver) Search(query string) (corpus.Coordinate, error) {
	folded := corpus.Fold(strings.TrimSpace(query))
	if folded == "" {
		return corpus.Coordinate{}, errors.NewNotFound("reference", query)
	}

	q, err := tokenize(folded)
	if err != nil {
		return corpus.Coordinate{}, &errors.NotFoundError{Resource: "reference", Query: query, Err: err}
	}

	if verse, text, ok := q.versePattern(); ok {
		if c, found := r.findVerse(verse, text); found {
			return c, nil
		}
	}

	if book, chapter, ok := q.referencePattern(); ok {
		if c, found := r.findReference(book, chapter); found {
			return c, nil
		}
	}

	if c, found := r.bestKeyword(folded); found {
		return c, nil
	}

	return corpus.Coordinate{}, errors.NewNotFound("reference", query)
}

func (r *Resolver) findVerse(number int, text string) (corpus.Coordinate, bool) {
	for _, fb := range r.books {
		for i, ch := range fb.book.Chapters {
			for j, v := range ch.Verses {
				if v.Number == number && strings.Contains(fb.verses[i][j], text) {
					return corpus.At(fb.book, i), true
				}
			}
		}
	}
	return corpus.Coordinate{}, false
}

func (r *Resolver) findReference(phrase string, chapter int) (corpus.Coordinate, bool) {
	phrase = strings.TrimSpace(phrase)
	for _, fb := range r.books {
		if strings.HasPrefix(fb.name, phrase) || fb.abbrev == phrase {
			// Only the first matching book is considered.
			if i := fb.book.ChapterIndex(chapter); i >= 0 {
				return corpus.At(fb.book, i), true
			}
			return corpus.Coordinate{}, false
		}
	}
	return corpus.Coordinate{}, false
}

func (r *Resolver) bestKeyword(term string) (corpus.Coordinate, bool) {
	var (
		best      corpus.Coordinate
		bestScore int
	)
	consider := func(c corpus.Coordinate, score int) {
		if score > bestScore {
			best, bestScore = c, score
		}
	}

	for _, fb := range r.books {
		if strings.Contains(fb.name, term) || strings.Contains(fb.abbrev, term) {
			consider(corpus.At(fb.book, 0), bookNameScore)
		}
		for i, chapter := range fb.verses {
			for _, text := range chapter {
				if !strings.Contains(text, term) {
					continue
				}
				score := verseScore
				if strings.HasPrefix(text, term) {
					score += verseStartBonus
				}
				consider(corpus.At(fb.book, i), score)
			}
		}
	}
	return best, bestScore > 0
}

// Adjacent returns the chapter one step from c in reading order, crossing
// book boundaries. Stepping past either end of the corpus returns a
// *errors.BoundaryError.
func (r *Resolver) Adjacent(c corpus.Coordinate, dir Direction) (corpus.Coordinate, error) {
	pos := r.idx.Position(c.Book)
	if pos < 0 || !c.Valid() {
		return corpus.Coordinate{}, errors.NewNotFound("chapter", c.String())
	}

	switch dir {
	case Next:
		if c.ChapterIndex < c.Book.LastIndex() {
			return corpus.At(c.Book, c.ChapterIndex+1), nil
		}
		if next := r.idx.BookAt(pos + 1); next != nil {
			return corpus.At(next, 0), nil
		}
		return corpus.Coordinate{}, errors.NewBoundary(errors.End, c.Book.Name, c.ChapterNumber())
	case Prev:
		if c.ChapterIndex > 0 {
			return corpus.At(c.Book, c.ChapterIndex-1), nil
		}
		if prev := r.idx.BookAt(pos - 1); prev != nil {
			return corpus.At(prev, prev.LastIndex()), nil
		}
		return corpus.Coordinate{}, errors.NewBoundary(errors.Start, c.Book.Name, c.ChapterNumber())
	}
	return corpus.Coordinate{}, errors.NewValidation("direction", "no direction given")
}
