package corpus

import (
	"fmt"
	"strconv"
)

// Verse is a single numbered verse.
type Verse struct {
	// Number is the verse number (1-indexed). Numbering within a chapter is
	// not guaranteed to be contiguous.
	Number int `json:"verse"`

	// Text is the verse text.
	Text string `json:"text"`
}

// Chapter is a numbered chapter holding verses in appearance order.
type Chapter struct {
	// Number is the chapter number (1-indexed). It is NOT the chapter's
	// position in Book.Chapters; embedded corpora may be sparse.
	Number int `json:"chapter"`

	// Verses are ordered by appearance.
	Verses []Verse `json:"verses"`
}

// Book is a named book. Books are immutable once an Index is built.
type Book struct {
	// Name is the display name (e.g., "Genesis").
	Name string `json:"name"`

	// Abbrev is the short lookup key (e.g., "gn").
	Abbrev string `json:"abbrev"`

	// Chapters are stored in reading order.
	Chapters []Chapter `json:"chapters"`
}

// ChapterIndex returns the sequence position of the chapter with the given
// number, or -1 if the book has no such chapter.
func (b *Book) ChapterIndex(number int) int {
	for i := range b.Chapters {
		if b.Chapters[i].Number == number {
			return i
		}
	}
	return -1
}

// LastIndex returns the sequence position of the book's final chapter.
func (b *Book) LastIndex() int {
	return len(b.Chapters) - 1
}

// Coordinate addresses a chapter by book and sequence position.
// ChapterIndex indexes Book.Chapters; it is not a chapter number.
// Coordinates are comparable with ==.
type Coordinate struct {
	Book         *Book
	ChapterIndex int
}

// At builds a coordinate.
func At(book *Book, chapterIndex int) Coordinate {
	return Coordinate{Book: book, ChapterIndex: chapterIndex}
}

// Valid reports whether the coordinate points at an existing chapter.
func (c Coordinate) Valid() bool {
	return c.Book != nil && c.ChapterIndex >= 0 && c.ChapterIndex < len(c.Book.Chapters)
}

// Chapter returns the addressed chapter. It panics on an invalid coordinate.
func (c Coordinate) Chapter() *Chapter {
	return &c.Book.Chapters[c.ChapterIndex]
}

// ChapterNumber returns the number of the addressed chapter.
func (c Coordinate) ChapterNumber() int {
	return c.Chapter().Number
}

// Key returns the "{book}-{chapterNumber}" key used for per-chapter caches.
func (c Coordinate) Key() string {
	return ChapterKey(c.Book.Name, c.ChapterNumber())
}

// String returns "Book N".
func (c Coordinate) String() string {
	if !c.Valid() {
		return "<invalid>"
	}
	return fmt.Sprintf("%s %d", c.Book.Name, c.ChapterNumber())
}

// ChapterKey formats the per-chapter key.
func ChapterKey(book string, chapterNumber int) string {
	return book + "-" + strconv.Itoa(chapterNumber)
}
