package api

import (
	"github.com/FocuswithJustin/JuniperReader/core/corpus"
	"github.com/FocuswithJustin/JuniperReader/core/nav"
	"github.com/FocuswithJustin/JuniperReader/core/spread"
	"github.com/FocuswithJustin/JuniperReader/internal/annotations"
)

// VerseView is one verse with its note, if any.
type VerseView struct {
	Number int    `json:"verse"`
	Text   string `json:"text"`
	Key    string `json:"key"`
	Note   string `json:"note,omitempty"`
}

// PageView is one chapter on one side of a spread.
type PageView struct {
	Book     string      `json:"book"`
	Chapter  int         `json:"chapter"`
	Key      string      `json:"key"`
	Fragment string      `json:"fragment"`
	Verses   []VerseView `json:"verses"`
}

// SpreadView is the JSON form of the reader state.
type SpreadView struct {
	Left          PageView  `json:"left"`
	Right         *PageView `json:"right,omitempty"`
	Previous      *PageView `json:"previous,omitempty"`
	Transitioning bool      `json:"transitioning"`
	Direction     string    `json:"direction"`
	Searching     bool      `json:"searching"`
	Notice        string    `json:"notice,omitempty"`
}

func pageView(c corpus.Coordinate, notes *annotations.Store) PageView {
	ch := c.Chapter()
	p := PageView{
		Book:     c.Book.Name,
		Chapter:  ch.Number,
		Key:      c.Key(),
		Fragment: nav.Fragment(c),
		Verses:   make([]VerseView, 0, len(ch.Verses)),
	}
	var chapterNotes map[int]string
	if notes != nil {
		chapterNotes = notes.ForChapter(c.Book.Name, ch.Number)
	}
	for _, v := range ch.Verses {
		p.Verses = append(p.Verses, VerseView{
			Number: v.Number,
			Text:   v.Text,
			Key:    annotations.Key(c.Book.Name, ch.Number, v.Number),
			Note:   chapterNotes[v.Number],
		})
	}
	return p
}

func spreadPages(s spread.Spread, notes *annotations.Store) (PageView, *PageView) {
	left := pageView(s.Left, notes)
	if s.Right == nil {
		return left, nil
	}
	right := pageView(*s.Right, notes)
	return left, &right
}

// NewSpreadView renders snap with the notes for every visible verse.
func NewSpreadView(snap nav.Snapshot, notes *annotations.Store) SpreadView {
	v := SpreadView{
		Transitioning: snap.Transitioning,
		Direction:     snap.Direction.String(),
		Searching:     snap.Searching,
	}
	v.Left, v.Right = spreadPages(snap.Spread, notes)
	if snap.PreviousSpread != nil {
		prev := pageView(snap.PreviousSpread.Left, notes)
		v.Previous = &prev
	}
	if snap.Notice != nil {
		v.Notice = UserMessage(snap.Notice)
	}
	return v
}

// BookView lists a book and its chapter numbers.
type BookView struct {
	Name     string `json:"name"`
	Abbrev   string `json:"abbrev"`
	Chapters []int  `json:"chapters"`
}

func bookViews(idx *corpus.Index) []BookView {
	books := idx.Books()
	out := make([]BookView, 0, len(books))
	for _, b := range books {
		bv := BookView{Name: b.Name, Abbrev: b.Abbrev, Chapters: make([]int, 0, len(b.Chapters))}
		for _, ch := range b.Chapters {
			bv.Chapters = append(bv.Chapters, ch.Number)
		}
		out = append(out, bv)
	}
	return out
}
