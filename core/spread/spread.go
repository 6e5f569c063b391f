// Package spread pairs chapters into two-page spreads.
//
// The left page of a spread is any chapter; the right page is always the
// chapter that follows it in reading order and is never stored on its own.
// Alignment works on a book's local chapter parity: a chapter at an odd
// position within its book belongs on a right page.
package spread

import (
	"github.com/FocuswithJustin/JuniperReader/core/corpus"
	"github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/core/ref"
)

// Spread is a pair of facing pages. Right is nil only at the end of the
// corpus.
type Spread struct {
	Left  corpus.Coordinate
	Right *corpus.Coordinate
}

// Calculator derives spreads from a resolver's adjacency rule.
type Calculator struct {
	resolver *ref.Resolver
}

// NewCalculator creates a calculator.
func NewCalculator(r *ref.Resolver) *Calculator {
	return &Calculator{resolver: r}
}

// Resolver returns the resolver the calculator steps with.
func (c *Calculator) Resolver() *ref.Resolver {
	return c.resolver
}

// Compute builds the spread whose left page is left. Only the end of the
// corpus is absorbed (Right stays nil); other errors propagate.
func (c *Calculator) Compute(left corpus.Coordinate) (Spread, error) {
	right, err := c.resolver.Adjacent(left, ref.Next)
	if err != nil {
		if errors.Is(err, errors.ErrEndOfCorpus) {
			return Spread{Left: left}, nil
		}
		return Spread{}, err
	}
	return Spread{Left: left, Right: &right}, nil
}

// Align moves a coordinate at an odd in-book position back one chapter so
// that it lands on a left page. Align is idempotent.
func (c *Calculator) Align(coord corpus.Coordinate) (corpus.Coordinate, error) {
	if coord.ChapterIndex%2 == 0 {
		return coord, nil
	}
	return c.resolver.Adjacent(coord, ref.Prev)
}

// Advance returns the left page of the spread one turn away from s.
// Next lands after the right page and fails with errors.ErrEndOfCorpus
// when there is none; Prev steps back two chapters from the left page.
func (c *Calculator) Advance(s Spread, dir ref.Direction) (corpus.Coordinate, error) {
	switch dir {
	case ref.Next:
		if s.Right == nil {
			return corpus.Coordinate{}, errors.NewBoundary(errors.End, s.Left.Book.Name, s.Left.ChapterNumber())
		}
		return c.resolver.Adjacent(*s.Right, ref.Next)
	case ref.Prev:
		back, err := c.resolver.Adjacent(s.Left, ref.Prev)
		if err != nil {
			return corpus.Coordinate{}, err
		}
		return c.resolver.Adjacent(back, ref.Prev)
	}
	return corpus.Coordinate{}, errors.NewValidation("direction", "no direction given")
}
