package nav

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/JuniperReader/core/corpus"
	"github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/core/spread"
)

// Fragment encodes c as a shareable location fragment "#/<book>/<chapter>".
func Fragment(c corpus.Coordinate) string {
	return fmt.Sprintf("#/%s/%d", url.PathEscape(c.Book.Name), c.ChapterNumber())
}

// ParseFragment decodes a fragment produced by Fragment. The book is
// resolved by name or abbreviation; an unknown chapter number falls back to
// the book's first chapter. The result is aligned to a left page.
func ParseFragment(calc *spread.Calculator, fragment string) (corpus.Coordinate, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(fragment, "#"), "/")
	parts := strings.Split(raw, "/")
	if len(parts) != 2 || parts[0] == "" {
		return corpus.Coordinate{}, &errors.ValidationError{Field: "fragment", Value: fragment, Message: "want #/<book>/<chapter>"}
	}

	name, err := url.PathUnescape(parts[0])
	if err != nil {
		return corpus.Coordinate{}, &errors.ValidationError{Field: "fragment", Value: fragment, Message: "bad book encoding", Err: err}
	}

	book, err := calc.Resolver().Index().Book(name)
	if err != nil {
		return corpus.Coordinate{}, err
	}

	idx := 0
	if number, err := strconv.Atoi(parts[1]); err == nil {
		if i := book.ChapterIndex(number); i >= 0 {
			idx = i
		}
	}
	return calc.Align(corpus.At(book, idx))
}
