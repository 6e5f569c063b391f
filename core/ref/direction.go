package ref

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

// Direction is a relative navigation request.
type Direction int

const (
	// None is the zero direction, used when no transition is active.
	None Direction = iota
	// Next moves forward in reading order.
	Next
	// Prev moves backward in reading order.
	Prev
)

func (d Direction) String() string {
	switch d {
	case Next:
		return "next"
	case Prev:
		return "prev"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ParseDirection parses "next" or "prev" (also "previous", any case).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "next":
		return Next, nil
	case "prev", "previous":
		return Prev, nil
	}
	return None, &errors.ValidationError{
		Field:   "direction",
		Value:   s,
		Message: fmt.Sprintf("unknown direction %q (want next or prev)", s),
	}
}
