package nav

import (
	"testing"

	"github.com/FocuswithJustin/JuniperReader/core/corpus"
	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

func TestFragment(t *testing.T) {
	calc := newCalc(t)
	idx := calc.Resolver().Index()

	ps23, _ := idx.Lookup("Psalms", 23)
	if got, want := Fragment(ps23), "#/Psalms/23"; got != want {
		t.Errorf("Fragment() = %q, want %q", got, want)
	}

	spaced := corpus.At(testBook("Song of Solomon", "sg", 1), 0)
	if got, want := Fragment(spaced), "#/Song%20of%20Solomon/1"; got != want {
		t.Errorf("Fragment() = %q, want %q", got, want)
	}
}

func TestParseFragment(t *testing.T) {
	calc := newCalc(t)

	tests := []struct {
		fragment string
		want     string
	}{
		{"#/Psalms/23", "Psalms 23"},
		{"#/Psalms/24", "Psalms 23"},
		{"/psalms/24", "Psalms 23"},
		{"#/ps/1", "Psalms 1"},
		{"#/Psalms/999", "Psalms 1"},
		{"#/Psalms/x", "Psalms 1"},
		{"#/Genesis/3", "Genesis 3"},
	}

	for _, tt := range tests {
		t.Run(tt.fragment, func(t *testing.T) {
			got, err := ParseFragment(calc, tt.fragment)
			if err != nil {
				t.Fatalf("ParseFragment(%q) error = %v", tt.fragment, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseFragment(%q) = %v, want %v", tt.fragment, got, tt.want)
			}
		})
	}
}

func TestParseFragmentRoundTrip(t *testing.T) {
	calc := newCalc(t)
	for _, b := range calc.Resolver().Index().Books() {
		for i := 0; i < len(b.Chapters); i += 2 {
			c := corpus.At(b, i)
			got, err := ParseFragment(calc, Fragment(c))
			if err != nil {
				t.Fatal(err)
			}
			if got != c {
				t.Errorf("round trip of %v = %v", c, got)
			}
		}
	}
}

func TestParseFragmentInvalid(t *testing.T) {
	calc := newCalc(t)

	for _, f := range []string{"", "#/", "#/Psalms", "#/Psalms/1/2", "#/%zz/1"} {
		if _, err := ParseFragment(calc, f); err == nil {
			t.Errorf("ParseFragment(%q) expected error", f)
		}
	}

	if _, err := ParseFragment(calc, "#/Enoch/1"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("ParseFragment(unknown book) error = %v, want not found", err)
	}
}
