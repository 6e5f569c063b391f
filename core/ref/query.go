package ref

import (
	"strconv"

	"github.com/alecthomas/participle/v2/lexer"
)

// queryLexer splits a folded search query. Word covers every run of
// characters that is not a digit, a colon or whitespace, so lexing a
// query never fails.
var queryLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Word", Pattern: `[^\s0-9:]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var (
	tokInt        = queryLexer.Symbols()["Int"]
	tokColon      = queryLexer.Symbols()["Colon"]
	tokWhitespace = queryLexer.Symbols()["Whitespace"]
)

// query is a trimmed, case-folded search string and its tokens
// (without the trailing EOF).
type query struct {
	text   string
	tokens []lexer.Token
}

func tokenize(text string) (query, error) {
	lex, err := queryLexer.LexString("", text)
	if err != nil {
		return query{}, err
	}
	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return query{}, err
	}
	if n := len(tokens); n > 0 && tokens[n-1].EOF() {
		tokens = tokens[:n-1]
	}
	return query{text: text, tokens: tokens}, nil
}

// versePattern matches "<integer> <text>": a leading verse number, then
// whitespace, then at least one more token.
func (q query) versePattern() (verse int, text string, ok bool) {
	t := q.tokens
	if len(t) < 3 || t[0].Type != tokInt || t[1].Type != tokWhitespace {
		return 0, "", false
	}
	n, err := strconv.Atoi(t[0].Value)
	if err != nil {
		return 0, "", false
	}
	return n, q.text[t[2].Pos.Offset:], true
}

// referencePattern matches "<book-phrase> <integer>[:<integer>]". The
// optional verse is ignored.
func (q query) referencePattern() (book string, chapter int, ok bool) {
	t := q.tokens
	n := len(t)
	if n >= 5 && t[n-2].Type == tokColon && t[n-1].Type == tokInt {
		t = t[:n-2]
		n -= 2
	}
	if n < 3 || t[n-1].Type != tokInt || t[n-2].Type != tokWhitespace {
		return "", 0, false
	}
	chapter, err := strconv.Atoi(t[n-1].Value)
	if err != nil {
		return "", 0, false
	}
	return q.text[:t[n-2].Pos.Offset], chapter, true
}
