package narration

import (
	"fmt"
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"github.com/FocuswithJustin/JuniperReader/core/corpus"
)

// ChapterScript is the narration text for a chapter: a heading followed by
// the verses.
func ChapterScript(c corpus.Coordinate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Book of %s, chapter %d.", c.Book.Name, c.ChapterNumber())
	for _, v := range c.Chapter().Verses {
		b.WriteByte(' ')
		b.WriteString(strings.TrimSpace(v.Text))
	}
	return b.String()
}

var (
	tokenizerOnce sync.Once
	tokenizerMu   sync.Mutex
	tokenizer     *sentences.DefaultSentenceTokenizer
)

// Split breaks text into sentences. Without a usable tokenizer model the
// whole text is a single chunk.
func Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	tokenizerOnce.Do(func() {
		tokenizer, _ = english.NewSentenceTokenizer(nil)
	})
	if tokenizer == nil {
		return []string{text}
	}

	tokenizerMu.Lock()
	tokens := tokenizer.Tokenize(text)
	tokenizerMu.Unlock()

	chunks := make([]string, 0, len(tokens))
	for _, s := range tokens {
		if t := strings.TrimSpace(s.Text); t != "" {
			chunks = append(chunks, t)
		}
	}
	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}
