// Package embedded carries the sample corpus compiled into the binary: a
// selection of King James Version chapters used when no corpus file is
// configured.
package embedded

import (
	"bytes"
	_ "embed"
	"sync"

	"github.com/FocuswithJustin/JuniperReader/core/corpus"
)

//go:embed corpus.json
var corpusJSON []byte

var (
	once  sync.Once
	index *corpus.Index
	err   error
)

// Corpus returns the embedded corpus index. It is built once.
func Corpus() (*corpus.Index, error) {
	once.Do(func() {
		index, err = corpus.Load(bytes.NewReader(corpusJSON))
	})
	return index, err
}

// Raw returns the embedded JSON document.
func Raw() []byte {
	return corpusJSON
}
