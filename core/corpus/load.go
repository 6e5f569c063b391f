package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

var xzMagic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

// Load decodes a JSON corpus, decompressing it first when the stream is
// xz-compressed.
func Load(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)
	src := io.Reader(br)

	head, _ := br.Peek(len(xzMagic))
	if bytes.Equal(head, xzMagic) {
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, &errors.ParseError{Format: "JSON", Message: "invalid xz stream", Err: err}
		}
		src = xr
	}

	var books []*Book
	if err := json.NewDecoder(src).Decode(&books); err != nil {
		return nil, &errors.ParseError{Format: "JSON", Message: "invalid corpus", Err: err}
	}
	return NewIndex(books)
}

// LoadFile loads a corpus from disk. The format follows the extension:
// .xml and .osis are OSIS, anything else is (optionally xz-compressed) JSON.
func LoadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open corpus %s", path)
	}
	defer f.Close()

	var idx *Index
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".osis":
		idx, err = LoadOSIS(f)
	default:
		idx, err = Load(f)
	}
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = path
		}
		return nil, err
	}
	return idx, nil
}
