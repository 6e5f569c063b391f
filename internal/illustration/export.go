package illustration

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gosimple/slug"
	"github.com/h2non/filetype"

	"github.com/FocuswithJustin/JuniperReader/internal/validation"
)

// Export writes img into dir as <slug-of-key>.<ext> and returns the path.
func Export(dir string, img *Image) (string, error) {
	ext := "img"
	if kind, err := filetype.Match(img.Data); err == nil && kind != filetype.Unknown {
		ext = kind.Extension
	}

	name := slug.Make(img.Key)
	if name == "" {
		name = "illustration"
	}

	name += "." + ext
	if err := validation.ValidatePath(dir); err != nil {
		return "", fmt.Errorf("export directory: %w", err)
	}
	if err := validation.ValidateFilename(name); err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, img.Data, 0644); err != nil {
		return "", fmt.Errorf("write illustration: %w", err)
	}
	return path, nil
}
