package extract

import (
	"fmt"
	"os"

	"github.com/lu4p/cat"
)

// extractWithCat extracts text from ODT and RTF content via lu4p/cat. The
// library works on file paths, so content is staged in a temp file.
func extractWithCat(content []byte, ext string) (string, error) {
	tmp, err := os.CreateTemp("", "agora-extract-*"+ext)
	if err != nil {
		return "", fmt.Errorf("extract %s: temp file: %w", ext, err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(content); err != nil {
		return "", fmt.Errorf("extract %s: write temp: %w", ext, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("extract %s: close temp: %w", ext, err)
	}
	text, err := cat.File(tmp.Name())
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", ext, err)
	}
	return text, nil
}
