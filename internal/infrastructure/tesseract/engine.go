//go:build ocr

package tesseract

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine recognizes text with a fresh gosseract client per call,
// since a client holds per-image state and is not safe for concurrent use
type TesseractEngine struct {
	language string
}

// NewEngine returns an engine for the given language(s), e.g. "eng" or "eng+hin"
func NewEngine(language string) (*TesseractEngine, error) {
	if language == "" {
		language = "eng"
	}
	return &TesseractEngine{language: language}, nil
}

// Recognize performs OCR on image data (PNG, TIFF, JPEG, etc.)
func (e *TesseractEngine) Recognize(image []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(strings.Split(e.language, "+")...); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return "", fmt.Errorf("failed to set page segmentation: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}

	return text, nil
}
