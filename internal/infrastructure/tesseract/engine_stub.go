//go:build !ocr

package tesseract

import "errors"

// ErrOCRNotEnabled is returned when the binary was built without the "ocr" tag
var ErrOCRNotEnabled = errors.New("tesseract support not enabled; rebuild with -tags ocr")

// TesseractEngine is unavailable in this build
type TesseractEngine struct{}

// NewEngine always fails without the "ocr" build tag
func NewEngine(language string) (*TesseractEngine, error) {
	return nil, ErrOCRNotEnabled
}

// Recognize always fails without the "ocr" build tag
func (e *TesseractEngine) Recognize(image []byte) (string, error) {
	return "", ErrOCRNotEnabled
}
