package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract"
)

// ErrEngineUnavailable means the OCR engine or its language data cannot be
// used on this machine.
var ErrEngineUnavailable = errors.New("ocr engine unavailable")

// Tesseract recognizes text with libtesseract through gosseract. A new
// client is created per call so the engine holds no state between captures.
type Tesseract struct{}

func (Tesseract) Recognize(img image.Image, langs []string) ([]Token, error) {
	client, err := newClient(img, langs)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to read word boxes: %w", err)
	}

	tokens := make([]Token, 0, len(boxes))
	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		if word == "" {
			continue
		}
		tokens = append(tokens, Token{Text: word, Box: b.Box})
	}
	return tokens, nil
}

func (Tesseract) Text(img image.Image, langs []string) (string, error) {
	client, err := newClient(img, langs)
	if err != nil {
		return "", err
	}
	defer client.Close()
	return client.Text()
}

// Check runs recognition on a blank image so a missing library or missing
// language data surfaces at startup rather than on the first locate.
func (t Tesseract) Check(langs []string) (string, error) {
	blank := image.NewGray(image.Rect(0, 0, 32, 16))
	draw.Draw(blank, blank.Bounds(), image.White, image.Point{}, draw.Src)
	if _, err := t.Text(blank, langs); err != nil {
		return "", fmt.Errorf("%w: tesseract with languages %s: %v", ErrEngineUnavailable, strings.Join(langs, "+"), err)
	}
	return gosseract.Version(), nil
}

func newClient(img image.Image, langs []string) (*gosseract.Client, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode capture: %w", err)
	}

	client := gosseract.NewClient()
	if len(langs) > 0 {
		if err := client.SetLanguage(langs...); err != nil {
			client.Close()
			return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to load capture into tesseract: %w", err)
	}
	return client, nil
}
