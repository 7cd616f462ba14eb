package vision

import (
	"errors"
	"fmt"
	"image"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var ErrTemplateUnreadable = errors.New("template image unreadable")

// LoadTemplate decodes a png, jpeg, gif, bmp or webp reference image.
func LoadTemplate(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateUnreadable, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateUnreadable, path, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: %s is empty", ErrTemplateUnreadable, path)
	}
	return img, nil
}
