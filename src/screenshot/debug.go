package screenshot

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// DebugSaveEnvVar turns on saving of every captured region.
const DebugSaveEnvVar = "SCREEN_CONTROL_DEBUG_SAVE_IMAGES"

// DebugEnabled reports whether captures should be written to disk.
func DebugEnabled(debug bool) bool {
	return debug || os.Getenv(DebugSaveEnvVar) == "true"
}

// SaveDebug writes img into dir as debug_<tag>_<w>x<h>_<time>.png.
// Failures are logged and otherwise ignored.
func SaveDebug(img image.Image, dir, tag string, logger *zap.Logger) string {
	if img == nil {
		return ""
	}
	b := img.Bounds()
	name := fmt.Sprintf("debug_%s_%dx%d_%s.png", tag, b.Dx(), b.Dy(), time.Now().Format("150405.000"))
	path := filepath.Join(dir, name)
	if err := Save(img, path); err != nil {
		if logger != nil {
			logger.Warn("could not save debug image", zap.String("path", path), zap.Error(err))
		}
		return ""
	}
	if logger != nil {
		logger.Debug("saved captured region", zap.String("path", path))
	}
	return path
}
