package ocr

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberNoise = strings.NewReplacer("¥", "", "$", "", "€", "", "£", "", ",", "", " ", "")
	firstInt    = regexp.MustCompile(`[-+]?\d+`)
)

// ParseNumber reads the first signed integer in OCR text such as "¥70,000"
// or "Population: 1,234".
func ParseNumber(text string) (int, bool) {
	m := firstInt.FindString(numberNoise.Replace(text))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
