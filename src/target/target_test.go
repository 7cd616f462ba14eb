package target

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "roads_icon.png")
	require.NoError(t, os.WriteFile(png, []byte("not decoded here"), 0600))
	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0600))

	tests := []struct {
		name  string
		raw   string
		kind  Kind
		x, y  float64
		units Units
	}{
		{name: "ExistingImage", raw: png, kind: KindImage},
		{name: "MissingImageIsText", raw: filepath.Join(dir, "missing.png"), kind: KindText},
		{name: "NonImageFileIsText", raw: txt, kind: KindText},
		{name: "RatioPair", raw: "0.3,0.4", kind: KindCoordinate, x: 0.3, y: 0.4, units: UnitsRatio},
		{name: "PixelPair", raw: "960, 540", kind: KindCoordinate, x: 960, y: 540, units: UnitsPixel},
		{name: "SingleNumber", raw: "120", kind: KindCoordinate, x: 120, units: UnitsPixel},
		{name: "SingleRatio", raw: "0.5", kind: KindCoordinate, x: 0.5, units: UnitsRatio},
		{name: "Negative", raw: "-10,20", kind: KindCoordinate, x: -10, y: 20, units: UnitsPixel},
		{name: "Word", raw: "确定", kind: KindText},
		{name: "ThreeNumbers", raw: "1,2,3", kind: KindText},
		{name: "Inf", raw: "Inf", kind: KindText},
		{name: "NaN", raw: "NaN", kind: KindText},
		{name: "TextWithComma", raw: "OK, go", kind: KindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.raw)
			require.Equal(t, tt.kind, got.Kind())
			if tt.kind == KindCoordinate {
				x, y := got.XY()
				assert.Equal(t, tt.x, x)
				assert.Equal(t, tt.y, y)
				assert.Equal(t, tt.units, got.Units())
			}
		})
	}
}

func TestRatioValidation(t *testing.T) {
	_, err := Ratio(0.5, 1.2)
	assert.True(t, errors.Is(err, ErrInvalidCoordinate))

	tgt, err := Ratio(1, 0)
	require.NoError(t, err)
	assert.Equal(t, UnitsRatio, tgt.Units())
}

func TestResolveHonoursMethodAndUnits(t *testing.T) {
	pixel := UnitsPixel

	tgt, err := Resolve("0,0", MethodCoord, &pixel)
	require.NoError(t, err)
	assert.Equal(t, UnitsPixel, tgt.Units())

	tgt, err = Resolve("0.5,0.5", MethodAuto, nil)
	require.NoError(t, err)
	assert.Equal(t, UnitsRatio, tgt.Units())

	tgt, err = Resolve("0.5,0.5", MethodText, nil)
	require.NoError(t, err)
	assert.Equal(t, KindText, tgt.Kind())

	tgt, err = Resolve("anything.png", MethodImage, nil)
	require.NoError(t, err)
	assert.Equal(t, KindImage, tgt.Kind())

	_, err = Resolve("abc", MethodCoord, nil)
	assert.True(t, errors.Is(err, ErrInvalidCoordinate))

	_, err = Resolve("abc", Method("ocr"), nil)
	assert.True(t, errors.Is(err, ErrUnknownMethod))
}

func TestParseMethod(t *testing.T) {
	for in, want := range map[string]Method{
		"":           MethodAuto,
		"AUTO":       MethodAuto,
		"text":       MethodText,
		"image":      MethodImage,
		"coord":      MethodCoord,
		"coordinate": MethodCoord,
	} {
		got, err := ParseMethod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMethod("pixels")
	assert.Error(t, err)
}

func TestParseUnits(t *testing.T) {
	u, ok, err := ParseUnits("px")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, UnitsPixel, u)

	_, ok, err = ParseUnits("auto")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ParseUnits("inches")
	assert.Error(t, err)
}
