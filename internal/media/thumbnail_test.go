package media

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// pngHeaderOnly builds a PNG that declares w x h pixels but carries no image data.
func pngHeaderOnly(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA

	chunk := append([]byte("IHDR"), ihdr...)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestThumbnailerMakesCoverFitWebP(t *testing.T) {
	out, err := DefaultThumbnailer().Make(encodePNG(t, 64, 32))
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "webp", format)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 300, cfg.Height)
}

func TestThumbnailerRejectsOversizedSource(t *testing.T) {
	src := pngHeaderOnly(40000, 40000)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, 40000, cfg.Width)

	_, err = DefaultThumbnailer().Make(src)
	assert.ErrorIs(t, err, ErrTooLarge)

	small := Thumbnailer{Width: 10, Height: 10, Quality: 80, MaxPixels: 100}
	_, err = small.Make(encodePNG(t, 20, 20))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestThumbnailerRejectsGarbage(t *testing.T) {
	_, err := DefaultThumbnailer().Make([]byte("not an image"))
	assert.Error(t, err)
}

func TestCoverRect(t *testing.T) {
	assert.Equal(t, image.Rect(25, 0, 75, 50), coverRect(image.Rect(0, 0, 100, 50), 10, 10))
	assert.Equal(t, image.Rect(0, 25, 50, 75), coverRect(image.Rect(0, 0, 50, 100), 10, 10))
	assert.True(t, coverRect(image.Rect(0, 0, 0, 10), 10, 10).Empty())
}
