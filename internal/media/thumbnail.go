package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"golang.org/x/image/draw"
)

// ThumbnailContentType is the media type of every derived thumbnail.
const ThumbnailContentType = "image/webp"

// DefaultMaxPixels bounds the decoded size of a thumbnail source.
const DefaultMaxPixels = 50_000_000

// Thumbnailer renders cover-fit WebP thumbnails.
type Thumbnailer struct {
	Width   int
	Height  int
	Quality float32

	// MaxPixels caps width*height of the source; zero means DefaultMaxPixels.
	MaxPixels int64
}

// DefaultThumbnailer produces 300x300 thumbnails.
func DefaultThumbnailer() Thumbnailer {
	return Thumbnailer{Width: 300, Height: 300, Quality: 80, MaxPixels: DefaultMaxPixels}
}

// Make decodes src, scales it to cover the target box, crops the overflow
// around the center and encodes the result as WebP.
func (t Thumbnailer) Make(src []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	limit := t.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > limit {
		return nil, fmt.Errorf("%w: %dx%d source", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	crop := coverRect(img.Bounds(), t.Width, t.Height)
	if crop.Empty() {
		return nil, fmt.Errorf("image has no pixels")
	}

	dst := image.NewRGBA(image.Rect(0, 0, t.Width, t.Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, t.Quality)
	if err != nil {
		return nil, fmt.Errorf("webp options: %w", err)
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, dst, options); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

// coverRect returns the centered region of src whose aspect ratio matches
// w:h, so that scaling it to w x h fills the box without distortion.
func coverRect(src image.Rectangle, w, h int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if sw <= 0 || sh <= 0 || w <= 0 || h <= 0 {
		return image.Rectangle{}
	}
	cw, ch := sw, sh
	if sw*h > sh*w {
		// wider than the box: trim the sides
		cw = sh * w / h
	} else {
		ch = sw * h / w
	}
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}
	x0 := src.Min.X + (sw-cw)/2
	y0 := src.Min.Y + (sh-ch)/2
	return image.Rect(x0, y0, x0+cw, y0+ch)
}
