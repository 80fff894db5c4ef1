// Package imaging renders preview thumbnails for uploaded product photos.
// Uploads are never rejected here: anything that does not decode as a JPEG
// or PNG simply has no thumbnail.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// ThumbnailSize bounds the width and height of a thumbnail.
const ThumbnailSize = 320

// JPEGQuality is the compression quality of thumbnails.
const JPEGQuality = 80

// MaxPixels bounds the decoded size of a source image. Decoders allocate
// the full pixel buffer from the header alone, so larger images get no
// thumbnail.
const MaxPixels = 40_000_000

// Thumbnail decodes data and returns a JPEG no larger than ThumbnailSize on
// either side. ok is false when data is not a decodable image or is larger
// than MaxPixels.
func Thumbnail(data []byte) (thumb []byte, ok bool, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, false, nil
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, false, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, nil
	}

	img = fit(img, ThumbnailSize)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, false, fmt.Errorf("encoding thumbnail: %w", err)
	}
	return buf.Bytes(), true, nil
}

// fit scales img down with Catmull-Rom so neither side exceeds maxDim,
// keeping the aspect ratio. Smaller images are returned as is.
func fit(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
