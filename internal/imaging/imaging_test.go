package imaging

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"runtime"
	"testing"
)

func createTestJPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func createTestPNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{0, 0, 255, 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding thumbnail: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected jpeg thumbnail, got %s", format)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestThumbnailLandscape(t *testing.T) {
	thumb, ok, err := Thumbnail(createTestJPEG(1280, 640))
	if err != nil || !ok {
		t.Fatalf("Thumbnail: ok=%v err=%v", ok, err)
	}
	w, h := decodeSize(t, thumb)
	if w != ThumbnailSize || h != ThumbnailSize/2 {
		t.Errorf("expected %dx%d, got %dx%d", ThumbnailSize, ThumbnailSize/2, w, h)
	}
}

func TestThumbnailPNGPortrait(t *testing.T) {
	thumb, ok, err := Thumbnail(createTestPNG(400, 800))
	if err != nil || !ok {
		t.Fatalf("Thumbnail: ok=%v err=%v", ok, err)
	}
	w, h := decodeSize(t, thumb)
	if w != ThumbnailSize/2 || h != ThumbnailSize {
		t.Errorf("expected %dx%d, got %dx%d", ThumbnailSize/2, ThumbnailSize, w, h)
	}
}

func TestThumbnailSmallImageNotUpscaled(t *testing.T) {
	thumb, ok, _ := Thumbnail(createTestJPEG(50, 40))
	if !ok {
		t.Fatal("expected thumbnail")
	}
	w, h := decodeSize(t, thumb)
	if w != 50 || h != 40 {
		t.Errorf("small image should not be resized: got %dx%d", w, h)
	}
}

func TestThumbnailUndecodable(t *testing.T) {
	for _, data := range [][]byte{[]byte("not an image"), []byte("GIF89a..."), nil} {
		thumb, ok, err := Thumbnail(data)
		if err != nil {
			t.Errorf("expected no error for %q, got %v", data, err)
		}
		if ok || thumb != nil {
			t.Errorf("expected no thumbnail for %q", data)
		}
	}
}

// pngHeader returns a PNG made of the signature and a valid IHDR chunk
// claiming w x h pixels, with no image data.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 0, 17)
	chunk = append(chunk, "IHDR"...)
	chunk = binary.BigEndian.AppendUint32(chunk, w)
	chunk = binary.BigEndian.AppendUint32(chunk, h)
	chunk = append(chunk, 8, 6, 0, 0, 0) // 8-bit RGBA, no interlace

	binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestThumbnailOversizedHeader(t *testing.T) {
	data := pngHeader(20000, 20000)
	if cfg, err := png.DecodeConfig(bytes.NewReader(data)); err != nil || cfg.Width != 20000 {
		t.Fatalf("crafted header not readable: %+v, %v", cfg, err)
	}

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	thumb, ok, err := Thumbnail(data)
	runtime.ReadMemStats(&after)

	if err != nil || ok || thumb != nil {
		t.Errorf("expected no thumbnail, got ok=%v err=%v", ok, err)
	}
	if allocated := after.TotalAlloc - before.TotalAlloc; allocated > 16<<20 {
		t.Errorf("decoding a %d byte header allocated %d MiB", len(data), allocated>>20)
	}
}
