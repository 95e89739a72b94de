package photo

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"fleetguard/internal/inspection"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEGBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestDownscaleLandscape(t *testing.T) {
	data := encodePNG(t, testImage(400, 200))

	out, mime, err := Downscale(data, 100)
	if err != nil {
		t.Fatalf("downscale: %v", err)
	}
	if mime != "image/jpeg" {
		t.Fatalf("mime = %s", mime)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Fatalf("size = %dx%d, want 100x50", cfg.Width, cfg.Height)
	}
}

func TestDownscaleKeepsSmallJPEG(t *testing.T) {
	data := encodeJPEGBytes(t, testImage(60, 80))
	out, mime, err := Downscale(data, 100)
	if err != nil {
		t.Fatalf("downscale: %v", err)
	}
	if mime != "image/jpeg" || !bytes.Equal(out, data) {
		t.Fatal("small jpeg should pass through untouched")
	}
}

func TestFitWithinPortrait(t *testing.T) {
	w, h := fitWithin(600, 1200, 300)
	if w != 150 || h != 300 {
		t.Fatalf("got %dx%d", w, h)
	}
}

func TestFromUpload(t *testing.T) {
	data := encodePNG(t, testImage(10, 10))
	p, err := FromUpload(data, 0)
	if err != nil {
		t.Fatalf("from upload: %v", err)
	}
	if p.MIMEType != "image/png" || len(p.Data) != len(data) {
		t.Fatalf("unexpected photo %s/%d", p.MIMEType, len(p.Data))
	}

	if _, err := FromUpload([]byte("%PDF-1.4 not an image"), 0); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("pdf upload: %v", err)
	}
	if _, err := FromUpload(data, 8); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("oversized upload: %v", err)
	}
	if _, err := FromUpload(nil, 0); !errors.Is(err, inspection.ErrEmptyPhoto) {
		t.Fatalf("empty upload: %v", err)
	}
}
