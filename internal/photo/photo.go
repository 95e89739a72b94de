package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"time"

	"github.com/evanoberholster/imagemeta"
	"golang.org/x/image/draw"

	"fleetguard/internal/inspection"
)

var (
	ErrUnsupportedType = errors.New("unsupported photo type")
	ErrTooLarge        = errors.New("photo too large")
)

const jpegQuality = 85

var acceptedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// FromUpload validates an uploaded image and attaches whatever EXIF metadata it carries.
func FromUpload(data []byte, maxBytes int) (inspection.Photo, error) {
	if len(data) == 0 {
		return inspection.Photo{}, inspection.ErrEmptyPhoto
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return inspection.Photo{}, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(data), maxBytes)
	}
	mime := http.DetectContentType(data)
	if !acceptedTypes[mime] {
		return inspection.Photo{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
	}

	p := inspection.Photo{Data: data, MIMEType: mime}
	if meta, err := ReadMeta(data); err == nil {
		p.CapturedAt = meta.CapturedAt
		p.Latitude = meta.Latitude
		p.Longitude = meta.Longitude
	}
	return p, nil
}

type Meta struct {
	CapturedAt *time.Time
	Latitude   *float64
	Longitude  *float64
}

// ReadMeta extracts capture time and GPS position. Priority for the time: DateTimeOriginal, CreateDate, ModifyDate.
func ReadMeta(data []byte) (Meta, error) {
	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return Meta{}, fmt.Errorf("decode exif: %w", err)
	}

	var meta Meta
	for _, ts := range []time.Time{exifData.DateTimeOriginal(), exifData.CreateDate(), exifData.ModifyDate()} {
		if !ts.IsZero() {
			t := ts
			meta.CapturedAt = &t
			break
		}
	}
	gps := exifData.GPS
	if lat, lon := gps.Latitude(), gps.Longitude(); lat != 0 || lon != 0 {
		meta.Latitude = &lat
		meta.Longitude = &lon
	}
	return meta, nil
}

// Downscale fits the image within maxDimension on its longer side and re-encodes it as JPEG.
// JPEGs already within bounds are returned unchanged.
func Downscale(data []byte, maxDimension int) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if maxDimension <= 0 || (width <= maxDimension && height <= maxDimension) {
		if format == "jpeg" {
			return data, "image/jpeg", nil
		}
		return encodeJPEG(img)
	}

	newWidth, newHeight := fitWithin(width, height, maxDimension)
	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return encodeJPEG(resized)
}

func encodeJPEG(img image.Image) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

func fitWithin(width, height, maxDimension int) (int, int) {
	if width >= height {
		h := height * maxDimension / width
		if h < 1 {
			h = 1
		}
		return maxDimension, h
	}
	w := width * maxDimension / height
	if w < 1 {
		w = 1
	}
	return w, maxDimension
}
