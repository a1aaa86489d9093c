package service

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"path/filepath"
	"strings"

	// Registered decoders for uploaded image formats.
	_ "image/png"

	_ "golang.org/x/image/webp"

	"prok/internal/models"

	xdraw "golang.org/x/image/draw"
)

const (
	// PostImageMaxSize is the bounding box uploaded post images are scaled
	// down to fit.
	PostImageMaxSize = 1200
	// AvatarMaxSize is the bounding box for profile avatars.
	AvatarMaxSize = 400
	// JPEGQuality is the encoder quality for normalized images.
	JPEGQuality = 85
)

var videoExtensions = map[string]bool{
	"mp4":  true,
	"webm": true,
	"avi":  true,
	"mov":  true,
}

// mediaKind classifies an upload by its extension: "video" for known video
// containers, "image" for everything else on the allow-list.
func mediaKind(ext string) string {
	if videoExtensions[ext] {
		return "video"
	}
	return "image"
}

// fileExtension returns the lowercase extension of a filename without the dot.
func fileExtension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// normalizeImage decodes the upload, scales it down to fit within
// maxSize x maxSize preserving aspect ratio, and re-encodes it as JPEG.
// Images already inside the bounding box are still re-encoded so stored
// media has a uniform format.
func normalizeImage(data []byte, maxSize int) ([]byte, error) {
	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, models.NewValidationError("Unreadable image file")
	}

	resized := resizeToFit(decoded, maxSize, maxSize)

	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, resized, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}
