// Package codec converts between encoded image bytes and in-memory images,
// and serialises tasks and results for the message-broker transports.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/bandpool/internal/entity"
)

// Decode parses any supported container (JPEG, PNG, GIF, TIFF, BMP) into a
// three-channel *image.NRGBA anchored at the origin. Grayscale input is
// expanded, matching a colour-mode read.
func Decode(data []byte) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, &entity.DecodeError{Err: fmt.Errorf("empty input")}
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &entity.DecodeError{Err: err}
	}
	return imaging.Clone(img), nil
}

// Encode writes img in the named format ("png", "jpeg"/"jpg", "gif", "tiff",
// "bmp").
func Encode(img image.Image, format string, jpegQuality int) ([]byte, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	var opts []imaging.EncodeOption
	if f == imaging.JPEG && jpegQuality > 0 {
		opts = append(opts, imaging.JPEGQuality(jpegQuality))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f, opts...); err != nil {
		return nil, fmt.Errorf("failed to encode %s image: %w", format, err)
	}
	return buf.Bytes(), nil
}

func ParseFormat(format string) (imaging.Format, error) {
	f, err := imaging.FormatFromExtension(strings.ToLower(format))
	if err != nil {
		return -1, fmt.Errorf("%w: %q", entity.ErrUnsupportedFormat, format)
	}
	return f, nil
}

// MimeType returns the content type for a format name.
func MimeType(format string) string {
	f, err := ParseFormat(format)
	if err != nil {
		return "application/octet-stream"
	}
	switch f {
	case imaging.JPEG:
		return "image/jpeg"
	case imaging.PNG:
		return "image/png"
	case imaging.GIF:
		return "image/gif"
	case imaging.TIFF:
		return "image/tiff"
	case imaging.BMP:
		return "image/bmp"
	}
	return "application/octet-stream"
}
