// Package partition splits images into row bands and stitches transformed
// bands back together.
package partition

import (
	"fmt"
	"image"
	"image/draw"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/bandpool/internal/entity"
)

// Heights divides rows into n counts that differ by at most one, giving the
// remainder to the earliest bands.
func Heights(rows, n int) ([]int, error) {
	if n < 1 {
		return nil, entity.ErrInvalidPoolSize
	}
	if rows < 0 {
		rows = 0
	}
	base, extra := rows/n, rows%n
	heights := make([]int, n)
	for i := range heights {
		heights[i] = base
		if i < extra {
			heights[i]++
		}
	}
	return heights, nil
}

// Split cuts img into exactly n bands. Every band owns a private copy of its
// pixels, anchored at the origin. Bands of an image with fewer rows than n
// may be empty but still carry the source width.
func Split(img image.Image, n int) ([]entity.Band, error) {
	bounds := img.Bounds()
	heights, err := Heights(bounds.Dy(), n)
	if err != nil {
		return nil, err
	}

	bands := make([]entity.Band, n)
	offset := 0
	for i, h := range heights {
		var part image.Image
		if h == 0 || bounds.Dx() == 0 {
			part = image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), h))
		} else {
			rect := image.Rect(bounds.Min.X, bounds.Min.Y+offset, bounds.Max.X, bounds.Min.Y+offset+h)
			part = imaging.Crop(img, rect)
		}
		bands[i] = entity.Band{Index: i, Offset: offset, Image: part}
		offset += h
	}
	return bands, nil
}

// Reassemble stacks bands vertically in index order. The slice may arrive in
// any order; it must hold each index 0..len(bands)-1 exactly once and all
// non-empty bands must share one width.
func Reassemble(bands []entity.Band) (image.Image, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: no bands", entity.ErrBandMismatch)
	}

	ordered := make([]entity.Band, len(bands))
	copy(ordered, bands)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	width, height := -1, 0
	gray := true
	for i, b := range ordered {
		if b.Index != i {
			return nil, fmt.Errorf("%w: expected band %d, got %d", entity.ErrBandMismatch, i, b.Index)
		}
		height += b.Height()
		if b.Height() == 0 {
			continue
		}
		if width == -1 {
			width = b.Width()
		} else if b.Width() != width {
			return nil, fmt.Errorf("%w: band %d is %d wide, expected %d", entity.ErrBandMismatch, b.Index, b.Width(), width)
		}
		if entity.Channels(b.Image) != 1 {
			gray = false
		}
	}
	if width == -1 {
		// every band is empty; keep whatever width they report
		width = ordered[0].Width()
		gray = entity.Channels(ordered[0].Image) == 1 && ordered[0].Image != nil
	}

	rect := image.Rect(0, 0, width, height)
	var dst draw.Image
	if gray {
		dst = image.NewGray(rect)
	} else {
		dst = image.NewNRGBA(rect)
	}

	y := 0
	for _, b := range ordered {
		h := b.Height()
		if h == 0 {
			continue
		}
		src := b.Image
		draw.Draw(dst, image.Rect(0, y, width, y+h), src, src.Bounds().Min, draw.Src)
		y += h
	}
	return dst, nil
}
