package processor

import (
	"image"

	"github.com/anthonynsimon/bild/segment"
)

// otsuThreshold binarises the band's luminance at the level that maximises
// the between-class variance of its histogram. Output values are 0 or 255.
func otsuThreshold(block image.Image) image.Image {
	gray := luminance(block)

	level := otsuLevel(histogram(gray))
	// segment.Threshold keeps values at or above its level, the Otsu split
	// keeps values strictly above.
	if level < 255 {
		level++
	}
	return segment.Threshold(gray, level)
}

func histogram(gray *image.Gray) [256]int {
	var hist [256]int
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	for y := 0; y < h; y++ {
		for _, v := range gray.Pix[y*gray.Stride : y*gray.Stride+w] {
			hist[v]++
		}
	}
	return hist
}

func otsuLevel(hist [256]int) uint8 {
	total := 0
	var sum float64
	for i, n := range hist {
		total += n
		sum += float64(i * n)
	}
	if total == 0 {
		return 0
	}

	var (
		sumBackground float64
		weightBack    int
		best          float64
		level         uint8
	)
	for t := 0; t < 256; t++ {
		weightBack += hist[t]
		if weightBack == 0 {
			continue
		}
		weightFore := total - weightBack
		if weightFore == 0 {
			break
		}
		sumBackground += float64(t * hist[t])

		meanBack := sumBackground / float64(weightBack)
		meanFore := (sum - sumBackground) / float64(weightFore)
		between := float64(weightBack) * float64(weightFore) * (meanBack - meanFore) * (meanBack - meanFore)
		if between > best {
			best = between
			level = uint8(t)
		}
	}
	return level
}
