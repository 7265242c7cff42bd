package processor

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/effect"
)

// Canny hysteresis thresholds on the 0-255 intensity scale.
const (
	cannyLow  = 100
	cannyHigh = 200
)

// edgeDetection produces a single-channel mask with edges at 255 and
// everything else at 0.
//
// The steps follow Canny: luminance, 5x5 Gaussian smoothing, Sobel gradients,
// non-maximum suppression along the gradient direction and hysteresis between
// cannyLow and cannyHigh. Borders replicate the outermost pixels, so a band
// never reads rows it does not own.
func edgeDetection(block image.Image) image.Image {
	gray := luminance(block)
	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()

	lum := make([][]float64, height)
	for y := 0; y < height; y++ {
		lum[y] = make([]float64, width)
		row := gray.Pix[y*gray.Stride : y*gray.Stride+width]
		for x, v := range row {
			lum[y][x] = float64(v) / 255.0
		}
	}

	blurred := smooth5x5(lum, width, height)

	magnitude := make([][]float64, height)
	direction := make([][]float64, height)
	for y := 0; y < height; y++ {
		magnitude[y] = make([]float64, width)
		direction[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					v := blurred[clamp(y+ky, 0, height-1)][clamp(x+kx, 0, width-1)]
					gx += v * sobelX[ky+1][kx+1]
					gy += v * sobelY[ky+1][kx+1]
				}
			}
			magnitude[y][x] = math.Sqrt(gx*gx + gy*gy)
			direction[y][x] = math.Atan2(gy, gx)
		}
	}

	suppressed := make([][]float64, height)
	for y := 0; y < height; y++ {
		suppressed[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			mag := magnitude[y][x]
			if mag == 0 {
				continue
			}
			n1, n2 := neighbours(magnitude, direction[y][x], x, y, width, height)
			if mag >= n1 && mag >= n2 {
				suppressed[y][x] = mag
			}
		}
	}

	result := image.NewGray(image.Rect(0, 0, width, height))
	low := float64(cannyLow) / 255.0
	high := float64(cannyHigh) / 255.0

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			val := suppressed[y][x]
			if val >= high {
				result.Pix[y*result.Stride+x] = 255
				continue
			}
			if val < low {
				continue
			}
			strong := false
			for ky := -1; ky <= 1 && !strong; ky++ {
				for kx := -1; kx <= 1 && !strong; kx++ {
					if suppressed[clamp(y+ky, 0, height-1)][clamp(x+kx, 0, width-1)] >= high {
						strong = true
					}
				}
			}
			if strong {
				result.Pix[y*result.Stride+x] = 255
			}
		}
	}

	return result
}

var (
	sobelX = [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY = [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}
)

// neighbours returns the two magnitudes that sit on either side of (x, y)
// along the quantised gradient direction.
func neighbours(magnitude [][]float64, angle float64, x, y, width, height int) (float64, float64) {
	at := func(dx, dy int) float64 {
		return magnitude[clamp(y+dy, 0, height-1)][clamp(x+dx, 0, width-1)]
	}

	switch {
	case (angle >= -math.Pi/8 && angle < math.Pi/8) || angle >= 7*math.Pi/8 || angle < -7*math.Pi/8:
		return at(-1, 0), at(1, 0)
	case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
		return at(1, -1), at(-1, 1)
	case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
		return at(0, -1), at(0, 1)
	default:
		return at(-1, -1), at(1, 1)
	}
}

// smooth5x5 convolves with the 5x5 binomial approximation of a Gaussian
// (sigma about 1.4, kernel sum 273).
func smooth5x5(src [][]float64, width, height int) [][]float64 {
	kernel := [5][5]float64{
		{1, 4, 7, 4, 1},
		{4, 16, 26, 16, 4},
		{7, 26, 41, 26, 7},
		{4, 16, 26, 16, 4},
		{1, 4, 7, 4, 1},
	}
	const kernelSum = 273.0

	dst := make([][]float64, height)
	for y := 0; y < height; y++ {
		dst[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			var sum float64
			for ky := -2; ky <= 2; ky++ {
				for kx := -2; kx <= 2; kx++ {
					sum += src[clamp(y+ky, 0, height-1)][clamp(x+kx, 0, width-1)] * kernel[ky+2][kx+2]
				}
			}
			dst[y][x] = sum / kernelSum
		}
	}
	return dst
}

// luminance converts block to an 8-bit gray image at the origin.
// effect.Grayscale keeps four bytes per pixel with equal R, G and B, so the
// red byte carries the intensity.
func luminance(block image.Image) *image.Gray {
	rgba := effect.Grayscale(block)
	width, height := rgba.Bounds().Dx(), rgba.Bounds().Dy()

	gray := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gray.Pix[y*gray.Stride+x] = rgba.Pix[y*rgba.Stride+4*x]
		}
	}
	return gray
}

func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
