package processor

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOperationShapes checks every built-in operation against its declared
// output shape.
func TestOperationShapes(t *testing.T) {
	p := NewImageProcessor()

	tests := []struct {
		name         string
		operation    string
		wantChannels int
	}{
		{name: "edge detection collapses to one channel", operation: EdgeDetection, wantChannels: 1},
		{name: "color inversion keeps channels", operation: ColorInversion, wantChannels: 3},
		{name: "gaussian blur keeps channels", operation: GaussianBlur, wantChannels: 3},
		{name: "otsu threshold collapses to one channel", operation: OtsuThreshold, wantChannels: 1},
		{name: "superpixel segmentation keeps channels", operation: SuperpixelSegmentation, wantChannels: 3},
		{name: "identity keeps channels", operation: Identity, wantChannels: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := noiseImage(40, 30, 7)

			result := p.Apply(original, tt.operation)

			require.NotNil(t, result)
			assert.Equal(t, 40, result.Bounds().Dx())
			assert.Equal(t, 30, result.Bounds().Dy())
			assert.Equal(t, tt.wantChannels, channelsOf(result))
		})
	}
}

func TestUnknownOperationIsIdentity(t *testing.T) {
	p := NewImageProcessor()
	original := noiseImage(25, 17, 3)

	op, ok := p.Lookup("sepia_dreams")
	assert.False(t, ok)
	assert.Equal(t, Identity, op.Name)

	result := p.Apply(original, "sepia_dreams")

	require.Equal(t, original.Bounds().Size(), result.Bounds().Size())
	assertSamePixels(t, original, result)
}

func TestIdentityIsExplicitlyRegistered(t *testing.T) {
	p := NewImageProcessor()

	op, ok := p.Lookup(Identity)

	assert.True(t, ok)
	assert.Equal(t, PreserveChannels, op.Channels)
}

func TestColorInversionIsInvolution(t *testing.T) {
	p := NewImageProcessor()
	original := noiseImage(32, 21, 11)

	twice := p.Apply(p.Apply(original, ColorInversion), ColorInversion)

	assertSamePixels(t, original, twice)
}

func TestColorInversionOfBlackIsWhite(t *testing.T) {
	p := NewImageProcessor()
	original := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	fillImageWithColor(original, color.NRGBA{A: 255})

	result := p.Apply(original, ColorInversion)

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			r, g, b, _ := result.At(x, y).RGBA()
			assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b})
		}
	}
}

func TestEdgeDetectionOnZeroImage(t *testing.T) {
	p := NewImageProcessor()
	original := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	fillImageWithColor(original, color.NRGBA{A: 255})

	result := p.Apply(original, EdgeDetection)

	gray, ok := result.(*image.Gray)
	require.True(t, ok, "edge mask must be single channel, got %T", result)
	assert.Equal(t, 100, gray.Bounds().Dx())
	assert.Equal(t, 100, gray.Bounds().Dy())
	for _, v := range gray.Pix {
		if v != 0 {
			t.Fatalf("expected all-zero mask, found %d", v)
		}
	}
}

func TestEdgeDetectionFindsBoundary(t *testing.T) {
	p := NewImageProcessor()
	original := image.NewNRGBA(image.Rect(0, 0, 60, 60))
	fillImageWithColor(original, color.NRGBA{A: 255})
	for y := 0; y < 60; y++ {
		for x := 30; x < 60; x++ {
			original.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	gray := p.Apply(original, EdgeDetection).(*image.Gray)

	edges := 0
	for y := 0; y < 60; y++ {
		for x := 0; x < 60; x++ {
			v := gray.GrayAt(x, y).Y
			assert.Contains(t, []uint8{0, 255}, v)
			if v == 255 {
				edges++
				assert.InDelta(t, 29.5, float64(x), 3, "edge pixel far from the step at column %d", x)
			}
		}
	}
	assert.Greater(t, edges, 0)
}

func TestEdgeDetectionOnUniformImage(t *testing.T) {
	p := NewImageProcessor()
	original := solidImage(16, 8, color.NRGBA{R: 10, G: 10, B: 10, A: 255})

	gray := p.Apply(original, EdgeDetection).(*image.Gray)

	for _, v := range gray.Pix {
		require.Zero(t, v)
	}
}

func TestEdgeDetectionStepHasNoStripes(t *testing.T) {
	p := NewImageProcessor()
	original := solidImage(16, 8, color.NRGBA{A: 255})
	for y := 0; y < 8; y++ {
		for x := 8; x < 16; x++ {
			original.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	gray := p.Apply(original, EdgeDetection).(*image.Gray)

	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			if gray.GrayAt(x, y).Y != 0 {
				assert.InDelta(t, 7.5, float64(x), 2, "edge at column %d", x)
			}
		}
	}
}

func TestLuminanceIsOneBytePerPixel(t *testing.T) {
	src := image.NewNRGBA(image.Rect(3, 5, 7, 7))
	fillImageWithColor(src, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	src.SetNRGBA(6, 6, color.NRGBA{R: 200, G: 200, B: 200, A: 255})

	gray := luminance(src)

	require.Equal(t, image.Rect(0, 0, 4, 2), gray.Bounds())
	assert.Equal(t, uint8(10), gray.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(10), gray.GrayAt(2, 1).Y)
	assert.Equal(t, uint8(200), gray.GrayAt(3, 1).Y)
}

func TestOtsuThresholdIsBinary(t *testing.T) {
	p := NewImageProcessor()

	tests := []struct {
		name  string
		image image.Image
	}{
		{name: "noise", image: noiseImage(50, 40, 5)},
		{name: "all zero", image: solidImage(20, 20, color.NRGBA{A: 255})},
		{name: "two tones", image: twoToneImage(30, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.Apply(tt.image, OtsuThreshold)

			gray, ok := result.(*image.Gray)
			require.True(t, ok, "otsu output must be single channel, got %T", result)
			assert.Equal(t, tt.image.Bounds().Size(), gray.Bounds().Size())
			for _, v := range gray.Pix {
				if v != 0 && v != 255 {
					t.Fatalf("non-binary value %d", v)
				}
			}
		})
	}
}

func TestOtsuThresholdSeparatesTwoTones(t *testing.T) {
	p := NewImageProcessor()

	gray := p.Apply(twoToneImage(30, 30), OtsuThreshold).(*image.Gray)

	assert.Equal(t, uint8(0), gray.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), gray.GrayAt(29, 29).Y)
}

func TestOtsuLevel(t *testing.T) {
	var hist [256]int
	hist[20] = 100
	hist[200] = 100

	level := otsuLevel(hist)

	assert.GreaterOrEqual(t, level, uint8(20))
	assert.Less(t, level, uint8(200))
}

func TestGaussianBlurOfZeroImageStaysZero(t *testing.T) {
	p := NewImageProcessor()
	original := solidImage(100, 100, color.NRGBA{A: 255})

	result := p.Apply(original, GaussianBlur)

	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			r, g, b, _ := result.At(x, y).RGBA()
			if r != 0 || g != 0 || b != 0 {
				t.Fatalf("pixel (%d,%d) is not zero", x, y)
			}
		}
	}
}

func TestSuperpixelSegmentationDrawsBoundaries(t *testing.T) {
	p := NewImageProcessor()
	original := twoToneImage(60, 60)

	result := p.Apply(original, SuperpixelSegmentation)

	yellow := 0
	for y := 0; y < 60; y++ {
		for x := 0; x < 60; x++ {
			r, g, b, _ := result.At(x, y).RGBA()
			if r == 0xffff && g == 0xffff && b == 0 {
				yellow++
			}
		}
	}
	assert.Greater(t, yellow, 0)
	assert.Less(t, yellow, 60*60)
}

// TestEmptyBand covers the zero-height bands produced when an image has
// fewer rows than the pool has members.
func TestEmptyBand(t *testing.T) {
	p := NewImageProcessor()
	empty := image.NewNRGBA(image.Rect(0, 0, 12, 0))

	for _, info := range p.Operations() {
		t.Run(info.Name, func(t *testing.T) {
			result := p.Apply(empty, info.Name)

			require.NotNil(t, result)
			assert.Equal(t, 0, result.Bounds().Dy())
			assert.Equal(t, 12, result.Bounds().Dx())
			if info.Channels == "1" {
				assert.Equal(t, 1, channelsOf(result))
			}
		})
	}
}

func TestRegisterOverridesOperation(t *testing.T) {
	p := NewImageProcessor()
	calls := 0
	p.Register(Operation{
		Name:     "count",
		Channels: PreserveChannels,
		Transform: func(block image.Image) image.Image {
			calls++
			return block
		},
	})

	p.Apply(noiseImage(4, 4, 1), "count")

	assert.Equal(t, 1, calls)
	names := make([]string, 0)
	for _, info := range p.Operations() {
		names = append(names, info.Name)
	}
	assert.Contains(t, names, "count")
	assert.IsIncreasing(t, names)
}

// fillImageWithColor заполняет изображение одним цветом
func fillImageWithColor(img *image.NRGBA, c color.NRGBA) {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	fillImageWithColor(img, c)
	return img
}

func noiseImage(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = uint8(rng.Intn(256))
		img.Pix[i+1] = uint8(rng.Intn(256))
		img.Pix[i+2] = uint8(rng.Intn(256))
		img.Pix[i+3] = 255
	}
	return img
}

// twoToneImage is dark on the upper-left triangle and bright elsewhere.
func twoToneImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x+y < w {
				img.SetNRGBA(x, y, color.NRGBA{R: 20, G: 20, B: 20, A: 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{R: 230, G: 230, B: 230, A: 255})
			}
		}
	}
	return img
}

func channelsOf(img image.Image) int {
	if _, ok := img.(*image.Gray); ok {
		return 1
	}
	return 3
}

func assertSamePixels(t *testing.T, want, got image.Image) {
	t.Helper()
	wb, gb := want.Bounds(), got.Bounds()
	require.Equal(t, wb.Size(), gb.Size())
	for y := 0; y < wb.Dy(); y++ {
		for x := 0; x < wb.Dx(); x++ {
			r1, g1, b1, a1 := want.At(wb.Min.X+x, wb.Min.Y+y).RGBA()
			r2, g2, b2, a2 := got.At(gb.Min.X+x, gb.Min.Y+y).RGBA()
			if r1 != r2 || g1 != g2 || b1 != b2 || a1 != a2 {
				t.Fatalf("pixel (%d,%d) differs: %v vs %v", x, y, [4]uint32{r1, g1, b1, a1}, [4]uint32{r2, g2, b2, a2})
			}
		}
	}
}
