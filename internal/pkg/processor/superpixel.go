package processor

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	slicSegments    = 100
	slicCompactness = 10.0
	slicIterations  = 10
)

var boundaryColor = colorful.Color{R: 1, G: 1, B: 0}

// superpixelSegmentation clusters the band into roughly slicSegments SLIC
// superpixels in CIELAB space and paints the cluster boundaries over the
// original pixels.
func superpixelSegmentation(block image.Image) image.Image {
	dst := imaging.Clone(block)
	labels := slic(dst, slicSegments, slicCompactness)

	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	r, g, b := boundaryColor.RGB255()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			l := labels[y*w+x]
			edge := (x+1 < w && labels[y*w+x+1] != l) || (y+1 < h && labels[(y+1)*w+x] != l)
			if !edge {
				continue
			}
			i := dst.PixOffset(x, y)
			dst.Pix[i+0] = r
			dst.Pix[i+1] = g
			dst.Pix[i+2] = b
		}
	}
	return dst
}

type slicCenter struct {
	l, a, b float64
	x, y    float64
}

// slic returns a label per pixel in row-major order.
func slic(img *image.NRGBA, segments int, compactness float64) []int {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	n := w * h

	lab := make([][3]float64, n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			c := colorful.Color{
				R: float64(img.Pix[i+0]) / 255.0,
				G: float64(img.Pix[i+1]) / 255.0,
				B: float64(img.Pix[i+2]) / 255.0,
			}
			l, a, b := c.Lab()
			// scale to the conventional 0-100 lightness range so compactness
			// has its usual meaning
			lab[y*w+x] = [3]float64{l * 100, a * 100, b * 100}
		}
	}

	step := int(math.Sqrt(float64(n) / float64(segments)))
	if step < 1 {
		step = 1
	}

	var centers []slicCenter
	for y := step / 2; y < h; y += step {
		for x := step / 2; x < w; x += step {
			p := lab[y*w+x]
			centers = append(centers, slicCenter{l: p[0], a: p[1], b: p[2], x: float64(x), y: float64(y)})
		}
	}
	if len(centers) == 0 {
		p := lab[(h/2)*w+w/2]
		centers = append(centers, slicCenter{l: p[0], a: p[1], b: p[2], x: float64(w / 2), y: float64(h / 2)})
	}

	labels := make([]int, n)
	dist := make([]float64, n)
	spatial := compactness / float64(step)

	for iter := 0; iter < slicIterations; iter++ {
		for i := range labels {
			labels[i] = -1
			dist[i] = math.Inf(1)
		}

		for k, c := range centers {
			cx, cy := int(c.x), int(c.y)
			for y := max(cy-2*step, 0); y < min(cy+2*step+1, h); y++ {
				for x := max(cx-2*step, 0); x < min(cx+2*step+1, w); x++ {
					p := lab[y*w+x]
					dl, da, db := p[0]-c.l, p[1]-c.a, p[2]-c.b
					dx, dy := float64(x)-c.x, float64(y)-c.y
					d := dl*dl + da*da + db*db + (dx*dx+dy*dy)*spatial*spatial
					if d < dist[y*w+x] {
						dist[y*w+x] = d
						labels[y*w+x] = k
					}
				}
			}
		}

		// pixels outside every search window join their left or upper neighbour
		for i := range labels {
			if labels[i] >= 0 {
				continue
			}
			switch {
			case i%w > 0:
				labels[i] = labels[i-1]
			case i >= w:
				labels[i] = labels[i-w]
			default:
				labels[i] = 0
			}
		}

		sums := make([]slicCenter, len(centers))
		counts := make([]int, len(centers))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				k := labels[y*w+x]
				p := lab[y*w+x]
				sums[k].l += p[0]
				sums[k].a += p[1]
				sums[k].b += p[2]
				sums[k].x += float64(x)
				sums[k].y += float64(y)
				counts[k]++
			}
		}
		for k := range centers {
			if counts[k] == 0 {
				continue
			}
			cnt := float64(counts[k])
			centers[k] = slicCenter{
				l: sums[k].l / cnt, a: sums[k].a / cnt, b: sums[k].b / cnt,
				x: sums[k].x / cnt, y: sums[k].y / cnt,
			}
		}
	}

	return labels
}
