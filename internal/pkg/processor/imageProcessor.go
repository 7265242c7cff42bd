package processor

import (
	"image"
	"sort"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/bandpool/internal/entity"
	"github.com/sirupsen/logrus"
)

const (
	EdgeDetection          = "edge_detection"
	ColorInversion         = "color_inversion"
	GaussianBlur           = "gaussian_blur"
	OtsuThreshold          = "otsu_threshold"
	SuperpixelSegmentation = "superpixel_segmentation"
	Identity               = "identity"
)

// PreserveChannels marks an operation whose output keeps the input's channel
// count.
const PreserveChannels = 0

// Transform maps a band to a band with the same number of rows.
type Transform func(block image.Image) image.Image

// Operation is a named, shape-declared band transform. Channels is either
// PreserveChannels or the fixed number of channels the transform produces.
type Operation struct {
	Name      string
	Channels  int
	Transform Transform
}

// IdentityOperation is what every unrecognised operation name resolves to.
var IdentityOperation = Operation{
	Name:      Identity,
	Channels:  PreserveChannels,
	Transform: identity,
}

type ImageProcessor interface {
	// Apply runs the named operation on block. Unknown names fall back to
	// IdentityOperation.
	Apply(block image.Image, operation string) image.Image
	Lookup(operation string) (Operation, bool)
	Register(op Operation)
	Operations() []entity.OperationInfo
}

type imageProcessor struct {
	mu  sync.RWMutex
	ops map[string]Operation
}

// NewImageProcessor returns a registry preloaded with the built-in operations.
func NewImageProcessor() ImageProcessor {
	p := &imageProcessor{ops: make(map[string]Operation)}

	p.Register(IdentityOperation)
	p.Register(Operation{Name: EdgeDetection, Channels: 1, Transform: edgeDetection})
	p.Register(Operation{Name: ColorInversion, Channels: PreserveChannels, Transform: colorInversion})
	p.Register(Operation{Name: GaussianBlur, Channels: PreserveChannels, Transform: gaussianBlur})
	p.Register(Operation{Name: OtsuThreshold, Channels: 1, Transform: otsuThreshold})
	p.Register(Operation{Name: SuperpixelSegmentation, Channels: PreserveChannels, Transform: superpixelSegmentation})

	return p
}

func (p *imageProcessor) Register(op Operation) {
	p.mu.Lock()
	p.ops[op.Name] = op
	p.mu.Unlock()
}

// Lookup reports whether operation is registered; the returned Operation is
// IdentityOperation when it is not.
func (p *imageProcessor) Lookup(operation string) (Operation, bool) {
	p.mu.RLock()
	op, ok := p.ops[operation]
	p.mu.RUnlock()
	if !ok {
		return IdentityOperation, false
	}
	return op, true
}

func (p *imageProcessor) Apply(block image.Image, operation string) image.Image {
	op, ok := p.Lookup(operation)
	if !ok {
		logrus.WithField("operation", operation).Debug("Unknown operation, passing band through unchanged")
	}

	if block == nil || block.Bounds().Empty() {
		return emptyBand(block, op.Channels)
	}
	return op.Transform(block)
}

func (p *imageProcessor) Operations() []entity.OperationInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	infos := make([]entity.OperationInfo, 0, len(p.ops))
	for _, op := range p.ops {
		channels := "preserve"
		if op.Channels == 1 {
			channels = "1"
		}
		infos = append(infos, entity.OperationInfo{Name: op.Name, Channels: channels})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// emptyBand keeps the geometry of a zero-area band while honouring the
// operation's declared output shape.
func emptyBand(block image.Image, channels int) image.Image {
	var w, h int
	if block != nil {
		w, h = block.Bounds().Dx(), block.Bounds().Dy()
	}
	rect := image.Rect(0, 0, w, h)

	if channels == 1 {
		return image.NewGray(rect)
	}
	if block != nil && entity.Channels(block) == 1 {
		return image.NewGray(rect)
	}
	return image.NewNRGBA(rect)
}

func identity(block image.Image) image.Image {
	if gray, ok := block.(*image.Gray); ok {
		dst := image.NewGray(image.Rect(0, 0, gray.Bounds().Dx(), gray.Bounds().Dy()))
		for y := 0; y < dst.Rect.Dy(); y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+dst.Rect.Dx()], gray.Pix[gray.PixOffset(gray.Rect.Min.X, gray.Rect.Min.Y+y):])
		}
		return dst
	}
	return imaging.Clone(block)
}

func colorInversion(block image.Image) image.Image {
	if gray, ok := block.(*image.Gray); ok {
		dst := identity(gray).(*image.Gray)
		for i := range dst.Pix {
			dst.Pix[i] = 255 - dst.Pix[i]
		}
		return dst
	}
	return imaging.Invert(block)
}

// blurSigma matches a 15x15 kernel with automatically derived sigma.
const blurSigma = 2.6

func gaussianBlur(block image.Image) image.Image {
	return imaging.Blur(block, blurSigma)
}
