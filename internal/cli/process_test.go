package cli

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ds124wfegd/bandpool/config"
	"github.com/ds124wfegd/bandpool/internal/entity"
	"github.com/ds124wfegd/bandpool/internal/pkg/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Pool: config.PoolConfig{
			Size:          3,
			WorkerTimeout: 5 * time.Second,
			OutputFormat:  "png",
		},
		Transport: config.TransportConfig{Kind: "local"},
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		name, operation, format, want string
	}{
		{name: "dir/cat.jpg", operation: "gaussian_blur", format: "png", want: "cat_gaussian_blur.png"},
		{name: "dog.png", operation: "", format: "JPEG", want: "dog_identity.jpeg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, outputName(tt.name, tt.operation, tt.format))
	}
}

func TestProcessDirectory(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writePNG(t, filepath.Join(in, "a.png"), 12, 7)
	writePNG(t, filepath.Join(in, "b.png"), 5, 2)
	require.NoError(t, os.WriteFile(filepath.Join(in, "broken.png"), []byte("nope"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "readme.txt"), []byte("skip me"), 0644))

	report, err := processBatch(context.Background(), testConfig(), processOptions{
		InputPath: in,
		OutputDir: out,
		Operation: processor.EdgeDetection,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a_edge_detection.png", "b_edge_detection.png"}, report.Written)
	assert.Equal(t, 1, report.Failed)

	f, err := os.Open(filepath.Join(out, "a_edge_detection.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(12, 7), img.Bounds().Size())
	assert.Equal(t, color.GrayModel, img.ColorModel())
}

func TestProcessSingleFileWithOverrides(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	src := filepath.Join(in, "photo.png")
	writePNG(t, src, 9, 9)

	report, err := processBatch(context.Background(), testConfig(), processOptions{
		InputPath: src,
		OutputDir: out,
		Operation: processor.ColorInversion,
		PoolSize:  5,
		Format:    "jpeg",
	})
	require.NoError(t, err)

	require.Equal(t, []string{"photo_color_inversion.jpeg"}, report.Written)
	assert.FileExists(t, filepath.Join(out, "photo_color_inversion.jpeg"))
}

func TestProcessEmptyDirectory(t *testing.T) {
	_, err := processBatch(context.Background(), testConfig(), processOptions{InputPath: t.TempDir(), OutputDir: t.TempDir()})
	assert.Error(t, err)
}

func TestProcessRejectsUnknownFormat(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writePNG(t, filepath.Join(in, "a.png"), 4, 4)

	_, err := processBatch(context.Background(), testConfig(), processOptions{InputPath: in, OutputDir: out, Format: "webp"})

	assert.ErrorIs(t, err, entity.ErrUnsupportedFormat)
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
