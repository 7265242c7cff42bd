package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ds124wfegd/bandpool/config"
	"github.com/ds124wfegd/bandpool/internal/appServer"
	"github.com/ds124wfegd/bandpool/internal/pkg/codec"
	"github.com/ds124wfegd/bandpool/internal/pkg/pool"
	"github.com/ds124wfegd/bandpool/internal/pkg/processor"
	"github.com/ds124wfegd/bandpool/internal/pkg/storage"
	"github.com/ds124wfegd/bandpool/internal/service"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type processOptions struct {
	InputPath string
	OutputDir string
	Operation string
	PoolSize  int
	Format    string
	Progress  io.Writer
}

var processOpts processOptions

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Transform an image file or every image in a directory with an in-process pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		processOpts.Progress = os.Stderr
		return runProcess(cmd.Context(), cfg, processOpts)
	},
}

func init() {
	processCmd.Flags().StringVarP(&processOpts.InputPath, "input", "i", "", "Image file or directory of images")
	processCmd.Flags().StringVarP(&processOpts.OutputDir, "output", "o", "./output", "Directory for transformed images")
	processCmd.Flags().StringVarP(&processOpts.Operation, "operation", "p", processor.Identity, "Operation to apply")
	processCmd.Flags().IntVarP(&processOpts.PoolSize, "pool-size", "n", 0, "Pool size including the coordinator (default: pool.size)")
	processCmd.Flags().StringVarP(&processOpts.Format, "format", "f", "", "Output format (default: pool.output_format)")

	processCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(processCmd)
}

// processReport counts the outcome of a batch.
type processReport struct {
	Written []string
	Failed  int
}

func runProcess(ctx context.Context, cfg *config.Config, opts processOptions) error {
	report, err := processBatch(ctx, cfg, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "\nProcessed %d image(s), %d failed, output in %s\n", len(report.Written), report.Failed, opts.OutputDir)
	if report.Failed > 0 {
		return fmt.Errorf("%d image(s) failed", report.Failed)
	}
	return nil
}

func processBatch(ctx context.Context, cfg *config.Config, opts processOptions) (*processReport, error) {
	in, names, err := openInputs(opts.InputPath)
	if err != nil {
		return nil, err
	}

	size := cfg.Pool.Size
	if opts.PoolSize > 0 {
		size = opts.PoolSize
	}
	svcOpts := appServer.ServiceOptions(cfg)
	if opts.Format != "" {
		if _, err := codec.ParseFormat(opts.Format); err != nil {
			return nil, err
		}
		svcOpts.OutputFormat = opts.Format
	}
	progress := opts.Progress
	if progress == nil {
		progress = io.Discard
	}

	imgProcessor := processor.NewImageProcessor()
	localPool, err := pool.NewLocal(size, imgProcessor)
	if err != nil {
		return nil, err
	}
	defer localPool.Close()

	bar := progressbar.NewOptions(len(names)*size,
		progressbar.OptionSetDescription("Processing bands"),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionShowCount(),
	)
	svcOpts.OnBandDone = func(index, total int) {
		bar.Add(1)
	}
	imgService := service.NewImageService(localPool, imgProcessor, svcOpts)
	out := storage.NewFileStorage(opts.OutputDir)

	report := &processReport{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		log := logrus.WithField("file", name)
		data, err := readAll(in, name)
		if err != nil {
			log.Errorf("Failed to read image: %v", err)
			report.Failed++
			continue
		}

		result, err := imgService.ProcessImage(ctx, data, opts.Operation)
		if err != nil {
			log.Errorf("Failed to process image: %v", err)
			report.Failed++
			continue
		}

		target := outputName(name, opts.Operation, result.Format)
		if err := out.Save(target, bytes.NewReader(result.Data)); err != nil {
			log.Errorf("Failed to save image: %v", err)
			report.Failed++
			continue
		}
		report.Written = append(report.Written, target)
	}
	bar.Finish()

	return report, nil
}

// openInputs resolves a file or a directory to a storage root and the image
// names under it.
func openInputs(path string) (storage.FileStorage, []string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		return storage.NewFileStorage(filepath.Dir(path)), []string{filepath.Base(path)}, nil
	}

	in := storage.NewFileStorage(path)
	names, err := in.ListImages(".")
	if err != nil {
		return nil, nil, err
	}
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("no images found in %s", path)
	}
	return in, names, nil
}

func readAll(fs storage.FileStorage, name string) ([]byte, error) {
	rc, err := fs.Get(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func outputName(name, operation, format string) string {
	if operation == "" {
		operation = processor.Identity
	}
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return fmt.Sprintf("%s_%s.%s", base, operation, strings.ToLower(format))
}
