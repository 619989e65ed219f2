// rofat inspects FAT12, FAT16 and FAT32 disk images without mounting them.
// Images may be compressed with gzip, zstd or xz.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aligator/rofat"
	"github.com/aligator/rofat/internal/diskimage"
)

type globalOptions struct {
	verbose      bool
	codePage     string
	maxImageSize int64

	fs     afero.Fs
	logger *zap.Logger
}

func newRootCommand(opts *globalOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "rofat",
		Short:         "Read files from FAT disk images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.logger = newLogger(cmd, opts.verbose)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug messages")
	flags.StringVar(&opts.codePage, "codepage", "ascii", "code page of short names (ascii, 437, 850, 852, 866, 1252)")
	flags.Int64Var(&opts.maxImageSize, "max-image-size", diskimage.DefaultMaxSize, "maximum size of a decompressed image in bytes")

	root.AddCommand(
		createInfoCommand(opts),
		createLsCommand(opts),
		createCatCommand(opts),
		createTreeCommand(opts),
		createExtractCommand(opts),
	)
	return root
}

func newLogger(cmd *cobra.Command, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	config := zap.NewProductionEncoderConfig()
	if verbose {
		level = zapcore.DebugLevel
		config = zap.NewDevelopmentEncoderConfig()
	}
	config.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(config), zapcore.AddSync(cmd.ErrOrStderr()), level)
	return zap.New(core)
}

// mount opens the image and the filesystem on it. The image has to be closed by the caller.
func (o *globalOptions) mount(path string) (*rofat.Fs, *diskimage.Image, error) {
	cp, err := rofat.CodePageByName(o.codePage)
	if err != nil {
		return nil, nil, err
	}

	img, err := diskimage.Open(o.fs, path, o.maxImageSize)
	if err != nil {
		return nil, nil, err
	}
	o.logger.Debug("opened image", zap.String("path", path), zap.Stringer("format", img.Format), zap.Int64("size", img.Size))

	fsys, err := rofat.NewFromDevice(img.Device(), rofat.WithCodePage(cp), rofat.WithLogger(o.logger))
	if err != nil {
		img.Close()
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return fsys, img, nil
}

func main() {
	opts := &globalOptions{fs: afero.NewOsFs(), logger: zap.NewNop()}
	if err := newRootCommand(opts).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rofat:", err)
		os.Exit(1)
	}
}
