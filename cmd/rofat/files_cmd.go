package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func createLsCommand(opts *globalOptions) *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "ls [flags] IMAGE [DIR]",
		Short: "List a directory of the image",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, img, err := opts.mount(args[0])
			if err != nil {
				return err
			}
			defer img.Close()

			dir := "/"
			if len(args) == 2 {
				dir = args[1]
			}

			infos, err := afero.ReadDir(fsys, dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, info := range infos {
				name := info.Name()
				if info.IsDir() {
					name += "/"
				}
				if long {
					fmt.Fprintf(out, "%s %10d %s %s\n", info.Mode(), info.Size(), info.ModTime().Format("2006-01-02 15:04"), name)
				} else {
					fmt.Fprintln(out, name)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "show mode, size and modification time")
	return cmd
}

func createCatCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cat IMAGE PATH...",
		Short: "Print files of the image",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, img, err := opts.mount(args[0])
			if err != nil {
				return err
			}
			defer img.Close()

			for _, name := range args[1:] {
				if err := copyFile(cmd.OutOrStdout(), fsys, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func copyFile(w io.Writer, fsys afero.Fs, name string) error {
	f, err := fsys.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}

func createTreeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree IMAGE",
		Short: "Print all files and directories of the image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, img, err := opts.mount(args[0])
			if err != nil {
				return err
			}
			defer img.Close()

			out := cmd.OutOrStdout()
			return afero.Walk(fsys, "/", func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if path == "/" {
					fmt.Fprintln(out, "/")
					return nil
				}

				depth := strings.Count(path, "/") - 1
				name := info.Name()
				if info.IsDir() {
					name += "/"
				}
				fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", depth), name)
				return nil
			})
		},
	}
}

func createExtractCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "extract IMAGE DEST",
		Short: "Copy all files of the image into a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, img, err := opts.mount(args[0])
			if err != nil {
				return err
			}
			defer img.Close()

			dest := args[1]
			return afero.Walk(fsys, "/", func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}

				target := filepath.Join(dest, filepath.FromSlash(path))
				if info.IsDir() {
					return opts.fs.MkdirAll(target, 0o755)
				}

				f, err := fsys.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()

				opts.logger.Debug("extracting", zap.String("path", path), zap.Int64("size", info.Size()))
				if err := afero.WriteReader(opts.fs, target, f); err != nil {
					return err
				}
				return opts.fs.Chtimes(target, info.ModTime(), info.ModTime())
			})
		},
	}
}
