// Package diskimage opens disk image files which may be compressed.
// Compressed images are decompressed into memory because the filesystem needs random access.
package diskimage

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"

	"github.com/aligator/rofat"
)

// DefaultMaxSize limits the decompressed size of compressed images.
const DefaultMaxSize = 4 << 30

var (
	ErrImageTooLarge = errors.New("decompressed image exceeds the size limit")
	ErrDecompress    = errors.New("could not decompress the image")
)

// Format is the container format of an image file.
type Format int

const (
	Raw Format = iota
	Gzip
	Zstd
	Xz
)

func (f Format) String() string {
	switch f {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case Xz:
		return "xz"
	default:
		return "raw"
	}
}

var magics = []struct {
	format Format
	magic  []byte
}{
	{Gzip, []byte{0x1F, 0x8B}},
	{Zstd, []byte{0x28, 0xB5, 0x2F, 0xFD}},
	{Xz, []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}},
}

// Detect returns the format indicated by the first bytes of a file.
func Detect(header []byte) Format {
	for _, m := range magics {
		if bytes.HasPrefix(header, m.magic) {
			return m.format
		}
	}
	return Raw
}

type readSeekReaderAt interface {
	io.ReadSeeker
	io.ReaderAt
}

// Image is an opened disk image.
type Image struct {
	readSeekReaderAt
	Format Format
	Size   int64

	closer io.Closer
}

// Device returns a device which allows concurrent reads of the image.
func (i *Image) Device() rofat.Device {
	return rofat.NewReaderAtDevice(i, i.Size)
}

func (i *Image) Close() error {
	if i.closer == nil {
		return nil
	}
	return i.closer.Close()
}

// Open opens the image at path. maxSize limits the size of decompressed images, 0 means DefaultMaxSize.
func Open(fsys afero.Fs, path string, maxSize int64) (*Image, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 6)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	format := Detect(header[:n])
	if format == Raw {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		return &Image{readSeekReaderAt: f, Format: Raw, Size: info.Size(), closer: f}, nil
	}

	defer f.Close()
	data, err := decompress(bufio.NewReader(f), format, maxSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Image{readSeekReaderAt: bytes.NewReader(data), Format: format, Size: int64(len(data))}, nil
}

func decompress(r io.Reader, format Format, maxSize int64) ([]byte, error) {
	var decompressed io.Reader
	switch format {
	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Join(ErrDecompress, err)
		}
		defer gz.Close()
		decompressed = gz
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Join(ErrDecompress, err)
		}
		defer zr.Close()
		decompressed = zr
	case Xz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, errors.Join(ErrDecompress, err)
		}
		decompressed = xr
	default:
		return nil, fmt.Errorf("%w: unknown format %v", ErrDecompress, format)
	}

	data, err := io.ReadAll(io.LimitReader(decompressed, maxSize+1))
	if err != nil {
		return nil, errors.Join(ErrDecompress, err)
	}
	if int64(len(data)) > maxSize {
		return nil, ErrImageTooLarge
	}
	return data, nil
}
