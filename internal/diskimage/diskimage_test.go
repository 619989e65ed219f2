package diskimage

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"

	"github.com/aligator/rofat"
	"github.com/aligator/rofat/internal/fattest"
)

func compressGzip(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func compressZstd(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func compressXz(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		want   Format
	}{
		{name: "Empty", header: nil, want: Raw},
		{name: "BootSector", header: []byte{0xEB, 0x3C, 0x90, 'm', 'k', 'f'}, want: Raw},
		{name: "Gzip", header: []byte{0x1F, 0x8B, 0x08, 0, 0, 0}, want: Gzip},
		{name: "Zstd", header: []byte{0x28, 0xB5, 0x2F, 0xFD, 0x04, 0}, want: Zstd},
		{name: "Xz", header: []byte{0xFD, '7', 'z', 'X', 'Z', 0}, want: Xz},
		{name: "TruncatedXz", header: []byte{0xFD, '7', 'z'}, want: Raw},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.header); got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	b := fattest.NewBuilder(fattest.FAT12())
	b.AddFile(b.Root(), "HELLO.TXT", "", []byte("hello"))
	raw := b.Image().Bytes()

	mem := afero.NewMemMapFs()
	files := map[string][]byte{
		"disk.img":     raw,
		"disk.img.gz":  compressGzip(t, raw),
		"disk.img.zst": compressZstd(t, raw),
		"disk.img.xz":  compressXz(t, raw),
	}
	for name, data := range files {
		if err := afero.WriteFile(mem, name, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		path   string
		format Format
	}{
		{"disk.img", Raw},
		{"disk.img.gz", Gzip},
		{"disk.img.zst", Zstd},
		{"disk.img.xz", Xz},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			img, err := Open(mem, tt.path, 0)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer img.Close()

			if img.Format != tt.format {
				t.Errorf("Format = %v, want %v", img.Format, tt.format)
			}
			if img.Size != int64(len(raw)) {
				t.Errorf("Size = %d, want %d", img.Size, len(raw))
			}

			fs, err := rofat.NewFromDevice(img.Device())
			if err != nil {
				t.Fatalf("NewFromDevice() error = %v", err)
			}
			data, err := afero.ReadFile(fs, "hello.txt")
			if err != nil {
				t.Fatalf("ReadFile() error = %v", err)
			}
			if string(data) != "hello" {
				t.Errorf("content = %q, want %q", data, "hello")
			}
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 4096)
	mem := afero.NewMemMapFs()
	if err := afero.WriteFile(mem, "big.gz", compressGzip(t, data), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(mem, "broken.gz", []byte{0x1F, 0x8B, 0xFF, 0xFF}, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(mem, "tiny.img", []byte{1, 2}, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("TooLarge", func(t *testing.T) {
		_, err := Open(mem, "big.gz", 1024)
		if !errors.Is(err, ErrImageTooLarge) {
			t.Errorf("expected ErrImageTooLarge, got %v", err)
		}
	})

	t.Run("ExactLimit", func(t *testing.T) {
		img, err := Open(mem, "big.gz", int64(len(data)))
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer img.Close()

		got, err := io.ReadAll(img)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, data) {
			t.Error("decompressed content differs")
		}
	})

	t.Run("Corrupted", func(t *testing.T) {
		_, err := Open(mem, "broken.gz", 0)
		if !errors.Is(err, ErrDecompress) {
			t.Errorf("expected ErrDecompress, got %v", err)
		}
	})

	t.Run("ShortRawFile", func(t *testing.T) {
		img, err := Open(mem, "tiny.img", 0)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer img.Close()
		if img.Format != Raw || img.Size != 2 {
			t.Errorf("got format %v and size %d", img.Format, img.Size)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		if _, err := Open(mem, "missing.img", 0); err == nil {
			t.Error("expected an error")
		}
	})
}
