package rofat

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"syscall"
	"testing"
	"testing/iotest"

	"github.com/golang/mock/gomock"

	"github.com/aligator/rofat/internal/fattest"
)

func openFile(t *testing.T, fs *Fs, name string) *File {
	t.Helper()
	f, err := fs.open(name)
	if err != nil {
		t.Fatalf("open(%q) error = %v", name, err)
	}
	return f
}

func TestFile_Read(t *testing.T) {
	for _, kg := range kindGeometries {
		t.Run(kg.kind.String(), func(t *testing.T) {
			v := newTestVolume(kg.geometry())
			fs := mountVolume(t, v)

			// Reads of all sizes, seeking and ReadAt over a fragmented chain.
			if err := iotest.TestReader(openFile(t, fs, "BIG.BIN"), v.big); err != nil {
				t.Error(err)
			}
			if err := iotest.TestReader(openFile(t, fs, "foo/bar.txt"), []byte("redrum\n")); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestFile_ReadStopsAtClusterEnd(t *testing.T) {
	v := newTestVolume(fattest.FAT16())
	f := openFile(t, mountVolume(t, v), "BIG.BIN")
	bpc := v.BytesPerCluster()

	if _, err := f.Seek(10, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	p := make([]byte, 2*bpc)
	n, err := f.Read(p)
	if err != nil || n != bpc-10 {
		t.Fatalf("Read() = %d, %v, want %d bytes", n, err, bpc-10)
	}
	if !bytes.Equal(p[:n], v.big[10:bpc]) {
		t.Error("Read() returned wrong content")
	}

	n, err = f.Read(p)
	if err != nil || n != bpc || !bytes.Equal(p[:n], v.big[bpc:2*bpc]) {
		t.Errorf("second Read() = %d, %v", n, err)
	}
}

func TestFile_ReadEmpty(t *testing.T) {
	b := fattest.NewBuilder(fattest.FAT12())
	b.AddFile(b.Root(), "EMPTY", "", nil)
	fs, err := New(b.Image())
	if err != nil {
		t.Fatal(err)
	}

	f := openFile(t, fs, "empty")
	if n, err := f.Read(make([]byte, 10)); n != 0 || err != io.EOF {
		t.Errorf("Read() = %d, %v, want io.EOF", n, err)
	}
	if pos, err := f.Seek(100, io.SeekStart); pos != 100 || err != nil {
		t.Errorf("Seek() = %d, %v", pos, err)
	}
	if n, err := f.Read(make([]byte, 10)); n != 0 || err != io.EOF {
		t.Errorf("Read() past the end = %d, %v, want io.EOF", n, err)
	}
}

func TestFile_Seek(t *testing.T) {
	v := newTestVolume(fattest.FAT12())
	f := openFile(t, mountVolume(t, v), "BIG.BIN")
	size := int64(len(v.big))

	tests := []struct {
		name    string
		offset  int64
		whence  int
		want    int64
		wantErr []error
	}{
		{name: "start", offset: 600, whence: io.SeekStart, want: 600},
		{name: "forward", offset: 1000, whence: io.SeekCurrent, want: 1600},
		{name: "backward", offset: -1500, whence: io.SeekCurrent, want: 100},
		{name: "end", offset: -5, whence: io.SeekEnd, want: size - 5},
		{name: "past the end", offset: 10, whence: io.SeekEnd, want: size + 10},
		{name: "negative position", offset: -1, whence: io.SeekStart, want: size + 10, wantErr: []error{ErrSeekFile, ErrSeekPositionImpossible}},
		{name: "beyond the maximum file size", offset: math.MaxUint32 + 1, whence: io.SeekStart, want: size + 10, wantErr: []error{ErrSeekFile, ErrSeekPositionBeyondLimits}},
		{name: "overflow", offset: math.MaxInt64, whence: io.SeekEnd, want: size + 10, wantErr: []error{ErrSeekPositionImpossible}},
		{name: "invalid whence", offset: 0, whence: 3, want: size + 10, wantErr: []error{ErrSeekFile, syscall.EINVAL}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Seek(tt.offset, tt.whence)
			for _, want := range tt.wantErr {
				if !errors.Is(err, want) {
					t.Errorf("Seek() error = %v, want %v", err, want)
				}
			}
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Seek() error = %v", err)
				}
				if got != tt.want {
					t.Errorf("Seek() = %d, want %d", got, tt.want)
				}
			}

			// Failed seeks leave the position alone.
			if pos, _ := f.Seek(0, io.SeekCurrent); pos != tt.want {
				t.Errorf("position = %d, want %d", pos, tt.want)
			}
		})
	}

	if _, err := f.Seek(-5, io.SeekEnd); err != nil {
		t.Fatal(err)
	}
	rest, err := io.ReadAll(f)
	if err != nil || !bytes.Equal(rest, v.big[size-5:]) {
		t.Errorf("ReadAll() after SeekEnd = %v, %v", rest, err)
	}
}

func TestFile_ReadAtKeepsPosition(t *testing.T) {
	v := newTestVolume(fattest.FAT32())
	f := openFile(t, mountVolume(t, v), "BIG.BIN")

	if _, err := f.Seek(7, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	p := make([]byte, 700)
	if n, err := f.ReadAt(p, 1000); n != len(p) || err != nil {
		t.Fatalf("ReadAt() = %d, %v", n, err)
	}
	if !bytes.Equal(p, v.big[1000:1700]) {
		t.Error("ReadAt() returned wrong content")
	}

	if pos, _ := f.Seek(0, io.SeekCurrent); pos != 7 {
		t.Errorf("position = %d after ReadAt, want 7", pos)
	}
	if _, err := f.ReadAt(p, -1); !errors.Is(err, ErrSeekPositionImpossible) {
		t.Errorf("ReadAt(-1) error = %v", err)
	}
}

func TestFile_TruncatedChain(t *testing.T) {
	for _, kg := range kindGeometries {
		t.Run(kg.kind.String(), func(t *testing.T) {
			v := newTestVolume(kg.geometry())
			v.SetTableEntry(v.bigCluster[1], v.EndOfChain())
			f := openFile(t, mountVolume(t, v), "BIG.BIN")

			data, err := io.ReadAll(f)
			if err != io.ErrUnexpectedEOF {
				t.Errorf("ReadAll() error = %v, want io.ErrUnexpectedEOF", err)
			}
			if !bytes.Equal(data, v.big[:2*v.BytesPerCluster()]) {
				t.Errorf("read %d bytes, want the first two clusters", len(data))
			}
		})
	}
}

func TestFile_UnexpectedTableEntry(t *testing.T) {
	tests := []struct {
		name  string
		value func(v *testVolume) uint32
	}{
		{name: "bad cluster", value: func(v *testVolume) uint32 { return v.BadCluster() }},
		{name: "free cluster", value: func(v *testVolume) uint32 { return 0 }},
		{name: "reserved cluster", value: func(v *testVolume) uint32 { return 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVolume(fattest.FAT16())
			v.SetTableEntry(v.bigCluster[1], tt.value(v))
			f := openFile(t, mountVolume(t, v), "BIG.BIN")
			bpc := v.BytesPerCluster()

			p := make([]byte, bpc)
			if n, err := f.Read(p); n != bpc || err != nil {
				t.Fatalf("Read() of the first cluster = %d, %v", n, err)
			}

			n, err := f.Read(p)
			if n != 0 || !errors.Is(err, ErrReadFile) || !errors.Is(err, ErrUnexpectedAllocationTableEntry) {
				t.Errorf("Read() = %d, %v", n, err)
			}
			if pos, _ := f.Seek(0, io.SeekCurrent); pos != int64(bpc) {
				t.Errorf("position = %d after the failed read, want %d", pos, bpc)
			}
		})
	}
}

func TestFile_ReadAccess(t *testing.T) {
	v := newTestVolume(fattest.FAT12())
	fs := mountVolume(t, v)
	f := openFile(t, fs, "BIG.BIN")
	img := v.Image()

	mockCtrl := gomock.NewController(t)
	stream := NewMockStream(mockCtrl)
	fs.device = NewSingleAccessDevice(stream)

	// One read of the data and one of the table entry for the next cluster.
	// Seeking inside the current cluster or back to the start needs no access.
	stream.EXPECT().Seek(gomock.Any(), io.SeekStart).DoAndReturn(img.Seek).Times(2)
	stream.EXPECT().Read(gomock.Any()).DoAndReturn(img.Read).Times(2)

	p := make([]byte, v.BytesPerCluster())
	if n, err := f.Read(p); n != len(p) || err != nil {
		t.Fatalf("Read() = %d, %v", n, err)
	}
	if !bytes.Equal(p, v.big[:len(p)]) {
		t.Error("Read() returned wrong content")
	}

	for _, pos := range []int64{0, 10, 0} {
		if _, err := f.Seek(pos, io.SeekStart); err != nil {
			t.Fatalf("Seek(%d) error = %v", pos, err)
		}
	}
}

func TestFile_ReadOnly(t *testing.T) {
	f := openFile(t, mountVolume(t, newTestVolume(fattest.FAT12())), "TEST.TXT")

	if _, err := f.Write([]byte("a")); !errors.Is(err, ErrWriteUnsupported) {
		t.Errorf("Write() error = %v", err)
	}
	if _, err := f.WriteAt([]byte("a"), 0); !errors.Is(err, ErrWriteUnsupported) {
		t.Errorf("WriteAt() error = %v", err)
	}
	if _, err := f.WriteString("a"); !errors.Is(err, ErrWriteUnsupported) {
		t.Errorf("WriteString() error = %v", err)
	}
	if err := f.Truncate(0); !errors.Is(err, syscall.EROFS) {
		t.Errorf("Truncate() error = %v", err)
	}
}

func TestFile_Close(t *testing.T) {
	f := openFile(t, mountVolume(t, newTestVolume(fattest.FAT12())), "TEST.TXT")

	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := f.Close(); !errors.Is(err, os.ErrClosed) {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := f.Read(make([]byte, 1)); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Read() error = %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Seek() error = %v", err)
	}
	if _, err := f.Readdir(-1); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Readdir() error = %v", err)
	}
}

func TestFile_NameAndStat(t *testing.T) {
	fs := mountVolume(t, newTestVolume(fattest.FAT16()))

	tests := []struct {
		path  string
		name  string
		isDir bool
	}{
		{path: "foo/bar.txt", name: "BAR.TXT"},
		{path: "LONG-FILE.NAME.TXT", name: longFileName},
		{path: "foo", name: "FOO", isDir: true},
		{path: "/", name: "/", isDir: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f := openFile(t, fs, tt.path)
			info, err := f.Stat()
			if err != nil {
				t.Fatal(err)
			}
			if f.Name() != tt.name || info.Name() != tt.name || info.IsDir() != tt.isDir {
				t.Errorf("Name() = %q, Stat() = %q %t", f.Name(), info.Name(), info.IsDir())
			}
		})
	}
}

func TestFile_ReadDirectory(t *testing.T) {
	f := openFile(t, mountVolume(t, newTestVolume(fattest.FAT12())), "foo")

	_, err := f.Read(make([]byte, 1))
	if !errors.Is(err, syscall.EISDIR) {
		t.Errorf("Read() error = %v, want EISDIR", err)
	}
}

func TestFile_Readdir(t *testing.T) {
	for _, kg := range kindGeometries {
		t.Run(kg.kind.String(), func(t *testing.T) {
			fs := mountVolume(t, newTestVolume(kg.geometry()))
			root := openFile(t, fs, "/")

			var names []string
			for _, count := range []int{2, 2, 2} {
				infos, err := root.Readdir(count)
				if err != nil {
					t.Fatalf("Readdir(%d) error = %v", count, err)
				}
				for _, info := range infos {
					names = append(names, info.Name())
				}
			}
			want := []string{"TEST.TXT", longFileName, veryLongFileName, "FOO", "BIG.BIN"}
			if fmt.Sprint(names) != fmt.Sprint(want) {
				t.Errorf("names = %v, want %v", names, want)
			}

			if infos, err := root.Readdir(2); err != io.EOF || len(infos) != 0 {
				t.Errorf("Readdir() at the end = %v, %v, want io.EOF", infos, err)
			}
			if infos, err := root.Readdir(-1); err != nil || len(infos) != 0 {
				t.Errorf("Readdir(-1) at the end = %v, %v", infos, err)
			}

			names, err := openFile(t, fs, "foo").Readdirnames(-1)
			if err != nil || fmt.Sprint(names) != fmt.Sprint([]string{"BAR.TXT", "BAZ"}) {
				t.Errorf("Readdirnames() = %v, %v", names, err)
			}
		})
	}
}

func TestFile_ReaddirOnFile(t *testing.T) {
	f := openFile(t, mountVolume(t, newTestVolume(fattest.FAT12())), "TEST.TXT")

	_, err := f.Readdir(-1)
	if !errors.Is(err, ErrReadDir) || !errors.Is(err, syscall.ENOTDIR) {
		t.Errorf("Readdir() error = %v", err)
	}
	if _, err := f.Readdirnames(1); !errors.Is(err, syscall.ENOTDIR) {
		t.Errorf("Readdirnames() error = %v", err)
	}
}

type flushingDevice struct {
	*MockDevice
	*MockFlusher
}

func TestFile_Sync(t *testing.T) {
	fs := mountVolume(t, newTestVolume(fattest.FAT12()))
	f := openFile(t, fs, "TEST.TXT")

	if err := f.Sync(); err != nil {
		t.Errorf("Sync() error = %v", err)
	}

	mockCtrl := gomock.NewController(t)
	flusher := NewMockFlusher(mockCtrl)
	flusher.EXPECT().Flush().Return(errTestStream).Times(1)
	fs.device = flushingDevice{MockDevice: NewMockDevice(mockCtrl), MockFlusher: flusher}

	if err := f.Sync(); !errors.Is(err, errTestStream) {
		t.Errorf("Sync() error = %v, want %v", err, errTestStream)
	}
}
