package rofat

import (
	"testing"

	"github.com/aligator/rofat/internal/fattest"
)

const (
	longFileName     = "long-File.name.txt"
	veryLongFileName = "A file name which needs more than two long name entries.txt"
)

var kindGeometries = []struct {
	kind     Kind
	geometry func() fattest.Geometry
}{
	{Fat12, fattest.FAT12},
	{Fat16, fattest.FAT16},
	{Fat32, fattest.FAT32},
}

// patternContent returns size bytes which differ between neighbouring clusters.
func patternContent(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

// testVolume is the content every test image gets:
//
//	/TEST.TXT                  "test\n"
//	/long-File.name.txt        "much wow\n"
//	/A file name which ... .txt
//	/FOO/BAR.TXT               "redrum\n"
//	/FOO/BAZ                   empty directory
//	/BIG.BIN                   3.5 clusters, not contiguous
type testVolume struct {
	*fattest.Builder
	foo        *fattest.Dir
	big        []byte
	bigCluster []uint32
}

func newTestVolume(g fattest.Geometry) *testVolume {
	b := fattest.NewBuilder(g)
	v := &testVolume{Builder: b}

	b.AddFile(b.Root(), "TEST.TXT", "", []byte("test\n"))
	b.AddFile(b.Root(), "LONG-F~1.TXT", longFileName, []byte("much wow\n"))
	b.AddFile(b.Root(), "AFILEN~1.TXT", veryLongFileName, []byte("long\n"))
	v.foo = b.AddDir(b.Root(), "FOO", "")
	b.AddFile(v.foo, "BAR.TXT", "", []byte("redrum\n"))
	b.AddDir(v.foo, "BAZ", "")

	v.big = patternContent(b.BytesPerCluster()*3 + b.BytesPerCluster()/2)
	b.Gap = 2
	v.bigCluster = b.AddFile(b.Root(), "BIG.BIN", "", v.big)
	b.Gap = 0
	return v
}

func mountVolume(t *testing.T, v *testVolume, opts ...Option) *Fs {
	t.Helper()
	fs, err := New(v.Image(), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return fs
}

func mountConcurrent(t *testing.T, v *testVolume, opts ...Option) *Fs {
	t.Helper()
	fs, err := NewFromDevice(NewReaderAtDevice(v.Image(), v.Image().Size()), opts...)
	if err != nil {
		t.Fatalf("NewFromDevice() error = %v", err)
	}
	return fs
}
