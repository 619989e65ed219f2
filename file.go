package rofat

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"syscall"

	"github.com/aligator/rofat/checkpoint"
)

// These errors may occur while processing a file.
var (
	ErrReadFile                       = errors.New("could not read file completely")
	ErrSeekFile                       = errors.New("could not seek inside of the file")
	ErrReadDir                        = errors.New("could not read the directory")
	ErrSeekPositionImpossible         = errors.New("seek position is negative or overflows")
	ErrSeekPositionBeyondLimits       = errors.New("seek position exceeds the maximum file size")
	ErrUnexpectedAllocationTableEntry = errors.New("file cluster chain contains an unexpected allocation table entry")
	ErrWriteUnsupported               = errors.New("writing is not supported")
)

// File is an open file or directory.
// A File keeps its own read position and must not be used from multiple goroutines at once.
type File struct {
	fs   *Fs
	path string
	item *DirectoryItem // nil for the root directory
	info os.FileInfo

	cursor cursor

	dirContent []os.FileInfo
	dirOffset  int
	closed     bool
}

// cursor maps the logical position of a file to its cluster.
type cursor struct {
	firstCluster uint32
	size         uint32
	position     uint32

	cluster      uint32
	clusterStart uint32 // position of the first byte of cluster
	offset       uint32 // may equal the cluster size if the chain ended early
}

func newCursor(firstCluster, size uint32) cursor {
	return cursor{firstCluster: firstCluster, size: size, cluster: firstCluster}
}

func (f *File) isDir() bool {
	return f.item == nil || f.item.Short.IsDir()
}

func (f *File) address() uint64 {
	c := f.cursor
	return f.fs.bpb.DataRegionBaseAddress() + uint64(c.cluster-2)*uint64(f.fs.bytesPerCluster) + uint64(c.offset)
}

// Read reads at most up to the end of the current cluster.
// Callers which need more have to call it again, like io.ReadFull does.
func (f *File) Read(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	if f.isDir() {
		return 0, &os.PathError{Op: "read", Path: f.path, Err: syscall.EISDIR}
	}
	if len(p) == 0 {
		return 0, nil
	}

	c := f.cursor
	if c.position >= c.size {
		return 0, io.EOF
	}

	bytesPerCluster := f.fs.bytesPerCluster
	if c.offset >= bytesPerCluster || c.cluster < 2 {
		// The cluster chain ended before the file size was reached.
		return 0, io.ErrUnexpectedEOF
	}

	readSize := min(uint64(len(p)), uint64(c.size-c.position), uint64(bytesPerCluster-c.offset))
	err := withStream(f.fs.device, func(s Stream) error {
		if err := readAt(s, f.address(), p[:readSize]); err != nil {
			return err
		}
		return f.seek(s, c.position+uint32(readSize))
	})
	if err != nil {
		return 0, checkpoint.Wrap(err, ErrReadFile)
	}

	return int(readSize), nil
}

// ReadAt reads with its own cursor and does not change the position of f.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	if off < 0 {
		return 0, checkpoint.Wrap(ErrSeekPositionImpossible, ErrReadFile)
	}

	other := &File{fs: f.fs, path: f.path, item: f.item, info: f.info, cursor: f.cursor}
	if _, err := other.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}

	n, err := io.ReadFull(other, p)
	if errors.Is(err, io.ErrUnexpectedEOF) && int64(n)+off >= int64(f.cursor.size) {
		err = io.EOF
	}
	return n, err
}

// Seek jumps to a specific offset in the file. This affects all Read operation except ReadAt.
// May return a syscall.EINVAL error if the whence value is invalid.
// Positions past the end of the file are allowed; reading there returns io.EOF.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, os.ErrClosed
	}

	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(f.cursor.position)
	case io.SeekEnd:
		base = int64(f.cursor.size)
	default:
		return 0, checkpoint.Wrap(syscall.EINVAL, fmt.Errorf("%w, offset: %v, whence: %v", ErrSeekFile, offset, whence))
	}

	if offset > 0 && base > math.MaxInt64-offset {
		return 0, checkpoint.Wrap(ErrSeekPositionImpossible, ErrSeekFile)
	}
	target := base + offset
	if target < 0 {
		return 0, checkpoint.Wrap(ErrSeekPositionImpossible, ErrSeekFile)
	}
	if target > math.MaxUint32 {
		return 0, checkpoint.Wrap(ErrSeekPositionBeyondLimits, ErrSeekFile)
	}

	if uint32(target) == f.cursor.position {
		return target, nil
	}

	err := withStream(f.fs.device, func(s Stream) error {
		return f.seek(s, uint32(target))
	})
	if err != nil {
		return int64(f.cursor.position), checkpoint.Wrap(err, ErrSeekFile)
	}
	return target, nil
}

// seek moves the cursor to target. Inside the current cluster no I/O is needed.
// Otherwise the chain is followed forward, starting over from the first cluster when moving back.
// The cursor is only changed if the walk succeeds.
func (f *File) seek(s Stream, target uint32) error {
	c := f.cursor
	bytesPerCluster := f.fs.bytesPerCluster

	if target >= c.clusterStart && uint64(target) < uint64(c.clusterStart)+uint64(bytesPerCluster) {
		f.cursor.position = target
		f.cursor.offset = target - c.clusterStart
		return nil
	}

	if target < c.clusterStart {
		c.cluster = c.firstCluster
		c.clusterStart = 0
	}

	remaining := target - c.clusterStart
walk:
	for remaining >= bytesPerCluster && c.cluster >= 2 {
		entry, err := f.fs.table.Entry(s, c.cluster)
		if err != nil {
			return err
		}

		switch entry.Kind {
		case EntryNextCluster:
			c.cluster = entry.Next
			c.clusterStart += bytesPerCluster
			remaining -= bytesPerCluster
		case EntryEndOfFile:
			break walk
		default:
			return checkpoint.Wrap(fmt.Errorf("cluster %d: %v", c.cluster, entry), ErrUnexpectedAllocationTableEntry)
		}
	}

	c.position = target
	c.offset = min(remaining, bytesPerCluster)
	f.cursor = c
	return nil
}

func (f *File) Write(p []byte) (n int, err error) {
	return 0, &os.PathError{Op: "write", Path: f.path, Err: ErrWriteUnsupported}
}

func (f *File) WriteAt(p []byte, off int64) (n int, err error) {
	return 0, &os.PathError{Op: "write", Path: f.path, Err: ErrWriteUnsupported}
}

func (f *File) WriteString(s string) (ret int, err error) {
	return f.Write([]byte(s))
}

func (f *File) Truncate(size int64) error {
	return &os.PathError{Op: "truncate", Path: f.path, Err: syscall.EROFS}
}

// Sync flushes the device if it supports flushing.
func (f *File) Sync() error {
	if flusher, ok := f.fs.device.(Flusher); ok {
		return checkpoint.From(flusher.Flush())
	}
	return nil
}

func (f *File) Close() error {
	if f.closed {
		return os.ErrClosed
	}
	f.closed = true
	f.dirContent = nil
	return nil
}

func (f *File) Name() string {
	return f.info.Name()
}

func (f *File) Stat() (os.FileInfo, error) {
	return f.info, nil
}

// Readdir reads the contents of a directory like os.File.Readdir does.
// May return syscall.ENOTDIR if the current File is no directory.
func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	if f.closed {
		return nil, os.ErrClosed
	}
	if !f.isDir() {
		return nil, checkpoint.Wrap(syscall.ENOTDIR, ErrReadDir)
	}

	if f.dirContent == nil {
		content, err := f.fs.readDir(f.path, f.entries())
		if err != nil {
			return nil, checkpoint.Wrap(err, ErrReadDir)
		}
		f.dirContent = content
	}

	rest := f.dirContent[f.dirOffset:]
	if count <= 0 {
		f.dirOffset = len(f.dirContent)
		return rest, nil
	}

	if len(rest) == 0 {
		return nil, io.EOF
	}
	count = min(count, len(rest))
	f.dirOffset += count
	return rest[:count], nil
}

func (f *File) Readdirnames(count int) ([]string, error) {
	content, err := f.Readdir(count)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(content))
	for i, entry := range content {
		names[i] = entry.Name()
	}
	return names, nil
}

func (f *File) entries() EntryIterator {
	if f.item == nil {
		return f.fs.rootEntries()
	}
	return f.fs.clusterEntries(f.item.Short.FirstCluster)
}
