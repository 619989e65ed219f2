package rofat

import (
	"errors"
	"io"
	"os"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/aligator/rofat/checkpoint"
)

const (
	bootSignatureOffset = 510
	bootSignature0      = 0x55
	bootSignature1      = 0xAA
)

// Fs is a read only FAT12, FAT16 or FAT32 filesystem.
// It implements afero.Fs. All methods which would modify the filesystem fail with syscall.EROFS.
//
// A Fs does not change after New returned. With a device allowing concurrent
// scopes, like ReaderAtDevice, it may be used from multiple goroutines.
type Fs struct {
	device Device
	bpb    *BiosParameterBlock
	table  AllocationTable
	fsInfo *FSInfo
	label  string

	bytesPerCluster uint32

	codePage       CodePage
	logger         *zap.Logger
	onInvalidEntry InvalidEntryHandler
}

// New opens a FAT filesystem from the given reader.
// The reader must not be used by anything else while the Fs is in use.
func New(reader io.ReadSeeker, opts ...Option) (*Fs, error) {
	return NewFromDevice(NewSingleAccessDevice(reader), opts...)
}

// NewFromDevice opens a FAT filesystem from the given device.
// It validates the boot sector signature and the BIOS parameter block.
func NewFromDevice(device Device, opts ...Option) (*Fs, error) {
	fs := &Fs{
		device:   device,
		codePage: ASCII,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(fs)
	}
	if fs.onInvalidEntry == nil {
		fs.onInvalidEntry = fs.logInvalidEntry
	}

	var sector [BootSectorSize]byte
	err := withStream(device, func(s Stream) error {
		return readAt(s, 0, sector[:])
	})
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadBootSector)
	}

	if sector[bootSignatureOffset] != bootSignature0 || sector[bootSignatureOffset+1] != bootSignature1 {
		return nil, checkpoint.From(ErrFatSignatureInvalid)
	}

	fs.bpb, err = ParseBPB(&sector)
	if err != nil {
		return nil, checkpoint.From(err)
	}
	fs.table = NewAllocationTable(fs.bpb.Kind(), fs.bpb.ActiveAllocationTableBaseAddress())
	fs.bytesPerCluster = fs.bpb.BytesPerCluster()

	if err := fs.readFSInfo(); err != nil {
		return nil, err
	}
	fs.label = fs.findLabel()

	fs.logger.Debug("mounted FAT filesystem",
		zap.Stringer("kind", fs.bpb.Kind()),
		zap.Uint16("bytesPerSector", fs.bpb.BytesPerSector()),
		zap.Uint32("bytesPerCluster", fs.bytesPerCluster),
		zap.Uint32("clusters", fs.bpb.DataClusterCount()),
		zap.String("label", fs.label),
	)
	return fs, nil
}

func (fs *Fs) readFSInfo() error {
	sectorIndex, ok := fs.bpb.FSInfoSector()
	if !ok {
		return nil
	}

	var sector [fsInfoSectorSize]byte
	err := withStream(fs.device, func(s Stream) error {
		return readAt(s, uint64(sectorIndex)*uint64(fs.bpb.BytesPerSector()), sector[:])
	})
	if err != nil {
		return checkpoint.Wrap(err, ErrReadFSInfo)
	}

	info, ok := parseFSInfo(&sector)
	if !ok {
		fs.logger.Debug("ignoring FSInfo sector with invalid signatures", zap.Uint16("sector", sectorIndex))
		return nil
	}
	fs.fsInfo = &info
	return nil
}

// findLabel prefers the volume label entry of the root directory over the label of the boot sector.
func (fs *Fs) findLabel() string {
	var label string
	err := withStream(fs.device, func(s Stream) error {
		items := NewItemIterator(fs.rootEntries())
		for {
			item, err := items.Next(s)
			if err != nil {
				if isFatalIterationError(err) {
					return err
				}
				continue
			}
			if item == nil {
				return nil
			}
			if item.Short.Attributes.Has(AttrVolumeLabel) && !item.Short.IsDir() {
				label = item.Short.Name.Label(fs.codePage)
				return nil
			}
		}
	})
	if err != nil {
		fs.logger.Debug("could not read the volume label entry", zap.Error(err))
	}

	if label == "" {
		return fs.bpb.VolumeLabel()
	}
	return label
}

func (fs *Fs) logInvalidEntry(dir string, err error) {
	fs.logger.Warn("skipping invalid directory entry", zap.String("directory", dir), zap.Error(err))
}

// isFatalIterationError separates I/O and chain errors, which abort a
// directory walk, from errors of single records, which are skipped.
func isFatalIterationError(err error) bool {
	var deviceErr *DeviceError
	return errors.Is(err, ErrReadDirectoryEntry) ||
		errors.Is(err, ErrReadAllocationTable) ||
		errors.Is(err, ErrAllocationTableEntryTypeUnexpected) ||
		errors.As(err, &deviceErr)
}

// Kind returns the FAT variant of the filesystem.
func (fs *Fs) Kind() Kind {
	return fs.bpb.Kind()
}

// BPB returns the parsed BIOS parameter block.
func (fs *Fs) BPB() *BiosParameterBlock {
	return fs.bpb
}

// FSInfo returns the FAT32 FSInfo hints if the volume has a valid FSInfo sector.
func (fs *Fs) FSInfo() (FSInfo, bool) {
	if fs.fsInfo == nil {
		return FSInfo{}, false
	}
	return *fs.fsInfo, true
}

// Label returns the volume label.
func (fs *Fs) Label() string {
	return fs.label
}

func (fs *Fs) rootEntries() EntryIterator {
	if cluster, ok := fs.bpb.RootDirectoryCluster(); ok {
		return fs.clusterEntries(cluster)
	}
	return NewTableEntryIterator(fs.bpb.DirectoryTableBaseAddress(), uint32(fs.bpb.RootDirectoryEntryCount()))
}

func (fs *Fs) clusterEntries(firstCluster uint32) EntryIterator {
	return NewClusterEntryIterator(fs.table, fs.bpb.DataRegionBaseAddress(), fs.bytesPerCluster, firstCluster)
}

// cleanPath turns name into a path relative to the root without "." and ".." elements.
// The root itself is "".
func cleanPath(name string) string {
	name = path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimPrefix(name, "/")
}

// open resolves name component by component starting at the root directory.
func (fs *Fs) open(name string) (*File, error) {
	name = cleanPath(name)
	if name == "" {
		return &File{fs: fs, path: "/", info: rootFileInfo{}}, nil
	}

	var item *DirectoryItem
	err := withStream(fs.device, func(s Stream) error {
		entries := fs.rootEntries()
		dir := "/"
		for _, component := range strings.Split(name, "/") {
			if item != nil {
				if !item.Short.IsDir() {
					return syscall.ENOTDIR
				}
				entries = fs.clusterEntries(item.Short.FirstCluster)
			}

			found, err := fs.find(s, entries, dir, component)
			if err != nil {
				return err
			}
			if found == nil {
				return os.ErrNotExist
			}
			item = found
			dir = path.Join(dir, component)
		}
		return nil
	})
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: name, Err: err}
	}

	return &File{
		fs:     fs,
		path:   "/" + name,
		item:   item,
		info:   item.FileInfo(fs.codePage),
		cursor: newCursor(item.Short.FirstCluster, item.Short.FileSize),
	}, nil
}

// find returns the item of the directory matching component, or nil if there is none.
func (fs *Fs) find(s Stream, entries EntryIterator, dir, component string) (*DirectoryItem, error) {
	items := NewItemIterator(entries)
	for {
		item, err := items.Next(s)
		if err != nil {
			if isFatalIterationError(err) {
				return nil, err
			}
			fs.onInvalidEntry(dir, err)
			continue
		}
		if item == nil {
			return nil, nil
		}

		if item.Short.Attributes.Has(AttrVolumeLabel) || item.Short.Name.IsDot() {
			continue
		}
		if item.Matches(component, fs.codePage) {
			return item, nil
		}
	}
}

// readDir lists a directory without the volume label and the dot entries.
func (fs *Fs) readDir(dir string, entries EntryIterator) ([]os.FileInfo, error) {
	content := []os.FileInfo{}
	err := withStream(fs.device, func(s Stream) error {
		items := NewItemIterator(entries)
		for {
			item, err := items.Next(s)
			if err != nil {
				if isFatalIterationError(err) {
					return err
				}
				fs.onInvalidEntry(dir, err)
				continue
			}
			if item == nil {
				return nil
			}

			if item.Short.Attributes.Has(AttrVolumeLabel) || item.Short.Name.IsDot() {
				continue
			}
			content = append(content, item.FileInfo(fs.codePage))
		}
	})
	return content, err
}

func (fs *Fs) Open(name string) (afero.File, error) {
	f, err := fs.open(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (fs *Fs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, &os.PathError{Op: "open", Path: name, Err: syscall.EROFS}
	}
	return fs.Open(name)
}

func (fs *Fs) Stat(name string) (os.FileInfo, error) {
	f, err := fs.open(name)
	if err != nil {
		return nil, err
	}
	return f.Stat()
}

func (fs *Fs) Name() string {
	return "rofat"
}

func (fs *Fs) Create(name string) (afero.File, error) {
	return nil, &os.PathError{Op: "create", Path: name, Err: syscall.EROFS}
}

func (fs *Fs) Mkdir(name string, perm os.FileMode) error {
	return &os.PathError{Op: "mkdir", Path: name, Err: syscall.EROFS}
}

func (fs *Fs) MkdirAll(path string, perm os.FileMode) error {
	return &os.PathError{Op: "mkdir", Path: path, Err: syscall.EROFS}
}

func (fs *Fs) Remove(name string) error {
	return &os.PathError{Op: "remove", Path: name, Err: syscall.EROFS}
}

func (fs *Fs) RemoveAll(path string) error {
	return &os.PathError{Op: "remove", Path: path, Err: syscall.EROFS}
}

func (fs *Fs) Rename(oldname, newname string) error {
	return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: syscall.EROFS}
}

func (fs *Fs) Chmod(name string, mode os.FileMode) error {
	return &os.PathError{Op: "chmod", Path: name, Err: syscall.EROFS}
}

func (fs *Fs) Chown(name string, uid, gid int) error {
	return &os.PathError{Op: "chown", Path: name, Err: syscall.EROFS}
}

func (fs *Fs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return &os.PathError{Op: "chtimes", Path: name, Err: syscall.EROFS}
}
