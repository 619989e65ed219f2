package rofat

import (
	"os"
	"time"
)

// FileInfo describes a directory item.
// Sys returns the *ShortNameEntry of the item, or nil for the root directory.
func (i *DirectoryItem) FileInfo(cp CodePage) os.FileInfo {
	return itemFileInfo{item: i, name: i.Name(cp)}
}

type itemFileInfo struct {
	item *DirectoryItem
	name string
}

func (e itemFileInfo) Name() string {
	return e.name
}

func (e itemFileInfo) Size() int64 {
	if e.IsDir() {
		return 0
	}
	return int64(e.item.Short.FileSize)
}

func (e itemFileInfo) Mode() os.FileMode {
	if e.IsDir() {
		return os.ModeDir | 0555
	}
	return 0444
}

func (e itemFileInfo) ModTime() time.Time {
	return e.item.Short.ModTime()
}

func (e itemFileInfo) IsDir() bool {
	return e.item.Short.IsDir()
}

func (e itemFileInfo) Sys() interface{} {
	return e.item.Short
}

type rootFileInfo struct{}

func (rootFileInfo) Name() string {
	return "/"
}

func (rootFileInfo) Size() int64 {
	return 0
}

func (rootFileInfo) Mode() os.FileMode {
	return os.ModeDir | 0555
}

func (rootFileInfo) ModTime() time.Time {
	return time.Time{}
}

func (rootFileInfo) IsDir() bool {
	return true
}

func (rootFileInfo) Sys() interface{} {
	return nil
}
