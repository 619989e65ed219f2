package rofat

import (
	"io"

	"github.com/spf13/afero"
)

// IOFS returns the filesystem as io/fs.FS.
// Directories returned by it implement fs.ReadDirFile.
func (fs *Fs) IOFS() afero.IOFS {
	return afero.NewIOFS(fs)
}

// NewIOFS opens a FAT filesystem from the given reader as io/fs.FS compatible filesystem.
func NewIOFS(reader io.ReadSeeker, opts ...Option) (afero.IOFS, error) {
	fs, err := New(reader, opts...)
	if err != nil {
		return afero.IOFS{}, err
	}
	return fs.IOFS(), nil
}
