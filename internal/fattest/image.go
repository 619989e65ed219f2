// Package fattest builds small FAT images in memory for tests.
// It encodes everything on its own and does not depend on the rofat package.
package fattest

import (
	"errors"
	"io"
)

const blockSize = 512

// Image is a sparse in memory disk image. Blocks which were never written read as zero.
type Image struct {
	size   int64
	pos    int64
	blocks map[int64]*[blockSize]byte
}

// NewImage creates an empty image with the given size in bytes.
func NewImage(size int64) *Image {
	return &Image{size: size, blocks: map[int64]*[blockSize]byte{}}
}

// Size returns the size of the image in bytes.
func (m *Image) Size() int64 {
	return m.size
}

func (m *Image) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("fattest: negative offset")
	}
	if off >= m.size {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && off < m.size {
		block, inBlock := off/blockSize, off%blockSize
		chunk := blockSize - inBlock
		if rest := m.size - off; chunk > rest {
			chunk = rest
		}
		if want := int64(len(p) - n); chunk > want {
			chunk = want
		}

		if b, ok := m.blocks[block]; ok {
			copy(p[n:n+int(chunk)], b[inBlock:inBlock+chunk])
		} else {
			clear(p[n : n+int(chunk)])
		}
		n += int(chunk)
		off += chunk
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt writes p at off. Writing past the size of the image fails.
func (m *Image) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > m.size {
		return 0, errors.New("fattest: write out of bounds")
	}

	n := 0
	for n < len(p) {
		block, inBlock := off/blockSize, off%blockSize
		b, ok := m.blocks[block]
		if !ok {
			b = new([blockSize]byte)
			m.blocks[block] = b
		}
		c := copy(b[inBlock:], p[n:])
		n += c
		off += int64(c)
	}
	return n, nil
}

func (m *Image) Read(p []byte) (int, error) {
	n, err := m.ReadAt(p, m.pos)
	m.pos += int64(n)
	return n, err
}

func (m *Image) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = m.pos + offset
	case io.SeekEnd:
		abs = m.size + offset
	default:
		return 0, errors.New("fattest: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("fattest: negative position")
	}
	m.pos = abs
	return abs, nil
}

// Bytes returns the whole image as one slice.
func (m *Image) Bytes() []byte {
	b := make([]byte, m.size)
	_, _ = m.ReadAt(b, 0)
	return b
}

// Clone returns an independent copy of the image with its position reset.
func (m *Image) Clone() *Image {
	c := NewImage(m.size)
	for i, b := range m.blocks {
		cp := *b
		c.blocks[i] = &cp
	}
	return c
}
