package rofat

import (
	"encoding/binary"
	"errors"
	"io"
)

func getU16(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off:])
}

func getU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}

func putU16(b []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(b[off:], v)
}

func putU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:], v)
}

// readAt seeks to the absolute address and fills b completely.
func readAt(s Stream, address uint64, b []byte) error {
	if _, err := s.Seek(int64(address), io.SeekStart); err != nil {
		return &StreamError{Op: "seek", Err: err}
	}

	_, err := io.ReadFull(s, b)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrStreamEndReached
	}
	if err != nil {
		return &StreamError{Op: "read", Err: err}
	}
	return nil
}
