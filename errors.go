package rofat

import (
	"errors"
	"fmt"
)

// I/O errors.
var (
	// ErrStreamEndReached is returned if the stream ended before an exact
	// amount of bytes could be read.
	ErrStreamEndReached = errors.New("stream end reached")
	ErrStreamInUse      = errors.New("stream is already in use")
	ErrFlushFailed      = errors.New("could not flush the device")
)

// These errors may occur while opening the filesystem.
var (
	ErrFatSignatureInvalid = errors.New("boot sector signature is not 0x55 0xAA")
	ErrReadBootSector      = errors.New("could not read the boot sector")
	ErrReadFSInfo          = errors.New("could not read the FSInfo sector")
)

// DeviceError is returned when the device refused to hand out its stream.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device: %v", e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// StreamError is a fault of the underlying stream itself.
type StreamError struct {
	Op  string
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream %s: %v", e.Op, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// CharacterError names an invalid character of a file name and its position.
type CharacterError struct {
	Character uint16
	Offset    int
}

func (e *CharacterError) Error() string {
	return fmt.Sprintf("invalid character 0x%04X at offset %d", e.Character, e.Offset)
}
