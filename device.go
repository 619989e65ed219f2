package rofat

import (
	"io"
	"sync"

	"github.com/aligator/rofat/checkpoint"
)

// Stream is the seekable byte stream of a storage device.
// Generated mock using mockgen:
//
//	mockgen -source=device.go -destination=device_mock_test.go -package rofat
type Stream interface {
	io.Reader
	io.Seeker
}

// Device hands out its stream to exactly one scope at a time.
// The stream must not be used after fn returned.
type Device interface {
	WithStream(fn func(s Stream) error) error
}

// Flusher is implemented by devices which buffer writes.
type Flusher interface {
	Flush() error
}

// withStream runs fn inside a device scope and keeps errors of the device
// apart from the errors returned by fn.
func withStream(d Device, fn func(s Stream) error) error {
	var inner error
	err := d.WithStream(func(s Stream) error {
		inner = fn(s)
		return nil
	})
	if err != nil {
		return &DeviceError{Err: err}
	}
	return inner
}

// SingleAccessDevice wraps one stream.
// Scopes are not queued: a second scope while one is active fails with ErrStreamInUse.
type SingleAccessDevice struct {
	stream Stream
	inUse  sync.Mutex
}

func NewSingleAccessDevice(stream Stream) *SingleAccessDevice {
	return &SingleAccessDevice{stream: stream}
}

func (d *SingleAccessDevice) WithStream(fn func(s Stream) error) error {
	if !d.inUse.TryLock() {
		return ErrStreamInUse
	}
	defer d.inUse.Unlock()

	return fn(d.stream)
}

// Flush forwards to the Sync or Flush method of the stream, if it has one.
func (d *SingleAccessDevice) Flush() error {
	return d.WithStream(func(s Stream) error {
		var err error
		switch f := s.(type) {
		case interface{ Sync() error }:
			err = f.Sync()
		case Flusher:
			err = f.Flush()
		}
		return checkpoint.Wrap(err, ErrFlushFailed)
	})
}

// ReaderAtDevice gives every scope its own section reader.
// Scopes may run concurrently as long as the io.ReaderAt allows parallel reads, like os.File does.
type ReaderAtDevice struct {
	r    io.ReaderAt
	size int64
}

func NewReaderAtDevice(r io.ReaderAt, size int64) *ReaderAtDevice {
	return &ReaderAtDevice{r: r, size: size}
}

func (d *ReaderAtDevice) WithStream(fn func(s Stream) error) error {
	return fn(io.NewSectionReader(d.r, 0, d.size))
}
