// Package checkpoint decorates errors with the location they passed through.
// A chain of checkpoints reads like a small stack trace while every error
// added to it can still be found with errors.Is and errors.As.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From wraps err into a checkpoint recording the caller.
// It returns nil if err is nil.
func From(err error) error {
	if err == nil || isSentinelEOF(err) {
		return err
	}

	return newCheckpoint(nil, err)
}

// Wrap records the caller and attaches err as the meaning of this checkpoint
// on top of prev. It returns nil if prev is nil, so it can be used directly on
// the result of a call:
//
//	var ErrBootSectorRead = errors.New("could not read the boot sector")
//
//	func readBootSector(r io.Reader, b []byte) error {
//		_, err := io.ReadFull(r, b)
//		return checkpoint.Wrap(err, ErrBootSectorRead)
//	}
//
// Both ErrBootSectorRead and the error returned by io.ReadFull can then be
// checked with errors.Is.
func Wrap(prev, err error) error {
	if prev == nil || isSentinelEOF(prev) {
		return prev
	}

	return newCheckpoint(err, prev)
}

// io.EOF and io.ErrUnexpectedEOF are compared by identity by many readers
// (see https://github.com/golang/go/issues/39155) and must stay untouched.
func isSentinelEOF(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

func newCheckpoint(err, prev error) *checkpoint {
	_, file, line, ok := runtime.Caller(2)
	return &checkpoint{
		err:      err,
		prev:     prev,
		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

type checkpoint struct {
	err  error
	prev error

	callerOk bool
	file     string
	line     int
}

func (c *checkpoint) location() string {
	if !c.callerOk {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", c.file, c.line)
}

func (c *checkpoint) Error() string {
	var b strings.Builder
	b.WriteString(c.location())
	if c.err != nil {
		b.WriteString(": ")
		b.WriteString(c.err.Error())
	}

	prev := c.prev.Error()
	if _, ok := c.prev.(*checkpoint); ok {
		b.WriteString("\n")
	} else {
		b.WriteString("\n\t")
		prev = strings.ReplaceAll(prev, "\n", "\n\t")
	}
	b.WriteString(prev)
	return b.String()
}

func (c *checkpoint) Unwrap() error {
	return c.prev
}

func (c *checkpoint) Is(target error) bool {
	return c.err != nil && errors.Is(c.err, target)
}

func (c *checkpoint) As(target interface{}) bool {
	return c.err != nil && errors.As(c.err, target)
}
