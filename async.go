package rofat

import (
	"context"
	"io"
	"os"
)

// Pool runs filesystem operations on a bounded set of goroutines for callers
// which must not block. Waiting for a free worker and for the result can be
// cancelled through the context; an operation which already started runs to
// its end in the background.
//
// With a SingleAccessDevice operations of more than one worker fail with
// ErrStreamInUse when they overlap. Use a ReaderAtDevice or a single worker.
type Pool struct {
	fs    *Fs
	slots chan struct{}
}

func NewPool(fs *Fs, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{fs: fs, slots: make(chan struct{}, workers)}
}

func (p *Pool) do(ctx context.Context, fn func() error) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan error, 1)
	go func() {
		defer func() { <-p.slots }()
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Open opens name for reading.
func (p *Pool) Open(ctx context.Context, name string) (*File, error) {
	var f *File
	err := p.do(ctx, func() error {
		var err error
		f, err = p.fs.open(name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ReadFile reads the whole content of name.
func (p *Pool) ReadFile(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := p.do(ctx, func() error {
		f, err := p.fs.open(name)
		if err != nil {
			return err
		}
		defer f.Close()

		data, err = io.ReadAll(f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Stat returns the file info of name.
func (p *Pool) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	var info os.FileInfo
	err := p.do(ctx, func() error {
		var err error
		info, err = p.fs.Stat(name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}
