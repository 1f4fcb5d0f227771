// Package pkg provides disk-backed helpers shared by defectbench commands.
package pkg

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// ErrSpillClosed is returned by operations on a closed FileSpill.
var ErrSpillClosed = errors.New("filespill is closed")

// FileSpill is an append-only, disk-backed list of items of type T. Trial
// outcomes carry captured process output, so a run keeps them here rather
// than on the heap until the report is aggregated.
type FileSpill[T any] interface {
	Len() uint64
	Append(item T) error
	Range(f func(index uint64, item T) error) error
	Close() error
}

// frameHeaderSize is the fixed-width length prefix of every record.
const frameHeaderSize = 4

// fileSpill stores each item as an independent gob frame, so a record never
// depends on type information written by an earlier one.
type fileSpill[T any] struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *bufio.Writer
	count  uint64
	end    int64
}

// DefaultSpillDir is used when NewFileSpill is given an empty directory.
var DefaultSpillDir = filepath.Join(os.TempDir(), "defectbench-spill")

// NewFileSpill creates a new FileSpill for items of type T under dir.
func NewFileSpill[T any](dir string) (FileSpill[T], error) {
	if dir == "" {
		dir = DefaultSpillDir
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create spill dir: %w", err)
	}

	file, err := os.CreateTemp(dir, "outcomes-*.spill")
	if err != nil {
		return nil, fmt.Errorf("create spill file: %w", err)
	}

	slog.Debug("Created outcome spill", "path", file.Name())

	return &fileSpill[T]{
		path:   file.Name(),
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (f *fileSpill[T]) Len() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.count
}

// Append encodes item as a new frame at the end of the file.
func (f *fileSpill[T]) Append(item T) error {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(item); err != nil {
		return fmt.Errorf("encode spill item: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return fmt.Errorf("append to %s: %w", f.path, ErrSpillClosed)
	}

	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(payload.Len()))

	if _, err := f.writer.Write(header[:]); err != nil {
		return fmt.Errorf("write spill frame: %w", err)
	}

	if _, err := f.writer.Write(payload.Bytes()); err != nil {
		return fmt.Errorf("write spill frame: %w", err)
	}

	f.count++
	f.end += int64(frameHeaderSize + payload.Len())

	return nil
}

// Range decodes every item in append order. An error from fn stops the
// iteration and is returned unchanged.
func (f *fileSpill[T]) Range(fn func(index uint64, item T) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return ErrSpillClosed
	}

	if err := f.writer.Flush(); err != nil {
		return fmt.Errorf("flush spill: %w", err)
	}

	reader := bufio.NewReader(io.NewSectionReader(f.file, 0, f.end))

	for i := range f.count {
		item, err := readFrame[T](reader)
		if err != nil {
			return fmt.Errorf("decode item %d: %w", i, err)
		}

		if err := fn(i, item); err != nil {
			return err
		}
	}

	return nil
}

// Close removes the backing file. Closing twice is a no-op.
func (f *fileSpill[T]) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}

	closeErr := f.file.Close()
	f.file = nil
	f.writer = nil

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.Join(closeErr, fmt.Errorf("remove spill file: %w", err))
	}

	slog.Debug("Closed outcome spill", "path", f.path, "items", f.count)

	return closeErr
}

func readFrame[T any](r io.Reader) (T, error) {
	var item T

	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return item, err
	}

	payload := make([]byte, binary.BigEndian.Uint32(header[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return item, err
	}

	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&item); err != nil {
		return item, err
	}

	return item, nil
}
