// Package sink holds the destinations of received blocks and decoded values.
package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrShortFile is returned by File.Close when fewer bytes were written than
// declared. The file is left on disk.
var ErrShortFile = errors.New("short file")

// File writes a raw block verbatim to disk.
type File struct {
	f        *os.File
	path     string
	written  uint64
	declared uint64
	chunks   int
}

// Create opens path for writing, truncating any existing file.
func Create(path string) (*File, error) {
	s := NewFile(path)
	if err := s.create(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewFile returns a sink that creates path on the first non-empty write, so
// a transfer that fails before any payload arrives leaves no file behind.
func NewFile(path string) *File {
	return &File{path: path}
}

func (s *File) create() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.path, err)
	}
	s.f = f
	return nil
}

// Declare records the total length the file is expected to reach.
func (s *File) Declare(total uint64) {
	s.declared = total
}

func (s *File) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.f == nil {
		if err := s.create(); err != nil {
			return 0, err
		}
	}
	n, err := s.f.Write(p)
	s.written += uint64(n)
	if n > 0 {
		s.chunks++
	}
	if err != nil {
		return n, fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return n, nil
}

// Written returns the number of bytes written so far.
func (s *File) Written() uint64 {
	return s.written
}

// Chunks returns the number of non-empty writes.
func (s *File) Chunks() int {
	return s.chunks
}

// Path returns the absolute file name if it can be determined.
func (s *File) Path() string {
	if abs, err := filepath.Abs(s.path); err == nil {
		return abs
	}
	return s.path
}

// Created reports whether the file exists on disk.
func (s *File) Created() bool {
	return s.f != nil
}

// Close closes the file and reports a short file if a declared total was not
// reached.
func (s *File) Close() error {
	if s.f != nil {
		if err := s.f.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", s.path, err)
		}
	}
	if s.declared > 0 && s.written < s.declared {
		return fmt.Errorf("%w: %s has %d of %d bytes", ErrShortFile, s.path, s.written, s.declared)
	}
	return nil
}
