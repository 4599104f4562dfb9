// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
)

const (
	DefaultBufferSize = 4 * 1024 * 1024
)

var (
	// ErrFinished is returned by writes after Finish.
	ErrFinished = errors.New("payload writer already finished")
	// ErrShortPayload means fewer bytes were available than the index implies.
	ErrShortPayload = errors.New("payload shorter than expected")
)

type nopWriter struct{}

func (nopWriter) Write([]byte) (int, error) {
	return 0, io.EOF
}

// Writer appends raw, already-encoded tokens to a payload file.  There is no
// framing: the file is exactly the concatenation of everything appended.
//
// Once a write fails the Writer is poisoned and returns that error forever;
// the partially-written payload must be discarded.
type Writer struct {
	w        *bufio.Writer
	off      int64
	err      error
	finished atomic.Bool
}

// NewWriter returns a Writer appending to f, which is usually an *os.File
// positioned at offset 0.
func NewWriter(f io.Writer, bufferSize int) *Writer {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Writer{
		w: bufio.NewWriterSize(f, bufferSize),
	}
}

func (w *Writer) check() error {
	if w.err != nil {
		return w.err
	}
	if w.finished.Load() {
		return ErrFinished
	}
	return nil
}

// Append writes raw to the end of the payload, returning the byte offset it
// was written at.
func (w *Writer) Append(raw []byte) (off int64, err error) {
	if err := w.check(); err != nil {
		return 0, err
	}
	off = w.off
	n, err := w.w.Write(raw)
	w.off += int64(n)
	if err != nil {
		w.err = fmt.Errorf("bufio.Write: %w", err)
		return 0, w.err
	}
	return off, nil
}

// AppendFrom copies exactly n bytes from r onto the end of the payload.
func (w *Writer) AppendFrom(r io.Reader, n int64) (off int64, err error) {
	if err := w.check(); err != nil {
		return 0, err
	}
	off = w.off
	copied, err := io.CopyN(w.w, r, n)
	w.off += copied
	if errors.Is(err, io.EOF) {
		w.err = fmt.Errorf("%w: copied %d of %d bytes", ErrShortPayload, copied, n)
		return 0, w.err
	} else if err != nil {
		w.err = fmt.Errorf("io.CopyN: %w", err)
		return 0, w.err
	}
	return off, nil
}

// Len is the number of bytes appended so far.
func (w *Writer) Len() int64 {
	return w.off
}

// Finish flushes buffered data.  It does not close the underlying file.
func (w *Writer) Finish() error {
	if alreadyFinished := w.finished.Swap(true); alreadyFinished {
		// nothing to do - already cleaned up
		return w.err
	}
	if w.err != nil {
		return w.err
	}

	defer func() {
		w.w.Reset(nopWriter{})
	}()

	if err := w.w.Flush(); err != nil {
		w.err = fmt.Errorf("bufio.Flush: %w", err)
		return w.err
	}
	return nil
}
