package log

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
)

// FileLogger appends protocol events to a .glog file. Events are
// buffered; Flush or Close makes them visible to readers.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	closed  bool
	written int
	dropped int
}

// NewFileLogger opens path for appending, creating it with a header if
// it does not exist or is empty. An existing file must carry the header.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := prepareForAppend(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &FileLogger{file: f, buf: bufio.NewWriter(f)}, nil
}

func prepareForAppend(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		_, err := f.Write(fileHeader)
		return err
	}

	got := make([]byte, len(fileHeader))
	if _, err := io.ReadFull(f, got); err != nil || !bytes.Equal(got, fileHeader) {
		return ErrNotProtocolLog
	}
	_, err = f.Seek(0, io.SeekEnd)
	return err
}

// Log appends an event. Events that fail to encode are counted in Dropped.
func (l *FileLogger) Log(event Event) {
	data, err := EncodeEvent(event)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	if err == nil {
		_, err = l.buf.Write(data)
	}
	if err != nil {
		l.dropped++
		return
	}
	l.written++
}

// Flush writes buffered events to the file.
func (l *FileLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	return l.buf.Flush()
}

// Written returns how many events were accepted.
func (l *FileLogger) Written() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// Dropped returns how many events could not be written.
func (l *FileLogger) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close flushes and closes the file. Later Log calls are ignored.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	flushErr := l.buf.Flush()
	if err := l.file.Close(); err != nil {
		return err
	}
	return flushErr
}

var _ Logger = (*FileLogger)(nil)
