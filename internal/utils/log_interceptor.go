// Package utils holds small filesystem, URL and logging helpers shared by the client and server.
package utils

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// LogInterceptor implements io.Writer and prefixes every complete line with a
// sequence number and a timestamp before passing it to the target writer.
// Incomplete trailing data is held back until its newline arrives or Close is called.
type LogInterceptor struct {
	target         io.Writer
	sequenceNumber atomic.Uint64
	pending        bytes.Buffer
	mu             sync.Mutex
}

func NewLogInterceptor(target io.Writer) *LogInterceptor {
	return &LogInterceptor{target: target}
}

func (i *LogInterceptor) writeFormattedLine(line []byte) error {
	lineNum := i.sequenceNumber.Add(1)

	prefix := slog.Uint64("line", lineNum).String() + " " +
		slog.String("time", time.Now().Format(time.RFC3339)).String() + " "
	if _, err := io.WriteString(i.target, prefix); err != nil {
		return err
	}

	line = bytes.TrimRight(line, "\r")
	if _, err := i.target.Write(line); err != nil {
		return err
	}
	_, err := io.WriteString(i.target, "\n")
	return err
}

// Write implements io.Writer. It always reports len(p) on success since the
// caller's bytes are consumed even when they are still buffered.
func (i *LogInterceptor) Write(p []byte) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.pending.Write(p)
	for {
		idx := bytes.IndexByte(i.pending.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := i.pending.Next(idx + 1)
		if err := i.writeFormattedLine(line[:idx]); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Close flushes a trailing line without newline.
func (i *LogInterceptor) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.pending.Len() == 0 {
		return nil
	}
	rest := bytes.Clone(i.pending.Bytes())
	i.pending.Reset()
	return i.writeFormattedLine(rest)
}
