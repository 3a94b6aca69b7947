package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"s3stream/stream"
)

// DefaultBufferSize is the consumer buffer used when none is given.
const DefaultBufferSize = 100000

// Fill pulls from src until buf is full or src is exhausted. It returns the
// number of bytes filled; a short count with a nil error means src is done.
func Fill(ctx context.Context, src stream.Puller, buf []byte) (int, error) {
	filled := 0
	for filled < len(buf) {
		n, err := src.Pull(ctx, buf[filled:])
		filled += n
		if err != nil {
			return filled, err
		}
		if n == 0 {
			break
		}
	}
	return filled, nil
}

// ToWriter pulls src into w until src is exhausted and returns the number of
// bytes written.
func ToWriter(ctx context.Context, src stream.Puller, w io.Writer, bufSize int) (int64, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	buf := make([]byte, bufSize)

	var written int64
	for {
		n, err := src.Pull(ctx, buf)
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, nil
		}
		m, err := w.Write(buf[:n])
		written += int64(m)
		if err != nil {
			return written, err
		}
		if m != n {
			return written, io.ErrShortWrite
		}
	}
}

// ToFile writes src to path, creating or truncating it. Progress, when not
// nil, receives a copy of every byte written.
func ToFile(ctx context.Context, src stream.Puller, path string, bufSize int, progress io.Writer) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	var w io.Writer = file
	if progress != nil {
		w = io.MultiWriter(file, progress)
	}

	n, err := ToWriter(ctx, src, w, bufSize)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return n, fmt.Errorf("write %s: %w", path, err)
	}
	return n, nil
}
