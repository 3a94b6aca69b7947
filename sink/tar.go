package sink

import (
	"archive/tar"
	"context"
	"fmt"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	"io"
	"s3stream/stream"
	"time"
)

// Source is a stream whose size is known up front, as a tar header needs it.
type Source interface {
	stream.Puller
	Size() int64
}

// Entry is one archive member.
type Entry struct {
	Name   string
	Source Source
}

type TarOptions struct {
	Gzip       bool
	BufferSize int
	ModTime    time.Time
}

// Tar writes entries to w as a GNU tar archive, one entry after another.
func Tar(ctx context.Context, w io.Writer, entries []Entry, opts TarOptions) error {
	out := w
	var gz *gzip.Writer
	if opts.Gzip {
		gz = gzip.NewWriter(w)
		out = gz
	}
	modTime := opts.ModTime
	if modTime.IsZero() {
		modTime = time.Now()
	}

	tw := tar.NewWriter(out)
	for _, entry := range entries {
		hdr := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     entry.Name,
			Mode:     0o644,
			Size:     entry.Source.Size(),
			ModTime:  modTime,
			Format:   tar.FormatGNU,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("tar header %s: %w", entry.Name, err)
		}

		n, err := ToWriter(ctx, entry.Source, tw, opts.BufferSize)
		if err != nil {
			return fmt.Errorf("tar entry %s: %w", entry.Name, err)
		}
		if n != hdr.Size {
			return fmt.Errorf("tar entry %s: got %d bytes, want %d", entry.Name, n, hdr.Size)
		}
		logrus.Infof("Archived %s (%d bytes)", entry.Name, n)
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if gz != nil {
		return gz.Close()
	}
	return nil
}
