package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"io"
	"os"
	"path"
	"s3stream/config"
	"s3stream/metrics"
	"s3stream/sink"
	"s3stream/stream"
)

func newProvider(ctx context.Context, cfg *config.Config, rec metrics.Recorder) (*S3Provider, error) {
	client, err := NewS3Client(ctx, cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	cache, err := newSizeCache(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("create size cache: %w", err)
	}
	return NewS3ProviderWithSizeCache(client, cache, rec, cfg), nil
}

func requireArgs(c *cli.Context, n int) error {
	if c.NArg() < n {
		return fmt.Errorf("%s: expected %d arguments, got %d\nusage: %s %s", c.Command.Name, n, c.NArg(), c.Command.Name, c.Command.ArgsUsage)
	}
	return nil
}

func serveCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve objects of S3_BUCKET over HTTP",
		Action: func(c *cli.Context) error {
			if cfg.S3.Bucket == "" {
				return errors.New("S3_BUCKET is required")
			}
			rec := metrics.NewPromMetrics(prometheus.DefaultRegisterer)
			provider, err := newProvider(c.Context, cfg, rec)
			if err != nil {
				return err
			}
			router := newRouter(*cfg, provider, prometheus.DefaultGatherer)
			logrus.Infoln("Listening on", cfg.Listen)
			return router.Run(cfg.Listen)
		},
	}
}

func downloadCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "download an object to a local file",
		ArgsUsage: "<key> <path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bucket", Usage: "source bucket (default S3_BUCKET)"},
			&cli.BoolFlag{Name: "progress", Value: true, Usage: "show a progress bar"},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 2); err != nil {
				return err
			}
			key, dest := c.Args().Get(0), c.Args().Get(1)

			provider, err := newProvider(c.Context, cfg, metrics.Discard)
			if err != nil {
				return err
			}
			reader, err := provider.OpenBucket(c.Context, bucketOr(c.String("bucket"), cfg.S3.Bucket), key)
			if err != nil {
				return err
			}
			defer reader.Close()

			var bar *progressbar.ProgressBar
			if c.Bool("progress") {
				bar = progressbar.DefaultBytes(reader.Size(), "downloading")
			}
			n, err := sink.ToFile(c.Context, reader, dest, cfg.Stream.BufferSize, progressWriter(bar))
			if err != nil {
				return err
			}
			logrus.Infof("Downloaded %s to %s (%d bytes)", key, dest, n)
			return nil
		},
	}
}

func copyCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "copy",
		Usage:     "copy an object to COPY_BUCKET with a multipart upload",
		ArgsUsage: "<key> [destination key]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bucket", Usage: "source bucket (default S3_BUCKET)"},
			&cli.StringFlag{Name: "to-bucket", Usage: "destination bucket (default COPY_BUCKET)"},
			&cli.BoolFlag{Name: "progress", Value: true, Usage: "show a progress bar"},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			key := c.Args().Get(0)
			destKey := c.Args().Get(1)
			if destKey == "" {
				destKey = key
			}
			destBucket := bucketOr(c.String("to-bucket"), cfg.Copy.Bucket)
			if destBucket == "" {
				return errors.New("destination bucket is required (COPY_BUCKET or --to-bucket)")
			}

			client, err := NewS3Client(c.Context, cfg.S3)
			if err != nil {
				return fmt.Errorf("create s3 client: %w", err)
			}
			provider := NewS3ProviderWithSizeCache(client, nil, metrics.Discard, cfg)
			reader, err := provider.OpenBucket(c.Context, bucketOr(c.String("bucket"), cfg.S3.Bucket), key)
			if err != nil {
				return err
			}
			defer reader.Close()

			var bar *progressbar.ProgressBar
			if c.Bool("progress") {
				bar = progressbar.DefaultBytes(reader.Size(), "copying")
			}
			res, err := sink.Copy(c.Context, client, reader, destBucket, destKey, sink.CopyOptions{
				PartSize: cfg.Copy.PartSize,
				OnPart: func(number int32, size int) {
					if bar != nil {
						bar.Add(size)
					}
					logrus.Debugf("Part %d is uploaded", number)
				},
			})
			if err != nil {
				return err
			}
			logrus.Infof("Copied %s to %s/%s in %d parts (%d bytes)", key, res.Bucket, res.Key, res.Parts, res.Size)
			return nil
		},
	}
}

func tarCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "tar",
		Usage:     "archive several objects into a local tar file",
		ArgsUsage: "<output> <key>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bucket", Usage: "source bucket (default S3_BUCKET)"},
			&cli.BoolFlag{Name: "gzip", Aliases: []string{"z"}, Usage: "compress the archive"},
			&cli.BoolFlag{Name: "full-path", Usage: "name entries by full key instead of base name"},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 2); err != nil {
				return err
			}
			output := c.Args().First()
			keys := c.Args().Tail()
			bucket := bucketOr(c.String("bucket"), cfg.S3.Bucket)

			provider, err := newProvider(c.Context, cfg, metrics.Discard)
			if err != nil {
				return err
			}

			readers, err := openAll(c.Context, provider, bucket, keys)
			defer func() {
				for _, r := range readers {
					if r != nil {
						r.Close()
					}
				}
			}()
			if err != nil {
				return err
			}

			entries := make([]sink.Entry, len(keys))
			for i, key := range keys {
				name := path.Base(key)
				if c.Bool("full-path") {
					name = key
				}
				entries[i] = sink.Entry{Name: name, Source: readers[i]}
			}

			file, err := os.Create(output)
			if err != nil {
				return err
			}
			err = sink.Tar(c.Context, file, entries, sink.TarOptions{
				Gzip:       c.Bool("gzip"),
				BufferSize: cfg.Stream.BufferSize,
			})
			if closeErr := file.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			logrus.Infof("Wrote %d objects to %s", len(entries), output)
			return nil
		},
	}
}

// openAll probes every key concurrently; archiving stays sequential. The
// readers opened before a failure are returned so they can be closed.
func openAll(ctx context.Context, p Provider, bucket string, keys []string) ([]*stream.Reader, error) {
	readers := make([]*stream.Reader, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		g.Go(func() error {
			reader, err := p.OpenBucket(gctx, bucket, key)
			if err != nil {
				return err
			}
			readers[i] = reader
			return nil
		})
	}
	err := g.Wait()
	return readers, err
}

func signCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "sign",
		Usage:     "print the server path for an object key",
		ArgsUsage: "<key>",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, signedPath(*cfg, c.Args().First()))
			return nil
		},
	}
}

func bucketOr(bucket, fallback string) string {
	if bucket != "" {
		return bucket
	}
	return fallback
}

// progressWriter avoids handing ToFile a typed nil writer.
func progressWriter(bar *progressbar.ProgressBar) io.Writer {
	if bar == nil {
		return nil
	}
	return bar
}
