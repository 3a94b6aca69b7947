package main

import (
	"context"
	"github.com/aws/aws-sdk-go-v2/aws"
	s3config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/eko/gocache/lib/v4/marshaler"
	"github.com/sirupsen/logrus"
	"s3stream/config"
	"s3stream/metrics"
	"s3stream/stream"
	"time"
)

type S3Provider struct {
	Provider
	Client  stream.ObjectAPI
	prober  stream.Prober
	metrics metrics.Recorder
	cfg     *config.Config
}

// NewS3ProviderWithSizeCache returns a provider whose readers share cache for
// object sizes. A nil cache makes every reader send its own HeadObject.
func NewS3ProviderWithSizeCache(client stream.ObjectAPI, cache *marshaler.Marshaler, rec metrics.Recorder, cfg *config.Config) *S3Provider {
	var prober stream.Prober = stream.HeadProber{API: client}
	if cache != nil {
		prober = stream.NewCachedProber(prober, cache, time.Duration(cfg.S3.CacheTime)*time.Second)
	}
	if rec == nil {
		rec = metrics.Discard
	}
	return &S3Provider{
		Client:  client,
		prober:  prober,
		metrics: rec,
		cfg:     cfg,
	}
}

func (s *S3Provider) Open(ctx context.Context, key string) (*stream.Reader, error) {
	return s.OpenBucket(ctx, s.cfg.S3.Bucket, key)
}

func (s *S3Provider) OpenBucket(ctx context.Context, bucket, key string) (*stream.Reader, error) {
	return stream.New(ctx, s.Client, stream.Config{
		Bucket:    bucket,
		Key:       key,
		ChunkSize: s.cfg.Stream.ChunkSize,
		Retries:   s.cfg.Stream.Retries,
	},
		stream.WithProber(s.prober),
		stream.WithMetrics(s.metrics),
		stream.WithLogger(logrus.WithField("component", "stream")),
	)
}

// NewS3Client builds an S3 client from cfg. Static credentials are used when
// both keys are set; otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg config.S3) (*s3.Client, error) {
	var opts []func(*s3config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, s3config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, s3config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	sdkConfig, err := s3config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.EndPoint != "" {
			o.BaseEndpoint = aws.String(cfg.EndPoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}
