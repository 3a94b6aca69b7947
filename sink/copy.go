package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
	"s3stream/stream"
)

// DefaultPartSize is the smallest part size S3 accepts for multipart uploads.
const DefaultPartSize = 5 * 1024 * 1024

// MultipartAPI is the part of the S3 client a Copy needs.
type MultipartAPI interface {
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

var _ MultipartAPI = (*s3.Client)(nil)

type CopyResult struct {
	Bucket string
	Key    string
	Parts  int
	Size   int64
	ETag   string
}

// CopyOptions tunes a Copy. OnPart, when set, is called after each part is
// uploaded with the part number and its size.
type CopyOptions struct {
	PartSize int64
	OnPart   func(number int32, size int)
}

// Copy re-uploads src to bucket/key as a multipart upload. Each part is
// filled by repeated pulls until it holds PartSize bytes or src is
// exhausted. The upload is aborted if any step fails.
func Copy(ctx context.Context, api MultipartAPI, src stream.Puller, bucket, key string, opts CopyOptions) (*CopyResult, error) {
	partSize := opts.PartSize
	if partSize <= 0 {
		partSize = DefaultPartSize
	}

	created, err := api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("create multipart upload %s/%s: %w", bucket, key, err)
	}
	uploadID := aws.ToString(created.UploadId)
	if uploadID == "" {
		return nil, errors.New("missing upload id after CreateMultipartUpload")
	}

	result := &CopyResult{Bucket: bucket, Key: key}
	parts, err := uploadParts(ctx, api, src, bucket, key, uploadID, partSize, opts.OnPart, result)
	if err != nil {
		abort(ctx, api, bucket, key, uploadID)
		return nil, err
	}

	completed, err := api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		abort(ctx, api, bucket, key, uploadID)
		return nil, fmt.Errorf("complete multipart upload %s/%s: %w", bucket, key, err)
	}
	result.ETag = aws.ToString(completed.ETag)
	logrus.Infof("Copied %d bytes to %s/%s in %d parts", result.Size, bucket, key, result.Parts)
	return result, nil
}

func uploadParts(
	ctx context.Context,
	api MultipartAPI,
	src stream.Puller,
	bucket, key, uploadID string,
	partSize int64,
	onPart func(int32, int),
	result *CopyResult,
) ([]types.CompletedPart, error) {
	buf := make([]byte, partSize)
	var parts []types.CompletedPart

	for number := int32(1); ; number++ {
		n, err := Fill(ctx, src, buf)
		if err != nil {
			return nil, fmt.Errorf("download part %d: %w", number, err)
		}
		// An empty object still needs one (empty) part.
		if n == 0 && len(parts) > 0 {
			return parts, nil
		}

		out, err := api.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(bucket),
			Key:           aws.String(key),
			UploadId:      aws.String(uploadID),
			PartNumber:    aws.Int32(number),
			Body:          bytes.NewReader(buf[:n]),
			ContentLength: aws.Int64(int64(n)),
		})
		if err != nil {
			return nil, fmt.Errorf("upload part %d: %w", number, err)
		}
		logrus.Debugf("Part %d of %s/%s uploaded (%d bytes)", number, bucket, key, n)

		parts = append(parts, types.CompletedPart{
			ETag:       out.ETag,
			PartNumber: aws.Int32(number),
		})
		result.Parts++
		result.Size += int64(n)
		if onPart != nil {
			onPart(number, n)
		}
		if int64(n) < partSize {
			return parts, nil
		}
	}
}

func abort(ctx context.Context, api MultipartAPI, bucket, key, uploadID string) {
	_, err := api.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		logrus.Errorln("Error aborting multipart upload", uploadID, err)
	}
}
