package sink

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"os"
	"path/filepath"
	"s3stream/internal/testutil"
	"s3stream/stream"
	"testing"
	"time"
)

const srcBucket = "source"

func openReader(t *testing.T, bucket *testutil.FakeBucket, key string, chunk int64) *stream.Reader {
	t.Helper()
	r, err := stream.New(context.Background(), bucket, stream.Config{
		Bucket:    srcBucket,
		Key:       key,
		ChunkSize: chunk,
		Retries:   3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

// failingPuller delivers data and then fails.
type failingPuller struct {
	data []byte
	err  error
}

func (p *failingPuller) Pull(_ context.Context, buf []byte) (int, error) {
	if len(p.data) == 0 {
		return 0, p.err
	}
	n := copy(buf, p.data)
	p.data = p.data[n:]
	return n, nil
}

func TestFill(t *testing.T) {
	bucket := testutil.NewFakeBucket()
	bucket.Put(srcBucket, "obj", []byte("0123456789"))
	r := openReader(t, bucket, "obj", 3)

	buf := make([]byte, 8)
	n, err := Fill(context.Background(), r, buf)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, "01234567", string(buf))

	n, err = Fill(context.Background(), r, buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "89", string(buf[:n]))

	n, err = Fill(context.Background(), r, buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestToFile(t *testing.T) {
	data := testutil.RandomData(250_000)
	bucket := testutil.NewFakeBucket()
	bucket.Put(srcBucket, "files/1.jpeg", data)
	r := openReader(t, bucket, "files/1.jpeg", 100_000)

	path := filepath.Join(t.TempDir(), "1.jpeg")
	var progress bytes.Buffer
	n, err := ToFile(context.Background(), r, path, 100_000, &progress)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, len(data), progress.Len())
}

func TestToWriter_Error(t *testing.T) {
	boom := errors.New("boom")
	var out bytes.Buffer

	n, err := ToWriter(context.Background(), &failingPuller{data: []byte("partial"), err: boom}, &out, 4)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, "partial", out.String())
}

func readTar(t *testing.T, r io.Reader) map[string][]byte {
	t.Helper()
	files := map[string][]byte{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return files
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[hdr.Name] = data
	}
}

func TestTar(t *testing.T) {
	small := []byte("jpeg bytes")
	large := testutil.RandomData(300_000)
	bucket := testutil.NewFakeBucket()
	bucket.Put(srcBucket, "files/1.jpeg", small)
	bucket.Put(srcBucket, "files/135mb.mp4", large)

	for _, compress := range []bool{false, true} {
		entries := []Entry{
			{Name: "1.jpeg", Source: openReader(t, bucket, "files/1.jpeg", 4096)},
			{Name: "135mb.mp4", Source: openReader(t, bucket, "files/135mb.mp4", 65536)},
		}

		var buf bytes.Buffer
		err := Tar(context.Background(), &buf, entries, TarOptions{Gzip: compress, ModTime: time.Unix(0, 0)})
		require.NoError(t, err)

		var r io.Reader = &buf
		if compress {
			gz, err := gzip.NewReader(&buf)
			require.NoError(t, err)
			r = gz
		}
		files := readTar(t, r)
		assert.Equal(t, small, files["1.jpeg"])
		assert.Equal(t, large, files["135mb.mp4"])
	}
}

type sizedPuller struct {
	failingPuller
	size int64
}

func (p *sizedPuller) Size() int64 { return p.size }

func TestTar_ShortEntry(t *testing.T) {
	src := &sizedPuller{failingPuller: failingPuller{data: []byte("abc")}, size: 10}

	err := Tar(context.Background(), io.Discard, []Entry{{Name: "short", Source: src}}, TarOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 3 bytes, want 10")
}

func TestCopy(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		partSize  int64
		wantParts int
	}{
		{name: "empty object", size: 0, partSize: 1000, wantParts: 1},
		{name: "single short part", size: 999, partSize: 1000, wantParts: 1},
		{name: "exact multiple", size: 3000, partSize: 1000, wantParts: 3},
		{name: "trailing part", size: 3500, partSize: 1000, wantParts: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := testutil.RandomData(tt.size)
			bucket := testutil.NewFakeBucket()
			bucket.Put(srcBucket, "in", data)
			r := openReader(t, bucket, "in", 256)

			var sizes []int
			res, err := Copy(context.Background(), bucket, r, "target", "out", CopyOptions{
				PartSize: tt.partSize,
				OnPart:   func(_ int32, size int) { sizes = append(sizes, size) },
			})
			require.NoError(t, err)

			assert.Equal(t, tt.wantParts, res.Parts)
			assert.Equal(t, int64(tt.size), res.Size)
			assert.Len(t, sizes, tt.wantParts)
			assert.NotEmpty(t, res.ETag)

			got, ok := bucket.Object("target", "out")
			require.True(t, ok)
			assert.Equal(t, data, got)
		})
	}
}

func TestCopy_AbortsOnFailure(t *testing.T) {
	t.Run("download failure", func(t *testing.T) {
		bucket := testutil.NewFakeBucket()
		boom := errors.New("boom")

		_, err := Copy(context.Background(), bucket, &failingPuller{data: []byte("abc"), err: boom}, "target", "out", CopyOptions{PartSize: 2})
		assert.ErrorIs(t, err, boom)
		assert.Len(t, bucket.Aborted(), 1)
		_, ok := bucket.Object("target", "out")
		assert.False(t, ok)
	})

	t.Run("upload failure", func(t *testing.T) {
		bucket := testutil.NewFakeBucket()
		bucket.Put(srcBucket, "in", testutil.RandomData(100))
		bucket.UploadPartHook = func(in *s3.UploadPartInput) error {
			if aws.ToInt32(in.PartNumber) == 2 {
				return errors.New("slow down")
			}
			return nil
		}
		r := openReader(t, bucket, "in", 16)

		_, err := Copy(context.Background(), bucket, r, "target", "out", CopyOptions{PartSize: 40})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upload part 2")
		assert.Equal(t, []string{"upload-1"}, bucket.Aborted())
	})
}

func TestCopy_CreateFailure(t *testing.T) {
	api := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			return nil, errors.New("access denied")
		},
	}

	_, err := Copy(context.Background(), api, &failingPuller{}, "target", "out", CopyOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create multipart upload target/out")
}
