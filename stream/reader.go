package stream

import (
	"context"
	"errors"
	"fmt"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"io"
	"net/http"
	"s3stream/metrics"
	"time"
)

// maxEmptyReads bounds consecutive (0, nil) body reads before the body is
// treated as broken.
const maxEmptyReads = 100

type state int

const (
	stateIdle state = iota
	stateRequestPending
	stateBodyStreaming
	stateExhausted
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateRequestPending:
		return "request-pending"
	case stateBodyStreaming:
		return "body-streaming"
	case stateExhausted:
		return "exhausted"
	case stateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// byteRange is an inclusive range of object offsets.
type byteRange struct {
	start int64
	end   int64
}

func (r byteRange) header() string {
	return fmt.Sprintf("bytes=%d-%d", r.start, r.end)
}

type rangeResult struct {
	out *s3.GetObjectOutput
	err error
}

type cursor struct {
	downloaded     int64
	chunkSize      int64
	retriesAllowed int
	retriesUsed    int
}

// Config selects the object to stream and how to fetch it.
type Config struct {
	Bucket string
	Key    string

	// ChunkSize is the largest range requested at once.
	ChunkSize int64

	// Retries is the number of body read failures tolerated over the
	// lifetime of the reader. Each retry re-requests the rest of the range
	// that failed.
	Retries int
}

func (c Config) validate() error {
	obj := Object{Bucket: c.Bucket, Key: c.Key}
	if c.Bucket == "" || c.Key == "" {
		return newError("new", obj, ErrInvalidConfig, errors.New("bucket and key are required"))
	}
	if c.ChunkSize <= 0 {
		return newError("new", obj, ErrInvalidConfig, fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize))
	}
	if c.Retries < 0 {
		return newError("new", obj, ErrInvalidConfig, fmt.Errorf("retries must not be negative, got %d", c.Retries))
	}
	return nil
}

// Option customizes a Reader.
type Option func(*Reader)

// WithLogger sets the logger; the bucket and key fields are added to it.
func WithLogger(log *logrus.Entry) Option {
	return func(r *Reader) {
		r.log = log
	}
}

// WithProber replaces the HeadObject probe, e.g. with a CachedProber.
func WithProber(p Prober) Option {
	return func(r *Reader) {
		r.prober = p
	}
}

// WithMetrics sets the recorder for stream events.
func WithMetrics(m metrics.Recorder) Option {
	return func(r *Reader) {
		r.metrics = m
	}
}

// Reader streams one S3 object through successive ranged GET requests.
//
// At most one request or response body is in flight at a time. A Reader is
// meant for a single consumer and is not safe for concurrent use.
type Reader struct {
	api     ObjectAPI
	prober  Prober
	object  Object
	cursor  cursor
	state   state
	log     *logrus.Entry
	metrics metrics.Recorder

	// current is the range of the pending request or the streaming body.
	current byteRange
	pending chan rangeResult
	issued  time.Time
	body    io.ReadCloser
	bodyErr error

	err error

	ctx    context.Context
	cancel context.CancelFunc
}

var (
	_ Puller    = &Reader{}
	_ io.Reader = &Reader{}
)

// New probes the object size once and returns a Reader positioned at offset
// zero. ctx bounds the probe; range requests inherit its values but not its
// cancellation and are cancelled by Close. No Reader is returned on error.
func New(ctx context.Context, api ObjectAPI, cfg Config, opts ...Option) (*Reader, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	r := &Reader{
		api:     api,
		prober:  HeadProber{API: api},
		log:     logrus.NewEntry(logrus.StandardLogger()),
		metrics: metrics.Discard,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithFields(logrus.Fields{"bucket": cfg.Bucket, "key": cfg.Key})

	size, err := r.prober.Size(ctx, cfg.Bucket, cfg.Key)
	if err != nil {
		r.metrics.RecordFailure(cfg.Bucket, "head")
		return nil, err
	}

	r.object = Object{Bucket: cfg.Bucket, Key: cfg.Key, Size: size}
	r.cursor = cursor{chunkSize: cfg.ChunkSize, retriesAllowed: cfg.Retries}
	r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))
	r.log.Debugf("stream opened, size %d, chunk %d", size, cfg.ChunkSize)
	return r, nil
}

// Object returns the bucket, key and size of the streamed object.
func (r *Reader) Object() Object { return r.object }

// Size returns the object size learned when the reader was created.
func (r *Reader) Size() int64 { return r.object.Size }

// Downloaded returns the number of bytes delivered so far.
func (r *Reader) Downloaded() int64 { return r.cursor.downloaded }

// RetriesUsed returns the number of body read failures retried so far.
func (r *Reader) RetriesUsed() int { return r.cursor.retriesUsed }

// Pull copies the next bytes of the object into buf. It returns (0, nil)
// once the whole object was delivered and never otherwise. A request is never
// larger than buf, so one call returns at most len(buf) bytes of a single
// range.
//
// If ctx ends while a range request is pending, Pull returns ctx.Err() and
// the request stays pending for the next call. Any other error is terminal
// and returned again by every later call.
func (r *Reader) Pull(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		if r.state == stateFailed {
			return 0, r.err
		}
		return 0, nil
	}

	emptyReads := 0
	for {
		switch r.state {
		case stateExhausted:
			return 0, nil

		case stateFailed:
			return 0, r.err

		case stateBodyStreaming:
			if r.bodyErr != nil {
				cause := r.bodyErr
				r.bodyErr = nil
				if err := r.retryBody(cause); err != nil {
					return 0, err
				}
				continue
			}

			if err := ctx.Err(); err != nil {
				return 0, err
			}
			p := buf
			if remaining := r.current.end - r.cursor.downloaded + 1; int64(len(p)) > remaining {
				p = p[:remaining]
			}
			n, interrupted, err := r.readBody(ctx, p)
			if interrupted {
				// The body was closed under the read; the rest of the range is
				// requested again on the next call.
				r.body = nil
				r.state = stateIdle
				if n > 0 {
					r.cursor.downloaded += int64(n)
					r.metrics.RecordBytes(r.object.Bucket, n)
					return n, nil
				}
				return 0, ctx.Err()
			}
			if n > 0 {
				r.cursor.downloaded += int64(n)
				r.metrics.RecordBytes(r.object.Bucket, n)
				switch {
				case r.cursor.downloaded > r.current.end || errors.Is(err, io.EOF):
					r.dropBody()
				case err != nil:
					r.bodyErr = err
				}
				return n, nil
			}

			switch {
			case err == nil:
				emptyReads++
				if emptyReads >= maxEmptyReads {
					if err := r.retryBody(io.ErrNoProgress); err != nil {
						return 0, err
					}
					emptyReads = 0
				}
			case errors.Is(err, io.EOF) && r.cursor.downloaded == r.current.start:
				// No byte of this range arrived.
				if err := r.retryBody(io.ErrUnexpectedEOF); err != nil {
					return 0, err
				}
			case errors.Is(err, io.EOF):
				// The range ended, possibly short of current.end; the next
				// request starts wherever the body stopped.
				r.dropBody()
			default:
				if err := r.retryBody(err); err != nil {
					return 0, err
				}
			}

		case stateRequestPending:
			select {
			case res := <-r.pending:
				r.pending = nil
				r.metrics.RecordRangeResponse(r.object.Bucket, time.Since(r.issued).Seconds())
				if res.err != nil {
					if IsNoFurtherRange(res.err) {
						r.log.Debugf("no further range at %d", r.current.start)
						r.state = stateExhausted
						return 0, nil
					}
					return 0, r.fail("get", ErrTransport, res.err)
				}
				if err := r.checkResponseStart(res.out); err != nil {
					if res.out.Body != nil {
						res.out.Body.Close()
					}
					return 0, r.fail("get", ErrTransport, err)
				}
				r.body = res.out.Body
				if r.body == nil {
					r.body = http.NoBody
				}
				r.state = stateBodyStreaming
			case <-ctx.Done():
				return 0, ctx.Err()
			}

		case stateIdle:
			if r.cursor.downloaded >= r.object.Size {
				r.state = stateExhausted
				return 0, nil
			}
			r.issue(r.nextRange(len(buf)))
		}
	}
}

// Read implements io.Reader on top of Pull, reporting exhaustion as io.EOF.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.Pull(r.ctx, p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, io.EOF
	}
	return n, err
}

// Close abandons any in-flight request or body. No abort is sent to S3.
// Later calls to Pull return ErrClosed unless the reader had already failed.
func (r *Reader) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.pending != nil {
		go discardResult(r.pending)
		r.pending = nil
	}
	var err error
	if r.body != nil {
		err = r.body.Close()
		r.body = nil
	}
	r.bodyErr = nil
	if r.state != stateFailed {
		r.state = stateFailed
		r.err = newError("close", r.object, ErrClosed, nil)
	}
	return err
}

// nextRange clamps the next request to the chunk size, the caller's buffer
// and the end of the object.
func (r *Reader) nextRange(capacity int) byteRange {
	chunk := min(r.cursor.chunkSize, int64(capacity))
	start := r.cursor.downloaded
	return byteRange{start: start, end: min(start+chunk-1, r.object.Size-1)}
}

func (r *Reader) issue(rng byteRange) {
	r.current = rng
	r.issued = time.Now()
	r.state = stateRequestPending
	r.metrics.RecordRangeRequest(r.object.Bucket)

	ch := make(chan rangeResult, 1)
	r.pending = ch

	api, ctx := r.api, r.ctx
	input := &s3.GetObjectInput{
		Bucket: aws.String(r.object.Bucket),
		Key:    aws.String(r.object.Key),
		Range:  aws.String(rng.header()),
	}
	go func() {
		out, err := api.GetObject(ctx, input)
		ch <- rangeResult{out: out, err: err}
	}()
}

// readBody reads from the current body and closes it if ctx ends first.
// interrupted reports that the body was closed and must not be used again.
func (r *Reader) readBody(ctx context.Context, p []byte) (n int, interrupted bool, err error) {
	body := r.body
	stop := context.AfterFunc(ctx, func() {
		body.Close()
	})
	n, err = body.Read(p)
	if !stop() {
		return n, true, err
	}
	return n, false, err
}

// checkResponseStart verifies that a range response starts at the requested
// offset. A response without Content-Range that is longer than the range is
// taken to be the whole object.
func (r *Reader) checkResponseStart(out *s3.GetObjectOutput) error {
	if out.ContentRange != nil {
		var start, end int64
		if _, err := fmt.Sscanf(aws.ToString(out.ContentRange), "bytes %d-%d", &start, &end); err != nil {
			return fmt.Errorf("unparsable Content-Range %q", aws.ToString(out.ContentRange))
		}
		if start != r.current.start {
			return fmt.Errorf("response starts at %d, requested %s", start, r.current.header())
		}
		return nil
	}
	if out.ContentLength != nil && *out.ContentLength > r.current.end-r.current.start+1 && r.current.start != 0 {
		return fmt.Errorf("range %s ignored, got %d bytes from offset 0", r.current.header(), *out.ContentLength)
	}
	return nil
}

// retryBody re-requests the undelivered rest of the current range, or fails
// the reader once the retry budget is spent.
func (r *Reader) retryBody(cause error) error {
	r.dropBody()
	if r.cursor.retriesUsed >= r.cursor.retriesAllowed {
		return r.fail("read", ErrBodyRead, cause)
	}
	r.cursor.retriesUsed++
	r.metrics.RecordRetry(r.object.Bucket)

	rng := byteRange{start: r.cursor.downloaded, end: r.current.end}
	r.log.WithError(cause).Warnf("retrying %s (%d/%d)", rng.header(), r.cursor.retriesUsed, r.cursor.retriesAllowed)
	r.issue(rng)
	return nil
}

func (r *Reader) dropBody() {
	if r.body != nil {
		if err := r.body.Close(); err != nil {
			r.log.WithError(err).Debug("closing response body")
		}
		r.body = nil
	}
	r.state = stateIdle
}

func (r *Reader) fail(op string, kind, cause error) error {
	r.err = newError(op, r.object, kind, cause)
	r.state = stateFailed
	r.metrics.RecordFailure(r.object.Bucket, op)
	r.log.WithError(cause).Errorf("stream failed at offset %d of %d", r.cursor.downloaded, r.object.Size)
	return r.err
}

func discardResult(ch <-chan rangeResult) {
	if res := <-ch; res.out != nil && res.out.Body != nil {
		res.out.Body.Close()
	}
}
