// Package metrics collects counters about ranged object streams.
package metrics

// Recorder receives stream events. Implementations must be safe for
// concurrent use since one recorder is shared by every reader.
type Recorder interface {
	// RecordRangeRequest records a ranged GET issued against bucket.
	RecordRangeRequest(bucket string)

	// RecordRangeResponse records how long a ranged GET took to resolve.
	RecordRangeResponse(bucket string, duration float64)

	// RecordBytes records bytes delivered to a consumer.
	RecordBytes(bucket string, count int)

	// RecordRetry records a body read failure that was retried.
	RecordRetry(bucket string)

	// RecordFailure records a terminal failure during op.
	RecordFailure(bucket, op string)
}

// Discard drops every event.
var Discard Recorder = discard{}

type discard struct{}

func (discard) RecordRangeRequest(string)           {}
func (discard) RecordRangeResponse(string, float64) {}
func (discard) RecordBytes(string, int)             {}
func (discard) RecordRetry(string)                  {}
func (discard) RecordFailure(string, string)        {}
