// Package stream reads an S3 object as a sequential byte stream made of
// successive ranged GET requests.
//
// A Reader never holds more than one range in flight and never buffers more
// than the caller's buffer can absorb: each request is clamped to
// min(chunk size, len(buf)). Consumers call Pull until it returns zero bytes
// with a nil error, or use Read, which reports the same condition as io.EOF.
package stream
