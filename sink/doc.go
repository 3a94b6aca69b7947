// Package sink drives stream.Puller values into local files, tar archives and
// multipart uploads.
package sink
