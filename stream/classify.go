package stream

import (
	"errors"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"net/http"
)

// Error codes S3 uses when a range starts at or beyond the end of an object.
var noFurtherRangeCodes = map[string]struct{}{
	"InvalidPartNumber": {},
	"InvalidRange":      {},
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	switch errorCode(err) {
	case "NotFound", "NoSuchKey":
		return true
	}
	return statusCode(err) == http.StatusNotFound
}

// IsNoFurtherRange reports whether err means the requested range lies past
// the end of the object.
func IsNoFurtherRange(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := noFurtherRangeCodes[errorCode(err)]; ok {
		return true
	}
	return statusCode(err) == http.StatusRequestedRangeNotSatisfiable
}

func errorCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return ""
}

func statusCode(err error) int {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}
