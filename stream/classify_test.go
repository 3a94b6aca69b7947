package stream

import (
	"errors"
	"fmt"
	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"net/http"
	"testing"
)

func responseError(status int) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      errors.New("http error"),
		},
		RequestID: "req-1",
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed not found", &types.NotFound{Message: aws.String("Not Found")}, true},
		{"typed no such key", &types.NoSuchKey{}, true},
		{"wrapped no such key", fmt.Errorf("get: %w", &smithy.OperationError{Err: &types.NoSuchKey{}}), true},
		{"generic code", &smithy.GenericAPIError{Code: "NotFound"}, true},
		{"http 404", responseError(http.StatusNotFound), true},
		{"http 403", responseError(http.StatusForbidden), false},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNotFound(tt.err))
		})
	}
}

func TestIsNoFurtherRange(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"invalid part number", &smithy.GenericAPIError{Code: "InvalidPartNumber"}, true},
		{"invalid range", &smithy.GenericAPIError{Code: "InvalidRange"}, true},
		{"wrapped", &smithy.OperationError{Err: &smithy.GenericAPIError{Code: "InvalidRange"}}, true},
		{"http 416", responseError(http.StatusRequestedRangeNotSatisfiable), true},
		{"http 500", responseError(http.StatusInternalServerError), false},
		{"internal error", &smithy.GenericAPIError{Code: "InternalError"}, false},
		{"no such key", &types.NoSuchKey{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNoFurtherRange(tt.err))
		})
	}
}

func TestError(t *testing.T) {
	cause := errors.New("connection reset")
	err := newError("read", Object{Bucket: "b", Key: "k"}, ErrBodyRead, cause)

	assert.Equal(t, "stream.read b/k: stream: body read error: connection reset", err.Error())
	assert.ErrorIs(t, err, ErrBodyRead)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTransport)

	bare := newError("head", Object{Bucket: "b", Key: "k"}, ErrSizeUnavailable, nil)
	assert.Equal(t, "stream.head b/k: stream: object size unavailable", bare.Error())
	assert.ErrorIs(t, bare, ErrSizeUnavailable)
}
