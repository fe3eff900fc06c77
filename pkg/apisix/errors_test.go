package apisix_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fivetwenty-io/apisix-client/pkg/apisix"
)

func TestNewHTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{name: "error_msg", body: `{"error_msg":"invalid configuration"}`, expected: "PUT /apisix/admin/routes/1: status 400: invalid configuration"},
		{name: "message", body: `{"message":"Key not found"}`, expected: "PUT /apisix/admin/routes/1: status 400: Key not found"},
		{name: "plain text", body: "bad gateway\n", expected: "PUT /apisix/admin/routes/1: status 400: bad gateway"},
		{name: "empty", body: "", expected: "PUT /apisix/admin/routes/1: status 400"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := apisix.NewHTTPError(http.MethodPut, "/apisix/admin/routes/1", http.StatusBadRequest, []byte(testCase.body))
			assert.Equal(t, testCase.expected, err.Error())
		})
	}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	notFound := fmt.Errorf("getting route: %w", apisix.NewHTTPError(http.MethodGet, "/r", http.StatusNotFound, nil))
	badRequest := apisix.NewHTTPError(http.MethodPost, "/r", http.StatusBadRequest, nil)
	serverErr := apisix.NewHTTPError(http.MethodGet, "/r", http.StatusBadGateway, nil)
	network := &apisix.NetworkError{Method: http.MethodGet, URL: "/r", Err: errors.New("connection refused")}
	timeout := &apisix.TimeoutError{Method: http.MethodGet, URL: "/r", Timeout: time.Second, Err: context.DeadlineExceeded}
	validation := fmt.Errorf("operation 2: %w", &apisix.ValidationError{Field: "key", Reason: "is required"})
	parse := &apisix.ParseError{Format: "yaml", Index: 3, Err: apisix.ErrRecordNotObject}

	assert.True(t, apisix.IsNotFound(notFound))
	assert.True(t, apisix.IsClientError(notFound))
	assert.Equal(t, http.StatusNotFound, apisix.StatusCode(notFound))

	assert.True(t, apisix.IsBadRequest(badRequest))
	assert.False(t, apisix.IsNotFound(badRequest))

	assert.False(t, apisix.IsClientError(serverErr))
	assert.False(t, apisix.IsNetworkError(serverErr))

	assert.True(t, apisix.IsNetworkError(network))
	assert.False(t, apisix.IsTimeout(network))
	assert.Zero(t, apisix.StatusCode(network))

	assert.True(t, apisix.IsTimeout(timeout))
	assert.True(t, apisix.IsNetworkError(timeout))
	assert.ErrorIs(t, timeout, context.DeadlineExceeded)

	assert.True(t, apisix.IsValidationError(validation))
	assert.Equal(t, "operation 2: validation failed: key: is required", validation.Error())

	assert.True(t, apisix.IsParseError(parse))
	assert.ErrorIs(t, parse, apisix.ErrRecordNotObject)
	assert.Equal(t, "parsing yaml record 3: record is not an object", parse.Error())

	assert.False(t, apisix.IsNotFound(nil))
	assert.Zero(t, apisix.StatusCode(nil))
}
