package requestutils

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/ioutil"

	"github.com/myzuwa/pawapay-go/libs/closers"
	errorutils "github.com/myzuwa/pawapay-go/libs/errors"
	"github.com/myzuwa/pawapay-go/libs/logging"
)

// CTXKey is a context key type for request scoped values
type CTXKey string

const (
	// RequestID holds the request id in context
	RequestID CTXKey = "request_id"
	// RequestIDHeaderKey is the request header holding the request id
	RequestIDHeaderKey = "x-request-id"
)

var payloadLimit10MB = int64(1024 * 1024 * 10)

// ReadWithLimit reads an io reader with a limit and closes
func ReadWithLimit(ctx context.Context, body io.Reader, limit int64) ([]byte, error) {
	defer closers.Panic(ctx, body.(io.Closer))
	return ioutil.ReadAll(io.LimitReader(body, limit))
}

// Read an io reader
func Read(ctx context.Context, body io.Reader) ([]byte, error) {
	raw, err := ReadWithLimit(ctx, body, payloadLimit10MB)
	if err != nil {
		return nil, errorutils.Wrap(err, "error reading body")
	}
	return raw, nil
}

// ReadJSON reads a request body according to an interface and limits the size to 10MB
func ReadJSON(ctx context.Context, body io.Reader, intr interface{}) error {
	logger := logging.Logger(ctx, "requestutils.ReadJSON")
	if body == nil {
		return errorutils.New(errors.New("body is nil"), "Error in request body", nil)
	}
	raw, err := Read(ctx, body)
	if err != nil {
		return err
	}
	logger.Debug().Str("json", string(raw)).Msg("read payload")
	err = json.Unmarshal(raw, &intr)
	if err != nil {
		return errorutils.Wrap(err, "error unmarshalling body")
	}
	return nil
}
