package closers

import (
	"context"
	"io"

	loggingutils "github.com/myzuwa/pawapay-go/libs/logging"
)

// Log calls Close on the specified closer, logging any error
func Log(ctx context.Context, c io.Closer) {
	logger := loggingutils.FromContext(ctx)

	if err := c.Close(); err != nil {
		logger.Error().Err(err).Msg("error attempting to close")
	}
}

// Panic calls Close on the specified closer, panicing on error
func Panic(ctx context.Context, c io.Closer) {
	if err := c.Close(); err != nil {
		panic(err.Error())
	}
}
