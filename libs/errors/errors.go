package errors

// ErrorBundle - an error with an underlying cause and attached state,
// used to carry the http state of a failed upstream call alongside a
// caller facing message
type ErrorBundle struct {
	cause   error
	message string
	data    interface{}
}

// New creates a new ErrorBundle
func New(cause error, message string, data interface{}) error {
	return &ErrorBundle{
		cause,
		message,
		data,
	}
}

// Data from error origin
func (err *ErrorBundle) Data() interface{} {
	return err.data
}

// Cause returns the associated cause
func (err *ErrorBundle) Cause() error {
	return err.cause
}

// Unwrap returns the associated cause, supporting errors.Is / errors.As
func (err *ErrorBundle) Unwrap() error {
	return err.cause
}

// Error turns into an error
func (err *ErrorBundle) Error() string {
	return err.message
}

// Wrap wraps an error
func Wrap(cause error, message string) error {
	return &ErrorBundle{
		cause:   cause,
		message: message,
		data:    nil,
	}
}
