package context

import "errors"

// CTXKey - a type for context keys
type CTXKey string

const (
	// EnvironmentCTXKey - the key used for the runtime environment (local|sandbox|production)
	EnvironmentCTXKey CTXKey = "environment"
	// DebugLoggingCTXKey - context key for debug logging
	DebugLoggingCTXKey CTXKey = "debug_logging"
	// LogLevelCTXKey - context key for the log level
	LogLevelCTXKey CTXKey = "log_level"
	// LogWriterCTXKey - context key for overriding the log writer
	LogWriterCTXKey CTXKey = "log_writer"
	// LoggerCTXKey - context key for the zerolog logger
	LoggerCTXKey CTXKey = "logger"

	// DatastoreCTXKey - the context key for getting the datastore
	DatastoreCTXKey CTXKey = "datastore"
	// DatabaseURLCTXKey - the context key for the database connection url
	DatabaseURLCTXKey CTXKey = "database_url"

	// PawaPayServerCTXKey - the context key for the pawapay api base url
	PawaPayServerCTXKey CTXKey = "pawapay_server"
	// PawaPayAccessTokenCTXKey - the context key for the pawapay api bearer token
	PawaPayAccessTokenCTXKey CTXKey = "pawapay_access_token"
	// WebhookSecretCTXKey - the context key for the webhook shared secret
	WebhookSecretCTXKey CTXKey = "webhook_secret"

	// GatewayCountryCTXKey - the context key for the marketplace's mobile money country
	GatewayCountryCTXKey CTXKey = "gateway_country"
	// OperatorCacheTTLCTXKey - the context key for the operator directory cache ttl
	OperatorCacheTTLCTXKey CTXKey = "operator_cache_ttl"

	// VersionCTXKey - context key for version of code
	VersionCTXKey CTXKey = "version"
	// CommitCTXKey - context key for the commit of the code
	CommitCTXKey CTXKey = "commit"
	// BuildTimeCTXKey - context key for the build time of code
	BuildTimeCTXKey CTXKey = "build_time"
)

var (
	// ErrNotInContext - error you get when you ask for something not in the context
	ErrNotInContext = errors.New("failed to get value from context")
	// ErrValueWrongType - error you get when you ask for something and it is not the type you expected
	ErrValueWrongType = errors.New("context value of wrong type")
)
