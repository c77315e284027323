package errors

// ErrorCode identifies a category of application error
type ErrorCode int32

const (
	ErrorCode_HTTP_OK ErrorCode = 0

	// General
	ErrorCode_INTERNAL         ErrorCode = 1000
	ErrorCode_INVALID_ARGUMENT ErrorCode = 1001
	ErrorCode_NOT_FOUND        ErrorCode = 1002
	ErrorCode_INVALID_PAYLOAD  ErrorCode = 1003

	// Authentication
	ErrorCode_UNAUTHENTICATED       ErrorCode = 2000
	ErrorCode_AUTH_INVALID_TOKEN    ErrorCode = 2001
	ErrorCode_AUTH_TOKEN_EXPIRED    ErrorCode = 2002
	ErrorCode_WEBHOOK_TOKEN_INVALID ErrorCode = 2003

	// Pipeline
	ErrorCode_AUDIO_ITEM_NOT_FOUND ErrorCode = 3000
	ErrorCode_DISPATCH_FAILED      ErrorCode = 3001
	ErrorCode_ORPHAN_CALLBACK      ErrorCode = 3002
	ErrorCode_SUMMARY_FAILED       ErrorCode = 3003
	ErrorCode_AMBIGUOUS_DISPATCH   ErrorCode = 3004
	ErrorCode_NOT_TRANSCRIBED      ErrorCode = 3005

	// Integrations
	ErrorCode_STORAGE_FAILED       ErrorCode = 4000
	ErrorCode_PROVIDER_FAILED      ErrorCode = 4001
	ErrorCode_EVENT_PUBLISH_FAILED ErrorCode = 4002

	// Database
	ErrorCode_DB_QUERY_FAILED ErrorCode = 5000
)

var codeNames = map[ErrorCode]string{
	ErrorCode_HTTP_OK:               "OK",
	ErrorCode_INTERNAL:              "INTERNAL",
	ErrorCode_INVALID_ARGUMENT:      "INVALID_ARGUMENT",
	ErrorCode_NOT_FOUND:             "NOT_FOUND",
	ErrorCode_INVALID_PAYLOAD:       "INVALID_PAYLOAD",
	ErrorCode_UNAUTHENTICATED:       "UNAUTHENTICATED",
	ErrorCode_AUTH_INVALID_TOKEN:    "AUTH_INVALID_TOKEN",
	ErrorCode_AUTH_TOKEN_EXPIRED:    "AUTH_TOKEN_EXPIRED",
	ErrorCode_WEBHOOK_TOKEN_INVALID: "WEBHOOK_TOKEN_INVALID",
	ErrorCode_AUDIO_ITEM_NOT_FOUND:  "AUDIO_ITEM_NOT_FOUND",
	ErrorCode_DISPATCH_FAILED:       "DISPATCH_FAILED",
	ErrorCode_ORPHAN_CALLBACK:       "ORPHAN_CALLBACK",
	ErrorCode_SUMMARY_FAILED:        "SUMMARY_FAILED",
	ErrorCode_AMBIGUOUS_DISPATCH:    "AMBIGUOUS_DISPATCH",
	ErrorCode_NOT_TRANSCRIBED:       "NOT_TRANSCRIBED",
	ErrorCode_STORAGE_FAILED:        "STORAGE_FAILED",
	ErrorCode_PROVIDER_FAILED:       "PROVIDER_FAILED",
	ErrorCode_EVENT_PUBLISH_FAILED:  "EVENT_PUBLISH_FAILED",
	ErrorCode_DB_QUERY_FAILED:       "DB_QUERY_FAILED",
}

// String returns the symbolic name of the code
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}
