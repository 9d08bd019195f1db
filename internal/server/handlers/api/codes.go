package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeNotFound       = "E_NOT_FOUND"       // unknown route

	// Distribution errors
	CodePlatformNotFound = "E_PLATFORM_NOT_FOUND"         // nothing is published for the platform.
	CodeFileNotFound     = "E_FILE_NOT_FOUND"             // the requested file is not published.
	CodeInvalidPath      = "E_INVALID_PATH"               // the requested path is not a valid object key.
	CodeBlobGetFailed    = "E_BLOB_GET_OPERATION_FAILED"  // a failure while reading an object.
	CodeBlobListFailed   = "E_BLOB_LIST_OPERATION_FAILED" // a failure while listing objects.
)
