package bundlesdk

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/imroc/req/v3"
)

const (
	CodeTimeout     = "E_TIMEOUT"     // request exceeded its deadline
	CodeUnreachable = "E_UNREACHABLE" // connection could not be made or was dropped
	CodeNotFound    = "E_NOT_FOUND"   // remote object does not exist
	CodeServer      = "E_SERVER"      // remote returned a 5xx
	CodeEmpty       = "E_EMPTY"       // remote returned an empty body where content is required
	CodeBadContent  = "E_BAD_CONTENT" // remote content could not be decoded
	CodeCanceled    = "E_CANCELED"    // caller canceled the request
	CodeUnknown     = "E_UNKNOWN_ERR" // anything else
)

var ErrTransport = errors.New("sdk: transport error")

type SDKError interface {
	error
	ErrorCode() string
	ErrorMessage() string
}

// TransportError is returned for every failed request to the distribution server.
type TransportError struct {
	Code       string
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sdk: %s %s: %s (http %d)", e.Op, e.URL, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("sdk: %s %s: %s: %v", e.Op, e.URL, e.Code, e.Err)
}

func (e *TransportError) ErrorCode() string { return e.Code }

func (e *TransportError) ErrorMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransport so callers can test the category without the type.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Timeout reports whether the failure was a deadline.
func (e *TransportError) Timeout() bool { return e.Code == CodeTimeout }

var _ SDKError = (*TransportError)(nil)

// handleAPIError turns a request error or an error status into a TransportError
func handleAPIError(resp *req.Response, requestErr error, op, url string) error {
	if requestErr != nil {
		return &TransportError{Code: errorCode(requestErr), Op: op, URL: url, Err: requestErr}
	}

	if resp.IsErrorState() {
		code := CodeUnknown
		switch status := resp.GetStatusCode(); {
		case status == http.StatusNotFound:
			code = CodeNotFound
		case status >= http.StatusInternalServerError:
			code = CodeServer
		}
		return &TransportError{Code: code, Op: op, URL: url, StatusCode: resp.GetStatusCode()}
	}

	return nil
}

func errorCode(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.As(err, &netErr) && netErr.Timeout():
		return CodeTimeout
	default:
		// refused, reset, dns and the like
		return CodeUnreachable
	}
}
