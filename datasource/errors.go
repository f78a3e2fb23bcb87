package datasource

import (
	"fmt"
	"net/http"

	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

type httpStatusError struct {
	message string
	code    int
}

func (e httpStatusError) Error() string { return e.message }

type malformedJSONError struct {
	inner error
}

func (e malformedJSONError) Error() string { return e.inner.Error() }

// isHTTPErrorRecoverable reports whether a status code represents a condition that might resolve
// itself on retry, as opposed to one that should make us stop trying permanently (401, 403, 404,
// and most other 4xx responses).
func isHTTPErrorRecoverable(statusCode int) bool {
	if statusCode >= 400 && statusCode < 500 {
		switch statusCode {
		case http.StatusBadRequest, http.StatusRequestTimeout, http.StatusTooManyRequests:
			return true
		default:
			return false
		}
	}
	return true
}

func httpErrorDescription(statusCode int) string {
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return fmt.Sprintf("HTTP error %d (invalid SDK key)", statusCode)
	}
	return fmt.Sprintf("HTTP error %d", statusCode)
}

func checkIfErrorIsRecoverableAndLog(loggers ldlog.Loggers, errorDesc, errorContext string, statusCode int, willRetryMessage string) bool {
	if statusCode > 0 && !isHTTPErrorRecoverable(statusCode) {
		loggers.Errorf("error %s (giving up permanently): %s", errorContext, errorDesc)
		return false
	}
	loggers.Warnf("error %s (%s): %s", errorContext, willRetryMessage, errorDesc)
	return true
}

func checkForHTTPError(statusCode int, url string) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return httpStatusError{message: fmt.Sprintf("invalid SDK key accessing %s", url), code: statusCode}
	case http.StatusNotFound:
		return httpStatusError{message: fmt.Sprintf("resource not found accessing %s", url), code: statusCode}
	}
	if statusCode/100 != 2 {
		return httpStatusError{message: fmt.Sprintf("unexpected response code %d accessing %s", statusCode, url), code: statusCode}
	}
	return nil
}
