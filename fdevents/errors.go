package fdevents

import "fmt"

// isHTTPErrorRecoverable reports whether an HTTP error status might resolve on its own if
// retried. 401/403/404/410 are treated as permanent (spec §4.4: "permanent failures disable the
// pipeline"); 400/408/429 are recoverable; everything else is treated as recoverable too.
func isHTTPErrorRecoverable(statusCode int) bool {
	switch statusCode {
	case 401, 403, 404, 410:
		return false
	}
	if statusCode >= 400 && statusCode < 500 {
		switch statusCode {
		case 400, 408, 429:
			return true
		default:
			return false
		}
	}
	return true
}

func httpErrorMessage(statusCode int, context string, recoverableMessage string) string {
	resultMessage := recoverableMessage
	if !isHTTPErrorRecoverable(statusCode) {
		resultMessage = "giving up permanently"
	}
	return fmt.Sprintf("received HTTP error %d for %s - %s", statusCode, context, resultMessage)
}
