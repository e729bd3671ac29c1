package blobstore

import (
	"net/http"
)

// FailureClass categorizes why an upload attempt failed. The class decides
// whether the attempt is retried, the bucket rotated, or the whole batch
// aborted.
type FailureClass string

const (
	// FailureCORS: cross-origin policy rejection (403 or a CORS-shaped
	// refusal). Retried, then the next candidate bucket is tried.
	FailureCORS FailureClass = "cors"
	// FailureAuth: authorization denied (401). Not retried.
	FailureAuth FailureClass = "auth"
	// FailureNetwork: timeout, cancellation or connection failure. Retried.
	FailureNetwork FailureClass = "network"
	// FailureUnknown: anything else. Not retried, aborts immediately.
	FailureUnknown FailureClass = "unknown"
)

// Transient reports whether an attempt with this class may be retried.
func (c FailureClass) Transient() bool {
	return c == FailureCORS || c == FailureNetwork
}

// UploadError is a classified upload failure for one bucket attempt.
type UploadError struct {
	Class  FailureClass
	Bucket string
	Err    error
}

func (e *UploadError) Error() string {
	return "upload to bucket " + e.Bucket + " failed (" + string(e.Class) + "): " + e.Err.Error()
}

func (e *UploadError) Unwrap() error { return e.Err }

// classifyTransport maps a transport-level error onto a failure class.
// Timeouts, cancellations and connection failures alike: a transport error
// never carries a status code, so it is network-class.
func classifyTransport(err error) FailureClass {
	if err == nil {
		return FailureUnknown
	}
	return FailureNetwork
}

// classifyStatus maps an HTTP status code onto a failure class.
func classifyStatus(status int) FailureClass {
	switch {
	case status == http.StatusForbidden:
		return FailureCORS
	case status == http.StatusUnauthorized:
		return FailureAuth
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return FailureNetwork
	case status >= 500:
		return FailureNetwork
	default:
		return FailureUnknown
	}
}
