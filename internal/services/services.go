// package services implements the HTTP shims used by the upload workflow:
// the upload credential endpoint and direct blob storage PUTs.
package services

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

const (
	maxErrorBody      = 512
	maxCredentialBody = 64 << 10
)

// StatusError describes a failed call to the trimming API or blob storage.
//
// Kind is one of the shared sentinels ([shared.ErrCredentialRequest], [shared.ErrBlobUpload]) so callers can
// classify with [errors.Is]. StatusCode is zero when no HTTP response was received.
type StatusError struct {
	Kind       error
	StatusCode int
	Body       string
	Err        error
}

func (e *StatusError) Error() string {
	msg := e.Kind.Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s, body: %s", msg, e.Body)
	}
	return msg
}

// Unwrap exposes both the sentinel kind and the transport cause.
func (e *StatusError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// StatusCode extracts the HTTP status from err, or zero.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "…"
	}
	return string(b)
}

// safeURL drops the query string, which carries SAS signatures.
func safeURL(u *url.URL) string {
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}).String()
}
