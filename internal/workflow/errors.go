package workflow

import (
	"errors"
	"fmt"

	"github.com/desertthunder/barclip/internal/shared"
)

// ErrorKind classifies workflow failures.
type ErrorKind int

const (
	InvalidFileKind ErrorKind = iota + 1
	NotAuthenticated
	CredentialRequestFailed
	BlobUploadFailed
	ChannelConnectionFailed
	CompletionTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidFileKind:
		return "InvalidFileKind"
	case NotAuthenticated:
		return "NotAuthenticated"
	case CredentialRequestFailed:
		return "CredentialRequestFailed"
	case BlobUploadFailed:
		return "BlobUploadFailed"
	case ChannelConnectionFailed:
		return "ChannelConnectionFailed"
	case CompletionTimeout:
		return "CompletionTimeout"
	default:
		return "Unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case InvalidFileKind:
		return shared.ErrInvalidFileKind
	case NotAuthenticated:
		return shared.ErrNotAuthenticated
	case CredentialRequestFailed:
		return shared.ErrCredentialRequest
	case BlobUploadFailed:
		return shared.ErrBlobUpload
	case ChannelConnectionFailed:
		return shared.ErrChannelConnection
	case CompletionTimeout:
		return shared.ErrTimeout
	default:
		return nil
	}
}

// Message is the user-facing text for the kind.
func (k ErrorKind) Message() string {
	switch k {
	case InvalidFileKind:
		return "Please select a video file only."
	case NotAuthenticated:
		return "User not logged in. Redirecting to sign in..."
	case CredentialRequestFailed:
		return "Failed to get upload SAS URL"
	case BlobUploadFailed:
		return "Upload failed"
	case ChannelConnectionFailed:
		return "Real-time connection failed"
	case CompletionTimeout:
		return "Timed out waiting for the trimmed video"
	default:
		return "Unexpected error"
	}
}

// Error is a classified workflow failure. Status is the HTTP status when one was received.
type Error struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Message()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Err != nil && e.Status == 0 {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the matching shared sentinel and the cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Retryable reports whether [Workflow.Retry] may resend the same file.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case CredentialRequestFailed, BlobUploadFailed, ChannelConnectionFailed, CompletionTimeout:
		return true
	default:
		return false
	}
}

// AsError extracts a workflow [Error] from err.
func AsError(err error) (*Error, bool) {
	var we *Error
	if errors.As(err, &we) {
		return we, true
	}
	return nil, false
}
