package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/barclip/internal/shared"
)

// AttemptStatus is the coarse, persisted outcome of an upload attempt.
type AttemptStatus string

const (
	AttemptPending    AttemptStatus = "pending"    // credential requested
	AttemptUploading  AttemptStatus = "uploading"  // bytes in flight
	AttemptProcessing AttemptStatus = "processing" // waiting for the trim result
	AttemptCompleted  AttemptStatus = "completed"
	AttemptFailed     AttemptStatus = "failed"
	AttemptDiscarded  AttemptStatus = "discarded" // reset while in flight
)

// Terminal reports whether no further transition is expected.
func (s AttemptStatus) Terminal() bool {
	switch s {
	case AttemptCompleted, AttemptFailed, AttemptDiscarded:
		return true
	default:
		return false
	}
}

// UploadAttempt records one pass through the upload workflow.
//
// The pre-signed upload URL is deliberately absent: it is a bearer secret.
type UploadAttempt struct {
	ID         string
	Sequence   int
	AccountID  string
	FileName   string
	MIMEType   string
	Size       int64
	OwnerID    string
	Status     AttemptStatus
	StatusCode int
	Error      string
	ResultURL  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

var _ Model = (*UploadAttempt)(nil)

// NewUploadAttempt starts a pending attempt for file on behalf of principal (which may be nil).
func NewUploadAttempt(principal *Principal, file *SelectedFile) *UploadAttempt {
	now := time.Now().UTC()
	a := &UploadAttempt{
		ID:        shared.GenerateID(),
		FileName:  file.Name,
		MIMEType:  file.MIMEType,
		Size:      file.Size,
		Status:    AttemptPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if principal != nil {
		a.AccountID = principal.AccountID
	}
	return a
}

// Key implements [Model].
func (a *UploadAttempt) Key() string { return a.ID }

// Validate implements [Model].
func (a *UploadAttempt) Validate() error {
	if strings.TrimSpace(a.FileName) == "" {
		return fmt.Errorf("%w: attempt requires a file name", shared.ErrInvalidArgument)
	}
	switch a.Status {
	case AttemptPending, AttemptUploading, AttemptProcessing, AttemptCompleted, AttemptFailed, AttemptDiscarded:
	default:
		return fmt.Errorf("%w: unknown attempt status %q", shared.ErrInvalidArgument, a.Status)
	}
	return nil
}

// Duration is the time between creation and the last update.
func (a *UploadAttempt) Duration() time.Duration {
	return a.UpdatedAt.Sub(a.CreatedAt)
}
