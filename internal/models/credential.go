package models

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/desertthunder/barclip/internal/shared"
)

// UploadCredential is a one-time authorization to write a single blob.
type UploadCredential struct {
	OwnerID   string
	UploadURL string

	consumed atomic.Bool
}

// NewUploadCredential creates an unused credential.
func NewUploadCredential(ownerID, uploadURL string) *UploadCredential {
	return &UploadCredential{OwnerID: ownerID, UploadURL: uploadURL}
}

// Consume marks the credential used. Only the first call succeeds.
func (c *UploadCredential) Consume() error {
	if !c.consumed.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: owner %s", shared.ErrCredentialConsumed, c.OwnerID)
	}
	return nil
}

// Consumed reports whether [UploadCredential.Consume] has been called.
func (c *UploadCredential) Consumed() bool { return c.consumed.Load() }

// CompletionEvent signals that server-side trimming finished.
type CompletionEvent struct {
	ResultURL  string
	ReceivedAt time.Time
}
