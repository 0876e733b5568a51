package workflow

import (
	"context"

	"github.com/desertthunder/barclip/internal/models"
)

// TokenProvider issues bearer tokens for a principal.
type TokenProvider interface {
	// Token returns a valid access token, renewing silently when needed.
	Token(ctx context.Context, principal *models.Principal) (string, error)
	// SignIn runs the interactive sign-in and returns the new principal.
	SignIn(ctx context.Context) (*models.Principal, error)
}

// CredentialRequester obtains one-time upload credentials.
type CredentialRequester interface {
	RequestCredential(ctx context.Context, token string) (*models.UploadCredential, error)
}

// BlobUploader writes the file to the location named by the credential.
type BlobUploader interface {
	Upload(ctx context.Context, cred *models.UploadCredential, file *models.SelectedFile) error
}

// Notifier opens completion subscriptions.
type Notifier interface {
	Subscribe(ctx context.Context, token string) (Subscription, error)
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(ctx context.Context, token string) (Subscription, error)

func (f NotifierFunc) Subscribe(ctx context.Context, token string) (Subscription, error) {
	return f(ctx, token)
}

// Subscription delivers completion events until closed.
type Subscription interface {
	Events() <-chan models.CompletionEvent
	Done() <-chan struct{}
	Err() error
	Close() error
}

// Recorder persists attempt history. Failures are logged and otherwise ignored.
type Recorder interface {
	Create(ctx context.Context, attempt *models.UploadAttempt) error
	Update(ctx context.Context, attempt *models.UploadAttempt) error
}
