package shared

import "errors"

var (
	ErrNotImplemented = errors.New("not implemented")

	// Configuration errors
	ErrMissingConfig = errors.New("configuration not found")
	ErrInvalidConfig = errors.New("invalid configuration")

	// Authentication errors
	ErrAuthFailed       = errors.New("authentication failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrTokenExpired     = errors.New("access token expired")
	ErrSessionNotFound  = errors.New("session not found")
	ErrTimeout          = errors.New("operation timed out")

	// Upload pipeline errors
	ErrInvalidFileKind    = errors.New("not a video file")
	ErrCredentialRequest  = errors.New("upload credential request failed")
	ErrCredentialConsumed = errors.New("upload credential already used")
	ErrBlobUpload         = errors.New("blob upload failed")
	ErrChannelConnection  = errors.New("real-time channel connection failed")
	ErrInvalidTransition  = errors.New("invalid workflow transition")
	ErrAttemptDiscarded   = errors.New("upload attempt discarded")

	// Persistence errors
	ErrAttemptNotFound = errors.New("upload attempt not found")

	// Input validation errors
	ErrMissingArgument = errors.New("missing required argument")
	ErrInvalidArgument = errors.New("invalid argument")
)
