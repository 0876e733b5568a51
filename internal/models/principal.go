package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/barclip/internal/shared"
)

// Principal is the signed-in account tokens are issued for.
//
// AccountID is the stable account handle (the "oid" claim, falling back to "sub").
type Principal struct {
	AccountID   string
	Username    string
	DisplayName string
	TenantID    string
}

// String returns the most human-friendly identifier available.
func (p *Principal) String() string {
	if p == nil {
		return "<anonymous>"
	}
	for _, s := range []string{p.DisplayName, p.Username, p.AccountID} {
		if s != "" {
			return s
		}
	}
	return "<anonymous>"
}

// Session holds the OAuth tokens for a [Principal].
type Session struct {
	ID           string
	Sequence     int
	Principal    Principal
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	IDToken      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var _ Model = (*Session)(nil)

// Key implements [Model].
func (s *Session) Key() string { return s.ID }

// Validate implements [Model].
func (s *Session) Validate() error {
	if strings.TrimSpace(s.Principal.AccountID) == "" {
		return fmt.Errorf("%w: session requires an account id", shared.ErrInvalidArgument)
	}
	if s.AccessToken == "" {
		return fmt.Errorf("%w: session requires an access token", shared.ErrInvalidArgument)
	}
	return nil
}

// Expired reports whether the access token is past its expiry at now.
// Sessions without an expiry never expire.
func (s *Session) Expired(now time.Time) bool {
	return !s.Expiry.IsZero() && now.After(s.Expiry)
}
