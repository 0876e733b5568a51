package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/barclip/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// authStatus is the JSON shape of `auth status`.
type authStatus struct {
	Authenticated bool           `json:"authenticated"`
	AccountID     string         `json:"account_id,omitempty"`
	Username      string         `json:"username,omitempty"`
	DisplayName   string         `json:"display_name,omitempty"`
	TenantID      string         `json:"tenant_id,omitempty"`
	Expiry        *time.Time     `json:"expiry,omitempty"`
	Uploads       map[string]int `json:"uploads,omitempty"`
}

// AuthLogin runs the interactive browser sign-in and makes the account active.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	r.writePlain("Opening your browser to sign in...\n")
	principal, err := r.auth.SignIn(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Signed in as %s\n", principal)
}

// AuthStatus reports the active account and when its access token expires.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	principal, err := r.activePrincipal(ctx)
	if err != nil {
		return err
	}

	status := authStatus{}
	if principal != nil {
		session, err := r.auth.Session(ctx, principal)
		if err != nil {
			return err
		}
		status = authStatus{
			Authenticated: true,
			AccountID:     principal.AccountID,
			Username:      principal.Username,
			DisplayName:   principal.DisplayName,
			TenantID:      principal.TenantID,
		}
		if !session.Expiry.IsZero() {
			status.Expiry = &session.Expiry
		}
	}

	if counts, err := r.attempts.CountByStatus(ctx); err == nil && len(counts) > 0 {
		status.Uploads = map[string]int{}
		for s, n := range counts {
			status.Uploads[string(s)] = n
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	if !status.Authenticated {
		r.writePlain("✗ Not signed in\n")
		return r.writePlain("Run 'barclip auth login' to sign in.\n")
	}

	r.writePlain("✓ Signed in as %s\n", principal)
	if status.Username != "" {
		r.writePlain("Username: %s\n", status.Username)
	}
	r.writePlain("Account: %s\n", status.AccountID)
	if status.Expiry != nil {
		if status.Expiry.Before(time.Now()) {
			r.writePlain("Access token: expired %s (renewed on next upload)\n", humanize.Time(*status.Expiry))
		} else {
			r.writePlain("Access token: expires %s\n", humanize.Time(*status.Expiry))
		}
	}
	return nil
}

// AuthLogout removes the active account's session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	principal, err := r.activePrincipal(ctx)
	if err != nil {
		return err
	}
	if principal == nil {
		return fmt.Errorf("%w: nobody is signed in", shared.ErrNotAuthenticated)
	}

	if err := r.auth.SignOut(ctx, principal); err != nil {
		return err
	}
	return r.writePlain("✓ Signed out %s\n", principal)
}
