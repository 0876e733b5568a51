package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/barclip/internal/models"
	"github.com/desertthunder/barclip/internal/server"
	"github.com/desertthunder/barclip/internal/shared"
	"golang.org/x/oauth2"
)

// DefaultSignInTimeout bounds the wait for the browser callback.
const DefaultSignInTimeout = 5 * time.Minute

// SessionStore persists sessions. Implemented by repositories.SessionRepository.
type SessionStore interface {
	Active(ctx context.Context) (*models.Session, error)
	GetByAccount(ctx context.Context, accountID string) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	DeleteByAccount(ctx context.Context, accountID string) error
}

// Options configures an [OAuthProvider].
type Options struct {
	ClientID    string
	Authority   string
	RedirectURI string
	APIScope    string

	SignInTimeout time.Duration
	Store         SessionStore
	Logger        *log.Logger

	// HTTPClient is used for token requests. Nil means [http.DefaultClient].
	HTTPClient *http.Client
	// OpenBrowser launches the authorization URL. Defaults to [shared.OpenBrowser].
	OpenBrowser func(url string) error
	// Out receives the authorization URL when the browser cannot be opened.
	Out io.Writer
}

// OAuthProvider implements the workflow's token provider on top of an OAuth2/OIDC identity provider.
type OAuthProvider struct {
	config       *oauth2.Config
	opts         Options
	store        SessionStore
	logger       *log.Logger
	callbackPath string
}

// Scopes returns the scopes requested at sign-in: the API scope plus the OIDC scopes.
func Scopes(apiScope string) []string {
	scopes := []string{}
	if apiScope != "" {
		scopes = append(scopes, apiScope)
	}
	return append(scopes, "openid", "profile", "offline_access")
}

// Endpoint derives the v2.0 authorize and token endpoints from an authority URL.
func Endpoint(authority string) oauth2.Endpoint {
	base := strings.TrimRight(authority, "/")
	return oauth2.Endpoint{
		AuthURL:   base + "/oauth2/v2.0/authorize",
		TokenURL:  base + "/oauth2/v2.0/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// NewOAuthProvider creates a provider. Missing configuration only fails at sign-in.
func NewOAuthProvider(opts Options) *OAuthProvider {
	if opts.SignInTimeout <= 0 {
		opts.SignInTimeout = DefaultSignInTimeout
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}

	path := server.DefaultCallbackPath
	if u, err := url.Parse(opts.RedirectURI); err == nil && u.Path != "" && u.Path != "/" {
		path = u.Path
	}

	return &OAuthProvider{
		config: &oauth2.Config{
			ClientID:    opts.ClientID,
			Endpoint:    Endpoint(opts.Authority),
			RedirectURL: opts.RedirectURI,
			Scopes:      Scopes(opts.APIScope),
		},
		opts:         opts,
		store:        opts.Store,
		logger:       logger,
		callbackPath: path,
	}
}

// Config exposes the underlying OAuth2 configuration.
func (p *OAuthProvider) Config() *oauth2.Config { return p.config }

// AuthCodeURL builds the authorization URL for state with a PKCE S256 challenge.
// The account picker is always shown.
func (p *OAuthProvider) AuthCodeURL(state, verifier string) string {
	return p.config.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "login"),
	)
}

func (p *OAuthProvider) validate() error {
	var missing []string
	if p.opts.ClientID == "" {
		missing = append(missing, "identity.client_id")
	}
	if p.opts.Authority == "" {
		missing = append(missing, "identity.authority")
	}
	if p.opts.RedirectURI == "" {
		missing = append(missing, "identity.redirect_uri")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %w: %s", shared.ErrAuthFailed, shared.ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

func (p *OAuthProvider) clientContext(ctx context.Context) context.Context {
	if p.opts.HTTPClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, p.opts.HTTPClient)
	}
	return ctx
}

// SignIn runs the browser flow: loopback callback server, authorization URL, code exchange.
// The resulting session becomes the active account.
func (p *OAuthProvider) SignIn(ctx context.Context) (*models.Principal, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	addr, err := server.ListenAddr(p.opts.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	state := shared.GenerateID()
	verifier := oauth2.GenerateVerifier()

	handler := server.NewOAuthHandler(p.config, state, verifier, p.callbackPath)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(p.logger), p.withClient)
	router.Handler(handler)

	srv, err := server.StartCallbackServer(addr, router, p.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	defer srv.Shutdown()

	authURL := p.AuthCodeURL(state, verifier)
	p.logger.Info("opening browser for sign-in", "authority", p.opts.Authority)
	if err := p.opts.OpenBrowser(authURL); err != nil {
		p.logger.Warnf("failed to open browser automatically %v", err)
		fmt.Fprintf(p.opts.Out, "⚠ Could not open browser automatically.\nPlease open this URL in your browser:\n%s\n\n", authURL)
	}

	timeout := time.NewTimer(p.opts.SignInTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-srv.Errors():
		return nil, fmt.Errorf("%w: callback server: %v", shared.ErrAuthFailed, err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: sign-in timed out after %s", shared.ErrTimeout, p.opts.SignInTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return p.Complete(ctx, result.Token)
}

// withClient routes the code exchange through the configured HTTP client.
func (p *OAuthProvider) withClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(p.clientContext(r.Context())))
	})
}

// Complete stores the session for a freshly issued token and returns its principal.
func (p *OAuthProvider) Complete(ctx context.Context, token *oauth2.Token) (*models.Principal, error) {
	rawID, _ := token.Extra("id_token").(string)
	if rawID == "" {
		return nil, fmt.Errorf("%w: token response has no id_token", shared.ErrAuthFailed)
	}

	principal, err := PrincipalFromIDToken(rawID)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		Principal:    *principal,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.Type(),
		Expiry:       token.Expiry,
		IDToken:      rawID,
	}
	if err := p.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	p.logger.Info("signed in", "account", principal.String(), "tenant", principal.TenantID)
	return principal, nil
}

// Active returns the principal of the most recently used session.
func (p *OAuthProvider) Active(ctx context.Context) (*models.Principal, error) {
	session, err := p.store.Active(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
		}
		return nil, err
	}
	return &session.Principal, nil
}

// Session returns the stored session of principal.
func (p *OAuthProvider) Session(ctx context.Context, principal *models.Principal) (*models.Session, error) {
	if principal == nil {
		return nil, shared.ErrNotAuthenticated
	}
	session, err := p.store.GetByAccount(ctx, principal.AccountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}
	return session, nil
}

// Token returns a valid access token for principal, refreshing it silently when it has expired.
// Renewal failures wrap [shared.ErrNotAuthenticated].
func (p *OAuthProvider) Token(ctx context.Context, principal *models.Principal) (string, error) {
	session, err := p.Session(ctx, principal)
	if err != nil {
		return "", err
	}

	current := &oauth2.Token{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		TokenType:    session.TokenType,
		Expiry:       session.Expiry,
	}

	fresh, err := p.config.TokenSource(p.clientContext(ctx), current).Token()
	if err != nil {
		return "", fmt.Errorf("%w: silent renewal failed: %v", shared.ErrNotAuthenticated, err)
	}

	if fresh.AccessToken != session.AccessToken {
		session.AccessToken = fresh.AccessToken
		session.Expiry = fresh.Expiry
		if fresh.RefreshToken != "" {
			session.RefreshToken = fresh.RefreshToken
		}
		if id, ok := fresh.Extra("id_token").(string); ok && id != "" {
			session.IDToken = id
		}
		if err := p.store.Save(ctx, session); err != nil {
			p.logger.Warn("failed to persist refreshed token", "error", err)
		}
		p.logger.Debug("access token refreshed", "account", principal.AccountID, "token", shared.Redact(fresh.AccessToken))
	}

	return fresh.AccessToken, nil
}

// SignOut removes the stored session of principal.
func (p *OAuthProvider) SignOut(ctx context.Context, principal *models.Principal) error {
	if principal == nil {
		return shared.ErrNotAuthenticated
	}
	if err := p.store.DeleteByAccount(ctx, principal.AccountID); err != nil {
		return err
	}
	p.logger.Info("signed out", "account", principal.String())
	return nil
}
