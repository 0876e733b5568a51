package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/barclip/internal/auth"
	"github.com/desertthunder/barclip/internal/models"
	"github.com/desertthunder/barclip/internal/realtime"
	"github.com/desertthunder/barclip/internal/repositories"
	"github.com/desertthunder/barclip/internal/services"
	"github.com/desertthunder/barclip/internal/shared"
	"github.com/desertthunder/barclip/internal/workflow"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	db         *sql.DB
	sessions   *repositories.SessionRepository
	attempts   *repositories.AttemptRepository
	auth       *auth.OAuthProvider
	openURL    func(string) error
	copy       func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	// DB is opened from the config on first use when nil.
	DB *sql.DB
	// OpenURL launches the browser, both for sign-in and for result links.
	OpenURL func(string) error
	Copy    func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.OpenURL == nil {
		opts.OpenURL = shared.OpenBrowser
	}
	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		openURL:    opts.OpenURL,
		copy:       opts.Copy,
	}
	if opts.DB != nil {
		r.useDatabase(opts.DB)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, uploadCommand, batchCommand, historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and everything it builds afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	if r.db != nil {
		r.useDatabase(r.db)
	}
}

// Close releases the database.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// open connects to the configured database on first use.
func (r *Runner) open() error {
	if r.db != nil {
		return nil
	}
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", r.config.Database.Path, err)
	}
	r.useDatabase(db)
	return nil
}

func (r *Runner) useDatabase(db *sql.DB) {
	r.db = db
	r.sessions = repositories.NewSessionRepository(db)
	r.attempts = repositories.NewAttemptRepository(db)
	r.auth = auth.NewOAuthProvider(auth.Options{
		ClientID:      r.config.Identity.ClientID,
		Authority:     r.config.Identity.Authority,
		RedirectURI:   r.config.Identity.RedirectURI,
		APIScope:      r.config.API.Scope,
		SignInTimeout: r.config.Identity.SignInTimeout.Duration,
		Store:         r.sessions,
		Logger:        shared.WithLogger(r.logger, "component", "auth"),
		HTTPClient:    r.httpClient,
		OpenBrowser:   r.openURL,
		Out:           r.output,
	})
}

// activePrincipal returns the signed-in account, or nil when nobody is signed in.
func (r *Runner) activePrincipal(ctx context.Context) (*models.Principal, error) {
	principal, err := r.auth.Active(ctx)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		return nil, nil
	}
	return principal, err
}

// newWorkflow wires a workflow to the configured service, identity provider and history.
//
// completionTimeout overrides the configured bound when positive.
func (r *Runner) newWorkflow(ctx context.Context, completionTimeout time.Duration) (*workflow.Workflow, error) {
	if err := r.open(); err != nil {
		return nil, err
	}
	for _, key := range r.config.Missing() {
		r.logger.Warn("configuration value is not set", "key", key)
	}

	if completionTimeout <= 0 {
		completionTimeout = r.config.Workflow.CompletionTimeout.Duration
	}

	notifier := realtime.NewNotifier(realtime.Options{
		BaseURL:         r.config.API.BaseURL,
		Hub:             r.config.API.Hub,
		ReconnectDelays: r.reconnectDelays(),
		HTTPClient:      r.httpClient,
		Logger:          shared.WithLogger(r.logger, "component", "realtime"),
		Hooks: realtime.Hooks{
			OnReconnecting: func(err error) { r.logger.Warn("real-time connection lost, reconnecting", "error", err) },
			OnReconnected:  func(id string) { r.logger.Info("real-time connection restored", "connection", id) },
		},
	})

	wf := workflow.New(workflow.Options{
		Tokens:      r.auth,
		Credentials: services.NewCredentialClient(r.config.API.BaseURL, r.httpClient, r.logger),
		Uploader:    services.NewBlobClient(r.httpClient, r.logger),
		Notifier: workflow.NotifierFunc(func(ctx context.Context, token string) (workflow.Subscription, error) {
			sub, err := notifier.Subscribe(ctx, token)
			if err != nil {
				return nil, err
			}
			return sub, nil
		}),
		Recorder:          r.attempts,
		Logger:            shared.WithLogger(r.logger, "component", "workflow"),
		CompletionTimeout: completionTimeout,
	})

	principal, err := r.activePrincipal(ctx)
	if err != nil {
		wf.Close()
		return nil, err
	}
	if principal != nil {
		wf.SetPrincipal(principal)
	}
	return wf, nil
}

// reconnectDelays keeps nil (library defaults) apart from an explicit empty list.
func (r *Runner) reconnectDelays() []time.Duration {
	if r.config.Workflow.ReconnectDelays == nil {
		return nil
	}
	return r.config.Workflow.Delays()
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
