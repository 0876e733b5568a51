package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/barclip/internal/models"
	"github.com/desertthunder/barclip/internal/services"
	"github.com/desertthunder/barclip/internal/shared"
	"github.com/dustin/go-humanize"
)

// DefaultCompletionTimeout bounds the wait for the trim result.
const DefaultCompletionTimeout = 10 * time.Minute

const resubscribeTimeout = 30 * time.Second

// Options wires the collaborators of a [Workflow].
type Options struct {
	Tokens      TokenProvider
	Credentials CredentialRequester
	Uploader    BlobUploader
	Notifier    Notifier
	Recorder    Recorder // optional
	Logger      *log.Logger

	// CompletionTimeout bounds AwaitingCompletion. Zero waits indefinitely.
	CompletionTimeout time.Duration
}

// Workflow is the upload state machine. All methods are safe for concurrent use;
// at most one attempt is in flight at a time.
type Workflow struct {
	opts   Options
	logger *log.Logger

	mu        sync.Mutex
	state     State
	principal *models.Principal
	epoch     uint64
	starting  bool
	cancel    context.CancelFunc
	record    *models.UploadAttempt
	timer     *time.Timer
	settled   chan struct{}
	closed    bool

	subMu      sync.Mutex
	sub        Subscription
	connecting *pendingSubscription

	changes chan State
}

// attempt carries what one pass through the pipeline needs.
type attempt struct {
	epoch     uint64
	ctx       context.Context
	principal *models.Principal
	file      *models.SelectedFile
}

// pendingSubscription marks a Subscribe call in flight. done closes when it returns.
type pendingSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an idle [Workflow].
func New(opts Options) *Workflow {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}

	settled := make(chan struct{})
	close(settled)

	return &Workflow{
		opts:    opts,
		logger:  logger,
		state:   State{Phase: Idle, UpdatedAt: time.Now()},
		settled: settled,
		changes: make(chan State, 1),
	}
}

// State returns the current snapshot.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Changes delivers state snapshots. Only the latest unread snapshot is kept.
func (w *Workflow) Changes() <-chan State { return w.changes }

// Principal returns the signed-in principal, if any.
func (w *Workflow) Principal() *models.Principal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.principal
}

// SetPrincipal records who uploads. Switching accounts drops the current subscription.
func (w *Workflow) SetPrincipal(p *models.Principal) {
	w.mu.Lock()
	prev := w.principal
	w.principal = p
	w.mu.Unlock()

	if prev != nil && (p == nil || prev.AccountID != p.AccountID) {
		w.dropSubscription()
	}
	if p != nil {
		w.logger.Info("principal set", "account", p.String())
	}
}

// Connect opens the completion subscription ahead of the first upload.
func (w *Workflow) Connect(ctx context.Context) error {
	principal := w.Principal()
	if principal == nil {
		return &Error{Kind: NotAuthenticated, Err: shared.ErrNotAuthenticated}
	}

	token, err := w.opts.Tokens.Token(ctx, principal)
	if err != nil {
		return &Error{Kind: NotAuthenticated, Err: err}
	}
	return w.ensureSubscribed(ctx, token)
}

// SelectFile makes file the upload candidate.
//
// Non-video files are rejected with [InvalidFileKind] and leave the state untouched.
func (w *Workflow) SelectFile(file *models.SelectedFile) error {
	if file == nil {
		return fmt.Errorf("%w: no file", shared.ErrMissingArgument)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state.Phase.Busy() || w.starting {
		return fmt.Errorf("%w: cannot select a file while %s", shared.ErrInvalidTransition, w.state.Phase)
	}
	if !file.IsVideo() {
		w.logger.Warn("rejected non-video file", "file", file.Name, "type", file.MIMEType)
		return &Error{Kind: InvalidFileKind, Err: fmt.Errorf("%w: %s is %s", shared.ErrInvalidFileKind, file.Name, file.MIMEType)}
	}

	w.logger.Info("file selected", "name", file.Name, "type", file.MIMEType, "size", humanize.Bytes(uint64(file.Size)))
	w.set(State{
		Phase:   FileSelected,
		File:    file,
		Message: fmt.Sprintf("Selected %s (%s, %s)", file.Name, file.MIMEType, humanize.Bytes(uint64(file.Size))),
	})
	return nil
}

// Start runs an attempt for the selected file and returns once it is awaiting completion.
//
// Without a usable principal it triggers sign-in, leaves the state at FileSelected and
// returns a [NotAuthenticated] error. Failures also land in the state as Failed.
// A [Workflow.Reset] during the attempt yields [shared.ErrAttemptDiscarded].
func (w *Workflow) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return fmt.Errorf("%w: workflow closed", shared.ErrInvalidTransition)
	}
	if w.state.Phase != FileSelected || w.starting {
		phase := w.state.Phase
		w.mu.Unlock()
		if phase == Idle {
			return fmt.Errorf("%w: please select a file first", shared.ErrInvalidTransition)
		}
		return fmt.Errorf("%w: cannot start from %s", shared.ErrInvalidTransition, phase)
	}
	a := w.begin(ctx)
	w.mu.Unlock()

	return w.run(a)
}

// Retry re-runs a failed attempt when the file is unchanged on disk,
// otherwise it returns to FileSelected for a fresh start.
func (w *Workflow) Retry(ctx context.Context) error {
	w.mu.Lock()
	if w.state.Phase != Failed || w.starting {
		phase := w.state.Phase
		w.mu.Unlock()
		return fmt.Errorf("%w: cannot retry from %s", shared.ErrInvalidTransition, phase)
	}

	file := w.state.File
	if file == nil || file.Changed() || w.principal == nil {
		if file == nil {
			w.set(State{Phase: Idle})
		} else {
			w.set(State{Phase: FileSelected, File: file, Message: "Start again to upload " + file.Name})
		}
		w.mu.Unlock()
		return nil
	}

	a := w.begin(ctx)
	w.mu.Unlock()

	w.logger.Info("retrying upload", "file", file.Name)
	return w.run(a)
}

// Reset discards any in-flight attempt and returns to Idle.
func (w *Workflow) Reset() {
	w.mu.Lock()
	w.abort()
	rec := w.discardRecord()
	w.set(State{Phase: Idle})
	w.mu.Unlock()

	w.dropSubscription()
	w.save(rec, false)
	w.logger.Info("workflow reset")
}

// Wait blocks until the current attempt settles and returns the resulting state.
func (w *Workflow) Wait(ctx context.Context) (State, error) {
	w.mu.Lock()
	settled := w.settled
	w.mu.Unlock()

	select {
	case <-settled:
		return w.State(), nil
	case <-ctx.Done():
		return w.State(), ctx.Err()
	}
}

// Close tears down the attempt and the subscription. The state is kept for display.
func (w *Workflow) Close() error {
	w.mu.Lock()
	w.closed = true
	w.abort()
	rec := w.discardRecord()
	w.mu.Unlock()

	w.dropSubscription()
	w.save(rec, false)
	return nil
}

// begin claims the workflow for a new attempt. Caller holds mu.
func (w *Workflow) begin(ctx context.Context) *attempt {
	w.abort()
	attemptCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.starting = true
	return &attempt{epoch: w.epoch, ctx: attemptCtx, principal: w.principal, file: w.state.File}
}

// abort invalidates the current epoch. Caller holds mu.
func (w *Workflow) abort() {
	w.epoch++
	w.starting = false
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.stopTimer()
	w.settle()
}

func (w *Workflow) run(a *attempt) error {
	defer w.finish(a)

	token, err := w.token(a)
	if err != nil {
		return w.requireSignIn(a, err)
	}

	if err := w.ensureSubscribed(a.ctx, token); err != nil {
		w.logger.Warn("continuing without real-time channel", "error", err)
	}

	rec, err := w.advance(a, RequestingCredential, "Requesting upload URL...", func(r *models.UploadAttempt) {
		r.Status = models.AttemptPending
	})
	if err != nil {
		return err
	}
	w.save(rec, true)

	cred, err := w.opts.Credentials.RequestCredential(a.ctx, token)
	if err != nil {
		return w.fail(a, &Error{Kind: CredentialRequestFailed, Status: services.StatusCode(err), Err: err})
	}

	rec, err = w.advance(a, Uploading, "Uploading "+a.file.Name+"...", func(r *models.UploadAttempt) {
		r.Status = models.AttemptUploading
		r.OwnerID = cred.OwnerID
	})
	if err != nil {
		return err
	}
	w.save(rec, false)

	if err := w.opts.Uploader.Upload(a.ctx, cred, a.file); err != nil {
		return w.fail(a, &Error{Kind: BlobUploadFailed, Status: services.StatusCode(err), Err: err})
	}

	rec, err = w.advance(a, AwaitingCompletion, "Upload complete. Waiting for trimming to finish...", func(r *models.UploadAttempt) {
		r.Status = models.AttemptProcessing
	})
	if err != nil {
		return err
	}
	w.save(rec, false)
	return nil
}

// finish releases the attempt claim without touching the state.
func (w *Workflow) finish(a *attempt) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if a.epoch == w.epoch {
		w.starting = false
		if w.cancel != nil {
			w.cancel()
			w.cancel = nil
		}
	}
}

func (w *Workflow) token(a *attempt) (string, error) {
	if a.principal == nil {
		return "", shared.ErrNotAuthenticated
	}
	return w.opts.Tokens.Token(a.ctx, a.principal)
}

// requireSignIn reports NotAuthenticated, keeps FileSelected and runs interactive sign-in.
func (w *Workflow) requireSignIn(a *attempt, cause error) error {
	we := &Error{Kind: NotAuthenticated, Err: cause}

	w.mu.Lock()
	if a.epoch != w.epoch {
		w.mu.Unlock()
		return shared.ErrAttemptDiscarded
	}
	w.starting = false
	w.set(State{Phase: FileSelected, File: a.file, Err: we, Message: we.Error()})
	w.mu.Unlock()

	w.logger.Warn("sign-in required", "error", cause)

	principal, err := w.opts.Tokens.SignIn(a.ctx)
	if err != nil {
		w.logger.Error("sign-in failed", "error", err)
		return we
	}
	w.SetPrincipal(principal)

	w.mu.Lock()
	if a.epoch == w.epoch && w.state.Phase == FileSelected {
		w.set(State{
			Phase:   FileSelected,
			File:    a.file,
			Err:     we,
			Message: fmt.Sprintf("Signed in as %s. Start again to upload.", principal),
		})
	}
	w.mu.Unlock()
	return we
}

// advance moves a live attempt to phase and returns a copy of the updated record.
func (w *Workflow) advance(a *attempt, phase Phase, message string, update func(*models.UploadAttempt)) (*models.UploadAttempt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if a.epoch != w.epoch {
		w.logger.Debug("discarding stale attempt", "phase", phase)
		return nil, shared.ErrAttemptDiscarded
	}

	if phase == RequestingCredential {
		w.record = models.NewUploadAttempt(a.principal, a.file)
		w.settled = make(chan struct{})
	}
	update(w.record)
	w.record.UpdatedAt = time.Now().UTC()

	w.set(State{Phase: phase, File: a.file, Message: message, AttemptID: w.record.ID})
	w.logger.Info("upload phase", "phase", phase, "file", a.file.Name)

	if phase == AwaitingCompletion {
		w.starting = false
		w.startTimer(a.epoch)
	}

	rec := *w.record
	return &rec, nil
}

// fail records a failure for a live attempt.
func (w *Workflow) fail(a *attempt, we *Error) error {
	w.mu.Lock()
	if a.epoch != w.epoch {
		w.mu.Unlock()
		w.logger.Debug("discarding failure of stale attempt", "error", we)
		return shared.ErrAttemptDiscarded
	}
	rec := w.failLocked(we)
	w.mu.Unlock()

	w.save(rec, false)
	return we
}

func (w *Workflow) failLocked(we *Error) *models.UploadAttempt {
	w.stopTimer()
	w.starting = false

	var rec *models.UploadAttempt
	if w.record != nil {
		w.record.Status = models.AttemptFailed
		w.record.StatusCode = we.Status
		w.record.Error = we.Error()
		w.record.UpdatedAt = time.Now().UTC()
		copied := *w.record
		rec = &copied
	}

	w.set(State{Phase: Failed, File: w.state.File, Err: we, Message: we.Error(), AttemptID: w.state.AttemptID})
	w.settle()
	w.logger.Error("upload failed", "kind", we.Kind, "status", we.Status, "error", we.Err)
	return rec
}

// complete handles a completion event from sub.
func (w *Workflow) complete(sub Subscription, ev models.CompletionEvent) {
	if !w.isCurrent(sub) {
		w.logger.Debug("ignoring completion event from a closed subscription")
		return
	}

	w.mu.Lock()
	if w.state.Phase != AwaitingCompletion {
		phase := w.state.Phase
		w.mu.Unlock()
		w.logger.Debug("ignoring completion event", "phase", phase)
		return
	}

	w.stopTimer()
	var rec *models.UploadAttempt
	if w.record != nil {
		w.record.Status = models.AttemptCompleted
		w.record.ResultURL = ev.ResultURL
		w.record.UpdatedAt = time.Now().UTC()
		copied := *w.record
		rec = &copied
	}
	w.set(State{
		Phase:     Completed,
		File:      w.state.File,
		Message:   "Your trimmed video is ready.",
		ResultURL: ev.ResultURL,
		AttemptID: w.state.AttemptID,
	})
	w.settle()
	name := w.state.File.Name
	w.mu.Unlock()

	w.logger.Info("trim succeeded", "file", name)
	w.save(rec, false)
}

func (w *Workflow) isCurrent(sub Subscription) bool {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	return w.sub != nil && w.sub == sub
}

func (w *Workflow) startTimer(epoch uint64) {
	if w.opts.CompletionTimeout <= 0 {
		return
	}
	timeout := w.opts.CompletionTimeout
	w.timer = time.AfterFunc(timeout, func() {
		w.mu.Lock()
		if epoch != w.epoch || w.state.Phase != AwaitingCompletion {
			w.mu.Unlock()
			return
		}
		rec := w.failLocked(&Error{Kind: CompletionTimeout, Err: fmt.Errorf("no result after %s", timeout)})
		w.mu.Unlock()
		w.save(rec, false)
	})
}

func (w *Workflow) stopTimer() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *Workflow) settle() {
	select {
	case <-w.settled:
	default:
		close(w.settled)
	}
}

// discardRecord marks an unfinished attempt as discarded. Caller holds mu.
func (w *Workflow) discardRecord() *models.UploadAttempt {
	rec := w.record
	w.record = nil
	if rec == nil || rec.Status.Terminal() {
		return nil
	}
	rec.Status = models.AttemptDiscarded
	rec.UpdatedAt = time.Now().UTC()
	copied := *rec
	return &copied
}

// set replaces the state and publishes it. Caller holds mu.
func (w *Workflow) set(s State) {
	s.UpdatedAt = time.Now()
	w.state = s

	select {
	case <-w.changes:
	default:
	}
	w.changes <- s
}

func (w *Workflow) save(rec *models.UploadAttempt, create bool) {
	if rec == nil || w.opts.Recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if create {
		err = w.opts.Recorder.Create(ctx, rec)
	} else {
		err = w.opts.Recorder.Update(ctx, rec)
	}
	if err != nil {
		w.logger.Warn("failed to record upload attempt", "attempt", rec.ID, "error", err)
	}
}

// ensureSubscribed opens a subscription unless a live one exists.
//
// subMu is not held while connecting; [Workflow.dropSubscription] cancels a
// pending connect instead of waiting for it.
func (w *Workflow) ensureSubscribed(ctx context.Context, token string) error {
	for {
		w.subMu.Lock()
		if w.sub != nil {
			select {
			case <-w.sub.Done():
				w.sub = nil
			default:
				w.subMu.Unlock()
				return nil
			}
		}

		pending := w.connecting
		if pending == nil {
			break
		}
		w.subMu.Unlock()

		select {
		case <-pending.done:
		case <-ctx.Done():
			return &Error{Kind: ChannelConnectionFailed, Err: ctx.Err()}
		}
	}

	w.mu.Lock()
	closed, epoch := w.closed, w.epoch
	w.mu.Unlock()
	if closed {
		w.subMu.Unlock()
		return &Error{Kind: ChannelConnectionFailed, Err: errors.New("workflow closed")}
	}

	connectCtx, cancel := context.WithCancel(ctx)
	pending := &pendingSubscription{cancel: cancel, done: make(chan struct{})}
	w.connecting = pending
	w.subMu.Unlock()

	sub, err := w.opts.Notifier.Subscribe(connectCtx, token)

	w.subMu.Lock()
	dropped := w.connecting != pending
	if !dropped {
		w.connecting = nil
	}
	close(pending.done)
	cancel()

	if err != nil {
		w.subMu.Unlock()
		if dropped {
			err = shared.ErrAttemptDiscarded
		}
		return &Error{Kind: ChannelConnectionFailed, Err: err}
	}

	w.mu.Lock()
	stale := dropped || w.closed || (epoch != w.epoch && !w.starting)
	w.mu.Unlock()
	if stale {
		w.subMu.Unlock()
		sub.Close()
		return &Error{Kind: ChannelConnectionFailed, Err: shared.ErrAttemptDiscarded}
	}

	w.sub = sub
	w.subMu.Unlock()
	go w.listen(sub)
	return nil
}

// dropSubscription closes the current subscription and cancels a pending connect.
func (w *Workflow) dropSubscription() {
	w.subMu.Lock()
	sub := w.sub
	w.sub = nil
	if w.connecting != nil {
		w.connecting.cancel()
		w.connecting = nil
	}
	w.subMu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

func (w *Workflow) listen(sub Subscription) {
	for {
		select {
		case ev := <-sub.Events():
			w.complete(sub, ev)
		case <-sub.Done():
			w.ended(sub)
			return
		}
	}
}

// ended reacts to a subscription that stopped on its own.
func (w *Workflow) ended(sub Subscription) {
	w.subMu.Lock()
	current := w.sub == sub
	if current {
		w.sub = nil
	}
	w.subMu.Unlock()

	err := sub.Err()
	if !current || err == nil {
		return
	}

	if !errors.Is(err, shared.ErrTokenExpired) {
		w.logger.Warn("real-time channel lost", "kind", ChannelConnectionFailed, "error", err)
		return
	}

	principal := w.Principal()
	if principal == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), resubscribeTimeout)
	defer cancel()

	token, err := w.opts.Tokens.Token(ctx, principal)
	if err != nil {
		w.logger.Warn("cannot refresh token for real-time channel", "error", err)
		return
	}
	if err := w.ensureSubscribed(ctx, token); err != nil {
		w.logger.Warn("re-subscribe failed", "error", err)
		return
	}
	w.logger.Info("re-subscribed with refreshed token")
}
