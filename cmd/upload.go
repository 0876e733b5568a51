package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/barclip/internal/models"
	"github.com/desertthunder/barclip/internal/shared"
	"github.com/desertthunder/barclip/internal/workflow"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// uploadResult is the JSON shape of `upload --json`.
type uploadResult struct {
	File      string `json:"file"`
	Type      string `json:"type"`
	Size      int64  `json:"size"`
	Phase     string `json:"phase"`
	AttemptID string `json:"attempt_id,omitempty"`
	ResultURL string `json:"result_url,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// Upload sends one video through the workflow and waits for the trimmed result.
func (r *Runner) Upload(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: video path is required", shared.ErrMissingArgument)
	}

	file, err := models.OpenSelectedFile(path)
	if err != nil {
		return err
	}

	wf, err := r.newWorkflow(ctx, cmd.Duration("timeout"))
	if err != nil {
		return err
	}
	defer wf.Close()

	if err := wf.SelectFile(file); err != nil {
		return err
	}

	quiet := cmd.Bool("json")
	stop := r.followChanges(wf, quiet)

	state, err := r.runUpload(ctx, wf)
	stop()
	if err != nil {
		return err
	}

	if quiet {
		if err := r.writeJSON(newUploadResult(state), true); err != nil {
			return err
		}
	} else {
		r.printOutcome(state)
	}

	if state.Phase != workflow.Completed {
		if state.Err != nil {
			return state.Err
		}
		return fmt.Errorf("upload ended in %s", state.Phase)
	}

	if cmd.Bool("copy") {
		if err := r.copy(state.ResultURL); err != nil {
			r.logger.Warn("failed to copy link", "error", err)
		} else if !quiet {
			r.writePlain("✓ Link copied to clipboard\n")
		}
	}
	if cmd.Bool("open") {
		if err := r.openURL(state.ResultURL); err != nil {
			r.logger.Warn("failed to open link", "error", err)
		}
	}
	return nil
}

// runUpload starts the attempt, signing in once when needed, and waits for it to settle.
func (r *Runner) runUpload(ctx context.Context, wf *workflow.Workflow) (workflow.State, error) {
	err := wf.Start(ctx)
	if we, ok := workflow.AsError(err); ok && we.Kind == workflow.NotAuthenticated && wf.Principal() != nil {
		r.logger.Info("signed in, starting upload again")
		err = wf.Start(ctx)
	}

	if err != nil {
		state := wf.State()
		if state.Phase != workflow.Failed && !errors.Is(err, shared.ErrAttemptDiscarded) {
			return state, err
		}
	}
	return wf.Wait(ctx)
}

// followChanges prints progress messages until the returned stop func is called.
func (r *Runner) followChanges(wf *workflow.Workflow, quiet bool) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		last := ""
		for {
			select {
			case <-done:
				return
			case state := <-wf.Changes():
				r.logger.Debug("state changed", "phase", state.Phase, "message", state.Message)
				if quiet || state.Message == "" || state.Message == last || state.Phase.Settled() {
					continue
				}
				last = state.Message
				r.writePlain("… %s\n", state.Message)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}

func (r *Runner) printOutcome(state workflow.State) {
	switch state.Phase {
	case workflow.Completed:
		r.writePlain("✓ Trimmed video ready\n")
		r.writePlain("%s\n", state.ResultURL)
	case workflow.Failed:
		r.writePlain("✗ %s\n", state.Message)
		if state.Err != nil && state.Err.Retryable() {
			r.writePlain("Run the same command again to retry.\n")
		}
	default:
		r.writePlain("%s\n", state.Message)
	}
	if state.File != nil {
		r.writePlain("File: %s (%s, %s) at %s\n", state.File.Name, state.File.MIMEType,
			humanize.Bytes(uint64(state.File.Size)), state.UpdatedAt.Format(time.Kitchen))
	}
}

func newUploadResult(state workflow.State) uploadResult {
	res := uploadResult{
		Phase:     state.Phase.String(),
		AttemptID: state.AttemptID,
		ResultURL: state.ResultURL,
	}
	if state.File != nil {
		res.File = state.File.Name
		res.Type = state.File.MIMEType
		res.Size = state.File.Size
	}
	if state.Err != nil {
		res.Error = state.Err.Error()
		res.ErrorKind = state.Err.Kind.String()
	}
	return res
}
