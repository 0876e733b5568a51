package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/barclip/internal/models"
	"github.com/desertthunder/barclip/internal/shared"
	"github.com/desertthunder/barclip/internal/workflow"
	"golang.org/x/time/rate"
)

// Uploader is the part of [workflow.Workflow] a batch drives.
type Uploader interface {
	SelectFile(file *models.SelectedFile) error
	Start(ctx context.Context) error
	Wait(ctx context.Context) (workflow.State, error)
	Reset()
}

// BatchOptions configures a [BatchRunner].
type BatchOptions struct {
	Interval time.Duration // Minimum gap between attempt starts (0 = no pacing)
	Logger   *log.Logger
}

// FileResult is the outcome for one file of a batch.
type FileResult struct {
	Name      string               `json:"name"`
	Path      string               `json:"path"`
	Size      int64                `json:"size"`
	Status    models.AttemptStatus `json:"status"`
	ResultURL string               `json:"result_url,omitempty"`
	Error     string               `json:"error,omitempty"`
	Duration  time.Duration        `json:"duration"`
	Skipped   bool                 `json:"skipped,omitempty"`
}

// BatchResult summarises a directory upload.
type BatchResult struct {
	Directory string       `json:"directory"`
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
	Results   []FileResult `json:"results"`
}

// BatchRunner uploads every video of a directory through one workflow, one attempt at a time.
type BatchRunner struct {
	uploader Uploader
	limiter  *rate.Limiter
	logger   *log.Logger
}

// NewBatchRunner creates a runner around uploader.
func NewBatchRunner(uploader Uploader, opts BatchOptions) *BatchRunner {
	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}
	return &BatchRunner{
		uploader: uploader,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (b *BatchRunner) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Scan lists the regular files of dir in name order, split into videos and skipped entries.
func Scan(dir string) ([]*models.SelectedFile, []FileResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	var videos []*models.SelectedFile
	var skipped []FileResult
	for _, name := range names {
		path := filepath.Join(dir, name)
		file, err := models.OpenSelectedFile(path)
		if err != nil {
			skipped = append(skipped, FileResult{Name: name, Path: path, Skipped: true, Error: err.Error()})
			continue
		}
		if !file.IsVideo() {
			skipped = append(skipped, FileResult{Name: name, Path: path, Size: file.Size, Skipped: true, Error: "not a video (" + file.MIMEType + ")"})
			continue
		}
		videos = append(videos, file)
	}
	return videos, skipped, nil
}

// Run uploads the videos found in dir and waits for each trim result before moving on.
//
// Per-file failures are recorded in the result. The batch stops early only when the
// context ends or the user cannot be signed in.
func (b *BatchRunner) Run(ctx context.Context, dir string, progress chan<- ProgressUpdate) (*BatchResult, error) {
	b.sendProgress(progress, scanUpdate(dir))

	videos, skipped, err := Scan(dir)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{
		Directory: dir,
		Total:     len(videos),
		Skipped:   len(skipped),
		Results:   make([]FileResult, 0, len(videos)+len(skipped)),
	}
	result.Results = append(result.Results, skipped...)
	for _, s := range skipped {
		b.sendProgress(progress, skippedUpdate(s))
	}

	if len(videos) == 0 {
		return result, fmt.Errorf("%w: no video files in %s", shared.ErrMissingArgument, dir)
	}

	for i, file := range videos {
		if err := b.limiter.Wait(ctx); err != nil {
			return result, err
		}

		b.sendProgress(progress, uploadUpdate(i+1, len(videos), file))
		res, err := b.upload(ctx, file)
		result.Results = append(result.Results, res)
		if res.Status == models.AttemptCompleted {
			result.Succeeded++
			b.sendProgress(progress, completedUpdate(i+1, len(videos), res))
		} else {
			result.Failed++
			b.sendProgress(progress, failedUpdate(i+1, len(videos), res))
		}

		if err != nil {
			return result, err
		}
	}

	b.logger.Info("batch finished", "dir", dir, "succeeded", result.Succeeded, "failed", result.Failed, "skipped", result.Skipped)
	return result, nil
}

// upload drives one file to a settled state. A non-nil error aborts the batch.
func (b *BatchRunner) upload(ctx context.Context, file *models.SelectedFile) (FileResult, error) {
	res := FileResult{Name: file.Name, Path: file.Path(), Size: file.Size, Status: models.AttemptFailed}
	started := time.Now()
	settle := func(msg string, err error) (FileResult, error) {
		res.Error = msg
		res.Duration = time.Since(started)
		return res, err
	}

	b.uploader.Reset()
	if err := b.uploader.SelectFile(file); err != nil {
		return settle(err.Error(), nil)
	}

	err := b.uploader.Start(ctx)
	if we, ok := workflow.AsError(err); ok && we.Kind == workflow.NotAuthenticated {
		// A successful sign-in leaves the file selected.
		b.logger.Info("retrying after sign-in", "file", file.Name)
		err = b.uploader.Start(ctx)
		if we, ok := workflow.AsError(err); ok && we.Kind == workflow.NotAuthenticated {
			return settle(we.Error(), err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return settle(err.Error(), err)
	}

	state, waitErr := b.uploader.Wait(ctx)
	if waitErr != nil {
		return settle(waitErr.Error(), waitErr)
	}

	switch {
	case state.Phase == workflow.Completed:
		res.Status = models.AttemptCompleted
		res.ResultURL = state.ResultURL
		return settle("", nil)
	case state.Err != nil:
		return settle(state.Err.Error(), nil)
	case err != nil:
		return settle(err.Error(), nil)
	default:
		return settle("upload did not finish ("+state.Phase.String()+")", nil)
	}
}
