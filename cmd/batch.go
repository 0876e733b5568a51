package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/barclip/internal/formatter"
	"github.com/desertthunder/barclip/internal/shared"
	"github.com/desertthunder/barclip/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Batch uploads every video in a directory, one attempt at a time.
func (r *Runner) Batch(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.StringArg("dir")
	if dir == "" {
		return fmt.Errorf("%w: directory is required", shared.ErrMissingArgument)
	}

	wf, err := r.newWorkflow(ctx, cmd.Duration("timeout"))
	if err != nil {
		return err
	}
	defer wf.Close()

	interval := cmd.Duration("interval")
	if interval <= 0 {
		interval = r.config.Batch.Interval.Duration
	}

	runner := tasks.NewBatchRunner(wf, tasks.BatchOptions{
		Interval: interval,
		Logger:   shared.WithLogger(r.logger, "component", "batch"),
	})

	asJSON := cmd.Bool("json")
	progress := make(chan tasks.ProgressUpdate, 10)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			if asJSON {
				continue
			}
			switch update.Phase {
			case tasks.FileCompleted:
				r.writePlain("✓ %s\n", update.Message)
			case tasks.FileFailed, tasks.FileSkipped:
				r.writePlain("✗ %s\n", update.Message)
			default:
				r.writePlain("%s\n", update.Message)
			}
		}
	}()

	result, err := runner.Run(ctx, dir, progress)
	close(progress)
	wg.Wait()
	if err != nil {
		if result == nil {
			return err
		}
		r.logger.Error("batch stopped early", "error", err)
	}

	if asJSON {
		if jerr := r.writeJSON(result, true); jerr != nil {
			return jerr
		}
	} else {
		r.writePlainHeader("Batch Summary")
		r.writePlain("%s", formatter.BatchSummary(result))
	}
	return err
}
