package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/barclip/internal/formatter"
	"github.com/desertthunder/barclip/internal/models"
	"github.com/urfave/cli/v3"
)

// History prints or exports recorded upload attempts, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	limit := cmd.Int("limit")
	var (
		attempts []*models.UploadAttempt
		err      error
	)
	if cmd.Bool("mine") {
		principal, perr := r.activePrincipal(ctx)
		if perr != nil {
			return perr
		}
		if principal == nil {
			return fmt.Errorf("--mine needs a signed-in account")
		}
		attempts, err = r.attempts.ListByAccount(ctx, principal.AccountID, limit)
	} else {
		attempts, err = r.attempts.List(ctx, limit)
	}
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	format := cmd.String("format")
	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(attempts, format, path)
		if err != nil {
			return err
		}
		r.logger.Info("history exported", "path", written, "attempts", len(attempts))
		return r.writePlain("✓ Exported %d attempts to %s\n", len(attempts), written)
	}

	data, err := formatter.Export(attempts, format)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}
