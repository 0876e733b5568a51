package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/barclip/internal/models"
	"github.com/desertthunder/barclip/internal/shared"
	"github.com/desertthunder/barclip/internal/ui"
	"github.com/urfave/cli/v3"
)

const historyLimit = 50

// TUI launches the interactive terminal UI for uploading videos.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/barclip-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	wf, err := r.newWorkflow(ctx, 0)
	if err != nil {
		return err
	}
	defer wf.Close()

	if wf.Principal() != nil {
		go func() {
			if err := wf.Connect(ctx); err != nil {
				r.logger.Warn("early real-time connection failed", "error", err)
			}
		}()
	}

	model := ui.NewModel(ctx, ui.Options{
		Workflow: wf,
		History: func(ctx context.Context) ([]*models.UploadAttempt, error) {
			return r.attempts.List(ctx, historyLimit)
		},
		OpenURL: r.openURL,
		Copy:    r.copy,
		Path:    cmd.StringArg("path"),
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
