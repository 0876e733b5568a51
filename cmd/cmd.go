// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/barclip/internal/formatter"
	"github.com/urfave/cli/v3"
)

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a config.toml from the built-in template",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "base-url", Usage: "Trimming service base URL"},
					&cli.StringFlag{Name: "scope", Usage: "API scope for the access token"},
					&cli.StringFlag{Name: "client-id", Usage: "Application (client) ID"},
					&cli.StringFlag{Name: "authority", Usage: "Identity provider authority URL"},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles sign-in and session management
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Sign in through the browser (authorization code + PKCE)",
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Show the active account and token expiry",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget the active account's tokens",
				Action: r.AuthLogout,
			},
		},
	}
}

// uploadCommand uploads one video and waits for the trimmed result
func uploadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "upload",
		Usage: "Upload a video and wait for the trimmed result",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "path"},
		},
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Maximum wait for the trimmed video (default from config)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the result as JSON",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the trimmed video in the browser",
			},
			&cli.BoolFlag{
				Name:  "copy",
				Usage: "Copy the trimmed video link to the clipboard",
			},
		},
		Action: r.Upload,
	}
}

// batchCommand uploads every video in a directory
func batchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Upload every video in a directory, one at a time",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "dir"},
		},
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Minimum gap between uploads (default from config)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Maximum wait for each trimmed video (default from config)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the batch result as JSON",
			},
		},
		Action: r.Batch,
	}
}

// historyCommand exports recorded upload attempts
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show or export upload history",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: " + joinFormats(),
				Value:   formatter.FormatText,
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of attempts (0 for all)",
				Value: 20,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to a file instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "mine",
				Usage: "Only show attempts of the active account",
			},
		},
		Action: r.History,
	}
}

// tuiCommand returns the top-level TUI command for interactive uploads.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for uploading videos",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "path"},
		},
		Action: r.TUI,
	}
}

func joinFormats() string {
	s := ""
	for i, f := range formatter.Formats() {
		if i > 0 {
			s += "|"
		}
		s += f
	}
	return s
}
