package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/barclip/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the embedded example configuration to the config path,
// filling in any identity and API values passed as flags.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)

	overrides := map[string]string{
		"base-url":  cmd.String("base-url"),
		"scope":     cmd.String("scope"),
		"client-id": cmd.String("client-id"),
		"authority": cmd.String("authority"),
	}
	changed := false
	for _, v := range overrides {
		changed = changed || v != ""
	}

	if changed {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return err
		}
		for flag, target := range map[string]*string{
			"base-url":  &config.API.BaseURL,
			"scope":     &config.API.Scope,
			"client-id": &config.Identity.ClientID,
			"authority": &config.Identity.Authority,
		} {
			if v := overrides[flag]; v != "" {
				*target = v
			}
		}
		if err := shared.SaveConfig(path, config); err != nil {
			return err
		}
		r.config = config
	}

	r.writePlain("✓ Configuration written to %s\n", path)
	r.writePlainln("Next steps:")
	steps := []string{"Run 'barclip setup database'", "Run 'barclip auth login'"}
	if !changed {
		steps = append([]string{"Set identity.client_id, identity.authority and api.base_url (or the BARCLIP_* environment variables)"}, steps...)
	}
	for i, step := range steps {
		r.writePlain("%d. %s\n", i+1, step)
	}
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Database
	r.logger.Info("initializing database", "path", cfg.Path)

	db, err := shared.NewDatabase(cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)

	if cmd.Bool("rollback") {
		r.logger.Warn("rolling back the latest migration")
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		return r.writePlain("✓ Rolled back the latest migration of %s\n", cfg.Path)
	}

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", cfg.Path)
	return r.writePlain("✓ Database ready at %s\n", cfg.Path)
}
