package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/pitch/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the send log database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.database()
	if err != nil {
		return err
	}
	applied, err := shared.AppliedMigrations(db)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Send log ready at %s\n", r.config.Database.Path)
	for _, m := range applied {
		r.writePlain("  %04d %-24s %s\n", m.Version, m.Name, m.AppliedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// SetupRollback reverts the latest migration. The next command that opens the database
// applies it again.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	r.logger.Warn("rolled back latest migration", "path", r.config.Database.Path)
	r.writePlain("✓ Rolled back the latest migration\n")
	return nil
}

// SetupConfig writes the starter configuration. With --force an existing file is rewritten
// from the loaded values, which normalizes it and adds any new keys.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = defaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		if !cmd.Bool("force") {
			return fmt.Errorf("%w: %s already exists (use --force to rewrite it)", shared.ErrInvalidArgument, path)
		}
		if err := shared.SaveConfig(path, r.config); err != nil {
			return err
		}
		r.logger.Info("config file rewritten", "path", path)
		r.writePlain("✓ Rewrote %s\n", path)
		return nil
	}

	r.logger.Info("config file not found, creating from template", "path", path)
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.writePlain("✓ Created %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Fill in [artist] and [files] in %s\n", path)
	r.writePlain("2. Download OAuth client credentials from the Google Cloud console to credentials.json\n")
	r.writePlain("3. Run 'pitch gmail auth' to authorize Gmail\n")
	return nil
}
