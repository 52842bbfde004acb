package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/pitch/internal/services"
	"github.com/desertthunder/pitch/internal/shared"
	"github.com/desertthunder/pitch/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/pitch-tui.log"

// ContactsBrowse launches the interactive contact browser. Spotify lookups are available when
// Spotify credentials work; otherwise the browser runs without them.
func (r *Runner) ContactsBrowse(ctx context.Context, cmd *cli.Command) error {
	records, err := r.loadContacts(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	if err := os.MkdirAll(filepath.Dir(tuiLogPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	fileLogger, f, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()

	previous := r.logger
	r.SetLogger(fileLogger)
	defer r.SetLogger(previous)

	var lookup services.PlaylistLookup
	if spotify, err := r.getSpotify(ctx); err == nil {
		lookup = spotify
	} else {
		r.logger.Warn("spotify lookups disabled", "error", err)
	}

	if err := ui.Run(ctx, records, lookup); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
