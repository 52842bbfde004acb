package main

import "github.com/desertthunder/pitch/internal/tasks"

// watchProgress prints updates from the returned channel until stop is called. stop closes the
// channel and waits for the printer to drain it.
func (r *Runner) watchProgress() (chan tasks.ProgressUpdate, func()) {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.FilterContacts:
				r.writePlain("🔎 %s\n", update.Message)
			case tasks.ValidateEmails:
				r.writePlain("✉️  %s\n", update.Message)
			case tasks.WaitPacer:
				r.writePlain("⏳ %s\n", update.Message)
			case tasks.SendMessage, tasks.ScanBounces, tasks.EnrichContacts:
				r.writePlain("  %s\n", update.Message)
			default:
				r.writePlain("%s\n", update.Message)
			}
		}
	}()

	return progressCh, func() {
		close(progressCh)
		<-done
	}
}
