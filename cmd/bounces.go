package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/desertthunder/pitch/internal/csvlist"
	"github.com/desertthunder/pitch/internal/formatter"
	"github.com/desertthunder/pitch/internal/repositories"
	"github.com/desertthunder/pitch/internal/services"
	"github.com/desertthunder/pitch/internal/shared"
	"github.com/desertthunder/pitch/internal/tasks"
	"github.com/urfave/cli/v3"
)

type profiler interface {
	Profile(ctx context.Context) (*services.GmailProfile, error)
}

// BouncesCheck scans the mailbox for delivery failures, writes a report and, with --mark,
// records the failed addresses in the send log.
func (r *Runner) BouncesCheck(ctx context.Context, cmd *cli.Command) error {
	mailbox, err := r.getMailbox(ctx)
	if err != nil {
		return err
	}

	var sendLog tasks.SendLog
	mark := cmd.Bool("mark")
	if mark {
		db, err := r.database()
		if err != nil {
			return err
		}
		sendLog = repositories.NewSendLogRepository(db)
	}

	// the sender's own address shows up in every bounce
	ignore := splitList(r.config.Email.CC)
	if p, ok := mailbox.(profiler); ok {
		if profile, err := p.Profile(ctx); err == nil {
			ignore = append(ignore, profile.EmailAddress)
		}
	}

	days := int(cmd.Int("days"))
	r.writePlain("Searching for bounces from the last %d days...\n", days)

	progressCh, stop := r.watchProgress()
	report, err := tasks.CheckBounces(ctx, progressCh, mailbox, sendLog, r.logger, tasks.BounceOpts{
		Days:   days,
		Max:    int(cmd.Int("max")),
		Mark:   mark,
		Ignore: ignore,
	})
	stop()
	if err != nil {
		return err
	}

	r.writePlainHeader("Bounce Report")
	r.writePlain("Messages scanned:  %d\n", report.Scanned)
	r.writePlain("Bounced addresses: %d\n", len(report.Bounces))
	if len(report.Unparsed) > 0 {
		r.writePlain("Unrecognized:      %d\n", len(report.Unparsed))
	}
	if mark {
		r.writePlain("Newly recorded:    %d\n", report.Marked)
	}

	if len(report.Bounces) == 0 {
		r.writePlainln("✓ No bounces found")
		return nil
	}

	counts := report.ReasonCounts()
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool {
		if counts[reasons[i]] != counts[reasons[j]] {
			return counts[reasons[i]] > counts[reasons[j]]
		}
		return reasons[i] < reasons[j]
	})
	r.writePlainln("By reason:")
	for _, reason := range reasons {
		r.writePlain("  %-30s %d\n", reason, counts[reason])
	}

	output := cmd.String("output")
	if output == "" {
		output = r.config.Files.FailuresCSV
	}
	if output == "" {
		return nil
	}
	data, err := formatter.BouncesToCSV(report.Bounces)
	if err != nil {
		return err
	}
	if err := formatter.WriteFile(output, data); err != nil {
		return err
	}
	r.writePlainln("Report saved to %s", output)
	return nil
}

// BouncesImport records every address in a bounce report as bounced.
func (r *Runner) BouncesImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("csv")
	if path == "" {
		path = r.config.Files.FailuresCSV
	}
	if path == "" {
		return fmt.Errorf("%w: --csv", shared.ErrMissingArgument)
	}

	list, err := csvlist.Read(path)
	if err != nil {
		return err
	}
	bounces, err := formatter.ReadBounces(list)
	if err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}
	n, err := tasks.MarkBounces(repositories.NewSendLogRepository(db), bounces)
	if err != nil {
		return err
	}

	r.logger.Info("imported bounces", "path", path, "rows", len(bounces), "new", n)
	r.writePlain("✓ Imported %d bounced addresses (%d new)\n", len(bounces), n)
	return nil
}
