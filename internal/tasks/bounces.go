package tasks

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pitch/internal/models"
	"github.com/desertthunder/pitch/internal/services"
	"github.com/desertthunder/pitch/internal/shared"
)

const addressPattern = `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`

var (
	anyAddress = regexp.MustCompile(addressPattern)

	// failedAddressPatterns are tried in order; the first match names the failed recipient.
	failedAddressPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)final-recipient:\s*rfc822;\s*<?(` + addressPattern + `)>?`),
		regexp.MustCompile(`(?i)to[:\s]+<?(` + addressPattern + `)>?`),
		regexp.MustCompile(`(?i)recipient[:\s]+<?(` + addressPattern + `)>?`),
		regexp.MustCompile(`(?i)address[:\s]+<?(` + addressPattern + `)>?`),
		regexp.MustCompile(`(?i)<?(` + addressPattern + `)>?\s+couldn't be found`),
		regexp.MustCompile(`(?i)<?(` + addressPattern + `)>?\s+wasn't delivered`),
		regexp.MustCompile(`(?i)<?(` + addressPattern + `)>?\s+is unable to receive`),
		regexp.MustCompile(`(?i)<?(` + addressPattern + `)>?\s+does not exist`),
	}

	bounceReasons = []struct {
		phrases []string
		reason  string
	}{
		{[]string{"couldn't be found", "could not be found"}, "Address not found"},
		{[]string{"doesn't exist", "does not exist"}, "Address does not exist"},
		{[]string{"unable to receive"}, "Unable to receive mail"},
		{[]string{"mailbox full", "quota exceeded"}, "Mailbox full"},
		{[]string{"rejected"}, "Rejected by server"},
		{[]string{"blocked"}, "Blocked"},
		{[]string{"spam"}, "Marked as spam"},
	}

	bounceSubjects = []string{
		"delivery failure", "undeliverable", "delivery status", "mail delivery",
		"failure notice", "returned mail", "couldn't be delivered", "wasn't delivered",
		"address couldn't be found",
	}
)

// UnknownBounceReason is reported when no known phrase appears in a bounce.
const UnknownBounceReason = "Unknown error"

// BounceQuery builds the Gmail search for delivery failures received in the last days.
func BounceQuery(days int) string {
	if days <= 0 {
		days = 7
	}
	terms := []string{"from:mailer-daemon", "from:postmaster"}
	for _, s := range bounceSubjects {
		terms = append(terms, fmt.Sprintf("subject:%q", s))
	}
	return fmt.Sprintf("(%s) newer_than:%dd", strings.Join(terms, " OR "), days)
}

func isDaemonAddress(addr string) bool {
	return strings.Contains(addr, "mailer-daemon") || strings.Contains(addr, "postmaster")
}

// ExtractFailedAddress finds the recipient a bounce refers to. Daemon addresses and anything in
// ignore (such as the sender's own address) are never returned.
func ExtractFailedAddress(text string, ignore ...string) (string, bool) {
	skip := make(map[string]struct{}, len(ignore))
	for _, a := range ignore {
		skip[shared.NormalizeEmail(a)] = struct{}{}
	}
	usable := func(addr string) bool {
		addr = shared.NormalizeEmail(addr)
		_, ignored := skip[addr]
		return !ignored && !isDaemonAddress(addr)
	}

	for _, p := range failedAddressPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			if usable(m[1]) {
				return shared.NormalizeEmail(m[1]), true
			}
		}
	}
	for _, addr := range anyAddress.FindAllString(text, -1) {
		if usable(addr) {
			return shared.NormalizeEmail(addr), true
		}
	}
	return "", false
}

// BounceReason classifies a bounce by the first known phrase in text.
func BounceReason(text string) string {
	lower := strings.ToLower(text)
	for _, r := range bounceReasons {
		for _, p := range r.phrases {
			if strings.Contains(lower, p) {
				return r.reason
			}
		}
	}
	return UnknownBounceReason
}

// Bounce is one failed address found in the mailbox.
type Bounce struct {
	Email     string    `json:"email"`
	Reason    string    `json:"reason"`
	Subject   string    `json:"subject"`
	Date      time.Time `json:"date"`
	MessageID string    `json:"message_id"`
}

// BounceOpts controls a mailbox scan.
type BounceOpts struct {
	Days   int      // search window, default 7
	Max    int      // maximum messages to inspect, default 500
	Mark   bool     // record bounces in the send log
	Ignore []string // addresses never reported, usually the sender's own
}

// BounceReport is the result of a scan.
type BounceReport struct {
	Scanned  int      // messages inspected
	Bounces  []Bounce // unique by address, sorted by address
	Marked   int      // new send log entries
	Unparsed []string // message IDs with no recognizable address
}

// ReasonCounts tallies bounces by reason.
func (r *BounceReport) ReasonCounts() map[string]int {
	counts := make(map[string]int)
	for _, b := range r.Bounces {
		counts[b.Reason]++
	}
	return counts
}

// CheckBounces searches the mailbox for delivery failures and extracts the failed addresses.
// Messages that cannot be fetched are logged and skipped.
func CheckBounces(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	reader services.MailboxReader,
	sendLog SendLog,
	logger *log.Logger,
	opts BounceOpts,
) (*BounceReport, error) {
	if reader == nil {
		return nil, fmt.Errorf("%w: mailbox reader not initialized", shared.ErrServiceUnavailable)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if opts.Max <= 0 {
		opts.Max = 500
	}

	refs, err := reader.ListMessages(ctx, BounceQuery(opts.Days), opts.Max)
	if err != nil {
		return nil, fmt.Errorf("failed to search mailbox: %w", err)
	}
	logger.Info("found potential bounce messages", "count", len(refs))

	report := &BounceReport{}
	byEmail := make(map[string]Bounce)
	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		if (i+1)%10 == 0 || i+1 == len(refs) {
			sendProgress(prog, bounceScanUpdate(i+1, len(refs)))
		}

		msg, err := reader.GetMessage(ctx, ref.ID)
		if err != nil {
			logger.Warn("failed to fetch message", "id", ref.ID, "error", err)
			continue
		}
		parsed, err := services.ParseMessage(msg.Raw)
		if err != nil {
			logger.Warn("failed to parse message", "id", ref.ID, "error", err)
			continue
		}

		text := parsed.Subject + "\n" + parsed.Text
		addr, ok := ExtractFailedAddress(text, opts.Ignore...)
		if !ok {
			report.Unparsed = append(report.Unparsed, ref.ID)
			continue
		}
		if _, dup := byEmail[addr]; dup {
			continue
		}
		byEmail[addr] = Bounce{
			Email:     addr,
			Reason:    BounceReason(text),
			Subject:   parsed.Subject,
			Date:      parsed.Date,
			MessageID: ref.ID,
		}
	}

	for _, b := range byEmail {
		report.Bounces = append(report.Bounces, b)
	}
	sort.Slice(report.Bounces, func(i, j int) bool { return report.Bounces[i].Email < report.Bounces[j].Email })

	if opts.Mark && sendLog != nil {
		n, err := MarkBounces(sendLog, report.Bounces)
		report.Marked = n
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

// MarkBounces records each bounce in the send log and returns how many were new.
func MarkBounces(sendLog SendLog, bounces []Bounce) (int, error) {
	marked := 0
	for _, b := range bounces {
		created, err := sendLog.MarkStatus(b.Email, models.StatusBounced, b.Reason)
		if err != nil {
			return marked, fmt.Errorf("failed to mark %s: %w", b.Email, err)
		}
		if created {
			marked++
		}
	}
	return marked, nil
}
