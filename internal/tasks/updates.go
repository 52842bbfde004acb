package tasks

import (
	"fmt"
	"time"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ParseContacts Phase = iota
	FilterContacts
	ValidateEmails
	RenderMessage
	SendMessage
	WaitPacer
	ScanBounces
	EnrichContacts
)

func (p Phase) String() string {
	switch p {
	case ParseContacts:
		return "parse"
	case FilterContacts:
		return "filter"
	case ValidateEmails:
		return "validate"
	case RenderMessage:
		return "render"
	case SendMessage:
		return "send"
	case WaitPacer:
		return "wait"
	case ScanBounces:
		return "bounces"
	case EnrichContacts:
		return "enrich"
	default:
		return ""
	}
}

// sendProgress delivers u without blocking; updates are dropped when nobody is listening.
func sendProgress(prog chan<- ProgressUpdate, u ProgressUpdate) {
	if prog == nil {
		return
	}
	select {
	case prog <- u:
	default:
	}
}

func filterUpdate(kept, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FilterContacts,
		Step:    kept,
		Total:   total,
		Message: fmt.Sprintf("%d of %d contacts match the campaign filters", kept, total),
	}
}

func validatingUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ValidateEmails,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Validating %d email addresses...", total),
	}
}

func validatedUpdate(valid, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ValidateEmails,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("%d of %d addresses passed validation", valid, total),
	}
}

func sendUpdate(step, total int, res SendResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s (%s)", step, total, res.Email, res.Status)
	if res.Err != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Email, res.Err)
	}
	return ProgressUpdate{Phase: SendMessage, Step: step, Total: total, Message: msg, Data: res}
}

func waitUpdate(step, total int, d time.Duration, reason string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WaitPacer,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Waiting %s (%s)", d.Round(time.Second), reason),
		Data:    d,
	}
}

func bounceScanUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanBounces,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Processed %d/%d messages...", step, total),
	}
}

func enrichUpdate(step, total int, res EnrichOutcome) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] %s", step, total, res.PlaylistID)
	if res.Err != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.PlaylistID, res.Err)
	}
	return ProgressUpdate{Phase: EnrichContacts, Step: step, Total: total, Message: msg}
}
