package models

import (
	"fmt"
	"strings"
	"time"
)

// SendStatus is the outcome recorded for one address.
type SendStatus string

const (
	StatusSent    SendStatus = "sent"
	StatusDrafted SendStatus = "drafted"
	StatusFailed  SendStatus = "failed"
	StatusBounced SendStatus = "bounced"
	StatusDryRun  SendStatus = "dry_run"
)

// Valid reports whether s is a known status.
func (s SendStatus) Valid() bool {
	switch s {
	case StatusSent, StatusDrafted, StatusFailed, StatusBounced, StatusDryRun:
		return true
	}
	return false
}

// Processed reports whether an address with this status should be skipped by later campaigns.
func (s SendStatus) Processed() bool {
	switch s {
	case StatusSent, StatusDrafted, StatusFailed, StatusBounced:
		return true
	}
	return false
}

// CampaignMode selects whether a campaign creates drafts or sends messages.
type CampaignMode string

const (
	ModeDraft CampaignMode = "draft"
	ModeSend  CampaignMode = "send"
)

// ParseCampaignMode maps a config or flag value to a [CampaignMode].
func ParseCampaignMode(s string) (CampaignMode, error) {
	switch CampaignMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDraft, "":
		return ModeDraft, nil
	case ModeSend:
		return ModeSend, nil
	}
	return "", fmt.Errorf("unknown campaign mode %q", s)
}

// Campaign is one run of the outreach engine.
type Campaign struct {
	entity
	name        string
	mode        CampaignMode
	dryRun      bool
	sentCount   int
	failedCount int
	finishedAt  *time.Time
}

// NewCampaign creates an unsaved [Campaign].
func NewCampaign(sequence int, name string, mode CampaignMode, dryRun bool) *Campaign {
	return &Campaign{entity: newEntity(sequence), name: name, mode: mode, dryRun: dryRun}
}

func (c *Campaign) Name() string           { return c.name }
func (c *Campaign) Mode() CampaignMode     { return c.mode }
func (c *Campaign) DryRun() bool           { return c.dryRun }
func (c *Campaign) SentCount() int         { return c.sentCount }
func (c *Campaign) FailedCount() int       { return c.failedCount }
func (c *Campaign) FinishedAt() *time.Time { return c.finishedAt }

// SetCounts records the tallies of a run.
func (c *Campaign) SetCounts(sent, failed int) {
	c.sentCount = sent
	c.failedCount = failed
}

// Finish stamps the campaign as complete.
func (c *Campaign) Finish(t time.Time) { c.finishedAt = &t }

// Validate implements [Model].
func (c *Campaign) Validate() error {
	if c.id == "" {
		return fmt.Errorf("campaign id is required")
	}
	if strings.TrimSpace(c.name) == "" {
		return fmt.Errorf("campaign name is required")
	}
	if c.mode != ModeDraft && c.mode != ModeSend {
		return fmt.Errorf("invalid campaign mode %q", c.mode)
	}
	if c.sentCount < 0 || c.failedCount < 0 {
		return fmt.Errorf("campaign counts cannot be negative")
	}
	return nil
}

// SendRecord is a send-log row: what happened to one address in one campaign.
//
// CampaignID is empty for rows that come from bounce scans or failure imports.
type SendRecord struct {
	entity
	campaignID string
	email      string
	status     SendStatus
	messageID  string
	reason     string
}

// NewSendRecord creates an unsaved [SendRecord]. The address is stored lowercased.
func NewSendRecord(sequence int, campaignID, email string, status SendStatus) *SendRecord {
	return &SendRecord{
		entity:     newEntity(sequence),
		campaignID: campaignID,
		email:      strings.ToLower(strings.TrimSpace(email)),
		status:     status,
	}
}

func (r *SendRecord) CampaignID() string { return r.campaignID }
func (r *SendRecord) Email() string      { return r.email }
func (r *SendRecord) Status() SendStatus { return r.status }
func (r *SendRecord) MessageID() string  { return r.messageID }
func (r *SendRecord) Reason() string     { return r.reason }

func (r *SendRecord) SetStatus(s SendStatus)   { r.status = s }
func (r *SendRecord) SetMessageID(id string)  { r.messageID = id }
func (r *SendRecord) SetReason(reason string) { r.reason = reason }

// Validate implements [Model].
func (r *SendRecord) Validate() error {
	if r.id == "" {
		return fmt.Errorf("send record id is required")
	}
	if r.email == "" || !strings.Contains(r.email, "@") {
		return fmt.Errorf("send record email %q is invalid", r.email)
	}
	if !r.status.Valid() {
		return fmt.Errorf("invalid send status %q", r.status)
	}
	return nil
}
