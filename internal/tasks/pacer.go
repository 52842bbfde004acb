package tasks

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/desertthunder/pitch/internal/models"
	"github.com/desertthunder/pitch/internal/shared"
	"golang.org/x/time/rate"
)

// Pacer spaces out sends and enforces hourly and daily caps.
//
// Consecutive sends are separated by a random gap between the minimum and maximum delay. When
// the hourly cap is reached the pacer waits for the window to reset; the daily cap ends the run
// with [shared.ErrDailyLimit].
type Pacer struct {
	minDelay, maxDelay time.Duration
	hourly, daily      int

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64

	// OnWait, when set, is called before each non-zero wait.
	OnWait func(d time.Duration, reason string)

	mu        sync.Mutex
	floor     *rate.Limiter
	last      time.Time
	hourStart time.Time
	dayStart  time.Time
	hourCount int
	dayCount  int
}

// NewPacer creates a pacer from configured limits. Zero limits disable the corresponding cap.
func NewPacer(limits shared.LimitsConfig) *Pacer {
	minDelay, maxDelay := limits.MinDelay(), limits.MaxDelay()
	if maxDelay < minDelay {
		maxDelay = minDelay
	}

	p := &Pacer{
		minDelay: minDelay,
		maxDelay: maxDelay,
		hourly:   limits.Hourly,
		daily:    limits.Daily,
		now:      time.Now,
		sleep:    sleepContext,
		jitter:   rand.Float64,
	}
	p.floor = newFloorLimiter(minDelay)
	start := p.now()
	p.hourStart, p.dayStart = start, start
	return p
}

func newFloorLimiter(gap time.Duration) *rate.Limiter {
	if gap <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(gap), 1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SendCounter is the part of the send log the pacer seeds itself from.
type SendCounter interface {
	CountSince(status models.SendStatus, since time.Time) (int, error)
	LastSentAt() (time.Time, bool, error)
}

// Seed loads counts from the send log so caps hold across restarts. The hourly and daily windows
// restart at the time of seeding.
func (p *Pacer) Seed(log SendCounter) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	hour, err := log.CountSince(models.StatusSent, now.Add(-time.Hour))
	if err != nil {
		return err
	}
	day, err := log.CountSince(models.StatusSent, now.Add(-24*time.Hour))
	if err != nil {
		return err
	}
	last, ok, err := log.LastSentAt()
	if err != nil {
		return err
	}

	p.hourStart, p.dayStart = now, now
	p.hourCount, p.dayCount = hour, day
	if ok {
		p.last = last
		p.floor.ReserveN(last, 1)
	}
	return nil
}

// roll resets windows that have elapsed. Callers hold mu.
func (p *Pacer) roll(now time.Time) {
	if now.Sub(p.dayStart) >= 24*time.Hour {
		p.dayStart, p.dayCount = now, 0
	}
	if now.Sub(p.hourStart) >= time.Hour {
		p.hourStart, p.hourCount = now, 0
	}
}

// gap picks the randomized spacing for the next send.
func (p *Pacer) gap() time.Duration {
	spread := p.maxDelay - p.minDelay
	return p.minDelay + time.Duration(p.jitter()*float64(spread))
}

// Wait blocks until the next send is allowed. It returns [shared.ErrDailyLimit] when the daily
// cap is reached and the context error when ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := p.now()
	p.roll(now)

	if p.daily > 0 && p.dayCount >= p.daily {
		p.mu.Unlock()
		return shared.ErrDailyLimit
	}

	if p.hourly > 0 && p.hourCount >= p.hourly {
		d := p.hourStart.Add(time.Hour).Sub(now)
		p.mu.Unlock()
		if err := p.pause(ctx, d, "hourly limit reached"); err != nil {
			return err
		}
		p.mu.Lock()
		now = p.now()
		p.roll(now)
		// the hour may not have rolled if the clock did not advance
		if p.hourCount >= p.hourly {
			p.hourStart, p.hourCount = now, 0
		}
	}

	var d time.Duration
	if !p.last.IsZero() {
		d = p.gap() - now.Sub(p.last)
		if r := p.floor.ReserveN(now, 1); r.OK() {
			d = max(d, r.DelayFrom(now))
		}
	}
	p.mu.Unlock()

	return p.pause(ctx, d, "pacing between sends")
}

func (p *Pacer) pause(ctx context.Context, d time.Duration, reason string) error {
	if d <= 0 {
		return ctx.Err()
	}
	if p.OnWait != nil {
		p.OnWait(d, reason)
	}
	return p.sleep(ctx, d)
}

// Record counts a completed send.
func (p *Pacer) Record() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.roll(now)
	p.last = now
	p.hourCount++
	p.dayCount++
}

// Remaining reports how many sends are left in the current hour and day. Disabled caps report -1.
func (p *Pacer) Remaining() (hour, day int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.roll(p.now())
	hour, day = -1, -1
	if p.hourly > 0 {
		hour = max(p.hourly-p.hourCount, 0)
	}
	if p.daily > 0 {
		day = max(p.daily-p.dayCount, 0)
	}
	return hour, day
}
