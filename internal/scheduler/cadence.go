package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/hochfrequenz/tasklink/internal/config"
	"github.com/robfig/cron/v3"
)

// Cadence decides when the next pass is due
type Cadence interface {
	Next(now time.Time) time.Time
}

// BandCadence runs passes at a short interval inside an active window
// and a long interval outside it
type BandCadence struct {
	loc       *time.Location
	startHour int
	endHour   int
	active    time.Duration
	off       time.Duration
}

// NewBandCadence creates a two-band cadence. The window covers
// [startHour, endHour) in loc and wraps past midnight when start > end.
func NewBandCadence(loc *time.Location, startHour, endHour int, active, off time.Duration) *BandCadence {
	if loc == nil {
		loc = time.Local
	}
	return &BandCadence{loc: loc, startHour: startHour, endHour: endHour, active: active, off: off}
}

// Active reports whether t falls in the active window
func (b *BandCadence) Active(t time.Time) bool {
	hour := t.In(b.loc).Hour()
	if b.startHour <= b.endHour {
		return hour >= b.startHour && hour < b.endHour
	}
	return hour >= b.startHour || hour < b.endHour
}

// Interval returns the wait that applies at t
func (b *BandCadence) Interval(t time.Time) time.Duration {
	if b.Active(t) {
		return b.active
	}
	return b.off
}

// Next returns now plus the interval of the current band
func (b *BandCadence) Next(now time.Time) time.Time {
	return now.Add(b.Interval(now))
}

// CronCadence fires at the earliest of several cron schedules
type CronCadence struct {
	schedules []cron.Schedule
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron parses a cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// NewCronCadence parses exprs. Expressions without their own CRON_TZ
// prefix are evaluated in loc.
func NewCronCadence(exprs []string, loc *time.Location) (*CronCadence, error) {
	if len(exprs) == 0 {
		return nil, fmt.Errorf("at least one cron expression is required")
	}
	c := &CronCadence{}
	for _, expr := range exprs {
		if loc != nil && !strings.HasPrefix(expr, "CRON_TZ=") && !strings.HasPrefix(expr, "TZ=") {
			expr = "CRON_TZ=" + loc.String() + " " + expr
		}
		sched, err := ParseCron(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}
		c.schedules = append(c.schedules, sched)
	}
	return c, nil
}

// Next returns the earliest activation after now
func (c *CronCadence) Next(now time.Time) time.Time {
	var next time.Time
	for _, s := range c.schedules {
		t := s.Next(now)
		if t.IsZero() {
			continue
		}
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}
	return next
}

// FromConfig builds the cadence described by cfg
func FromConfig(cfg config.ScheduleConfig, loc *time.Location) (Cadence, error) {
	if len(cfg.Cron) > 0 {
		return NewCronCadence(cfg.Cron, loc)
	}
	return NewBandCadence(loc, cfg.ActiveStartHour, cfg.ActiveEndHour, cfg.ActiveInterval.Duration, cfg.OffInterval.Duration), nil
}
