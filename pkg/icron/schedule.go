// Package icron inspects cron expressions so startup logs can report
// when the cleanup sweep last fired and will fire next.
package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// TriggerInfo describes a cron expression relative to a reference time.
// Last stays zero when no trigger fell inside the past year.
type TriggerInfo struct {
	Next       time.Time
	Last       time.Time
	Expression string

	TimeSinceLast time.Duration
	TimeUntilNext time.Duration
}

// GetTriggerInfo evaluates a six-field cron expression (seconds
// included, descriptors like @daily accepted) around refTime.
func GetTriggerInfo(cronExpr string, refTime time.Time) (*TriggerInfo, error) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour |
		cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	info := &TriggerInfo{
		Expression: cronExpr,
		Next:       schedule.Next(refTime),
	}
	info.TimeUntilNext = info.Next.Sub(refTime)

	// The schedule only exposes Next, so the previous trigger is found
	// by stepping the search point back an hour at a time until the
	// first trigger after it lands at or before refTime. Capped at one
	// year for sparse schedules.
	for back := time.Hour; back <= 366*24*time.Hour; back += time.Hour {
		candidate := schedule.Next(refTime.Add(-back))
		if !candidate.After(refTime) {
			info.Last = candidate
			info.TimeSinceLast = refTime.Sub(candidate)
			break
		}
	}

	return info, nil
}
