// Package scheduler implements the Schedule Generator: a pure function
// from the Task Registry plus four policy knobs to a concrete set of
// triggers (spec.md §4.6). Cron-shaped triggers are parsed with
// robfig/cron/v3 rather than a hand-rolled field matcher, unlike the
// simplified matcher grand-thief-cash-chaos's cronjob example hand-rolls
// for its generic HTTP dispatcher (kept only as a grounding reference).
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"leeksaver/internal/config"
	"leeksaver/internal/errkind"
	"leeksaver/internal/registry"
)

// TriggerKind distinguishes the two trigger shapes a task can produce.
type TriggerKind int

const (
	CronTrigger TriggerKind = iota
	IntervalTrigger
)

func (k TriggerKind) String() string {
	if k == CronTrigger {
		return "cron"
	}
	return "interval"
}

// Trigger is one concrete, schedulable instruction derived from a
// TaskMetadata entry and the policy knobs.
type Trigger struct {
	TaskName     string
	Kind         TriggerKind
	CronExpr     string        // set when Kind == CronTrigger
	Interval     time.Duration // set when Kind == IntervalTrigger
	InitialDelay time.Duration // set when Kind == IntervalTrigger
}

// Generate is pure: identical tasks + knobs always produce an equal
// trigger set (P3). It parses every cron expression it builds eagerly so
// a bad expression (e.g. from an out-of-range knob) fails at generation
// time, not at first fire.
func Generate(tasks []registry.TaskMetadata, knobs config.ScheduleConfig) ([]Trigger, error) {
	parser := cronParser()

	l1Hour, l1Minute, err := parseHHMM(knobs.L1DailyTime)
	if err != nil {
		return nil, errkind.New(errkind.ConfigError, "scheduler.Generate", err)
	}

	triggers := make([]Trigger, 0, len(tasks))
	for _, t := range tasks {
		switch t.Tier {
		case registry.L1:
			second := t.PositionalOffsetSeconds % 60
			totalMinutes := l1Minute + t.PositionalOffsetSeconds/60
			minute := totalMinutes % 60
			hour := (l1Hour + totalMinutes/60) % 24
			expr := fmt.Sprintf("%d %d %d * * 1-5", second, minute, hour)
			if _, err := parser.Parse(expr); err != nil {
				return nil, errkind.New(errkind.ConfigError, "scheduler.Generate", fmt.Errorf("task %s: %w", t.Name, err))
			}
			triggers = append(triggers, Trigger{TaskName: t.Name, Kind: CronTrigger, CronExpr: expr})

		case registry.L2:
			triggers = append(triggers, Trigger{
				TaskName:     t.Name,
				Kind:         IntervalTrigger,
				Interval:     time.Duration(knobs.L2IntervalSeconds) * time.Second,
				InitialDelay: time.Duration(t.OffsetMultiplier*knobs.L2TaskOffsetSeconds) * time.Second,
			})

		case registry.Special:
			expr, err := specialCronExpr(t, knobs)
			if err != nil {
				return nil, err
			}
			if _, err := parser.Parse(expr); err != nil {
				return nil, errkind.New(errkind.ConfigError, "scheduler.Generate", fmt.Errorf("task %s: %w", t.Name, err))
			}
			triggers = append(triggers, Trigger{TaskName: t.Name, Kind: CronTrigger, CronExpr: expr})

		default:
			return nil, errkind.New(errkind.ConfigError, "scheduler.Generate", fmt.Errorf("task %s: unknown tier %v", t.Name, t.Tier))
		}
	}
	return triggers, nil
}

// specialCronExpr resolves a SPECIAL task's cron expression from the
// matching policy knob pair (financial sync or news cleanup), since
// spec.md §6 exposes those as their own day/hour/minute env vars rather
// than a raw cron string.
func specialCronExpr(t registry.TaskMetadata, knobs config.ScheduleConfig) (string, error) {
	switch t.SyncerName {
	case "financial_statements":
		return fmt.Sprintf("0 %d %d * * %d", knobs.FinancialMinute, knobs.FinancialHour, knobs.FinancialDayOfWeek), nil
	case "news_cleanup":
		return fmt.Sprintf("0 %d %d * * %d", knobs.NewsCleanupMinute, knobs.NewsCleanupHour, knobs.NewsCleanupDayOfWeek), nil
	default:
		return "", errkind.New(errkind.ConfigError, "scheduler.specialCronExpr", fmt.Errorf("task %s: no policy knob bound for SPECIAL schedule", t.Name))
	}
}

func parseHHMM(s string) (hour, minute int, err error) {
	if s == "" {
		return 17, 30, nil
	}
	_, err = fmt.Sscanf(s, "%d:%d", &hour, &minute)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid HH:MM %q: %w", s, err)
	}
	return hour, minute, nil
}

// NewCronSchedule parses a cron expression into a robfig/cron Schedule,
// for callers that need Next(t) rather than just the raw expression
// string. The daemon's dispatch loop does not use it; it hands the
// expression to its own cron runner.
func NewCronSchedule(expr string) (cron.Schedule, error) {
	return cronParser().Parse(expr)
}

// cronParser carries an explicit seconds field so L1 positional offsets
// under a minute (spec.md §4.6's DB-contention stagger) survive instead
// of collapsing into the same minute bucket.
func cronParser() cron.Parser {
	return cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
}
