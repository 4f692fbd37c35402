// Package registry holds the Task Registry: a flat, immutable-after-load
// list of TaskMetadata records, the single source of truth the Schedule
// Generator consumes (spec.md §4.6). Transliterated from
// app/tasks/task_registry.py's ALL_TASKS module-level list rather than
// the decorator-driven registration the original framework otherwise
// supports — see DESIGN.md's Open Questions / re-architecture notes.
package registry

// Tier classifies a task's scheduling cadence.
type Tier int

const (
	L1 Tier = iota // daily, post-close
	L2             // intraday, fixed polling interval
	Special        // cron-shaped, e.g. weekly financial sync
)

func (t Tier) String() string {
	switch t {
	case L1:
		return "L1"
	case L2:
		return "L2"
	case Special:
		return "SPECIAL"
	default:
		return "UNKNOWN"
	}
}

// TaskMetadata is one entry in the registry: name, callable reference,
// scheduling tier, L2 stagger position, and (for SPECIAL tasks only) a
// human-readable schedule label. The Schedule Generator does not read that
// label; it builds SPECIAL cron expressions from the policy knobs.
type TaskMetadata struct {
	Name             string
	SyncerName       string // resolved against syncer.Registry at dispatch time
	Tier             Tier
	OffsetMultiplier int    // L2: initial delay = OffsetMultiplier * L2TaskOffsetSeconds
	PositionalOffsetSeconds int // L1: fixed delay after L1DailyTime, to avoid DB contention
	ScheduleSpec     string // SPECIAL only, descriptive label of the default schedule: e.g. "Sat 20:00", "Mon 02:00"
	DependsOn        string // same-wave ordering hint (e.g. tech_indicators depends on daily_quotes)
}

// Tasks is the compile-time list of every registered task, transliterated
// from the Python original's L0_TASKS/L1_TASKS/L2_TASKS groupings and
// collapsed per spec.md into L1/L2/SPECIAL.
var Tasks = []TaskMetadata{
	{Name: "daily-symbol-list-sync", SyncerName: "symbol_list", Tier: L1, PositionalOffsetSeconds: 0},
	{Name: "daily-quotes-sync", SyncerName: "daily_quotes", Tier: L1, PositionalOffsetSeconds: 30},
	{Name: "daily-tech-indicator-calc", SyncerName: "tech_indicators", Tier: L1, PositionalOffsetSeconds: 60, DependsOn: "daily-quotes-sync"},
	{Name: "daily-valuation-sync", SyncerName: "valuation", Tier: L1, PositionalOffsetSeconds: 90},
	{Name: "daily-fund-flow-sync", SyncerName: "fund_flow", Tier: L1, PositionalOffsetSeconds: 120},
	{Name: "daily-margin-sync", SyncerName: "margin", Tier: L1, PositionalOffsetSeconds: 150},
	{Name: "daily-dragon-tiger-sync", SyncerName: "dragon_tiger", Tier: L1, PositionalOffsetSeconds: 180},
	{Name: "daily-northbound-flow-sync", SyncerName: "northbound_flow", Tier: L1, PositionalOffsetSeconds: 210},
	{Name: "daily-market-sentiment-sync", SyncerName: "market_sentiment", Tier: L1, PositionalOffsetSeconds: 240},
	{Name: "daily-limit-up-sync", SyncerName: "limit_up", Tier: L1, PositionalOffsetSeconds: 255},
	{Name: "daily-sector-quotes-sync", SyncerName: "sector_quotes", Tier: L1, PositionalOffsetSeconds: 270},
	{Name: "daily-news-sync", SyncerName: "news", Tier: L1, PositionalOffsetSeconds: 300},
	{Name: "daily-embeddings-backfill", SyncerName: "embeddings", Tier: L1, PositionalOffsetSeconds: 330},
	{Name: "daily-doctor-audit", SyncerName: "", Tier: L1, PositionalOffsetSeconds: 360}, // dispatched directly to the Data Doctor, not a syncer

	{Name: "intraday-watchlist-quotes-sync", SyncerName: "minute_quotes", Tier: L2, OffsetMultiplier: 0},
	{Name: "intraday-realtime-refresh", SyncerName: "realtime_refresh", Tier: L2, OffsetMultiplier: 1},

	{Name: "weekly-financial-statements-sync", SyncerName: "financial_statements", Tier: Special, ScheduleSpec: "Sat 20:00"},
	{Name: "weekly-news-cleanup", SyncerName: "news_cleanup", Tier: Special, ScheduleSpec: "Mon 02:00"},
}

// ByName returns the TaskMetadata with the given name, or false if absent.
func ByName(name string) (TaskMetadata, bool) {
	for _, t := range Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return TaskMetadata{}, false
}
