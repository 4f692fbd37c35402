package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leeksaver/internal/config"
	"leeksaver/internal/registry"
)

func defaultKnobs() config.ScheduleConfig {
	return config.ScheduleConfig{
		L1DailyTime:          "17:30",
		L2IntervalSeconds:    300,
		L2TaskOffsetSeconds:  120,
		FinancialDayOfWeek:   6,
		FinancialHour:        20,
		FinancialMinute:      0,
		NewsCleanupDayOfWeek: 1,
		NewsCleanupHour:      2,
		NewsCleanupMinute:    0,
	}
}

func TestGenerate_IsDeterministic(t *testing.T) {
	knobs := defaultKnobs()
	a, err := Generate(registry.Tasks, knobs)
	require.NoError(t, err)
	b, err := Generate(registry.Tasks, knobs)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestGenerate_L1OffsetsStaggerAfterDailyTime(t *testing.T) {
	knobs := defaultKnobs()
	triggers, err := Generate(registry.Tasks, knobs)
	require.NoError(t, err)

	var symbolList, dailyQuotes Trigger
	for _, tr := range triggers {
		switch tr.TaskName {
		case "daily-symbol-list-sync":
			symbolList = tr
		case "daily-quotes-sync":
			dailyQuotes = tr
		}
	}

	require.Equal(t, CronTrigger, symbolList.Kind)
	require.Equal(t, CronTrigger, dailyQuotes.Kind)
	// offsets (0s, 30s) land in the same minute bucket but distinct second
	// fields, so the two tasks still fire 30s apart instead of colliding.
	assert.Equal(t, "0 30 17 * * 1-5", symbolList.CronExpr)
	assert.Equal(t, "30 30 17 * * 1-5", dailyQuotes.CronExpr)
	assert.NotEqual(t, symbolList.CronExpr, dailyQuotes.CronExpr)
}

func TestGenerate_L2UsesIntervalAndStaggeredDelay(t *testing.T) {
	knobs := defaultKnobs()
	triggers, err := Generate(registry.Tasks, knobs)
	require.NoError(t, err)

	var watchlist, realtime Trigger
	for _, tr := range triggers {
		switch tr.TaskName {
		case "intraday-watchlist-quotes-sync":
			watchlist = tr
		case "intraday-realtime-refresh":
			realtime = tr
		}
	}

	require.Equal(t, IntervalTrigger, watchlist.Kind)
	require.Equal(t, IntervalTrigger, realtime.Kind)
	assert.Equal(t, int64(0), int64(watchlist.InitialDelay.Seconds()))
	assert.Equal(t, int64(120), int64(realtime.InitialDelay.Seconds()))
}

func TestGenerate_SpecialTasksResolveToPolicyKnobs(t *testing.T) {
	knobs := defaultKnobs()
	triggers, err := Generate(registry.Tasks, knobs)
	require.NoError(t, err)

	var financial, cleanup Trigger
	for _, tr := range triggers {
		switch tr.TaskName {
		case "weekly-financial-statements-sync":
			financial = tr
		case "weekly-news-cleanup":
			cleanup = tr
		}
	}

	assert.Equal(t, "0 0 20 * * 6", financial.CronExpr)
	assert.Equal(t, "0 0 2 * * 1", cleanup.CronExpr)
}

func TestGenerate_BadDailyTimeFails(t *testing.T) {
	knobs := defaultKnobs()
	knobs.L1DailyTime = "not-a-time"
	_, err := Generate(registry.Tasks, knobs)
	assert.Error(t, err)
}

func TestNewCronSchedule_ParsesValidExpression(t *testing.T) {
	sched, err := NewCronSchedule("0 30 17 * * 1-5")
	require.NoError(t, err)
	assert.NotNil(t, sched)
}

func TestNewCronSchedule_RejectsInvalidExpression(t *testing.T) {
	_, err := NewCronSchedule("not a cron expr")
	assert.Error(t, err)
}
