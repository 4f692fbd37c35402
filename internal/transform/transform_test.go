package transform

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func TestCleanOHLC_DropsNullPrimaryKey(t *testing.T) {
	rows := []OHLCRow{
		{Key: "000001|20240115", Open: d("10"), High: d("11"), Low: d("9"), Close: d("10.5"), ChangePct: d("1")},
		{KeyNull: true, Open: d("10"), High: d("11"), Low: d("9"), Close: d("10.5"), ChangePct: d("1")},
	}
	out, counters, err := CleanOHLC("test.CleanOHLC", rows)
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, 1, counters.RejectedNullPK)
	assert.Equal(t, 1, counters.Accepted)
}

func TestCleanOHLC_DropsInvertedOrNonPositive(t *testing.T) {
	rows := []OHLCRow{
		{Key: "A|1", Open: d("10"), High: d("9"), Low: d("11"), Close: d("10"), ChangePct: d("1")}, // high < low
		{Key: "B|1", Open: d("0"), High: d("11"), Low: d("9"), Close: d("10"), ChangePct: d("1")},  // non-positive open
		{Key: "C|1", Open: d("10"), High: d("11"), Low: d("9"), Close: d("10"), ChangePct: d("1")}, // valid
		{Key: "D|1", Open: d("10"), High: d("11"), Low: d("9"), Close: d("10"), ChangePct: d("1")}, // valid
		{Key: "E|1", Open: d("10"), High: d("11"), Low: d("9"), Close: d("10"), ChangePct: d("1")}, // valid; keeps rejection at 2/5, under the SchemaDrift threshold
	}
	out, counters, err := CleanOHLC("test.CleanOHLC", rows)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "C|1", out[0].Key)
	assert.Equal(t, 2, counters.RejectedOHLC)
}

func TestCleanOHLC_DropsOpenCloseOutsideHighLowBand(t *testing.T) {
	rows := []OHLCRow{
		{Key: "A|1", Open: d("100"), High: d("11"), Low: d("9"), Close: d("10"), ChangePct: d("1")}, // open above high
		{Key: "B|1", Open: d("10"), High: d("11"), Low: d("9"), Close: d("100"), ChangePct: d("1")},  // close above high
		{Key: "C|1", Open: d("1"), High: d("11"), Low: d("9"), Close: d("10"), ChangePct: d("1")},    // open below low
		{Key: "D|1", Open: d("10"), High: d("11"), Low: d("9"), Close: d("10"), ChangePct: d("1")},   // valid
		{Key: "E|1", Open: d("10"), High: d("11"), Low: d("9"), Close: d("10"), ChangePct: d("1")},   // valid
		{Key: "F|1", Open: d("10"), High: d("11"), Low: d("9"), Close: d("10"), ChangePct: d("1")},   // valid; keeps rejection at 3/6, not above the SchemaDrift threshold
	}
	out, counters, err := CleanOHLC("test.CleanOHLC", rows)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "D|1", out[0].Key)
	assert.Equal(t, 3, counters.RejectedOHLC)
}

func TestCleanOHLC_DropsExcessiveChangePct(t *testing.T) {
	rows := []OHLCRow{
		{Key: "A|1", Open: d("10"), High: d("11"), Low: d("9"), Close: d("10"), ChangePct: d("35")},
		{Key: "B|1", Open: d("10"), High: d("11"), Low: d("9"), Close: d("10"), ChangePct: d("-35")},
		{Key: "C|1", Open: d("10"), High: d("11"), Low: d("9"), Close: d("10"), ChangePct: d("5")},
		{Key: "D|1", Open: d("10"), High: d("11"), Low: d("9"), Close: d("10"), ChangePct: d("5")},
		{Key: "E|1", Open: d("10"), High: d("11"), Low: d("9"), Close: d("10"), ChangePct: d("5")},
	}
	out, counters, err := CleanOHLC("test.CleanOHLC", rows)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "C|1", out[0].Key)
	assert.Equal(t, 2, counters.RejectedPctChg)
}

func TestCleanOHLC_DedupKeepsLastOccurrence(t *testing.T) {
	rows := []OHLCRow{
		{Key: "A|1", Open: d("10"), High: d("11"), Low: d("9"), Close: d("10"), ChangePct: d("1")},
		{Key: "A|1", Open: d("10"), High: d("11"), Low: d("9"), Close: d("10.2"), ChangePct: d("1")},
	}
	out, counters, err := CleanOHLC("test.CleanOHLC", rows)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Close.Equal(d("10.2")))
	assert.Equal(t, 1, counters.DeduplicatedOut)
}

func TestCleanOHLC_MajorityRejectionReportsSchemaDrift(t *testing.T) {
	rows := make([]OHLCRow, 10)
	for i := range rows {
		rows[i] = OHLCRow{Key: "", KeyNull: true} // every row fails rule 1
	}
	_, _, err := CleanOHLC("test.CleanOHLC", rows)
	require.Error(t, err)
}

func TestDedupKeepLast(t *testing.T) {
	keys := []string{"a", "b", "a", "c", "b"}
	keep := DedupKeepLast(keys)

	kept := make([]string, len(keep))
	for i, idx := range keep {
		kept[i] = keys[idx]
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, kept)
	// "a" and "b" must resolve to their LAST index, not first
	for i, idx := range keep {
		if kept[i] == "a" {
			assert.Equal(t, 2, idx)
		}
		if kept[i] == "b" {
			assert.Equal(t, 4, idx)
		}
	}
}
