package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leeksaver/internal/frame"
)

func TestParseDailyBarFrame_BuildsParallelSlices(t *testing.T) {
	f := &frame.Frame{
		Fields: []string{"trade_date", "open", "high", "low", "close", "change", "change_pct", "vol", "amount", "turnover_rate"},
		Items: [][]interface{}{
			{"20240115", 10.0, 11.0, 9.5, 10.8, 0.3, 2.86, 100000.0, 1080000.0, 1.2},
		},
	}

	bars, ohlc := parseDailyBarFrame("000001.SZ", f)

	require.Len(t, bars, 1)
	require.Len(t, ohlc, 1)

	assert.Equal(t, "000001.SZ", bars[0].Code)
	assert.Equal(t, 2024, bars[0].TradeDate.Year())
	assert.True(t, bars[0].Open.Equal(ohlc[0].Open))
	assert.Equal(t, int64(100000), bars[0].Volume)

	assert.Equal(t, "000001.SZ|20240115", ohlc[0].Key)
	assert.False(t, ohlc[0].KeyNull)
}

func TestParseDailyBarFrame_MarksKeyNullOnBadDate(t *testing.T) {
	f := &frame.Frame{
		Fields: []string{"trade_date", "open", "high", "low", "close"},
		Items: [][]interface{}{
			{"not-a-date", 10.0, 11.0, 9.5, 10.8},
		},
	}

	_, ohlc := parseDailyBarFrame("000001.SZ", f)

	require.Len(t, ohlc, 1)
	assert.True(t, ohlc[0].KeyNull)
	assert.Equal(t, "", ohlc[0].Key)
}

func TestParseDailyBarFrame_EmptyCodeMarksKeyNull(t *testing.T) {
	f := &frame.Frame{
		Fields: []string{"trade_date", "open", "high", "low", "close"},
		Items: [][]interface{}{
			{"20240115", 10.0, 11.0, 9.5, 10.8},
		},
	}

	_, ohlc := parseDailyBarFrame("", f)
	require.Len(t, ohlc, 1)
	assert.True(t, ohlc[0].KeyNull)
}

func TestDecimalOf(t *testing.T) {
	got := decimalOf(12.5)
	assert.True(t, got.Equal(decimalOf(12.5)))
	assert.Equal(t, "12.5", got.String())
}
