package syncer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leeksaver/internal/models"
)

func makeBars(closes []float64) []models.DailyBar {
	bars := make([]models.DailyBar, len(closes))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = models.DailyBar{
			Code:      "000001.SZ",
			TradeDate: base.AddDate(0, 0, i),
			Open:      decimal.NewFromFloat(c - 0.1),
			High:      decimal.NewFromFloat(c + 0.2),
			Low:       decimal.NewFromFloat(c - 0.2),
			Close:     decimal.NewFromFloat(c),
			Volume:    1000 + int64(i),
		}
	}
	return bars
}

func TestComputeIndicators_ProducesOneRowPerBar(t *testing.T) {
	closes := []float64{10, 10.2, 10.5, 10.3, 10.8, 11.0, 10.9, 11.2, 11.5, 11.3}
	bars := makeBars(closes)

	rows := computeIndicators("000001.SZ", bars)

	require.Len(t, rows, len(bars))
	for i, row := range rows {
		assert.Equal(t, "000001.SZ", row.Code)
		assert.True(t, row.TradeDate.Equal(bars[i].TradeDate))
	}
}

func TestComputeIndicators_MA5NeedsWarmup(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15}
	bars := makeBars(closes)
	rows := computeIndicators("000001.SZ", bars)

	// fewer than 5 closes preceding index 3 (0-based) => MA5 not yet defined
	assert.True(t, rows[3].MA5.IsZero())
	// index 4 has exactly 5 closes (10..14) => MA5 = 12
	assert.True(t, rows[4].MA5.Equal(decimal.NewFromFloat(12)))
}

func TestEmaSeries_FirstValueEqualsInput(t *testing.T) {
	values := []float64{5, 6, 7}
	out := emaSeries(values, 3)
	assert.Equal(t, values[0], out[0])
}

func TestEmaSeries_EmptyInput(t *testing.T) {
	out := emaSeries(nil, 12)
	assert.Empty(t, out)
}

func TestRsiSeries_AllGainsYieldsMax(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15, 16}
	rsi := rsiSeries(closes, 14)
	assert.Equal(t, float64(100), rsi[len(rsi)-1])
}

func TestKdjSeries_FlatPriceYieldsMidpointRSV(t *testing.T) {
	highs := []float64{10, 10, 10}
	lows := []float64{10, 10, 10}
	closes := []float64{10, 10, 10}
	k, d, j := kdjSeries(highs, lows, closes, 9, 3, 3)

	// hh == ll for every window, so RSV defaults to 50 and K/D/J converge there
	assert.InDelta(t, 50.0, k[2], 0.01)
	assert.InDelta(t, 50.0, d[2], 0.01)
	assert.InDelta(t, 50.0, j[2], 0.01)
}

func TestBollingerSeries_UpperAboveLower(t *testing.T) {
	closes := []float64{10, 10.5, 11, 10.8, 11.2, 11.5}
	upper, mid, lower := bollingerSeries(closes, 20, 2)

	for i := range closes {
		assert.GreaterOrEqual(t, upper[i], mid[i])
		assert.GreaterOrEqual(t, mid[i], lower[i])
	}
}

func TestAtrSeries_FirstBarIsHighMinusLow(t *testing.T) {
	highs := []float64{11, 12}
	lows := []float64{9, 10}
	closes := []float64{10, 11}
	atr := atrSeries(highs, lows, closes, 14)

	assert.Equal(t, float64(2), atr[0])
}

func TestObvSeries_AccumulatesOnUpMoves(t *testing.T) {
	closes := []float64{10, 11, 10.5, 12}
	vols := []float64{100, 200, 150, 300}
	obv := obvSeries(closes, vols)

	assert.Equal(t, float64(0), obv[0])
	assert.Equal(t, float64(200), obv[1])  // up move: +vol[1]
	assert.Equal(t, float64(50), obv[2])   // down move: -vol[2]
	assert.Equal(t, float64(350), obv[3])  // up move: +vol[3]
}

func TestAbsFAndMaxF(t *testing.T) {
	assert.Equal(t, 3.0, absF(-3))
	assert.Equal(t, 3.0, absF(3))
	assert.Equal(t, 5.0, maxF(5, 2))
	assert.Equal(t, 5.0, maxF(2, 5))
}
