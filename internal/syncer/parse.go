package syncer

import (
	"fmt"

	"github.com/shopspring/decimal"

	"leeksaver/internal/frame"
	"leeksaver/internal/models"
	"leeksaver/internal/transform"
)

// decimalOf wraps decimal.NewFromFloat for the many per-row float->decimal
// conversions in the simpler (non-OHLC) syncers.
func decimalOf(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// parseDailyBarFrame converts one upstream DailyBars frame into parallel
// []models.DailyBar and []transform.OHLCRow slices (same index), so the
// cleaning pipeline can decide which indices survive before the caller
// upserts only the survivors.
func parseDailyBarFrame(code string, f *frame.Frame) ([]models.DailyBar, []transform.OHLCRow) {
	rows := f.Rows()
	bars := make([]models.DailyBar, 0, len(rows))
	ohlc := make([]transform.OHLCRow, 0, len(rows))

	for _, row := range rows {
		tradeDate, ok := row.Date("trade_date")
		keyNull := !ok || code == ""

		open := decimal.NewFromFloat(row.Float("open"))
		high := decimal.NewFromFloat(row.Float("high"))
		low := decimal.NewFromFloat(row.Float("low"))
		close := decimal.NewFromFloat(row.Float("close"))
		changePct := decimal.NewFromFloat(row.Float("change_pct"))

		key := ""
		if !keyNull {
			key = fmt.Sprintf("%s|%s", code, tradeDate.Format("20060102"))
		}

		bars = append(bars, models.DailyBar{
			Code:         code,
			TradeDate:    tradeDate,
			Open:         open,
			High:         high,
			Low:          low,
			Close:        close,
			Volume:       row.Int("vol"),
			Amount:       decimal.NewFromFloat(row.Float("amount")),
			Change:       decimal.NewFromFloat(row.Float("change")),
			ChangePct:    changePct,
			TurnoverRate: decimal.NewFromFloat(row.Float("turnover_rate")),
		})
		ohlc = append(ohlc, transform.OHLCRow{
			Key:       key,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			ChangePct: changePct,
			KeyNull:   keyNull,
		})
	}
	return bars, ohlc
}
