package syncer

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"leeksaver/internal/config"
	"leeksaver/internal/models"
	"leeksaver/internal/repository"
)

// lookbackBars is the rolling window tech_indicators reads per code —
// enough history for a 60-day MA plus the warmup every other indicator in
// this file needs.
const lookbackBars = 120

// TechIndicatorSyncer is a pure-derived syncer: it never calls the
// upstream adapter, only recomputes from already-stored DailyBar rows, so
// it carries no Rate Gate. Its registry PositionalOffsetSeconds (60, vs
// 30 for daily-quotes-sync) fires it after the bar sync starts; the
// registry's DependsOn field is not read by the scheduler, and nothing
// waits for the bar sync to finish.
type TechIndicatorSyncer struct {
	bars            *repository.DailyBarRepository
	indicators      *repository.TechIndicatorRepository
	symbols         *repository.SymbolRepository
	syncErrs        *repository.SyncErrorRepository
	logger          *zap.Logger
	recomputeScope  string // "latest" | "all_changed"
	concurrency     int
}

func NewTechIndicatorSyncer(bars *repository.DailyBarRepository, indicators *repository.TechIndicatorRepository, symbols *repository.SymbolRepository, syncErrs *repository.SyncErrorRepository, logger *zap.Logger, cfg config.SyncConfig) *TechIndicatorSyncer {
	return &TechIndicatorSyncer{
		bars: bars, indicators: indicators, symbols: symbols, syncErrs: syncErrs, logger: logger,
		recomputeScope: cfg.TechIndicatorRecomputeBy, concurrency: 10,
	}
}

func (s *TechIndicatorSyncer) Name() string { return "tech_indicators" }

func (s *TechIndicatorSyncer) Run(ctx context.Context, scope Scope) (Report, error) {
	codes := scope.Codes
	if len(codes) == 0 {
		active, err := s.symbols.ListActive(ctx)
		if err != nil {
			return Report{}, err
		}
		for _, sym := range active {
			codes = append(codes, sym.Code)
		}
	}

	var total Report
	for _, shard := range Shard(codes, ShardThreshold) {
		if err := checkCancelled(ctx); err != nil {
			return total, err
		}
		total.merge(s.runShard(ctx, shard))
	}
	return total, nil
}

func (s *TechIndicatorSyncer) runShard(ctx context.Context, codes []string) Report {
	var report Report
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, code := range codes {
		code := code
		g.Go(func() error {
			bars, err := s.bars.RangeByCode(gctx, code, time.Now().AddDate(0, 0, -400), time.Now())
			if err != nil {
				mu.Lock()
				recordSyncError(gctx, s.syncErrs, s.logger, s.Name(), code, err)
				report.Errors++
				mu.Unlock()
				return nil
			}
			if len(bars) > lookbackBars {
				bars = bars[len(bars)-lookbackBars:]
			}
			if len(bars) < 5 {
				// too little history to derive anything meaningful yet
				return nil
			}

			rows := computeIndicators(code, bars)
			if s.recomputeScope == "latest" && len(rows) > 0 {
				rows = rows[len(rows)-1:]
			}
			for i := range rows {
				rows[i].SourceVersion = 1
			}

			mu.Lock()
			defer mu.Unlock()
			report.Fetched += len(bars)
			if err := s.indicators.Upsert(gctx, rows); err != nil {
				recordSyncError(gctx, s.syncErrs, s.logger, s.Name(), code, err)
				report.Errors++
				return nil
			}
			report.Accepted += len(rows)
			report.Written += len(rows)
			resolveSyncError(gctx, s.syncErrs, s.logger, s.Name(), code)
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// computeIndicators derives MA5/10/20/60, MACD(12,26,9), RSI14, KDJ(9,3,3),
// Bollinger(20,2), CCI(14), ATR(14) and OBV from an ordered (ascending
// trade_date) run of DailyBar rows. Internally uses float64 — the
// precision loss is immaterial for indicators already smoothed over
// multi-day windows, and keeps the rolling-window math readable.
func computeIndicators(code string, bars []models.DailyBar) []models.TechIndicator {
	n := len(bars)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	vols := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close.InexactFloat64()
		highs[i] = b.High.InexactFloat64()
		lows[i] = b.Low.InexactFloat64()
		vols[i] = float64(b.Volume)
	}

	ma := func(period, i int) float64 {
		if i+1 < period {
			return 0
		}
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += closes[j]
		}
		return sum / float64(period)
	}

	ema := emaSeries(closes, 12)
	emaSlow := emaSeries(closes, 26)
	macdLine := make([]float64, n)
	for i := range macdLine {
		macdLine[i] = ema[i] - emaSlow[i]
	}
	signalLine := emaSeries(macdLine, 9)

	rsi := rsiSeries(closes, 14)
	kdjK, kdjD, kdjJ := kdjSeries(highs, lows, closes, 9, 3, 3)
	bollUpper, bollMid, bollLower := bollingerSeries(closes, 20, 2)
	cci := cciSeries(highs, lows, closes, 14)
	atr := atrSeries(highs, lows, closes, 14)
	obv := obvSeries(closes, vols)

	out := make([]models.TechIndicator, n)
	for i, b := range bars {
		out[i] = models.TechIndicator{
			Code:       code,
			TradeDate:  b.TradeDate,
			MA5:        decimal.NewFromFloat(ma(5, i)),
			MA10:       decimal.NewFromFloat(ma(10, i)),
			MA20:       decimal.NewFromFloat(ma(20, i)),
			MA60:       decimal.NewFromFloat(ma(60, i)),
			MACD:       decimal.NewFromFloat(macdLine[i]),
			MACDSignal: decimal.NewFromFloat(signalLine[i]),
			MACDHist:   decimal.NewFromFloat((macdLine[i] - signalLine[i]) * 2),
			RSI14:      decimal.NewFromFloat(rsi[i]),
			KDJ_K:      decimal.NewFromFloat(kdjK[i]),
			KDJ_D:      decimal.NewFromFloat(kdjD[i]),
			KDJ_J:      decimal.NewFromFloat(kdjJ[i]),
			BOLLUpper:  decimal.NewFromFloat(bollUpper[i]),
			BOLLMid:    decimal.NewFromFloat(bollMid[i]),
			BOLLLower:  decimal.NewFromFloat(bollLower[i]),
			CCI:        decimal.NewFromFloat(cci[i]),
			ATR:        decimal.NewFromFloat(atr[i]),
			OBV:        decimal.NewFromFloat(obv[i]),
		}
	}
	return out
}

func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

func rsiSeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	var avgGain, avgLoss float64
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		if i <= period {
			avgGain = (avgGain*float64(i-1) + gain) / float64(i)
			avgLoss = (avgLoss*float64(i-1) + loss) / float64(i)
		} else {
			avgGain = (avgGain*float64(period-1) + gain) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		}
		if avgLoss == 0 {
			out[i] = 100
		} else {
			rs := avgGain / avgLoss
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}

func kdjSeries(highs, lows, closes []float64, rsvPeriod, kSmooth, dSmooth int) (k, d, j []float64) {
	n := len(closes)
	k, d, j = make([]float64, n), make([]float64, n), make([]float64, n)
	prevK, prevD := 50.0, 50.0
	for i := 0; i < n; i++ {
		start := i - rsvPeriod + 1
		if start < 0 {
			start = 0
		}
		hh, ll := highs[start], lows[start]
		for x := start; x <= i; x++ {
			if highs[x] > hh {
				hh = highs[x]
			}
			if lows[x] < ll {
				ll = lows[x]
			}
		}
		rsv := 50.0
		if hh != ll {
			rsv = (closes[i] - ll) / (hh - ll) * 100
		}
		curK := (prevK*float64(kSmooth-1) + rsv) / float64(kSmooth)
		curD := (prevD*float64(dSmooth-1) + curK) / float64(dSmooth)
		k[i], d[i], j[i] = curK, curD, 3*curK-2*curD
		prevK, prevD = curK, curD
	}
	return
}

func bollingerSeries(closes []float64, period int, numStdDev float64) (upper, mid, lower []float64) {
	n := len(closes)
	upper, mid, lower = make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		start := i - period + 1
		if start < 0 {
			start = 0
		}
		window := closes[start : i+1]
		mean := 0.0
		for _, v := range window {
			mean += v
		}
		mean /= float64(len(window))
		variance := 0.0
		for _, v := range window {
			variance += (v - mean) * (v - mean)
		}
		variance /= float64(len(window))
		stddev := math.Sqrt(variance)
		mid[i] = mean
		upper[i] = mean + numStdDev*stddev
		lower[i] = mean - numStdDev*stddev
	}
	return
}

func cciSeries(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i - period + 1
		if start < 0 {
			start = 0
		}
		typicalSum := 0.0
		count := 0
		for x := start; x <= i; x++ {
			typicalSum += (highs[x] + lows[x] + closes[x]) / 3
			count++
		}
		meanTP := typicalSum / float64(count)
		typical := (highs[i] + lows[i] + closes[i]) / 3
		meanDev := 0.0
		for x := start; x <= i; x++ {
			tp := (highs[x] + lows[x] + closes[x]) / 3
			meanDev += absF(tp - meanTP)
		}
		meanDev /= float64(count)
		if meanDev == 0 {
			out[i] = 0
			continue
		}
		out[i] = (typical - meanTP) / (0.015 * meanDev)
	}
	return out
}

func atrSeries(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	trueRange := make([]float64, n)
	for i := 0; i < n; i++ {
		if i == 0 {
			trueRange[i] = highs[i] - lows[i]
			continue
		}
		hl := highs[i] - lows[i]
		hc := absF(highs[i] - closes[i-1])
		lc := absF(lows[i] - closes[i-1])
		trueRange[i] = maxF(hl, maxF(hc, lc))
	}
	return emaSeries(trueRange, period)
}

func obvSeries(closes, vols []float64) []float64 {
	out := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			out[i] = out[i-1] + vols[i]
		case closes[i] < closes[i-1]:
			out[i] = out[i-1] - vols[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
