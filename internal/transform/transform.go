// Package transform implements the ordered domain cleaning rules of
// spec.md §4.3 that sit between the Upstream Adapter and the Repositories.
// It operates on rows that syncers have already mapped and typecast into
// OHLCRow; it does no column renaming, projection or typecasting itself,
// and rows are not rejected here for a failed typecast.
package transform

import (
	"github.com/shopspring/decimal"

	"leeksaver/internal/errkind"
)

// Counters tallies outcomes for one batch; Accepted + the three Rejected*
// counts + DeduplicatedOut always equals the number of input rows.
type Counters struct {
	Accepted        int
	RejectedNullPK  int
	RejectedOHLC    int
	RejectedPctChg  int
	DeduplicatedOut int
}

// Total returns Accepted plus the rule 1-3 rejections; rows removed by
// dedup (DeduplicatedOut) are not included.
func (c Counters) Total() int {
	return c.Accepted + c.RejectedNullPK + c.RejectedOHLC + c.RejectedPctChg
}

// OHLCRow is the canonical shape every price-bar cleaning rule operates
// on. Syncers map their dataset-specific struct into this shape (or skip
// straight to Dedup for non-OHLC datasets).
type OHLCRow struct {
	Key       string // composite primary key, pre-joined (e.g. "000001|20240115")
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	ChangePct decimal.Decimal
	KeyNull   bool
}

var thirtyPct = decimal.NewFromInt(30)

// CleanOHLC applies the four ordered cleaning rules of spec.md §4.3 to
// rows already typecast into OHLCRow, and returns the survivors plus
// batch counters. A batch whose rejection rate exceeds 50% is reported via
// the returned error (kind SchemaDrift) since that usually signals an
// upstream format change rather than dirty data.
func CleanOHLC(op string, rows []OHLCRow) ([]OHLCRow, Counters, error) {
	var c Counters

	// Rule 1: drop rows with a null primary-key component.
	survivors := make([]OHLCRow, 0, len(rows))
	for _, r := range rows {
		if r.KeyNull || r.Key == "" {
			c.RejectedNullPK++
			continue
		}
		survivors = append(survivors, r)
	}

	// Rule 2: drop OHLC-inverted, non-positive, or out-of-band rows (open
	// and close must lie within [low, high]).
	next := survivors[:0:0]
	for _, r := range survivors {
		if r.High.LessThan(r.Low) ||
			r.Open.LessThanOrEqual(decimal.Zero) ||
			r.Close.LessThanOrEqual(decimal.Zero) ||
			r.High.LessThanOrEqual(decimal.Zero) ||
			r.Low.LessThanOrEqual(decimal.Zero) ||
			r.High.LessThan(r.Open) || r.High.LessThan(r.Close) ||
			r.Low.GreaterThan(r.Open) || r.Low.GreaterThan(r.Close) {
			c.RejectedOHLC++
			continue
		}
		next = append(next, r)
	}
	survivors = next

	// Rule 3: drop rows whose |change_pct| exceeds the A-share daily limit.
	next = survivors[:0:0]
	for _, r := range survivors {
		if r.ChangePct.Abs().GreaterThan(thirtyPct) {
			c.RejectedPctChg++
			continue
		}
		next = append(next, r)
	}
	survivors = next

	// Rule 4: dedup on primary key, keeping the last occurrence.
	byKey := make(map[string]int, len(survivors))
	order := make([]string, 0, len(survivors))
	for _, r := range survivors {
		if _, seen := byKey[r.Key]; !seen {
			order = append(order, r.Key)
		}
		byKey[r.Key] = -1
	}
	deduped := make([]OHLCRow, 0, len(order))
	latest := make(map[string]OHLCRow, len(survivors))
	for _, r := range survivors {
		latest[r.Key] = r
	}
	c.DeduplicatedOut = len(survivors) - len(order)
	for _, k := range order {
		deduped = append(deduped, latest[k])
	}

	c.Accepted = len(deduped)

	if total := len(rows); total > 0 {
		rejected := total - c.Accepted
		if float64(rejected)/float64(total) > 0.5 {
			return deduped, c, errkind.New(errkind.SchemaDrift, op, nil)
		}
	}

	return deduped, c, nil
}

// DedupKeepLast applies rule 4 alone, for non-OHLC datasets (financials,
// valuations, etc.) that only need primary-key dedup, not OHLC sanity
// checks.
func DedupKeepLast(keys []string) (keep []int) {
	lastIndexForKey := make(map[string]int, len(keys))
	for i, k := range keys {
		lastIndexForKey[k] = i
	}
	order := make([]string, 0, len(lastIndexForKey))
	seen := make(map[string]bool, len(lastIndexForKey))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			order = append(order, k)
		}
	}
	keep = make([]int, 0, len(order))
	for _, k := range order {
		keep = append(keep, lastIndexForKey[k])
	}
	return keep
}
