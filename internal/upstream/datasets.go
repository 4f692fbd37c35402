package upstream

import (
	"context"
	"time"

	"leeksaver/internal/frame"
)

// Adapter is the contract syncers depend on — one method per logical
// dataset, each returning a columnar frame (spec.md §4.1). Concrete
// implementations (Client below, or a fake in tests) never retry
// themselves; that's the Rate Gate's job one layer up.
type Adapter interface {
	SymbolList(ctx context.Context) (*frame.Frame, error)
	DailyBars(ctx context.Context, code, startDate, endDate string) (*frame.Frame, error)
	MinuteBars(ctx context.Context, code, tradeDate string) (*frame.Frame, error)
	Financial(ctx context.Context, code string) (*frame.Frame, error)
	Valuation(ctx context.Context, code, tradeDate string) (*frame.Frame, error)
	RealtimeQuote(ctx context.Context, code string) (*frame.Frame, error)
	NewsSince(ctx context.Context, since time.Time) (*frame.Frame, error)
	FundFlow(ctx context.Context, code, tradeDate string) (*frame.Frame, error)
	Margin(ctx context.Context, tradeDate string) (*frame.Frame, error)
	DragonTiger(ctx context.Context, tradeDate string) (*frame.Frame, error)
	NorthboundFlow(ctx context.Context, tradeDate string) (*frame.Frame, error)
	MarketSentiment(ctx context.Context, tradeDate string) (*frame.Frame, error)
	LimitUpStocks(ctx context.Context, tradeDate string) (*frame.Frame, error)
	SectorList(ctx context.Context) (*frame.Frame, error)
	SectorQuotes(ctx context.Context, tradeDate string) (*frame.Frame, error)
	SymbolIndustrySecondary(ctx context.Context) (*frame.Frame, error)
}

var _ Adapter = (*Client)(nil)

const symbolFields = "code,name,market,asset_type,industry,list_date"

func (c *Client) SymbolList(ctx context.Context) (*frame.Frame, error) {
	f, err := c.call(ctx, "symbol_list", symbolFields, nil)
	if err != nil {
		return nil, err
	}
	if err := f.Require("upstream.SymbolList", "code", "name", "market"); err != nil {
		return nil, err
	}
	return f, nil
}

// SymbolIndustrySecondary hits the enrichment endpoint for industry and
// list_date, used by the adapter-level merge described in spec.md §4.1.
func (c *Client) SymbolIndustrySecondary(ctx context.Context) (*frame.Frame, error) {
	f, err := c.call(ctx, "symbol_industry_secondary", "code,industry,list_date", nil)
	if err != nil {
		return nil, err
	}
	if err := f.Require("upstream.SymbolIndustrySecondary", "code"); err != nil {
		return nil, err
	}
	return f, nil
}

const dailyBarFields = "code,trade_date,open,high,low,close,pre_close,change,change_pct,vol,amount,turnover_rate"

func (c *Client) DailyBars(ctx context.Context, code, startDate, endDate string) (*frame.Frame, error) {
	params := map[string]interface{}{"code": code, "start_date": startDate, "end_date": endDate}
	f, err := c.call(ctx, "daily_bars", dailyBarFields, params)
	if err != nil {
		return nil, err
	}
	if err := f.Require("upstream.DailyBars", "code", "trade_date", "open", "high", "low", "close"); err != nil {
		return nil, err
	}
	return f, nil
}

const minuteBarFields = "code,timestamp,open,high,low,close,vol,amount"

// MinuteBars backs intraday watchlist polling — a single trade_date's
// worth of 1-minute bars for one code.
func (c *Client) MinuteBars(ctx context.Context, code, tradeDate string) (*frame.Frame, error) {
	params := map[string]interface{}{"code": code, "trade_date": tradeDate}
	f, err := c.call(ctx, "minute_bars", minuteBarFields, params)
	if err != nil {
		return nil, err
	}
	if err := f.Require("upstream.MinuteBars", "code", "timestamp", "open", "high", "low", "close"); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Client) Financial(ctx context.Context, code string) (*frame.Frame, error) {
	params := map[string]interface{}{"code": code}
	f, err := c.call(ctx, "financial", "code,end_date,pub_date,revenue,net_profit,eps,roe,total_assets,total_liabilities", params)
	if err != nil {
		return nil, err
	}
	if err := f.Require("upstream.Financial", "code", "end_date"); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Client) Valuation(ctx context.Context, code, tradeDate string) (*frame.Frame, error) {
	params := map[string]interface{}{"code": code, "trade_date": tradeDate}
	f, err := c.call(ctx, "valuation", "code,trade_date,pe_ttm,pb,ps,peg,market_cap,dividend_yield", params)
	if err != nil {
		return nil, err
	}
	if err := f.Require("upstream.Valuation", "code", "trade_date"); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Client) RealtimeQuote(ctx context.Context, code string) (*frame.Frame, error) {
	params := map[string]interface{}{"code": code}
	f, err := c.call(ctx, "realtime_quote", "code,price,volume,timestamp", params)
	if err != nil {
		return nil, err
	}
	if err := f.Require("upstream.RealtimeQuote", "code", "price"); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Client) NewsSince(ctx context.Context, since time.Time) (*frame.Frame, error) {
	params := map[string]interface{}{"since": since.Format("2006-01-02 15:04:05")}
	f, err := c.call(ctx, "news_since", "source_id,source,url,title,body,publish_time,related_symbols", params)
	if err != nil {
		return nil, err
	}
	if err := f.Require("upstream.NewsSince", "source", "url", "title"); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Client) FundFlow(ctx context.Context, code, tradeDate string) (*frame.Frame, error) {
	params := map[string]interface{}{"code": code, "trade_date": tradeDate}
	f, err := c.call(ctx, "fund_flow", "code,trade_date,main_net_flow,retail_net_flow", params)
	if err != nil {
		return nil, err
	}
	if err := f.Require("upstream.FundFlow", "code", "trade_date"); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Client) Margin(ctx context.Context, tradeDate string) (*frame.Frame, error) {
	params := map[string]interface{}{"trade_date": tradeDate}
	f, err := c.call(ctx, "margin", "code,trade_date,margin_balance,short_balance", params)
	if err != nil {
		return nil, err
	}
	if err := f.Require("upstream.Margin", "code", "trade_date"); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Client) DragonTiger(ctx context.Context, tradeDate string) (*frame.Frame, error) {
	params := map[string]interface{}{"trade_date": tradeDate}
	f, err := c.call(ctx, "dragon_tiger", "code,trade_date,reason,net_buy", params)
	if err != nil {
		return nil, err
	}
	if err := f.Require("upstream.DragonTiger", "code", "trade_date"); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Client) NorthboundFlow(ctx context.Context, tradeDate string) (*frame.Frame, error) {
	params := map[string]interface{}{"trade_date": tradeDate}
	f, err := c.call(ctx, "northbound_flow", "code,trade_date,net_flow", params)
	if err != nil {
		return nil, err
	}
	if err := f.Require("upstream.NorthboundFlow", "code", "trade_date"); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Client) MarketSentiment(ctx context.Context, tradeDate string) (*frame.Frame, error) {
	params := map[string]interface{}{"trade_date": tradeDate}
	f, err := c.call(ctx, "market_sentiment", "trade_date,advance_count,decline_count,limit_up_count,limit_down_count", params)
	if err != nil {
		return nil, err
	}
	if err := f.Require("upstream.MarketSentiment", "trade_date"); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Client) LimitUpStocks(ctx context.Context, tradeDate string) (*frame.Frame, error) {
	params := map[string]interface{}{"trade_date": tradeDate}
	f, err := c.call(ctx, "limit_up_stocks", "code,trade_date,reason,seal_amount", params)
	if err != nil {
		return nil, err
	}
	if err := f.Require("upstream.LimitUpStocks", "code", "trade_date"); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Client) SectorList(ctx context.Context) (*frame.Frame, error) {
	f, err := c.call(ctx, "sector_list", "code,name,parent_code,level", nil)
	if err != nil {
		return nil, err
	}
	if err := f.Require("upstream.SectorList", "code", "name"); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Client) SectorQuotes(ctx context.Context, tradeDate string) (*frame.Frame, error) {
	params := map[string]interface{}{"trade_date": tradeDate}
	f, err := c.call(ctx, "sector_quotes", "sector_code,trade_date,close,change_pct", params)
	if err != nil {
		return nil, err
	}
	if err := f.Require("upstream.SectorQuotes", "sector_code", "trade_date"); err != nil {
		return nil, err
	}
	return f, nil
}
