package collector

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/1NT9NS9/finance-ai/internal/model"
	"github.com/1NT9NS9/finance-ai/internal/registry"
)

// Yahoo collects daily price history from the Yahoo Finance chart API.
type Yahoo struct {
	client *Client
	log    zerolog.Logger
}

// NewYahoo creates the Yahoo Finance collector.
func NewYahoo(client *Client, log zerolog.Logger) *Yahoo {
	return &Yahoo{client: client, log: log.With().Str("collector", "yahoo").Logger()}
}

func (y *Yahoo) Source() model.Source { return model.SourceYahoo }

func (y *Yahoo) Supports(sym registry.Symbol) bool { return sym.Source == model.SourceYahoo }

// yahooChart is the chart API response shape. Quote arrays use pointers
// because Yahoo emits nulls for holidays and halted sessions.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch pulls daily bars over the period. Yahoo series stay at their native
// daily interval; alignment with weekly MOEX series happens at query time.
func (y *Yahoo) Fetch(ctx context.Context, sym registry.Symbol, period Period) ([]model.PricePoint, error) {
	if !y.Supports(sym) {
		return nil, NewUnknownSymbolError(sym.Ticker)
	}

	path := "/v8/finance/chart/" + url.PathEscape(sym.Ticker)
	query := map[string]string{
		"interval": "1d",
		"period1":  strconv.FormatInt(period.Start.Unix(), 10),
		"period2":  strconv.FormatInt(period.End.Unix(), 10),
	}

	var chart yahooChart
	if err := y.client.GetJSON(ctx, path, query, &chart); err != nil {
		return nil, fmt.Errorf("yahoo fetch %s: %w", sym.Ticker, err)
	}
	if e := chart.Chart.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return nil, NewUnknownSymbolError(sym.Ticker)
		}
		return nil, NewMalformedError(fmt.Sprintf("chart api error %s: %s", e.Code, e.Description), nil)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	points := make([]model.PricePoint, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		closeVal := at(quote.Close, i)
		if closeVal == nil {
			continue // null bar, holiday or halted session
		}
		p := model.PricePoint{
			Symbol:   sym.Ticker,
			Date:     model.Day(time.Unix(ts, 0).UTC()),
			Open:     at(quote.Open, i),
			High:     at(quote.High, i),
			Low:      at(quote.Low, i),
			Close:    *closeVal,
			Source:   model.SourceYahoo,
			Interval: model.Interval1D,
			Currency: sym.Currency,
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			v := *quote.Volume[i]
			p.Volume = &v
		}
		points = append(points, p)
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	y.log.Debug().Str("symbol", sym.Ticker).Int("rows", len(points)).Msg("fetched daily bars")
	return points, nil
}

func at(vals []*float64, i int) *float64 {
	if i >= len(vals) || vals[i] == nil {
		return nil
	}
	v := *vals[i]
	return &v
}
