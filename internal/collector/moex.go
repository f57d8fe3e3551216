package collector

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/1NT9NS9/finance-ai/internal/model"
	"github.com/1NT9NS9/finance-ai/internal/registry"
)

// moexPageSize is the row count the ISS API returns per history page.
const moexPageSize = 100

// MOEX collects price history from the Moscow Exchange ISS API.
// API reference: https://iss.moex.com/iss/reference/
type MOEX struct {
	client *Client
	log    zerolog.Logger
}

// NewMOEX creates the MOEX collector.
func NewMOEX(client *Client, log zerolog.Logger) *MOEX {
	return &MOEX{client: client, log: log.With().Str("collector", "moex").Logger()}
}

func (m *MOEX) Source() model.Source { return model.SourceMOEX }

func (m *MOEX) Supports(sym registry.Symbol) bool { return sym.Source == model.SourceMOEX }

// issHistory is the ISS history payload: parallel column names and row arrays.
type issHistory struct {
	History struct {
		Columns []string `json:"columns"`
		Data    [][]any  `json:"data"`
	} `json:"history"`
}

// Fetch pulls the full history window page by page. Index symbols use the
// index market endpoint; when that fails, a board-less alternate endpoint is
// tried before giving up.
func (m *MOEX) Fetch(ctx context.Context, sym registry.Symbol, period Period) ([]model.PricePoint, error) {
	if !m.Supports(sym) {
		return nil, NewUnknownSymbolError(sym.Ticker)
	}

	isIndex := sym.Engine == "index" || sym.Class == model.ClassIndex
	path := fmt.Sprintf("/iss/history/engines/stock/markets/shares/boards/%s/securities/%s.json", sym.Board, sym.Ticker)
	if isIndex {
		path = fmt.Sprintf("/iss/history/engines/stock/markets/index/boards/%s/securities/%s.json", sym.Board, sym.Ticker)
	}

	rows, err := m.fetchPaged(ctx, path, sym, period)
	if err == nil && len(rows) > 0 {
		return rows, nil
	}
	if isIndex {
		// Alternate index endpoint without the board segment; some indices
		// are only reachable there.
		m.log.Warn().Str("symbol", sym.Ticker).Msg("primary index endpoint failed, trying alternate")
		alt := fmt.Sprintf("/iss/history/engines/stock/markets/index/securities/%s.json", sym.Ticker)
		altRows, altErr := m.fetchPaged(ctx, alt, sym, period)
		if altErr == nil {
			return altRows, nil
		}
		if err == nil {
			err = altErr
		}
	}
	if err != nil {
		return nil, fmt.Errorf("moex fetch %s: %w", sym.Ticker, err)
	}
	return rows, nil
}

func (m *MOEX) fetchPaged(ctx context.Context, path string, sym registry.Symbol, period Period) ([]model.PricePoint, error) {
	var points []model.PricePoint
	start := 0
	for {
		query := map[string]string{
			"from":     period.Start.Format("2006-01-02"),
			"till":     period.End.Format("2006-01-02"),
			"iss.meta": "off",
			"iss.only": "history",
			"start":    strconv.Itoa(start),
		}

		var page issHistory
		if err := m.client.GetJSON(ctx, path, query, &page); err != nil {
			return nil, err
		}
		if len(page.History.Columns) == 0 {
			return nil, NewMalformedError("missing history block", nil)
		}
		if len(page.History.Data) == 0 {
			break
		}

		for _, raw := range page.History.Data {
			p, ok := m.parseRow(page.History.Columns, raw, sym)
			if ok {
				points = append(points, p)
			}
		}

		m.log.Debug().Str("symbol", sym.Ticker).Int("page_rows", len(page.History.Data)).Int("total", len(points)).Msg("fetched history page")

		if len(page.History.Data) < moexPageSize {
			break
		}
		start += len(page.History.Data)
	}
	return points, nil
}

// parseRow zips one ISS data row with the column names. Rows without a trade
// date or close are dropped here; value sanity is the validator's job.
func (m *MOEX) parseRow(columns []string, raw []any, sym registry.Symbol) (model.PricePoint, bool) {
	rec := make(map[string]any, len(columns))
	for i, col := range columns {
		if i < len(raw) {
			rec[col] = raw[i]
		}
	}

	dateStr, _ := rec["TRADEDATE"].(string)
	if dateStr == "" {
		return model.PricePoint{}, false
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return model.PricePoint{}, false
	}
	closeVal, ok := asFloat(rec["CLOSE"])
	if !ok {
		return model.PricePoint{}, false
	}

	p := model.PricePoint{
		Symbol:   sym.Ticker,
		Date:     model.Day(date),
		Close:    closeVal,
		Source:   model.SourceMOEX,
		Interval: model.Interval1W,
		Currency: sym.Currency,
	}
	if v, ok := asFloat(rec["OPEN"]); ok {
		p.Open = &v
	}
	if v, ok := asFloat(rec["HIGH"]); ok {
		p.High = &v
	}
	if v, ok := asFloat(rec["LOW"]); ok {
		p.Low = &v
	}
	for _, key := range []string{"VOLUME", "VOLRUR", "VOL"} {
		if v, ok := asFloat(rec[key]); ok {
			vol := int64(v)
			p.Volume = &vol
			break
		}
	}
	return p, true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
