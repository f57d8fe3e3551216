// Package registry holds the static catalog of tracked instruments.
package registry

import (
	"fmt"

	"github.com/1NT9NS9/finance-ai/internal/model"
)

// Symbol describes one tracked instrument. Values are immutable; the
// catalog is fixed at build time.
type Symbol struct {
	Ticker   string
	Name     string
	Source   model.Source
	Class    model.AssetClass
	Sector   string
	Currency string
	Board    string // MOEX trading board, e.g. TQBR, SNDX
	Engine   string // MOEX trading engine, "stock" or "index"
}

var catalog = []Symbol{
	// Moscow Exchange
	{Ticker: "IMOEX", Name: "Moscow Exchange Index", Source: model.SourceMOEX, Class: model.ClassIndex, Sector: "Index", Currency: "RUB", Board: "SNDX", Engine: "index"},
	{Ticker: "RTGZ", Name: "Rosneft Oil Company", Source: model.SourceMOEX, Class: model.ClassEquity, Sector: "Oil and Gas", Currency: "RUB", Board: "TQBR", Engine: "stock"},
	{Ticker: "MRKV", Name: "IDGC of Volga", Source: model.SourceMOEX, Class: model.ClassEquity, Sector: "Electric Power", Currency: "RUB", Board: "TQBR", Engine: "stock"},
	{Ticker: "MRKC", Name: "IDGC of Centre", Source: model.SourceMOEX, Class: model.ClassEquity, Sector: "Electric Power", Currency: "RUB", Board: "TQBR", Engine: "stock"},
	{Ticker: "KRSB", Name: "Krasnoyarskenergo", Source: model.SourceMOEX, Class: model.ClassEquity, Sector: "Electric Power", Currency: "RUB", Board: "TQBR", Engine: "stock"},
	{Ticker: "MTSS", Name: "Mobile TeleSystems", Source: model.SourceMOEX, Class: model.ClassEquity, Sector: "Telecom", Currency: "RUB", Board: "TQBR", Engine: "stock"},
	{Ticker: "PLZL", Name: "Polyus Gold", Source: model.SourceMOEX, Class: model.ClassEquity, Sector: "Metallurgy and Mining", Currency: "RUB", Board: "TQBR", Engine: "stock"},
	{Ticker: "LENT", Name: "Lenta Ltd", Source: model.SourceMOEX, Class: model.ClassEquity, Sector: "Consumer", Currency: "RUB", Board: "TQBR", Engine: "stock"},
	{Ticker: "SBER", Name: "Sberbank of Russia", Source: model.SourceMOEX, Class: model.ClassEquity, Sector: "Finance", Currency: "RUB", Board: "TQBR", Engine: "stock"},
	{Ticker: "T", Name: "TCS Group Holding", Source: model.SourceMOEX, Class: model.ClassEquity, Sector: "Finance", Currency: "RUB", Board: "TQBR", Engine: "stock"},
	{Ticker: "OZON", Name: "Ozon Holdings", Source: model.SourceMOEX, Class: model.ClassEquity, Sector: "IT", Currency: "RUB", Board: "TQBR", Engine: "stock"},
	{Ticker: "YDEX", Name: "Yandex N.V.", Source: model.SourceMOEX, Class: model.ClassEquity, Sector: "IT", Currency: "RUB", Board: "TQBR", Engine: "stock"},

	// Yahoo Finance
	{Ticker: "BTC-USD", Name: "Bitcoin", Source: model.SourceYahoo, Class: model.ClassCrypto, Sector: "Cryptocurrency", Currency: "USD"},
	{Ticker: "ETH-USD", Name: "Ethereum", Source: model.SourceYahoo, Class: model.ClassCrypto, Sector: "Cryptocurrency", Currency: "USD"},
	{Ticker: "SOL-USD", Name: "Solana", Source: model.SourceYahoo, Class: model.ClassCrypto, Sector: "Cryptocurrency", Currency: "USD"},
	{Ticker: "XAUT-USD", Name: "Gold", Source: model.SourceYahoo, Class: model.ClassMetal, Sector: "Precious Metals", Currency: "USD"},
	{Ticker: "^SPX", Name: "S&P 500", Source: model.SourceYahoo, Class: model.ClassIndex, Sector: "Index", Currency: "USD"},
}

var byTicker = func() map[string]Symbol {
	m := make(map[string]Symbol, len(catalog))
	for _, s := range catalog {
		m[s.Ticker] = s
	}
	return m
}()

// Get looks a symbol up by ticker.
func Get(ticker string) (Symbol, bool) {
	s, ok := byTicker[ticker]
	return s, ok
}

// All returns the full catalog in its declared order.
func All() []Symbol {
	out := make([]Symbol, len(catalog))
	copy(out, catalog)
	return out
}

// BySource returns the catalog entries fetched by the given provider.
func BySource(src model.Source) []Symbol {
	var out []Symbol
	for _, s := range catalog {
		if s.Source == src {
			out = append(out, s)
		}
	}
	return out
}

// Resolve maps tickers onto catalog entries. An empty input resolves to the
// whole catalog; an unknown ticker is a configuration error.
func Resolve(tickers []string) ([]Symbol, error) {
	if len(tickers) == 0 {
		return All(), nil
	}
	out := make([]Symbol, 0, len(tickers))
	for _, t := range tickers {
		s, ok := byTicker[t]
		if !ok {
			return nil, fmt.Errorf("unknown symbol %q", t)
		}
		out = append(out, s)
	}
	return out, nil
}
