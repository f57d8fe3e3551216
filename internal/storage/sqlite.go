package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/1NT9NS9/finance-ai/internal/model"
	"github.com/1NT9NS9/finance-ai/internal/registry"
)

const dateFormat = "2006-01-02"

// SQLiteStore persists the dataset in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger

	symbolIDs map[string]int64
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(dbPath string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	// WAL mode so the external API layer can read while a cycle writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, &StorageError{Op: "set WAL mode", Err: err}
	}

	s := &SQLiteStore{
		db:        db,
		log:       log.With().Str("component", "storage").Logger(),
		symbolIDs: make(map[string]int64),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	s.log.Info().Str("path", dbPath).Msg("sqlite store opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS symbols (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT UNIQUE NOT NULL,
			name       TEXT,
			source     TEXT NOT NULL,
			sector     TEXT,
			class      TEXT,
			currency   TEXT,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_symbol ON symbols(symbol)`,

		`CREATE TABLE IF NOT EXISTS price_data (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol_id    INTEGER NOT NULL,
			date         TEXT NOT NULL,
			open_price   REAL,
			high_price   REAL,
			low_price    REAL,
			close_price  REAL NOT NULL,
			volume       INTEGER,
			source       TEXT NOT NULL,
			interval     TEXT,
			collected_at TEXT DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (symbol_id) REFERENCES symbols (id),
			UNIQUE(symbol_id, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_data_symbol_date ON price_data(symbol_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_price_data_date ON price_data(date)`,

		`CREATE TABLE IF NOT EXISTS technical_indicators (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			price_data_id  INTEGER NOT NULL UNIQUE,
			rsi_6          REAL,
			rsi_12         REAL,
			rsi_24         REAL,
			macd           REAL,
			macd_signal_line REAL,
			macd_histogram REAL,
			signal         TEXT,
			calculated_at  TEXT DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (price_data_id) REFERENCES price_data (id)
		)`,

		`CREATE TABLE IF NOT EXISTS collection_runs (
			id                TEXT PRIMARY KEY,
			started_at        TEXT NOT NULL,
			finished_at       TEXT NOT NULL,
			period_start      TEXT,
			period_end        TEXT,
			symbols_total     INTEGER,
			symbols_succeeded INTEGER,
			symbols_failed    INTEGER,
			total_rows        INTEGER,
			success_rate      REAL,
			outcomes          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_collection_runs_started ON collection_runs(started_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return &StorageError{Op: "migrate", Err: err}
		}
	}
	return nil
}

// classify wraps a database error, marking lock contention as retryable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	retryable := strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
	return &StorageError{Op: op, Retryable: retryable, Err: err}
}

// UpsertSymbols makes sure catalog entries exist and are current.
func (s *SQLiteStore) UpsertSymbols(syms []registry.Symbol) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sym := range syms {
		_, err := s.db.Exec(`INSERT INTO symbols (symbol, name, source, sector, class, currency)
			VALUES (?,?,?,?,?,?)
			ON CONFLICT(symbol) DO UPDATE SET
				name=excluded.name, source=excluded.source, sector=excluded.sector,
				class=excluded.class, currency=excluded.currency,
				updated_at=CURRENT_TIMESTAMP`,
			sym.Ticker, sym.Name, string(sym.Source), sym.Sector, string(sym.Class), sym.Currency)
		if err != nil {
			return classify("upsert symbol", err)
		}
	}
	return nil
}

func (s *SQLiteStore) symbolID(ticker string) (int64, error) {
	if id, ok := s.symbolIDs[ticker]; ok {
		return id, nil
	}
	var id int64
	err := s.db.QueryRow(`SELECT id FROM symbols WHERE symbol = ?`, ticker).Scan(&id)
	if err != nil {
		return 0, classify("resolve symbol id", err)
	}
	s.symbolIDs[ticker] = id
	return id, nil
}

// UpsertPrices writes price rows inside one transaction, last-write-wins
// per (symbol, date).
func (s *SQLiteStore) UpsertPrices(points []model.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, classify("begin prices tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO price_data
		(symbol_id, date, open_price, high_price, low_price, close_price, volume, source, interval, collected_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(symbol_id, date) DO UPDATE SET
			open_price=excluded.open_price, high_price=excluded.high_price,
			low_price=excluded.low_price, close_price=excluded.close_price,
			volume=excluded.volume, source=excluded.source,
			interval=excluded.interval, collected_at=excluded.collected_at`)
	if err != nil {
		return 0, classify("prepare price upsert", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	written := 0
	for _, p := range points {
		id, err := s.symbolID(p.Symbol)
		if err != nil {
			return written, err
		}
		if _, err := stmt.Exec(id, p.Date.Format(dateFormat),
			nullFloat(p.Open), nullFloat(p.High), nullFloat(p.Low), p.Close,
			nullInt(p.Volume), string(p.Source), string(p.Interval), now); err != nil {
			return written, classify("upsert price", err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, classify("commit prices", err)
	}
	return written, nil
}

// UpsertIndicators writes indicator rows keyed by their owning price row.
// Records whose price row is missing are skipped.
func (s *SQLiteStore) UpsertIndicators(records []model.IndicatorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, classify("begin indicators tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO technical_indicators
		(price_data_id, rsi_6, rsi_12, rsi_24, macd, macd_signal_line, macd_histogram, signal, calculated_at)
		SELECT p.id, ?,?,?,?,?,?,?,?
		FROM price_data p JOIN symbols s ON s.id = p.symbol_id
		WHERE s.symbol = ? AND p.date = ?
		ON CONFLICT(price_data_id) DO UPDATE SET
			rsi_6=excluded.rsi_6, rsi_12=excluded.rsi_12, rsi_24=excluded.rsi_24,
			macd=excluded.macd, macd_signal_line=excluded.macd_signal_line,
			macd_histogram=excluded.macd_histogram, signal=excluded.signal,
			calculated_at=excluded.calculated_at`)
	if err != nil {
		return 0, classify("prepare indicator upsert", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	written := 0
	for _, r := range records {
		res, err := stmt.Exec(
			nullFloat(r.RSIAt(6)), nullFloat(r.RSIAt(12)), nullFloat(r.RSIAt(24)),
			nullFloat(r.MACD), nullFloat(r.MACDSignal), nullFloat(r.MACDHist),
			string(r.Signal), now,
			r.Symbol, r.Date.Format(dateFormat))
		if err != nil {
			return written, classify("upsert indicator", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, classify("commit indicators", err)
	}
	return written, nil
}

// AppendRun appends one immutable collection-run record.
func (s *SQLiteStore) AppendRun(run *model.CollectionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcomes, err := json.Marshal(run.Outcomes)
	if err != nil {
		return &StorageError{Op: "encode outcomes", Err: err}
	}
	_, err = s.db.Exec(`INSERT INTO collection_runs
		(id, started_at, finished_at, period_start, period_end,
		 symbols_total, symbols_succeeded, symbols_failed, total_rows, success_rate, outcomes)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		run.PeriodStart.Format(dateFormat),
		run.PeriodEnd.Format(dateFormat),
		len(run.Outcomes), run.Succeeded(), run.Failed(), run.TotalRows(), run.SuccessRate,
		string(outcomes))
	return classify("append run", err)
}

const mergedSelect = `SELECT s.symbol, p.date, p.open_price, p.high_price, p.low_price,
	p.close_price, p.volume, p.source, p.interval, s.currency,
	ti.rsi_6, ti.rsi_12, ti.rsi_24, ti.macd, ti.macd_signal_line, ti.macd_histogram, ti.signal
	FROM price_data p
	JOIN symbols s ON s.id = p.symbol_id
	LEFT JOIN technical_indicators ti ON ti.price_data_id = p.id`

// QueryRange returns merged rows for a symbol sorted by date ascending.
func (s *SQLiteStore) QueryRange(symbol string, from, to *time.Time, limit int) ([]Row, error) {
	query := mergedSelect + ` WHERE s.symbol = ?`
	args := []any{symbol}
	if from != nil {
		query += ` AND p.date >= ?`
		args = append(args, from.Format(dateFormat))
	}
	if to != nil {
		query += ` AND p.date <= ?`
		args = append(args, to.Format(dateFormat))
	}
	query += ` ORDER BY p.date ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, classify("query range", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// QueryLatest returns the maximum-date merged row per requested symbol.
func (s *SQLiteStore) QueryLatest(symbols []string) (map[string]Row, error) {
	if len(symbols) == 0 {
		rows, err := s.db.Query(`SELECT symbol FROM symbols ORDER BY symbol`)
		if err != nil {
			return nil, classify("list symbols", err)
		}
		for rows.Next() {
			var sym string
			if err := rows.Scan(&sym); err != nil {
				rows.Close()
				return nil, classify("scan symbol", err)
			}
			symbols = append(symbols, sym)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, classify("list symbols", err)
		}
	}

	out := make(map[string]Row, len(symbols))
	for _, sym := range symbols {
		rows, err := s.db.Query(mergedSelect+` WHERE s.symbol = ? ORDER BY p.date DESC LIMIT 1`, sym)
		if err != nil {
			return nil, classify("query latest", err)
		}
		parsed, err := scanRows(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		if len(parsed) > 0 {
			out[sym] = parsed[0]
		}
	}
	return out, nil
}

// Summary aggregates dataset statistics.
func (s *SQLiteStore) Summary() (*Summary, error) {
	sum := &Summary{}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM symbols`).Scan(&sum.SymbolCount); err != nil {
		return nil, classify("summary symbols", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM price_data`).Scan(&sum.PriceRows); err != nil {
		return nil, classify("summary prices", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM technical_indicators`).Scan(&sum.IndicatorRows); err != nil {
		return nil, classify("summary indicators", err)
	}

	var minDate, maxDate sql.NullString
	if err := s.db.QueryRow(`SELECT MIN(date), MAX(date) FROM price_data`).Scan(&minDate, &maxDate); err != nil {
		return nil, classify("summary dates", err)
	}
	sum.EarliestDate = parseDate(minDate)
	sum.LatestDate = parseDate(maxDate)

	var lastRun sql.NullString
	var lastRate sql.NullFloat64
	err := s.db.QueryRow(`SELECT started_at, success_rate FROM collection_runs
		ORDER BY started_at DESC LIMIT 1`).Scan(&lastRun, &lastRate)
	if err != nil && err != sql.ErrNoRows {
		return nil, classify("summary last run", err)
	}
	if lastRun.Valid {
		if t, perr := time.Parse(time.RFC3339, lastRun.String); perr == nil {
			sum.LastRunAt = &t
		}
	}
	if lastRate.Valid {
		rate := lastRate.Float64
		sum.LastRunSuccessRate = &rate
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM collection_runs`).Scan(&sum.RunCount); err != nil {
		return nil, classify("summary runs", err)
	}
	if sum.PriceRows > 0 {
		sum.CoveragePct = float64(sum.IndicatorRows) / float64(sum.PriceRows) * 100
	}
	return sum, nil
}

// Runs returns the most recent collection runs, newest first.
func (s *SQLiteStore) Runs(limit int) ([]model.CollectionRun, error) {
	query := `SELECT id, started_at, finished_at, period_start, period_end, success_rate, outcomes
		FROM collection_runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, classify("query runs", err)
	}
	defer rows.Close()

	var out []model.CollectionRun
	for rows.Next() {
		var run model.CollectionRun
		var started, finished, pStart, pEnd, outcomes string
		if err := rows.Scan(&run.ID, &started, &finished, &pStart, &pEnd, &run.SuccessRate, &outcomes); err != nil {
			return nil, classify("scan run", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339, started)
		run.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		run.PeriodStart, _ = time.Parse(dateFormat, pStart)
		run.PeriodEnd, _ = time.Parse(dateFormat, pEnd)
		if err := json.Unmarshal([]byte(outcomes), &run.Outcomes); err != nil {
			return nil, &StorageError{Op: "decode outcomes", Err: err}
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.log.Info().Msg("closing sqlite store")
	return s.db.Close()
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	var out []Row
	for rows.Next() {
		var (
			symbol, source, interval, currency string
			dateStr                            string
			open, high, low                    sql.NullFloat64
			closeVal                           float64
			volume                             sql.NullInt64
			rsi6, rsi12, rsi24                 sql.NullFloat64
			macd, macdSig, macdHist            sql.NullFloat64
			signal                             sql.NullString
		)
		if err := rows.Scan(&symbol, &dateStr, &open, &high, &low, &closeVal, &volume,
			&source, &interval, &currency,
			&rsi6, &rsi12, &rsi24, &macd, &macdSig, &macdHist, &signal); err != nil {
			return nil, classify("scan row", err)
		}

		date, err := time.Parse(dateFormat, dateStr)
		if err != nil {
			return nil, &StorageError{Op: "parse date", Err: fmt.Errorf("row date %q: %w", dateStr, err)}
		}

		row := Row{Price: model.PricePoint{
			Symbol:   symbol,
			Date:     date,
			Open:     fromNullFloat(open),
			High:     fromNullFloat(high),
			Low:      fromNullFloat(low),
			Close:    closeVal,
			Volume:   fromNullInt(volume),
			Source:   model.Source(source),
			Interval: model.Interval(interval),
			Currency: currency,
		}}
		if signal.Valid {
			row.Indicator = &model.IndicatorRecord{
				Symbol: symbol,
				Date:   date,
				RSI: map[int]*float64{
					6:  fromNullFloat(rsi6),
					12: fromNullFloat(rsi12),
					24: fromNullFloat(rsi24),
				},
				MACD:       fromNullFloat(macd),
				MACDSignal: fromNullFloat(macdSig),
				MACDHist:   fromNullFloat(macdHist),
				Signal:     model.Signal(signal.String),
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func fromNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func fromNullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func parseDate(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t, err := time.Parse(dateFormat, v.String)
	if err != nil {
		return nil
	}
	return &t
}
