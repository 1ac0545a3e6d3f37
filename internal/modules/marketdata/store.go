package marketdata

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/risk-engine/internal/database"
)

// Store provides access to historical daily price data
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// NewStore creates a new price history store
func NewStore(db *database.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("component", "marketdata").Logger(),
	}
}

// Init creates the price history schema if it does not exist
func (s *Store) Init() error {
	schema := `
		CREATE TABLE IF NOT EXISTS daily_prices (
			symbol      TEXT NOT NULL,
			date        TEXT NOT NULL,
			open_price  REAL NOT NULL,
			high_price  REAL NOT NULL,
			low_price   REAL NOT NULL,
			close_price REAL NOT NULL,
			volume      INTEGER,
			PRIMARY KEY (symbol, date)
		);
		CREATE INDEX IF NOT EXISTS idx_daily_prices_symbol ON daily_prices(symbol, date);
	`

	if _, err := s.db.Conn().Exec(schema); err != nil {
		return fmt.Errorf("failed to create daily_prices schema: %w", err)
	}

	return nil
}

// SaveDailyPrices upserts a batch of bars for a symbol
func (s *Store) SaveDailyPrices(symbol string, bars []Bar) error {
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_prices (symbol, date, open_price, high_price, low_price, close_price, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET
			open_price = excluded.open_price,
			high_price = excluded.high_price,
			low_price = excluded.low_price,
			close_price = excluded.close_price,
			volume = excluded.volume
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		var volume interface{}
		if bar.Volume != nil {
			volume = *bar.Volume
		}

		if _, err := stmt.Exec(symbol, bar.Date, bar.Open, bar.High, bar.Low, bar.Close, volume); err != nil {
			return fmt.Errorf("failed to insert bar %s/%s: %w", symbol, bar.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bars: %w", err)
	}

	s.log.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("Saved daily prices")
	return nil
}

// GetDailyPrices fetches up to `limit` most recent bars for a symbol, returned
// in chronological order
func (s *Store) GetDailyPrices(symbol string, limit int) ([]Bar, error) {
	query := `
		SELECT date, open_price, high_price, low_price, close_price, volume
		FROM daily_prices
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT ?
	`

	rows, err := s.db.Conn().Query(query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var bars []Bar
	for rows.Next() {
		var b Bar
		var volume sql.NullInt64

		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}

		if volume.Valid {
			b.Volume = &volume.Int64
		}

		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	// Query is newest-first for the LIMIT; series consumers expect oldest-first
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}

	return bars, nil
}

// GetAllSymbols returns every symbol with stored history
func (s *Store) GetAllSymbols() ([]string, error) {
	rows, err := s.db.Conn().Query(`SELECT DISTINCT symbol FROM daily_prices ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}

	return symbols, nil
}

// LoadHistory fetches the most recent `limit` bars for each symbol. Symbols
// with no stored data are omitted rather than erroring.
func (s *Store) LoadHistory(symbols []string, limit int) (History, error) {
	history := make(History, len(symbols))

	for _, symbol := range symbols {
		bars, err := s.GetDailyPrices(symbol, limit)
		if err != nil {
			return nil, err
		}
		if len(bars) > 0 {
			history[symbol] = bars
		}
	}

	return history, nil
}
