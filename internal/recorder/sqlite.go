package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"StockHound/internal/model"
)

// SQLiteRecorder persists the screening cache to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: keeps ":memory:" databases shared and writes serialised.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.With().Str("component", "sqlite").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stocks (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol       TEXT NOT NULL UNIQUE,
			name         TEXT NOT NULL DEFAULT '',
			is_excluded  INTEGER NOT NULL DEFAULT 0,
			last_updated INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS trades (
			symbol TEXT PRIMARY KEY,
			price  REAL NOT NULL,
			size   REAL NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS historical_data (
			symbol    TEXT NOT NULL REFERENCES stocks(symbol),
			timestamp INTEGER NOT NULL,
			open      REAL,
			high      REAL,
			low       REAL,
			close     REAL NOT NULL,
			volume    REAL,
			PRIMARY KEY (symbol, timestamp)
		)`,

		`CREATE TABLE IF NOT EXISTS scores (
			symbol      TEXT PRIMARY KEY,
			ma_score    REAL NOT NULL,
			rsi_score   REAL NOT NULL,
			bb_score    REAL NOT NULL,
			total_score REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_total ON scores(total_score)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) GetStock(ctx context.Context, symbol string) (*model.Stock, error) {
	var (
		s        model.Stock
		excluded int
		updated  int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, symbol, name, is_excluded, last_updated FROM stocks WHERE symbol = ?`, symbol,
	).Scan(&s.ID, &s.Symbol, &s.Name, &excluded, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	s.Excluded = excluded != 0
	if updated > 0 {
		s.LastUpdated = time.Unix(updated, 0)
	}
	return &s, nil
}

func (r *SQLiteRecorder) UpsertStock(ctx context.Context, stock model.Stock) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO stocks (symbol, name, last_updated)
		VALUES (?,?,?)
		ON CONFLICT(symbol) DO UPDATE SET name = excluded.name, last_updated = excluded.last_updated`,
		stock.Symbol, stock.Name, stock.LastUpdated.Unix(),
	)
	return err
}

func (r *SQLiteRecorder) SetExcluded(ctx context.Context, symbol string, excluded bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	flag := 0
	if excluded {
		flag = 1
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO stocks (symbol, is_excluded) VALUES (?,?)
		ON CONFLICT(symbol) DO UPDATE SET is_excluded = excluded.is_excluded`,
		symbol, flag,
	)
	return err
}

func (r *SQLiteRecorder) GetTrade(ctx context.Context, symbol string) (*model.Trade, error) {
	t := model.Trade{Symbol: symbol}
	err := r.db.QueryRowContext(ctx,
		`SELECT price, size FROM trades WHERE symbol = ?`, symbol,
	).Scan(&t.Price, &t.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query trade: %w", err)
	}
	return &t, nil
}

func (r *SQLiteRecorder) UpsertTrade(ctx context.Context, trade model.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO trades (symbol, price, size) VALUES (?,?,?)
		ON CONFLICT(symbol) DO UPDATE SET price = excluded.price, size = excluded.size`,
		trade.Symbol, trade.Price, trade.Size,
	)
	return err
}

func (r *SQLiteRecorder) ListTrades(ctx context.Context) ([]model.Trade, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT symbol, price, size FROM trades ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		if err := rows.Scan(&t.Symbol, &t.Price, &t.Size); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (r *SQLiteRecorder) AppendOrReplaceBar(ctx context.Context, bar model.OHLCV) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO historical_data
		(symbol, timestamp, open, high, low, close, volume)
		VALUES (?,?,?,?,?,?,?)`,
		bar.Symbol, bar.Time.Unix(), bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
	)
	return err
}

func (r *SQLiteRecorder) RecentCloses(ctx context.Context, symbol string, limit int) ([]float64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT close FROM historical_data WHERE symbol = ? ORDER BY timestamp DESC LIMIT ?`,
		symbol, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query closes: %w", err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan close: %w", err)
		}
		closes = append(closes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Newest first from the query; callers expect oldest first.
	for i, j := 0, len(closes)-1; i < j; i, j = i+1, j-1 {
		closes[i], closes[j] = closes[j], closes[i]
	}
	return closes, nil
}

func (r *SQLiteRecorder) LatestClose(ctx context.Context, symbol string) (float64, error) {
	var c float64
	err := r.db.QueryRowContext(ctx,
		`SELECT close FROM historical_data WHERE symbol = ? ORDER BY timestamp DESC LIMIT 1`, symbol,
	).Scan(&c)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query latest close: %w", err)
	}
	return c, nil
}

func (r *SQLiteRecorder) GetScore(ctx context.Context, symbol string) (*model.Score, error) {
	s := model.Score{Symbol: symbol}
	err := r.db.QueryRowContext(ctx,
		`SELECT ma_score, rsi_score, bb_score, total_score FROM scores WHERE symbol = ?`, symbol,
	).Scan(&s.MAScore, &s.RSIScore, &s.BBScore, &s.TotalScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query score: %w", err)
	}
	return &s, nil
}

func (r *SQLiteRecorder) UpsertScore(ctx context.Context, score model.Score) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO scores (symbol, ma_score, rsi_score, bb_score, total_score)
		VALUES (?,?,?,?,?)
		ON CONFLICT(symbol) DO UPDATE SET
			ma_score = excluded.ma_score,
			rsi_score = excluded.rsi_score,
			bb_score = excluded.bb_score,
			total_score = excluded.total_score`,
		score.Symbol, score.MAScore, score.RSIScore, score.BBScore, score.TotalScore,
	)
	return err
}

func (r *SQLiteRecorder) QueryScoresAbove(ctx context.Context, threshold float64) ([]model.Score, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT symbol, ma_score, rsi_score, bb_score, total_score
		FROM scores WHERE total_score >= ? ORDER BY symbol`, threshold)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	var scores []model.Score
	for rows.Next() {
		var s model.Score
		if err := rows.Scan(&s.Symbol, &s.MAScore, &s.RSIScore, &s.BBScore, &s.TotalScore); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}

// DB exposes the handle for connection pool statistics.
func (r *SQLiteRecorder) DB() *sql.DB { return r.db }
