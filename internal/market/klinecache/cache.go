// Package klinecache keeps fetched klines in one sqlite file per
// symbol@timeframe so offline replays do not hit the exchange again.
package klinecache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gridbot/internal/logger"
	"gridbot/internal/market"

	_ "modernc.org/sqlite"
)

// Manifest 记录某个 symbol@timeframe 缓存文件的统计信息。
type Manifest struct {
	Symbol     string `json:"symbol"`
	Timeframe  string `json:"timeframe"`
	MinTime    int64  `json:"min_time"`
	MaxTime    int64  `json:"max_time"`
	Rows       int64  `json:"rows"`
	LastSyncAt int64  `json:"last_sync_at"`
	Path       string `json:"path"`
}

type Cache struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

var _ market.Source = (*Cache)(nil)

func New(root string) (*Cache, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("kline cache root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Cache{root: root, dbs: make(map[string]*sql.DB)}, nil
}

func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for k, db := range c.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.dbs, k)
	}
	return firstErr
}

func (c *Cache) db(symbol, timeframe string) (*sql.DB, string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	timeframe = strings.ToLower(strings.TrimSpace(timeframe))
	if symbol == "" || timeframe == "" {
		return nil, "", fmt.Errorf("symbol/timeframe cannot be empty")
	}
	key := symbol + "@" + timeframe
	path := c.dbPath(symbol, timeframe)
	c.mu.Lock()
	defer c.mu.Unlock()
	if db, ok := c.dbs[key]; ok {
		return db, path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, "", err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db, symbol, timeframe); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	c.dbs[key] = db
	return db, path, nil
}

func (c *Cache) dbPath(symbol, timeframe string) string {
	safe := strings.ReplaceAll(symbol, "/", "")
	return filepath.Join(c.root, safe, timeframe+".db")
}

// Insert 批量写入 K 线（重复 open_time 将被覆盖）。
func (c *Cache) Insert(ctx context.Context, symbol, timeframe string, candles []market.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	db, _, err := c.db(symbol, timeframe)
	if err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (open_time, close_time, open, high, low, close, volume, trades)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(open_time) DO UPDATE SET
		    close_time=excluded.close_time,
		    open=excluded.open,
		    high=excluded.high,
		    low=excluded.low,
		    close=excluded.close,
		    volume=excluded.volume,
		    trades=excluded.trades`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	for _, k := range candles {
		if _, err := stmt.ExecContext(ctx, k.OpenTime, k.CloseTime, k.Open, k.High, k.Low, k.Close, k.Volume, k.Trades); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	_, err = db.ExecContext(ctx, `
		UPDATE manifest
		SET min_time = (SELECT COALESCE(MIN(open_time), 0) FROM candles),
		    max_time = (SELECT COALESCE(MAX(open_time), 0) FROM candles),
		    rows = (SELECT COUNT(1) FROM candles),
		    last_sync_at = ?
		WHERE id = 1`, time.Now().UnixMilli())
	return len(candles), err
}

// Sync pulls the latest limit bars from upstream into the cache.
func (c *Cache) Sync(ctx context.Context, upstream market.Source, symbol, timeframe string, limit int) (int, error) {
	if upstream == nil {
		return 0, fmt.Errorf("upstream source is nil")
	}
	candles, err := upstream.GetKlines(ctx, symbol, timeframe, limit)
	if err != nil {
		return 0, fmt.Errorf("fetch %s@%s: %w", symbol, timeframe, err)
	}
	return c.Insert(ctx, symbol, timeframe, candles)
}

// Recorder 透传上游行情，并把每批 K 线写入缓存，供之后离线回放。
type Recorder struct {
	cache    *Cache
	upstream market.Source
}

var _ market.Source = (*Recorder)(nil)

func (c *Cache) Recorder(upstream market.Source) *Recorder {
	return &Recorder{cache: c, upstream: upstream}
}

// GetKlines returns upstream data unchanged. Cache write failures are logged
// and never surface to the caller.
func (r *Recorder) GetKlines(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error) {
	candles, err := r.upstream.GetKlines(ctx, symbol, timeframe, limit)
	if err != nil || len(candles) == 0 {
		return candles, err
	}
	if _, werr := r.cache.Insert(ctx, symbol, timeframe, candles); werr != nil {
		logger.Warnf("kline cache write %s@%s failed: %v", symbol, timeframe, werr)
	}
	return candles, nil
}

// GetKlines serves the newest limit cached bars, ascending. limit <= 0 returns all.
func (c *Cache) GetKlines(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error) {
	db, _, err := c.db(symbol, timeframe)
	if err != nil {
		return nil, err
	}
	var rows *sql.Rows
	if limit > 0 {
		rows, err = db.QueryContext(ctx, `
			SELECT open_time, close_time, open, high, low, close, volume, trades
			FROM (SELECT * FROM candles ORDER BY open_time DESC LIMIT ?)
			ORDER BY open_time ASC`, limit)
	} else {
		rows, err = db.QueryContext(ctx, `
			SELECT open_time, close_time, open, high, low, close, volume, trades
			FROM candles ORDER BY open_time ASC`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []market.Candle
	for rows.Next() {
		var k market.Candle
		if err := rows.Scan(&k.OpenTime, &k.CloseTime, &k.Open, &k.High, &k.Low, &k.Close, &k.Volume, &k.Trades); err != nil {
			return nil, err
		}
		list = append(list, k)
	}
	return list, rows.Err()
}

func (c *Cache) Manifest(ctx context.Context, symbol, timeframe string) (Manifest, error) {
	db, path, err := c.db(symbol, timeframe)
	if err != nil {
		return Manifest{}, err
	}
	row := db.QueryRowContext(ctx, `SELECT symbol,timeframe,min_time,max_time,rows,last_sync_at FROM manifest WHERE id=1`)
	var m Manifest
	var minT, maxT, last sql.NullInt64
	if err := row.Scan(&m.Symbol, &m.Timeframe, &minT, &maxT, &m.Rows, &last); err != nil {
		return Manifest{}, err
	}
	m.MinTime, m.MaxTime, m.LastSyncAt = minT.Int64, maxT.Int64, last.Int64
	m.Path = path
	return m, nil
}

func ensureSchema(db *sql.DB, symbol, timeframe string) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			open_time  INTEGER PRIMARY KEY,
			close_time INTEGER NOT NULL,
			open       REAL NOT NULL,
			high       REAL NOT NULL,
			low        REAL NOT NULL,
			close      REAL NOT NULL,
			volume     REAL NOT NULL,
			trades     INTEGER DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS manifest (
			id INTEGER PRIMARY KEY CHECK (id=1),
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			min_time INTEGER,
			max_time INTEGER,
			rows INTEGER DEFAULT 0,
			last_sync_at INTEGER
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT INTO manifest (id, symbol, timeframe) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET symbol=excluded.symbol, timeframe=excluded.timeframe;`, symbol, timeframe)
	return err
}
