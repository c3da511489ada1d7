package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sentiment-observer/src/logger"
	"sentiment-observer/src/models"

	_ "modernc.org/sqlite"
)

// SQLite connection pragmas; WAL lets the aggregator read while workers append.
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// -----------------------------------------------------------------------------

type SQLiteDB struct {
	sqlStore
	Config *models.MStorageConfig
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MStorageConfig, timeout time.Duration, log *logger.Logger) (*SQLiteDB, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	return &SQLiteDB{
		sqlStore: sqlStore{
			Logger:      log,
			Timeout:     timeout,
			placeholder: questionMark,
			tables:      tables{ticks: "ticks", sentiment: "sentiment_posts", aggregates: "aggregates"},
		},
		Config: cfg,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize() error {
	dsn := d.Config.DBPath
	if !strings.Contains(dsn, "?") {
		dsn += "?" + sqlitePragmas
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	// One writer at a time; busy_timeout covers readers in other processes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	d.DB = db
	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("SQLiteDB initialized successfully (%s)", d.Config.DBPath)
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) createTables() error {
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for decimals
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ticks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			price TEXT NOT NULL,
			volume TEXT NOT NULL,
			ts_ns INTEGER NOT NULL,
			trade_id INTEGER,
			UNIQUE (symbol, trade_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ticks_ts ON ticks (ts_ns);`,
		`CREATE INDEX IF NOT EXISTS idx_ticks_symbol_ts ON ticks (symbol, ts_ns);`,
		`CREATE TABLE IF NOT EXISTS sentiment_posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			sentiment REAL NOT NULL,
			ts_ns INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sentiment_ts ON sentiment_posts (ts_ns);`,
		`CREATE TABLE IF NOT EXISTS aggregates (
			symbol TEXT NOT NULL,
			bucket_start_ns INTEGER NOT NULL,
			open_price TEXT NOT NULL,
			close_price TEXT NOT NULL,
			high_price TEXT NOT NULL,
			low_price TEXT NOT NULL,
			volume TEXT NOT NULL,
			price_change_pct REAL NOT NULL,
			avg_sentiment REAL,
			sentiment_strength REAL,
			post_count INTEGER NOT NULL DEFAULT 0,
			created_at_ns INTEGER NOT NULL,
			PRIMARY KEY (symbol, bucket_start_ns)
		);`,
	}

	for _, stmt := range statements {
		if _, err := d.DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create sqlite schema: %w", err)
		}
	}
	return nil
}
