package storage

import (
	"database/sql"
	"fmt"
	"time"

	"sentiment-observer/src/logger"
	"sentiment-observer/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	sqlStore
	Config *models.MStorageConfig
	Schema string
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MStorageConfig, timeout time.Duration, log *logger.Logger) (*PostgresDB, error) {
	if cfg.DBConnectionString == "" {
		return nil, fmt.Errorf("postgres: empty connection string")
	}
	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}

	return &PostgresDB{
		sqlStore: sqlStore{
			Logger:      log,
			Timeout:     timeout,
			placeholder: dollarNumber,
			tables: tables{
				ticks:      fmt.Sprintf(`"%s"."ticks"`, schema),
				sentiment:  fmt.Sprintf(`"%s"."sentiment_posts"`, schema),
				aggregates: fmt.Sprintf(`"%s"."aggregates"`, schema),
			},
		},
		Config: cfg,
		Schema: schema,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	db, err := sql.Open("postgres", d.Config.DBConnectionString)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			symbol TEXT NOT NULL,
			price NUMERIC NOT NULL,
			volume NUMERIC NOT NULL,
			ts_ns BIGINT NOT NULL,
			trade_id BIGINT,
			UNIQUE (symbol, trade_id)
		);`, d.tables.ticks),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_ticks_ts ON %s (ts_ns);`, d.tables.ticks),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_ticks_symbol_ts ON %s (symbol, ts_ns);`, d.tables.ticks),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			text TEXT NOT NULL,
			sentiment DOUBLE PRECISION NOT NULL,
			ts_ns BIGINT NOT NULL
		);`, d.tables.sentiment),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_sentiment_ts ON %s (ts_ns);`, d.tables.sentiment),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			symbol TEXT NOT NULL,
			bucket_start_ns BIGINT NOT NULL,
			open_price NUMERIC NOT NULL,
			close_price NUMERIC NOT NULL,
			high_price NUMERIC NOT NULL,
			low_price NUMERIC NOT NULL,
			volume NUMERIC NOT NULL,
			price_change_pct DOUBLE PRECISION NOT NULL,
			avg_sentiment DOUBLE PRECISION,
			sentiment_strength DOUBLE PRECISION,
			post_count INTEGER NOT NULL DEFAULT 0,
			created_at_ns BIGINT NOT NULL,
			PRIMARY KEY (symbol, bucket_start_ns)
		);`, d.tables.aggregates),
	}

	for _, stmt := range statements {
		if _, err := d.DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create postgres schema: %w", err)
		}
	}
	return nil
}
