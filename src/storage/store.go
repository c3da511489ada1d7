package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sentiment-observer/src/helpers"
	"sentiment-observer/src/logger"
	"sentiment-observer/src/models"
)

// -----------------------------------------------------------------------------

// tables holds the (possibly schema-qualified) table names of a backend.
type tables struct {
	ticks      string
	sentiment  string
	aggregates string
}

// -----------------------------------------------------------------------------

// sqlStore implements the store contract on database/sql. Every method is a single
// statement on a pooled connection, so writes are atomic and no connection is held
// between calls.
type sqlStore struct {
	DB      *sql.DB
	Logger  *logger.Logger
	Timeout time.Duration

	tables      tables
	placeholder func(n int) string
}

// -----------------------------------------------------------------------------

func questionMark(int) string  { return "?" }
func dollarNumber(n int) string { return "$" + strconv.Itoa(n) }

// bind replaces each ? with the backend placeholder.
func (s *sqlStore) bind(query string) string {
	if s.placeholder == nil {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// -----------------------------------------------------------------------------

func (s *sqlStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.Timeout)
}

// -----------------------------------------------------------------------------

func (s *sqlStore) Ping(ctx context.Context) error {
	if s.DB == nil {
		return errors.New("database not initialized")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.DB.PingContext(ctx)
}

// -----------------------------------------------------------------------------

func (s *sqlStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------
// Ticks
// -----------------------------------------------------------------------------

func (s *sqlStore) AppendTick(ctx context.Context, tick models.MTick) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := s.bind(fmt.Sprintf(`
		INSERT INTO %s (symbol, price, volume, ts_ns, trade_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (symbol, trade_id) DO NOTHING
	`, s.tables.ticks))

	res, err := s.DB.ExecContext(ctx, query,
		tick.Symbol, tick.Price.String(), tick.Volume.String(), tick.Timestamp.UTC().UnixNano(), tick.TradeID)
	if err != nil {
		return helpers.NewDatabaseError(err, "append tick %s", tick.Symbol)
	}
	return duplicateIfUnchanged(res)
}

// -----------------------------------------------------------------------------

func (s *sqlStore) TicksInRange(ctx context.Context, symbol string, start, end time.Time) ([]models.MTick, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT symbol, price, volume, ts_ns, trade_id FROM %s WHERE ts_ns >= ? AND ts_ns < ?`, s.tables.ticks)
	args := []interface{}{start.UTC().UnixNano(), end.UTC().UnixNano()}
	if symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY ts_ns, id`

	rows, err := s.DB.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, helpers.NewDatabaseError(err, "query ticks")
	}
	defer rows.Close()

	var ticks []models.MTick
	for rows.Next() {
		var (
			t       models.MTick
			tsNs    int64
			tradeID sql.NullInt64
		)
		if err := rows.Scan(&t.Symbol, &t.Price, &t.Volume, &tsNs, &tradeID); err != nil {
			return nil, helpers.NewDatabaseError(err, "scan tick")
		}
		t.Timestamp = time.Unix(0, tsNs).UTC()
		if tradeID.Valid {
			id := tradeID.Int64
			t.TradeID = &id
		}
		ticks = append(ticks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, helpers.NewDatabaseError(err, "iterate ticks")
	}
	return ticks, nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) LatestTickTimestamp(ctx context.Context) (time.Time, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var latest sql.NullInt64
	if err := s.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT MAX(ts_ns) FROM %s`, s.tables.ticks)).Scan(&latest); err != nil {
		return time.Time{}, false, helpers.NewDatabaseError(err, "query latest tick")
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(0, latest.Int64).UTC(), true, nil
}

// -----------------------------------------------------------------------------
// Sentiment
// -----------------------------------------------------------------------------

func (s *sqlStore) AppendSentiment(ctx context.Context, obs models.MSentimentObservation) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := s.bind(fmt.Sprintf(`INSERT INTO %s (text, sentiment, ts_ns) VALUES (?, ?, ?)`, s.tables.sentiment))
	if _, err := s.DB.ExecContext(ctx, query, obs.Text, obs.Sentiment, obs.Timestamp.UTC().UnixNano()); err != nil {
		return helpers.NewDatabaseError(err, "append sentiment")
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) SentimentInRange(ctx context.Context, start, end time.Time) ([]models.MSentimentObservation, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := s.bind(fmt.Sprintf(`
		SELECT text, sentiment, ts_ns FROM %s
		WHERE ts_ns >= ? AND ts_ns < ?
		ORDER BY ts_ns, id
	`, s.tables.sentiment))

	rows, err := s.DB.QueryContext(ctx, query, start.UTC().UnixNano(), end.UTC().UnixNano())
	if err != nil {
		return nil, helpers.NewDatabaseError(err, "query sentiment")
	}
	defer rows.Close()

	var out []models.MSentimentObservation
	for rows.Next() {
		var (
			o    models.MSentimentObservation
			tsNs int64
		)
		if err := rows.Scan(&o.Text, &o.Sentiment, &tsNs); err != nil {
			return nil, helpers.NewDatabaseError(err, "scan sentiment")
		}
		o.Timestamp = time.Unix(0, tsNs).UTC()
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, helpers.NewDatabaseError(err, "iterate sentiment")
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Aggregates
// -----------------------------------------------------------------------------

// InsertAggregate never overwrites: the first committed row for a key wins.
func (s *sqlStore) InsertAggregate(ctx context.Context, b models.MAggregateBucket) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := s.bind(fmt.Sprintf(`
		INSERT INTO %s (symbol, bucket_start_ns, open_price, close_price, high_price, low_price, volume,
			price_change_pct, avg_sentiment, sentiment_strength, post_count, created_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, bucket_start_ns) DO NOTHING
	`, s.tables.aggregates))

	res, err := s.DB.ExecContext(ctx, query,
		b.Symbol, b.BucketStart.UTC().UnixNano(),
		b.Open.String(), b.Close.String(), b.High.String(), b.Low.String(), b.Volume.String(),
		b.PriceChangePct, b.AvgSentiment, b.SentimentStrength, b.PostCount, createdAt.UnixNano())
	if err != nil {
		return helpers.NewDatabaseError(err, "insert aggregate %s@%s", b.Symbol, b.BucketStart.Format(time.RFC3339))
	}
	return duplicateIfUnchanged(res)
}

// -----------------------------------------------------------------------------

func (s *sqlStore) GetAggregate(ctx context.Context, symbol string, bucketStart time.Time) (*models.MAggregateBucket, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := s.bind(fmt.Sprintf(`
		SELECT symbol, bucket_start_ns, open_price, close_price, high_price, low_price, volume,
			price_change_pct, avg_sentiment, sentiment_strength, post_count, created_at_ns
		FROM %s WHERE symbol = ? AND bucket_start_ns = ?
	`, s.tables.aggregates))

	var (
		b                  models.MAggregateBucket
		startNs, createdNs int64
		avg, strength      sql.NullFloat64
	)
	err := s.DB.QueryRowContext(ctx, query, symbol, bucketStart.UTC().UnixNano()).Scan(
		&b.Symbol, &startNs, &b.Open, &b.Close, &b.High, &b.Low, &b.Volume,
		&b.PriceChangePct, &avg, &strength, &b.PostCount, &createdNs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, helpers.NewDatabaseError(err, "get aggregate %s", symbol)
	}

	b.BucketStart = time.Unix(0, startNs).UTC()
	b.CreatedAt = time.Unix(0, createdNs).UTC()
	if avg.Valid {
		v := avg.Float64
		b.AvgSentiment = &v
	}
	if strength.Valid {
		v := strength.Float64
		b.SentimentStrength = &v
	}
	return &b, nil
}

// -----------------------------------------------------------------------------

// duplicateIfUnchanged maps an ON CONFLICT DO NOTHING no-op to helpers.ErrDuplicate.
func duplicateIfUnchanged(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return helpers.NewDatabaseError(err, "rows affected")
	}
	if n == 0 {
		return helpers.ErrDuplicate
	}
	return nil
}
