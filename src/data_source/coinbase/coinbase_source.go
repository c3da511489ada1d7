package coinbase

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"sentiment-observer/src/config"
	"sentiment-observer/src/helpers"
	"sentiment-observer/src/interfaces"
	"sentiment-observer/src/logger"
	"sentiment-observer/src/metrics"
	"sentiment-observer/src/models"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	eventTicker        = "ticker"
	eventError         = "error"
	eventSubscriptions = "subscriptions"

	writeWait = 5 * time.Second
)

// Drop reasons recorded in metrics.
const (
	dropMalformed = "malformed"
	dropInvalid   = "invalid"
	dropDuplicate = "duplicate"
	dropStore     = "store"
)

// -----------------------------------------------------------------------------

// Worker streams one product's ticker channel into the tick store. It implements
// interfaces.IConnectionWorker; one Worker value can serve every symbol.
type Worker struct {
	Dialer            interfaces.IFeedDialer
	Store             interfaces.ITickWriter
	Reporter          interfaces.IStatusReporter // Optional
	URL               string
	Channel           string
	ReconnectDelay    time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	Logger            *logger.Logger
	Metrics           *metrics.Metrics
}

// -----------------------------------------------------------------------------

func NewWorker(
	cfg *config.Config,
	dialer interfaces.IFeedDialer,
	store interfaces.ITickWriter,
	reporter interfaces.IStatusReporter,
	log *logger.Logger,
	m *metrics.Metrics,
) *Worker {
	return &Worker{
		Dialer:            dialer,
		Store:             store,
		Reporter:          reporter,
		URL:               cfg.Feed.URL,
		Channel:           cfg.Feed.Channel,
		ReconnectDelay:    cfg.ReconnectDelay(),
		HeartbeatInterval: cfg.HeartbeatInterval(),
		HeartbeatTimeout:  cfg.HeartbeatTimeout(),
		Logger:            log,
		Metrics:           m,
	}
}

// -----------------------------------------------------------------------------

// Run keeps a subscription for symbol alive until ctx is done. Every transport
// failure ends the current session; a fresh one starts after ReconnectDelay.
func (w *Worker) Run(ctx context.Context, symbol string) error {
	log := w.Logger.Named(symbol)

	for {
		err := w.session(ctx, symbol, log)
		w.report(symbol, false, err)

		if ctx.Err() != nil {
			log.Info("Feed worker stopped")
			return ctx.Err()
		}

		w.Metrics.Reconnected(symbol)
		log.Warning("Feed session ended: %v (reconnecting in %s)", err, w.ReconnectDelay)

		select {
		case <-ctx.Done():
			log.Info("Feed worker stopped")
			return ctx.Err()
		case <-time.After(w.ReconnectDelay):
		}
	}
}

// -----------------------------------------------------------------------------

// session runs one connection from dial to the first transport error.
func (w *Worker) session(ctx context.Context, symbol string, log *logger.Logger) error {
	conn, _, err := w.Dialer.DialContext(ctx, w.URL, nil)
	if err != nil {
		return helpers.NewTransportError(err, "dial %s", w.URL)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)

	// Closing the connection is the only way to interrupt a blocked read.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sub := models.MSubscribeMessage{
		Type:     "subscribe",
		Channels: []models.MFeedChannel{{Name: w.Channel, ProductIDs: []string{symbol}}},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sub); err != nil {
		return helpers.NewTransportError(err, "subscribe %s", symbol)
	}
	_ = conn.SetWriteDeadline(time.Time{})

	if w.HeartbeatInterval > 0 {
		grace := w.HeartbeatInterval + w.HeartbeatTimeout
		_ = conn.SetReadDeadline(time.Now().Add(grace))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(grace))
		})
		go w.keepAlive(conn, done, log)
	}

	log.Info("Subscribed to %s %s", w.Channel, symbol)
	w.report(symbol, true, nil)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return helpers.NewTransportError(err, "read %s", symbol)
		}
		w.handleMessage(ctx, symbol, log, data)
	}
}

// -----------------------------------------------------------------------------

// keepAlive pings every HeartbeatInterval. A failed ping closes the connection,
// which surfaces as a read error in the session loop.
func (w *Worker) keepAlive(conn *websocket.Conn, done <-chan struct{}, log *logger.Logger) {
	ticker := time.NewTicker(w.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.HeartbeatTimeout))
			if err != nil {
				log.Debug("Ping failed: %v", err)
				conn.Close()
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------

// handleMessage never fails: bad events and store failures are logged and dropped
// so the stream keeps draining.
func (w *Worker) handleMessage(ctx context.Context, symbol string, log *logger.Logger, data []byte) {
	var ev models.MFeedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		w.Metrics.TickDropped(symbol, dropMalformed)
		log.Warning("Dropping malformed feed message: %v", err)
		return
	}

	switch ev.Type {
	case eventTicker:
		tick, err := ParseTicker(ev, symbol)
		if err != nil {
			w.Metrics.TickDropped(symbol, dropInvalid)
			log.Warning("Dropping ticker event: %v", err)
			return
		}
		w.appendTick(ctx, tick, log)
	case eventError:
		log.Error("Feed reported error: %s %s", ev.Message, ev.Reason)
	case eventSubscriptions:
		log.Debug("Subscription confirmed")
	}
}

// -----------------------------------------------------------------------------

func (w *Worker) appendTick(ctx context.Context, tick models.MTick, log *logger.Logger) {
	err := w.Store.AppendTick(ctx, tick)
	switch {
	case err == nil:
		w.Metrics.TickStored(tick.Symbol)
	case helpers.IsDuplicate(err):
		w.Metrics.TickDropped(tick.Symbol, dropDuplicate)
		log.Debug("Tick already stored, skipping")
	default:
		w.Metrics.TickDropped(tick.Symbol, dropStore)
		log.Error("Failed to store tick at %s: %v", tick.Timestamp.Format(time.RFC3339Nano), err)
	}
}

// -----------------------------------------------------------------------------

func (w *Worker) report(symbol string, connected bool, err error) {
	if w.Reporter != nil {
		w.Reporter.ReportConnected(symbol, connected, err)
	}
}

// -----------------------------------------------------------------------------

// ParseTicker validates a ticker event for symbol. price and time are required,
// last_size defaults to zero and trade_id is optional.
func ParseTicker(ev models.MFeedEvent, symbol string) (models.MTick, error) {
	if ev.ProductID == "" {
		return models.MTick{}, helpers.NewParseError(nil, "missing product_id")
	}
	if ev.ProductID != symbol {
		return models.MTick{}, helpers.NewParseError(nil, "product_id %s on %s subscription", ev.ProductID, symbol)
	}

	if !ev.Price.Valid {
		return models.MTick{}, helpers.NewParseError(nil, "missing price")
	}
	price := ev.Price.Decimal
	if !price.IsPositive() {
		return models.MTick{}, helpers.NewParseError(nil, "non-positive price %s", price)
	}

	volume := decimal.Zero
	if ev.LastSize.Valid {
		volume = ev.LastSize.Decimal
		if volume.IsNegative() {
			return models.MTick{}, helpers.NewParseError(nil, "negative last_size %s", volume)
		}
	}

	ts, err := parseTime(ev.Time)
	if err != nil {
		return models.MTick{}, err
	}

	return models.MTick{
		Symbol:    symbol,
		Price:     price,
		Volume:    volume,
		Timestamp: ts,
		TradeID:   parseTradeID(ev.TradeID),
	}, nil
}

// -----------------------------------------------------------------------------

// parseTradeID accepts 55 or "55". Anything else means the tick has no trade id,
// which only disables dedup for it.
func parseTradeID(raw json.RawMessage) *int64 {
	value := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if value == "" || value == "null" {
		return nil
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// -----------------------------------------------------------------------------

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, helpers.NewParseError(nil, "missing time")
	}
	// RFC3339Nano accepts both "Z" and numeric offsets, with optional fractions.
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, helpers.NewParseError(err, "time %q", value)
	}
	return ts.UTC(), nil
}
