package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	appconfig "bookflow/config"
	"bookflow/internal/bookwatch"
	"bookflow/logger"
	"bookflow/models"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	handshakeTimeout = 15 * time.Second
)

// Reader streams the Hyperliquid L2 book over WebSocket. Every push is a
// complete venue-sorted snapshot, so no local delta state is kept: each
// message becomes a fresh OrderBook published to the watch.
type Reader struct {
	config  *appconfig.Config
	watch   *bookwatch.Watch
	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log
	symbol  string

	updates uint64
	last    *models.OrderBook
}

// NewReader creates a Hyperliquid feed publishing into watch.
func NewReader(cfg *appconfig.Config, watch *bookwatch.Watch) *Reader {
	return &Reader{
		config: cfg,
		watch:  watch,
		wg:     &sync.WaitGroup{},
		log:    logger.GetLogger(),
		symbol: cfg.Pair.HLSymbol,
	}
}

// Start launches the connection loop. It returns once the loop goroutine
// is running; the loop itself runs until ctx is cancelled.
func (r *Reader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("hyperliquid reader already running")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	log := r.log.WithComponent("hyperliquid_reader").WithFields(logger.Fields{"operation": "start"})
	log.WithFields(logger.Fields{"symbol": r.symbol}).Info("starting hyperliquid reader")

	r.wg.Add(1)
	go r.connectLoop()

	log.Info("hyperliquid reader started successfully")
	return nil
}

// Stop waits for the connection loop to exit.
func (r *Reader) Stop() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.log.WithComponent("hyperliquid_reader").Info("stopping hyperliquid reader")
	r.wg.Wait()
	r.log.WithComponent("hyperliquid_reader").Info("hyperliquid reader stopped")
}

// connectLoop dials, subscribes and consumes messages, reconnecting with
// exponential backoff on any transport failure. Backoff starts at the
// configured base delay, doubles up to the cap and resets after a
// successfully parsed message.
func (r *Reader) connectLoop() {
	defer r.wg.Done()

	log := r.log.WithComponent("hyperliquid_reader").WithFields(logger.Fields{"worker": "ws_stream", "symbol": r.symbol})

	base := r.config.Feeds.Reconnect.BaseDelay.Std()
	maxDelay := r.config.Feeds.Reconnect.MaxDelay.Std()
	delay := base

	for {
		if r.ctx.Err() != nil {
			return
		}

		connID := uuid.NewString()[:8]
		clean, err := r.runConnection(log.WithFields(logger.Fields{"conn_id": connID}), &delay)
		if err != nil {
			log.WithError(err).Warn("hyperliquid connection failed")
		} else if clean {
			log.Warn("hyperliquid connection closed, reconnecting")
		}

		r.publishDisconnected()

		if r.ctx.Err() != nil {
			return
		}

		select {
		case <-r.ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// runConnection owns exactly one socket. It returns (true, nil) on a clean
// server close, or the transport error otherwise. delay is reset to the
// base backoff whenever a message parses successfully.
func (r *Reader) runConnection(log *logger.Entry, delay *time.Duration) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(r.ctx, r.config.Feeds.Hyperliquid.WSURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	log.Info("connected")

	sub, err := json.Marshal(models.NewHLSubscribe(r.symbol))
	if err != nil {
		return false, fmt.Errorf("marshal subscribe: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	log.WithFields(logger.Fields{"channel": "l2Book", "coin": r.symbol}).Info("subscribed")

	// Per-connection heartbeat task; send failure closes the socket so
	// the read loop below unblocks into the reconnect path.
	hbCtx, hbCancel := context.WithCancel(r.ctx)
	defer hbCancel()
	var writeMu sync.Mutex
	go r.heartbeat(hbCtx, conn, &writeMu, log)

	// Unblock the read loop promptly on shutdown.
	go func() {
		<-hbCtx.Done()
		conn.Close()
	}()

	for {
		if r.ctx.Err() != nil {
			return true, nil
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if r.ctx.Err() != nil {
				return true, nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, nil
			}
			return false, fmt.Errorf("read: %w", err)
		}
		if r.handleMessage(payload, log) {
			*delay = r.config.Feeds.Reconnect.BaseDelay.Std()
		}
	}
}

func (r *Reader) heartbeat(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, log *logger.Entry) {
	ticker := time.NewTicker(r.config.Feeds.Hyperliquid.Heartbeat.Std())
	defer ticker.Stop()

	ping, _ := json.Marshal(models.HLPingMsg{Method: "ping"})
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.TextMessage, ping)
			writeMu.Unlock()
			if err != nil {
				log.WithError(err).Warn("heartbeat send failed, closing socket")
				conn.Close()
				return
			}
			log.Debug("sent ping")
		}
	}
}

// handleMessage parses one wire frame and publishes the resulting book.
// Returns true when the frame was a valid, handled message.
func (r *Reader) handleMessage(payload []byte, log *logger.Entry) bool {
	var env models.HLEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		log.WithError(err).Warn("failed to parse envelope, discarding frame")
		return false
	}

	switch env.Channel {
	case "pong":
		log.Debug("received pong")
		return true
	case "subscriptionResponse":
		log.Debug("subscription confirmed")
		return true
	case "l2Book":
		var push models.HLBook
		if err := json.Unmarshal(env.Data, &push); err != nil {
			log.WithError(err).Warn("failed to parse l2Book push, discarding frame")
			return false
		}
		if len(push.Levels) < 2 {
			log.WithFields(logger.Fields{"sides": len(push.Levels)}).Warn("l2Book push missing sides, discarding frame")
			return false
		}
		book := r.buildBook(push)
		r.publish(book)
		logger.LogDataFlowEntry(log, "hyperliquid_ws", "book_watch", len(book.Bids)+len(book.Asks), "book_levels")
		return true
	default:
		log.WithFields(logger.Fields{"channel": env.Channel}).Debug("unhandled channel")
		return true
	}
}

// buildBook converts an l2Book push into an immutable OrderBook. The venue
// delivers both sides already sorted and truncated; size-0 levels are
// dropped silently.
func (r *Reader) buildBook(push models.HLBook) *models.OrderBook {
	depth := r.config.Feeds.BookDepth
	bids := convertSide(push.Levels[0], depth)
	asks := convertSide(push.Levels[1], depth)

	book := models.BookFromLevels(models.VenueHyperliquid, r.symbol, bids, asks, push.Time)
	r.updates++
	book.Updates = r.updates
	return book
}

func convertSide(side []models.HLLevel, depth int) []models.Level {
	out := make([]models.Level, 0, len(side))
	for _, l := range side {
		if len(out) == depth {
			break
		}
		if strings.TrimSpace(l.Px) == "" {
			continue
		}
		sz, err := strconv.ParseFloat(l.Sz, 64)
		if err != nil || sz == 0 {
			continue
		}
		out = append(out, models.Level{Px: l.Px, Sz: l.Sz, N: l.N})
	}
	return out
}

func (r *Reader) publish(book *models.OrderBook) {
	r.last = book
	r.watch.Publish(book)
}

// publishDisconnected re-publishes the last known levels with
// Connected=false so the consumer renders them dimmed.
func (r *Reader) publishDisconnected() {
	prev := r.last
	if prev == nil {
		prev = models.NewOrderBook(models.VenueHyperliquid, r.symbol)
	}
	book := *prev
	book.Connected = false
	r.updates++
	book.Updates = r.updates
	r.last = &book
	r.watch.Publish(&book)
}
