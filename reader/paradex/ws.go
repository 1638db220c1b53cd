package paradex

import (
	"context"
	"encoding/json"
	"fmt"
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
	writeWait        = 10 * time.Second
	handshakeTimeout = 15 * time.Second
)

// errGap forces the reconnect path when sequence-gap resubscription is
// enabled and the wire skips a seq_no.
var errGap = fmt.Errorf("sequence gap detected")

// Reader streams the Paradex L2 book over a JSON-RPC 2.0 WebSocket. The
// venue sends one authoritative snapshot followed by deltas; a local
// connection-scoped book state absorbs both and materializes an immutable
// OrderBook after every mutation.
type Reader struct {
	config  *appconfig.Config
	watch   *bookwatch.Watch
	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log
	market  string

	updates uint64
	last    *models.OrderBook
}

// NewReader creates a Paradex feed publishing into watch.
func NewReader(cfg *appconfig.Config, watch *bookwatch.Watch) *Reader {
	return &Reader{
		config: cfg,
		watch:  watch,
		wg:     &sync.WaitGroup{},
		log:    logger.GetLogger(),
		market: cfg.Pair.PDXSymbol,
	}
}

// Start launches the connection loop.
func (r *Reader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("paradex reader already running")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	log := r.log.WithComponent("paradex_reader").WithFields(logger.Fields{"operation": "start"})
	log.WithFields(logger.Fields{"market": r.market}).Info("starting paradex reader")

	r.wg.Add(1)
	go r.connectLoop()

	log.Info("paradex reader started successfully")
	return nil
}

// Stop waits for the connection loop to exit.
func (r *Reader) Stop() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.log.WithComponent("paradex_reader").Info("stopping paradex reader")
	r.wg.Wait()
	r.log.WithComponent("paradex_reader").Info("paradex reader stopped")
}

func (r *Reader) channel() string {
	return fmt.Sprintf("order_book.%s.snapshot@15@100ms", r.market)
}

func (r *Reader) connectLoop() {
	defer r.wg.Done()

	log := r.log.WithComponent("paradex_reader").WithFields(logger.Fields{"worker": "ws_stream", "market": r.market})

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
			log.WithError(err).Warn("paradex connection failed")
		} else if clean {
			log.Warn("paradex connection closed, reconnecting")
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

// runConnection owns one socket and one localBook. The book state never
// survives a connection: reconnect always starts from ready=false and
// waits for a fresh snapshot.
func (r *Reader) runConnection(log *logger.Entry, delay *time.Duration) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(r.ctx, r.config.Feeds.Paradex.WSURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	log.Info("connected")

	sub, err := json.Marshal(models.NewPDXSubscribe(r.channel(), 1))
	if err != nil {
		return false, fmt.Errorf("marshal subscribe: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	log.WithFields(logger.Fields{"channel": r.channel()}).Info("subscribed")

	hbCtx, hbCancel := context.WithCancel(r.ctx)
	defer hbCancel()
	var writeMu sync.Mutex
	go r.heartbeat(hbCtx, conn, &writeMu, log)

	// Unblock the read loop promptly on shutdown.
	go func() {
		<-hbCtx.Done()
		conn.Close()
	}()

	state := newLocalBook()

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
		handled, err := r.handleMessage(payload, state, log)
		if err != nil {
			return false, err
		}
		if handled {
			*delay = r.config.Feeds.Reconnect.BaseDelay.Std()
		}
	}
}

func (r *Reader) heartbeat(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, log *logger.Entry) {
	ticker := time.NewTicker(r.config.Feeds.Paradex.Heartbeat.Std())
	defer ticker.Stop()

	var hbID uint64 = 100
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg, err := json.Marshal(models.NewPDXHeartbeat(hbID))
			if err != nil {
				log.WithError(err).Warn("failed to marshal heartbeat")
				return
			}
			writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = conn.WriteMessage(websocket.TextMessage, msg)
			writeMu.Unlock()
			if err != nil {
				log.WithError(err).Warn("heartbeat send failed, closing socket")
				conn.Close()
				return
			}
			log.WithFields(logger.Fields{"hb_id": hbID}).Debug("sent heartbeat")
			hbID++
		}
	}
}

// handleMessage parses one JSON-RPC frame. Malformed frames are discarded
// with a warning and the previously published book stays current. The
// returned error is non-nil only when the connection must be torn down.
func (r *Reader) handleMessage(payload []byte, state *localBook, log *logger.Entry) (bool, error) {
	var frame models.PDXFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		log.WithError(err).Warn("failed to parse frame, discarding")
		return false, nil
	}

	if len(frame.Error) > 0 {
		log.WithFields(logger.Fields{"rpc_error": string(frame.Error)}).Warn("rpc error frame")
		return false, nil
	}
	if len(frame.Result) > 0 {
		log.WithFields(logger.Fields{"id": frame.ID}).Debug("rpc ack")
		return true, nil
	}
	if frame.Method != "subscription" {
		log.WithFields(logger.Fields{"method": frame.Method}).Debug("unhandled method")
		return true, nil
	}

	var params models.PDXPushParams
	if err := json.Unmarshal(frame.Params, &params); err != nil {
		log.WithError(err).Warn("subscription push with bad params, discarding")
		return false, nil
	}
	var data models.PDXBookData
	if err := json.Unmarshal(params.Data, &data); err != nil {
		log.WithError(err).Warn("failed to parse book data, discarding")
		return false, nil
	}

	switch data.UpdateType {
	case "s":
		state.applySnapshot(&data)
	case "d":
		if !state.ready {
			log.Debug("delta before first snapshot, discarding")
			return true, nil
		}
		if r.config.Feeds.Paradex.ResubscribeOnGap && state.gap(&data) {
			log.WithFields(logger.Fields{
				"last_seq_no": *state.lastSeqNo,
				"seq_no":      *data.SeqNo,
			}).Warn("sequence gap, forcing resubscribe")
			return false, errGap
		}
		state.applyDelta(&data)
	default:
		log.WithFields(logger.Fields{"update_type": data.UpdateType}).Debug("unknown update_type, discarding")
		return true, nil
	}

	book := r.buildBook(state)
	r.publish(book)
	logger.LogDataFlowEntry(log, "paradex_ws", "book_watch", len(book.Bids)+len(book.Asks), "book_levels")
	return true, nil
}

// buildBook materializes the local state into an immutable OrderBook.
func (r *Reader) buildBook(state *localBook) *models.OrderBook {
	bids, asks := state.materialize(r.config.Feeds.BookDepth)
	book := models.BookFromLevels(models.VenueParadex, r.market, bids, asks, state.lastUpdateMS)
	r.updates++
	book.Updates = r.updates
	return book
}

func (r *Reader) publish(book *models.OrderBook) {
	r.last = book
	r.watch.Publish(book)
}

func (r *Reader) publishDisconnected() {
	prev := r.last
	if prev == nil {
		prev = models.NewOrderBook(models.VenueParadex, r.market)
	}
	book := *prev
	book.Connected = false
	r.updates++
	book.Updates = r.updates
	r.last = &book
	r.watch.Publish(&book)
}
