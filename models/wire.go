package models

import "encoding/json"

/////////////////////////////////////////////////////////////////////////////
/////////////////////////////// HYPERLIQUID /////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// HLSubscribeMsg is the outbound l2Book subscription request.
type HLSubscribeMsg struct {
	Method       string         `json:"method"`
	Subscription HLSubscription `json:"subscription"`
}

type HLSubscription struct {
	Type string `json:"type"`
	Coin string `json:"coin"`
}

// NewHLSubscribe builds the subscribe message for a coin's L2 book.
func NewHLSubscribe(coin string) HLSubscribeMsg {
	return HLSubscribeMsg{
		Method:       "subscribe",
		Subscription: HLSubscription{Type: "l2Book", Coin: coin},
	}
}

// HLPingMsg is the application-layer heartbeat.
type HLPingMsg struct {
	Method string `json:"method"`
}

// HLEnvelope is the top-level inbound frame from the Hyperliquid server.
type HLEnvelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// HLBook is a parsed l2Book push. Levels holds (bids, asks) in that order,
// each side already price-sorted and truncated by the venue.
type HLBook struct {
	Coin   string       `json:"coin"`
	Time   int64        `json:"time"`
	Levels [][]HLLevel  `json:"levels"`
}

// HLLevel is a single Hyperliquid price level.
type HLLevel struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int32  `json:"n"`
}

/////////////////////////////////////////////////////////////////////////////
///////////////////////////////// PARADEX ///////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// PDXRequest is an outbound JSON-RPC 2.0 request.
type PDXRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  PDXParams `json:"params"`
	ID      uint64    `json:"id"`
}

type PDXParams struct {
	Channel string `json:"channel,omitempty"`
}

// NewPDXSubscribe builds the order book subscription request.
// Channel format: order_book.<market>.snapshot@15@100ms
func NewPDXSubscribe(channel string, id uint64) PDXRequest {
	return PDXRequest{
		JSONRPC: "2.0",
		Method:  "subscribe",
		Params:  PDXParams{Channel: channel},
		ID:      id,
	}
}

// NewPDXHeartbeat builds the application-layer heartbeat request.
func NewPDXHeartbeat(id uint64) PDXRequest {
	return PDXRequest{JSONRPC: "2.0", Method: "heartbeat", ID: id}
}

// PDXFrame is a generic inbound JSON-RPC 2.0 frame: covers result acks,
// errors and subscription pushes.
type PDXFrame struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
	ID      *uint64         `json:"id,omitempty"`
}

// PDXPushParams is the params payload of a subscription push.
type PDXPushParams struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// PDXBookData is an order book message. UpdateType is "s" for an
// authoritative snapshot and "d" for a delta; LastUpdatedAt is in
// microseconds; SeqNo is a monotonic per-market counter.
type PDXBookData struct {
	Market        string      `json:"market"`
	SeqNo         *int64      `json:"seq_no"`
	LastUpdatedAt int64       `json:"last_updated_at"`
	UpdateType    string      `json:"update_type"`
	Bids          [][2]string `json:"bids"`
	Asks          [][2]string `json:"asks"`
}
