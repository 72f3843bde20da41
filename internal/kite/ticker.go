package kite

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	DefaultTickerURL = "wss://ws.kite.trade"

	tickerReadLimit    = 1 << 20
	tickerDialTimeout  = 10 * time.Second
	tickerPingInterval = 30 * time.Second
)

// OrderUpdate is one order postback pushed over the Kite WebSocket. The
// monitor only logs these during the verification window; order state of
// record still comes from OrderHistory.
type OrderUpdate struct {
	OrderID         string `json:"order_id"`
	Status          string `json:"status"`
	StatusMessage   string `json:"status_message"`
	TradingSymbol   string `json:"tradingsymbol"`
	Exchange        string `json:"exchange"`
	TransactionType string `json:"transaction_type"`
	FilledQuantity  int    `json:"filled_quantity"`
}

type tickerMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Ticker streams live order updates from the Kite WebSocket endpoint.
// Binary frames (market quotes) are ignored; only the JSON order postbacks
// matter here.
type Ticker struct {
	mu sync.Mutex

	wsURL       string
	apiKey      string
	accessToken string
	log         zerolog.Logger

	conn    *websocket.Conn
	running bool
	stopCh  chan struct{}
	updates chan OrderUpdate
}

// NewTicker creates an order-update ticker sharing the client's session.
func NewTicker(apiKey, accessToken string, log zerolog.Logger) *Ticker {
	return &Ticker{
		wsURL:       DefaultTickerURL,
		apiKey:      apiKey,
		accessToken: accessToken,
		log:         log.With().Str("component", "ticker").Logger(),
		updates:     make(chan OrderUpdate, 100),
	}
}

// SetURL overrides the WebSocket endpoint. Used by tests.
func (t *Ticker) SetURL(u string) {
	t.wsURL = u
}

// Updates returns the channel order postbacks are delivered on. The channel
// is closed when the ticker stops.
func (t *Ticker) Updates() <-chan OrderUpdate {
	return t.updates
}

// Start dials the WebSocket and begins the read loop.
func (t *Ticker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil
	}

	u, err := url.Parse(t.wsURL)
	if err != nil {
		return fmt.Errorf("ticker: invalid url: %w", err)
	}
	q := u.Query()
	q.Set("api_key", t.apiKey)
	q.Set("access_token", t.accessToken)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: tickerDialTimeout}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("ticker: dial: %w", err)
	}
	conn.SetReadLimit(tickerReadLimit)

	t.conn = conn
	t.running = true
	t.stopCh = make(chan struct{})

	go t.readLoop(conn)
	go t.pingLoop(conn)

	t.log.Info().Msg("📡 Order update stream connected")
	return nil
}

// Stop closes the connection and the updates channel.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.running = false
	close(t.stopCh)
	if t.conn != nil {
		t.conn.Close()
	}
}

func (t *Ticker) readLoop(conn *websocket.Conn) {
	defer close(t.updates)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-t.stopCh:
			default:
				t.log.Warn().Err(err).Msg("Order update stream closed")
			}
			return
		}

		// Quote packets arrive as binary frames; postbacks as text.
		if msgType != websocket.TextMessage {
			continue
		}

		var msg tickerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.log.Debug().Err(err).Msg("Unparseable ticker message")
			continue
		}
		if msg.Type != "order" {
			continue
		}

		var update OrderUpdate
		if err := json.Unmarshal(msg.Data, &update); err != nil {
			t.log.Debug().Err(err).Msg("Unparseable order update")
			continue
		}

		select {
		case t.updates <- update:
		default:
			// Slow consumer, drop rather than stall the read loop.
		}
	}
}

func (t *Ticker) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(tickerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
