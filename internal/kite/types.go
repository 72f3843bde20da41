package kite

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Order statuses surfaced by the order history endpoint. Anything that is
// neither COMPLETE nor REJECTED is treated as still pending.
const (
	StatusComplete = "COMPLETE"
	StatusRejected = "REJECTED"
)

// Order constants used when placing square-off orders.
const (
	VarietyRegular  = "regular"
	OrderTypeMarket = "MARKET"
	ValidityDay     = "DAY"

	TransactionBuy  = "BUY"
	TransactionSell = "SELL"
)

// OrderParams describes one market order to be placed.
type OrderParams struct {
	Exchange        string
	TradingSymbol   string
	TransactionType string
	Quantity        int
	Product         string // NRML or MIS, carried over from the position
	Tag             string // attribution tag, shows up in the order book
}

// Order is one entry of an order's status history.
type Order struct {
	OrderID         string          `json:"order_id"`
	Status          string          `json:"status"`
	StatusMessage   string          `json:"status_message"`
	TradingSymbol   string          `json:"tradingsymbol"`
	Exchange        string          `json:"exchange"`
	TransactionType string          `json:"transaction_type"`
	Quantity        int             `json:"quantity"`
	FilledQuantity  int             `json:"filled_quantity"`
	AveragePrice    decimal.Decimal `json:"average_price"`
	OrderTimestamp  string          `json:"order_timestamp"`
}

// Profile is the subset of /user/profile used to validate a session.
type Profile struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Broker   string `json:"broker"`
}

// envelope is the common Kite response wrapper.
type envelope struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
}

// rawPosition mirrors the positions payload on the wire. decimal fields
// unmarshal JSON numbers directly.
type rawPosition struct {
	TradingSymbol   string          `json:"tradingsymbol"`
	Exchange        string          `json:"exchange"`
	InstrumentToken int             `json:"instrument_token"`
	Product         string          `json:"product"`
	Quantity        int             `json:"quantity"`
	AveragePrice    decimal.Decimal `json:"average_price"`
	LastPrice       decimal.Decimal `json:"last_price"`
	PnL             decimal.Decimal `json:"pnl"`
	M2M             decimal.Decimal `json:"m2m"`
	BuyQuantity     int             `json:"buy_quantity"`
	SellQuantity    int             `json:"sell_quantity"`
	BuyPrice        decimal.Decimal `json:"buy_price"`
	SellPrice       decimal.Decimal `json:"sell_price"`
}

type rawPositionBook struct {
	Net []rawPosition `json:"net"`
	Day []rawPosition `json:"day"`
}

type sessionData struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
}

type orderResponse struct {
	OrderID string `json:"order_id"`
}
