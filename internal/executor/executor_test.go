package executor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/exitwave/internal/kite"
	"github.com/web3guy0/exitwave/internal/positions"
)

// fakeBroker scripts order placement and history responses.
type fakeBroker struct {
	placeCalls   []kite.OrderParams
	placeErrs    []error // consumed per call; nil entry means success
	nextOrderID  int
	historyCalls []string
	history      map[string][]kite.Order
	historyErr   map[string]error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		nextOrderID: 1000,
		history:     make(map[string][]kite.Order),
		historyErr:  make(map[string]error),
	}
}

func (b *fakeBroker) PlaceMarketOrder(p kite.OrderParams) (string, error) {
	b.placeCalls = append(b.placeCalls, p)
	if len(b.placeErrs) > 0 {
		err := b.placeErrs[0]
		b.placeErrs = b.placeErrs[1:]
		if err != nil {
			return "", err
		}
	}
	b.nextOrderID++
	return fmt.Sprintf("ORD%d", b.nextOrderID), nil
}

func (b *fakeBroker) OrderHistory(orderID string) ([]kite.Order, error) {
	b.historyCalls = append(b.historyCalls, orderID)
	if err := b.historyErr[orderID]; err != nil {
		return nil, err
	}
	return b.history[orderID], nil
}

func newTestEngine(b Broker) *Engine {
	e := NewEngine(b, zerolog.Nop())
	e.SetDelays(0, 0)
	return e
}

func long(symbol string, qty int) positions.Position {
	return positions.Position{TradingSymbol: symbol, Exchange: "NFO", Product: "NRML", Quantity: qty}
}

func TestCloseTransaction(t *testing.T) {
	assert.Equal(t, kite.TransactionSell, CloseTransaction(long("X", 50)))
	assert.Equal(t, kite.TransactionBuy, CloseTransaction(long("Y", -25)))
	assert.Equal(t, "", CloseTransaction(long("Z", 0)))
}

func TestPlaceExitOrderZeroQuantity(t *testing.T) {
	broker := newFakeBroker()
	e := newTestEngine(broker)

	result := e.PlaceExitOrder(long("FLAT", 0), false)

	assert.False(t, result.Success)
	assert.Equal(t, TransactionNone, result.TransactionType)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, broker.placeCalls, "no order may reach the broker")
}

func TestPlaceExitOrderDryRun(t *testing.T) {
	broker := newFakeBroker()
	e := newTestEngine(broker)

	result := e.PlaceExitOrder(long("NIFTY25AUGFUT", -25), true)

	assert.True(t, result.Success)
	assert.Equal(t, DryRunOrderID, result.OrderID)
	assert.Equal(t, kite.TransactionBuy, result.TransactionType)
	assert.Equal(t, 25, result.Quantity)
	assert.Empty(t, broker.placeCalls, "dry run must not contact the broker")
}

func TestPlaceExitOrderRetriesThenSucceeds(t *testing.T) {
	broker := newFakeBroker()
	broker.placeErrs = []error{errors.New("gateway timeout"), errors.New("gateway timeout"), nil}
	e := newTestEngine(broker)

	result := e.PlaceExitOrder(long("NIFTY25AUGFUT", 50), false)

	require.True(t, result.Success)
	assert.Len(t, broker.placeCalls, 3)
	// The order id belongs to the third (successful) attempt.
	assert.Equal(t, "ORD1001", result.OrderID)
	assert.Empty(t, result.Error)
}

func TestPlaceExitOrderExhaustsRetries(t *testing.T) {
	broker := newFakeBroker()
	broker.placeErrs = []error{errors.New("err one"), errors.New("err two"), errors.New("err three")}
	e := newTestEngine(broker)

	result := e.PlaceExitOrder(long("NIFTY25AUGFUT", 50), false)

	assert.False(t, result.Success)
	assert.Len(t, broker.placeCalls, 3)
	assert.Equal(t, "err three", result.Error, "last error wins")
	assert.Empty(t, result.OrderID)
}

func TestPlaceExitOrderParams(t *testing.T) {
	broker := newFakeBroker()
	e := newTestEngine(broker)

	pos := positions.Position{TradingSymbol: "SENSEX25AUGFUT", Exchange: "BFO", Product: "MIS", Quantity: -25}
	result := e.PlaceExitOrder(pos, false)

	require.True(t, result.Success)
	require.Len(t, broker.placeCalls, 1)
	placed := broker.placeCalls[0]
	assert.Equal(t, "BFO", placed.Exchange)
	assert.Equal(t, "SENSEX25AUGFUT", placed.TradingSymbol)
	assert.Equal(t, kite.TransactionBuy, placed.TransactionType)
	assert.Equal(t, 25, placed.Quantity)
	assert.Equal(t, "MIS", placed.Product)
	assert.Equal(t, "exitwave", placed.Tag)
}

func TestExitAllPositionsOrderAndTally(t *testing.T) {
	broker := newFakeBroker()
	e := newTestEngine(broker)

	list := []positions.Position{long("X", 50), long("Y", -25), long("FLAT", 0)}
	results := e.ExitAllPositions(list, false)

	require.Len(t, results, 3)
	assert.Equal(t, "X", results[0].TradingSymbol)
	assert.Equal(t, kite.TransactionSell, results[0].TransactionType)
	assert.Equal(t, "Y", results[1].TradingSymbol)
	assert.Equal(t, kite.TransactionBuy, results[1].TransactionType)
	assert.Equal(t, TransactionNone, results[2].TransactionType)

	ok, failed := Tally(results)
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, failed)
}

func TestExitAllPositionsEmptyInput(t *testing.T) {
	broker := newFakeBroker()
	e := newTestEngine(broker)

	assert.Empty(t, e.ExitAllPositions(nil, false))
	assert.Empty(t, broker.placeCalls)
}

func TestExitAllPositionsDryRunAllSentinel(t *testing.T) {
	broker := newFakeBroker()
	e := newTestEngine(broker)

	results := e.ExitAllPositions([]positions.Position{long("X", 50), long("Y", -25)}, true)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Success)
		assert.Equal(t, DryRunOrderID, r.OrderID)
	}
	assert.Empty(t, broker.placeCalls)
}

func TestVerifyExitOrdersAllComplete(t *testing.T) {
	broker := newFakeBroker()
	broker.history["A1"] = []kite.Order{{Status: "OPEN"}, {Status: kite.StatusComplete}}
	broker.history["A2"] = []kite.Order{{Status: kite.StatusComplete}}
	e := newTestEngine(broker)

	results := []ExitOrderResult{
		{TradingSymbol: "X", OrderID: "A1", Success: true},
		{TradingSymbol: "Y", OrderID: "A2", Success: true},
	}
	assert.True(t, e.VerifyExitOrders(results, false))
	assert.Equal(t, []string{"A1", "A2"}, broker.historyCalls)
}

func TestVerifyExitOrdersRejected(t *testing.T) {
	broker := newFakeBroker()
	broker.history["A1"] = []kite.Order{{Status: kite.StatusRejected, StatusMessage: "insufficient margin"}}
	e := newTestEngine(broker)

	results := []ExitOrderResult{{TradingSymbol: "X", OrderID: "A1", Success: true}}
	assert.False(t, e.VerifyExitOrders(results, false))
}

func TestVerifyExitOrdersPending(t *testing.T) {
	broker := newFakeBroker()
	broker.history["A1"] = []kite.Order{{Status: "OPEN"}}
	e := newTestEngine(broker)

	results := []ExitOrderResult{{TradingSymbol: "X", OrderID: "A1", Success: true}}
	assert.False(t, e.VerifyExitOrders(results, false))
}

func TestVerifyExitOrdersLookupFailureContinues(t *testing.T) {
	broker := newFakeBroker()
	broker.historyErr["A1"] = errors.New("lookup failed")
	broker.history["A2"] = []kite.Order{{Status: kite.StatusComplete}}
	e := newTestEngine(broker)

	results := []ExitOrderResult{
		{TradingSymbol: "X", OrderID: "A1", Success: true},
		{TradingSymbol: "Y", OrderID: "A2", Success: true},
	}
	assert.False(t, e.VerifyExitOrders(results, false))
	// The failed lookup must not stop verification of the second order.
	assert.Equal(t, []string{"A1", "A2"}, broker.historyCalls)
}

func TestVerifyExitOrdersNothingToCheck(t *testing.T) {
	e := newTestEngine(newFakeBroker())

	// Nothing confirmable counts as a failed verification.
	assert.False(t, e.VerifyExitOrders(nil, false))
	assert.False(t, e.VerifyExitOrders([]ExitOrderResult{{Success: false}}, false))
}

func TestVerifyExitOrdersDryRun(t *testing.T) {
	broker := newFakeBroker()
	e := newTestEngine(broker)

	assert.True(t, e.VerifyExitOrders(nil, true))
	assert.Empty(t, broker.historyCalls)
}
