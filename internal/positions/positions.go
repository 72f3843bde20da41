// Package positions holds the F&O position model and the P&L aggregation
// used by the monitor to decide whether the loss threshold is breached.
package positions

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Side labels derived from net quantity. Side is never stored; it is always
// computed from the sign of Quantity.
const (
	SideLong  = "LONG"
	SideShort = "SHORT"
	SideFlat  = "FLAT"
)

// Position is one F&O leg as reported by the broker. Quantity is the net
// quantity: positive = long, negative = short, zero = flat.
type Position struct {
	TradingSymbol   string
	Exchange        string
	InstrumentToken int
	Product         string // NRML or MIS
	Quantity        int
	AveragePrice    decimal.Decimal
	LastPrice       decimal.Decimal
	PnL             decimal.Decimal // unrealized P&L from the broker
	M2M             decimal.Decimal // mark-to-market P&L
	BuyQuantity     int
	SellQuantity    int
	BuyPrice        decimal.Decimal
	SellPrice       decimal.Decimal
}

// IsOpen reports whether the position still has exposure.
func (p Position) IsOpen() bool {
	return p.Quantity != 0
}

// Side returns LONG, SHORT or FLAT based on the net quantity.
func (p Position) Side() string {
	switch {
	case p.Quantity > 0:
		return SideLong
	case p.Quantity < 0:
		return SideShort
	default:
		return SideFlat
	}
}

func (p Position) String() string {
	qty := p.Quantity
	if qty < 0 {
		qty = -qty
	}
	return fmt.Sprintf("%s | %s %d | Avg: %s | LTP: %s | P&L: %s",
		p.TradingSymbol, p.Side(), qty,
		p.AveragePrice.StringFixed(2), p.LastPrice.StringFixed(2), p.PnL.StringFixed(2))
}

// Book is one positions snapshot from the broker. Net carries the carried
// positions; Day the intraday view. Only Net drives exit decisions.
type Book struct {
	Net []Position
	Day []Position
}

// FilterOpen returns the open positions from the book's net view whose
// exchange is in venues. Venue matching is case-normalized and otherwise
// exact.
func FilterOpen(book *Book, venues []string) []Position {
	if book == nil || len(book.Net) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(venues))
	for _, v := range venues {
		allowed[strings.ToUpper(strings.TrimSpace(v))] = struct{}{}
	}

	var open []Position
	for _, p := range book.Net {
		if !p.IsOpen() {
			continue
		}
		if _, ok := allowed[strings.ToUpper(p.Exchange)]; !ok {
			continue
		}
		open = append(open, p)
	}
	return open
}

// TotalPnL sums the unrealized P&L over the given positions. Negative means
// loss.
func TotalPnL(list []Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range list {
		total = total.Add(p.PnL)
	}
	return total
}

// FormatSummary renders a multi-line table of the open positions for the
// periodic operator log.
func FormatSummary(list []Position, total decimal.Decimal) string {
	if len(list) == 0 {
		return "No open F&O positions."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Open F&O Positions (%d):\n", len(list))
	b.WriteString(strings.Repeat("-", 80))
	b.WriteString("\n")
	for _, p := range list {
		fmt.Fprintf(&b, "  %s\n", p)
	}
	b.WriteString(strings.Repeat("-", 80))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Total P&L: %s", total.StringFixed(2))
	return b.String()
}
