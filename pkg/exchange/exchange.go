package exchange

import (
	"context"
	"errors"

	"github.com/igolaizola/tgsignal/pkg/signal"
	"github.com/shopspring/decimal"
)

type Exchange interface {
	MarketOrder(ctx context.Context, symbol string, side signal.Side, quantity decimal.Decimal) (*Order, error)
	LimitReduceOnly(ctx context.Context, symbol string, side signal.Side, quantity, price decimal.Decimal) (*Order, error)
	StopMarketReduceOnly(ctx context.Context, symbol string, side signal.Side, quantity, stopPrice decimal.Decimal) (*Order, error)
	RoundQuantity(ctx context.Context, symbol string, quantity decimal.Decimal) (decimal.Decimal, error)
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
	Account(ctx context.Context, asset string) (*Account, error)
}

type Order struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	AvgPrice decimal.Decimal `json:"avg_price"`
}

type Account struct {
	Asset            string
	Balance          decimal.Decimal
	AssetAvailable   decimal.Decimal
	Wallet           decimal.Decimal
	Available        decimal.Decimal
	UnrealizedProfit decimal.Decimal
	Positions        []Position
}

type Position struct {
	Symbol           string
	Amount           decimal.Decimal
	EntryPrice       decimal.Decimal
	UnrealizedProfit decimal.Decimal
}

var ErrSymbolNotFound = errors.New("symbol not found")

// FloorToStep rounds quantity down to a multiple of step. A zero step leaves
// quantity untouched.
func FloorToStep(quantity, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return quantity
	}
	return quantity.Div(step).Floor().Mul(step)
}
