package binance

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/igolaizola/tgsignal/pkg/exchange"
	"github.com/igolaizola/tgsignal/pkg/signal"
	"github.com/shopspring/decimal"
)

type binanceExchangeDry struct {
	exchange.Exchange
	ids int64
}

// NewDry uses public market data only, orders are never sent.
func NewDry(log func(v ...interface{}), baseURL string, debug bool) exchange.Exchange {
	return newDry(New(log, "", "", baseURL, debug))
}

func newDry(ex exchange.Exchange) *binanceExchangeDry {
	return &binanceExchangeDry{
		Exchange: ex,
	}
}

func (e *binanceExchangeDry) MarketOrder(ctx context.Context, symbol string, side signal.Side, quantity decimal.Decimal) (*exchange.Order, error) {
	price, err := e.Price(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &exchange.Order{
		ID:       e.nextID("market", side),
		Status:   "FILLED",
		AvgPrice: price,
	}, nil
}

func (e *binanceExchangeDry) LimitReduceOnly(ctx context.Context, symbol string, side signal.Side, quantity, price decimal.Decimal) (*exchange.Order, error) {
	return &exchange.Order{ID: e.nextID("limit", side), Status: "NEW"}, nil
}

func (e *binanceExchangeDry) StopMarketReduceOnly(ctx context.Context, symbol string, side signal.Side, quantity, stopPrice decimal.Decimal) (*exchange.Order, error) {
	return &exchange.Order{ID: e.nextID("stop", side), Status: "NEW"}, nil
}

func (e *binanceExchangeDry) Account(ctx context.Context, asset string) (*exchange.Account, error) {
	balance := decimal.NewFromFloat(100.0)
	return &exchange.Account{
		Asset:          asset,
		Balance:        balance,
		AssetAvailable: balance,
		Wallet:         balance,
		Available:      balance,
	}, nil
}

func (e *binanceExchangeDry) nextID(kind string, side signal.Side) string {
	return fmt.Sprintf("dry_%s_%s_%d", kind, side, atomic.AddInt64(&e.ids, 1))
}
