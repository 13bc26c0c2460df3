package binance

import (
	"context"
	"testing"

	"github.com/igolaizola/tgsignal/pkg/exchange"
	"github.com/igolaizola/tgsignal/pkg/signal"
	"github.com/shopspring/decimal"
)

func TestDryMarketOrder(t *testing.T) {
	ex := newDry(&priceExchange{price: decimal.NewFromInt(4875)})
	ctx := context.Background()

	o, err := ex.MarketOrder(ctx, "XAUUSDT", signal.Sell, decimal.NewFromFloat(0.02))
	if err != nil {
		t.Fatal(err)
	}
	if !o.AvgPrice.Equal(decimal.NewFromInt(4875)) {
		t.Errorf("wrong avg price: %s", o.AvgPrice)
	}
	if o.ID != "dry_market_SELL_1" {
		t.Errorf("wrong id: %s", o.ID)
	}

	tp, err := ex.LimitReduceOnly(ctx, "XAUUSDT", signal.Buy, decimal.NewFromFloat(0.02), decimal.NewFromInt(4864))
	if err != nil {
		t.Fatal(err)
	}
	if tp.ID != "dry_limit_BUY_2" {
		t.Errorf("wrong id: %s", tp.ID)
	}

	acc, err := ex.Account(ctx, "USDT")
	if err != nil {
		t.Fatal(err)
	}
	if !acc.Balance.Equal(decimal.NewFromInt(100)) || len(acc.Positions) != 0 {
		t.Errorf("unexpected account: %+v", acc)
	}
}

type priceExchange struct {
	exchange.Exchange
	price decimal.Decimal
}

func (e *priceExchange) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return e.price, nil
}
