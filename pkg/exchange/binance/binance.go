package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/igolaizola/tgsignal/pkg/exchange"
	"github.com/igolaizola/tgsignal/pkg/signal"
	"github.com/shopspring/decimal"
)

type binanceExchange struct {
	client *futures.Client
	log    func(v ...interface{})
	debug  bool
}

var zero = decimal.Decimal{}

// New returns a USDⓈ-M futures exchange. An empty baseURL keeps the client
// default endpoint.
func New(log func(v ...interface{}), apiKey, apiSecret, baseURL string, debug bool) exchange.Exchange {
	cli := futures.NewClient(apiKey, apiSecret)
	if baseURL != "" {
		cli.BaseURL = baseURL
	}
	cli.NewSetServerTimeService().Do(context.Background())
	return &binanceExchange{
		client: cli,
		log:    log,
		debug:  debug,
	}
}

func (e *binanceExchange) MarketOrder(ctx context.Context, symbol string, side signal.Side, quantity decimal.Decimal) (*exchange.Order, error) {
	order, err := e.client.NewCreateOrderService().Symbol(symbol).
		Side(futures.SideType(side)).
		Type(futures.OrderTypeMarket).
		Quantity(quantity.String()).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: couldn't create market order: %w", err)
	}
	if e.debug {
		js, _ := json.Marshal(order)
		e.log("market_order:", string(js))
	}
	id := order.OrderID
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		o, filled, err := e.getOrder(ctx, symbol, id)
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("binance: couldn't get market order: %w", err)
		}
		if filled {
			return o, nil
		}
	}
}

func (e *binanceExchange) LimitReduceOnly(ctx context.Context, symbol string, side signal.Side, quantity, price decimal.Decimal) (*exchange.Order, error) {
	order, err := e.client.NewCreateOrderService().Symbol(symbol).
		Side(futures.SideType(side)).
		Type(futures.OrderTypeLimit).
		TimeInForce(futures.TimeInForceTypeGTC).
		Quantity(quantity.String()).
		Price(price.String()).
		ReduceOnly(true).
		WorkingType(futures.WorkingTypeMarkPrice).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: couldn't create limit order (%s %s): %w", quantity, price, err)
	}
	if e.debug {
		js, _ := json.Marshal(order)
		e.log("limit_order:", string(js))
	}
	return &exchange.Order{
		ID:     strconv.FormatInt(order.OrderID, 10),
		Status: string(order.Status),
	}, nil
}

func (e *binanceExchange) StopMarketReduceOnly(ctx context.Context, symbol string, side signal.Side, quantity, stopPrice decimal.Decimal) (*exchange.Order, error) {
	order, err := e.client.NewCreateOrderService().Symbol(symbol).
		Side(futures.SideType(side)).
		Type(futures.OrderTypeStopMarket).
		StopPrice(stopPrice.String()).
		Quantity(quantity.String()).
		ReduceOnly(true).
		WorkingType(futures.WorkingTypeMarkPrice).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: couldn't create stop market order (%s %s): %w", quantity, stopPrice, err)
	}
	if e.debug {
		js, _ := json.Marshal(order)
		e.log("stop_market_order:", string(js))
	}
	return &exchange.Order{
		ID:     strconv.FormatInt(order.OrderID, 10),
		Status: string(order.Status),
	}, nil
}

// RoundQuantity rounds quantity down to the LOT_SIZE step of symbol. Symbols
// without a lot size filter keep the quantity unchanged.
func (e *binanceExchange) RoundQuantity(ctx context.Context, symbol string, quantity decimal.Decimal) (decimal.Decimal, error) {
	info, err := e.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return zero, fmt.Errorf("binance: couldn't get exchange info for %s: %w", symbol, err)
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		lotSize := s.LotSizeFilter()
		if lotSize == nil {
			return quantity, nil
		}
		step, err := decimal.NewFromString(lotSize.StepSize)
		if err != nil {
			return zero, fmt.Errorf("binance: couldn't parse step size %s: %w", lotSize.StepSize, err)
		}
		return exchange.FloorToStep(quantity, step), nil
	}
	return quantity, nil
}

func (e *binanceExchange) getOrder(ctx context.Context, symbol string, id int64) (*exchange.Order, bool, error) {
	order, err := e.client.NewGetOrderService().Symbol(symbol).
		OrderID(id).Do(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("binance: couldn't get order: %w", err)
	}
	o := &exchange.Order{
		ID:     strconv.FormatInt(order.OrderID, 10),
		Status: string(order.Status),
	}
	switch order.Status {
	case futures.OrderStatusTypeNew, futures.OrderStatusTypePartiallyFilled:
		return o, false, nil
	case futures.OrderStatusTypeFilled:
		if e.debug {
			js, _ := json.Marshal(order)
			e.log("order_filled", string(js))
		}
		price, err := decimal.NewFromString(order.AvgPrice)
		if err != nil {
			return nil, false, fmt.Errorf("binance: couldn't parse price: %s: %w", order.AvgPrice, err)
		}
		o.AvgPrice = price
		return o, true, nil
	default:
	}
	return nil, false, fmt.Errorf("binance: order %d status %s", id, order.Status)
}

func (e *binanceExchange) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := e.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return zero, fmt.Errorf("binance: couldn't get price for %s: %w", symbol, err)
	}
	for _, p := range prices {
		if p.Symbol != symbol {
			continue
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return zero, fmt.Errorf("binance: couldn't parse price: %s: %w", p.Price, err)
		}
		return price, nil
	}
	return zero, fmt.Errorf("binance: price for %s: %w", symbol, exchange.ErrSymbolNotFound)
}

func (e *binanceExchange) Account(ctx context.Context, asset string) (*exchange.Account, error) {
	balances, err := e.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: couldn't get balance: %w", err)
	}
	acc, err := e.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: couldn't get account: %w", err)
	}
	risks, err := e.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: couldn't get positions: %w", err)
	}

	a := &exchange.Account{Asset: asset}
	for _, b := range balances {
		if b.Asset != asset {
			continue
		}
		if a.Balance, err = parse(b.Balance); err != nil {
			return nil, err
		}
		if a.AssetAvailable, err = parse(b.AvailableBalance); err != nil {
			return nil, err
		}
	}
	if a.Wallet, err = parse(acc.TotalWalletBalance); err != nil {
		return nil, err
	}
	if a.Available, err = parse(acc.AvailableBalance); err != nil {
		return nil, err
	}
	if a.UnrealizedProfit, err = parse(acc.TotalUnrealizedProfit); err != nil {
		return nil, err
	}
	for _, r := range risks {
		amount, err := parse(r.PositionAmt)
		if err != nil {
			return nil, err
		}
		if amount.IsZero() {
			continue
		}
		entry, err := parse(r.EntryPrice)
		if err != nil {
			return nil, err
		}
		pnl, err := parse(r.UnRealizedProfit)
		if err != nil {
			return nil, err
		}
		a.Positions = append(a.Positions, exchange.Position{
			Symbol:           r.Symbol,
			Amount:           amount,
			EntryPrice:       entry,
			UnrealizedProfit: pnl,
		})
	}
	return a, nil
}

func parse(value string) (decimal.Decimal, error) {
	if value == "" {
		return zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return zero, fmt.Errorf("binance: couldn't parse %q: %w", value, err)
	}
	return d, nil
}
