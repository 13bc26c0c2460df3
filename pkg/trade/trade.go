package trade

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/igolaizola/tgsignal/pkg/exchange"
	"github.com/igolaizola/tgsignal/pkg/signal"
	"github.com/shopspring/decimal"
)

// Config sizes each trade as USDTPerTrade*Leverage of notional. TPIndex is
// the 1-based take profit used for the reduce-only limit order.
type Config struct {
	USDTPerTrade float64
	Leverage     int
	SymbolMap    map[string]string
	PlaceTP      bool
	PlaceSL      bool
	TPIndex      int
	SLOffset     float64
}

type Plan struct {
	Signal     signal.Signal
	Symbol     string
	Side       signal.Side
	CloseSide  signal.Side
	Entry      decimal.Decimal
	Quantity   decimal.Decimal
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
	TPIndex    int
	PlaceSL    bool
}

func NewPlan(cfg Config, sig *signal.Signal) *Plan {
	symbol := sig.Symbol
	if mapped, ok := cfg.SymbolMap[sig.Symbol]; ok {
		symbol = mapped
	}
	entry := decimal.NewFromFloat(sig.Entry)
	p := &Plan{
		Signal:    *sig,
		Symbol:    symbol,
		Side:      sig.Side,
		CloseSide: sig.Side.Close(),
		Entry:     entry,
		TPIndex:   cfg.TPIndex,
		PlaceSL:   cfg.PlaceSL,
	}
	if entry.Sign() > 0 {
		notional := decimal.NewFromFloat(cfg.USDTPerTrade).Mul(decimal.NewFromInt(int64(cfg.Leverage)))
		p.Quantity = notional.Div(entry)
	}

	// Use a fixed offset from entry when the signal has no stop loss. The
	// signal stop loss is kept for notifications even if it isn't placed.
	switch {
	case sig.StopLoss != nil:
		sl := decimal.NewFromFloat(*sig.StopLoss)
		p.StopLoss = &sl
	case cfg.PlaceSL:
		offset := decimal.NewFromFloat(cfg.SLOffset)
		sl := entry.Add(offset)
		if sig.Side == signal.Buy {
			sl = entry.Sub(offset)
		}
		p.StopLoss = &sl
	}

	idx := cfg.TPIndex - 1
	if cfg.PlaceTP && idx >= 0 && idx < len(sig.TakeProfits) {
		tp := decimal.NewFromFloat(sig.TakeProfits[idx])
		p.TakeProfit = &tp
	}
	return p
}

// Info renders the plan for telegram notifications.
func (p *Plan) Info(from string) string {
	sb := &strings.Builder{}
	fmt.Fprintln(sb, "🌟 *Signal Detected*")
	fmt.Fprintf(sb, "• From: `%s`\n", from)
	fmt.Fprintf(sb, "• Symbol: `%s` (%s)\n", p.Symbol, p.Signal.Symbol)
	fmt.Fprintf(sb, "• Side: `%s`\n", p.Side)
	fmt.Fprintf(sb, "• Entry: `%s`\n", p.Entry)
	fmt.Fprintf(sb, "• SL: `%s`\n", orNA(p.StopLoss))
	fmt.Fprintf(sb, "• TP: `%s`", orNA(p.TakeProfit))
	return sb.String()
}

func orNA(d *decimal.Decimal) string {
	if d == nil || d.IsZero() {
		return "N/A"
	}
	return d.String()
}

type Execution struct {
	StartTime  time.Time
	EndTime    time.Time
	From       string
	Plan       *Plan
	Quantity   decimal.Decimal
	Entry      *exchange.Order
	TakeProfit *exchange.Order
	StopLoss   *exchange.Order
	Errors     []string
}

func (e *Execution) fail(err error) {
	e.Errors = append(e.Errors, err.Error())
}

var ErrInvalidQuantity = errors.New("trade: invalid quantity")

type Executor struct {
	log      func(v ...interface{})
	exchange exchange.Exchange
	wait     time.Duration
	retries  int
}

func NewExecutor(log func(v ...interface{}), ex exchange.Exchange, wait time.Duration, retries int) *Executor {
	return &Executor{
		log:      log,
		exchange: ex,
		wait:     wait,
		retries:  retries,
	}
}

// Execute opens the position described by p and places its take profit and
// stop loss orders. Only entry failures are returned as errors, take profit
// and stop loss failures are reported and recorded in the execution.
// Orders are created once, a timeout doesn't mean the exchange rejected them.
func (x *Executor) Execute(ctx context.Context, from string, p *Plan) (*Execution, error) {
	e := &Execution{
		StartTime: time.Now().UTC(),
		From:      from,
		Plan:      p,
	}
	defer func() {
		e.EndTime = time.Now().UTC()
	}()

	var qty decimal.Decimal
	if err := x.retry(ctx, func(ctx context.Context) error {
		var err error
		qty, err = x.exchange.RoundQuantity(ctx, p.Symbol, p.Quantity)
		return err
	}); err != nil {
		err = fmt.Errorf("trade: couldn't round quantity for %s: %w", p.Symbol, err)
		e.fail(err)
		return e, err
	}
	qty = qty.Round(3)
	e.Quantity = qty
	if qty.Sign() <= 0 {
		err := fmt.Errorf("%w: %s", ErrInvalidQuantity, qty)
		e.fail(err)
		return e, err
	}

	entry, err := x.exchange.MarketOrder(ctx, p.Symbol, p.Side, qty)
	if err != nil {
		err = fmt.Errorf("trade: couldn't open %s %s: %w", p.Side, p.Symbol, err)
		e.fail(err)
		x.log(fmt.Sprintf("❌ *ENTRY FAILED*\n`%s` %s qty `%s`\nError: `%v`", p.Symbol, p.Side, qty, err))
		return e, err
	}
	e.Entry = entry
	price := p.Entry
	if !e.Entry.AvgPrice.IsZero() {
		price = e.Entry.AvgPrice
	}
	x.log(fmt.Sprintf("✅ *ENTRY OK*\n`%s` %s qty `%s` price `%s`", p.Symbol, p.Side, qty, price))

	if p.TakeProfit != nil && !p.TakeProfit.IsZero() {
		tp := *p.TakeProfit
		if e.TakeProfit, err = x.exchange.LimitReduceOnly(ctx, p.Symbol, p.CloseSide, qty, tp); err != nil {
			e.fail(fmt.Errorf("trade: couldn't place TP%d: %w", p.TPIndex, err))
			x.log(fmt.Sprintf("⚠️ *TP%d Failed*\nError: `%v`", p.TPIndex, err))
		} else {
			x.log(fmt.Sprintf("🎯 *TP%d Placed*\nPrice: `%s`", p.TPIndex, tp))
		}
	}

	if p.PlaceSL && p.StopLoss != nil && !p.StopLoss.IsZero() {
		sl := *p.StopLoss
		if e.StopLoss, err = x.exchange.StopMarketReduceOnly(ctx, p.Symbol, p.CloseSide, qty, sl); err != nil {
			e.fail(fmt.Errorf("trade: couldn't place SL: %w", err))
			x.log(fmt.Sprintf("⚠️ *SL Failed*\nError: `%v`", err))
		} else {
			x.log(fmt.Sprintf("🛑 *SL Placed*\nPrice: `%s`", sl))
		}
	}
	return e, nil
}

// retry calls fn until it succeeds or fails with a non transient error. Only
// read calls are retried.
func (x *Executor) retry(ctx context.Context, fn func(context.Context) error) error {
	var nerr int
	tick, update, stop := ticker(x.wait)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			tick = update
		}
		err := fn(ctx)
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			nerr++
			if nerr > x.retries {
				return err
			}
			x.log(err, "retrying...")
			continue
		}
		return err
	}
}

func ticker(wait time.Duration) (<-chan time.Time, <-chan time.Time, func()) {
	// Don't wait ticker time on first run
	closedTick := make(chan time.Time)
	close(closedTick)
	tick := (<-chan time.Time)(closedTick)
	ticker := time.NewTicker(wait)
	return tick, ticker.C, ticker.Stop
}
