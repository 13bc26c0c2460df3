package tgsignal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/igolaizola/tgsignal/pkg/exchange"
	"github.com/igolaizola/tgsignal/pkg/mtproto"
	"github.com/igolaizola/tgsignal/pkg/signal"
	"github.com/igolaizola/tgsignal/pkg/trade"
	"github.com/igolaizola/tgsignal/pkg/trade/inmem"
	"github.com/shopspring/decimal"
)

const gold = `#XAUUSD SELL 4872_75

TP 4868
TP 4864
TP 4860
TP 4856
TP 4852

SL 4885`

type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) print(v ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (r *recorder) forward(from, text string) {
	r.print("forward", from, text)
}

func (r *recorder) all() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.lines, "\n")
}

func testBot(t *testing.T) (*Bot, *recorder, *mockExchange, *inmem.Store) {
	t.Helper()
	rec := &recorder{}
	ex := &mockExchange{}
	store := &inmem.Store{}
	cfg := Config{
		Currency:    "USDT",
		ControlChat: 100,
		SignalChats: []int64{-1001685845137},
		Trade: trade.Config{
			USDTPerTrade: 10,
			Leverage:     10,
			SymbolMap:    map[string]string{"XAUUSD": "XAUUSDT"},
			PlaceTP:      true,
			PlaceSL:      true,
			TPIndex:      2,
			SLOffset:     10,
		},
	}
	b := newBot(rec.print, rec.print, rec.forward, ex, signal.NewParser(), store, cfg)
	return b, rec, ex, store
}

func TestHandle(t *testing.T) {
	b, rec, ex, store := testBot(t)

	b.handle(1685845137, "Gold Signals", gold)
	b.wg.Wait()

	want := []string{"market SELL 0.02", "limit BUY 0.02 4864", "stop BUY 0.02 4885"}
	if fmt.Sprint(ex.orders) != fmt.Sprint(want) {
		t.Errorf("wrong orders: want %v, got %v", want, ex.orders)
	}
	out := rec.all()
	for _, s := range []string{
		"forward Gold Signals (ID: 1685845137)",
		"⚡ *Executing Trade*",
		"• Symbol: `XAUUSDT` (XAUUSD)",
		"• Entry: `4875`",
		"✅ *ENTRY OK*",
		"🎯 *TP2 Placed*",
		"🛑 *SL Placed*",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("missing %q in output:\n%s", s, out)
		}
	}

	executions, err := store.List(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(executions) != 1 {
		t.Fatalf("wrong number of executions: %d", len(executions))
	}
	if executions[0].Plan.Symbol != "XAUUSDT" {
		t.Errorf("wrong symbol: %s", executions[0].Plan.Symbol)
	}
}

func TestHandleIgnored(t *testing.T) {
	tests := []struct {
		name string
		chat int64
		text string
	}{
		{name: "unknown chat", chat: 555, text: gold},
		{name: "empty", chat: 1685845137, text: "   \n  "},
		{name: "not a signal", chat: 1685845137, text: "good morning traders 🌞"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			b, rec, ex, _ := testBot(t)
			b.handle(tt.chat, "chat", tt.text)
			b.wg.Wait()
			if len(ex.orders) != 0 {
				t.Errorf("unexpected orders: %v", ex.orders)
			}
			if strings.Contains(rec.all(), "Executing Trade") {
				t.Errorf("unexpected execution:\n%s", rec.all())
			}
		})
	}
}

func TestHandleControlChat(t *testing.T) {
	b, _, ex, _ := testBot(t)
	b.handle(100, "admin", "#XAUUSD BUY 4872\nTP 4880\nTP 4890")
	b.wg.Wait()
	want := []string{"market BUY 0.02", "limit SELL 0.02 4890", "stop SELL 0.02 4862"}
	if fmt.Sprint(ex.orders) != fmt.Sprint(want) {
		t.Errorf("wrong orders: want %v, got %v", want, ex.orders)
	}
}

func TestReceive(t *testing.T) {
	b, rec, ex, _ := testBot(t)

	b.receive(mtproto.Message{ChatID: 4242, Title: "Friends", Text: "#XAUUSD SELL 4872_75"})
	b.wg.Wait()
	if len(ex.orders) != 0 {
		t.Errorf("unexpected orders from a non signal chat: %v", ex.orders)
	}
	if !strings.Contains(rec.all(), "forward Friends (ID: 4242) #XAUUSD SELL 4872_75") {
		t.Errorf("message not forwarded:\n%s", rec.all())
	}

	// Notifications read back from the control chat must not trade again
	notification := "⚡ *Executing Trade*\n" + trade.NewPlan(b.cfg, &signal.Signal{Symbol: "XAUUSD", Side: signal.Sell, Entry: 4875}).Info("x")
	b.receive(mtproto.Message{ChatID: 100, Title: "admin", Text: notification})
	b.wg.Wait()
	if len(ex.orders) != 0 {
		t.Errorf("unexpected orders from the control chat: %v", ex.orders)
	}
	if strings.Contains(rec.all(), "forward admin") {
		t.Errorf("control chat forwarded:\n%s", rec.all())
	}

	b.receive(mtproto.Message{ChatID: 1685845137, Title: "Gold Signals", Text: gold})
	b.wg.Wait()
	want := []string{"market SELL 0.02", "limit BUY 0.02 4864", "stop BUY 0.02 4885"}
	if fmt.Sprint(ex.orders) != fmt.Sprint(want) {
		t.Errorf("wrong orders: want %v, got %v", want, ex.orders)
	}
}

func TestBalance(t *testing.T) {
	b, _, ex, _ := testBot(t)
	ex.positions = []exchange.Position{
		{Symbol: "XAUUSDT", Amount: decimal.NewFromFloat(-0.02), EntryPrice: decimal.NewFromInt(4875), UnrealizedProfit: decimal.NewFromFloat(0.3)},
	}
	got := b.balance()
	want := "📊 *Futures Balance*\n" +
		"- USDT balance: `100`\n" +
		"- USDT available: `90`\n" +
		"\n" +
		"💼 *Account Summary*\n" +
		"- Wallet: `100`\n" +
		"- Available: `90`\n" +
		"- Unrealized PnL: `0.3`\n" +
		"\n" +
		"📌 *Open Positions (1)*\n" +
		"- `XAUUSDT` amt=`-0.02` entry=`4875` pnl=`0.3`"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}

	ex.positions = nil
	if got := b.balance(); !strings.HasSuffix(got, "📌 *Open Positions (0)*\n- (none)") {
		t.Errorf("unexpected balance:\n%s", got)
	}
}

func TestHistory(t *testing.T) {
	b, _, _, _ := testBot(t)
	if got := b.history(); got != "no executions in the last 7 days" {
		t.Errorf("unexpected history: %s", got)
	}
	b.handle(1685845137, "Gold Signals", gold)
	b.wg.Wait()
	got := b.history()
	if !strings.HasPrefix(got, "✅ ") || !strings.Contains(got, "`XAUUSDT` SELL qty `0.02` entry `4875`") {
		t.Errorf("unexpected history: %s", got)
	}
}

func TestCode(t *testing.T) {
	b, rec, _, _ := testBot(t)
	if got := b.code("no digits"); !strings.HasPrefix(got, "usage") {
		t.Errorf("unexpected reply: %s", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan string)
	go func() {
		code, err := b.waitCode(ctx)
		if err != nil {
			t.Error(err)
		}
		done <- code
	}()

	for !strings.Contains(rec.all(), "mtproto login required") {
		time.Sleep(10 * time.Millisecond)
	}
	if reply := b.code("1 2-3 4.5"); reply != "🔑 code received" {
		t.Fatalf("unexpected reply: %s", reply)
	}
	if code := <-done; code != "12345" {
		t.Errorf("wrong code: %s", code)
	}
}

type mockExchange struct {
	mu        sync.Mutex
	orders    []string
	positions []exchange.Position
}

func (e *mockExchange) record(format string, a ...interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orders = append(e.orders, fmt.Sprintf(format, a...))
}

func (e *mockExchange) MarketOrder(ctx context.Context, symbol string, side signal.Side, quantity decimal.Decimal) (*exchange.Order, error) {
	e.record("market %s %s", side, quantity)
	return &exchange.Order{ID: "1", Status: "FILLED", AvgPrice: decimal.NewFromInt(4875)}, nil
}
func (e *mockExchange) LimitReduceOnly(ctx context.Context, symbol string, side signal.Side, quantity, price decimal.Decimal) (*exchange.Order, error) {
	e.record("limit %s %s %s", side, quantity, price)
	return &exchange.Order{ID: "2", Status: "NEW"}, nil
}
func (e *mockExchange) StopMarketReduceOnly(ctx context.Context, symbol string, side signal.Side, quantity, stopPrice decimal.Decimal) (*exchange.Order, error) {
	e.record("stop %s %s %s", side, quantity, stopPrice)
	return &exchange.Order{ID: "3", Status: "NEW"}, nil
}
func (e *mockExchange) RoundQuantity(ctx context.Context, symbol string, quantity decimal.Decimal) (decimal.Decimal, error) {
	return exchange.FloorToStep(quantity, decimal.NewFromFloat(0.001)), nil
}
func (e *mockExchange) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.NewFromInt(4875), nil
}
func (e *mockExchange) Account(ctx context.Context, asset string) (*exchange.Account, error) {
	return &exchange.Account{
		Asset:            asset,
		Balance:          decimal.NewFromInt(100),
		AssetAvailable:   decimal.NewFromInt(90),
		Wallet:           decimal.NewFromInt(100),
		Available:        decimal.NewFromInt(90),
		UnrealizedProfit: decimal.NewFromFloat(0.3),
		Positions:        e.positions,
	}, nil
}
