package tgsignal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/igolaizola/tgsignal/pkg/exchange"
	"github.com/igolaizola/tgsignal/pkg/exchange/binance"
	"github.com/igolaizola/tgsignal/pkg/mtproto"
	"github.com/igolaizola/tgsignal/pkg/signal"
	"github.com/igolaizola/tgsignal/pkg/signal/parser"
	"github.com/igolaizola/tgsignal/pkg/telegram"
	"github.com/igolaizola/tgsignal/pkg/trade"
	"github.com/igolaizola/tgsignal/pkg/trade/bolt"
	"golang.org/x/sync/errgroup"
)

var version = "v261018a"

type Config struct {
	DBPath         string
	ExchangeKey    string
	ExchangeSecret string
	ExchangeURL    string
	Currency       string

	TelegramToken string
	ControlChat   int64
	OrderChat     int64
	ForwardChat   int64
	SignalChats   []int64

	MTProtoID      int
	MTProtoHash    string
	MTProtoPhone   string
	MTProtoSession string

	Parser string
	Trade  trade.Config
	Dry    bool
	Debug  bool
}

type Bot struct {
	run      []func(context.Context) error
	ctx      context.Context
	cancel   context.CancelFunc
	log      func(v ...interface{})
	notify   func(v ...interface{})
	forward  func(from, text string)
	exchange exchange.Exchange
	executor *trade.Executor
	parser   signal.Parser
	store    trade.Store
	cfg      trade.Config
	currency string
	control  int64
	signals  map[int64]bool
	codes    chan string
	wg       sync.WaitGroup
	dry      bool
	debug    bool
}

func NewBot(cfg Config) (*Bot, error) {
	tgbot, err := telegram.New(cfg.TelegramToken, cfg.ControlChat, cfg.OrderChat, cfg.ForwardChat)
	if err != nil {
		return nil, fmt.Errorf("tgsignal: couldn't create telegram bot: %w", err)
	}
	log := tgbot.Print
	var ex exchange.Exchange
	if cfg.Dry {
		ex = binance.NewDry(log, cfg.ExchangeURL, cfg.Debug)
	} else {
		ex = binance.New(log, cfg.ExchangeKey, cfg.ExchangeSecret, cfg.ExchangeURL, cfg.Debug)
	}
	p, err := parser.NewParser(cfg.Parser)
	if err != nil {
		return nil, fmt.Errorf("tgsignal: couldn't create parser %q: %w", cfg.Parser, err)
	}
	store, err := bolt.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("tgsignal: couldn't create db: %w", err)
	}

	b := newBot(log, tgbot.Notify, tgbot.Forward, ex, p, store, cfg)
	b.run = append(b.run, tgbot.Run)

	// Signal chats are read by the user account when mtproto is enabled
	chats := cfg.SignalChats
	if cfg.MTProtoID != 0 {
		chats = nil
	}
	tgbot.HandleChat(chats, true, b.handle)
	tgbot.HandleCommand("start", false, func(_ string) string {
		return "✅ Bot is online. Use /balance"
	})
	tgbot.HandleCommand("balance", true, func(_ string) string {
		return b.balance()
	})
	tgbot.HandleCommand("history", true, func(_ string) string {
		return b.history()
	})
	tgbot.HandleCommand("code", true, b.code)
	tgbot.HandleCommand("shutdown", true, func(_ string) string {
		b.shutdown()
		return "shutting down"
	})

	if cfg.MTProtoID != 0 {
		listener := mtproto.New(cfg.MTProtoID, cfg.MTProtoHash, cfg.MTProtoPhone, cfg.MTProtoSession, []int64{tgbot.ID()}, log,
			b.receive, b.waitCode)
		b.run = append(b.run, listener.Listen)
	}
	return b, nil
}

func newBot(log, notify func(v ...interface{}), forward func(from, text string), ex exchange.Exchange, p signal.Parser, store trade.Store, cfg Config) *Bot {
	signals := make(map[int64]bool)
	for _, id := range cfg.SignalChats {
		signals[mtproto.PeerID(id)] = true
	}
	return &Bot{
		ctx:      context.TODO(),
		log:      log,
		notify:   notify,
		forward:  forward,
		exchange: ex,
		executor: trade.NewExecutor(notify, ex, 5*time.Second, 10),
		parser:   p,
		store:    store,
		cfg:      cfg.Trade,
		currency: cfg.Currency,
		control:  mtproto.PeerID(cfg.ControlChat),
		signals:  signals,
		codes:    make(chan string, 1),
		dry:      cfg.Dry,
		debug:    cfg.Debug,
	}
}

func (b *Bot) Run(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)
	defer b.cancel()
	b.log(fmt.Sprintf("🤖 tgsignal bot running\n- version: %s\n- dry mode: %t", version, b.dry))
	defer b.log("🛑 tgsignal bot stopped")

	if acc, err := b.exchange.Account(b.ctx, b.currency); err != nil {
		b.log(fmt.Sprintf("❌ exchange connection failed: %v", err))
	} else {
		b.log(fmt.Sprintf("💰 %s balance: %s", b.currency, acc.Balance))
	}

	g, ctx := errgroup.WithContext(b.ctx)
	for _, run := range b.run {
		run := run
		g.Go(func() error {
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	err := g.Wait()
	b.wg.Wait()
	if c, ok := b.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Println(err)
		}
	}
	return err
}

// handle processes messages read by the telegram bot. The control chat is
// always allowed to send signals.
func (b *Bot) handle(chatID int64, title, text string) {
	id := mtproto.PeerID(chatID)
	if id != b.control && !b.signals[id] {
		return
	}
	from := fmt.Sprintf("%s (ID: %d)", title, chatID)
	b.forward(from, text)
	b.process(from, text)
}

// receive processes messages read by the user account. Every message is
// forwarded but only signal chats are parsed. The control chat is left to
// the telegram bot, otherwise notifications would be read back as signals.
func (b *Bot) receive(m mtproto.Message) {
	id := mtproto.PeerID(m.ChatID)
	if id == b.control {
		return
	}
	from := fmt.Sprintf("%s (ID: %d)", m.Title, m.ChatID)
	b.forward(from, m.Text)
	if !b.signals[id] {
		return
	}
	b.process(from, m.Text)
}

func (b *Bot) process(from, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	sig, err := b.parser.Parse(text)
	if err != nil {
		if b.debug || !errors.Is(err, signal.ErrNoSignal) {
			log.Println(err)
		}
		return
	}
	plan := trade.NewPlan(b.cfg, sig)
	log.Printf("🚀 executing trade for signal from %s", from)
	b.notify("⚡ *Executing Trade*\n" + plan.Info(from))

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.execute(from, plan)
	}()
}

func (b *Bot) execute(from string, plan *trade.Plan) {
	e, err := b.executor.Execute(b.ctx, from, plan)
	if err != nil {
		b.log(err)
	}
	if err := b.store.Update(e); err != nil {
		b.log(fmt.Errorf("tgsignal: couldn't save execution: %w", err))
	}
}

func (b *Bot) balance() string {
	acc, err := b.exchange.Account(b.ctx, b.currency)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	sb := &strings.Builder{}
	fmt.Fprintln(sb, "📊 *Futures Balance*")
	fmt.Fprintf(sb, "- %s balance: `%s`\n", acc.Asset, acc.Balance)
	fmt.Fprintf(sb, "- %s available: `%s`\n", acc.Asset, acc.AssetAvailable)
	fmt.Fprintln(sb)
	fmt.Fprintln(sb, "💼 *Account Summary*")
	fmt.Fprintf(sb, "- Wallet: `%s`\n", acc.Wallet)
	fmt.Fprintf(sb, "- Available: `%s`\n", acc.Available)
	fmt.Fprintf(sb, "- Unrealized PnL: `%s`\n", acc.UnrealizedProfit)
	fmt.Fprintln(sb)
	fmt.Fprintf(sb, "📌 *Open Positions (%d)*", len(acc.Positions))
	if len(acc.Positions) == 0 {
		fmt.Fprint(sb, "\n- (none)")
	}
	for i, p := range acc.Positions {
		if i >= 10 {
			break
		}
		fmt.Fprintf(sb, "\n- `%s` amt=`%s` entry=`%s` pnl=`%s`", p.Symbol, p.Amount, p.EntryPrice, p.UnrealizedProfit)
	}
	return sb.String()
}

func (b *Bot) history() string {
	to := time.Now().UTC().Add(time.Minute)
	from := to.Add(-7 * 24 * time.Hour)
	executions, err := b.store.List(from, to)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	if len(executions) == 0 {
		return "no executions in the last 7 days"
	}
	if len(executions) > 10 {
		executions = executions[len(executions)-10:]
	}
	sb := &strings.Builder{}
	for i, e := range executions {
		emoji := "✅"
		if e.Entry == nil {
			emoji = "❌"
		} else if len(e.Errors) > 0 {
			emoji = "⚠️"
		}
		if i > 0 {
			fmt.Fprintln(sb)
		}
		fmt.Fprintf(sb, "%s %s `%s` %s qty `%s` entry `%s`", emoji, e.StartTime.Format("2006-01-02 15:04"),
			e.Plan.Symbol, e.Plan.Side, e.Quantity, e.Plan.Entry)
	}
	return sb.String()
}

// code receives the mtproto login code. Digits may be separated by any
// character because telegram invalidates codes shared verbatim.
func (b *Bot) code(payload string) string {
	code := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, payload)
	if code == "" {
		return "usage: /code 1 2 3 4 5"
	}
	select {
	case b.codes <- code:
		return "🔑 code received"
	default:
		return "code not requested"
	}
}

func (b *Bot) waitCode(ctx context.Context) (string, error) {
	// Drop stale codes
	select {
	case <-b.codes:
	default:
	}
	b.log("🔑 mtproto login required, send the code using /code with its digits separated by spaces")
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case code := <-b.codes:
		return code, nil
	}
}

func (b *Bot) shutdown() {
	if b.cancel != nil {
		b.cancel()
	}
}
