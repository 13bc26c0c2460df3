package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/igolaizola/tgsignal"
	"github.com/igolaizola/tgsignal/pkg/trade"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

func main() {
	// Create signal based context
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
			cancel()
		}
		signal.Stop(c)
	}()

	// Launch command
	cmd := newCommand()
	if err := cmd.ParseAndRun(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func newCommand() *ffcli.Command {
	fs := flag.NewFlagSet("tgsignal", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "tgsignal [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newRunCommand(),
		},
	}
}

func newRunCommand() *ffcli.Command {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	db := fs.String("db", "tgsignal.db", "database path")
	key := fs.String("exchange-key", "", "binance api key")
	secret := fs.String("exchange-secret", "", "binance api secret")
	url := fs.String("exchange-url", "https://fapi.binance.com", "binance futures base url")
	currency := fs.String("currency", "USDT", "margin currency")

	token := fs.String("telegram-token", "", "telegram token")
	controlChat := fs.Int64("telegram-control-chat", 0, "telegram chat id for logs and commands")
	orderChat := fs.Int64("telegram-order-chat", 0, "telegram chat id for order notifications (optional)")
	forwardChat := fs.Int64("telegram-forward-chat", 0, "telegram chat id to copy inbound messages (optional)")
	signalChats := fs.String("telegram-signal-chats", "", "comma separated telegram chat ids to read signals")

	mtprotoID := fs.Int("mtproto-id", 0, "telegram api id, enables listening as a user account (optional)")
	mtprotoHash := fs.String("mtproto-hash", "", "telegram api hash")
	mtprotoPhone := fs.String("mtproto-phone", "", "telegram account phone number")
	mtprotoSession := fs.String("mtproto-session", "tgsignal.session", "telegram session path")

	parser := fs.String("parser", "text", "signal parser (text, json)")
	usdt := fs.Float64("usdt-per-trade", 10, "margin used per trade")
	leverage := fs.Int("leverage", 10, "leverage used to size trades")
	symbolMap := fs.String("symbol-map", "XAUUSD:XAUUSDT", "comma separated signal:exchange symbol pairs")
	placeTP := fs.Bool("place-tp", true, "place take profit order")
	placeSL := fs.Bool("place-sl", true, "place stop loss order")
	tpIndex := fs.Int("tp-index", 2, "take profit used for the take profit order, starting at 1")
	slOffset := fs.Float64("sl-offset", 10, "stop loss distance from entry when the signal has none")

	dry := fs.Bool("dry", false, "enable dry mode")
	debug := fs.Bool("debug", false, "enable debug mode")

	return &ffcli.Command{
		Name:       "run",
		ShortUsage: "tgsignal run [flags]",
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ff.PlainParser),
			ff.WithEnvVarPrefix("TGSIGNAL"),
		},
		ShortHelp: "run tgsignal bot",
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			if *db == "" {
				return errors.New("missing db path")
			}
			if *dry && !strings.HasSuffix(*db, ".dry.db") {
				*db = fmt.Sprintf("%s.dry.db", strings.TrimSuffix(*db, ".db"))
			}
			if !*dry {
				if *key == "" {
					return errors.New("missing exchange api key")
				}
				if *secret == "" {
					return errors.New("missing exchange api secret")
				}
			}
			if *token == "" {
				return errors.New("missing telegram token")
			}
			if *controlChat == 0 {
				return errors.New("missing telegram control chat")
			}
			chats, err := parseChats(*signalChats)
			if err != nil {
				return err
			}
			if len(chats) == 0 {
				return errors.New("missing telegram signal chats")
			}
			if *mtprotoID != 0 && (*mtprotoHash == "" || *mtprotoPhone == "") {
				return errors.New("missing mtproto hash or phone")
			}
			if *currency == "" {
				return errors.New("missing currency")
			}
			if *usdt <= 0 || *leverage <= 0 {
				return errors.New("usdt per trade and leverage must be positive")
			}
			symbols, err := trade.ParseSymbolMap(*symbolMap)
			if err != nil {
				return err
			}
			bot, err := tgsignal.NewBot(tgsignal.Config{
				DBPath:         *db,
				ExchangeKey:    *key,
				ExchangeSecret: *secret,
				ExchangeURL:    *url,
				Currency:       *currency,
				TelegramToken:  *token,
				ControlChat:    *controlChat,
				OrderChat:      *orderChat,
				ForwardChat:    *forwardChat,
				SignalChats:    chats,
				MTProtoID:      *mtprotoID,
				MTProtoHash:    *mtprotoHash,
				MTProtoPhone:   *mtprotoPhone,
				MTProtoSession: *mtprotoSession,
				Parser:         *parser,
				Trade: trade.Config{
					USDTPerTrade: *usdt,
					Leverage:     *leverage,
					SymbolMap:    symbols,
					PlaceTP:      *placeTP,
					PlaceSL:      *placeSL,
					TPIndex:      *tpIndex,
					SLOffset:     *slOffset,
				},
				Dry:   *dry,
				Debug: *debug,
			})
			if err != nil {
				return err
			}
			return bot.Run(ctx)
		},
	}
}

func parseChats(s string) ([]int64, error) {
	var chats []int64
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q: %w", v, err)
		}
		chats = append(chats, id)
	}
	return chats, nil
}
