package json

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/igolaizola/tgsignal/pkg/signal"
)

// Parser reads signals already structured as JSON, as published by bridges
// that forward signals between chats.
type Parser struct{}

type jsonSignal struct {
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Entry       *float64  `json:"entry"`
	TakeProfits []float64 `json:"take_profits"`
	StopLoss    *float64  `json:"stop_loss"`
}

func (p Parser) Parse(text string) (*signal.Signal, error) {
	var js jsonSignal
	if err := json.Unmarshal([]byte(text), &js); err != nil {
		return nil, fmt.Errorf("json: couldn't unmarshal %q (%v): %w", text, err, signal.ErrNoSignal)
	}
	if js.Symbol == "" {
		return nil, fmt.Errorf("json: missing symbol: %w", signal.ErrNoSignal)
	}
	if js.Entry == nil {
		return nil, fmt.Errorf("json: missing entry: %w", signal.ErrNoSignal)
	}
	var side signal.Side
	switch strings.ToUpper(js.Side) {
	case "BUY", "LONG":
		side = signal.Buy
	case "SELL", "SHORT":
		side = signal.Sell
	default:
		return nil, fmt.Errorf("json: invalid side %q: %w", js.Side, signal.ErrNoSignal)
	}
	return &signal.Signal{
		Symbol:      strings.ToUpper(js.Symbol),
		Side:        side,
		Entry:       *js.Entry,
		TakeProfits: js.TakeProfits,
		StopLoss:    js.StopLoss,
	}, nil
}
