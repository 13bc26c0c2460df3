package signal

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Close returns the side used to exit a position opened with s.
func (s Side) Close() Side {
	if s == Sell {
		return Buy
	}
	return Sell
}

type Signal struct {
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Entry       float64   `json:"entry"`
	TakeProfits []float64 `json:"take_profits"`
	StopLoss    *float64  `json:"stop_loss,omitempty"`
}

type Parser interface {
	Parse(text string) (*Signal, error)
}

// ErrNoSignal is wrapped by parse errors of messages without a trade.
var ErrNoSignal = errors.New("no signal")

var (
	symbolRegex    = regexp.MustCompile(`(?i)#?([A-Z0-9]{3,10})`)
	sideRegex      = regexp.MustCompile(`(?i)\b(BUY|SELL|LONG|SHORT|LIMIT BUY|LIMIT SELL)\b`)
	entryLineRegex = regexp.MustCompile(`(?i)\b(ENTRY|ENTRIES|ENT|PRICE|BUY AT|SELL AT|LIMIT)\b`)
	tpRegex        = regexp.MustCompile(`(?i)\bTP\s*(?:\d\b)?\s*[:\s-]*\s*([0-9]+(?:\.[0-9]+)?)`)
	slRegex        = regexp.MustCompile(`(?i)\bSL\s*[:\s-]*\s*([0-9]+(?:\.[0-9]+)?)`)
)

type parser struct{}

func NewParser() Parser {
	return parser{}
}

func (parser) Parse(text string) (*Signal, error) {
	return Parse(text)
}

// fields accumulates what a scan over the message lines found.
type fields struct {
	symbol   string
	side     Side
	entries  []float64
	tps      []float64
	stopLoss *float64
}

// Parse extracts a trade signal from free-form chat text. The error wraps
// ErrNoSignal when no symbol, side or entry price can be found.
func Parse(text string) (*Signal, error) {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil, fmt.Errorf("signal: empty message: %w", ErrNoSignal)
	}

	var f fields
	for _, line := range lines {
		f.header(line)
	}
	if f.symbol == "" {
		return nil, fmt.Errorf("signal: couldn't parse symbol: %w", ErrNoSignal)
	}
	if f.side == "" {
		return nil, fmt.Errorf("signal: couldn't parse side: %w", ErrNoSignal)
	}
	for i, line := range lines {
		f.prices(i, line)
	}

	// Fallback to the second line when no entry was found
	if len(f.entries) == 0 && len(lines) > 1 {
		f.entries = append(f.entries, ParseNumbers(lines[1])...)
	}
	if len(f.entries) == 0 {
		return nil, fmt.Errorf("signal: couldn't parse entry: %w", ErrNoSignal)
	}

	return &Signal{
		Symbol:      f.symbol,
		Side:        f.side,
		Entry:       SafestEntry(f.side, f.entries),
		TakeProfits: f.tps,
		StopLoss:    f.stopLoss,
	}, nil
}

// header applies the first-match rules for symbol and side.
func (f *fields) header(line string) {
	if f.symbol == "" {
		if m := symbolRegex.FindStringSubmatch(line); m != nil {
			f.symbol = strings.ToUpper(m[1])
		}
	}
	if f.side == "" {
		if m := sideRegex.FindStringSubmatch(line); m != nil {
			raw := strings.ToUpper(m[1])
			if raw == "LONG" || strings.Contains(raw, "BUY") {
				f.side = Buy
			} else {
				f.side = Sell
			}
		}
	}
}

// prices collects entry candidates and take profits in order and keeps the
// last stop loss seen.
func (f *fields) prices(i int, line string) {
	switch {
	case entryLineRegex.MatchString(line):
		f.entries = append(f.entries, ParseNumbers(line)...)
	case i == 0:
		// Symbol digits must not be read as prices
		f.entries = append(f.entries, ParseNumbers(strings.ReplaceAll(line, f.symbol, ""))...)
	}
	if m := tpRegex.FindStringSubmatch(line); m != nil {
		f.tps = append(f.tps, parseFloat(m[1]))
	}
	if m := slRegex.FindStringSubmatch(line); m != nil {
		sl := parseFloat(m[1])
		f.stopLoss = &sl
	}
}

// SafestEntry picks the highest candidate for sells and the lowest for buys.
func SafestEntry(side Side, candidates []float64) float64 {
	entry := candidates[0]
	for _, c := range candidates[1:] {
		if side == Sell && c > entry || side != Sell && c < entry {
			entry = c
		}
	}
	return entry
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.FieldsFunc(text, isLineBreak) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
		return true
	}
	return false
}
