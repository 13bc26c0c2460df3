package trade

import (
	"fmt"
	"strings"
)

// ParseSymbolMap parses a comma separated list of from:to symbol pairs such
// as "XAUUSD:XAUUSDT,GOLD:XAUUSDT".
func ParseSymbolMap(s string) (map[string]string, error) {
	m := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		from, to, ok := strings.Cut(pair, ":")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("trade: invalid symbol pair %q", pair)
		}
		m[strings.ToUpper(from)] = strings.ToUpper(to)
	}
	return m, nil
}
