package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFloorToStep(t *testing.T) {
	tests := []struct {
		qty  string
		step string
		want string
	}{
		{qty: "0.02052", step: "0.001", want: "0.02"},
		{qty: "0.0209", step: "0.001", want: "0.02"},
		{qty: "1.99", step: "1", want: "1"},
		{qty: "12.345", step: "0.05", want: "12.3"},
		{qty: "0.5", step: "0", want: "0.5"},
	}
	for _, tt := range tests {
		got := FloorToStep(toDecimal(tt.qty), toDecimal(tt.step))
		if !got.Equal(toDecimal(tt.want)) {
			t.Errorf("%s/%s: want %s, got %s", tt.qty, tt.step, tt.want, got)
		}
	}
}

func toDecimal(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}
