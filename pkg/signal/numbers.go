package signal

import (
	"regexp"
	"strconv"
	"strings"
)

var numberRegex = regexp.MustCompile(`\b\d+(?:[._]\d+)?\b`)

// ParseNumbers returns the numbers found in s from left to right.
//
// Underscores follow the chat convention where the suffix overwrites the
// trailing digits of the base: 4872_75 is 4875. If the suffix is as long as
// the base or longer, the suffix alone is the value.
func ParseNumbers(s string) []float64 {
	var nums []float64
	for _, m := range numberRegex.FindAllString(s, -1) {
		base, suffix, ok := strings.Cut(m, "_")
		if !ok {
			nums = append(nums, parseFloat(m))
			continue
		}
		if len(suffix) < len(base) {
			nums = append(nums, parseFloat(base[:len(base)-len(suffix)]+suffix))
			continue
		}
		nums = append(nums, parseFloat(suffix))
	}
	return nums
}

// parseFloat never fails for the digit runs matched above, out of range
// values become infinities.
func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
