package advisor

import (
	"regexp"
)

// ArithmeticGuard flags generated text that spells out its own arithmetic
// with currency amounts on both sides, e.g. "₹500 x 3 = ₹1500".
type ArithmeticGuard struct {
	re *regexp.Regexp
}

func NewArithmeticGuard(symbol string) *ArithmeticGuard {
	sym := regexp.QuoteMeta(symbol)
	return &ArithmeticGuard{
		re: regexp.MustCompile(`(?i)` + sym + `[\d,]+\s*[×x*+\-÷/]\s*\d+\s*[=≈]\s*` + sym + `[\d,]+`),
	}
}

// Suspicious reports whether text contains an explicit currency calculation.
func (g *ArithmeticGuard) Suspicious(text string) bool {
	return g.re.MatchString(text)
}
