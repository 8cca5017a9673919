package ocrtext

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	keywordWindow     = 50
	leadingTextRatio  = 0.3
	scoreCurrency     = 2
	scoreStrongWord   = 3
	scoreNoTrapWord   = 2
	scoreLeadingText  = 1
	defaultMinimumAmt = 100
)

// amountPattern requires grouped thousands so dates, phone numbers and account
// numbers never qualify. Decimals may carry one or two digits.
var amountPattern = regexp.MustCompile(`(\$\s?)?(\d{1,3}(?:[.,]\d{3})+)(?:[.,](\d{1,2}))?`)

var (
	strongKeywords = []string{"total", "importe", "monto", "pesos", "ars", "valor"}
	trapKeywords   = []string{"cbu", "cvu", "cuit", "cuil", "referencia", "codigo", "alias", "operacion"}
)

type AmountOptions struct {
	MinAmount decimal.Decimal
}

func DefaultAmountOptions() AmountOptions {
	return AmountOptions{MinAmount: decimal.NewFromInt(defaultMinimumAmt)}
}

// AmountCandidate is a scored monetary token found in the text.
type AmountCandidate struct {
	Raw    string          `json:"raw"`
	Value  decimal.Decimal `json:"value"`
	Offset int             `json:"offset"`
	Score  int             `json:"score"`
}

// ExtractAmount returns the value of the best scoring candidate. Ties keep the
// earliest candidate.
func ExtractAmount(normalized string, opts AmountOptions) (decimal.Decimal, bool) {
	var best *AmountCandidate
	candidates := Candidates(normalized, opts)
	for i := range candidates {
		if best == nil || candidates[i].Score > best.Score {
			best = &candidates[i]
		}
	}
	if best == nil {
		return decimal.Zero, false
	}
	return best.Value, true
}

// Candidates lists every qualifying amount in scan order with its score.
func Candidates(normalized string, opts AmountOptions) []AmountCandidate {
	var out []AmountCandidate
	for _, m := range amountPattern.FindAllStringSubmatchIndex(normalized, -1) {
		start, end := m[0], m[1]
		if !isStandalone(normalized, start, end) {
			continue
		}

		value, err := parseAmount(normalized[m[4]:m[5]], submatch(normalized, m, 6))
		if err != nil || value.LessThan(opts.MinAmount) {
			continue
		}

		out = append(out, AmountCandidate{
			Raw:    strings.TrimSpace(normalized[start:end]),
			Value:  value,
			Offset: start,
			Score:  score(normalized, start, end, m[2] >= 0),
		})
	}
	return out
}

func score(text string, start, end int, hasCurrency bool) int {
	s := 0
	if hasCurrency {
		s += scoreCurrency
	}

	window := text[max(0, start-keywordWindow):min(len(text), end+keywordWindow)]
	if containsAny(window, strongKeywords) {
		s += scoreStrongWord
	}
	if !containsAny(window, trapKeywords) {
		s += scoreNoTrapWord
	}
	if float64(start) < float64(len(text))*leadingTextRatio {
		s += scoreLeadingText
	}
	return s
}

// isStandalone rejects matches that are slices of a longer number, on either
// side, so a token is never read with part of its digits cut off.
func isStandalone(text string, start, end int) bool {
	if start > 0 && isDigitOrSeparator(text[start-1]) {
		return false
	}
	if end < len(text) && isDigit(text[end]) {
		return false
	}
	if end+1 < len(text) && isSeparator(text[end]) && isDigit(text[end+1]) {
		return false
	}
	return true
}

func parseAmount(units, cents string) (decimal.Decimal, error) {
	units = strings.NewReplacer(".", "", ",", "").Replace(units)
	if cents != "" {
		units += "." + cents
	}
	return decimal.NewFromString(units)
}

func submatch(text string, m []int, idx int) string {
	if m[idx] < 0 {
		return ""
	}
	return text[m[idx]:m[idx+1]]
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isSeparator(b byte) bool {
	return b == '.' || b == ','
}

func isDigitOrSeparator(b byte) bool {
	return isDigit(b) || isSeparator(b)
}
