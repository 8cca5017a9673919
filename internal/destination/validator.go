package destination

import (
	"strings"

	"github.com/blnkfinance/payrec/internal/ocrtext"
	"github.com/blnkfinance/payrec/model"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

const StrategyPermissive = "permissive"

// Matcher is one way of recognising an entity in a receipt. Matchers are
// evaluated in order; the first one that accepts any entity wins.
type Matcher interface {
	Name() string
	Match(c Candidate, normalizedText string, e model.FinancialEntity) bool
}

// DefaultMatchers is the strict priority order used for validation.
var DefaultMatchers = []Matcher{
	aliasMatcher{},
	cbuMatcher{},
	cvuMatcher{},
	holderNameMatcher{},
	keywordMatcher{},
	aliasInTextMatcher{},
}

// Result carries the outcome and, on rejection, the candidate for audit.
type Result struct {
	Valid     bool                   `json:"valid"`
	Entity    *model.FinancialEntity `json:"entity,omitempty"`
	Strategy  string                 `json:"strategy,omitempty"`
	Candidate Candidate              `json:"candidate"`
	// NearestAlias is the registered alias closest to a rejected candidate
	// alias, when it is within maxAliasDistance edits.
	NearestAlias string `json:"nearest_alias,omitempty"`
}

const maxAliasDistance = 3

// Validate checks the candidate against the active entities. With no active
// entities configured every receipt is accepted.
func Validate(c Candidate, normalizedText string, entities []model.FinancialEntity) Result {
	return ValidateWith(DefaultMatchers, c, normalizedText, entities)
}

func ValidateWith(matchers []Matcher, c Candidate, normalizedText string, entities []model.FinancialEntity) Result {
	active := make([]model.FinancialEntity, 0, len(entities))
	for _, e := range entities {
		if e.Active {
			active = append(active, e)
		}
	}
	if len(active) == 0 {
		return Result{Valid: true, Strategy: StrategyPermissive, Candidate: c}
	}

	for _, m := range matchers {
		for i := range active {
			if m.Match(c, normalizedText, active[i]) {
				return Result{Valid: true, Entity: &active[i], Strategy: m.Name(), Candidate: c}
			}
		}
	}
	return Result{Valid: false, Candidate: c, NearestAlias: nearestAlias(c.Alias, active)}
}

// nearestAlias finds the registered alias with the smallest edit distance to
// alias. It never accepts a receipt; it only explains a rejection that is
// likely an OCR misread.
func nearestAlias(alias string, entities []model.FinancialEntity) string {
	alias = normalizeAlias(alias)
	if alias == "" {
		return ""
	}

	best, bestDistance := "", maxAliasDistance+1
	for _, e := range entities {
		registered := normalizeAlias(e.Alias)
		if registered == "" {
			continue
		}
		d := levenshtein.DistanceForStrings([]rune(alias), []rune(registered), levenshtein.DefaultOptions)
		if d < bestDistance {
			best, bestDistance = registered, d
		}
	}
	return best
}

type aliasMatcher struct{}

func (aliasMatcher) Name() string { return "alias" }

func (aliasMatcher) Match(c Candidate, _ string, e model.FinancialEntity) bool {
	alias := normalizeAlias(e.Alias)
	return alias != "" && alias == normalizeAlias(c.Alias)
}

type cbuMatcher struct{}

func (cbuMatcher) Name() string { return "cbu" }

func (cbuMatcher) Match(c Candidate, _ string, e model.FinancialEntity) bool {
	account := digitsOnly(e.AccountNumber)
	return account != "" && account == c.CBU
}

type cvuMatcher struct{}

func (cvuMatcher) Name() string { return "cvu" }

func (cvuMatcher) Match(c Candidate, _ string, e model.FinancialEntity) bool {
	account := digitsOnly(e.AccountNumber)
	return account != "" && account == c.CVU
}

// holderNameMatcher needs every word longer than two letters of the registered
// holder to appear in one place: the primary name, an alternate, or the text.
type holderNameMatcher struct{}

func (holderNameMatcher) Name() string { return "holder_name" }

func (holderNameMatcher) Match(c Candidate, normalizedText string, e model.FinancialEntity) bool {
	words := significantWords(e.AccountHolderName)
	if len(words) == 0 {
		return false
	}

	haystacks := make([]string, 0, len(c.AlternateHolderNames)+2)
	if c.PrimaryHolderName != "" {
		haystacks = append(haystacks, ocrtext.NormalizeLine(c.PrimaryHolderName))
	}
	for _, alt := range c.AlternateHolderNames {
		haystacks = append(haystacks, ocrtext.NormalizeLine(alt))
	}
	haystacks = append(haystacks, normalizedText)

	for _, h := range haystacks {
		if containsAll(h, words) {
			return true
		}
	}
	return false
}

type keywordMatcher struct{}

func (keywordMatcher) Name() string { return "keyword" }

func (keywordMatcher) Match(_ Candidate, normalizedText string, e model.FinancialEntity) bool {
	for _, kw := range e.Keywords {
		kw = ocrtext.NormalizeLine(kw)
		if kw != "" && strings.Contains(normalizedText, kw) {
			return true
		}
	}
	return false
}

// aliasInTextMatcher recovers aliases the extractor missed, e.g. outside a section.
type aliasInTextMatcher struct{}

func (aliasInTextMatcher) Name() string { return "alias_in_text" }

func (aliasInTextMatcher) Match(_ Candidate, normalizedText string, e model.FinancialEntity) bool {
	alias := normalizeAlias(e.Alias)
	return alias != "" && strings.Contains(normalizedText, alias)
}

func significantWords(name string) []string {
	var out []string
	for _, w := range strings.Fields(ocrtext.NormalizeLine(name)) {
		if len(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}

func containsAll(haystack string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(haystack, w) {
			return false
		}
	}
	return true
}

func normalizeAlias(alias string) string {
	return strings.ToLower(strings.TrimSpace(alias))
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
