// Package destination finds the receiving account in receipt text and checks
// it against the accepted financial entities.
package destination

import (
	"regexp"
	"strings"

	"github.com/blnkfinance/payrec/internal/ocrtext"
)

// sectionSpan bounds how many lines after an anchor are read as destination data.
const sectionSpan = 6

var (
	destinationAnchors = []string{
		"destinatario", "destino", "beneficiario", "titular", "para",
		"receptor", "cuenta destino", "a nombre de", "le transferiste a",
	}
	originAnchors = []string{
		"origen", "remitente", "ordenante", "pagador", "emisor", "cuenta origen",
		"monto", "importe", "fecha", "concepto", "motivo", "banco",
	}
	negativeTokens = []string{"cbu", "cvu", "alias"}

	aliasPattern      = regexp.MustCompile(`(?:^|[^a-z0-9.])([a-z][a-z0-9-]*\.[a-z][a-z0-9-]*\.[a-z][a-z0-9-]*)(?:$|[^a-z0-9.])`)
	accountPattern    = regexp.MustCompile(`(?:^|\D)(\d{22})(?:\D|$)`)
	accountSeparators = strings.NewReplacer(" ", "", "-", "", ".", "")
	holderNamePattern = regexp.MustCompile(`^[A-Za-z ]{5,60}$`)
)

// Candidate is what the extractor believes identifies the receiving account.
type Candidate struct {
	Alias                string   `json:"alias,omitempty"`
	CBU                  string   `json:"cbu,omitempty"`
	CVU                  string   `json:"cvu,omitempty"`
	PrimaryHolderName    string   `json:"primary_holder_name,omitempty"`
	AlternateHolderNames []string `json:"alternate_holder_names,omitempty"`
}

// Empty reports whether nothing at all was extracted.
func (c Candidate) Empty() bool {
	return c.Alias == "" && c.CBU == "" && c.CVU == "" && c.PrimaryHolderName == "" && len(c.AlternateHolderNames) == 0
}

// Extract walks the raw OCR text line by line. Account numbers are only read
// inside a destination section so the sender's account is never captured.
func Extract(rawText string) Candidate {
	var c Candidate
	var names []string

	inSection := false
	remaining := 0
	for _, line := range ocrtext.SplitLines(rawText) {
		normalized := ocrtext.NormalizeLine(line)
		if normalized == "" {
			continue
		}

		if hasKeyword(normalized, destinationAnchors) {
			inSection = true
			remaining = sectionSpan
			if value, ok := valueAfterLabel(line); ok {
				names = c.collect(value, names)
			}
			continue
		}

		if !inSection {
			continue
		}
		if hasKeyword(normalized, originAnchors) || remaining == 0 {
			inSection = false
			continue
		}
		remaining--
		names = c.collect(line, names)
	}

	if len(names) == 0 {
		names = allCapsNames(rawText)
	}
	if len(names) > 0 {
		c.PrimaryHolderName = names[0]
		c.AlternateHolderNames = names[1:]
	}
	return c
}

// collect reads one in-section fragment into the candidate and returns the
// holder names seen so far.
func (c *Candidate) collect(fragment string, names []string) []string {
	normalized := ocrtext.NormalizeLine(fragment)

	if c.Alias == "" {
		if m := aliasPattern.FindStringSubmatch(normalized); m != nil {
			c.Alias = m[1]
		}
	}

	if account := findAccountNumber(normalized); account != "" {
		if strings.HasPrefix(account, "000") {
			if c.CVU == "" {
				c.CVU = account
			}
		} else if c.CBU == "" {
			c.CBU = account
		}
	}

	if name, ok := holderName(fragment); ok {
		names = append(names, name)
	}
	return names
}

func findAccountNumber(line string) string {
	if m := accountPattern.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	if m := accountPattern.FindStringSubmatch(accountSeparators.Replace(line)); m != nil {
		return m[1]
	}
	return ""
}

func holderName(fragment string) (string, bool) {
	name := strings.Join(strings.Fields(ocrtext.StripAccents(fragment)), " ")
	if !holderNamePattern.MatchString(name) || len(strings.Fields(name)) < 2 {
		return "", false
	}
	if hasKeyword(strings.ToLower(name), negativeTokens) {
		return "", false
	}
	return name, true
}

// allCapsNames is the fallback used when no destination section yielded a name.
func allCapsNames(rawText string) []string {
	var names []string
	for _, line := range ocrtext.SplitLines(rawText) {
		name, ok := holderName(line)
		if !ok || name != strings.ToUpper(name) {
			continue
		}
		lower := strings.ToLower(name)
		if hasKeyword(lower, destinationAnchors) || hasKeyword(lower, originAnchors) {
			continue
		}
		names = append(names, name)
	}
	return names
}

// valueAfterLabel returns the text after "label:" on an anchor line.
func valueAfterLabel(line string) (string, bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", false
	}
	value := strings.TrimSpace(line[idx+1:])
	return value, value != ""
}

// hasKeyword matches whole words or phrases of an already normalized line.
func hasKeyword(normalized string, keywords []string) bool {
	words := strings.FieldsFunc(normalized, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	padded := " " + strings.Join(words, " ") + " "
	for _, kw := range keywords {
		if strings.Contains(padded, " "+kw+" ") {
			return true
		}
	}
	return false
}
