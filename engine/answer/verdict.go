package answer

import "strings"

// Verdict is the judge's classification of retrieved context.
type Verdict string

const (
	VerdictSufficient                Verdict = "SUFFICIENT"
	VerdictInsufficientButRelevant   Verdict = "INSUFFICIENT_BUT_RELEVANT"
	VerdictInsufficientAndIrrelevant Verdict = "INSUFFICIENT_AND_IRRELEVANT"
)

func (v Verdict) String() string {
	return string(v)
}

// Valid reports whether v is one of the three known verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictSufficient, VerdictInsufficientButRelevant, VerdictInsufficientAndIrrelevant:
		return true
	default:
		return false
	}
}

// ParseVerdict normalizes raw judge output: surrounding whitespace is trimmed,
// the text is uppercased, and surrounding double quotes then single quotes
// are stripped. Anything that does not then name a verdict resolves to
// VerdictInsufficientAndIrrelevant with ok=false.
func ParseVerdict(raw string) (verdict Verdict, ok bool) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.Trim(normalized, `"`)
	normalized = strings.Trim(normalized, `'`)
	v := Verdict(normalized)
	if !v.Valid() {
		return VerdictInsufficientAndIrrelevant, false
	}
	return v, true
}
