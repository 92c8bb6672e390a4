// Package normalize turns raw spreadsheet attributes into short uppercase level codes.
package normalize

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/models"
)

// Warning codes emitted by the normalizer.
const WarnPlaceholder = "PLACEHOLDER_CODE"

const defaultMaxLength = 4

// Rules configures code shaping.
type Rules struct {
	MaxLengths           map[models.Level]int
	Placeholder          string
	EquipmentPlaceholder string
}

// DefaultRules is 4 characters per level with UNK/EQP placeholders.
func DefaultRules() Rules {
	return Rules{
		MaxLengths: map[models.Level]int{
			models.LevelFacility:  defaultMaxLength,
			models.LevelLocation:  defaultMaxLength,
			models.LevelSpace:     defaultMaxLength,
			models.LevelSubspace:  defaultMaxLength,
			models.LevelEquipment: defaultMaxLength,
		},
		Placeholder:          "UNK",
		EquipmentPlaceholder: "EQP",
	}
}

// Normalizer is safe for concurrent use; it holds no mutable state.
type Normalizer struct {
	rules Rules
}

func New(rules Rules) (*Normalizer, error) {
	if rules.MaxLengths == nil {
		rules.MaxLengths = map[models.Level]int{}
	}
	for level, n := range rules.MaxLengths {
		if n < 1 {
			return nil, errors.NewBusinessRuleError("invalid normalizer rules", fmt.Sprintf("max length for %s must be positive", level))
		}
	}
	if rules.Placeholder = Compact(rules.Placeholder); rules.Placeholder == "" {
		rules.Placeholder = "UNK"
	}
	if rules.EquipmentPlaceholder = Compact(rules.EquipmentPlaceholder); rules.EquipmentPlaceholder == "" {
		rules.EquipmentPlaceholder = "EQP"
	}
	return &Normalizer{rules: rules}, nil
}

// MaxLength returns the code length limit for a level.
func (n *Normalizer) MaxLength(level models.Level) int {
	if v, ok := n.rules.MaxLengths[level]; ok {
		return v
	}
	return defaultMaxLength
}

// Placeholder returns the code used for empty input at a level.
func (n *Normalizer) Placeholder(level models.Level) string {
	p := n.rules.Placeholder
	if level == models.LevelEquipment {
		p = n.rules.EquipmentPlaceholder
	}
	return truncate(p, n.MaxLength(level))
}

// Normalize maps raw text to a code. Multi-word text becomes initials (numeric words kept
// whole), single words are kept, and both are cut to the level maximum. Empty input
// yields the placeholder and a warning.
func (n *Normalizer) Normalize(raw string, level models.Level) (string, *models.Warning) {
	tokens := Tokens(raw)
	if len(tokens) == 0 {
		msg := fmt.Sprintf("empty %s attribute replaced by placeholder %s", level, n.Placeholder(level))
		if Canonical(raw) != "" {
			msg = fmt.Sprintf("%s attribute %q has no ASCII letters or digits; using placeholder %s", level, strings.TrimSpace(raw), n.Placeholder(level))
		}
		return n.Placeholder(level), &models.Warning{
			Level:   level,
			Code:    WarnPlaceholder,
			Message: msg,
		}
	}

	var code string
	if len(tokens) == 1 {
		code = tokens[0]
	} else {
		var b strings.Builder
		for _, t := range tokens {
			if isDigits(t) {
				b.WriteString(t)
				continue
			}
			b.WriteByte(t[0])
		}
		code = b.String()
	}
	return truncate(code, n.MaxLength(level)), nil
}

// Canonical is the memo key for raw text: uppercase words of letters and digits in any script,
// joined by single spaces. It ignores case, diacritics, punctuation and whitespace runs, and is
// never truncated. Text without letters or digits has the empty key.
func Canonical(raw string) string {
	words := strings.FieldsFunc(strings.ToUpper(fold(raw)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, " ")
}

// Compact joins the ASCII tokens of raw without separators.
func Compact(raw string) string {
	return strings.Join(Tokens(raw), "")
}

// Tokens splits folded text into uppercase ASCII alphanumeric words.
func Tokens(raw string) []string {
	folded := fold(raw)
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9')
	})
}

// fold strips diacritics and uppercases ASCII letters only.
func fold(raw string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, raw)
	if err != nil {
		out = raw
	}
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r - 'a' + 'A'
		}
		return r
	}, out)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
