package abbreviation

import (
	"sort"
	"sync"

	"assetid-workers/internal/assetid/normalize"
)

// Term is one vocabulary line: a description and its standard code.
type Term struct {
	Text string `json:"text" yaml:"text"`
	Code string `json:"code" yaml:"code"`
}

// Vocabulary maps canonical descriptions to standard codes. Safe for concurrent use.
type Vocabulary struct {
	mu    sync.RWMutex
	terms map[string]Term
}

// NewVocabulary builds a vocabulary from text → code pairs. Blank texts or codes are skipped.
func NewVocabulary(pairs map[string]string) *Vocabulary {
	v := &Vocabulary{terms: make(map[string]Term, len(pairs))}
	for text, code := range pairs {
		v.Add(text, code)
	}
	return v
}

// Add inserts or replaces a term and reports whether it was usable.
func (v *Vocabulary) Add(text, code string) bool {
	key := normalize.Canonical(text)
	code = normalize.Compact(code)
	if key == "" || code == "" {
		return false
	}
	v.mu.Lock()
	v.terms[key] = Term{Text: text, Code: code}
	v.mu.Unlock()
	return true
}

// Lookup matches text ignoring case, punctuation and spacing.
func (v *Vocabulary) Lookup(text string) (string, bool) {
	if v == nil {
		return "", false
	}
	return v.LookupKey(normalize.Canonical(text))
}

// LookupKey matches an already canonical key.
func (v *Vocabulary) LookupKey(key string) (string, bool) {
	if v == nil || key == "" {
		return "", false
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	t, ok := v.terms[key]
	return t.Code, ok
}

// Merge returns a new vocabulary holding v's terms overridden by other's.
func (v *Vocabulary) Merge(other *Vocabulary) *Vocabulary {
	out := &Vocabulary{terms: make(map[string]Term)}
	for _, src := range []*Vocabulary{v, other} {
		if src == nil {
			continue
		}
		src.mu.RLock()
		for k, t := range src.terms {
			out.terms[k] = t
		}
		src.mu.RUnlock()
	}
	return out
}

func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.terms)
}

// Terms lists the vocabulary sorted by text.
func (v *Vocabulary) Terms() []Term {
	if v == nil {
		return nil
	}
	v.mu.RLock()
	out := make([]Term, 0, len(v.terms))
	for _, t := range v.terms {
		out = append(out, t)
	}
	v.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out
}

var equipmentTerms = map[string]string{
	"exhaust fan":                  "EXF",
	"supply fan":                   "SF",
	"air handling unit":            "AHU",
	"fan coil unit":                "FCU",
	"split ac":                     "SAC",
	"package unit":                 "PKU",
	"cooling tower":                "CT",
	"chiller":                      "CHR",
	"ductless split unit":          "DSU",
	"electrical lighting fixtures": "ELF",
	"light fixture":                "LF",
	"distribution board":           "DB",
	"transformer":                  "TRF",
	"ups":                          "UPS",
	"generator":                    "GEN",
	"water heater":                 "WH",
	"plumbing accessories":         "PLB",
	"sanitary wares":               "SNW",
	"sanitary wares & fittings":    "SNW",
	"water pump":                   "WP",
	"water tank":                   "WT",
	"fire alarm":                   "FA",
	"fire extinguisher":            "FE",
	"sprinkler":                    "SPK",
	"elevator":                     "ELV",
	"escalator":                    "ESC",
	"cctv":                         "CCTV",
	"access control":               "ACC",
	"hvac":                         "HVC",
	"electrical":                   "ELE",
	"plumbing":                     "PLB",
	"fire protection":              "FPS",
	"security":                     "SEC",
	"appliances":                   "APP",
	"none":                         "EQP",
}

var locationTerms = map[string]string{
	"compound management office": "CMO",
	"management office":          "MGO",
	"food court":                 "FC",
	"ladies gym area":            "LGA",
	"gents gym area":             "GGA",
	"gameplay area":              "GPA",
	"kids play area":             "KPA",
	"cafeteria":                  "CAF",
	"display area":               "DSP",
}

// DefaultEquipment is the built-in equipment and system vocabulary.
func DefaultEquipment() *Vocabulary { return NewVocabulary(equipmentTerms) }

// DefaultLocations is the built-in vocabulary for buildings and areas.
func DefaultLocations() *Vocabulary { return NewVocabulary(locationTerms) }
