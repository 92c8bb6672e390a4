// Package hierarchy assigns per-parent unique codes and assembles hierarchical IDs.
package hierarchy

import (
	"fmt"
	"strconv"

	"assetid-workers/internal/assetid/abbreviation"
	"assetid-workers/internal/assetid/codetable"
	"assetid-workers/internal/assetid/normalize"
	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/models"
)

// WarnCollision marks a code that needed a numeric suffix.
const WarnCollision = "CODE_COLLISION"

const (
	DefaultMaxSuffix   = 999
	DefaultMaxSequence = 9999
)

type Options struct {
	Normalizer *normalize.Normalizer
	// Locations maps well-known building and area names to standard codes.
	Locations   *abbreviation.Vocabulary
	MaxSuffix   int
	MaxSequence int
	Separator   string
}

type Builder struct {
	normalizer  *normalize.Normalizer
	locations   *abbreviation.Vocabulary
	maxSuffix   int
	maxSequence int
	separator   string
}

func New(opts Options) (*Builder, error) {
	n := opts.Normalizer
	if n == nil {
		var err error
		if n, err = normalize.New(normalize.DefaultRules()); err != nil {
			return nil, err
		}
	}
	b := &Builder{
		normalizer:  n,
		locations:   opts.Locations,
		maxSuffix:   opts.MaxSuffix,
		maxSequence: opts.MaxSequence,
		separator:   opts.Separator,
	}
	if b.locations == nil {
		b.locations = abbreviation.DefaultLocations()
	}
	if b.maxSuffix < 2 {
		b.maxSuffix = DefaultMaxSuffix
	}
	if b.maxSequence < 1 {
		b.maxSequence = DefaultMaxSequence
	}
	if b.separator == "" {
		b.separator = "-"
	}
	return b, nil
}

// Root is the empty parent of the facility level.
func (b *Builder) Root() models.HierarchicalID {
	return models.HierarchicalID{Separator: b.separator}
}

// BuildLevel returns the code for raw under parent, memoizing it in tx.
//
// Equal canonical text under the same parent always yields the stored code. A new text whose
// candidate code is already owned by another text gets the smallest free suffix from 2 up.
func (b *Builder) BuildLevel(tx *codetable.Txn, parent models.HierarchicalID, raw string, level models.Level) (string, []models.Warning, error) {
	if level == models.LevelEquipment {
		return "", nil, fmt.Errorf("equipment codes are built with BuildEquipment")
	}

	parentID := parent.String()
	key := normalize.Canonical(raw)

	var warnings []models.Warning
	candidate, w := b.normalizer.Normalize(raw, level)
	source := models.SourceDerived
	if w != nil {
		w.Field = models.LevelField(level)
		warnings = append(warnings, *w)
		source = models.SourcePlaceholder
	}

	if e, ok := tx.Entry(level, parentID, key); ok {
		return e.Code, warnings, nil
	}

	if known, ok := b.locations.LookupKey(key); ok {
		candidate, _ = b.normalizer.Normalize(known, level)
		source = models.SourceKnownTable
	}

	code := candidate
	if owner, taken := tx.Owner(level, parentID, code); taken && owner != key {
		code = ""
		for n := 2; n <= b.maxSuffix; n++ {
			next := candidate + strconv.Itoa(n)
			if _, taken := tx.Owner(level, parentID, next); !taken {
				code = next
				break
			}
		}
		if code == "" {
			return "", warnings, errors.NewCollisionExhaustedError(string(level), parentID, candidate, b.maxSuffix)
		}
		warnings = append(warnings, models.Warning{
			Field:   models.LevelField(level),
			Level:   level,
			Code:    WarnCollision,
			Message: fmt.Sprintf("%s %q collides with %q under %q; assigned %s", level, raw, owner, parentID, code),
		})
	}

	tx.PutEntry(codetable.Entry{
		Level:  level,
		Parent: parentID,
		Key:    key,
		Raw:    raw,
		Code:   code,
		Source: source,
	})
	return code, warnings, nil
}

// BuildEquipment numbers a resolved equipment code under its subspace. The n-th occurrence of a
// description keeps the sequence it was given in an earlier run; new occurrences continue the
// per-(parent, code) counter.
func (b *Builder) BuildEquipment(tx *codetable.Txn, parent models.HierarchicalID, res abbreviation.Resolution) (models.HierarchicalID, error) {
	parentID := parent.String()
	occurrence := tx.NextOccurrence(parentID, res.Code, res.Key)

	seq, ok := tx.Instance(parentID, res.Code, res.Key, occurrence)
	if !ok {
		if next := tx.PeekSequence(parentID, res.Code); next > b.maxSequence {
			return models.HierarchicalID{}, errors.NewCollisionExhaustedError(string(models.LevelEquipment), parentID, res.Code, b.maxSequence)
		}
		seq = tx.ReserveSequence(parentID, res.Code, res.Key, occurrence)
	}
	return parent.Extend(res.Code, strconv.Itoa(seq)), nil
}
