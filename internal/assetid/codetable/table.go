// Package codetable holds the memo of raw attribute → code assignments for a generation run.
//
// Entries are scoped by level and parent ID. Mutations made while processing a row are staged
// in a Txn and only become visible when the row commits, so a failed or cancelled row leaves the
// table untouched.
package codetable

import (
	"fmt"
	"sort"
	"sync"

	"assetid-workers/internal/models"
)

// SnapshotVersion is written into every exported snapshot.
const SnapshotVersion = 1

// Entry is one memoized code at a level under a parent.
type Entry struct {
	Level  models.Level      `json:"level"`
	Parent string            `json:"parent"`
	Key    string            `json:"key"`
	Raw    string            `json:"raw"`
	Code   string            `json:"code"`
	Source models.CodeSource `json:"source"`
}

// Abbreviation is a cached equipment description → code resolution.
type Abbreviation struct {
	Key    string            `json:"key"`
	Raw    string            `json:"raw"`
	Code   string            `json:"code"`
	Source models.CodeSource `json:"source"`
}

// Instance pins one numbered equipment item: the n-th occurrence of a description under a
// parent with a given code.
type Instance struct {
	Parent     string `json:"parent"`
	Code       string `json:"code"`
	Key        string `json:"key"`
	Occurrence int    `json:"occurrence"`
	Sequence   int    `json:"sequence"`
}

// Snapshot is the serializable form of a table.
type Snapshot struct {
	Version       int            `json:"version"`
	Entries       []Entry        `json:"entries"`
	Abbreviations []Abbreviation `json:"abbreviations,omitempty"`
	Instances     []Instance     `json:"instances,omitempty"`
}

type entryKey struct {
	level  models.Level
	parent string
	key    string
}

type codeKey struct {
	level  models.Level
	parent string
	code   string
}

type seqKey struct {
	parent string
	code   string
}

type instanceKey struct {
	parent     string
	code       string
	key        string
	occurrence int
}

// CodeTable is safe for concurrent use. Occurrence counters are scoped to one run and are
// neither exported nor carried over by Clone.
type CodeTable struct {
	mu            sync.RWMutex
	entries       map[entryKey]Entry
	owners        map[codeKey]string
	abbreviations map[string]Abbreviation
	instances     map[instanceKey]int
	sequences     map[seqKey]int
	occurrences   map[instanceKey]int
}

func New() *CodeTable {
	return &CodeTable{
		entries:       make(map[entryKey]Entry),
		owners:        make(map[codeKey]string),
		abbreviations: make(map[string]Abbreviation),
		instances:     make(map[instanceKey]int),
		sequences:     make(map[seqKey]int),
		occurrences:   make(map[instanceKey]int),
	}
}

// FromSnapshot rebuilds a table, rejecting snapshots that break per-parent uniqueness.
func FromSnapshot(s Snapshot) (*CodeTable, error) {
	if s.Version != 0 && s.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported code table version %d", s.Version)
	}

	t := New()
	for _, e := range s.Entries {
		if !e.Level.Valid() {
			return nil, fmt.Errorf("entry %q: unknown level %q", e.Key, e.Level)
		}
		if e.Code == "" {
			return nil, fmt.Errorf("entry %q at %s: empty code", e.Key, e.Level)
		}
		ek := entryKey{e.Level, e.Parent, e.Key}
		if _, dup := t.entries[ek]; dup {
			return nil, fmt.Errorf("entry %q at %s under %q: duplicate", e.Key, e.Level, e.Parent)
		}
		ck := codeKey{e.Level, e.Parent, e.Code}
		if owner, taken := t.owners[ck]; taken {
			return nil, fmt.Errorf("code %s at %s under %q: assigned to both %q and %q", e.Code, e.Level, e.Parent, owner, e.Key)
		}
		t.entries[ek] = e
		t.owners[ck] = e.Key
	}
	for _, a := range s.Abbreviations {
		if a.Code == "" {
			return nil, fmt.Errorf("abbreviation %q: empty code", a.Key)
		}
		t.abbreviations[a.Key] = a
	}
	for _, in := range s.Instances {
		if in.Sequence < 1 || in.Occurrence < 1 {
			return nil, fmt.Errorf("instance %s/%s/%q: sequence and occurrence must be positive", in.Parent, in.Code, in.Key)
		}
		t.instances[instanceKey{in.Parent, in.Code, in.Key, in.Occurrence}] = in.Sequence
		sk := seqKey{in.Parent, in.Code}
		if in.Sequence > t.sequences[sk] {
			t.sequences[sk] = in.Sequence
		}
	}
	return t, nil
}

// Snapshot exports the table in a deterministic order.
func (t *CodeTable) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{Version: SnapshotVersion}

	s.Entries = make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		s.Entries = append(s.Entries, e)
	}
	sort.Slice(s.Entries, func(i, j int) bool {
		a, b := s.Entries[i], s.Entries[j]
		if a.Level.Depth() != b.Level.Depth() {
			return a.Level.Depth() < b.Level.Depth()
		}
		if a.Parent != b.Parent {
			return a.Parent < b.Parent
		}
		return a.Code < b.Code
	})

	for _, a := range t.abbreviations {
		s.Abbreviations = append(s.Abbreviations, a)
	}
	sort.Slice(s.Abbreviations, func(i, j int) bool { return s.Abbreviations[i].Key < s.Abbreviations[j].Key })

	for k, seq := range t.instances {
		s.Instances = append(s.Instances, Instance{
			Parent: k.parent, Code: k.code, Key: k.key, Occurrence: k.occurrence, Sequence: seq,
		})
	}
	sort.Slice(s.Instances, func(i, j int) bool {
		a, b := s.Instances[i], s.Instances[j]
		if a.Parent != b.Parent {
			return a.Parent < b.Parent
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Sequence < b.Sequence
	})

	return s
}

// Clone copies the persistent state. Run-scoped occurrence counters start empty.
func (t *CodeTable) Clone() *CodeTable {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c := New()
	for k, v := range t.entries {
		c.entries[k] = v
	}
	for k, v := range t.owners {
		c.owners[k] = v
	}
	for k, v := range t.abbreviations {
		c.abbreviations[k] = v
	}
	for k, v := range t.instances {
		c.instances[k] = v
	}
	for k, v := range t.sequences {
		c.sequences[k] = v
	}
	return c
}

// Len is the number of level entries.
func (t *CodeTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Lookup returns the code memoized for a canonical key under a parent.
func (t *CodeTable) Lookup(level models.Level, parent, key string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[entryKey{level, parent, key}]
	return e, ok
}

// Abbreviation returns a cached equipment resolution.
func (t *CodeTable) Abbreviation(key string) (Abbreviation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.abbreviations[key]
	return a, ok
}

// Entries lists entries of one level, ordered by parent then code.
func (t *CodeTable) Entries(level models.Level) []Entry {
	var out []Entry
	for _, e := range t.Snapshot().Entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Begin opens a staging area for one row.
func (t *CodeTable) Begin() *Txn {
	return &Txn{
		table:         t,
		entries:       make(map[entryKey]Entry),
		owners:        make(map[codeKey]string),
		abbreviations: make(map[string]Abbreviation),
		instances:     make(map[instanceKey]int),
		sequences:     make(map[seqKey]int),
		occurrences:   make(map[instanceKey]int),
	}
}
