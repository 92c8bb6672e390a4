package codetable

import "assetid-workers/internal/models"

// Txn stages the mutations of a single row. Reads see staged values first, then the table.
// A Txn is used by one goroutine; Commit takes the table's write lock.
type Txn struct {
	table         *CodeTable
	entries       map[entryKey]Entry
	owners        map[codeKey]string
	abbreviations map[string]Abbreviation
	instances     map[instanceKey]int
	sequences     map[seqKey]int
	occurrences   map[instanceKey]int
	done          bool
}

// Entry returns the memoized entry for a canonical key under a parent.
func (x *Txn) Entry(level models.Level, parent, key string) (Entry, bool) {
	ek := entryKey{level, parent, key}
	if e, ok := x.entries[ek]; ok {
		return e, true
	}
	return x.table.Lookup(level, parent, key)
}

// Owner returns the canonical key that owns a code under a parent.
func (x *Txn) Owner(level models.Level, parent, code string) (string, bool) {
	ck := codeKey{level, parent, code}
	if k, ok := x.owners[ck]; ok {
		return k, true
	}
	x.table.mu.RLock()
	defer x.table.mu.RUnlock()
	k, ok := x.table.owners[ck]
	return k, ok
}

// PutEntry stages a new entry and claims its code under the parent.
func (x *Txn) PutEntry(e Entry) {
	x.entries[entryKey{e.Level, e.Parent, e.Key}] = e
	x.owners[codeKey{e.Level, e.Parent, e.Code}] = e.Key
}

// Abbreviation returns a staged or committed equipment resolution.
func (x *Txn) Abbreviation(key string) (Abbreviation, bool) {
	if a, ok := x.abbreviations[key]; ok {
		return a, true
	}
	return x.table.Abbreviation(key)
}

// PutAbbreviation stages an equipment resolution.
func (x *Txn) PutAbbreviation(a Abbreviation) {
	x.abbreviations[a.Key] = a
}

// NextOccurrence counts one more appearance of a description under (parent, code) in this run.
func (x *Txn) NextOccurrence(parent, code, key string) int {
	ik := instanceKey{parent: parent, code: code, key: key}
	n, ok := x.occurrences[ik]
	if !ok {
		x.table.mu.RLock()
		n = x.table.occurrences[ik]
		x.table.mu.RUnlock()
	}
	n++
	x.occurrences[ik] = n
	return n
}

// Instance returns the sequence pinned to an equipment occurrence.
func (x *Txn) Instance(parent, code, key string, occurrence int) (int, bool) {
	ik := instanceKey{parent, code, key, occurrence}
	if seq, ok := x.instances[ik]; ok {
		return seq, true
	}
	x.table.mu.RLock()
	defer x.table.mu.RUnlock()
	seq, ok := x.table.instances[ik]
	return seq, ok
}

// ReserveSequence pins an occurrence to the next free sequence number under (parent, code).
func (x *Txn) ReserveSequence(parent, code, key string, occurrence int) int {
	sk := seqKey{parent, code}
	last, ok := x.sequences[sk]
	if !ok {
		x.table.mu.RLock()
		last = x.table.sequences[sk]
		x.table.mu.RUnlock()
	}
	next := last + 1
	x.sequences[sk] = next
	x.instances[instanceKey{parent, code, key, occurrence}] = next
	return next
}

// PeekSequence returns the sequence ReserveSequence would hand out next.
func (x *Txn) PeekSequence(parent, code string) int {
	sk := seqKey{parent, code}
	if last, ok := x.sequences[sk]; ok {
		return last + 1
	}
	x.table.mu.RLock()
	defer x.table.mu.RUnlock()
	return x.table.sequences[sk] + 1
}

// Commit applies every staged mutation at once. Calling Commit or Discard twice is a no-op.
func (x *Txn) Commit() {
	if x.done {
		return
	}
	x.done = true

	t := x.table
	t.mu.Lock()
	defer t.mu.Unlock()

	for k, v := range x.entries {
		t.entries[k] = v
	}
	for k, v := range x.owners {
		t.owners[k] = v
	}
	for k, v := range x.abbreviations {
		t.abbreviations[k] = v
	}
	for k, v := range x.instances {
		t.instances[k] = v
	}
	for k, v := range x.sequences {
		if v > t.sequences[k] {
			t.sequences[k] = v
		}
	}
	for k, v := range x.occurrences {
		t.occurrences[k] = v
	}
}

// Discard drops the staged mutations.
func (x *Txn) Discard() {
	x.done = true
}

// Staged reports how many level entries are pending.
func (x *Txn) Staged() int { return len(x.entries) }
