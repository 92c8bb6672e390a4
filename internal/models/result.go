// internal/models/result.go
package models

import (
	"fmt"
	"strings"
)

// HierarchicalID is the ordered list of level codes for one row.
type HierarchicalID struct {
	Codes     []string `json:"codes"`
	Separator string   `json:"-"`
}

func (id HierarchicalID) String() string {
	return strings.Join(id.Codes, id.sep())
}

func (id HierarchicalID) IsZero() bool { return len(id.Codes) == 0 }

// Extend returns a child ID with the given codes appended. The receiver is not modified.
func (id HierarchicalID) Extend(codes ...string) HierarchicalID {
	next := make([]string, 0, len(id.Codes)+len(codes))
	next = append(next, id.Codes...)
	next = append(next, codes...)
	return HierarchicalID{Codes: next, Separator: id.Separator}
}

func (id HierarchicalID) sep() string {
	if id.Separator == "" {
		return "-"
	}
	return id.Separator
}

// Warning is a non-fatal finding attached to a row (Row < 0 for run-level findings).
type Warning struct {
	Row     int    `json:"row"`
	Field   Field  `json:"field,omitempty"`
	Level   Level  `json:"level,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Row < 0 {
		return w.Message
	}
	return fmt.Sprintf("Row %d: %s", w.Row+2, w.Message)
}

// RowStatus is the outcome of a row.
type RowStatus string

const (
	RowOK        RowStatus = "ok"
	RowFailed    RowStatus = "failed"
	RowCancelled RowStatus = "cancelled"
)

// RowResult is the generation outcome of a single row.
type RowResult struct {
	Index     int              `json:"index"`
	Record    AssetRecord      `json:"record"`
	Status    RowStatus        `json:"status"`
	ID        HierarchicalID   `json:"id"`
	IDs       map[Level]string `json:"ids,omitempty"`
	Warnings  []Warning        `json:"warnings,omitempty"`
	ErrorCode string           `json:"errorCode,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func (r RowResult) OK() bool { return r.Status == RowOK }
