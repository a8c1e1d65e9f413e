package domain

import (
	"encoding/json"
	"slices"
	"time"
)

// AuditAction is the kind of mutation an audit entry records.
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
)

// IsValidAuditAction reports whether a names a known action.
func IsValidAuditAction(a string) bool {
	return slices.Contains([]AuditAction{AuditCreate, AuditUpdate, AuditDelete}, AuditAction(a))
}

// AuditEntry is one recorded mutation.
type AuditEntry struct {
	ID          int64           `json:"id"`
	Action      AuditAction     `json:"action"`
	SubjectType string          `json:"subject_type"`
	SubjectID   int64           `json:"subject_id"`
	Data        json.RawMessage `json:"data,omitempty"`
	UserID      *string         `json:"user_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

// AuditFilter narrows an audit listing. From and To cover whole days.
type AuditFilter struct {
	SubjectType *string
	SubjectID   *int64
	Action      *AuditAction
	UserID      *string
	From        *time.Time
	To          *time.Time
	Page        int
	PerPage     int
}

// AuditPage is one page of audit entries, newest first.
type AuditPage struct {
	Entries []AuditEntry
	Total   int
	Page    int
	PerPage int
}

// AttributeChange is the old and new value of one attribute.
type AttributeChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// AuditPayload is the data recorded with an audit entry.
type AuditPayload struct {
	Before  map[string]any             `json:"before,omitempty"`
	After   map[string]any             `json:"after,omitempty"`
	Changes map[string]AttributeChange `json:"changes,omitempty"`
}

// CreatedPayload records the attributes of a new item.
func CreatedPayload(item Item) AuditPayload {
	return AuditPayload{After: item.AuditAttributes()}
}

// DeletedPayload records the attributes of a removed item.
func DeletedPayload(item Item) AuditPayload {
	return AuditPayload{Before: item.AuditAttributes()}
}

// contentKeys are the attributes a caller can change. updated_at is only
// recorded alongside one of them.
var contentKeys = []string{"name", "description", "category", "price", "stock"}

// UpdatedPayload records the attributes that differ between before and
// after. It returns false when no editable attribute changed.
func UpdatedPayload(before, after Item) (AuditPayload, bool) {
	old := before.AuditAttributes()
	cur := after.AuditAttributes()

	p := AuditPayload{
		Before:  map[string]any{},
		After:   map[string]any{},
		Changes: map[string]AttributeChange{},
	}
	add := func(k string) {
		p.Before[k] = old[k]
		p.After[k] = cur[k]
		p.Changes[k] = AttributeChange{Old: old[k], New: cur[k]}
	}
	for _, k := range contentKeys {
		if old[k] != cur[k] {
			add(k)
		}
	}
	if len(p.Changes) == 0 {
		return AuditPayload{}, false
	}
	if old["updated_at"] != cur["updated_at"] {
		add("updated_at")
	}
	return p, true
}
