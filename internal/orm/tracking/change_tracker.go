// Package tracking diffs two versions of an entity document. The patch flow
// uses it to find the properties a patch actually changed.
package tracking

import (
	"reflect"
	"sort"
	"strings"
)

// FieldChange is the old and new value of one top-level document key
type FieldChange struct {
	Field    string
	OldValue interface{}
	NewValue interface{}
}

// ChangeTracker holds the difference between an original and a current
// document. Keys missing on one side compare as null.
type ChangeTracker struct {
	original map[string]interface{}
	current  map[string]interface{}
	changes  map[string]*FieldChange
}

// NewChangeTracker diffs current against original. Both documents are copied.
func NewChangeTracker(original, current map[string]interface{}) *ChangeTracker {
	ct := &ChangeTracker{
		original: deepCopyMap(original),
		current:  deepCopyMap(current),
	}
	ct.computeChanges()
	return ct
}

// computeChanges compares every key present on either side. Annotation keys
// (containing '@' after the first character, e.g. Thing@iot.navigationLink)
// describe the document rather than the entity and are skipped.
func (ct *ChangeTracker) computeChanges() {
	ct.changes = make(map[string]*FieldChange)
	seen := make(map[string]bool)
	check := func(field string) {
		if seen[field] || isAnnotation(field) {
			return
		}
		seen[field] = true
		oldValue, newValue := ct.original[field], ct.current[field]
		if !reflect.DeepEqual(oldValue, newValue) {
			ct.changes[field] = &FieldChange{Field: field, OldValue: oldValue, NewValue: newValue}
		}
	}
	for field := range ct.original {
		check(field)
	}
	for field := range ct.current {
		check(field)
	}
}

func isAnnotation(field string) bool {
	return strings.LastIndexByte(field, '@') > 0
}

// Changed reports whether a field differs between the documents
func (ct *ChangeTracker) Changed(field string) bool {
	_, ok := ct.changes[field]
	return ok
}

// ChangedFields returns the changed fields in sorted order
func (ct *ChangeTracker) ChangedFields() []string {
	fields := make([]string, 0, len(ct.changes))
	for field := range ct.changes {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// GetChange returns the change of a field, or nil when it is unchanged
func (ct *ChangeTracker) GetChange(field string) *FieldChange {
	change, ok := ct.changes[field]
	if !ok {
		return nil
	}
	copied := *change
	return &copied
}

// HasChanges reports whether any field changed
func (ct *ChangeTracker) HasChanges() bool {
	return len(ct.changes) > 0
}

// Ignore drops fields from the diff, e.g. the id a patch must not change
func (ct *ChangeTracker) Ignore(fields ...string) {
	for _, field := range fields {
		delete(ct.changes, field)
	}
}

// GetChangedData returns the current values of the changed fields
func (ct *ChangeTracker) GetChangedData() map[string]interface{} {
	data := make(map[string]interface{}, len(ct.changes))
	for field := range ct.changes {
		data[field] = deepCopyValue(ct.current[field])
	}
	return data
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
