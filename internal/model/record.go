package model

import (
	"encoding/json"
	"time"
)

// Record is one persisted entity. The envelope fields live in the embedded
// Syncable; everything kind-specific (property address, sale amount, memo
// text, ...) is kept in Attrs and round-tripped untouched. The persisted
// JSON shape is a single flat object, so a record written by any device
// version survives devices that know nothing about its extra fields.
type Record struct {
	Syncable
	Attrs map[string]any
}

// envelope keys that are lifted out of Attrs on decode.
const (
	keyID         = "id"
	keyCreatedAt  = "createdAt"
	keyUpdatedAt  = "updatedAt"
	keyStaffID    = "staffId"
	keyDeleted    = "deleted"
	keyDeletedAt  = "deletedAt"
	keyRestoredAt = "restoredAt"
)

// MarshalJSON flattens the envelope and the attributes into one object.
// Zero-valued envelope fields are omitted, matching the stored layout where
// a live record simply has no "deleted" key.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Attrs)+7)
	for k, v := range r.Attrs {
		out[k] = v
	}
	out[keyID] = r.ID
	if !r.CreatedAt.IsZero() {
		out[keyCreatedAt] = r.CreatedAt
	}
	if !r.UpdatedAt.IsZero() {
		out[keyUpdatedAt] = r.UpdatedAt
	}
	if r.StaffID != "" {
		out[keyStaffID] = r.StaffID
	}
	if r.Deleted {
		out[keyDeleted] = true
	}
	if r.DeletedAt != nil {
		out[keyDeletedAt] = r.DeletedAt
	}
	if r.RestoredAt != nil {
		out[keyRestoredAt] = r.RestoredAt
	}
	return json.Marshal(out)
}

// UnmarshalJSON lifts the envelope keys into Syncable and leaves the rest
// in Attrs.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = Record{}

	if v, ok := raw[keyID]; ok {
		if err := json.Unmarshal(v, &r.ID); err != nil {
			return err
		}
		delete(raw, keyID)
	}
	if err := takeTime(raw, keyCreatedAt, &r.CreatedAt); err != nil {
		return err
	}
	if err := takeTime(raw, keyUpdatedAt, &r.UpdatedAt); err != nil {
		return err
	}
	if v, ok := raw[keyStaffID]; ok {
		if err := json.Unmarshal(v, &r.StaffID); err != nil {
			return err
		}
		delete(raw, keyStaffID)
	}
	if v, ok := raw[keyDeleted]; ok {
		if err := json.Unmarshal(v, &r.Deleted); err != nil {
			return err
		}
		delete(raw, keyDeleted)
	}
	if err := takeTimePtr(raw, keyDeletedAt, &r.DeletedAt); err != nil {
		return err
	}
	if err := takeTimePtr(raw, keyRestoredAt, &r.RestoredAt); err != nil {
		return err
	}

	if len(raw) > 0 {
		r.Attrs = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			r.Attrs[k] = val
		}
	}
	return nil
}

func takeTime(raw map[string]json.RawMessage, key string, dst *time.Time) error {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	delete(raw, key)
	// tolerate null timestamps written by older clients
	if string(v) == "null" {
		return nil
	}
	return json.Unmarshal(v, dst)
}

func takeTimePtr(raw map[string]json.RawMessage, key string, dst **time.Time) error {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	delete(raw, key)
	if string(v) == "null" {
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(v, &t); err != nil {
		return err
	}
	*dst = &t
	return nil
}

// Clone returns a deep enough copy for merge bookkeeping: the envelope is
// copied by value and the attribute map is duplicated one level deep.
func (r Record) Clone() Record {
	out := r
	if r.Attrs != nil {
		out.Attrs = make(map[string]any, len(r.Attrs))
		for k, v := range r.Attrs {
			out.Attrs[k] = v
		}
	}
	if r.DeletedAt != nil {
		t := *r.DeletedAt
		out.DeletedAt = &t
	}
	if r.RestoredAt != nil {
		t := *r.RestoredAt
		out.RestoredAt = &t
	}
	return out
}

// MergeAttrs shallow-merges src attributes into the record, the same way an
// edit form submits a partial update over an existing record.
func (r *Record) MergeAttrs(src map[string]any) {
	if len(src) == 0 {
		return
	}
	if r.Attrs == nil {
		r.Attrs = make(map[string]any, len(src))
	}
	for k, v := range src {
		r.Attrs[k] = v
	}
}

// Attr returns a kind-specific attribute value, or nil when absent.
func (r Record) Attr(key string) any {
	if r.Attrs == nil {
		return nil
	}
	return r.Attrs[key]
}

// StringAttr returns a kind-specific attribute as a string, or "" when the
// attribute is absent or not a string.
func (r Record) StringAttr(key string) string {
	s, _ := r.Attr(key).(string)
	return s
}

// SetAttr sets one kind-specific attribute.
func (r *Record) SetAttr(key string, value any) {
	if r.Attrs == nil {
		r.Attrs = make(map[string]any, 1)
	}
	r.Attrs[key] = value
}
