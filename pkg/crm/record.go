package crm

// Record is a CRM person or project. The CRM's field set is open-ended and
// partly tenant-defined, so records are kept as raw maps and round-tripped
// intact on updates. Helpers below read the handful of fields the sync needs.
type Record map[string]any

// String returns the string value of a top-level field, or "".
func (r Record) String(key string) string {
	value, _ := r[key].(string)
	return value
}

// Name returns the record's display name.
func (r Record) Name() string {
	return r.String("name")
}

// Direct returns the CRM's own record id, when present.
func (r Record) Direct() string {
	return r.String("direct")
}

// Set writes a top-level field.
func (r Record) Set(key string, value any) {
	r[key] = value
}

// CustomFields returns the record's custom fields as maps. Entries that are
// not objects are skipped.
func (r Record) CustomFields() []Record {
	raw, ok := r["customFields"].([]any)
	if !ok {
		return nil
	}

	fields := make([]Record, 0, len(raw))
	for _, entry := range raw {
		if field, ok := entry.(map[string]any); ok {
			fields = append(fields, Record(field))
		}
	}
	return fields
}

// CustomField returns the first custom field with the given id along with its
// position, or nil and -1.
func (r Record) CustomField(id string) (Record, int) {
	for pos, field := range r.CustomFields() {
		if field.String("id") == id {
			return field, pos
		}
	}
	return nil, -1
}

// AppendCustomField adds a custom field to the record, creating the slice
// when missing.
func (r Record) AppendCustomField(field Record) {
	raw, _ := r["customFields"].([]any)
	r["customFields"] = append(raw, map[string]any(field))
}

// ValueIDs returns the "ids" list inside a custom field's object value, as
// used by contact-link fields.
func ValueIDs(field Record) []string {
	value, ok := field["value"].(map[string]any)
	if !ok {
		return nil
	}
	return stringSlice(value["ids"])
}

// ValueList returns a custom field's value as a list of objects, as used by
// the orders-link field.
func ValueList(field Record) []Record {
	raw, ok := field["value"].([]any)
	if !ok {
		return nil
	}

	entries := make([]Record, 0, len(raw))
	for _, entry := range raw {
		if obj, ok := entry.(map[string]any); ok {
			entries = append(entries, Record(obj))
		}
	}
	return entries
}

// IDs returns the "ids" list of an orders-link entry.
func (r Record) IDs() []string {
	return stringSlice(r["ids"])
}

func stringSlice(value any) []string {
	raw, ok := value.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		if s, ok := entry.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
