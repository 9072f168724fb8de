package tabular

// RecordsKey is the object key merged payloads are published under.
const RecordsKey = "extracted_records"

// Merge combines per-frame tables. Rows from every non-nil table are
// concatenated in input order and re-normalized as a record set, so the
// merged headers follow the same union rule as Normalize. When no rows
// exist the first non-nil table is returned, else nil.
func Merge(tables []*Table) *Table {
	payload, n := mergedPayload(tables)
	if n == 0 {
		for _, t := range tables {
			if t != nil {
				return t.Clone()
			}
		}
		return nil
	}
	return Normalize(payload)
}

// MergeFrames normalizes each frame payload and merges the results. A nil
// payload is a failed frame and contributes no rows.
//
// The second return value is what should be shown and stored for the
// merged analysis: the canonical record payload when any rows were found,
// otherwise the first non-nil frame payload as-is.
func MergeFrames(payloads []any) (*Table, any) {
	tables := make([]*Table, len(payloads))
	for i, p := range payloads {
		if p != nil {
			tables[i] = Normalize(p)
		}
	}

	payload, n := mergedPayload(tables)
	if n > 0 {
		return Normalize(payload), payload
	}

	for _, p := range payloads {
		if p != nil {
			return Merge(tables), p
		}
	}
	return nil, nil
}

func mergedPayload(tables []*Table) (*Object, int) {
	records := []any{}
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, r := range t.Rows {
			records = append(records, RowObject(t.Headers, r))
		}
	}
	payload := NewObject()
	payload.Set(RecordsKey, records)
	return payload, len(records)
}
