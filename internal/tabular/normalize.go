package tabular

// Normalize converts an arbitrary payload into a table. It returns nil when
// no tabular shape can be derived. Normalize never panics on input produced
// by Decode and never shares memory with the payload.
func Normalize(payload any) *Table {
	return Build(Classify(payload))
}

// Build turns a classified shape into a table.
func Build(s Shape) *Table {
	switch sh := s.(type) {
	case RecordSet:
		return tableFromRecords(sh.Records)
	case ItemList:
		return tableFromItems(sh.Items)
	case PlainObject:
		return tableFromObject(sh.Fields)
	case RawString:
		return &Table{
			Headers: []string{"raw"},
			Rows:    []Row{{"raw": sh.Text}},
		}
	case NoMatch:
		return nil
	default:
		return nil
	}
}

// tableFromRecords builds one row per record. Headers are the union of all
// record keys; a record missing a header gets "" for it.
func tableFromRecords(records []*Object) *Table {
	hs := newHeaderSet()
	for _, rec := range records {
		for _, k := range rec.Keys() {
			hs.add(k)
		}
	}

	rows := make([]Row, len(records))
	for i, rec := range records {
		row := make(Row, len(hs.order))
		for _, h := range hs.order {
			v, _ := rec.Get(h)
			row[h] = Stringify(v)
		}
		rows[i] = row
	}
	return &Table{Headers: hs.order, Rows: rows}
}

// tableFromItems collapses {name, value} items into a single row. A missing
// name becomes "Unknown"; a repeated name keeps its first column and the
// last value.
func tableFromItems(items []*Object) *Table {
	hs := newHeaderSet()
	row := make(Row)
	for _, it := range items {
		name := "Unknown"
		if n, ok := it.Get("name"); ok && n != nil {
			name = Stringify(n)
		}
		if !hs.add(name) {
			continue
		}
		v, _ := it.Get("value")
		row[name] = Stringify(v)
	}
	return &Table{Headers: hs.order, Rows: []Row{row}}
}

func tableFromObject(obj *Object) *Table {
	hs := newHeaderSet()
	row := make(Row)
	for _, k := range obj.Keys() {
		if !hs.add(k) {
			continue
		}
		v, _ := obj.Get(k)
		row[k] = Stringify(v)
	}
	return &Table{Headers: hs.order, Rows: []Row{row}}
}
