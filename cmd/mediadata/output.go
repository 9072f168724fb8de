package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/mediadata/internal/tabular"
)

const (
	formatCSV  = "csv"
	formatJSON = "json"
	formatYAML = "yaml"
	formatXLSX = "xlsx"
)

// writeTable renders t in the named format. JSON and YAML rows keep keys
// in header order and omit cells that were never set.
func writeTable(w io.Writer, format string, t *tabular.Table) error {
	switch strings.ToLower(format) {
	case formatCSV, "":
		_, err := fmt.Fprintln(w, tabular.ToCSVText(t.Headers, t.Rows))
		return err
	case formatJSON:
		rows := make([]*tabular.Object, len(t.Rows))
		for i, r := range t.Rows {
			rows[i] = tabular.RowObject(t.Headers, r)
		}
		b, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case formatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(yamlRows(t)); err != nil {
			return err
		}
		return enc.Close()
	case formatXLSX:
		return tabular.WriteWorkbook(w, t.Headers, t.Rows)
	default:
		return fmt.Errorf("unknown format %q (want csv, json, yaml or xlsx)", format)
	}
}

// yamlRows builds a sequence of mappings by hand; encoding a map would
// sort the keys.
func yamlRows(t *tabular.Table) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, r := range t.Rows {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for _, h := range t.Headers {
			v, ok := r[h]
			if !ok {
				continue
			}
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: h},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v},
			)
		}
		seq.Content = append(seq.Content, m)
	}
	return seq
}
