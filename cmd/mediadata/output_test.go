package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/JonMunkholm/mediadata/internal/tabular"
)

func sampleTable() *tabular.Table {
	return &tabular.Table{
		Headers: []string{"name", "qty"},
		Rows: []tabular.Row{
			{"name": "apple", "qty": "2"},
			{"name": "pear"},
		},
	}
}

func TestWriteTable(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{
			format: "csv",
			want:   "\"name\",\"qty\"\n\"apple\",\"2\"\n\"pear\",\"\"\n",
		},
		{
			format: "json",
			want:   "[\n  {\n    \"name\": \"apple\",\n    \"qty\": \"2\"\n  },\n  {\n    \"name\": \"pear\"\n  }\n]\n",
		},
		{
			format: "yaml",
			want:   "- name: apple\n  qty: \"2\"\n- name: pear\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeTable(&buf, tt.format, sampleTable()); err != nil {
				t.Fatalf("writeTable() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("writeTable(%s) = %q, want %q", tt.format, got, tt.want)
			}
		})
	}
}

func TestWriteTable_Workbook(t *testing.T) {
	var buf bytes.Buffer
	if err := writeTable(&buf, "xlsx", sampleTable()); err != nil {
		t.Fatalf("writeTable() error = %v", err)
	}
	// xlsx files are zip archives
	if !bytes.HasPrefix(buf.Bytes(), []byte("PK")) {
		t.Errorf("workbook does not start with zip signature")
	}
}

func TestWriteTable_UnknownFormat(t *testing.T) {
	err := writeTable(&bytes.Buffer{}, "toml", sampleTable())
	if err == nil || !strings.Contains(err.Error(), "toml") {
		t.Errorf("error = %v, want unknown format", err)
	}
}

func TestDetectMIME(t *testing.T) {
	tests := []struct {
		path string
		data []byte
		want string
	}{
		{"photo.PNG", nil, "image/png"},
		{"scan.webp", nil, "image/webp"},
		{"noext", []byte("\xff\xd8\xff\xe0\x00\x10JFIF"), "image/jpeg"},
	}

	for _, tt := range tests {
		if got := detectMIME(tt.path, tt.data); got != tt.want {
			t.Errorf("detectMIME(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
