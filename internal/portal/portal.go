// Package portal delivers edited tables to the downstream data portal.
//
// A Sink receives headers and rows verbatim and acknowledges them. The
// default LogSink only records the sync; PostgresSink stores each sync in
// the portal's database.
package portal

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/mediadata/internal/tabular"
)

// SyncedMessage is the acknowledgement text for a successful sync.
const SyncedMessage = "Data successfully synced"

// Ack is the portal's response to a sync.
type Ack struct {
	OK      bool    `json:"ok"`
	Message string  `json:"message"`
	Synced  Payload `json:"synced"`
}

// Payload echoes what was synced.
type Payload struct {
	ID      string        `json:"id,omitempty"`
	Headers []string      `json:"headers"`
	Rows    []tabular.Row `json:"rows"`
	Count   int           `json:"count"`
}

// Sink accepts a table for delivery.
type Sink interface {
	Sync(ctx context.Context, headers []string, rows []tabular.Row) (*Ack, error)
}

// Acknowledge builds a successful Ack. Nil slices are reported as empty.
func Acknowledge(id string, headers []string, rows []tabular.Row) *Ack {
	if headers == nil {
		headers = []string{}
	}
	if rows == nil {
		rows = []tabular.Row{}
	}
	return &Ack{
		OK:      true,
		Message: SyncedMessage,
		Synced: Payload{
			ID:      id,
			Headers: headers,
			Rows:    rows,
			Count:   len(rows),
		},
	}
}

// LogSink acknowledges every sync and logs its size.
type LogSink struct{}

// Sync implements Sink.
func (LogSink) Sync(ctx context.Context, headers []string, rows []tabular.Row) (*Ack, error) {
	slog.InfoContext(ctx, "portal sync received", "headers", len(headers), "rows", len(rows))
	return Acknowledge("", headers, rows), nil
}
