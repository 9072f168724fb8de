package web

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/mediadata/internal/core"
	"github.com/JonMunkholm/mediadata/internal/portal"
	"github.com/JonMunkholm/mediadata/internal/tabular"
)

const (
	csvFileName      = "structured-data.csv"
	workbookFileName = "structured-data.xlsx"
	workbookMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// handleGetSession returns the redacted result and the current table.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleBuildTable normalizes the session result into a fresh table.
func (s *Server) handleBuildTable(w http.ResponseWriter, r *http.Request) {
	table, err := s.service.BuildTable(chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

// cellEdit is the body of a cell update.
type cellEdit struct {
	Row    int    `json:"row"`
	Header string `json:"header"`
	Value  string `json:"value"`
}

// handleSetCell edits one cell and returns the current rows.
func (s *Server) handleSetCell(w http.ResponseWriter, r *http.Request) {
	var edit cellEdit
	if err := decodeJSON(r, &edit); err != nil {
		respondError(w, r, core.ErrInvalidCellEdit, http.StatusBadRequest)
		return
	}

	rows, err := s.service.SetCell(chi.URLParam(r, "id"), edit.Row, edit.Header, edit.Value)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

// handleExportCSV downloads the edited table as CSV.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	text, err := s.service.ExportCSV(chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+csvFileName+`"`)
	w.Write([]byte(text))
}

// handleExportWorkbook downloads the edited table as XLSX. The workbook is
// built in memory first so a failure can still be reported.
func (s *Server) handleExportWorkbook(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.service.ExportWorkbook(chi.URLParam(r, "id"), &buf); err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", workbookMIME)
	w.Header().Set("Content-Disposition", `attachment; filename="`+workbookFileName+`"`)
	w.Write(buf.Bytes())
}

// handleSyncSession pushes the edited table to the portal.
func (s *Server) handleSyncSession(w http.ResponseWriter, r *http.Request) {
	ctx := WithRequestMetadata(r.Context(), r)
	ack, err := s.service.Sync(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

// portalRequest is a raw sync body. Cell values may be any JSON value.
type portalRequest struct {
	Headers []string         `json:"headers"`
	Rows    []map[string]any `json:"rows"`
}

// handlePortalSync accepts {headers, rows} from any client and forwards it
// to the sink. A malformed body is acknowledged as an empty sync.
func (s *Server) handlePortalSync(w http.ResponseWriter, r *http.Request) {
	var req portalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusOK, portal.Acknowledge("", nil, nil))
		return
	}

	rows := make([]tabular.Row, len(req.Rows))
	for i, raw := range req.Rows {
		row := make(tabular.Row, len(raw))
		for k, v := range raw {
			row[k] = tabular.Stringify(tabular.Canonicalize(v))
		}
		rows[i] = row
	}

	ctx := WithRequestMetadata(r.Context(), r)
	ack, err := s.service.SyncTable(ctx, req.Headers, rows)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

// normalizeResponse is returned by the normalize endpoint. Table is null
// when no tabular shape was found.
type normalizeResponse struct {
	Table   *tabular.Table `json:"table"`
	Preview any            `json:"preview"`
}

// handleNormalize normalizes a JSON or text body without creating a session.
func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	text, err := core.ReadPayloadText(r.Body, core.DefaultMaxPayloadBytes)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	table, preview := core.NormalizeText(text)
	writeJSON(w, http.StatusOK, normalizeResponse{Table: table, Preview: preview})
}
