package web

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/mediadata/internal/core"
	"github.com/JonMunkholm/mediadata/internal/web/templates"
)

// render writes a full page.
func render(w http.ResponseWriter, r *http.Request, title string, body templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Page(title, body).Render(r.Context(), w); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
	}
}

// handleHome renders the upload form.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	render(w, r, "Analyze media", templates.Home())
}

// handleUploadPage analyzes a form upload and redirects to its session.
func (s *Server) handleUploadPage(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	result, err := s.service.Analyze(WithRequestMetadata(r.Context(), r), up)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, "/session/"+result.SessionID, http.StatusSeeOther)
}

// handleSessionPage renders a session with its table, if built.
func (s *Server) handleSessionPage(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	render(w, r, view.FileName, templates.Session(sessionData(view, r.URL.Query().Get("notice"))))
}

func sessionData(view *core.SessionView, notice string) templates.SessionData {
	d := templates.SessionData{
		ID:        view.ID,
		FileName:  view.FileName,
		MediaType: view.MediaType,
		Model:     view.Model,
		Preview:   prettyJSON(view.Preview),
		Table:     view.Table,
		Notice:    notice,
	}
	if view.Blob != nil {
		d.BlobURL = view.Blob.URL
	}
	return d
}

// redirectToSession returns to the session page with an optional notice.
func redirectToSession(w http.ResponseWriter, r *http.Request, id, notice string) {
	target := "/session/" + id
	if notice != "" {
		target += "?notice=" + url.QueryEscape(notice)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// handleBuildTablePage is the form action behind "View Analysis".
func (s *Server) handleBuildTablePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.service.BuildTable(id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	redirectToSession(w, r, id, "")
}

// handleSetCellPage saves one cell from the table form.
func (s *Server) handleSetCellPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	row, err := strconv.Atoi(r.FormValue("row"))
	if err != nil {
		respondError(w, r, core.ErrInvalidCellEdit, http.StatusBadRequest)
		return
	}
	if _, err := s.service.SetCell(id, row, r.FormValue("header"), r.FormValue("value")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	redirectToSession(w, r, id, "")
}

// handleSyncPage syncs the table and returns with the portal's message.
func (s *Server) handleSyncPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ack, err := s.service.Sync(WithRequestMetadata(r.Context(), r), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	redirectToSession(w, r, id, ack.Message)
}
