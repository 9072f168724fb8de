// Package web provides HTTP handlers for the media analysis application.
// This file contains shared utilities used across handlers.
package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/JonMunkholm/mediadata/internal/core"
	"github.com/JonMunkholm/mediadata/internal/tabular"
)

// multipartOverhead is allowed on top of the file size limit for form
// fields and boundaries.
const multipartOverhead = 1 << 20

// readUpload reads the "file" part and form fields of a multipart analyze
// request.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (core.MediaUpload, error) {
	maxSize := s.cfg.Media.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return core.MediaUpload{}, core.ErrFileTooLarge
		}
		return core.MediaUpload{}, core.ErrNoFile
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return core.MediaUpload{}, core.ErrNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return core.MediaUpload{}, err
	}

	return core.MediaUpload{
		FileName:     header.Filename,
		MimeType:     mediaType(header.Header.Get("Content-Type"), data),
		Data:         data,
		Instructions: strings.TrimSpace(r.FormValue("instructions")),
		AutoCrop:     r.FormValue("auto_crop") == "true",
	}, nil
}

// mediaType returns the declared type without parameters, sniffing the
// content when the client sent nothing useful.
func mediaType(declared string, data []byte) string {
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = declared[:i]
	}
	declared = strings.TrimSpace(strings.ToLower(declared))
	if declared == "" || declared == "application/octet-stream" {
		return http.DetectContentType(data)
	}
	return declared
}

// prettyJSON renders a payload for display. Non-JSON text is returned as is.
func prettyJSON(v any) string {
	text := tabular.Stringify(v)
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(text), "", "  "); err != nil {
		return text
	}
	return buf.String()
}

// decodeJSON decodes a JSON request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, core.DefaultMaxPayloadBytes))
	return dec.Decode(dst)
}
