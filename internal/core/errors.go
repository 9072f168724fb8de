package core

import "errors"

// Sentinel errors. Their text carries the patterns MapError keys on.
var (
	ErrNoFile           = errors.New("no file provided")
	ErrEmptyFile        = errors.New("empty file")
	ErrFileTooLarge     = errors.New("file too large")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrUnsupportedMedia = errors.New("unsupported media type: upload an image or video")
	ErrNoFrames         = errors.New("no frames could be analyzed")
	ErrSessionNotFound  = errors.New("session not found")
	ErrNoStructuredData = errors.New("no structured fields detected")
	ErrTableNotBuilt    = errors.New("table not built for this session")
	ErrInvalidCellEdit  = errors.New("invalid cell update")
	ErrTooManyAnalyses  = errors.New("too many analyses in progress, please try again later")
)
