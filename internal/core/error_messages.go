package core

// error_messages.go maps technical errors to user-facing messages.
//
// # Error Codes Reference
//
// When users encounter errors they can quote the code to support staff.
// Codes are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: The file exceeds the upload size limit
//	          Action: Upload a smaller file or a shorter clip
//	          Patterns: "file too large", "request body too large"
//
//	FILE002 - No file: No file was selected
//	          Action: Please select an image or video file
//	          Patterns: "no file provided"
//
//	FILE003 - Empty file: The uploaded file is empty
//	          Action: Please upload a file with content
//	          Patterns: "empty file"
//
//	FILE004 - Payload too large: The text payload exceeds the size limit
//	          Action: Send a smaller payload
//	          Patterns: "payload too large"
//
// # Media Errors (MED001-MED099)
//
//	MED001 - Unsupported type: Unsupported file type. Upload an image or video.
//	         Action: Use a JPEG, PNG, WebP, GIF image or a common video format
//	         Patterns: "unsupported media type"
//
//	MED002 - No frames: No video frames could be analyzed
//	         Action: Try a different or longer clip
//	         Patterns: "no frames could be analyzed", "sample frames"
//
// # Provider Errors (PRV001-PRV099)
//
//	PRV001 - Not configured: The analysis provider is not configured
//	         Action: Set GOOGLE_API_KEY and restart the server
//	         Patterns: "missing google_api_key"
//
//	PRV002 - Provider busy: The model is rate limiting requests
//	         Action: Please wait a minute and try again
//	         Patterns: "http 429"
//
//	PRV003 - Model unavailable: None of the configured models are available
//	         Action: Check GEMINI_MODEL against the models list
//	         Patterns: "http 404"
//
//	PRV004 - No content: The model returned no content
//	         Action: Try again with different instructions
//	         Patterns: "model returned no content"
//
//	PRV005 - Provider error: The analysis provider rejected the request
//	         Action: Please try again
//	         Patterns: "provider:"
//
// # Storage Errors (BLOB001)
//
//	BLOB001 - Upload failed: Temporary storage of the media failed
//	          Action: Please try again
//	          Patterns: "blobstore:"
//
// # Session Errors (SES001)
//
//	SES001 - Session expired: Analysis session not found
//	         Action: Sessions expire after an hour. Please analyze the file again
//	         Patterns: "session not found"
//
// # Table Errors (TBL001-TBL099)
//
//	TBL001 - No table: No structured fields detected from the image
//	         Action: Try again with more specific instructions
//	         Patterns: "no structured fields detected"
//
//	TBL002 - Table not built: The table has not been built yet
//	         Action: Choose View Analysis first
//	         Patterns: "table not built"
//
//	TBL003 - Bad edit: The cell update could not be read
//	         Action: Send a row index, header and value
//	         Patterns: "invalid cell update"
//
// # Export and Sync Errors (EXP001, SYNC001)
//
//	EXP001 - Export failed: Failed to export XLSX
//	         Action: Download CSV instead or try again
//	         Patterns: "export workbook"
//
//	SYNC001 - Sync failed: The portal did not accept the data
//	          Action: Please try again
//	          Patterns: "portal:"
//
// # Request Errors (ANL001, UPL001-UPL002, RATE001)
//
//	ANL001 - System busy: Too many analyses in progress
//	         Action: Please wait a moment and try again
//	         Patterns: "too many analyses"
//
//	UPL001 - Request cancelled: Request was cancelled
//	         Action: Please try again
//	         Patterns: "context canceled"
//
//	UPL002 - Request timeout: Request timed out
//	         Action: Try a smaller file or check your connection
//	         Patterns: "context deadline exceeded"
//
//	RATE001 - Rate limited: Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File
	{"file too large", UserMessage{"The file exceeds the upload size limit", "Upload a smaller file or a shorter clip", "FILE001"}},
	{"request body too large", UserMessage{"The file exceeds the upload size limit", "Upload a smaller file or a shorter clip", "FILE001"}},
	{"no file provided", UserMessage{"No file was selected", "Please select an image or video file", "FILE002"}},
	{"empty file", UserMessage{"The uploaded file is empty", "Please upload a file with content", "FILE003"}},
	{"payload too large", UserMessage{"The text payload exceeds the size limit", "Send a smaller payload", "FILE004"}},

	// Media
	{"unsupported media type", UserMessage{"Unsupported file type. Upload an image or video.", "Use a JPEG, PNG, WebP, GIF image or a common video format", "MED001"}},
	{"no frames could be analyzed", UserMessage{"No video frames could be analyzed", "Try a different or longer clip", "MED002"}},
	{"sample frames", UserMessage{"No video frames could be analyzed", "Try a different or longer clip", "MED002"}},

	// Sessions and tables come before provider 404s so "not found" stays specific.
	{"session not found", UserMessage{"Analysis session not found", "Sessions expire after an hour. Please analyze the file again", "SES001"}},
	{"no structured fields detected", UserMessage{"No structured fields detected from the image", "Try again with more specific instructions", "TBL001"}},
	{"table not built", UserMessage{"The table has not been built yet", "Choose View Analysis first", "TBL002"}},
	{"invalid cell update", UserMessage{"The cell update could not be read", "Send a row index, header and value", "TBL003"}},

	// Provider
	{"missing google_api_key", UserMessage{"The analysis provider is not configured", "Set GOOGLE_API_KEY and restart the server", "PRV001"}},
	{"http 429", UserMessage{"The model is rate limiting requests", "Please wait a minute and try again", "PRV002"}},
	{"http 404", UserMessage{"None of the configured models are available", "Check GEMINI_MODEL against the models list", "PRV003"}},
	{"model returned no content", UserMessage{"The model returned no content", "Try again with different instructions", "PRV004"}},
	{"provider:", UserMessage{"The analysis provider rejected the request", "Please try again", "PRV005"}},

	// Storage, export, sync
	{"blobstore:", UserMessage{"Temporary storage of the media failed", "Please try again", "BLOB001"}},
	{"export workbook", UserMessage{"Failed to export XLSX", "Download CSV instead or try again", "EXP001"}},
	{"portal:", UserMessage{"The portal did not accept the data", "Please try again", "SYNC001"}},

	// Request lifecycle
	{"too many analyses", UserMessage{"System is busy with other analyses", "Please wait a moment and try again", "ANL001"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "UPL001"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or check your connection", "UPL002"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Unknown
// errors map to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
