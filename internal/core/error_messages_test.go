package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/mediadata/internal/provider"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name: "nil error returns empty",
			err:  nil,
		},
		{
			name:        "empty file",
			err:         ErrEmptyFile,
			wantCode:    "FILE003",
			wantMessage: "The uploaded file is empty",
		},
		{
			name:        "unsupported media",
			err:         ErrUnsupportedMedia,
			wantCode:    "MED001",
			wantMessage: "Unsupported file type. Upload an image or video.",
		},
		{
			name:        "frame sampling failure",
			err:         fmt.Errorf("sample frames: %w", errors.New("ffprobe: exit status 1")),
			wantCode:    "MED002",
			wantMessage: "No video frames could be analyzed",
		},
		{
			name:        "no structured data",
			err:         ErrNoStructuredData,
			wantCode:    "TBL001",
			wantMessage: "No structured fields detected from the image",
		},
		{
			name:        "missing api key",
			err:         provider.ErrMissingAPIKey,
			wantCode:    "PRV001",
			wantMessage: "The analysis provider is not configured",
		},
		{
			name:        "provider rate limit",
			err:         &provider.ProviderError{StatusCode: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"},
			wantCode:    "PRV002",
			wantMessage: "The model is rate limiting requests",
		},
		{
			name:        "provider other status",
			err:         &provider.ProviderError{StatusCode: 400, Message: "bad image"},
			wantCode:    "PRV005",
			wantMessage: "The analysis provider rejected the request",
		},
		{
			name:        "workbook export",
			err:         fmt.Errorf("export workbook: %w", errors.New("disk full")),
			wantCode:    "EXP001",
			wantMessage: "Failed to export XLSX",
		},
		{
			name:        "busy",
			err:         ErrTooManyAnalyses,
			wantCode:    "ANL001",
			wantMessage: "System is busy with other analyses",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("SESSION NOT FOUND"),
			wantCode:    "SES001",
			wantMessage: "Analysis session not found",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrTableNotBuilt)

	expected := "The table has not been built yet (Code: TBL002). Choose View Analysis first"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", ErrSessionNotFound, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	if got := NewUserError(nil); got != nil {
		t.Errorf("NewUserError(nil) = %v, want nil", got)
	}

	userErr := NewUserError(ErrNoStructuredData)
	if userErr.Error() != "No structured fields detected from the image" {
		t.Errorf("Error() = %q, want user message", userErr.Error())
	}
	if !errors.Is(userErr, ErrNoStructuredData) {
		t.Error("Unwrap() should return original error")
	}
}
