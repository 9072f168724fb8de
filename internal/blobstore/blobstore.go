// Package blobstore keeps uploaded media in temporary storage and hands
// back a URL for it.
//
// Two stores exist: Local writes files under a directory that the web
// server exposes, and Cloudinary uploads to a Cloudinary folder.
package blobstore

import (
	"context"
	"mime"
	"strings"
)

// Object describes a stored blob.
type Object struct {
	PublicID     string `json:"public_id"`
	URL          string `json:"url"`
	Bytes        int64  `json:"bytes"`
	ResourceType string `json:"resource_type"`
}

// Store accepts bytes and returns where they can be fetched.
type Store interface {
	Put(ctx context.Context, name, mimeType string, data []byte) (*Object, error)
}

// resourceType maps a MIME type onto Cloudinary's resource type names.
func resourceType(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	default:
		return "raw"
	}
}

// extensionFor picks a file extension for mimeType, falling back to the
// original file name's extension.
func extensionFor(name, mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "video/mp4":
		return ".mp4"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 && len(name)-i <= 6 {
		return strings.ToLower(name[i:])
	}
	return ""
}
