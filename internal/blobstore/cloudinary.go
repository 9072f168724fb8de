package blobstore

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultCloudinaryURL    = "https://api.cloudinary.com"
	DefaultCloudinaryFolder = "gemini-temp"
)

// ErrCloudinaryConfig is returned when credentials are incomplete.
var ErrCloudinaryConfig = errors.New("blobstore: missing Cloudinary env: CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY, CLOUDINARY_API_SECRET")

// CloudinaryOptions configures a Cloudinary store.
type CloudinaryOptions struct {
	CloudName  string
	APIKey     string
	APISecret  string
	Folder     string
	BaseURL    string
	HTTPClient *http.Client
}

// Cloudinary uploads blobs with Cloudinary's signed upload API.
type Cloudinary struct {
	opts CloudinaryOptions
	now  func() time.Time
}

// NewCloudinary validates credentials and returns a store.
func NewCloudinary(opts CloudinaryOptions) (*Cloudinary, error) {
	if opts.CloudName == "" || opts.APIKey == "" || opts.APISecret == "" {
		return nil, ErrCloudinaryConfig
	}
	if opts.Folder == "" {
		opts.Folder = DefaultCloudinaryFolder
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultCloudinaryURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Cloudinary{opts: opts, now: time.Now}, nil
}

// Put uploads data as a base64 data URL with resource type "auto".
func (c *Cloudinary) Put(ctx context.Context, name, mimeType string, data []byte) (*Object, error) {
	params := map[string]string{
		"folder":          c.opts.Folder,
		"timestamp":       strconv.FormatInt(c.now().Unix(), 10),
		"use_filename":    "true",
		"unique_filename": "true",
	}
	if name != "" {
		params["filename_override"] = name
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range params {
		mw.WriteField(k, v)
	}
	mw.WriteField("api_key", c.opts.APIKey)
	mw.WriteField("signature", sign(params, c.opts.APISecret))
	mw.WriteField("file", "data:"+mimeType+";base64,"+base64.StdEncoding.EncodeToString(data))
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("blobstore: building upload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1_1/%s/auto/upload", c.opts.BaseURL, c.opts.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("blobstore: creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blobstore: upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readCloudinaryError(resp)
	}

	var wire struct {
		PublicID     string `json:"public_id"`
		SecureURL    string `json:"secure_url"`
		Bytes        int64  `json:"bytes"`
		ResourceType string `json:"resource_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("blobstore: decoding upload response: %w", err)
	}
	return &Object{
		PublicID:     wire.PublicID,
		URL:          wire.SecureURL,
		Bytes:        wire.Bytes,
		ResourceType: wire.ResourceType,
	}, nil
}

// sign computes the request signature: SHA-1 over the sorted k=v pairs
// joined by "&", followed by the API secret.
func sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + params[k]
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}

func readCloudinaryError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var wire struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wire) == nil && wire.Error.Message != "" {
		return fmt.Errorf("blobstore: cloudinary HTTP %d: %s", resp.StatusCode, wire.Error.Message)
	}
	return fmt.Errorf("blobstore: cloudinary HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
