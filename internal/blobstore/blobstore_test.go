package blobstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLocalPut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir, "/blobs/")
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}

	obj, err := store.Put(context.Background(), "receipt.jpeg", "image/jpeg", []byte("jpeg"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !strings.HasSuffix(obj.PublicID, ".jpg") {
		t.Errorf("PublicID = %q, want .jpg suffix", obj.PublicID)
	}
	if obj.URL != "/blobs/"+obj.PublicID {
		t.Errorf("URL = %q, want /blobs/%s", obj.URL, obj.PublicID)
	}
	if obj.Bytes != 4 || obj.ResourceType != "image" {
		t.Errorf("Object = %+v", obj)
	}

	got, err := os.ReadFile(filepath.Join(dir, obj.PublicID))
	if err != nil || string(got) != "jpeg" {
		t.Errorf("stored file = %q, %v", got, err)
	}

	srv := httptest.NewServer(http.StripPrefix("/blobs/", store.Handler()))
	defer srv.Close()
	resp, err := http.Get(srv.URL + obj.URL)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "jpeg" {
		t.Errorf("GET %s = %d %q", obj.URL, resp.StatusCode, body)
	}
}

func TestLocalPut_CancelledContext(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "/blobs")
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Put(ctx, "x.png", "image/png", []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("Put() error = %v, want context.Canceled", err)
	}
}

func TestLocalSweep(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir, "/blobs")
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}

	old, _ := store.Put(context.Background(), "a.mp4", "video/mp4", []byte("old"))
	fresh, _ := store.Put(context.Background(), "b.mp4", "video/mp4", []byte("new"))

	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, old.PublicID), past, past); err != nil {
		t.Fatalf("Chtimes error = %v", err)
	}

	removed, err := store.Sweep(time.Hour)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(filepath.Join(dir, fresh.PublicID)); err != nil {
		t.Errorf("fresh blob was removed: %v", err)
	}
}

func TestCloudinaryPut(t *testing.T) {
	var form map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1_1/demo/auto/upload" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm error = %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		form = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			form[k] = v[0]
		}
		w.Write([]byte(`{"public_id":"gemini-temp/abc","secure_url":"https://res.example/abc.jpg","bytes":4,"resource_type":"image"}`))
	}))
	defer server.Close()

	store, err := NewCloudinary(CloudinaryOptions{CloudName: "demo", APIKey: "key", APISecret: "secret", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewCloudinary() error = %v", err)
	}
	store.now = func() time.Time { return time.Unix(1700000000, 0) }

	obj, err := store.Put(context.Background(), "a.jpg", "image/jpeg", []byte("jpeg"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if obj.PublicID != "gemini-temp/abc" || obj.URL != "https://res.example/abc.jpg" || obj.Bytes != 4 {
		t.Errorf("Object = %+v", obj)
	}

	if form["folder"] != "gemini-temp" || form["api_key"] != "key" || form["timestamp"] != "1700000000" {
		t.Errorf("form = %v", form)
	}
	if form["file"] != "data:image/jpeg;base64,anBlZw==" {
		t.Errorf("file = %q", form["file"])
	}

	sum := sha1.Sum([]byte("filename_override=a.jpg&folder=gemini-temp&timestamp=1700000000&unique_filename=true&use_filename=true" + "secret"))
	if want := hex.EncodeToString(sum[:]); form["signature"] != want {
		t.Errorf("signature = %q, want %q", form["signature"], want)
	}
}

func TestCloudinaryPut_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Invalid Signature"}}`))
	}))
	defer server.Close()

	store, _ := NewCloudinary(CloudinaryOptions{CloudName: "demo", APIKey: "key", APISecret: "secret", BaseURL: server.URL})
	_, err := store.Put(context.Background(), "", "video/mp4", []byte("v"))
	if err == nil || !strings.Contains(err.Error(), "Invalid Signature") {
		t.Errorf("Put() error = %v, want Invalid Signature", err)
	}
}

func TestNewCloudinary_MissingConfig(t *testing.T) {
	if _, err := NewCloudinary(CloudinaryOptions{CloudName: "demo"}); !errors.Is(err, ErrCloudinaryConfig) {
		t.Errorf("error = %v, want ErrCloudinaryConfig", err)
	}
}
