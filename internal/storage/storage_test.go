package storage_test

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/starteducation/starteducation/internal/storage"
)

func newTestStorage(t *testing.T, publicEndpoint string) *storage.Storage {
	t.Helper()
	s, err := storage.New(context.Background(), storage.Config{
		Endpoint:       "http://localhost:9000",
		PublicEndpoint: publicEndpoint,
		Bucket:         "lessons",
		AccessKey:      "test",
		SecretKey:      "test",
	})
	if err != nil {
		t.Fatalf("expected no error creating storage client, got: %v", err)
	}
	return s
}

func TestGenerateDownloadURL_PresignsLocally(t *testing.T) {
	s := newTestStorage(t, "")

	raw, err := s.GenerateDownloadURL(context.Background(), "courses/go/intro.mp4", time.Hour)
	if err != nil {
		t.Fatalf("presign failed: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if u.Host != "localhost:9000" {
		t.Errorf("expected internal endpoint host, got %s", u.Host)
	}
	if u.Path != "/lessons/courses/go/intro.mp4" {
		t.Errorf("expected path-style key, got %s", u.Path)
	}
	if got := u.Query().Get("X-Amz-Expires"); got != "3600" {
		t.Errorf("expected X-Amz-Expires=3600, got %s", got)
	}
}

func TestGenerateDownloadURL_UsesPublicEndpoint(t *testing.T) {
	s := newTestStorage(t, "https://cdn.learn.example.com")

	raw, err := s.GenerateDownloadURL(context.Background(), "a.mp4", 4*time.Hour)
	if err != nil {
		t.Fatalf("presign failed: %v", err)
	}
	if !strings.HasPrefix(raw, "https://cdn.learn.example.com/lessons/a.mp4?") {
		t.Errorf("expected public endpoint url, got %s", raw)
	}
}

func TestGenerateDownloadURL_NilStorage(t *testing.T) {
	var s *storage.Storage
	if _, err := s.GenerateDownloadURL(context.Background(), "a.mp4", time.Hour); err == nil {
		t.Fatal("expected error from nil storage")
	}
}
