package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fileshelf/internal/storage"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), "http://localhost:8080/objects")
}

func TestPut_WritesAndRefusesOverwrite(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "1_abc_a.txt", strings.NewReader("hello"), 5, "text/plain"); err != nil {
		t.Fatalf("put: %v", err)
	}

	err := s.Put(ctx, "1_abc_a.txt", strings.NewReader("other"), 5, "text/plain")
	if !errors.Is(err, storage.ErrObjectExists) {
		t.Fatalf("expected ErrObjectExists, got %v", err)
	}

	rc, err := s.Open(ctx, "1_abc_a.txt")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "hello" {
		t.Fatalf("object was overwritten: %q", data)
	}
}

func TestPut_SizeMismatchLeavesNothing(t *testing.T) {
	s := newStore(t)

	if err := s.Put(context.Background(), "k.txt", strings.NewReader("abc"), 10, "text/plain"); err == nil {
		t.Fatal("expected size mismatch error")
	}
	if _, err := os.Stat(filepath.Join(s.BaseDir, "k.txt")); !os.IsNotExist(err) {
		t.Fatalf("object must not exist after failed put: %v", err)
	}
	entries, _ := os.ReadDir(s.BaseDir)
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestPut_MissingContainer(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"), "")
	err := s.Put(context.Background(), "k.txt", bytes.NewReader(nil), 0, "text/plain")
	if !errors.Is(err, storage.ErrBucketMissing) {
		t.Fatalf("expected ErrBucketMissing, got %v", err)
	}
}

func TestPut_RejectsTraversal(t *testing.T) {
	s := newStore(t)
	if err := s.Put(context.Background(), "../escape.txt", strings.NewReader("x"), 1, "text/plain"); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
}

func TestDelete_IsIdempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "k.txt", strings.NewReader("x"), 1, "text/plain"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(ctx, "k.txt"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.Delete(ctx, "k.txt"); err != nil {
		t.Fatalf("second delete should not fail: %v", err)
	}
	if _, err := s.Open(ctx, "k.txt"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestProbeAndEnsureContainer(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bucket")
	s := New(dir, "")

	if err := s.Probe(context.Background()); !errors.Is(err, storage.ErrBucketMissing) {
		t.Fatalf("expected ErrBucketMissing, got %v", err)
	}
	if err := s.EnsureContainer(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := s.Probe(context.Background()); err != nil {
		t.Fatalf("probe after ensure: %v", err)
	}
}

func TestPublicURLAndHandler(t *testing.T) {
	s := newStore(t)
	if got := s.PublicURL("1_abc_a.txt"); got != "http://localhost:8080/objects/1_abc_a.txt" {
		t.Fatalf("unexpected url: %s", got)
	}

	if err := s.Put(context.Background(), "1_abc_a.txt", strings.NewReader("hi"), 2, "text/plain"); err != nil {
		t.Fatalf("put: %v", err)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/1_abc_a.txt", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "hi" {
		t.Fatalf("unexpected response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestHandler_RefusesListingAndHiddenFiles(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if err := s.Put(ctx, "123_abc_orphan.txt", strings.NewReader("x"), 1, "text/plain"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(s.BaseDir, ".upload-123"), []byte("partial"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	if err := os.Mkdir(filepath.Join(s.BaseDir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	for _, target := range []string{"/", "/nested", "/nested/", "/.upload-123", "/missing.txt"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", target, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "orphan") {
			t.Fatalf("%s: response leaked object names: %q", target, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/123_abc_orphan.txt", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
