package s3

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
)

func TestPublicBaseURL(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit", Config{PublicBaseURL: "https://cdn.example.com/files/"}, "https://cdn.example.com/files"},
		{"path style", Config{Endpoint: "localhost:9000", Bucket: "files", PathStyle: true}, "http://localhost:9000/files"},
		{"virtual host", Config{Endpoint: "s3.amazonaws.com", Bucket: "files", UseSSL: true}, "https://files.s3.amazonaws.com"},
	}
	for _, tc := range cases {
		if got := publicBaseURL(tc.cfg); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestPublicURL_EscapesKey(t *testing.T) {
	s := &Storage{baseURL: "http://localhost:9000/files"}
	if got := s.PublicURL("1_abc_a.txt"); got != "http://localhost:9000/files/1_abc_a.txt" {
		t.Fatalf("unexpected url: %s", got)
	}
}

func TestPublicReadPolicy_IsValidJSON(t *testing.T) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(publicReadPolicy("files")), &doc); err != nil {
		t.Fatalf("policy is not valid json: %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	if !isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}) {
		t.Fatal("NoSuchKey should be not found")
	}
	if isNotFound(errors.New("connection refused")) {
		t.Fatal("transport errors are not not-found")
	}
	if !isBucketMissing(minio.ErrorResponse{Code: "NoSuchBucket"}) {
		t.Fatal("NoSuchBucket should be bucket missing")
	}
}

func TestNilStorageGuards(t *testing.T) {
	var s *Storage
	if err := s.Delete(context.Background(), "k"); err == nil {
		t.Fatal("expected error from nil storage")
	}
}
