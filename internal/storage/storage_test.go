package storage

import "testing"

func TestCleanKey(t *testing.T) {
	valid := []string{"1700000000000_abc123_report.pdf", "nested/key.txt"}
	for _, key := range valid {
		got, err := CleanKey(key)
		if err != nil || got != key {
			t.Errorf("CleanKey(%q) = %q, %v", key, got, err)
		}
	}

	invalid := []string{"", "  ", "../etc/passwd", "a/../../b", "/abs", "a//b", "."}
	for _, key := range invalid {
		if _, err := CleanKey(key); err == nil {
			t.Errorf("CleanKey(%q) should fail", key)
		}
	}
}

func TestJoinURL(t *testing.T) {
	got := JoinURL("http://cdn.example.com/files/", "1_abc_a b.txt")
	if got != "http://cdn.example.com/files/1_abc_a%20b.txt" {
		t.Fatalf("unexpected url: %s", got)
	}
}
