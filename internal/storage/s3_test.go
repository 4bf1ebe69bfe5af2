package storage

import (
	"strings"
	"testing"
)

func TestObjectKey(t *testing.T) {
	key := ObjectKey("/membros/", "reports", "Relatório Semanal 12.PDF")
	if !strings.HasPrefix(key, "membros/reports/") {
		t.Fatalf("unexpected prefix: %s", key)
	}
	if !strings.HasSuffix(key, "-relatrio-semanal-12.pdf") {
		t.Fatalf("unexpected file name: %s", key)
	}
}

func TestObjectKeyFallbackName(t *testing.T) {
	key := ObjectKey("", "", "../")
	if strings.Contains(key, "..") || !strings.HasSuffix(key, "-document.pdf") {
		t.Fatalf("unexpected key: %s", key)
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"a/b/c.pdf":         "c.pdf",
		`C:\docs\WEGE3.pdf`: "wege3.pdf",
		"  x y.pdf ":        "x-y.pdf",
	}
	for in, want := range cases {
		if got := sanitizeFileName(in); got != want {
			t.Errorf("sanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}
