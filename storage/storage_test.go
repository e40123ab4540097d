package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() unexpected error = %v", err)
	}
	if _, ok := s.Get(KeyToken); ok {
		t.Fatal("Get(token) on empty store reported a value")
	}

	if err := s.Set(KeyToken, "abc"); err != nil {
		t.Fatalf("Set() unexpected error = %v", err)
	}
	if err := s.Set(KeyCurrency, "EUR"); err != nil {
		t.Fatalf("Set() unexpected error = %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() unexpected error = %v", err)
	}
	if v, _ := reopened.Get(KeyToken); v != "abc" {
		t.Errorf("Get(token) = %q, want %q", v, "abc")
	}
	if v, _ := reopened.Get(KeyCurrency); v != "EUR" {
		t.Errorf("Get(currency) = %q, want %q", v, "EUR")
	}

	if err := reopened.Delete(KeyToken, KeyUsername); err != nil {
		t.Fatalf("Delete() unexpected error = %v", err)
	}
	again, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() unexpected error = %v", err)
	}
	if _, ok := again.Get(KeyToken); ok {
		t.Error("token survived Delete")
	}
	if v, _ := again.Get(KeyCurrency); v != "EUR" {
		t.Errorf("Delete(token) removed currency, got %q", v)
	}
}

func TestFilePermissions(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() unexpected error = %v", err)
	}
	if err := s.Set(KeyToken, "secret"); err != nil {
		t.Fatalf("Set() unexpected error = %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, fileName))
	if err != nil {
		t.Fatalf("Stat() unexpected error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("preferences file mode = %o, want 600", perm)
	}
}

func TestOpenCorrupted(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, fileName), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(dir); err == nil {
		t.Error("Open() on corrupted file returned no error")
	}
}
