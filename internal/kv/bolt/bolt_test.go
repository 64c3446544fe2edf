package bolt

import (
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file should exist: %v", err)
	}
}

func TestOpenInvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Fatal("opening db in nonexistent dir should fail")
	}
}

func TestSetAndGet(t *testing.T) {
	s := tempStore(t)

	if err := s.Set([]byte("k1"), []byte("v1")); err != nil {
		t.Fatal(err)
	}
	val, err := s.Get([]byte("k1"))
	if err != nil {
		t.Fatal(err)
	}
	if string(val) != "v1" {
		t.Fatalf("expected v1, got %q", val)
	}
}

func TestGetAbsent(t *testing.T) {
	s := tempStore(t)

	val, err := s.Get([]byte("missing"))
	if err != nil {
		t.Fatal(err)
	}
	if val != nil {
		t.Fatalf("absent key should yield nil, got %q", val)
	}
}

func TestOverwrite(t *testing.T) {
	s := tempStore(t)

	if err := s.Set([]byte("k"), []byte("old")); err != nil {
		t.Fatal(err)
	}
	if err := s.Set([]byte("k"), []byte("new")); err != nil {
		t.Fatal(err)
	}
	val, err := s.Get([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if string(val) != "new" {
		t.Fatalf("expected new, got %q", val)
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)

	if err := s.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete([]byte("k")); err != nil {
		t.Fatal(err)
	}
	val, err := s.Get([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if val != nil {
		t.Fatalf("deleted key should yield nil, got %q", val)
	}
}

func TestDeleteAbsent(t *testing.T) {
	s := tempStore(t)
	if err := s.Delete([]byte("never-set")); err != nil {
		t.Fatalf("deleting an absent key should not error: %v", err)
	}
}

func TestForEachPrefix(t *testing.T) {
	s := tempStore(t)

	pairs := map[string]string{
		"app_alpha": "1",
		"app_beta":  "2",
		"apq_gamma": "3",
		"zzz_delta": "4",
	}
	for k, v := range pairs {
		if err := s.Set([]byte(k), []byte(v)); err != nil {
			t.Fatal(err)
		}
	}

	got := make(map[string]string)
	err := s.ForEachPrefix([]byte("app_"), func(key, value []byte) error {
		got[string(key)] = string(value)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d: %v", len(got), got)
	}
	if got["app_alpha"] != "1" || got["app_beta"] != "2" {
		t.Fatalf("unexpected matches: %v", got)
	}
}

func TestForEachPrefixStopsOnError(t *testing.T) {
	s := tempStore(t)

	for _, k := range []string{"p_1", "p_2", "p_3"} {
		if err := s.Set([]byte(k), []byte("v")); err != nil {
			t.Fatal(err)
		}
	}

	seen := 0
	err := s.ForEachPrefix([]byte("p_"), func(key, value []byte) error {
		seen++
		return os.ErrClosed
	})
	if err == nil {
		t.Fatal("expected callback error to propagate")
	}
	if seen != 1 {
		t.Fatalf("iteration should stop after first error, saw %d keys", seen)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	val, err := s2.Get([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if string(val) != "v" {
		t.Fatalf("value should survive reopen, got %q", val)
	}
}
