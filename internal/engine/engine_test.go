package engine

import (
	"os"
	"strings"
	"testing"
)

func mustOpen(t *testing.T, dir string) *LogEngine {
	t.Helper()
	e, err := Open(dir, DefaultCompactionThreshold)
	if err != nil {
		t.Fatalf("Open(%q) failed: %v", dir, err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestFreshStoreSetGet(t *testing.T) {
	e := mustOpen(t, t.TempDir())
	if err := e.Set("key1", "value1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := e.Get("key1")
	if err != nil || !ok || v != "value1" {
		t.Fatalf("Get(key1) = (%q, %v, %v), want (value1, true, nil)", v, ok, err)
	}
}

func TestOverwrite(t *testing.T) {
	e := mustOpen(t, t.TempDir())
	e.Set("key1", "value1")
	e.Set("key1", "value2")
	v, ok, _ := e.Get("key1")
	if !ok || v != "value2" {
		t.Fatalf("Get(key1) = (%q, %v), want (value2, true)", v, ok)
	}
}

func TestMissingRead(t *testing.T) {
	e := mustOpen(t, t.TempDir())
	_, ok, err := e.Get("key2")
	if err != nil || ok {
		t.Fatalf("Get(key2) on fresh store = (_, %v, %v), want (_, false, nil)", ok, err)
	}
}

func TestRemoveMissing(t *testing.T) {
	e := mustOpen(t, t.TempDir())
	err := e.Remove("key2")
	if !IsKeyNotFound(err) {
		t.Fatalf("Remove(key2) = %v, want KeyNotFoundError", err)
	}
}

func TestRemoveMissingDoesNotExtendLog(t *testing.T) {
	dir := t.TempDir()
	e := mustOpen(t, dir)
	before := e.log.size
	e.Remove("nope")
	if e.log.size != before {
		t.Fatalf("failed Remove changed log size: before=%d after=%d", before, e.log.size)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	e := mustOpen(t, dir)
	e.Set("key2", "value3")
	e.Set("key1", "value1")
	if err := e.Remove("key1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	e.Close()

	e2 := mustOpen(t, dir)
	v, ok, _ := e2.Get("key2")
	if !ok || v != "value3" {
		t.Fatalf("Get(key2) after reopen = (%q, %v), want (value3, true)", v, ok)
	}
	_, ok, _ = e2.Get("key1")
	if ok {
		t.Fatal("Get(key1) after reopen should be unbound")
	}
}

func TestRemoveTwiceFails(t *testing.T) {
	e := mustOpen(t, t.TempDir())
	e.Set("k", "v")
	if err := e.Remove("k"); err != nil {
		t.Fatalf("first Remove: %v", err)
	}
	if err := e.Remove("k"); !IsKeyNotFound(err) {
		t.Fatalf("second Remove = %v, want KeyNotFoundError", err)
	}
}

func TestSetIdempotentObservably(t *testing.T) {
	e := mustOpen(t, t.TempDir())
	e.Set("k", "v")
	e.Set("k", "v")
	v, ok, _ := e.Get("k")
	if !ok || v != "v" {
		t.Fatalf("Get(k) = (%q, %v), want (v, true)", v, ok)
	}
}

func TestEmptyValue(t *testing.T) {
	e := mustOpen(t, t.TempDir())
	e.Set("k", "")
	v, ok, _ := e.Get("k")
	if !ok || v != "" {
		t.Fatalf("Get(k) = (%q, %v), want (\"\", true)", v, ok)
	}
}

func TestLargeValue(t *testing.T) {
	e := mustOpen(t, t.TempDir())
	big := strings.Repeat("z", 100_000)
	e.Set("k", big)
	v, ok, _ := e.Get("k")
	if !ok || v != big {
		t.Fatalf("large value did not round trip, got len %d want %d", len(v), len(big))
	}
}

func TestKeyAndValueWithNewlines(t *testing.T) {
	e := mustOpen(t, t.TempDir())
	key := "k\nwith\nnewlines"
	val := "v\nwith\nnewlines\r\n"
	if err := e.Set(key, val); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := e.Get(key)
	if err != nil || !ok || v != val {
		t.Fatalf("Get = (%q, %v, %v), want (%q, true, nil)", v, ok, err, val)
	}
}

func TestCompactionPreservesValuesAndShrinksLog(t *testing.T) {
	dir := t.TempDir()
	e := mustOpen(t, dir)
	e.compactionThreshold = 100
	for i := 0; i < 2000; i++ {
		e.Set("k", "v_"+string(rune('a'+i%26)))
	}
	v, ok, err := e.Get("k")
	if err != nil || !ok {
		t.Fatalf("Get(k) after many sets = (%q, %v, %v)", v, ok, err)
	}

	if err := e.Compact(); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	info, err := os.Stat(e.log.path)
	if err != nil {
		t.Fatalf("stat log: %v", err)
	}
	// One key survives compaction: log size should be proportional to one
	// record, not to the 2000 records written.
	if info.Size() > 200 {
		t.Fatalf("log size after compaction = %d, want a small constant factor of one record", info.Size())
	}
	v, ok, err = e.Get("k")
	if err != nil || !ok {
		t.Fatalf("Get(k) after compaction = (%q, %v, %v)", v, ok, err)
	}
}

func TestReopenAfterTruncatedTrailingRecord(t *testing.T) {
	dir := t.TempDir()
	e := mustOpen(t, dir)
	e.Set("a", "1")
	e.Set("b", "2")
	e.Close()

	// Simulate a crash mid-append: truncate off the last few bytes of the
	// final (complete) record so it looks like a partial trailing write.
	path := dir + "/" + LogFileName
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)-3], 0644); err != nil {
		t.Fatalf("truncate log: %v", err)
	}

	e2 := mustOpen(t, dir)
	_, ok, _ := e2.Get("a")
	if !ok {
		t.Fatal("expected key 'a' to survive truncated trailing record")
	}
	_, ok, _ = e2.Get("b")
	if ok {
		t.Fatal("expected key 'b' (the truncated record) to be discarded")
	}
	if !e2.needsTruncate {
		t.Fatal("expected engine to schedule a truncation on next mutation")
	}
	// Next mutation should trim the garbage bytes from the file.
	if err := e2.Set("c", "3"); err != nil {
		t.Fatalf("Set after truncated reopen: %v", err)
	}
	if e2.needsTruncate {
		t.Fatal("pending truncate should have been applied")
	}
}

func TestVerifyReportsConsistentByDefault(t *testing.T) {
	e := mustOpen(t, t.TempDir())
	e.Set("a", "1")
	e.Set("b", "2")
	e.Remove("a")

	report, err := e.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !report.Consistent {
		t.Fatalf("Verify report = %+v, want Consistent", report)
	}
}

func TestSharedEngineSerializesAccess(t *testing.T) {
	e := mustOpen(t, t.TempDir())
	s := NewShared(e)
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := s.Get("k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("Get = (%q, %v, %v)", v, ok, err)
	}
	if err := s.Remove("k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove("k"); !IsKeyNotFound(err) {
		t.Fatalf("Remove(missing) = %v, want KeyNotFoundError", err)
	}
	report, err := s.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !report.Consistent {
		t.Fatalf("Verify report = %+v, want Consistent", report)
	}
}
