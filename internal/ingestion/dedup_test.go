package ingestion_test

import (
	"errors"
	"fmt"
	"testing"

	"VaultCore/internal/ingestion"
)

// ============================================================================
// Test: LRU
// ============================================================================

func TestDedupLRU_AddContains(t *testing.T) {
	lru := ingestion.NewDedupLRU(4)

	if lru.Contains("draw:a") {
		t.Error("empty LRU should not contain anything")
	}
	lru.Add("draw:a")
	if !lru.Contains("draw:a") {
		t.Error("added key should be present")
	}
	if lru.Size() != 1 {
		t.Errorf("size: got %d, want 1", lru.Size())
	}
}

func TestDedupLRU_AddIsIdempotent(t *testing.T) {
	lru := ingestion.NewDedupLRU(4)
	lru.Add("draw:a")
	lru.Add("draw:a")
	if lru.Size() != 1 {
		t.Errorf("size: got %d, want 1", lru.Size())
	}
}

func TestDedupLRU_EvictsOldest(t *testing.T) {
	lru := ingestion.NewDedupLRU(3)
	lru.Add("k1")
	lru.Add("k2")
	lru.Add("k3")
	lru.Add("k4")

	if lru.Contains("k1") {
		t.Error("oldest key should have been evicted")
	}
	for _, k := range []string{"k2", "k3", "k4"} {
		if !lru.Contains(k) {
			t.Errorf("key %q should survive", k)
		}
	}
	if lru.Evictions() != 1 {
		t.Errorf("evictions: got %d, want 1", lru.Evictions())
	}
}

func TestDedupLRU_ContainsPromotes(t *testing.T) {
	lru := ingestion.NewDedupLRU(3)
	lru.Add("k1")
	lru.Add("k2")
	lru.Add("k3")

	// Touch k1 so k2 becomes the eviction candidate.
	lru.Contains("k1")
	lru.Add("k4")

	if !lru.Contains("k1") {
		t.Error("promoted key should survive eviction")
	}
	if lru.Contains("k2") {
		t.Error("least recently used key should have been evicted")
	}
}

func TestDedupLRU_WarmFromKeys(t *testing.T) {
	lru := ingestion.NewDedupLRU(8)
	lru.Add("draw:a")

	lru.WarmFromKeys([]string{"draw:a", "wipe:b", "init:c"})
	if lru.Size() != 3 {
		t.Errorf("size: got %d, want 3", lru.Size())
	}
	for _, k := range []string{"draw:a", "wipe:b", "init:c"} {
		if !lru.Contains(k) {
			t.Errorf("key %q should be warm", k)
		}
	}
}

func TestDedupLRU_WarmRespectsCapacity(t *testing.T) {
	lru := ingestion.NewDedupLRU(2)
	keys := make([]string, 5)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%d", i)
	}
	lru.WarmFromKeys(keys)
	if lru.Size() != 2 {
		t.Errorf("size: got %d, want 2", lru.Size())
	}
}

// ============================================================================
// Test: two-tier deduper
// ============================================================================

type stubDBChecker struct {
	dups    map[string]bool
	err     error
	queries int
}

func (s *stubDBChecker) IsDuplicate(commandType, idempotencyKey string) (bool, error) {
	s.queries++
	if s.err != nil {
		return false, s.err
	}
	return s.dups[commandType+":"+idempotencyKey], nil
}

func TestDeduper_MarkThenHit(t *testing.T) {
	db := &stubDBChecker{}
	d := ingestion.NewDeduper(16, db, nil)

	if d.IsDuplicate("Draw", "draw:a") {
		t.Error("fresh key should not be a duplicate")
	}
	d.MarkProcessed("Draw", "draw:a")
	if !d.IsDuplicate("Draw", "draw:a") {
		t.Error("marked key should be a duplicate")
	}
}

func TestDeduper_ColdPathBackfillsLRU(t *testing.T) {
	db := &stubDBChecker{dups: map[string]bool{"Draw:draw:a": true}}
	d := ingestion.NewDeduper(16, db, nil)

	if !d.IsDuplicate("Draw", "draw:a") {
		t.Fatal("DB-known key should be a duplicate")
	}
	queriesAfterFirst := db.queries

	// Second check must be served by the LRU.
	if !d.IsDuplicate("Draw", "draw:a") {
		t.Fatal("backfilled key should still be a duplicate")
	}
	if db.queries != queriesAfterFirst {
		t.Errorf("second lookup hit the DB: %d queries, want %d", db.queries, queriesAfterFirst)
	}
}

func TestDeduper_DBErrorFailsOpen(t *testing.T) {
	db := &stubDBChecker{err: errors.New("connection refused")}
	d := ingestion.NewDeduper(16, db, nil)

	if d.IsDuplicate("Draw", "draw:a") {
		t.Error("a DB error must not block command processing")
	}
}

func TestDeduper_NilDBChecker(t *testing.T) {
	d := ingestion.NewDeduper(16, nil, nil)
	if d.IsDuplicate("Draw", "draw:a") {
		t.Error("LRU miss with no DB checker should not be a duplicate")
	}
	d.MarkProcessed("Draw", "draw:a")
	if !d.IsDuplicate("Draw", "draw:a") {
		t.Error("marked key should be a duplicate")
	}
}

func TestDeduper_KeysScopedByType(t *testing.T) {
	d := ingestion.NewDeduper(16, nil, nil)
	d.MarkProcessed("Draw", "abc")
	if d.IsDuplicate("Wipe", "abc") {
		t.Error("same idempotency key under a different command type is distinct")
	}
}
