package ingestion

import (
	"container/list"
	"fmt"

	"VaultCore/internal/observability"
)

// Deduper implements two-tier command deduplication: an in-memory LRU for
// the hot path, backed by a Postgres lookup for keys that aged out of the
// LRU (or arrived after a restart).
type Deduper struct {
	lru *DedupLRU

	dbChecker DBDedupChecker

	metrics *observability.Metrics
}

// DBDedupChecker is the interface for the Postgres dedup lookup.
type DBDedupChecker interface {
	IsDuplicate(commandType string, idempotencyKey string) (bool, error)
}

func NewDeduper(capacity int, dbChecker DBDedupChecker, metrics *observability.Metrics) *Deduper {
	return &Deduper{
		lru:       NewDedupLRU(capacity),
		dbChecker: dbChecker,
		metrics:   metrics,
	}
}

// IsDuplicate checks if the command has been processed (two-tier lookup).
func (d *Deduper) IsDuplicate(commandType string, idempotencyKey string) bool {
	compositeKey := fmt.Sprintf("%s:%s", commandType, idempotencyKey)

	// Tier 1: LRU check (hot path)
	if d.lru.Contains(compositeKey) {
		d.recordDuplicate(commandType, "lru")
		return true
	}

	// Tier 2: Postgres check (cold path)
	if d.dbChecker != nil {
		isDup, err := d.dbChecker.IsDuplicate(commandType, idempotencyKey)
		if err != nil {
			// Conservative: assume not duplicate so a DB issue cannot block
			// command processing. The engine's ledger checks still hold.
			return false
		}

		if isDup {
			d.recordDuplicate(commandType, "postgres")
			// Add to LRU so we don't hit the DB again
			d.lru.Add(compositeKey)
			return true
		}
	}

	return false
}

// WarmFromKeys preloads composite keys into the LRU tier.
func (d *Deduper) WarmFromKeys(keys []string) {
	d.lru.WarmFromKeys(keys)
}

// MarkProcessed adds the key to the LRU after successful processing.
func (d *Deduper) MarkProcessed(commandType string, idempotencyKey string) {
	compositeKey := fmt.Sprintf("%s:%s", commandType, idempotencyKey)
	d.lru.Add(compositeKey)
}

func (d *Deduper) recordDuplicate(commandType, tier string) {
	if d.metrics != nil {
		d.metrics.CommandDuplicates.WithLabelValues(commandType, tier).Inc()
	}
}

// --- LRU Implementation ---

// DedupLRU is an LRU cache for idempotency keys.
// Not thread-safe — only accessed from the single-threaded dispatch loop.
type DedupLRU struct {
	capacity int
	cache    map[string]*list.Element
	lruList  *list.List

	evictions int64
}

type lruEntry struct {
	key string
}

func NewDedupLRU(capacity int) *DedupLRU {
	return &DedupLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		lruList:  list.New(),
	}
}

// Contains checks if key exists (promotes to front).
func (lru *DedupLRU) Contains(key string) bool {
	elem, exists := lru.cache[key]
	if exists {
		lru.lruList.MoveToFront(elem)
		return true
	}
	return false
}

// Add inserts a key (or promotes if exists).
func (lru *DedupLRU) Add(key string) {
	if elem, exists := lru.cache[key]; exists {
		lru.lruList.MoveToFront(elem)
		return
	}

	entry := &lruEntry{key: key}
	elem := lru.lruList.PushFront(entry)
	lru.cache[key] = elem

	if lru.lruList.Len() > lru.capacity {
		lru.evictOldest()
	}
}

func (lru *DedupLRU) evictOldest() {
	elem := lru.lruList.Back()
	if elem != nil {
		lru.lruList.Remove(elem)
		entry := elem.Value.(*lruEntry)
		delete(lru.cache, entry.key)
		lru.evictions++
	}
}

// WarmFromKeys loads a batch of composite keys into the LRU. On restart,
// recent idempotency keys are loaded from Postgres so recently processed
// commands skip the cold-path DB lookup.
func (lru *DedupLRU) WarmFromKeys(keys []string) {
	for _, key := range keys {
		if _, exists := lru.cache[key]; exists {
			continue
		}
		entry := &lruEntry{key: key}
		elem := lru.lruList.PushFront(entry)
		lru.cache[key] = elem

		if lru.lruList.Len() > lru.capacity {
			lru.evictOldest()
		}
	}
}

// Size returns current number of entries.
func (lru *DedupLRU) Size() int {
	return lru.lruList.Len()
}

// Evictions returns total evictions (for metrics).
func (lru *DedupLRU) Evictions() int64 {
	return lru.evictions
}
