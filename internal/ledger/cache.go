package ledger

import (
	"strings"
	"sync"

	"github.com/GraysonCAdams/amazon-ynab-sync/internal"
)

// Cache accumulates candidate transactions across polling cycles. It is
// owned by the reconcile loop, not the matcher: the matcher only ever
// reads a snapshot, and memo state is flipped here strictly after the
// external write succeeded.
type Cache struct {
	mu          sync.Mutex
	payeeFilter string
	byID        map[string]internal.Transaction
}

func NewCache(payeeFilter string) *Cache {
	return &Cache{
		payeeFilter: strings.ToLower(payeeFilter),
		byID:        make(map[string]internal.Transaction),
	}
}

// Absorb folds a delta-sync batch into the cache and returns how many
// new unannotated candidates were admitted. Deleted records evict their
// entry; transactions for other payees or with a memo already set never
// enter.
func (c *Cache) Absorb(transactions []internal.Transaction) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, t := range transactions {
		if t.Deleted {
			delete(c.byID, t.ID)
			continue
		}
		if !strings.Contains(strings.ToLower(t.PayeeName), c.payeeFilter) {
			continue
		}
		if t.Annotated() {
			delete(c.byID, t.ID)
			continue
		}
		if _, known := c.byID[t.ID]; !known {
			added++
		}
		c.byID[t.ID] = t
	}
	return added
}

// Snapshot returns a copy for one matching pass; the matcher never sees
// later mutations.
func (c *Cache) Snapshot() map[string]internal.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]internal.Transaction, len(c.byID))
	for id, t := range c.byID {
		out[id] = t
	}
	return out
}

// MarkAnnotated records a durably written memo so the transaction is
// not matched again. Call only after the ledger write succeeded.
func (c *Cache) MarkAnnotated(id, memo string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.byID[id]
	if !ok {
		return
	}
	t.Memo = memo
	c.byID[id] = t
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}
