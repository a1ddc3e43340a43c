package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GraysonCAdams/amazon-ynab-sync/internal"
)

func cacheTxn(id, payee, memo string) internal.Transaction {
	return internal.Transaction{
		ID:        id,
		Date:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local),
		Amount:    -50000,
		Memo:      memo,
		PayeeName: payee,
	}
}

func TestCacheAbsorbFilters(t *testing.T) {
	cache := NewCache("amazon")

	added := cache.Absorb([]internal.Transaction{
		cacheTxn("T1", "Amazon.com", ""),
		cacheTxn("T2", "AMZN Mktp US", ""),
		cacheTxn("T3", "Whole Foods", ""),
		cacheTxn("T4", "Amazon.com", "already noted"),
	})

	assert.Equal(t, 1, added)
	snapshot := cache.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Contains(t, snapshot, "T1")
}

func TestCacheAbsorbReplayDoesNotRecount(t *testing.T) {
	cache := NewCache("amazon")
	batch := []internal.Transaction{cacheTxn("T1", "Amazon.com", "")}

	assert.Equal(t, 1, cache.Absorb(batch))
	assert.Equal(t, 0, cache.Absorb(batch))
	assert.Equal(t, 1, cache.Len())
}

func TestCacheAbsorbEvictions(t *testing.T) {
	cache := NewCache("amazon")
	cache.Absorb([]internal.Transaction{
		cacheTxn("T1", "Amazon.com", ""),
		cacheTxn("T2", "Amazon.com", ""),
	})

	// A later delta can delete a record or carry a memo written
	// elsewhere; both remove the candidate.
	deleted := cacheTxn("T1", "Amazon.com", "")
	deleted.Deleted = true
	annotated := cacheTxn("T2", "Amazon.com", "Widget")

	added := cache.Absorb([]internal.Transaction{deleted, annotated})
	assert.Equal(t, 0, added)
	assert.Equal(t, 0, cache.Len())
}

func TestCacheMarkAnnotated(t *testing.T) {
	cache := NewCache("amazon")
	cache.Absorb([]internal.Transaction{cacheTxn("T1", "Amazon.com", "")})

	cache.MarkAnnotated("T1", "Widget, Gadget")

	snapshot := cache.Snapshot()
	require.Contains(t, snapshot, "T1")
	assert.Equal(t, "Widget, Gadget", snapshot["T1"].Memo)
	assert.True(t, snapshot["T1"].Annotated())

	// Unknown ids are a no-op.
	cache.MarkAnnotated("T9", "whatever")
	assert.Equal(t, 1, cache.Len())
}

func TestCacheSnapshotIsolation(t *testing.T) {
	cache := NewCache("amazon")
	cache.Absorb([]internal.Transaction{cacheTxn("T1", "Amazon.com", "")})

	snapshot := cache.Snapshot()
	cache.MarkAnnotated("T1", "later memo")

	assert.Equal(t, "", snapshot["T1"].Memo)
}
