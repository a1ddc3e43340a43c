package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GraysonCAdams/amazon-ynab-sync/internal"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/config"
)

func testMatcher() *Matcher {
	return NewMatcher(config.Config{DateToleranceDays: 4, DollarTolerance: 0.5})
}

func day(offset int) time.Time {
	return time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local).AddDate(0, 0, offset)
}

func order(date time.Time, amount int64, items ...string) internal.Order {
	if len(items) == 0 {
		items = []string{"Widget"}
	}
	return internal.Order{Date: date, Amount: amount, Items: items}
}

func txn(id string, date time.Time, amount int64) internal.Transaction {
	return internal.Transaction{ID: id, Date: date, Amount: amount, PayeeName: "Amazon.com"}
}

func TestMatchEmptyOrders(t *testing.T) {
	matches := testMatcher().Match(nil, map[string]internal.Transaction{
		"T1": txn("T1", day(0), -50000),
	})
	assert.Empty(t, matches)
	assert.NotNil(t, matches)
}

func TestMatchExactPair(t *testing.T) {
	a := order(day(0), -50000, "Widget")
	matches := testMatcher().Match([]internal.Order{a}, map[string]internal.Transaction{
		"T1": txn("T1", day(0), -50000),
	})
	require.Len(t, matches, 1)
	assert.Equal(t, "T1", matches[0].TransactionID)
	assert.Equal(t, a, matches[0].Order)
}

func TestMatchOutsideDateTolerance(t *testing.T) {
	b := order(day(0), -30000)
	matches := testMatcher().Match([]internal.Order{b}, map[string]internal.Transaction{
		"T2": txn("T2", day(10), -30000),
	})
	assert.Empty(t, matches)
}

func TestMatchOutsidePriceTolerance(t *testing.T) {
	b := order(day(0), -30000)
	matches := testMatcher().Match([]internal.Order{b}, map[string]internal.Transaction{
		"T2": txn("T2", day(0), -30700),
	})
	assert.Empty(t, matches)
}

func TestMatchWithinBothTolerances(t *testing.T) {
	b := order(day(0), -30000)
	matches := testMatcher().Match([]internal.Order{b}, map[string]internal.Transaction{
		"T2": txn("T2", day(2), -30400),
	})
	require.Len(t, matches, 1)
	assert.Equal(t, "T2", matches[0].TransactionID)
}

func TestMatchExcludesAnnotatedTransactions(t *testing.T) {
	annotated := txn("T1", day(0), -50000)
	annotated.Memo = "already reconciled"
	matches := testMatcher().Match([]internal.Order{order(day(0), -50000)}, map[string]internal.Transaction{
		"T1": annotated,
	})
	assert.Empty(t, matches)
}

func TestMatchTwoOrdersOneTransaction(t *testing.T) {
	closer := order(day(0), -20000, "Closer")
	further := order(day(2), -20000, "Further")
	matches := testMatcher().Match([]internal.Order{further, closer}, map[string]internal.Transaction{
		"T1": txn("T1", day(0), -20000),
	})
	require.Len(t, matches, 1)
	assert.Equal(t, "T1", matches[0].TransactionID)
	assert.Equal(t, []string{"Closer"}, matches[0].Order.Items)
}

func TestMatchIsOneToOne(t *testing.T) {
	orders := []internal.Order{
		order(day(0), -10000, "A"),
		order(day(0), -10000, "B"),
		order(day(1), -10000, "C"),
	}
	transactions := map[string]internal.Transaction{
		"T1": txn("T1", day(0), -10000),
		"T2": txn("T2", day(1), -10000),
	}

	matches := testMatcher().Match(orders, transactions)
	require.Len(t, matches, 2)

	seenTxns := map[string]bool{}
	seenItems := map[string]bool{}
	for _, m := range matches {
		assert.False(t, seenTxns[m.TransactionID], "transaction claimed twice")
		assert.False(t, seenItems[m.Order.Items[0]], "order claimed twice")
		seenTxns[m.TransactionID] = true
		seenItems[m.Order.Items[0]] = true
	}
}

func TestMatchExactBeatsNear(t *testing.T) {
	exact := order(day(0), -50000, "Exact")
	near := order(day(1), -50000, "Near")
	matches := testMatcher().Match([]internal.Order{near, exact}, map[string]internal.Transaction{
		"T1": txn("T1", day(0), -50000),
		"T2": txn("T2", day(3), -50000),
	})
	require.Len(t, matches, 2)

	byItem := map[string]string{}
	for _, m := range matches {
		byItem[m.Order.Items[0]] = m.TransactionID
	}
	assert.Equal(t, "T1", byItem["Exact"])
	assert.Equal(t, "T2", byItem["Near"])
}

func TestMatchRanksDateBeforePrice(t *testing.T) {
	// Same-day with a price gap must outrank next-day with exact price.
	o := order(day(0), -20000)
	matches := testMatcher().Match([]internal.Order{o}, map[string]internal.Transaction{
		"sameDay": txn("sameDay", day(0), -20300),
		"nextDay": txn("nextDay", day(1), -20000),
	})
	require.NotEmpty(t, matches)
	assert.Equal(t, "sameDay", matches[0].TransactionID)
}

func TestMatchOrdersByRank(t *testing.T) {
	best := order(day(0), -10000, "Best")
	worse := order(day(0), -20000, "Worse")
	matches := testMatcher().Match([]internal.Order{worse, best}, map[string]internal.Transaction{
		"T1": txn("T1", day(0), -10000),
		"T2": txn("T2", day(2), -20000),
	})
	require.Len(t, matches, 2)
	assert.Equal(t, "T1", matches[0].TransactionID)
	assert.Equal(t, "T2", matches[1].TransactionID)
}

func TestMatchDoesNotMutateInputs(t *testing.T) {
	orders := []internal.Order{order(day(0), -50000, "Widget")}
	transactions := map[string]internal.Transaction{
		"T1": txn("T1", day(0), -50000),
	}

	_ = testMatcher().Match(orders, transactions)

	assert.Equal(t, "", transactions["T1"].Memo)
	assert.Equal(t, []string{"Widget"}, orders[0].Items)
}

func TestMatchDeterministicAcrossRuns(t *testing.T) {
	orders := []internal.Order{
		order(day(0), -10000, "A"),
		order(day(0), -10000, "B"),
	}
	transactions := map[string]internal.Transaction{
		"T1": txn("T1", day(0), -10000),
		"T2": txn("T2", day(0), -10000),
	}

	first := testMatcher().Match(orders, transactions)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, testMatcher().Match(orders, transactions))
	}
}
