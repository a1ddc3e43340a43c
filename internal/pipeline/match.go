package pipeline

import (
	"sort"

	"github.com/GraysonCAdams/amazon-ynab-sync/internal"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/config"
)

// candidate is a tolerance-qualifying (order, transaction) pairing.
// Candidates only live inside one Match call: generated, ranked,
// consumed, gone.
type candidate struct {
	orderIndex      int
	transactionID   string
	dateDifference  int64 // absolute milliseconds between the two dates
	priceDifference int64 // absolute milliunits between absolute amounts
}

type Matcher struct {
	dateToleranceMs     int64
	priceToleranceMilli int64
}

func NewMatcher(cfg config.Config) *Matcher {
	return &Matcher{
		dateToleranceMs:     cfg.DateToleranceMs(),
		priceToleranceMilli: cfg.PriceToleranceMilli(),
	}
}

// Match computes a maximal one-to-one pairing of orders against the
// transaction snapshot. Transactions already carrying a memo are
// considered reconciled and never enter candidacy. The result lists
// accepted matches best rank first; inputs are never mutated.
//
// Assignment is greedy over a stable (dateDifference, priceDifference)
// ascending ranking. Not globally optimal, but deterministic: the
// snapshot is walked in sorted-id order so equal-rank ties always fall
// the same way.
func (m *Matcher) Match(orders []internal.Order, transactions map[string]internal.Transaction) []internal.Match {
	matches := []internal.Match{}
	if len(orders) == 0 {
		return matches
	}

	txnIDs := make([]string, 0, len(transactions))
	for id := range transactions {
		txnIDs = append(txnIDs, id)
	}
	sort.Strings(txnIDs)

	var candidates []candidate

orderLoop:
	for orderIndex, order := range orders {
		for _, id := range txnIDs {
			txn := transactions[id]
			if txn.Annotated() {
				continue
			}

			dateDifference := abs64(order.Date.UnixMilli() - txn.Date.UnixMilli())
			priceDifference := abs64(abs64(order.Amount) - abs64(txn.Amount))

			if dateDifference <= m.dateToleranceMs && priceDifference <= m.priceToleranceMilli {
				candidates = append(candidates, candidate{
					orderIndex:      orderIndex,
					transactionID:   id,
					dateDifference:  dateDifference,
					priceDifference: priceDifference,
				})
			}

			// An exact hit cannot be outranked by any later near
			// match, so stop scanning for this order only.
			if dateDifference == 0 && priceDifference == 0 {
				continue orderLoop
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].dateDifference != candidates[j].dateDifference {
			return candidates[i].dateDifference < candidates[j].dateDifference
		}
		return candidates[i].priceDifference < candidates[j].priceDifference
	})

	// Accepting a candidate retires every other candidate touching the
	// same order or the same transaction; both sides together are what
	// keep the result a valid one-to-one assignment.
	claimedOrders := make(map[int]struct{})
	claimedTxns := make(map[string]struct{})
	for _, c := range candidates {
		if _, taken := claimedOrders[c.orderIndex]; taken {
			continue
		}
		if _, taken := claimedTxns[c.transactionID]; taken {
			continue
		}
		claimedOrders[c.orderIndex] = struct{}{}
		claimedTxns[c.transactionID] = struct{}{}
		matches = append(matches, internal.Match{
			TransactionID: c.transactionID,
			Order:         orders[c.orderIndex],
		})
	}

	return matches
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
