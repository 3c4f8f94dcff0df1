// Package calculator implements the ledger core: allocating a transaction to
// the members who owe it, aggregating allocations into net balances, and
// planning the payments that settle those balances.
//
// All amounts are integers in the smallest currency unit. Nothing in this
// package performs I/O or keeps state, so every function is safe for
// concurrent use.
package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

// Policy turns the input of one transaction into a member -> amount owed
// mapping. EqualSplit, Itemized and SettlementPayment are the only policies.
type Policy interface {
	// Total is the header amount recorded for the transaction.
	Total() int64

	// Allocate returns how much each member owes because of the transaction.
	// The sum of the result may drift from Total by the rounding residue of
	// the policy; the drift is not corrected.
	Allocate() map[string]int64
}

// Item is a single receipt line assigned to one member.
type Item struct {
	Description string
	Price       int64
	AssignedTo  string
}

// EqualSplit charges every participant the same rounded share of Total.
type EqualSplit struct {
	Amount       int64
	Participants []string
}

// Total implements Policy.
func (s EqualSplit) Total() int64 { return s.Amount }

// Allocate assigns round(Amount / len(Participants)) to every participant.
// The remainder is not redistributed, so the allocations may sum to
// Amount ± (len(Participants) - 1). With no participants the divisor
// defaults to 1 and there is nobody to charge.
func (s EqualSplit) Allocate() map[string]int64 {
	mustNotBeNegative("amount", s.Amount)

	count := len(s.Participants)
	if count == 0 {
		count = 1
	}
	share := roundQuotient(decimal.NewFromInt(s.Amount), decimal.NewFromInt(int64(count)))

	splits := make(map[string]int64, len(s.Participants))
	for _, p := range s.Participants {
		splits[p] = share
	}
	return splits
}

// Itemized distributes tax and discount over receipt lines in proportion to
// their price.
type Itemized struct {
	Items    []Item
	Tax      int64
	Discount int64
}

// Subtotal is the sum of item prices before tax and discount.
func (s Itemized) Subtotal() int64 {
	var subtotal int64
	for _, item := range s.Items {
		mustNotBeNegative("item price", item.Price)
		subtotal += item.Price
	}
	return subtotal
}

// Total implements Policy: subtotal + tax - discount.
func (s Itemized) Total() int64 {
	return s.Subtotal() + s.Tax - s.Discount
}

// Allocate charges each item's assignee price + tax*ratio - discount*ratio,
// where ratio = price / subtotal. Each member's accumulated amount is rounded
// on its own, so the aggregate can drift by one unit per distinct assignee.
// A zero subtotal yields an empty map.
func (s Itemized) Allocate() map[string]int64 {
	mustNotBeNegative("tax", s.Tax)
	mustNotBeNegative("discount", s.Discount)

	subtotal := s.Subtotal()
	if subtotal == 0 {
		return map[string]int64{}
	}

	sub := decimal.NewFromInt(subtotal)
	adjustment := decimal.NewFromInt(s.Tax - s.Discount)

	// Accumulate numerators over subtotal so the division happens once per
	// member and stays exact.
	numerators := make(map[string]decimal.Decimal)
	order := make([]string, 0, len(s.Items))
	for _, item := range s.Items {
		price := decimal.NewFromInt(item.Price)
		acc, seen := numerators[item.AssignedTo]
		if !seen {
			acc = decimal.Zero
			order = append(order, item.AssignedTo)
		}
		numerators[item.AssignedTo] = acc.Add(price.Mul(sub)).Add(adjustment.Mul(price))
	}

	splits := make(map[string]int64, len(order))
	for _, member := range order {
		splits[member] = roundQuotient(numerators[member], sub)
	}
	return splits
}

// SettlementPayment records that the payer handed Amount to To. The receiver
// is charged the full amount, which moves both balances toward zero.
type SettlementPayment struct {
	To     string
	Amount int64
}

// Total implements Policy.
func (s SettlementPayment) Total() int64 { return s.Amount }

// Allocate implements Policy.
func (s SettlementPayment) Allocate() map[string]int64 {
	mustNotBeNegative("amount", s.Amount)
	return map[string]int64{s.To: s.Amount}
}

// CategoryOf reports the transaction category a policy produces.
func CategoryOf(p Policy) models.Category {
	if _, ok := p.(SettlementPayment); ok {
		return models.CategorySettlement
	}
	return models.CategoryExpense
}

// roundQuotient returns num/den rounded half away from zero. For the
// non-negative amounts a ledger normally sees this is round-half-up.
func roundQuotient(num, den decimal.Decimal) int64 {
	return num.DivRound(den, 0).IntPart()
}

func mustNotBeNegative(what string, v int64) {
	if v < 0 {
		panic(fmt.Sprintf("calculator: negative %s %d", what, v))
	}
}
