package calculator

import (
	"cmp"
	"slices"
)

// settledTolerance is the dead-zone around zero, absorbing allocation rounding
// drift. Balances in [-settledTolerance, settledTolerance] count as settled.
const settledTolerance = 1

// Suggestion is one proposed payment: From pays To the given Amount.
type Suggestion struct {
	From   string
	To     string
	Amount int64
}

type position struct {
	memberID string
	amount   int64
}

// SuggestSettlements proposes payments that bring every balance to zero.
//
// Algorithm (greedy matching):
//   - debtors are members below -1, creditors members above 1
//   - debtors are sorted most negative first, creditors largest first,
//     equal balances by member ID
//   - the current debtor pays the current creditor min(|debt|, credit), and
//     the cursor of whichever side is exhausted advances
//
// Suggestions are returned in the order they were matched.
func SuggestSettlements(balances map[string]int64) []Suggestion {
	var debtors, creditors []position
	for id, amount := range balances {
		switch {
		case amount < -settledTolerance:
			debtors = append(debtors, position{memberID: id, amount: amount})
		case amount > settledTolerance:
			creditors = append(creditors, position{memberID: id, amount: amount})
		}
	}

	slices.SortFunc(debtors, func(a, b position) int {
		return cmp.Or(cmp.Compare(a.amount, b.amount), cmp.Compare(a.memberID, b.memberID))
	})
	slices.SortFunc(creditors, func(a, b position) int {
		return cmp.Or(cmp.Compare(b.amount, a.amount), cmp.Compare(a.memberID, b.memberID))
	})

	suggestions := []Suggestion{}
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor := &debtors[i]
		creditor := &creditors[j]

		amount := min(-debtor.amount, creditor.amount)
		suggestions = append(suggestions, Suggestion{
			From:   debtor.memberID,
			To:     creditor.memberID,
			Amount: amount,
		})

		debtor.amount += amount
		creditor.amount -= amount

		if abs(debtor.amount) < settledTolerance {
			i++
		}
		if creditor.amount < settledTolerance {
			j++
		}
	}

	return suggestions
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
