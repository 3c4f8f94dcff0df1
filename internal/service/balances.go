package service

import (
	"context"
	"fmt"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// BalanceReport is the computed state of a group's ledger. It is never
// stored; every call recomputes it from the transactions and splits.
type BalanceReport struct {
	Group       *models.Group
	Balances    []calculator.MemberBalance
	Suggestions []calculator.Suggestion

	// Drift is the sum of all net balances, the rounding residue left by
	// allocations. Zero for a ledger without rounding.
	Drift int64
}

// MemberName returns the display name of a member of the report's group,
// falling back to the ID for unknown members.
func (r *BalanceReport) MemberName(memberID string) string {
	if m, ok := findMember(r.Group, memberID); ok {
		return m.Name
	}
	return memberID
}

// ComputeBalances loads a group's transactions and splits and runs the
// balance engine and the settlement planner over them.
func ComputeBalances(ctx context.Context, store storage.TransactionStore, group *models.Group) (*BalanceReport, error) {
	txns, splits, err := store.LoadLedger(ctx, group.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	balanceTxns := make([]calculator.TransactionForBalance, len(txns))
	for i, t := range txns {
		balanceTxns[i] = calculator.TransactionForBalance{PayerID: t.PayerID, Amount: t.Amount}
	}
	balanceSplits := make([]calculator.SplitForBalance, len(splits))
	for i, s := range splits {
		balanceSplits[i] = calculator.SplitForBalance{MemberID: s.MemberID, AmountOwed: s.AmountOwed}
	}

	summaries := calculator.SummarizeBalances(models.MemberIDs(group.Members), balanceTxns, balanceSplits)
	net := make(map[string]int64, len(summaries))
	for _, s := range summaries {
		net[s.MemberID] = s.NetBalance
	}

	return &BalanceReport{
		Group:       group,
		Balances:    summaries,
		Suggestions: calculator.SuggestSettlements(net),
		Drift:       calculator.SumBalances(net),
	}, nil
}
