package calculator

// TransactionForBalance is the part of a transaction the balance engine needs.
type TransactionForBalance struct {
	PayerID string
	Amount  int64
}

// SplitForBalance is the part of an allocation the balance engine needs.
type SplitForBalance struct {
	MemberID   string
	AmountOwed int64
}

// MemberBalance is one member's position in a group.
type MemberBalance struct {
	MemberID   string
	NetBalance int64 // Positive = owed money, Negative = owes money
	TotalPaid  int64 // Sum of transaction amounts this member fronted
	TotalOwed  int64 // Sum of allocations charged to this member
}

// SummarizeBalances computes paid, owed and net amounts for every member, in
// the order of memberIDs. Members without activity are reported with zeros.
// Transactions and splits that reference an unknown member are ignored.
func SummarizeBalances(memberIDs []string, txns []TransactionForBalance, splits []SplitForBalance) []MemberBalance {
	summaries := make([]MemberBalance, 0, len(memberIDs))
	index := make(map[string]int, len(memberIDs))
	for _, id := range memberIDs {
		if _, dup := index[id]; dup {
			continue
		}
		index[id] = len(summaries)
		summaries = append(summaries, MemberBalance{MemberID: id})
	}

	for _, t := range txns {
		if i, ok := index[t.PayerID]; ok {
			summaries[i].TotalPaid += t.Amount
		}
	}
	for _, s := range splits {
		if i, ok := index[s.MemberID]; ok {
			summaries[i].TotalOwed += s.AmountOwed
		}
	}

	for i := range summaries {
		summaries[i].NetBalance = summaries[i].TotalPaid - summaries[i].TotalOwed
	}
	return summaries
}

// CalculateBalances returns the net balance of every member:
// (sum of amounts paid) - (sum of amounts owed).
func CalculateBalances(memberIDs []string, txns []TransactionForBalance, splits []SplitForBalance) map[string]int64 {
	summaries := SummarizeBalances(memberIDs, txns, splits)
	balances := make(map[string]int64, len(summaries))
	for _, s := range summaries {
		balances[s.MemberID] = s.NetBalance
	}
	return balances
}

// SumBalances adds up all balances. For a consistent ledger the result is
// zero up to allocation rounding drift.
func SumBalances(balances map[string]int64) int64 {
	var sum int64
	for _, b := range balances {
		sum += b
	}
	return sum
}
