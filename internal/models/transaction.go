package models

import "fmt"

// Category distinguishes ordinary expenses from repayments between members.
// Both share the same storage shape but drive different allocations.
type Category int

const (
	// CategoryExpense is money spent on behalf of the group, split equally
	// or by receipt items.
	CategoryExpense Category = iota + 1

	// CategorySettlement is a repayment: the payer is the member who paid
	// back and a single split charges the receiving member.
	CategorySettlement
)

// String returns the persisted name of the category.
func (c Category) String() string {
	switch c {
	case CategoryExpense:
		return "EXPENSE"
	case CategorySettlement:
		return "SETTLEMENT"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "EXPENSE":
		return CategoryExpense, nil
	case "SETTLEMENT":
		return CategorySettlement, nil
	default:
		return 0, fmt.Errorf("unknown category %q", s)
	}
}

// Transaction is a single financial event in a group.
type Transaction struct {
	// ID is the unique identifier for the transaction (UUID format).
	ID string

	// GroupID is the group this transaction belongs to.
	GroupID string

	// Description is the human-readable label (e.g., "Dinner", "Debt repayment").
	Description string

	// Amount is the total the payer fronted. For itemized transactions
	// Amount == Subtotal + Tax - Discount.
	Amount int64

	// PayerID is the member who paid.
	PayerID string

	// Category is EXPENSE or SETTLEMENT.
	Category Category

	// Subtotal, Tax and Discount are set for itemized expenses only.
	Subtotal int64
	Tax      int64
	Discount int64

	// Items are the receipt lines of an itemized expense.
	Items []Item

	// CreatedBy is the user ID who recorded the transaction. Only this user
	// may edit or delete it.
	CreatedBy string

	// Date is the Unix timestamp the event happened.
	Date int64

	// CreatedAt is the Unix timestamp when the transaction was recorded.
	CreatedAt int64
}

// IsItemized reports whether the transaction carries receipt lines.
func (t *Transaction) IsItemized() bool {
	return len(t.Items) > 0
}
