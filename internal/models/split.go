package models

// Item represents a single line on an itemized receipt.
type Item struct {
	// ID is the unique identifier for the item (UUID format).
	ID string

	// Name is the description of the item (e.g., "Nasi Goreng").
	Name string

	// Price is the pre-tax, pre-discount price of this item.
	Price int64

	// AssignedTo is the ID of the member who consumed the item.
	AssignedTo string
}

// Split records that a member owes an amount because of a transaction.
// Splits are derived from their transaction and replaced as a whole on edit.
type Split struct {
	TransactionID string
	MemberID      string
	AmountOwed    int64
}
