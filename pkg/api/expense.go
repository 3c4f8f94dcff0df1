package api

// Split modes accepted by SplitInput.Mode.
const (
	ModeEqual    = "equal"
	ModeItemized = "itemized"
)

// Item is one receipt line of an itemized expense.
type Item struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name" validate:"required,max=200"`
	Price      int64  `json:"price" validate:"min=0"`
	AssignedTo string `json:"assignedTo" validate:"required"`
}

type Split struct {
	MemberID   string `json:"memberId"`
	AmountOwed int64  `json:"amountOwed"`
}

// Transaction is an expense or settlement with its derived splits.
// Category is EXPENSE or SETTLEMENT.
type Transaction struct {
	ID          string   `json:"id"`
	GroupID     string   `json:"groupId"`
	Description string   `json:"description"`
	Amount      int64    `json:"amount"`
	PayerID     string   `json:"payerId"`
	Category    string   `json:"category"`
	Subtotal    int64    `json:"subtotal,omitempty"`
	Tax         int64    `json:"tax,omitempty"`
	Discount    int64    `json:"discount,omitempty"`
	Items       []*Item  `json:"items,omitempty"`
	Splits      []*Split `json:"splits"`
	CreatedBy   string   `json:"createdBy"`
	Date        int64    `json:"date"`
	CreatedAt   int64    `json:"createdAt"`
}

// SplitInput describes how an expense is divided. Equal mode reads Amount
// and ParticipantIDs; itemized mode reads Items, Tax and Discount and
// derives the amount.
type SplitInput struct {
	Mode           string   `json:"mode" validate:"required,oneof=equal itemized"`
	Amount         int64    `json:"amount" validate:"min=0"`
	ParticipantIDs []string `json:"participantIds" validate:"omitempty,unique,dive,required"`
	Items          []*Item  `json:"items" validate:"omitempty,dive,required"`
	Tax            int64    `json:"tax" validate:"min=0"`
	Discount       int64    `json:"discount" validate:"min=0"`
}

// ExpenseInput is the editable part of an expense. A zero Date means now.
type ExpenseInput struct {
	Description string `json:"description" validate:"required,max=200"`
	PayerID     string `json:"payerId" validate:"required"`
	Date        int64  `json:"date" validate:"min=0"`
	SplitInput
}

type CreateExpenseRequest struct {
	GroupID string `json:"groupId" validate:"required"`
	ExpenseInput
}

type CreateExpenseResponse struct {
	Transaction *Transaction `json:"transaction"`
}

// UpdateExpenseRequest replaces the expense as a whole. Switching from
// itemized to equal mode clears the receipt lines.
type UpdateExpenseRequest struct {
	TransactionID string `json:"transactionId" validate:"required"`
	ExpenseInput
}

type UpdateExpenseResponse struct {
	Transaction *Transaction `json:"transaction"`
}

type DeleteTransactionRequest struct {
	TransactionID string `json:"transactionId" validate:"required"`
}

type DeleteTransactionResponse struct{}

type GetTransactionRequest struct {
	TransactionID string `json:"transactionId" validate:"required"`
}

type GetTransactionResponse struct {
	Transaction *Transaction `json:"transaction"`
}

type ListTransactionsRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

// ListTransactionsResponse lists transactions most recent first. Items are
// omitted; GetTransaction returns them.
type ListTransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
}

// SettlementInput records that FromMemberID paid ToMemberID back.
type SettlementInput struct {
	FromMemberID string `json:"fromMemberId" validate:"required"`
	ToMemberID   string `json:"toMemberId" validate:"required,nefield=FromMemberID"`
	Amount       int64  `json:"amount" validate:"gt=0"`
	Description  string `json:"description" validate:"max=200"`
	Date         int64  `json:"date" validate:"min=0"`
}

type RecordSettlementRequest struct {
	GroupID string `json:"groupId" validate:"required"`
	SettlementInput
}

type RecordSettlementResponse struct {
	Transaction *Transaction `json:"transaction"`
}

type UpdateSettlementRequest struct {
	TransactionID string `json:"transactionId" validate:"required"`
	SettlementInput
}

type UpdateSettlementResponse struct {
	Transaction *Transaction `json:"transaction"`
}

// PreviewSplitRequest computes splits without persisting anything.
type PreviewSplitRequest struct {
	SplitInput
}

// PreviewSplitResponse reports the allocation and its rounding drift
// (sum of splits minus Total).
type PreviewSplitResponse struct {
	Total  int64    `json:"total"`
	Splits []*Split `json:"splits"`
	Drift  int64    `json:"drift"`
}
