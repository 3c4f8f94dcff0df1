package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

const defaultSettlementDescription = "Settlement"

// ExpenseService implements the Connect ExpenseService: expenses,
// settlements and split previews.
type ExpenseService struct {
	apiconnect.UnimplementedExpenseServiceHandler
	store storage.Store
}

// NewExpenseService creates a new ExpenseService with the given storage backend.
func NewExpenseService(store storage.Store) *ExpenseService {
	return &ExpenseService{store: store}
}

// CreateExpense records an expense split equally or by receipt items.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}

	slog.Info("CreateExpense request received",
		"group_id", req.Msg.GroupID,
		"mode", req.Msg.Mode,
		"payer_id", req.Msg.PayerID,
	)

	group, err := loadGroupForUser(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}
	policy, err := expensePolicy(group, &req.Msg.ExpenseInput)
	if err != nil {
		return nil, err
	}

	txn := newTransaction(policy)
	txn.GroupID = group.ID
	txn.Description = req.Msg.Description
	txn.PayerID = req.Msg.PayerID
	txn.CreatedBy = userID
	txn.Date = req.Msg.Date

	splits := toSplits(policy.Allocate(), models.MemberIDs(group.Members))
	if err := s.store.CreateTransaction(ctx, txn, splits); err != nil {
		return nil, storageError("CreateExpense", err)
	}
	metrics.TransactionRecorded(txn.Category)

	slog.Info("Expense created", "transaction_id", txn.ID, "amount", txn.Amount, "splits", len(splits))

	return connect.NewResponse(&api.CreateExpenseResponse{Transaction: toAPITransaction(txn, splits)}), nil
}

// UpdateExpense replaces an expense and its splits. Only the creator may
// edit, and settlements go through UpdateSettlement.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}

	existing, group, err := s.loadOwnedTransaction(ctx, req.Msg.TransactionID, models.CategoryExpense)
	if err != nil {
		return nil, err
	}
	policy, err := expensePolicy(group, &req.Msg.ExpenseInput)
	if err != nil {
		return nil, err
	}

	txn := newTransaction(policy)
	txn.ID = existing.ID
	txn.GroupID = existing.GroupID
	txn.Description = req.Msg.Description
	txn.PayerID = req.Msg.PayerID
	txn.CreatedBy = existing.CreatedBy
	txn.CreatedAt = existing.CreatedAt
	txn.Date = cmp.Or(req.Msg.Date, existing.Date)

	splits := toSplits(policy.Allocate(), models.MemberIDs(group.Members))
	if err := s.store.ReplaceTransaction(ctx, txn, splits); err != nil {
		return nil, storageError("UpdateExpense", err)
	}
	metrics.TransactionRecorded(txn.Category)

	slog.Info("Expense updated", "transaction_id", txn.ID, "amount", txn.Amount, "splits", len(splits))

	return connect.NewResponse(&api.UpdateExpenseResponse{Transaction: toAPITransaction(txn, splits)}), nil
}

// DeleteTransaction removes an expense or settlement. Only the creator may
// delete.
func (s *ExpenseService) DeleteTransaction(ctx context.Context, req *connect.Request[api.DeleteTransactionRequest]) (*connect.Response[api.DeleteTransactionResponse], error) {
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}

	txn, _, err := s.loadOwnedTransaction(ctx, req.Msg.TransactionID, 0)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteTransaction(ctx, txn.ID); err != nil {
		return nil, storageError("DeleteTransaction", err)
	}

	slog.Info("Transaction deleted", "transaction_id", txn.ID, "category", txn.Category.String())

	return connect.NewResponse(&api.DeleteTransactionResponse{}), nil
}

// GetTransaction returns a transaction with its items and splits.
func (s *ExpenseService) GetTransaction(ctx context.Context, req *connect.Request[api.GetTransactionRequest]) (*connect.Response[api.GetTransactionResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}

	txn, splits, err := s.store.LoadTransaction(ctx, req.Msg.TransactionID)
	if err != nil {
		return nil, storageError("GetTransaction", err)
	}
	if _, err := loadGroupForUser(ctx, s.store, txn.GroupID, userID); err != nil {
		return nil, err
	}

	return connect.NewResponse(&api.GetTransactionResponse{Transaction: toAPITransaction(txn, splits)}), nil
}

// ListTransactions returns a group's transactions, most recent first.
func (s *ExpenseService) ListTransactions(ctx context.Context, req *connect.Request[api.ListTransactionsRequest]) (*connect.Response[api.ListTransactionsResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}

	group, err := loadGroupForUser(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	// Headers and splits from the same snapshot
	txns, splits, err := s.store.LoadLedger(ctx, group.ID)
	if err != nil {
		return nil, storageError("ListTransactions", err)
	}

	byTxn := make(map[string][]models.Split, len(txns))
	for _, split := range splits {
		byTxn[split.TransactionID] = append(byTxn[split.TransactionID], split)
	}

	out := make([]*api.Transaction, len(txns))
	for i, txn := range txns {
		out[i] = toAPITransaction(txn, byTxn[txn.ID])
	}

	slog.Info("ListTransactions successful", "group_id", group.ID, "count", len(out))

	return connect.NewResponse(&api.ListTransactionsResponse{Transactions: out}), nil
}

// RecordSettlement records that one member paid another back.
func (s *ExpenseService) RecordSettlement(ctx context.Context, req *connect.Request[api.RecordSettlementRequest]) (*connect.Response[api.RecordSettlementResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}

	slog.Info("RecordSettlement request received",
		"group_id", req.Msg.GroupID,
		"from", req.Msg.FromMemberID,
		"to", req.Msg.ToMemberID,
		"amount", req.Msg.Amount,
	)

	group, err := loadGroupForUser(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}
	if err := requireMembers(group, req.Msg.FromMemberID, req.Msg.ToMemberID); err != nil {
		return nil, err
	}

	txn, splits := settlementTransaction(&req.Msg.SettlementInput)
	txn.GroupID = group.ID
	txn.CreatedBy = userID

	if err := s.store.CreateTransaction(ctx, txn, splits); err != nil {
		return nil, storageError("RecordSettlement", err)
	}
	metrics.TransactionRecorded(txn.Category)

	slog.Info("Settlement recorded", "transaction_id", txn.ID)

	return connect.NewResponse(&api.RecordSettlementResponse{Transaction: toAPITransaction(txn, splits)}), nil
}

// UpdateSettlement replaces a settlement. Only the creator may edit.
func (s *ExpenseService) UpdateSettlement(ctx context.Context, req *connect.Request[api.UpdateSettlementRequest]) (*connect.Response[api.UpdateSettlementResponse], error) {
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}

	existing, group, err := s.loadOwnedTransaction(ctx, req.Msg.TransactionID, models.CategorySettlement)
	if err != nil {
		return nil, err
	}
	if err := requireMembers(group, req.Msg.FromMemberID, req.Msg.ToMemberID); err != nil {
		return nil, err
	}

	txn, splits := settlementTransaction(&req.Msg.SettlementInput)
	txn.ID = existing.ID
	txn.GroupID = existing.GroupID
	txn.CreatedBy = existing.CreatedBy
	txn.CreatedAt = existing.CreatedAt
	txn.Date = cmp.Or(txn.Date, existing.Date)

	if err := s.store.ReplaceTransaction(ctx, txn, splits); err != nil {
		return nil, storageError("UpdateSettlement", err)
	}
	metrics.TransactionRecorded(txn.Category)

	slog.Info("Settlement updated", "transaction_id", txn.ID)

	return connect.NewResponse(&api.UpdateSettlementResponse{Transaction: toAPITransaction(txn, splits)}), nil
}

// PreviewSplit runs the allocator without persisting anything.
func (s *ExpenseService) PreviewSplit(ctx context.Context, req *connect.Request[api.PreviewSplitRequest]) (*connect.Response[api.PreviewSplitResponse], error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}

	policy, err := splitPolicy(&req.Msg.SplitInput)
	if err != nil {
		return nil, err
	}

	allocation := policy.Allocate()
	splits := toSplits(allocation, nil)

	resp := &api.PreviewSplitResponse{
		Total:  policy.Total(),
		Splits: make([]*api.Split, len(splits)),
	}
	var sum int64
	for i, split := range splits {
		resp.Splits[i] = &api.Split{MemberID: split.MemberID, AmountOwed: split.AmountOwed}
		sum += split.AmountOwed
	}
	resp.Drift = sum - resp.Total

	slog.Debug("PreviewSplit", "mode", req.Msg.Mode, "total", resp.Total, "drift", resp.Drift)

	return connect.NewResponse(resp), nil
}

// loadOwnedTransaction loads a transaction and its group for an edit by
// its creator. A non-zero category must match the stored one.
func (s *ExpenseService) loadOwnedTransaction(ctx context.Context, txnID string, category models.Category) (*models.Transaction, *models.Group, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, nil, err
	}

	txn, err := s.store.GetTransaction(ctx, txnID)
	if err != nil {
		return nil, nil, storageError("GetTransaction", err)
	}
	group, err := loadGroupForUser(ctx, s.store, txn.GroupID, userID)
	if err != nil {
		return nil, nil, err
	}
	if txn.CreatedBy != userID {
		return nil, nil, connect.NewError(connect.CodePermissionDenied, errNotCreator)
	}
	if category != 0 && txn.Category != category {
		return nil, nil, connect.NewError(connect.CodeFailedPrecondition,
			fmt.Errorf("transaction %s is a %s, not a %s", txn.ID, txn.Category, category))
	}
	return txn, group, nil
}

// expensePolicy builds the allocation policy of an expense and checks that
// the payer and every charged member belong to the group.
func expensePolicy(group *models.Group, in *api.ExpenseInput) (calculator.Policy, error) {
	policy, err := splitPolicy(&in.SplitInput)
	if err != nil {
		return nil, err
	}

	ids := []string{in.PayerID}
	switch p := policy.(type) {
	case calculator.EqualSplit:
		ids = append(ids, p.Participants...)
	case calculator.Itemized:
		for _, item := range p.Items {
			ids = append(ids, item.AssignedTo)
		}
	}
	if err := requireMembers(group, ids...); err != nil {
		return nil, err
	}
	return policy, nil
}

// splitPolicy turns a validated SplitInput into an allocation policy.
func splitPolicy(in *api.SplitInput) (calculator.Policy, error) {
	switch in.Mode {
	case api.ModeEqual:
		if len(in.ParticipantIDs) == 0 {
			return nil, invalidArgument("an equal split needs at least one participant")
		}
		return calculator.EqualSplit{Amount: in.Amount, Participants: in.ParticipantIDs}, nil

	case api.ModeItemized:
		if len(in.Items) == 0 {
			return nil, invalidArgument("an itemized split needs at least one item")
		}
		items := make([]calculator.Item, len(in.Items))
		for i, item := range in.Items {
			items[i] = calculator.Item{Description: item.Name, Price: item.Price, AssignedTo: item.AssignedTo}
		}
		policy := calculator.Itemized{Items: items, Tax: in.Tax, Discount: in.Discount}
		if policy.Total() < 0 {
			return nil, invalidArgument("discount %d exceeds subtotal plus tax", in.Discount)
		}
		// Tax on free items has nobody to charge, so the payer would be
		// credited with no matching debt.
		if policy.Subtotal() == 0 && policy.Total() != 0 {
			return nil, invalidArgument("tax %d on items that are all free", in.Tax)
		}
		return policy, nil

	default:
		return nil, invalidArgument("unknown split mode %q", in.Mode)
	}
}

// newTransaction fills the amount, category and receipt fields of a
// transaction from its policy.
func newTransaction(policy calculator.Policy) *models.Transaction {
	txn := &models.Transaction{
		Amount:   policy.Total(),
		Category: calculator.CategoryOf(policy),
	}
	if p, ok := policy.(calculator.Itemized); ok {
		txn.Subtotal = p.Subtotal()
		txn.Tax = p.Tax
		txn.Discount = p.Discount
		txn.Items = make([]models.Item, len(p.Items))
		for i, item := range p.Items {
			txn.Items[i] = models.Item{Name: item.Description, Price: item.Price, AssignedTo: item.AssignedTo}
		}
	}
	return txn
}

func settlementTransaction(in *api.SettlementInput) (*models.Transaction, []models.Split) {
	policy := calculator.SettlementPayment{To: in.ToMemberID, Amount: in.Amount}

	txn := newTransaction(policy)
	txn.Description = in.Description
	if txn.Description == "" {
		txn.Description = defaultSettlementDescription
	}
	txn.PayerID = in.FromMemberID
	txn.Date = in.Date

	return txn, toSplits(policy.Allocate(), nil)
}

// toSplits orders an allocation by the given member IDs. Members not in
// order follow, sorted by ID.
func toSplits(allocation map[string]int64, order []string) []models.Split {
	splits := make([]models.Split, 0, len(allocation))
	seen := make(map[string]bool, len(allocation))
	for _, id := range order {
		if amount, ok := allocation[id]; ok && !seen[id] {
			splits = append(splits, models.Split{MemberID: id, AmountOwed: amount})
			seen[id] = true
		}
	}
	for _, id := range slices.Sorted(maps.Keys(allocation)) {
		if !seen[id] {
			splits = append(splits, models.Split{MemberID: id, AmountOwed: allocation[id]})
		}
	}
	return splits
}
