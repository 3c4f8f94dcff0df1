// Package service implements the splitledger Connect services. Handlers
// validate input, check that the caller may touch the group or transaction,
// call the calculator and persist the result through storage.Store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"

	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/api"
)

var (
	errNotMember  = errors.New("caller is not a member of this group")
	errNotCreator = errors.New("only the creator can do this")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateMsg runs the struct tags of a request message.
func validateMsg(msg any) error {
	if err := validate.Struct(msg); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	return nil
}

func invalidArgument(format string, args ...any) error {
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf(format, args...))
}

// requireUser returns the authenticated caller's user ID.
func requireUser(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, errors.New("authentication required"))
	}
	return userID, nil
}

// storageError maps a storage error to a Connect error and logs it.
func storageError(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, storage.ErrMemberInUse), errors.Is(err, storage.ErrMemberClaimed):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, storage.ErrAlreadyMember):
		return connect.NewError(connect.CodeAlreadyExists, err)
	default:
		slog.Error(op+" failed", "error", err)
		return connect.NewError(connect.CodeInternal, fmt.Errorf("%s failed", op))
	}
}

// loadGroupForUser loads a group with its members and checks that userID
// belongs to it.
func loadGroupForUser(ctx context.Context, store storage.GroupStore, groupID, userID string) (*models.Group, error) {
	group, err := store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, storageError("GetGroup", err)
	}
	if !isMember(group, userID) {
		return nil, connect.NewError(connect.CodePermissionDenied, errNotMember)
	}
	return group, nil
}

func isMember(group *models.Group, userID string) bool {
	for _, m := range group.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// findMember returns the group member with the given ID.
func findMember(group *models.Group, memberID string) (models.Member, bool) {
	for _, m := range group.Members {
		if m.ID == memberID {
			return m, true
		}
	}
	return models.Member{}, false
}

// requireMembers checks that every ID names a member of the group.
func requireMembers(group *models.Group, memberIDs ...string) error {
	for _, id := range memberIDs {
		if _, ok := findMember(group, id); !ok {
			return invalidArgument("member %q is not in group %s", id, group.ID)
		}
	}
	return nil
}

func toAPIUser(user *models.User) *api.User {
	return &api.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt,
	}
}

func toAPIMember(m models.Member) *api.Member {
	return &api.Member{
		ID:            m.ID,
		Name:          m.Name,
		UserID:        m.UserID,
		IsPlaceholder: m.IsPlaceholder(),
		JoinedAt:      m.JoinedAt,
	}
}

func toAPIGroup(group *models.Group) *api.Group {
	members := make([]*api.Member, len(group.Members))
	for i, m := range group.Members {
		members[i] = toAPIMember(m)
	}
	return &api.Group{
		ID:        group.ID,
		Name:      group.Name,
		CreatedBy: group.CreatedBy,
		Members:   members,
		CreatedAt: group.CreatedAt,
	}
}

func toAPITransaction(txn *models.Transaction, splits []models.Split) *api.Transaction {
	out := &api.Transaction{
		ID:          txn.ID,
		GroupID:     txn.GroupID,
		Description: txn.Description,
		Amount:      txn.Amount,
		PayerID:     txn.PayerID,
		Category:    txn.Category.String(),
		Subtotal:    txn.Subtotal,
		Tax:         txn.Tax,
		Discount:    txn.Discount,
		Splits:      make([]*api.Split, len(splits)),
		CreatedBy:   txn.CreatedBy,
		Date:        txn.Date,
		CreatedAt:   txn.CreatedAt,
	}
	for _, item := range txn.Items {
		out.Items = append(out.Items, &api.Item{
			ID:         item.ID,
			Name:       item.Name,
			Price:      item.Price,
			AssignedTo: item.AssignedTo,
		})
	}
	for i, s := range splits {
		out.Splits[i] = &api.Split{MemberID: s.MemberID, AmountOwed: s.AmountOwed}
	}
	return out
}
