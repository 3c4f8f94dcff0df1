// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitledger/internal/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMemberInUse is returned when deleting a member that paid for or
	// owes part of a transaction.
	ErrMemberInUse = errors.New("member has transactions")

	// ErrMemberClaimed is returned when claiming a member that is already
	// bound to a registered user.
	ErrMemberClaimed = errors.New("member already claimed")

	// ErrAlreadyMember is returned when a user claims a second member of a
	// group they already belong to.
	ErrAlreadyMember = errors.New("user is already a member of the group")
)

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	UserStore
	GroupStore
	TransactionStore

	// Close releases any resources held by the store.
	Close() error
}

// UserStore persists registered accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail and GetUserByID return ErrNotFound for unknown users.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// GroupStore persists groups and their members.
type GroupStore interface {
	// CreateGroup persists a new group together with group.Members.
	// IDs and timestamps are assigned by the store.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup returns the group with its members.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroupsForUser returns the groups in which userID is a member,
	// newest first, without members.
	ListGroupsForUser(ctx context.Context, userID string) ([]*models.Group, error)

	RenameGroup(ctx context.Context, groupID, name string) error

	// DeleteGroup removes the group with its members and transactions.
	DeleteGroup(ctx context.Context, groupID string) error

	// AddMember inserts a member into an existing group.
	AddMember(ctx context.Context, member *models.Member) error

	GetMember(ctx context.Context, memberID string) (*models.Member, error)

	// ClaimMember binds userID to a placeholder member. It returns
	// ErrMemberClaimed when the member already has a user and
	// ErrAlreadyMember when userID belongs to another member of the group.
	ClaimMember(ctx context.Context, memberID, userID string) error

	// ListMembers returns the members of a group in join order.
	ListMembers(ctx context.Context, groupID string) ([]models.Member, error)

	// DeleteMember removes a member. It returns ErrMemberInUse when the
	// member is the payer of any transaction or has any split.
	DeleteMember(ctx context.Context, groupID, memberID string) error
}

// TransactionStore persists transactions and their derived splits.
// Every method that writes more than one row does so atomically.
type TransactionStore interface {
	// CreateTransaction inserts the transaction, its items and its splits.
	CreateTransaction(ctx context.Context, txn *models.Transaction, splits []models.Split) error

	// ReplaceTransaction overwrites an existing transaction: old items and
	// splits are deleted, the header is updated and the new children are
	// inserted in the same database transaction.
	ReplaceTransaction(ctx context.Context, txn *models.Transaction, splits []models.Split) error

	// GetTransaction returns the transaction with its items.
	GetTransaction(ctx context.Context, txnID string) (*models.Transaction, error)

	// LoadTransaction returns the transaction with its items and splits,
	// read from one snapshot.
	LoadTransaction(ctx context.Context, txnID string) (*models.Transaction, []models.Split, error)

	// LoadLedger returns the group's transactions, most recent date first
	// and without items, together with every split in the group. Both are
	// read from one snapshot, so no split is ever paired with another
	// version of its transaction.
	LoadLedger(ctx context.Context, groupID string) ([]*models.Transaction, []models.Split, error)

	// DeleteTransaction removes the transaction with its items and splits.
	DeleteTransaction(ctx context.Context, txnID string) error
}
