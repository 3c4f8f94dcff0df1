package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := New(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { store.Close() })
	return store
}

// seedGroup creates a user and a group with that user plus the named
// placeholder members. Members are returned in join order.
func seedGroup(t *testing.T, store *SQLiteStore, ghosts ...string) (*models.User, *models.Group) {
	t.Helper()
	ctx := context.Background()

	user := models.NewUser(t.Name()+"@example.com", "Alice", "hash")
	require.NoError(t, store.CreateUser(ctx, user))

	members := []models.Member{{Name: "Alice", UserID: user.ID}}
	for _, name := range ghosts {
		members = append(members, models.Member{Name: name})
	}
	group := &models.Group{Name: "Bali Trip", CreatedBy: user.ID, Members: members}
	require.NoError(t, store.CreateGroup(ctx, group))
	return user, group
}

func TestUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := models.NewUser("alice@example.com", "Alice", "hash")
	require.NoError(t, store.CreateUser(ctx, user))
	assert.NotEmpty(t, user.ID, "expected user ID to be generated")

	byEmail, err := store.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user, byEmail)

	byID, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", byID.DisplayName)

	_, err = store.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	dup := models.NewUser("alice@example.com", "Other", "hash")
	assert.Error(t, store.CreateUser(ctx, dup), "email must be unique")
}

func TestGroups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, group := seedGroup(t, store, "Budi", "Citra")

	t.Run("CreateGroup assigns IDs", func(t *testing.T) {
		assert.NotEmpty(t, group.ID)
		assert.NotZero(t, group.CreatedAt)
		for _, m := range group.Members {
			assert.NotEmpty(t, m.ID)
			assert.Equal(t, group.ID, m.GroupID)
		}
	})

	t.Run("GetGroup loads members in join order", func(t *testing.T) {
		got, err := store.GetGroup(ctx, group.ID)
		require.NoError(t, err)

		assert.Equal(t, "Bali Trip", got.Name)
		require.Len(t, got.Members, 3)
		assert.Equal(t, []string{"Alice", "Budi", "Citra"},
			[]string{got.Members[0].Name, got.Members[1].Name, got.Members[2].Name})
		assert.False(t, got.Members[0].IsPlaceholder())
		assert.True(t, got.Members[1].IsPlaceholder())
	})

	t.Run("ListGroupsForUser", func(t *testing.T) {
		groups, err := store.ListGroupsForUser(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, group.ID, groups[0].ID)

		none, err := store.ListGroupsForUser(ctx, "stranger")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("RenameGroup", func(t *testing.T) {
		require.NoError(t, store.RenameGroup(ctx, group.ID, "Lombok Trip"))
		got, err := store.GetGroup(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, "Lombok Trip", got.Name)

		assert.ErrorIs(t, store.RenameGroup(ctx, "missing", "x"), storage.ErrNotFound)
	})

	t.Run("AddMember and GetMember", func(t *testing.T) {
		member := &models.Member{GroupID: group.ID, Name: "Dewi"}
		require.NoError(t, store.AddMember(ctx, member))

		got, err := store.GetMember(ctx, member.ID)
		require.NoError(t, err)
		assert.Equal(t, "Dewi", got.Name)
		assert.True(t, got.IsPlaceholder())

		err = store.AddMember(ctx, &models.Member{GroupID: "missing", Name: "Eka"})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("GetGroup returns ErrNotFound", func(t *testing.T) {
		_, err := store.GetGroup(ctx, "nonexistent-id")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestTransactions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, group := seedGroup(t, store, "Budi", "Citra")
	alice, budi, citra := group.Members[0].ID, group.Members[1].ID, group.Members[2].ID

	txn := &models.Transaction{
		GroupID:     group.ID,
		Description: "Dinner",
		Amount:      110,
		PayerID:     alice,
		Category:    models.CategoryExpense,
		Subtotal:    100,
		Tax:         10,
		Items: []models.Item{
			{Name: "Nasi Goreng", Price: 60, AssignedTo: budi},
			{Name: "Es Teh", Price: 40, AssignedTo: citra},
		},
		CreatedBy: user.ID,
	}
	splits := []models.Split{
		{MemberID: budi, AmountOwed: 66},
		{MemberID: citra, AmountOwed: 44},
	}

	t.Run("CreateTransaction", func(t *testing.T) {
		require.NoError(t, store.CreateTransaction(ctx, txn, splits))
		assert.NotEmpty(t, txn.ID)
		assert.NotZero(t, txn.Date)

		got, err := store.GetTransaction(ctx, txn.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CategoryExpense, got.Category)
		assert.Equal(t, int64(110), got.Amount)
		require.Len(t, got.Items, 2)
		assert.Equal(t, "Nasi Goreng", got.Items[0].Name)
		assert.Equal(t, budi, got.Items[0].AssignedTo)

		_, stored, err := store.LoadTransaction(ctx, txn.ID)
		require.NoError(t, err)
		assert.Len(t, stored, 2)
	})

	t.Run("ReplaceTransaction swaps children", func(t *testing.T) {
		edited := *txn
		edited.Description = "Dinner (equal)"
		edited.Amount = 90
		edited.Subtotal, edited.Tax, edited.Discount = 0, 0, 0
		edited.Items = nil
		newSplits := []models.Split{
			{MemberID: alice, AmountOwed: 30},
			{MemberID: budi, AmountOwed: 30},
			{MemberID: citra, AmountOwed: 30},
		}
		require.NoError(t, store.ReplaceTransaction(ctx, &edited, newSplits))

		got, err := store.GetTransaction(ctx, txn.ID)
		require.NoError(t, err)
		assert.Equal(t, "Dinner (equal)", got.Description)
		assert.Equal(t, int64(90), got.Amount)
		assert.Empty(t, got.Items)
		assert.Equal(t, txn.CreatedAt, got.CreatedAt)

		_, stored, err := store.LoadTransaction(ctx, txn.ID)
		require.NoError(t, err)
		assert.Len(t, stored, 3)
		assert.Equal(t, int64(90), sumOwed(stored))
	})

	t.Run("ReplaceTransaction is atomic", func(t *testing.T) {
		broken := *txn
		broken.Amount = 500
		// Unknown member violates the foreign key on the second insert.
		err := store.ReplaceTransaction(ctx, &broken, []models.Split{
			{MemberID: alice, AmountOwed: 250},
			{MemberID: "not-a-member", AmountOwed: 250},
		})
		require.Error(t, err)

		got, err := store.GetTransaction(ctx, txn.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(90), got.Amount, "header must be rolled back")

		_, stored, err := store.LoadTransaction(ctx, txn.ID)
		require.NoError(t, err)
		assert.Len(t, stored, 3, "old splits must survive a failed replace")
	})

	t.Run("ReplaceTransaction returns ErrNotFound", func(t *testing.T) {
		missing := *txn
		missing.ID = "missing"
		assert.ErrorIs(t, store.ReplaceTransaction(ctx, &missing, nil), storage.ErrNotFound)
	})

	t.Run("settlement and listing", func(t *testing.T) {
		settlement := &models.Transaction{
			GroupID:     group.ID,
			Description: "Debt repayment",
			Amount:      30,
			PayerID:     budi,
			Category:    models.CategorySettlement,
			CreatedBy:   user.ID,
			Date:        txn.Date + 60,
		}
		require.NoError(t, store.CreateTransaction(ctx, settlement, []models.Split{{MemberID: alice, AmountOwed: 30}}))

		txns, all, err := store.LoadLedger(ctx, group.ID)
		require.NoError(t, err)
		require.Len(t, txns, 2)
		assert.Equal(t, settlement.ID, txns[0].ID, "most recent first")
		assert.Equal(t, models.CategorySettlement, txns[0].Category)
		assert.Len(t, all, 4)
	})

	t.Run("DeleteMember refuses members with activity", func(t *testing.T) {
		err := store.DeleteMember(ctx, group.ID, budi)
		assert.ErrorIs(t, err, storage.ErrMemberInUse)

		idle := &models.Member{GroupID: group.ID, Name: "Idle"}
		require.NoError(t, store.AddMember(ctx, idle))
		require.NoError(t, store.DeleteMember(ctx, group.ID, idle.ID))
		_, err = store.GetMember(ctx, idle.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("DeleteTransaction removes splits", func(t *testing.T) {
		require.NoError(t, store.DeleteTransaction(ctx, txn.ID))

		_, err := store.GetTransaction(ctx, txn.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		var orphans int
		require.NoError(t, store.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM transaction_splits WHERE transaction_id = ?", txn.ID).Scan(&orphans))
		assert.Zero(t, orphans)

		assert.ErrorIs(t, store.DeleteTransaction(ctx, txn.ID), storage.ErrNotFound)
	})

	t.Run("DeleteGroup cascades", func(t *testing.T) {
		require.NoError(t, store.DeleteGroup(ctx, group.ID))

		_, err := store.GetGroup(ctx, group.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		txns, splits, err := store.LoadLedger(ctx, group.ID)
		require.NoError(t, err)
		assert.Empty(t, txns)
		assert.Empty(t, splits)

		members, err := store.ListMembers(ctx, group.ID)
		require.NoError(t, err)
		assert.Empty(t, members)
	})
}

func sumOwed(splits []models.Split) int64 {
	var sum int64
	for _, s := range splits {
		sum += s.AmountOwed
	}
	return sum
}

func TestLoadLedger_ConcurrentReplace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, group := seedGroup(t, store, "Budi")
	alice, budi := group.Members[0].ID, group.Members[1].ID

	txn := &models.Transaction{
		GroupID:     group.ID,
		Description: "Taxi",
		Amount:      100,
		PayerID:     alice,
		Category:    models.CategoryExpense,
		CreatedBy:   user.ID,
	}
	require.NoError(t, store.CreateTransaction(ctx, txn, []models.Split{
		{MemberID: alice, AmountOwed: 50},
		{MemberID: budi, AmountOwed: 50},
	}))

	// Start an edit after the headers are read and before the splits are.
	var wg sync.WaitGroup
	var replaceErr error
	store.betweenLedgerReads = func() {
		edited := *txn
		edited.Amount = 1000
		wg.Add(1)
		go func() {
			defer wg.Done()
			replaceErr = store.ReplaceTransaction(ctx, &edited, []models.Split{
				{MemberID: alice, AmountOwed: 500},
				{MemberID: budi, AmountOwed: 500},
			})
		}()
		time.Sleep(50 * time.Millisecond)
	}

	txns, splits, err := store.LoadLedger(ctx, group.ID)
	require.NoError(t, err)
	wg.Wait()
	require.NoError(t, replaceErr)
	store.betweenLedgerReads = nil

	require.Len(t, txns, 1)
	assert.Equal(t, int64(100), txns[0].Amount)
	assert.Equal(t, int64(100), sumOwed(splits), "splits must belong to the header that was read")

	txns, splits, err = store.LoadLedger(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, int64(1000), txns[0].Amount)
	assert.Equal(t, int64(1000), sumOwed(splits))
}

func TestClaimMember(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, group := seedGroup(t, store, "Budi", "Citra")
	alice, budi, citra := group.Members[0], group.Members[1], group.Members[2]

	bob := models.NewUser("bob@example.com", "Bob", "hash")
	require.NoError(t, store.CreateUser(ctx, bob))

	require.NoError(t, store.ClaimMember(ctx, budi.ID, bob.ID))

	got, err := store.GetMember(ctx, budi.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.UserID)
	assert.Equal(t, "Budi", got.Name, "the placeholder name is kept")

	groups, err := store.ListGroupsForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, group.ID, groups[0].ID)

	tests := []struct {
		name     string
		memberID string
		userID   string
		wantErr  error
	}{
		{"claimed twice", budi.ID, bob.ID, storage.ErrMemberClaimed},
		{"registered member", alice.ID, bob.ID, storage.ErrMemberClaimed},
		{"second member in group", citra.ID, bob.ID, storage.ErrAlreadyMember},
		{"unknown member", "missing", bob.ID, storage.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, store.ClaimMember(ctx, tt.memberID, tt.userID), tt.wantErr)
		})
	}

	still, err := store.GetMember(ctx, citra.ID)
	require.NoError(t, err)
	assert.True(t, still.IsPlaceholder())
}
