package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/pkg/api"
)

func TestCreateGroup(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "alice")

	group := env.createGroup(t, alice, "Budi", "Citra")

	assert.NotEmpty(t, group.ID)
	assert.Equal(t, "Bali Trip", group.Name)
	assert.Equal(t, alice.user.ID, group.CreatedBy)
	assert.NotZero(t, group.CreatedAt)

	require.Len(t, group.Members, 3)
	assert.Equal(t, "alice", group.Members[0].Name)
	assert.Equal(t, alice.user.ID, group.Members[0].UserID)
	assert.False(t, group.Members[0].IsPlaceholder)
	assert.Equal(t, "Budi", group.Members[1].Name)
	assert.True(t, group.Members[1].IsPlaceholder)
}

func TestCreateGroup_Validation(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "alice")

	tests := []struct {
		name string
		req  *api.CreateGroupRequest
	}{
		{name: "empty name", req: &api.CreateGroupRequest{Name: ""}},
		{name: "blank member name", req: &api.CreateGroupRequest{Name: "Trip", MemberNames: []string{""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.groups.CreateGroup(context.Background(), as(alice, tt.req))
			requireCode(t, err, connect.CodeInvalidArgument)
		})
	}
}

func TestGetGroup(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	mallory := env.register(t, "mallory")
	group := env.createGroup(t, alice, "Budi")

	resp, err := env.groups.GetGroup(ctx, as(alice, &api.GetGroupRequest{GroupID: group.ID}))
	require.NoError(t, err)
	assert.Equal(t, group.ID, resp.Msg.Group.ID)
	assert.Len(t, resp.Msg.Group.Members, 2)

	_, err = env.groups.GetGroup(ctx, as(mallory, &api.GetGroupRequest{GroupID: group.ID}))
	requireCode(t, err, connect.CodePermissionDenied)

	_, err = env.groups.GetGroup(ctx, as(alice, &api.GetGroupRequest{GroupID: "nonexistent-id"}))
	requireCode(t, err, connect.CodeNotFound)
}

func TestListGroups(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	env.createGroup(t, alice)
	env.createGroup(t, alice)
	env.createGroup(t, bob)

	resp, err := env.groups.ListGroups(ctx, as(alice, &api.ListGroupsRequest{}))
	require.NoError(t, err)
	assert.Len(t, resp.Msg.Groups, 2)

	resp, err = env.groups.ListGroups(ctx, as(bob, &api.ListGroupsRequest{}))
	require.NoError(t, err)
	assert.Len(t, resp.Msg.Groups, 1)
}

func TestRenameAndDeleteGroup(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	group := env.createGroup(t, alice)

	env.join(t, alice, bob, group.ID)

	t.Run("non-creator cannot rename", func(t *testing.T) {
		_, err := env.groups.RenameGroup(ctx, as(bob, &api.RenameGroupRequest{GroupID: group.ID, Name: "Mine"}))
		requireCode(t, err, connect.CodePermissionDenied)
	})

	t.Run("creator renames", func(t *testing.T) {
		resp, err := env.groups.RenameGroup(ctx, as(alice, &api.RenameGroupRequest{GroupID: group.ID, Name: "Lombok"}))
		require.NoError(t, err)
		assert.Equal(t, "Lombok", resp.Msg.Group.Name)
	})

	t.Run("non-creator cannot delete", func(t *testing.T) {
		_, err := env.groups.DeleteGroup(ctx, as(bob, &api.DeleteGroupRequest{GroupID: group.ID}))
		requireCode(t, err, connect.CodePermissionDenied)
	})

	t.Run("creator deletes with transactions", func(t *testing.T) {
		_, err := env.expenses.CreateExpense(ctx, as(alice, equalExpense(group.ID, group.Members[0].ID, 100, memberIDs(group)...)))
		require.NoError(t, err)

		_, err = env.groups.DeleteGroup(ctx, as(alice, &api.DeleteGroupRequest{GroupID: group.ID}))
		require.NoError(t, err)

		_, err = env.groups.GetGroup(ctx, as(alice, &api.GetGroupRequest{GroupID: group.ID}))
		requireCode(t, err, connect.CodeNotFound)
	})
}

func TestMembers(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	group := env.createGroup(t, alice, "Budi")
	aliceID, budiID := group.Members[0].ID, group.Members[1].ID

	added, err := env.groups.AddMember(ctx, as(alice, &api.AddMemberRequest{GroupID: group.ID, Name: "Citra"}))
	require.NoError(t, err)
	citraID := added.Msg.Member.ID
	assert.True(t, added.Msg.Member.IsPlaceholder)

	_, err = env.expenses.CreateExpense(ctx, as(alice, equalExpense(group.ID, aliceID, 100, aliceID, budiID)))
	require.NoError(t, err)

	t.Run("member with splits is kept", func(t *testing.T) {
		_, err := env.groups.RemoveMember(ctx, as(alice, &api.RemoveMemberRequest{GroupID: group.ID, MemberID: budiID}))
		requireCode(t, err, connect.CodeFailedPrecondition)
	})

	t.Run("creator is kept", func(t *testing.T) {
		_, err := env.groups.RemoveMember(ctx, as(alice, &api.RemoveMemberRequest{GroupID: group.ID, MemberID: aliceID}))
		requireCode(t, err, connect.CodeFailedPrecondition)
	})

	t.Run("idle member is removed", func(t *testing.T) {
		_, err := env.groups.RemoveMember(ctx, as(alice, &api.RemoveMemberRequest{GroupID: group.ID, MemberID: citraID}))
		require.NoError(t, err)

		resp, err := env.groups.GetGroup(ctx, as(alice, &api.GetGroupRequest{GroupID: group.ID}))
		require.NoError(t, err)
		assert.Len(t, resp.Msg.Group.Members, 2)
	})

	t.Run("unknown member", func(t *testing.T) {
		_, err := env.groups.RemoveMember(ctx, as(alice, &api.RemoveMemberRequest{GroupID: group.ID, MemberID: "nope"}))
		requireCode(t, err, connect.CodeNotFound)
	})
}

func TestGetBalances(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	group := env.createGroup(t, alice, "Budi", "Citra")
	a, b, c := group.Members[0].ID, group.Members[1].ID, group.Members[2].ID

	t.Run("empty ledger", func(t *testing.T) {
		resp, err := env.groups.GetBalances(ctx, as(alice, &api.GetBalancesRequest{GroupID: group.ID}))
		require.NoError(t, err)
		require.Len(t, resp.Msg.Balances, 3)
		for _, bal := range resp.Msg.Balances {
			assert.Zero(t, bal.NetBalance)
		}
		assert.Empty(t, resp.Msg.Suggestions)
	})

	// Budi pays 150 split three ways, Citra pays 30 for herself only.
	_, err := env.expenses.CreateExpense(ctx, as(alice, equalExpense(group.ID, b, 150, a, b, c)))
	require.NoError(t, err)
	_, err = env.expenses.CreateExpense(ctx, as(alice, equalExpense(group.ID, c, 30, c)))
	require.NoError(t, err)

	resp, err := env.groups.GetBalances(ctx, as(alice, &api.GetBalancesRequest{GroupID: group.ID}))
	require.NoError(t, err)

	got := map[string]*api.MemberBalance{}
	for _, bal := range resp.Msg.Balances {
		got[bal.MemberID] = bal
	}
	assert.Equal(t, int64(-50), got[a].NetBalance)
	assert.Equal(t, int64(100), got[b].NetBalance)
	assert.Equal(t, int64(150), got[b].TotalPaid)
	assert.Equal(t, int64(50), got[b].TotalOwed)
	assert.Equal(t, int64(-50), got[c].NetBalance)
	assert.Equal(t, "Budi", got[b].Name)

	require.Len(t, resp.Msg.Suggestions, 2)
	total := int64(0)
	for _, s := range resp.Msg.Suggestions {
		assert.Equal(t, b, s.ToMemberID)
		assert.Equal(t, "Budi", s.ToName)
		total += s.Amount
	}
	assert.Equal(t, int64(100), total)

	t.Run("recording the plan settles everyone", func(t *testing.T) {
		for _, s := range resp.Msg.Suggestions {
			_, err := env.expenses.RecordSettlement(ctx, as(alice, &api.RecordSettlementRequest{
				GroupID: group.ID,
				SettlementInput: api.SettlementInput{
					FromMemberID: s.FromMemberID,
					ToMemberID:   s.ToMemberID,
					Amount:       s.Amount,
				},
			}))
			require.NoError(t, err)
		}

		after, err := env.groups.GetBalances(ctx, as(alice, &api.GetBalancesRequest{GroupID: group.ID}))
		require.NoError(t, err)
		for _, bal := range after.Msg.Balances {
			assert.Zero(t, bal.NetBalance, "member %s", bal.Name)
		}
		assert.Empty(t, after.Msg.Suggestions)
	})
}

func TestClaimMember(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")
	group := env.createGroup(t, alice, "Budi")
	aliceID, budiID := group.Members[0].ID, group.Members[1].ID

	t.Run("outsider cannot read the group", func(t *testing.T) {
		_, err := env.groups.GetGroup(ctx, as(bob, &api.GetGroupRequest{GroupID: group.ID}))
		requireCode(t, err, connect.CodePermissionDenied)
	})

	t.Run("claim binds the caller", func(t *testing.T) {
		resp, err := env.groups.ClaimMember(ctx, as(bob, &api.ClaimMemberRequest{GroupID: group.ID, MemberID: budiID}))
		require.NoError(t, err)
		assert.Equal(t, bob.user.ID, resp.Msg.Member.UserID)
		assert.Equal(t, "Budi", resp.Msg.Member.Name)
		assert.False(t, resp.Msg.Member.IsPlaceholder)
		assert.Len(t, resp.Msg.Group.Members, 2)

		listed, err := env.groups.ListGroups(ctx, as(bob, &api.ListGroupsRequest{}))
		require.NoError(t, err)
		require.Len(t, listed.Msg.Groups, 1)
		assert.Equal(t, group.ID, listed.Msg.Groups[0].ID)
	})

	t.Run("claimed member acts in the group", func(t *testing.T) {
		_, err := env.expenses.CreateExpense(ctx, as(bob, equalExpense(group.ID, budiID, 100, aliceID, budiID)))
		require.NoError(t, err)

		_, err = env.groups.RenameGroup(ctx, as(bob, &api.RenameGroupRequest{GroupID: group.ID, Name: "Mine"}))
		requireCode(t, err, connect.CodePermissionDenied)
	})

	citra, err := env.groups.AddMember(ctx, as(alice, &api.AddMemberRequest{GroupID: group.ID, Name: "Citra"}))
	require.NoError(t, err)
	citraID := citra.Msg.Member.ID

	tests := []struct {
		name     string
		caller   session
		groupID  string
		memberID string
		want     connect.Code
	}{
		{"already claimed", carol, group.ID, budiID, connect.CodeFailedPrecondition},
		{"registered member", carol, group.ID, aliceID, connect.CodeFailedPrecondition},
		{"second member for the same user", bob, group.ID, citraID, connect.CodeAlreadyExists},
		{"member of another group", carol, "other-group", citraID, connect.CodeNotFound},
		{"unknown member", carol, group.ID, "nope", connect.CodeNotFound},
		{"missing member id", carol, group.ID, "", connect.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.groups.ClaimMember(ctx, as(tt.caller, &api.ClaimMemberRequest{GroupID: tt.groupID, MemberID: tt.memberID}))
			requireCode(t, err, tt.want)
		})
	}

	t.Run("requires a token", func(t *testing.T) {
		_, err := env.groups.ClaimMember(ctx, connect.NewRequest(&api.ClaimMemberRequest{GroupID: group.ID, MemberID: citraID}))
		requireCode(t, err, connect.CodeUnauthenticated)
	})
}
