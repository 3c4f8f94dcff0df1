package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
	"github.com/mmynk/splitledger/pkg/logging"
)

// testEnv is a running server with all services mounted the way the binary
// mounts them, plus clients for each.
type testEnv struct {
	auth     apiconnect.AuthServiceClient
	groups   apiconnect.GroupServiceClient
	expenses apiconnect.ExpenseServiceClient
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { store.Close() })

	logger := logging.New(io.Discard, slog.LevelError)
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)

	mux := http.NewServeMux()
	Register(mux, store, authenticator, jwtManager, logger)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{
		auth:     apiconnect.NewAuthServiceClient(server.Client(), server.URL),
		groups:   apiconnect.NewGroupServiceClient(server.Client(), server.URL),
		expenses: apiconnect.NewExpenseServiceClient(server.Client(), server.URL),
	}
}

// session is a registered user and the token to act as them.
type session struct {
	user  *api.User
	token string
}

func (e *testEnv) register(t *testing.T, name string) session {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:       name + "@example.com",
		DisplayName: name,
		Password:    "password-" + name,
	}))
	require.NoError(t, err, "Register failed")
	return session{user: resp.Msg.User, token: resp.Msg.Token}
}

// createGroup creates a group owned by owner with the given placeholder
// members and returns it. Members[0] is the owner.
func (e *testEnv) createGroup(t *testing.T, owner session, ghosts ...string) *api.Group {
	t.Helper()
	resp, err := e.groups.CreateGroup(context.Background(), as(owner, &api.CreateGroupRequest{
		Name:        "Bali Trip",
		MemberNames: ghosts,
	}))
	require.NoError(t, err, "CreateGroup failed")
	return resp.Msg.Group
}

// as wraps msg in a request authenticated as s.
func as[T any](s session, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+s.token)
	return req
}

func requireCode(t *testing.T, err error, code connect.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, connect.CodeOf(err), "unexpected error: %v", err)
}

func memberIDs(group *api.Group) []string {
	ids := make([]string, len(group.Members))
	for i, m := range group.Members {
		ids[i] = m.ID
	}
	return ids
}

func splitMap(splits []*api.Split) map[string]int64 {
	out := make(map[string]int64, len(splits))
	for _, s := range splits {
		out[s.MemberID] = s.AmountOwed
	}
	return out
}

// join adds a placeholder named after s through owner and has s claim it,
// the way an invited user enters a group.
func (e *testEnv) join(t *testing.T, owner, s session, groupID string) *api.Member {
	t.Helper()
	ctx := context.Background()
	added, err := e.groups.AddMember(ctx, as(owner, &api.AddMemberRequest{GroupID: groupID, Name: s.user.DisplayName}))
	require.NoError(t, err, "AddMember failed")
	claimed, err := e.groups.ClaimMember(ctx, as(s, &api.ClaimMemberRequest{GroupID: groupID, MemberID: added.Msg.Member.ID}))
	require.NoError(t, err, "ClaimMember failed")
	return claimed.Msg.Member
}

func equalExpense(groupID, payerID string, amount int64, participants ...string) *api.CreateExpenseRequest {
	return &api.CreateExpenseRequest{
		GroupID: groupID,
		ExpenseInput: api.ExpenseInput{
			Description: "Dinner",
			PayerID:     payerID,
			SplitInput: api.SplitInput{
				Mode:           api.ModeEqual,
				Amount:         amount,
				ParticipantIDs: participants,
			},
		},
	}
}
