package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/models"
)

type ping struct{}

// capture returns a UnaryFunc that records the identity it was called with.
func capture(userID, email *string) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		*userID = GetUserID(ctx)
		*email = GetEmail(ctx)
		return connect.NewResponse(&ping{}), nil
	}
}

func requestWithToken(token string) *connect.Request[ping] {
	req := connect.NewRequest(&ping{})
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestRequireAuth(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	token, err := jwtManager.Generate(&models.User{ID: "user-1", Email: "alice@example.com"})
	require.NoError(t, err)

	var userID, email string
	handler := RequireAuth(jwtManager)(capture(&userID, &email))

	_, err = handler(context.Background(), requestWithToken(token))
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "alice@example.com", email)

	_, err = handler(context.Background(), requestWithToken(""))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	_, err = handler(context.Background(), requestWithToken("forged"))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
}

func TestOptionalAuth(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)

	var userID, email string
	handler := OptionalAuth(jwtManager)(capture(&userID, &email))

	_, err := handler(context.Background(), requestWithToken(""))
	require.NoError(t, err)
	assert.Empty(t, userID)

	_, err = handler(context.Background(), requestWithToken("forged"))
	require.NoError(t, err, "bad tokens are ignored")
	assert.Empty(t, userID)
}

func TestInterceptorsPassErrorsThrough(t *testing.T) {
	want := connect.NewError(connect.CodeNotFound, errors.New("group g1: not found"))
	failing := func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, want
	}

	for name, interceptor := range map[string]connect.UnaryInterceptorFunc{
		"logging": LoggingInterceptor(),
		"metrics": MetricsInterceptor(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := interceptor(failing)(WithUser(context.Background(), "user-1", ""), requestWithToken(""))
			assert.Same(t, want, err)
		})
	}
}
