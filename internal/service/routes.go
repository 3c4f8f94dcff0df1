package service

import (
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

// Register mounts the three Connect services on mux. The auth service
// accepts anonymous calls so Register and Login work before a token exists;
// the group and expense services reject them.
func Register(mux *http.ServeMux, store storage.Store, authenticator auth.Authenticator, jwtManager *auth.JWTManager, logger *slog.Logger) {
	interceptors := func(authInterceptor connect.Interceptor) connect.HandlerOption {
		return connect.WithInterceptors(
			middleware.MetricsInterceptor(),
			authInterceptor,
			middleware.LoggingInterceptor(),
		)
	}
	public := interceptors(middleware.OptionalAuth(jwtManager))
	protected := interceptors(middleware.RequireAuth(jwtManager))

	authPath, authHandler := apiconnect.NewAuthServiceHandler(
		NewAuthService(authenticator, jwtManager, store, logger), public)
	mux.Handle(authPath, authHandler)

	groupPath, groupHandler := apiconnect.NewGroupServiceHandler(NewGroupService(store), protected)
	mux.Handle(groupPath, groupHandler)

	expensePath, expenseHandler := apiconnect.NewExpenseServiceHandler(NewExpenseService(store), protected)
	mux.Handle(expensePath, expenseHandler)
}
