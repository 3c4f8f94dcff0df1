// Package auth handles user accounts and session tokens: bcrypt password
// checks and HS256 JWTs carrying the user ID.
package auth

import (
	"context"

	"github.com/mmynk/splitledger/internal/models"
)

// Authenticator registers and verifies accounts. PasswordAuthenticator is
// the only implementation; the service layer depends on this interface.
type Authenticator interface {
	// Register creates an account. It returns ErrEmailExists for a taken
	// email and the ValidateCredential error for an unacceptable credential.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate returns the account matching email and credential, or
	// ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	ValidateCredential(credential string) error
}

var _ Authenticator = (*PasswordAuthenticator)(nil)
