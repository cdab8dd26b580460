package auth

import (
	"context"

	"github.com/mmynk/splitbaba/internal/models"
)

// Authenticator verifies who a caller is before a session is opened.
// Implementations can be swapped (password, magic link, OAuth) without
// changing the service layer.
type Authenticator interface {
	// Register creates an account. An empty displayName is derived from the email.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate returns the account matching the email and credential.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks a credential before it is stored.
	ValidateCredential(credential string) error
}
