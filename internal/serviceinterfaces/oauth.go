package serviceinterfaces

import (
	"context"

	"campusfix/internal/models"
)

// OAuthService defines the identity provider operations used by the auth handler
type OAuthService interface {
	// AuthCodeURL builds the provider consent URL carrying state
	AuthCodeURL(provider, state string) (string, error)

	// Authenticate exchanges an authorization code for the caller's identity
	Authenticate(ctx context.Context, provider, code string) (*models.Identity, error)

	// EnabledProviders lists the providers that have client credentials configured
	EnabledProviders() []string
}
