// Package middleware provides authentication and authorization middleware for the Gin web framework.
package middleware

import (
	"campusfix/internal/config"
	"campusfix/internal/models"
	contextutils "campusfix/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session keys for storing the signed-in identity
const (
	// SubKey is the provider subject of the signed-in user
	SubKey      = "sub"
	NameKey     = "name"
	EmailKey    = "email"
	PictureKey  = "picture"
	ProviderKey = "provider"

	// IdentityContextKey holds the *models.Identity on the gin context
	IdentityContextKey = "identity"
)

// SaveIdentity stores the identity in the session. The caller must call session.Save.
func SaveIdentity(session sessions.Session, identity *models.Identity) {
	session.Set(SubKey, identity.Sub)
	session.Set(NameKey, identity.Name)
	session.Set(EmailKey, identity.Email)
	session.Set(PictureKey, identity.Picture)
	session.Set(ProviderKey, identity.Provider)
}

// IdentityFromSession rebuilds the identity stored by SaveIdentity.
// Returns nil when the session holds no (or a malformed) identity.
func IdentityFromSession(session sessions.Session) *models.Identity {
	sub, _ := session.Get(SubKey).(string)
	email, _ := session.Get(EmailKey).(string)
	if sub == "" && email == "" {
		return nil
	}
	name, _ := session.Get(NameKey).(string)
	picture, _ := session.Get(PictureKey).(string)
	provider, _ := session.Get(ProviderKey).(string)
	return &models.Identity{
		Sub:      sub,
		Name:     name,
		Email:    email,
		Picture:  picture,
		Provider: provider,
	}
}

// CurrentIdentity returns the identity loaded by one of the auth middlewares,
// falling back to the session when none ran. Returns nil for anonymous callers.
func CurrentIdentity(c *gin.Context) *models.Identity {
	if v, ok := c.Get(IdentityContextKey); ok {
		if identity, ok := v.(*models.Identity); ok {
			return identity
		}
	}
	return IdentityFromSession(sessions.Default(c))
}

func loadIdentity(c *gin.Context) *models.Identity {
	identity := IdentityFromSession(sessions.Default(c))
	if identity != nil {
		c.Set(IdentityContextKey, identity)
	}
	return identity
}

func abortWith(c *gin.Context, err *contextutils.AppError) {
	StandardizeAppError(c, err)
	c.Abort()
}

// RequireAuth returns a middleware that requires authentication
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if loadIdentity(c) == nil {
			abortWith(c, contextutils.ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// RequireAdmin returns a middleware that requires authentication and an
// e-mail on the admin allow-list
func RequireAdmin(cfg *config.Config) gin.HandlerFunc {
	if cfg == nil {
		panic("RequireAdmin: config is nil")
	}

	return func(c *gin.Context) {
		identity := loadIdentity(c)
		if identity == nil {
			abortWith(c, contextutils.ErrUnauthorized)
			return
		}

		if !cfg.IsAdmin(identity.Email) {
			abortWith(c, contextutils.ErrForbidden)
			return
		}

		c.Next()
	}
}

// IssueAccess guards the issue endpoints. With features.require_auth_for_issues
// it behaves like RequireAuth, otherwise it only loads the identity when present.
func IssueAccess(cfg *config.Config) gin.HandlerFunc {
	if cfg == nil {
		panic("IssueAccess: config is nil")
	}
	if cfg.Features.RequireAuthForIssues {
		return RequireAuth()
	}
	return func(c *gin.Context) {
		loadIdentity(c)
		c.Next()
	}
}
