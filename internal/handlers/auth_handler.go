package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"campusfix/internal/config"
	"campusfix/internal/middleware"
	"campusfix/internal/models"
	"campusfix/internal/observability"
	"campusfix/internal/serviceinterfaces"
	"campusfix/internal/tokencache"
	contextutils "campusfix/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// Login platforms
const (
	PlatformWeb    = "web"
	PlatformMobile = "mobile"
)

// Token cache key prefixes
const (
	stateKeyPrefix       = "oauth_state:"
	mobileTokenKeyPrefix = "mobile_token:"
)

// oauthState is what a login remembers until its callback arrives
type oauthState struct {
	Provider string `json:"provider"`
	Platform string `json:"platform"`
}

// AuthHandler handles authentication related HTTP requests
type AuthHandler struct {
	oauthService serviceinterfaces.OAuthService
	tokens       tokencache.Store
	config       *config.Config
	logger       *observability.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(oauthService serviceinterfaces.OAuthService, tokens tokencache.Store, cfg *config.Config, logger *observability.Logger) *AuthHandler {
	return &AuthHandler{
		oauthService: oauthService,
		tokens:       tokens,
		config:       cfg,
		logger:       logger,
	}
}

// ExchangeTokenRequest is the body of POST /auth/exchange-token
type ExchangeTokenRequest struct {
	Token string `json:"token"`
}

// Providers handles GET /auth/providers
func (h *AuthHandler) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.oauthService.EnabledProviders()})
}

// Login handles GET /auth/login/{provider}?platform=web|mobile.
// Redirects to the provider, or returns {auth_url} with ?format=json.
func (h *AuthHandler) Login(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "oauth_login")
	defer observability.FinishSpan(span, nil)

	provider := strings.ToLower(c.Param("provider"))
	platform := strings.ToLower(c.DefaultQuery("platform", PlatformWeb))
	span.SetAttributes(
		observability.AttributeProvider(provider),
		attribute.String("oauth.platform", platform),
	)

	if platform != PlatformWeb && platform != PlatformMobile {
		HandleValidationError(c, "platform", "must be web or mobile")
		return
	}

	state, err := contextutils.RandomToken(24)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	authURL, err := h.oauthService.AuthCodeURL(provider, state)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	payload, err := json.Marshal(oauthState{Provider: provider, Platform: platform})
	if err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to encode oauth state"))
		return
	}
	if err := h.tokens.Put(ctx, stateKeyPrefix+state, string(payload), h.config.Auth.StateTTL); err != nil {
		h.logger.Error(ctx, "Failed to store OAuth state", err, map[string]interface{}{"provider": provider})
		HandleAppError(c, contextutils.WrapError(contextutils.ErrServiceUnavailable, "failed to store login state"))
		return
	}

	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, gin.H{"auth_url": authURL})
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// Callback handles GET /auth/callback/{provider}?code&state
func (h *AuthHandler) Callback(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "oauth_callback")
	defer observability.FinishSpan(span, nil)

	provider := strings.ToLower(c.Param("provider"))
	span.SetAttributes(observability.AttributeProvider(provider))

	if providerErr := c.Query("error"); providerErr != "" {
		h.logger.Warn(ctx, "Identity provider returned an error", map[string]interface{}{
			"provider": provider,
			"error":    providerErr,
		})
		HandleAppError(c, contextutils.WrapErrorf(contextutils.ErrUnauthorized, "sign-in was not completed: %s", providerErr))
		return
	}

	// State is single use: a replayed or forged callback finds nothing
	state, ok := h.takeState(c, c.Query("state"))
	if !ok {
		return
	}
	if state.Provider != provider {
		h.logger.Warn(ctx, "OAuth state issued for another provider", map[string]interface{}{
			"provider":       provider,
			"state_provider": state.Provider,
		})
		HandleAppError(c, contextutils.ErrOAuthStateMismatch)
		return
	}
	span.SetAttributes(attribute.Bool("oauth.state_valid", true), attribute.String("oauth.platform", state.Platform))

	identity, err := h.oauthService.Authenticate(ctx, provider, c.Query("code"))
	if err != nil {
		h.logger.Error(ctx, "OAuth authentication failed", err, map[string]interface{}{"provider": provider})
		HandleAppError(c, err)
		return
	}

	if state.Platform == PlatformMobile {
		h.finishMobileLogin(c, identity)
		return
	}

	session := sessions.Default(c)
	middleware.SaveIdentity(session, identity)
	if err := session.Save(); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to create session"))
		return
	}

	h.logger.Info(ctx, "User signed in", map[string]interface{}{"provider": provider, "sub": identity.Sub})
	c.Redirect(http.StatusFound, h.config.Server.FrontendURL)
}

func (h *AuthHandler) takeState(c *gin.Context, state string) (*oauthState, bool) {
	ctx := c.Request.Context()
	if state == "" {
		HandleAppError(c, contextutils.ErrOAuthStateMismatch)
		return nil, false
	}

	raw, ok, err := h.tokens.Take(ctx, stateKeyPrefix+state)
	if err != nil {
		h.logger.Error(ctx, "Failed to read OAuth state", err, nil)
		HandleAppError(c, contextutils.WrapError(contextutils.ErrServiceUnavailable, "failed to read login state"))
		return nil, false
	}
	if !ok {
		h.logger.Warn(ctx, "Unknown or expired OAuth state", map[string]interface{}{"state": contextutils.MaskToken(state)})
		HandleAppError(c, contextutils.ErrOAuthStateMismatch)
		return nil, false
	}

	var s oauthState
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to decode oauth state"))
		return nil, false
	}
	return &s, true
}

// finishMobileLogin mints a one-time token and hands it to the app through its redirect URL
func (h *AuthHandler) finishMobileLogin(c *gin.Context, identity *models.Identity) {
	ctx := c.Request.Context()

	token, err := contextutils.RandomToken(32)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	payload, err := json.Marshal(identity)
	if err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to encode identity"))
		return
	}
	if err := h.tokens.Put(ctx, mobileTokenKeyPrefix+token, string(payload), h.config.Auth.MobileTokenTTL); err != nil {
		h.logger.Error(ctx, "Failed to store mobile token", err, nil)
		HandleAppError(c, contextutils.WrapError(contextutils.ErrServiceUnavailable, "failed to store login token"))
		return
	}

	c.Redirect(http.StatusFound, withQuery(h.config.Auth.MobileRedirectURL, "token", token))
}

// withQuery appends key=value to a redirect target that may already carry a query
func withQuery(target, key, value string) string {
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}

// ExchangeToken handles POST /auth/exchange-token. The token is consumed on
// first use and the caller gets a session cookie for the identity it carried.
func (h *AuthHandler) ExchangeToken(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "exchange_token")
	defer observability.FinishSpan(span, nil)

	var req ExchangeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", err.Error())
		return
	}

	raw, ok, err := h.tokens.Take(ctx, mobileTokenKeyPrefix+strings.TrimSpace(req.Token))
	if err != nil {
		h.logger.Error(ctx, "Failed to read mobile token", err, nil)
		HandleAppError(c, contextutils.WrapError(contextutils.ErrServiceUnavailable, "failed to read login token"))
		return
	}
	if !ok {
		span.SetAttributes(attribute.Bool("auth.token_valid", false))
		HandleAppError(c, contextutils.WrapError(contextutils.ErrUnauthorized, "token is unknown, expired or already used"))
		return
	}

	var identity models.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to decode identity"))
		return
	}

	session := sessions.Default(c)
	middleware.SaveIdentity(session, &identity)
	if err := session.Save(); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to create session"))
		return
	}

	c.JSON(http.StatusOK, h.me(&identity))
}

// Me handles GET /auth/me. Anonymous callers get null.
func (h *AuthHandler) Me(c *gin.Context) {
	identity := middleware.IdentityFromSession(sessions.Default(c))
	if identity == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, h.me(identity))
}

func (h *AuthHandler) me(identity *models.Identity) models.Me {
	return models.Me{Identity: *identity, IsAdmin: h.config.IsAdmin(identity.Email)}
}

// Logout handles GET /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "logout")
	defer observability.FinishSpan(span, nil)

	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to clear session"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
