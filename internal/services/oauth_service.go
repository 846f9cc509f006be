package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"campusfix/internal/config"
	"campusfix/internal/models"
	"campusfix/internal/observability"
	"campusfix/internal/serviceinterfaces"
	contextutils "campusfix/internal/utils"
)

// Provider names accepted in /auth/login/{provider}
const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// ProviderEndpoint describes where a provider issues tokens and serves profiles
type ProviderEndpoint struct {
	Endpoint    oauth2.Endpoint
	UserInfoURL string
	// EmailsURL lists addresses when the profile hides the e-mail (github only)
	EmailsURL string
	Scopes    []string
}

// DefaultProviderEndpoints returns the production endpoints for every supported provider
func DefaultProviderEndpoints() map[string]ProviderEndpoint {
	return map[string]ProviderEndpoint{
		ProviderGoogle: {
			Endpoint:    endpoints.Google,
			UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
			Scopes:      []string{"openid", "email", "profile"},
		},
		ProviderGitHub: {
			Endpoint:    endpoints.GitHub,
			UserInfoURL: "https://api.github.com/user",
			EmailsURL:   "https://api.github.com/user/emails",
			Scopes:      []string{"user:email"},
		},
	}
}

var _ serviceinterfaces.OAuthService = (*OAuthService)(nil)

// OAuthService handles OAuth authentication flows
type OAuthService struct {
	config     *config.Config
	logger     *observability.Logger
	httpClient *http.Client
	// Endpoints is exported so tests can point providers at an httptest server
	Endpoints map[string]ProviderEndpoint
}

// NewOAuthServiceWithLogger creates a new OAuth service with logger
func NewOAuthServiceWithLogger(cfg *config.Config, logger *observability.Logger) *OAuthService {
	return &OAuthService{
		config: cfg,
		logger: logger,
		// Use instrumented HTTP client for automatic tracing with explicit span options
		httpClient: &http.Client{
			Timeout: config.OAuthHTTPTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
			),
		},
		Endpoints: DefaultProviderEndpoints(),
	}
}

// EnabledProviders lists configured providers in a stable order
func (s *OAuthService) EnabledProviders() []string {
	var names []string
	for name := range s.Endpoints {
		if _, ok := s.config.OAuthProvider(name); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (s *OAuthService) oauth2Config(provider string) (*oauth2.Config, ProviderEndpoint, error) {
	name := strings.ToLower(strings.TrimSpace(provider))
	ep, known := s.Endpoints[name]
	creds, enabled := s.config.OAuthProvider(name)
	if !known || !enabled {
		return nil, ProviderEndpoint{}, contextutils.NewValidationError("provider", fmt.Sprintf("unsupported identity provider %q", provider))
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     ep.Endpoint,
		RedirectURL:  s.config.OAuthRedirectURL(name),
		Scopes:       ep.Scopes,
	}, ep, nil
}

// AuthCodeURL builds the provider consent URL carrying state
func (s *OAuthService) AuthCodeURL(provider, state string) (string, error) {
	oc, _, err := s.oauth2Config(provider)
	if err != nil {
		return "", err
	}
	return oc.AuthCodeURL(state), nil
}

// Authenticate exchanges the authorization code and loads the caller's profile
func (s *OAuthService) Authenticate(ctx context.Context, provider, code string) (result0 *models.Identity, err error) {
	ctx, span := observability.TraceOAuthFunction(ctx, "authenticate", observability.AttributeProvider(provider))
	defer observability.FinishSpan(span, &err)

	oc, ep, err := s.oauth2Config(provider)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(code) == "" {
		return nil, contextutils.NewValidationError("code", "authorization code is required")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	token, err := oc.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			span.SetAttributes(attribute.String("oauth.error", retrieveErr.ErrorCode))
			if retrieveErr.ErrorCode == "invalid_grant" {
				return nil, contextutils.WrapErrorf(contextutils.ErrOAuthCodeExpired, "please try signing in again")
			}
			s.logger.Warn(ctx, "OAuth token exchange rejected", map[string]interface{}{
				"provider":    provider,
				"status_code": statusCode(retrieveErr.Response),
				"error_code":  retrieveErr.ErrorCode,
			})
			return nil, contextutils.WrapErrorf(contextutils.ErrOAuthProviderError, "token exchange failed: %s", retrieveErr.ErrorCode)
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrOAuthProviderError, "token exchange failed: %v", err)
	}

	client := oc.Client(ctx, token)
	var identity *models.Identity
	switch strings.ToLower(provider) {
	case ProviderGitHub:
		identity, err = s.githubIdentity(ctx, client, ep)
	default:
		identity, err = s.googleIdentity(ctx, client, ep)
	}
	if err != nil {
		return nil, err
	}
	identity.Provider = strings.ToLower(provider)

	span.SetAttributes(attribute.String("user.sub", identity.Sub))
	return identity, nil
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Picture       string `json:"picture"`
}

func (s *OAuthService) googleIdentity(ctx context.Context, client *http.Client, ep ProviderEndpoint) (*models.Identity, error) {
	var info googleUserInfo
	if err := s.getJSON(ctx, client, ep.UserInfoURL, &info); err != nil {
		return nil, err
	}
	if info.Sub == "" {
		return nil, contextutils.WrapError(contextutils.ErrOAuthProviderError, "userinfo response has no subject")
	}
	// An unverified address must never reach the admin allow-list
	email := info.Email
	if !info.EmailVerified {
		if email != "" {
			s.logger.Warn(ctx, "Dropping unverified google e-mail", map[string]interface{}{"sub": info.Sub})
		}
		email = ""
	}
	return &models.Identity{Sub: info.Sub, Name: info.Name, Email: email, Picture: info.Picture}, nil
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (s *OAuthService) githubIdentity(ctx context.Context, client *http.Client, ep ProviderEndpoint) (*models.Identity, error) {
	var user githubUser
	if err := s.getJSON(ctx, client, ep.UserInfoURL, &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, contextutils.WrapError(contextutils.ErrOAuthProviderError, "github user response has no id")
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}
	email := user.Email
	// Users with a private e-mail only expose it through /user/emails
	if email == "" && ep.EmailsURL != "" {
		var emails []githubEmail
		if err := s.getJSON(ctx, client, ep.EmailsURL, &emails); err != nil {
			s.logger.Warn(ctx, "Failed to load github e-mails", map[string]interface{}{"error": err.Error()})
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
	}

	return &models.Identity{
		Sub:     strconv.FormatInt(user.ID, 10),
		Name:    name,
		Email:   email,
		Picture: user.AvatarURL,
	}, nil
}

func (s *OAuthService) getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return contextutils.WrapError(err, "failed to create userinfo request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrOAuthProviderError, "userinfo request failed: %v", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			s.logger.Warn(ctx, "Failed to close response body", map[string]interface{}{"error": cerr.Error()})
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return contextutils.WrapErrorf(contextutils.ErrOAuthProviderError, "userinfo request failed with status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrOAuthProviderError, "failed to decode userinfo: %v", err)
	}
	return nil
}

func statusCode(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
