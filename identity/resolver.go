package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-oauth-client/core"
	"github.com/goliatone/go-oauth-client/providers"
	"github.com/goliatone/go-oauth-client/providers/github"
	"github.com/goliatone/go-oauth-client/providers/google"
)

const (
	defaultRequestTimeout   = 10 * time.Second
	maxProfileResponseBytes = 1 << 20
	googleIssuer            = "https://accounts.google.com"
	githubIssuer            = "https://github.com"
	googleUserInfoURL       = "https://openidconnect.googleapis.com/v1/userinfo"
	githubUserInfoURL       = "https://api.github.com/user"
)

var ErrProfileNotFound = errors.New("identity: profile not found")

// ProfileNotFoundError reports that neither the id_token nor the userinfo
// endpoint produced a subject for the connected account.
type ProfileNotFoundError struct {
	ProviderType string
	Cause        error
}

func (e *ProfileNotFoundError) Error() string {
	if e == nil || e.Cause == nil {
		return ErrProfileNotFound.Error()
	}
	return ErrProfileNotFound.Error() + ": " + e.Cause.Error()
}

func (e *ProfileNotFoundError) Unwrap() error {
	if e == nil {
		return nil
	}
	if e.Cause == nil {
		return ErrProfileNotFound
	}
	return errors.Join(ErrProfileNotFound, e.Cause)
}

// ToOAuthError converts the failure into the go-errors envelope used by the
// rest of the module.
func (e *ProfileNotFoundError) ToOAuthError() *goerrors.Error {
	message := ErrProfileNotFound.Error()
	providerType := ""
	if e != nil {
		providerType = e.ProviderType
		if e.Cause != nil {
			message = e.Error()
		}
	}
	built := goerrors.New(message, goerrors.CategoryNotFound)
	if e != nil && e.Cause != nil {
		built = goerrors.Wrap(e, goerrors.CategoryNotFound, message)
		built.Category = goerrors.CategoryNotFound
	}
	return built.
		WithCode(http.StatusNotFound).
		WithTextCode(core.OAuthErrorProfileNotFound).
		WithMetadata(map[string]any{"provider_type": providerType})
}

func profileNotFound(providerType string, cause error) error {
	return &ProfileNotFoundError{ProviderType: providerType, Cause: cause}
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type UserProfile struct {
	ProviderType  string
	Issuer        string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Login         string
	PictureURL    string
	Locale        string
}

// ExternalAccountID is issuer|subject, or the bare subject when the issuer
// is unknown.
func (p UserProfile) ExternalAccountID() string {
	subject := strings.TrimSpace(p.Subject)
	if subject == "" {
		return ""
	}
	issuer := strings.TrimSpace(p.Issuer)
	if issuer == "" {
		return subject
	}
	return issuer + "|" + subject
}

// Metadata returns the profile fields that are set. Raw provider payloads are
// not carried so tokens echoed by userinfo endpoints never reach callers.
func (p UserProfile) Metadata() map[string]any {
	metadata := map[string]any{
		"issuer":         p.Issuer,
		"subject":        p.Subject,
		"email_verified": p.EmailVerified,
	}
	for key, value := range map[string]string{
		"email":       p.Email,
		"name":        p.Name,
		"login":       p.Login,
		"picture_url": p.PictureURL,
		"locale":      p.Locale,
	} {
		if value != "" {
			metadata[key] = value
		}
	}
	return metadata
}

type ProfileNormalizer func(providerType string, issuer string, payload map[string]any) UserProfile

// IDTokenVerifier validates an id_token signature and returns its claims.
// Without one the claims are decoded unverified.
type IDTokenVerifier func(ctx context.Context, providerType string, idToken string) (map[string]any, error)

type UserInfoEndpoint struct {
	URL        string
	Issuer     string
	Normalizer ProfileNormalizer
}

type Config struct {
	HTTPClient      HTTPDoer
	RequestTimeout  time.Duration
	IDTokenVerifier IDTokenVerifier
	Endpoints       map[string]UserInfoEndpoint
}

type Resolver struct {
	httpClient      HTTPDoer
	requestTimeout  time.Duration
	idTokenVerifier IDTokenVerifier
	endpoints       map[string]UserInfoEndpoint
}

func NewResolver(cfg Config) *Resolver {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	endpoints := DefaultEndpoints()
	for providerType, endpoint := range cfg.Endpoints {
		providerType = strings.TrimSpace(providerType)
		if providerType == "" {
			continue
		}
		endpoint.URL = strings.TrimSpace(endpoint.URL)
		endpoint.Issuer = strings.TrimSpace(endpoint.Issuer)
		endpoints[providerType] = endpoint
	}

	return &Resolver{
		httpClient:      httpClient,
		requestTimeout:  requestTimeout,
		idTokenVerifier: cfg.IDTokenVerifier,
		endpoints:       endpoints,
	}
}

// DefaultEndpoints returns the userinfo endpoints of the built-in presets.
func DefaultEndpoints() map[string]UserInfoEndpoint {
	return map[string]UserInfoEndpoint{
		google.ProviderType: {
			URL:    googleUserInfoURL,
			Issuer: googleIssuer,
		},
		github.ProviderType: {
			URL:        githubUserInfoURL,
			Issuer:     githubIssuer,
			Normalizer: normalizeGitHubProfile,
		},
	}
}

// Resolve prefers the id_token claims and falls back to the userinfo
// endpoint authorized with the access token.
func (r *Resolver) Resolve(ctx context.Context, providerType string, tokens core.ProviderTokens) (UserProfile, error) {
	providerType = strings.TrimSpace(providerType)
	if r == nil {
		return UserProfile{}, profileNotFound(providerType, nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	profile, tokenErr := r.profileFromIDToken(ctx, providerType, tokens)
	if tokenErr == nil {
		return profile, nil
	}

	endpoint, ok := r.endpoints[providerType]
	if !ok || endpoint.URL == "" {
		return UserProfile{}, profileNotFound(providerType, tokenErr)
	}

	payload, err := r.fetchUserInfo(ctx, endpoint.URL, tokens.AccessToken)
	if err != nil {
		return UserProfile{}, profileNotFound(providerType, err)
	}

	issuer := readString(payload["iss"])
	if issuer == "" {
		issuer = endpoint.Issuer
	}
	normalizer := endpoint.Normalizer
	if normalizer == nil {
		normalizer = normalizeOIDCProfile
	}
	profile = normalizer(providerType, issuer, payload)
	if profile.Subject == "" {
		return UserProfile{}, profileNotFound(providerType, fmt.Errorf("identity: userinfo response is missing subject"))
	}
	return profile, nil
}

// ConnectionResolver adapts the resolver to providers.OAuth2Config so
// OnConnected reports the provider account behind the tokens.
func (r *Resolver) ConnectionResolver() providers.ConnectionResolver {
	return func(ctx context.Context, providerType string, tokens core.ProviderTokens) (core.ConnectionResult, error) {
		profile, err := r.Resolve(ctx, providerType, tokens)
		if err != nil {
			var notFound *ProfileNotFoundError
			if errors.As(err, &notFound) {
				return core.ConnectionResult{}, notFound.ToOAuthError()
			}
			return core.ConnectionResult{}, err
		}
		metadata := profile.Metadata()
		if len(tokens.Scopes) > 0 {
			metadata["scopes"] = append([]string(nil), tokens.Scopes...)
		}
		return core.ConnectionResult{
			ProviderType:      providerType,
			ExternalAccountID: profile.ExternalAccountID(),
			Metadata:          metadata,
			Tokens:            tokens,
		}, nil
	}
}

func (r *Resolver) fetchUserInfo(ctx context.Context, endpoint string, accessToken string) (map[string]any, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, fmt.Errorf("identity: access token is required")
	}
	requestCtx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, maxProfileResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("identity: read profile response: %w", err)
	}
	if len(body) > maxProfileResponseBytes {
		return nil, fmt.Errorf("identity: profile response exceeds %d bytes", maxProfileResponseBytes)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("identity: profile endpoint returned status %d", res.StatusCode)
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("identity: decode profile response: %w", err)
	}
	return payload, nil
}

func (r *Resolver) profileFromIDToken(ctx context.Context, providerType string, tokens core.ProviderTokens) (UserProfile, error) {
	idToken := readString(tokens.Raw["id_token"])
	if idToken == "" {
		return UserProfile{}, fmt.Errorf("identity: id_token is missing")
	}
	var (
		claims map[string]any
		err    error
	)
	if r.idTokenVerifier != nil {
		claims, err = r.idTokenVerifier(ctx, providerType, idToken)
		if err != nil {
			return UserProfile{}, fmt.Errorf("identity: verify id_token: %w", err)
		}
	} else {
		claims, err = decodeJWTClaims(idToken)
		if err != nil {
			return UserProfile{}, err
		}
	}
	issuer := readString(claims["iss"])
	if issuer == "" {
		issuer = r.endpoints[providerType].Issuer
	}
	profile := normalizeOIDCProfile(providerType, issuer, claims)
	if profile.Subject == "" {
		return UserProfile{}, fmt.Errorf("identity: id_token is missing subject")
	}
	return profile, nil
}

func decodeJWTClaims(token string) (map[string]any, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("identity: invalid id_token format")
	}
	decoded, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("identity: decode id_token payload: %w", err)
	}
	var claims map[string]any
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return nil, fmt.Errorf("identity: decode id_token claims: %w", err)
	}
	return claims, nil
}

func normalizeOIDCProfile(providerType string, issuer string, payload map[string]any) UserProfile {
	profile := UserProfile{
		ProviderType:  providerType,
		Issuer:        strings.TrimSpace(issuer),
		Subject:       readString(payload["sub"]),
		Email:         readString(payload["email"]),
		EmailVerified: readBool(payload["email_verified"]),
		Name:          readString(payload["name"]),
		PictureURL:    readString(payload["picture"]),
		Locale:        readString(payload["locale"]),
	}
	if profile.Name == "" {
		given := readString(payload["given_name"])
		family := readString(payload["family_name"])
		profile.Name = strings.TrimSpace(given + " " + family)
	}
	return profile
}

// GitHub's user endpoint is not OIDC: the numeric id is the stable subject.
func normalizeGitHubProfile(providerType string, issuer string, payload map[string]any) UserProfile {
	login := readString(payload["login"])
	subject := readString(payload["id"])
	if subject == "" {
		subject = readString(payload["node_id"])
	}
	name := readString(payload["name"])
	if name == "" {
		name = login
	}
	return UserProfile{
		ProviderType: providerType,
		Issuer:       strings.TrimSpace(issuer),
		Subject:      subject,
		Email:        readString(payload["email"]),
		Name:         name,
		Login:        login,
		PictureURL:   readString(payload["avatar_url"]),
	}
}

func readString(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	case float64:
		return strconv.FormatInt(int64(typed), 10)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readBool(value any) bool {
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(typed))
		return err == nil && parsed
	default:
		return false
	}
}
