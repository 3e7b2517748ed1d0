package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goliatone/go-oauth-client/core"
)

const (
	ProviderType = "plaid"

	SandboxBaseURL     = "https://sandbox.plaid.com"
	DevelopmentBaseURL = "https://development.plaid.com"
	ProductionBaseURL  = "https://production.plaid.com"

	// ExtraAccountID is the exchange extra carrying the account selected in
	// Link.
	ExtraAccountID = "account_id"

	defaultRequestTimeout = 30 * time.Second
	maxResponseBodyBytes  = 1 << 20
)

type Config struct {
	ClientID       string        `validate:"required"`
	Secret         string        `validate:"required"`
	BaseURL        string        `validate:"required,url"`
	ClientName     string        `validate:"required"`
	Products       []string      `validate:"min=1,dive,required"`
	CountryCodes   []string      `validate:"min=1,dive,len=2"`
	Language       string        `validate:"required"`
	RedirectURL    string        `validate:"omitempty,url"`
	WebhookURL     string        `validate:"omitempty,url"`
	RequestTimeout time.Duration `validate:"-"`
	HTTPClient     *http.Client  `validate:"-"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:      SandboxBaseURL,
		ClientName:   "OAuth Client",
		Products:     []string{"transactions"},
		CountryCodes: []string{"US"},
		Language:     "en",
	}
}

// Provider connects Plaid items through Link. It never uses the handshake
// store: Link tokens are single use and expire on Plaid's side, so the
// guarantees a handshake provides for other providers are enforced by Plaid.
type Provider struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) (*Provider, error) {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if strings.TrimSpace(cfg.ClientName) == "" {
		cfg.ClientName = defaults.ClientName
	}
	if len(cfg.Products) == 0 {
		cfg.Products = defaults.Products
	}
	if len(cfg.CountryCodes) == 0 {
		cfg.CountryCodes = defaults.CountryCodes
	}
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = defaults.Language
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("plaid: invalid config: %w", err)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Provider{cfg: cfg, client: client}, nil
}

func (p *Provider) Descriptor() core.ProviderDescriptor {
	return core.ProviderDescriptor{Type: ProviderType}
}

func (p *Provider) BuildAlternateLink(ctx context.Context, ownerID string) (core.RedirectInstruction, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return core.RedirectInstruction{}, fmt.Errorf("plaid: owner id is required to create a link token")
	}
	request := linkTokenCreateRequest{
		ClientID:     p.cfg.ClientID,
		Secret:       p.cfg.Secret,
		ClientName:   p.cfg.ClientName,
		Products:     append([]string(nil), p.cfg.Products...),
		CountryCodes: append([]string(nil), p.cfg.CountryCodes...),
		Language:     p.cfg.Language,
		RedirectURI:  p.cfg.RedirectURL,
		Webhook:      p.cfg.WebhookURL,
		User:         linkTokenUser{ClientUserID: ownerID},
	}
	var response linkTokenCreateResponse
	if err := p.call(ctx, "/link/token/create", request, &response); err != nil {
		return core.RedirectInstruction{}, err
	}
	instruction := core.RedirectInstruction{
		Kind:      core.InstructionKindLink,
		LinkToken: response.LinkToken,
	}
	if expiresAt, err := time.Parse(time.RFC3339, response.Expiration); err == nil {
		expiresAt = expiresAt.UTC()
		instruction.ExpiresAt = &expiresAt
	}
	return instruction, nil
}

// SubmitBypassCode exchanges a Link public token. The account chosen in Link
// travels in extra under ExtraAccountID.
func (p *Provider) SubmitBypassCode(ctx context.Context, code string, extra map[string]any) (core.ProviderTokens, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return core.ProviderTokens{}, fmt.Errorf("plaid: public token is required")
	}
	accountID, _ := extra[ExtraAccountID].(string)
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return core.ProviderTokens{}, fmt.Errorf("plaid: %s is required", ExtraAccountID)
	}

	var response publicTokenExchangeResponse
	if err := p.call(ctx, "/item/public_token/exchange", publicTokenExchangeRequest{
		ClientID:    p.cfg.ClientID,
		Secret:      p.cfg.Secret,
		PublicToken: code,
	}, &response); err != nil {
		return core.ProviderTokens{}, err
	}
	return core.ProviderTokens{
		AccessToken: response.AccessToken,
		TokenType:   "plaid",
		Raw: map[string]any{
			"item_id":      response.ItemID,
			ExtraAccountID: accountID,
			"request_id":   response.RequestID,
		},
	}, nil
}

func (p *Provider) SubmitCode(context.Context, string, core.Handshake) (core.ProviderTokens, error) {
	return core.ProviderTokens{}, fmt.Errorf("plaid: authorization codes are not supported, use link tokens")
}

func (p *Provider) OnConnected(_ context.Context, tokens core.ProviderTokens) (core.ConnectionResult, error) {
	itemID, _ := tokens.Raw["item_id"].(string)
	if strings.TrimSpace(itemID) == "" {
		return core.ConnectionResult{}, fmt.Errorf("plaid: item id missing from exchange response")
	}
	accountID, _ := tokens.Raw[ExtraAccountID].(string)
	return core.ConnectionResult{
		ProviderType:      ProviderType,
		ExternalAccountID: itemID,
		Metadata: map[string]any{
			ExtraAccountID: accountID,
			"item_id":      itemID,
		},
		Tokens: tokens,
	}, nil
}

// OnRevoke removes the item at Plaid when an access token is supplied.
func (p *Provider) OnRevoke(ctx context.Context, req core.RevokeRequest) (core.RevocationResult, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return core.RevocationResult{
			ProviderType: ProviderType,
			Revoked:      true,
			Metadata:     map[string]any{"remote": false},
		}, nil
	}
	var response itemRemoveResponse
	if err := p.call(ctx, "/item/remove", itemRemoveRequest{
		ClientID:    p.cfg.ClientID,
		Secret:      p.cfg.Secret,
		AccessToken: token,
	}, &response); err != nil {
		return core.RevocationResult{}, err
	}
	return core.RevocationResult{
		ProviderType: ProviderType,
		Revoked:      true,
		Metadata: map[string]any{
			"remote":     true,
			"request_id": response.RequestID,
		},
	}, nil
}

func (p *Provider) call(ctx context.Context, path string, request any, response any) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("plaid: encode %s request: %w", path, err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("plaid: build %s request: %w", path, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("plaid: %s request failed: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return fmt.Errorf("plaid: read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.ErrorCode != "" {
			return fmt.Errorf("plaid: %s failed with status %d: %w", path, resp.StatusCode, apiErr)
		}
		return fmt.Errorf("plaid: %s failed with status %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("plaid: decode %s response: %w", path, err)
	}
	return nil
}

var _ core.BypassProvider = (*Provider)(nil)
