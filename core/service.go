package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	registry        Registry
	handshakeStore  HandshakeStore
	pkceGenerator   *PKCEGenerator
	stateGenerator  StateGenerator
	clock           Clock
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorFactory    ErrorFactory
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	Registry        Registry
	HandshakeStore  HandshakeStore
	PKCEGenerator   *PKCEGenerator
	StateGenerator  StateGenerator
	Clock           Clock
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("oauth", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("oauth"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.clock == nil {
		builder.clock = utcNow
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	registry, err := buildRegistry(builder.registry, builder.providers)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.handshakeStore == nil {
		builder.handshakeStore = NewMemoryHandshakeStoreWithLimits(
			finalConfig.Handshake.MaxEntries,
		).WithClock(builder.clock)
	}
	pkceGenerator, err := NewPKCEGenerator(finalConfig.Handshake.VerifierLength, builder.entropySource)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	if builder.stateGenerator == nil {
		builder.stateGenerator = NewStateGenerator(builder.entropySource)
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		registry:        registry,
		handshakeStore:  builder.handshakeStore,
		pkceGenerator:   pkceGenerator,
		stateGenerator:  builder.stateGenerator,
		clock:           builder.clock,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func buildRegistry(registry Registry, providers []Provider) (Registry, error) {
	if registry == nil {
		defaultRegistry, err := NewProviderRegistry()
		if err != nil {
			return nil, err
		}
		registry = defaultRegistry
	}
	if len(providers) > 0 {
		registrar, ok := registry.(interface{ Register(Provider) error })
		if !ok {
			return nil, fmt.Errorf("core: registry does not support provider registration")
		}
		for _, provider := range providers {
			if err := registrar.Register(provider); err != nil {
				return nil, err
			}
		}
	}
	if sealer, ok := registry.(interface{ Seal() }); ok {
		sealer.Seal()
	}
	return registry, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorFactory:    s.errorFactory,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		Registry:        s.registry,
		HandshakeStore:  s.handshakeStore,
		PKCEGenerator:   s.pkceGenerator,
		StateGenerator:  s.stateGenerator,
		Clock:           s.clock,
	}
}

// Initiate starts an authorization attempt for req.ProviderType and returns
// where the user agent must be sent next.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (instruction RedirectInstruction, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_type": req.ProviderType,
		"owner_id":      req.OwnerID,
	}
	defer func() {
		if instruction.Kind != "" {
			fields["instruction_kind"] = string(instruction.Kind)
		}
		s.observeOperation(ctx, startedAt, "initiate", err, fields)
	}()

	registered, err := s.resolveProvider(req.ProviderType)
	if err != nil {
		return RedirectInstruction{}, err
	}
	fields["provider_kind"] = string(registered.Kind)

	if bypass, ok := registered.Bypass(); ok {
		instruction, err = bypass.BuildAlternateLink(ctx, strings.TrimSpace(req.OwnerID))
		if err != nil {
			err = s.providerError(registered, OAuthErrorProviderExchangeFailed, "alternate link creation failed", err)
			return RedirectInstruction{}, err
		}
		if instruction.Kind == "" {
			instruction.Kind = InstructionKindLink
		}
		return instruction, nil
	}

	pair, err := s.pkceGenerator.Generate()
	if err != nil {
		err = s.mapError(err)
		return RedirectInstruction{}, err
	}
	state, err := s.stateGenerator()
	if err != nil {
		err = s.mapError(err)
		return RedirectInstruction{}, err
	}

	handshake := Handshake{
		State:         state,
		CodeVerifier:  pair.Verifier,
		CodeChallenge: pair.Challenge,
		ProviderType:  registered.Descriptor.Type,
		OwnerID:       strings.TrimSpace(req.OwnerID),
		CreatedAt:     s.now(),
	}
	authorizeURL, err := buildAuthorizeURL(registered.Descriptor, pair, state)
	if err != nil {
		err = s.mapError(err)
		return RedirectInstruction{}, err
	}
	// Persisting last keeps a failed Initiate free of orphaned handshakes.
	if createErr := s.handshakeStore.Create(ctx, handshake); createErr != nil {
		err = newKindError(
			s.errorFactory,
			ErrorKindPersistence,
			"",
			"handshake could not be persisted",
			createErr,
			map[string]any{"provider_type": registered.Descriptor.Type},
		)
		return RedirectInstruction{}, err
	}
	return RedirectInstruction{
		Kind:  InstructionKindRedirect,
		URL:   authorizeURL,
		State: state,
	}, nil
}

// Exchange redeems an authorization code. The handshake for req.State is
// consumed before the provider is called, so a failed exchange cannot be
// retried with the same state.
func (s *Service) Exchange(ctx context.Context, req ExchangeRequest) (result ConnectionResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_type": req.ProviderType,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "exchange", err, fields)
	}()

	registered, err := s.resolveProvider(req.ProviderType)
	if err != nil {
		return ConnectionResult{}, err
	}
	fields["provider_kind"] = string(registered.Kind)

	var tokens ProviderTokens
	if bypass, ok := registered.Bypass(); ok {
		tokens, err = bypass.SubmitBypassCode(ctx, req.Code, copyAnyMap(req.Extra))
		if err != nil {
			err = s.providerError(registered, OAuthErrorProviderExchangeFailed, "code submission failed", err)
			return ConnectionResult{}, err
		}
		return s.connect(ctx, registered, tokens)
	}

	if strings.TrimSpace(req.Code) == "" {
		err = s.mapError(goerrors.NewValidation("authorization code is required",
			goerrors.FieldError{Field: "code", Message: "required"},
		))
		return ConnectionResult{}, err
	}

	handshake, err := s.consumeHandshake(ctx, registered, req.State)
	if err != nil {
		return ConnectionResult{}, err
	}
	fields["owner_id"] = handshake.OwnerID

	tokens, err = registered.Provider.SubmitCode(ctx, req.Code, handshake)
	if err != nil {
		err = s.providerError(registered, OAuthErrorProviderExchangeFailed, "code submission failed", err)
		return ConnectionResult{}, err
	}
	return s.connect(ctx, registered, tokens)
}

// Revoke delegates to the provider revoke capability. It never reads or
// writes handshakes.
func (s *Service) Revoke(ctx context.Context, req RevokeRequest) (result RevocationResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_type": req.ProviderType,
		"owner_id":      req.OwnerID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "revoke", err, fields)
	}()

	registered, err := s.resolveProvider(req.ProviderType)
	if err != nil {
		return RevocationResult{}, err
	}
	fields["provider_kind"] = string(registered.Kind)

	req.ProviderType = registered.Descriptor.Type
	req.Extra = copyAnyMap(req.Extra)
	result, err = registered.Provider.OnRevoke(ctx, req)
	if err != nil {
		err = s.providerError(registered, OAuthErrorProviderRevokeFailed, "revocation failed", err)
		return RevocationResult{}, err
	}
	if result.ProviderType == "" {
		result.ProviderType = registered.Descriptor.Type
	}
	return result, nil
}

// PurgeExpiredHandshakes removes handshakes older than the configured TTL
// from stores that support purging.
func (s *Service) PurgeExpiredHandshakes(ctx context.Context) (result PurgeResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["purged"] = result.Purged
		s.observeOperation(ctx, startedAt, "purge_expired_handshakes", err, fields)
	}()

	purger, ok := s.handshakeStore.(HandshakePurger)
	if !ok {
		err = s.unsupported("handshake store does not support purging")
		return PurgeResult{}, err
	}
	before := s.now().Add(-s.config.Handshake.TTL())
	purged, purgeErr := purger.PurgeExpired(ctx, before)
	if purgeErr != nil {
		err = newKindError(s.errorFactory, ErrorKindPersistence, "", "handshake purge failed", purgeErr, nil)
		return PurgeResult{}, err
	}
	return PurgeResult{Before: before, Purged: purged}, nil
}

// PendingHandshakes lists in-flight handshakes for ownerID without exposing
// state tokens or verifiers. An empty ownerID lists every owner.
func (s *Service) PendingHandshakes(ctx context.Context, ownerID string) (summaries []HandshakeSummary, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"owner_id": ownerID}
	defer func() {
		fields["count"] = len(summaries)
		s.observeOperation(ctx, startedAt, "pending_handshakes", err, fields)
	}()

	lister, ok := s.handshakeStore.(HandshakeLister)
	if !ok {
		err = s.unsupported("handshake store does not support listing")
		return nil, err
	}
	pending, listErr := lister.ListPending(ctx, strings.TrimSpace(ownerID))
	if listErr != nil {
		err = newKindError(s.errorFactory, ErrorKindPersistence, "", "handshake listing failed", listErr, nil)
		return nil, err
	}
	return SummarizeHandshakes(pending, s.now(), s.config.Handshake.TTL()), nil
}

func SummarizeHandshakes(pending []Handshake, now time.Time, ttl time.Duration) []HandshakeSummary {
	summaries := make([]HandshakeSummary, 0, len(pending))
	for _, handshake := range pending {
		summaries = append(summaries, HandshakeSummary{
			ProviderType: handshake.ProviderType,
			OwnerID:      handshake.OwnerID,
			CreatedAt:    handshake.CreatedAt,
			ExpiresAt:    handshake.CreatedAt.Add(ttl),
			Expired:      handshake.Expired(now, ttl),
		})
	}
	return summaries
}

func (s *Service) consumeHandshake(ctx context.Context, registered RegisteredProvider, state string) (Handshake, error) {
	metadata := map[string]any{"provider_type": registered.Descriptor.Type}
	state = strings.TrimSpace(state)
	if state == "" {
		return Handshake{}, newKindError(s.errorFactory, ErrorKindInvalidState, "", "handshake state is required", nil, metadata)
	}

	handshake, err := s.handshakeStore.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, ErrHandshakeNotFound) {
			return Handshake{}, newKindError(s.errorFactory, ErrorKindInvalidState, "", "handshake state is not valid", nil, metadata)
		}
		return Handshake{}, newKindError(s.errorFactory, ErrorKindPersistence, "", "handshake could not be consumed", err, metadata)
	}
	if handshake.ProviderType != "" && handshake.ProviderType != registered.Descriptor.Type {
		return Handshake{}, newKindError(s.errorFactory, ErrorKindInvalidState, "", "handshake was issued for another provider", nil, metadata)
	}
	if handshake.Expired(s.now(), s.config.Handshake.TTL()) {
		return Handshake{}, newKindError(
			s.errorFactory,
			ErrorKindExpiredState,
			"",
			fmt.Sprintf("authentication must be completed within %s", s.config.Handshake.TTL()),
			nil,
			metadata,
		)
	}
	return handshake, nil
}

func (s *Service) connect(ctx context.Context, registered RegisteredProvider, tokens ProviderTokens) (ConnectionResult, error) {
	result, err := registered.Provider.OnConnected(ctx, tokens)
	if err != nil {
		return ConnectionResult{}, s.providerError(registered, OAuthErrorProviderExchangeFailed, "connection normalization failed", err)
	}
	if result.ProviderType == "" {
		result.ProviderType = registered.Descriptor.Type
	}
	if result.Tokens.Empty() {
		result.Tokens = tokens
	}
	return result, nil
}

func (s *Service) providerError(registered RegisteredProvider, textCode string, message string, cause error) error {
	return newKindError(
		s.errorFactory,
		ErrorKindProviderExchange,
		textCode,
		fmt.Sprintf("provider %q %s", registered.Descriptor.Type, message),
		cause,
		map[string]any{
			"provider_type": registered.Descriptor.Type,
			"provider_kind": string(registered.Kind),
		},
	)
}

func (s *Service) resolveProvider(providerType string) (RegisteredProvider, error) {
	providerType = strings.TrimSpace(providerType)
	metadata := map[string]any{"provider_type": providerType}
	if s == nil || s.registry == nil {
		return RegisteredProvider{}, newKindError(nil, ErrorKindUnknownProvider, "", "provider registry unavailable", nil, metadata)
	}
	registered, err := s.registry.Resolve(providerType)
	if err != nil {
		return RegisteredProvider{}, newKindError(
			s.errorFactory,
			ErrorKindUnknownProvider,
			"",
			fmt.Sprintf("oauth provider %q is not registered", providerType),
			nil,
			metadata,
		)
	}
	if !s.config.ProviderEnabled(registered.Descriptor.Type) {
		return RegisteredProvider{}, newKindError(
			s.errorFactory,
			ErrorKindProviderDisabled,
			"",
			fmt.Sprintf("oauth provider %q is not enabled", providerType),
			nil,
			metadata,
		)
	}
	return registered, nil
}

func (s *Service) unsupported(message string) error {
	return s.errorFactory(message, goerrors.CategoryOperation).
		WithTextCode(OAuthErrorUnsupported).
		WithCode(oauthHTTPStatus(goerrors.CategoryOperation))
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) now() time.Time {
	if s == nil || s.clock == nil {
		return utcNow()
	}
	return s.clock()
}

func buildAuthorizeURL(descriptor ProviderDescriptor, pair PKCEPair, state string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(descriptor.AuthorizeURL))
	if err != nil {
		return "", fmt.Errorf("core: provider %q authorize url is invalid: %w", descriptor.Type, err)
	}
	query := parsed.Query()
	query.Set("code_challenge", pair.Challenge)
	query.Set("code_challenge_method", pair.Method)
	for key, value := range descriptor.ExtraParams {
		switch key {
		case "code_challenge", "code_challenge_method", "response_type", "state":
			continue
		}
		query.Set(key, value)
	}
	query.Set("response_type", "code")
	query.Set("state", state)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
