package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

type ErrorKind string

const (
	ErrorKindUnknownProvider  ErrorKind = "unknown_provider"
	ErrorKindProviderDisabled ErrorKind = "provider_disabled"
	ErrorKindPersistence      ErrorKind = "persistence_error"
	ErrorKindInvalidState     ErrorKind = "invalid_state"
	ErrorKindExpiredState     ErrorKind = "expired_state"
	ErrorKindProviderExchange ErrorKind = "provider_exchange_error"
)

const (
	OAuthErrorBadInput               = "OAUTH_BAD_INPUT"
	OAuthErrorUnknownProvider        = "OAUTH_UNKNOWN_PROVIDER"
	OAuthErrorProviderDisabled       = "OAUTH_PROVIDER_DISABLED"
	OAuthErrorPersistenceFailed      = "OAUTH_PERSISTENCE_FAILED"
	OAuthErrorStateInvalid           = "OAUTH_STATE_INVALID"
	OAuthErrorStateExpired           = "OAUTH_STATE_EXPIRED"
	OAuthErrorProviderExchangeFailed = "OAUTH_PROVIDER_EXCHANGE_FAILED"
	OAuthErrorProviderRevokeFailed   = "OAUTH_PROVIDER_REVOKE_FAILED"
	OAuthErrorProfileNotFound        = "OAUTH_PROFILE_NOT_FOUND"
	OAuthErrorUnsupported            = "OAUTH_OPERATION_UNSUPPORTED"
	OAuthErrorInternal               = "OAUTH_INTERNAL_ERROR"
)

const errorKindMetadataKey = "error_kind"

var (
	ErrHandshakeNotFound         = errors.New("core: handshake not found")
	ErrHandshakeExists           = errors.New("core: handshake state already exists")
	ErrProviderNotRegistered     = errors.New("core: provider not registered")
	ErrProviderAlreadyRegistered = errors.New("core: provider already registered")
	ErrRegistrySealed            = errors.New("core: registry is sealed")
)

// KindOf returns the error kind carried by err, or "" when err was not
// produced by the handshake service.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return ""
	}
	kind, _ := richErr.Metadata[errorKindMetadataKey].(string)
	return ErrorKind(kind)
}

func IsKind(err error, kind ErrorKind) bool {
	return kind != "" && KindOf(err) == kind
}

func kindCategory(kind ErrorKind) goerrors.Category {
	switch kind {
	case ErrorKindUnknownProvider, ErrorKindProviderDisabled:
		return goerrors.CategoryNotFound
	case ErrorKindInvalidState, ErrorKindExpiredState:
		return goerrors.CategoryAuth
	case ErrorKindProviderExchange:
		return goerrors.CategoryExternal
	default:
		return goerrors.CategoryInternal
	}
}

func kindTextCode(kind ErrorKind) string {
	switch kind {
	case ErrorKindUnknownProvider:
		return OAuthErrorUnknownProvider
	case ErrorKindProviderDisabled:
		return OAuthErrorProviderDisabled
	case ErrorKindPersistence:
		return OAuthErrorPersistenceFailed
	case ErrorKindInvalidState:
		return OAuthErrorStateInvalid
	case ErrorKindExpiredState:
		return OAuthErrorStateExpired
	case ErrorKindProviderExchange:
		return OAuthErrorProviderExchangeFailed
	default:
		return OAuthErrorInternal
	}
}

// newKindError builds the AuthenticationError envelope for kind. The cause,
// when present, is kept as the error source.
func newKindError(
	factory ErrorFactory,
	kind ErrorKind,
	textCode string,
	message string,
	cause error,
	metadata map[string]any,
) *goerrors.Error {
	category := kindCategory(kind)
	if strings.TrimSpace(textCode) == "" {
		textCode = kindTextCode(kind)
	}
	var built *goerrors.Error
	if cause != nil {
		built = goerrors.Wrap(cause, category, message)
		built.Category = category
		built.Message = message
	} else {
		if factory == nil {
			factory = goerrors.New
		}
		built = factory(message, category)
	}
	fields := copyAnyMap(metadata)
	fields[errorKindMetadataKey] = string(kind)
	return built.
		WithTextCode(textCode).
		WithCode(oauthHTTPStatus(category)).
		WithMetadata(fields)
}

func oauthErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureOAuthErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrHandshakeNotFound):
		return newOAuthError(err.Error(), goerrors.CategoryAuth, OAuthErrorStateInvalid)
	case errors.Is(err, ErrProviderNotRegistered):
		return newOAuthError(err.Error(), goerrors.CategoryNotFound, OAuthErrorUnknownProvider)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not supported"), strings.Contains(msg, "unsupported"):
		return newOAuthError(err.Error(), goerrors.CategoryOperation, OAuthErrorUnsupported)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must be"):
		return newOAuthError(err.Error(), goerrors.CategoryBadInput, OAuthErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureOAuthErrorEnvelope(mapped)
}

func newOAuthError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureOAuthErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureOAuthErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = oauthHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultOAuthTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultOAuthTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return OAuthErrorBadInput
	case goerrors.CategoryNotFound:
		return OAuthErrorUnknownProvider
	case goerrors.CategoryAuth:
		return OAuthErrorStateInvalid
	case goerrors.CategoryExternal:
		return OAuthErrorProviderExchangeFailed
	case goerrors.CategoryOperation:
		return OAuthErrorUnsupported
	default:
		return OAuthErrorInternal
	}
}

func oauthHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	case goerrors.CategoryOperation:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
