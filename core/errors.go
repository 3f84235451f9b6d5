package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	AuthErrorBadInput       = "AUTH_BAD_INPUT"
	AuthErrorRedirectDenied = "AUTH_REDIRECT_DENIED"
	AuthErrorCodeConsumed   = "AUTH_CODE_CONSUMED"
	AuthErrorExchangeFailed = "AUTH_EXCHANGE_FAILED"
	AuthErrorStaleResult    = "AUTH_STALE_RESULT"
	AuthErrorUnauthorized   = "AUTH_UNAUTHORIZED"
	AuthErrorInternal       = "AUTH_INTERNAL_ERROR"
)

var (
	ErrCodeConsumed   = errors.New("core: authorization code already consumed")
	ErrStaleResult    = errors.New("core: exchange result discarded after state change")
	ErrRedirectDenied = errors.New("core: authorization server returned an error")
	ErrExchangeFailed = errors.New("core: credential exchange failed")
)

// MapError converts err into the go-errors envelope used across the module.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureAuthErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrCodeConsumed):
		return newAuthError(err.Error(), goerrors.CategoryConflict, AuthErrorCodeConsumed)
	case errors.Is(err, ErrStaleResult):
		return newAuthError(err.Error(), goerrors.CategoryConflict, AuthErrorStaleResult)
	case errors.Is(err, ErrRedirectDenied):
		return newAuthError(err.Error(), goerrors.CategoryAuth, AuthErrorRedirectDenied)
	case errors.Is(err, ErrExchangeFailed):
		return newAuthError(err.Error(), goerrors.CategoryExternal, AuthErrorExchangeFailed)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newAuthError(err.Error(), goerrors.CategoryBadInput, AuthErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureAuthErrorEnvelope(mapped)
}

// IsTextCode reports whether err carries the given text code.
func IsTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

func wrapAuthError(source error, category goerrors.Category, textCode string, message string) *goerrors.Error {
	return ensureAuthErrorEnvelope(
		goerrors.Wrap(source, category, message).
			WithTextCode(textCode),
	)
}

func newAuthError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureAuthErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureAuthErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = authHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultAuthTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultAuthTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return AuthErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return AuthErrorUnauthorized
	case goerrors.CategoryConflict:
		return AuthErrorStaleResult
	case goerrors.CategoryExternal:
		return AuthErrorExchangeFailed
	default:
		return AuthErrorInternal
	}
}

func authHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
