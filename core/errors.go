package core

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ServiceErrorBadInput            = "SERVICE_BAD_INPUT"
	ServiceErrorNotConfigured       = "SERVICE_NOT_CONFIGURED"
	ServiceErrorOAuthStateInvalid   = "SERVICE_OAUTH_STATE_INVALID"
	ServiceErrorSessionInvalid      = "SERVICE_SESSION_INVALID"
	ServiceErrorAccountNotFound     = "SERVICE_ACCOUNT_NOT_FOUND"
	ServiceErrorProfileNotFound     = "SERVICE_PROFILE_NOT_FOUND"
	ServiceErrorGitHubNotConnected  = "SERVICE_GITHUB_NOT_CONNECTED"
	ServiceErrorGitHubUnrefreshable = "SERVICE_GITHUB_UNREFRESHABLE"
	ServiceErrorDefaultLoginOff     = "SERVICE_DEFAULT_LOGIN_DISABLED"
	ServiceErrorRateLimited         = "SERVICE_RATE_LIMITED"
	ServiceErrorProviderFailure     = "SERVICE_PROVIDER_FAILURE"
	ServiceErrorTimeout             = "SERVICE_TIMEOUT"
	ServiceErrorCanceled            = "SERVICE_CANCELED"
	ServiceErrorInternal            = "SERVICE_INTERNAL_ERROR"
)

const (
	MetadataOperation = "operation"
	MetadataRetryable = "retryable"
)

var (
	ErrStateNotFound        = errors.New("core: oauth state not found or expired")
	ErrStateMismatch        = errors.New("core: oauth state mismatch")
	ErrSessionNotFound      = errors.New("core: session not found")
	ErrIdentityInvalid      = errors.New("core: identity is no longer valid")
	ErrAccountNotFound      = errors.New("core: account not found")
	ErrProfileNotFound      = errors.New("core: profile not found")
	ErrConnectionNotFound   = errors.New("core: github connection not found")
	ErrUnrefreshable        = errors.New("core: github connection has no refresh token")
	ErrDefaultLoginDisabled = errors.New("core: default login is not configured")
	ErrNotConfigured        = errors.New("core: collaborator is not configured")
)

// ProviderError classifies a failure reported by an identity or token
// provider adapter.
type ProviderError struct {
	Provider   string
	Operation  string
	StatusCode int
	Code       string
	Retryable  bool
	// RetryAfter is the upstream's requested wait when it throttled the call.
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(strings.TrimSpace(e.Provider))
	if b.Len() == 0 {
		b.WriteString("provider")
	}
	if e.Operation != "" {
		b.WriteString(" " + e.Operation)
	}
	b.WriteString(" failed")
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		b.WriteString(": " + e.Code)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RetryableStatus reports whether an upstream HTTP status is worth retrying.
func RetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500
}

func accountsErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrStateNotFound), errors.Is(err, ErrStateMismatch):
		return newServiceError(err, goerrors.CategoryAuth, ServiceErrorOAuthStateInvalid)
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrIdentityInvalid):
		return newServiceError(err, goerrors.CategoryAuth, ServiceErrorSessionInvalid)
	case errors.Is(err, ErrAccountNotFound):
		return newServiceError(err, goerrors.CategoryNotFound, ServiceErrorAccountNotFound)
	case errors.Is(err, ErrProfileNotFound):
		return newServiceError(err, goerrors.CategoryNotFound, ServiceErrorProfileNotFound)
	case errors.Is(err, ErrConnectionNotFound):
		return newServiceError(err, goerrors.CategoryNotFound, ServiceErrorGitHubNotConnected)
	case errors.Is(err, ErrUnrefreshable):
		return newServiceError(err, goerrors.CategoryAuth, ServiceErrorGitHubUnrefreshable)
	case errors.Is(err, ErrDefaultLoginDisabled):
		return newServiceError(err, goerrors.CategoryOperation, ServiceErrorDefaultLoginOff)
	case errors.Is(err, ErrNotConfigured):
		return newServiceError(err, goerrors.CategoryInternal, ServiceErrorNotConfigured)
	case errors.Is(err, context.DeadlineExceeded):
		return newServiceError(err, goerrors.CategoryExternal, ServiceErrorTimeout)
	case errors.Is(err, context.Canceled):
		return newServiceError(err, goerrors.CategoryOperation, ServiceErrorCanceled)
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		if providerErr.StatusCode == http.StatusTooManyRequests || (providerErr.Retryable && providerErr.RetryAfter > 0) {
			return newServiceError(err, goerrors.CategoryRateLimit, ServiceErrorRateLimited)
		}
		return newServiceError(err, goerrors.CategoryExternal, ServiceErrorProviderFailure)
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr.Clone())
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newServiceError(err, goerrors.CategoryRateLimit, ServiceErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newServiceError(err, goerrors.CategoryBadInput, ServiceErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(cause error, category goerrors.Category, textCode string) *goerrors.Error {
	wrapped := goerrors.Wrap(cause, category, cause.Error()).
		WithTextCode(textCode).
		WithCode(serviceHTTPStatus(category))
	wrapped.Category = category
	return ensureServiceErrorEnvelope(wrapped)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ServiceErrorBadInput
	case goerrors.CategoryNotFound:
		return ServiceErrorAccountNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ServiceErrorSessionInvalid
	case goerrors.CategoryRateLimit:
		return ServiceErrorRateLimited
	case goerrors.CategoryExternal:
		return ServiceErrorProviderFailure
	default:
		return ServiceErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict, goerrors.CategoryOperation:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// isRetryableError is false for every domain sentinel; only transport level
// failures qualify.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// OperationOf returns the public operation recorded on an orchestrator error.
func OperationOf(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return ""
	}
	operation, _ := richErr.Metadata[MetadataOperation].(string)
	return operation
}

// IsRetryable reports whether the caller may retry the failed operation as is.
func IsRetryable(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Metadata != nil {
		if retryable, ok := richErr.Metadata[MetadataRetryable].(bool); ok {
			return retryable
		}
	}
	return isRetryableError(err)
}

// RetryAfterOf returns the wait requested by a throttling upstream, zero
// when none was reported.
func RetryAfterOf(err error) time.Duration {
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) || providerErr.RetryAfter < 0 {
		return 0
	}
	return providerErr.RetryAfter
}

func TextCodeOf(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return ""
	}
	return richErr.TextCode
}
