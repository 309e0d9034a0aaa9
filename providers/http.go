package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-accounts/core"
	"github.com/goliatone/go-accounts/ratelimit"
)

const maxResponseBodyBytes = 1 << 20 // 1 MiB

// APIError is the error body shape shared by GitHub and XRPC endpoints.
type APIError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// GetJSON performs req and decodes a 2xx JSON body into out. Non-2xx
// responses come back as core.ProviderError with the decoded error body.
func GetJSON(client *http.Client, req *http.Request, provider string, operation string, out any) (http.Header, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	response, err := client.Do(req)
	if err != nil {
		return nil, ClassifyError(provider, operation, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes+1))
	if err != nil {
		return nil, ClassifyError(provider, operation, fmt.Errorf("read response: %w", err))
	}
	if int64(len(body)) > maxResponseBodyBytes {
		return nil, &core.ProviderError{
			Provider:   provider,
			Operation:  operation,
			StatusCode: response.StatusCode,
			Err:        fmt.Errorf("response exceeds %d bytes", maxResponseBodyBytes),
		}
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		var apiErr APIError
		_ = json.Unmarshal(body, &apiErr)
		description := strings.TrimSpace(apiErr.Message)
		if description == "" {
			description = http.StatusText(response.StatusCode)
		}
		providerErr := &core.ProviderError{
			Provider:   provider,
			Operation:  operation,
			StatusCode: response.StatusCode,
			Code:       strings.TrimSpace(apiErr.Error),
			Retryable:  core.RetryableStatus(response.StatusCode),
			Err:        fmt.Errorf("%s", description),
		}
		applyRateLimit(providerErr, response.Header)
		return response.Header, providerErr
	}
	if out == nil {
		return response.Header, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return response.Header, &core.ProviderError{
			Provider:   provider,
			Operation:  operation,
			StatusCode: response.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return response.Header, nil
}

// applyRateLimit marks throttled responses retryable and records how long
// the upstream asked callers to wait.
func applyRateLimit(providerErr *core.ProviderError, headers http.Header) {
	now := time.Now()
	info := ratelimit.Parse(headers, now)
	if !info.Throttled(providerErr.StatusCode) {
		return
	}
	providerErr.Retryable = true
	providerErr.RetryAfter = info.Wait(now)
	if providerErr.Code == "" {
		providerErr.Code = "rate_limited"
	}
}

// NewGet builds a GET request bound to ctx.
func NewGet(ctx context.Context, rawURL string) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("providers: build request: %w", err)
	}
	return req, nil
}

// StatusOf extracts the upstream HTTP status from a provider error.
func StatusOf(err error) int {
	var providerErr *core.ProviderError
	if !errors.As(err, &providerErr) {
		return 0
	}
	return providerErr.StatusCode
}
