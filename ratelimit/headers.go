package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Info is the rate limit state an upstream reported on one response.
// GitHub uses x-ratelimit-* headers; the Bluesky AppView uses the
// unprefixed ratelimit-* form.
type Info struct {
	Limit        int
	Remaining    int
	HasRemaining bool
	ResetAt      time.Time
	RetryAfter   time.Duration
}

func Parse(headers http.Header, now time.Time) Info {
	var info Info
	if len(headers) == 0 {
		return info
	}
	if limit, ok := headerInt(headers, "x-ratelimit-limit", "ratelimit-limit"); ok {
		info.Limit = limit
	}
	if remaining, ok := headerInt(headers, "x-ratelimit-remaining", "ratelimit-remaining"); ok {
		info.Remaining = remaining
		info.HasRemaining = true
	}
	if reset, ok := headerInt(headers, "x-ratelimit-reset", "ratelimit-reset"); ok && reset > 0 {
		info.ResetAt = time.Unix(int64(reset), 0).UTC()
	}
	info.RetryAfter = parseRetryAfter(headers.Get("Retry-After"), now)
	return info
}

// Throttled reports whether status plus headers describe a rate limit
// rejection rather than an ordinary client error. GitHub answers 403 with
// remaining=0 when the primary limit is exhausted.
func (i Info) Throttled(status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if status >= http.StatusInternalServerError {
		return false
	}
	if status == http.StatusForbidden && i.RetryAfter > 0 {
		return true
	}
	return i.HasRemaining && i.Remaining == 0 && status >= http.StatusBadRequest
}

// Wait is how long a caller should hold off, zero when unknown.
func (i Info) Wait(now time.Time) time.Duration {
	if i.RetryAfter > 0 {
		return i.RetryAfter
	}
	if !i.ResetAt.IsZero() && i.ResetAt.After(now) {
		return i.ResetAt.Sub(now)
	}
	return 0
}

func parseRetryAfter(raw string, now time.Time) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	retryAt, err := http.ParseTime(raw)
	if err != nil || !retryAt.After(now) {
		return 0
	}
	return retryAt.Sub(now)
}

func headerInt(headers http.Header, keys ...string) (int, bool) {
	for _, key := range keys {
		value := strings.TrimSpace(headers.Get(key))
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		return parsed, true
	}
	return 0, false
}
