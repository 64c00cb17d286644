package google

import (
	"errors"
	"net"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// Reasons Google returns with 403 when a quota, not the credentials, is the
// problem.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"dailyLimitExceeded":    true,
	"quotaExceeded":         true,
}

// IsUnavailable reports whether err means a Google service cannot be used
// at all with the current credentials: no cached token, a failed token
// refresh, or a request rejected as unauthenticated or unauthorized.
// Every later request would fail the same way.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoToken) {
		return true
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return true
		case http.StatusForbidden:
			return !isRateLimited(apiErr)
		}
	}
	return false
}

// IsTransient reports whether err is a failure that may not repeat on the
// next request: rate limiting, server errors and network errors.
func IsTransient(err error) bool {
	if err == nil || IsUnavailable(err) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests ||
			apiErr.Code >= 500 ||
			(apiErr.Code == http.StatusForbidden && isRateLimited(apiErr))
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isRateLimited(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		if rateLimitReasons[item.Reason] {
			return true
		}
	}
	return false
}
