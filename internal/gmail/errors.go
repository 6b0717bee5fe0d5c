package gmail

import (
	"context"
	"errors"
	"net/http"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/api/googleapi"
)

func apiErrorCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return apiErrorCode(err) == http.StatusNotFound
}

// isRetryable reports whether a failed request may succeed when repeated:
// rate limiting, server errors and per-request timeouts.
func isRetryable(err error) bool {
	switch code := apiErrorCode(err); {
	case code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	case code == http.StatusForbidden:
		return isRateLimitReason(err)
	case code != 0:
		return false
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func isRateLimitReason(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, item := range apiErr.Errors {
		if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return false
}

// retryable marks err permanent for backoff.Retry unless it is retryable.
func retryable(err error) error {
	if err == nil || isRetryable(err) {
		return err
	}
	return backoff.Permanent(err)
}
