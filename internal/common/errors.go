// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
	"strings"
)

// Common application errors.
var (
	// ErrRateLimit indicates that the upstream API rate limit has been exceeded.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrRateLimitExhausted indicates that every retry attempt hit a rate limit.
	ErrRateLimitExhausted = errors.New("rate limit retries exhausted")
	// ErrNoOutput indicates the upstream call succeeded but returned no usable output.
	ErrNoOutput = errors.New("no output from model")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// RateLimitError is a structured rate-limit failure carrying the HTTP status
// that triggered it.
type RateLimitError struct {
	Message    string
	StatusCode int
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("rate limited (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("rate limited (status %d)", e.StatusCode)
}

// Is makes RateLimitError match the ErrRateLimit sentinel.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimit
}

// rateLimitPatterns are matched case-insensitively against error text when no
// structured signal is available. Message sniffing is a fallback only; it
// breaks if the upstream changes its wording.
var rateLimitPatterns = []string{
	"429",
	"too many requests",
	"rate limit",
}

// IsRateLimit reports whether an error represents an upstream rate limit.
// Structured errors are checked first, then the error text.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}
	if errors.Is(err, ErrRateLimit) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range rateLimitPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}
