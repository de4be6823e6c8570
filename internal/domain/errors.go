package domain

import (
	"errors"
)

var (
	// ErrRateLimited indicates the provider rejected the call with HTTP 429.
	// It is the only error that triggers failover.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrNoResponse indicates the provider returned no usable content.
	ErrNoResponse = errors.New("no response from provider")

	// ErrNoUsage indicates the provider omitted token accounting.
	ErrNoUsage = errors.New("no usage information from provider")

	// ErrNoProvidersAvailable indicates every provider is cooling down.
	ErrNoProvidersAvailable = errors.New("no providers available to switch to")

	// ErrInvalidStructuredOutput indicates structured content could not be
	// decoded as a key/value mapping.
	ErrInvalidStructuredOutput = errors.New("invalid structured output")

	// ErrAttemptsExhausted indicates the failover loop hit its attempt cap.
	ErrAttemptsExhausted = errors.New("maximum attempts exhausted")

	// ErrProviderNotFound indicates no provider exists with the given id.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrPromptNotFound indicates no prompt template matched the lookup.
	ErrPromptNotFound = errors.New("prompt not found")

	// ErrOutcomeNotFound indicates no outcome exists with the given id.
	ErrOutcomeNotFound = errors.New("outcome not found")
)

// ErrorKind is the failover-relevant classification of a call error.
type ErrorKind int

const (
	// KindNone means the call succeeded.
	KindNone ErrorKind = iota
	// KindRateLimited is retryable by switching providers.
	KindRateLimited
	// KindNoProviders is terminal: nothing left to switch to.
	KindNoProviders
	// KindFatal is terminal for the invocation.
	KindFatal
)

// String returns the metric/log label of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "success"
	case KindRateLimited:
		return "rate_limited"
	case KindNoProviders:
		return "no_providers"
	default:
		return "fatal"
	}
}

// ClassifyError maps an error returned by the call path onto an ErrorKind.
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrNoProvidersAvailable):
		return KindNoProviders
	default:
		return KindFatal
	}
}
