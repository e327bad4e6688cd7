package swaps

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks requests that are never sent to providers.
	ErrInvalidInput = errors.New("invalid quote input")

	// ErrNoQuoteAvailable is returned when every queried provider abstained.
	ErrNoQuoteAvailable = errors.New("no quote available from any provider")

	// ErrUnsupportedPair is returned by providers that cannot route a pair.
	// The router treats it like any other abstention.
	ErrUnsupportedPair = errors.New("pair not supported")
)

// ProviderError wraps the failure of a single provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
