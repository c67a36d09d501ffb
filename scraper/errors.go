package scraper

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoListings marks a tier that ran cleanly but produced nothing usable.
var ErrNoListings = errors.New("no listings found")

// TierError records which tier failed and why.
type TierError struct {
	Tier string
	Err  error
}

func (e *TierError) Error() string {
	return fmt.Sprintf("%s: %v", e.Tier, e.Err)
}

func (e *TierError) Unwrap() error {
	return e.Err
}

// failureChain joins tier failures in the order they happened.
type failureChain []*TierError

func (fc failureChain) String() string {
	parts := make([]string, 0, len(fc))
	for _, f := range fc {
		parts = append(parts, f.Error())
	}
	return strings.Join(parts, "; ")
}
