package ai

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by NopProvider. The opportunity classifier
// treats it as "no opinion" without logging a failure.
var ErrNotConfigured = errors.New("reasoning provider not configured")

// NopProvider is used when ai.enabled is false.
type NopProvider struct{}

// NewNopProvider returns a NopProvider.
func NewNopProvider() *NopProvider {
	return &NopProvider{}
}

// Complete always returns ErrNotConfigured.
func (NopProvider) Complete(context.Context, string, string) (string, error) {
	return "", ErrNotConfigured
}
