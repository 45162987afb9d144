// Package keyring keeps StarPath secrets in the OS keyring so they never
// have to sit in config.toml.
package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// Service is the keyring service name all secrets are stored under.
const Service = "starpath"

// Secret names.
const (
	StoreDSN  = "store-dsn"
	JWTSecret = "jwt-secret"
	AIKey     = "ai-api-key"
)

var (
	// ErrNotFound is returned when the secret is not stored.
	ErrNotFound = errors.New("secret not found in keyring")
	// ErrUnavailable is returned when the OS keyring cannot be reached.
	ErrUnavailable = errors.New("OS keyring is not available")
)

// Names lists the secrets the CLI may manage.
func Names() []string {
	return []string{StoreDSN, JWTSecret, AIKey}
}

// Known reports whether name is a managed secret.
func Known(name string) bool {
	for _, n := range Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Get returns the named secret.
func Get(name string) (string, error) {
	v, err := keyring.Get(Service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, nil
}

// Set stores the named secret.
func Set(name, value string) error {
	if value == "" {
		return errors.New("secret value cannot be empty")
	}
	if err := keyring.Set(Service, name, value); err != nil {
		return fmt.Errorf("store %s in keyring: %w", name, err)
	}
	return nil
}

// Delete removes the named secret.
func Delete(name string) error {
	if err := keyring.Delete(Service, name); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete %s from keyring: %w", name, err)
	}
	return nil
}

// Lookup returns the secret, or "" if it is missing or the keyring is
// unavailable.
func Lookup(name string) string {
	v, err := Get(name)
	if err != nil {
		return ""
	}
	return v
}
