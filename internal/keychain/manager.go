// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides centralized, thread-safe keychain operations for sqlgate.
// It stores the secrets an operator would rather not keep in a shell profile:
// the database DSN saved by "sqlgate connect" and the per-role API keys.
//
// Configuration loading treats the keychain as a fallback only; values from
// the environment always win.
package keychain

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"sqlgate/server/internal/policy"

	"github.com/99designs/keyring"
)

// Global keychain manager instance
var (
	globalManager *Manager
	mu            sync.Mutex
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("keychain: item not found")

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "sqlgate"

// Keys used for storing secrets in the OS keychain.
const (
	KeyDBDSN       = "db_dsn"
	KeyUserAPIKey  = "user_api_key"
	KeyAdminAPIKey = "admin_api_key"
)

// Manager provides centralized, thread-safe operations for the OS keychain.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// NewManager creates a new keychain manager with the OS keyring initialized.
func NewManager() (*Manager, error) {
	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return &Manager{ring: ring}, nil
}

// NewWithRing wraps an already opened keyring.
func NewWithRing(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// GetManager returns the global keychain manager instance.
// If initialization fails, it will retry on subsequent calls.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}
	m, err := NewManager()
	if err != nil {
		return nil, err
	}
	globalManager = m
	return globalManager, nil
}

// openRing opens the OS keyring using native platform backends only. There
// is no file fallback: a server without a desktop keyring uses environment
// variables instead.
func openRing() (keyring.Keyring, error) {
	var allowed []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		allowed = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowed = []keyring.BackendType{keyring.WinCredBackend}
	case "linux":
		allowed = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	default:
		return nil, fmt.Errorf("secure storage not supported on %s", runtime.GOOS)
	}

	cfg := keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowed,
		PassPrefix:      ServiceName,
		WinCredPrefix:   ServiceName,
	}
	return keyring.Open(cfg)
}

// Set stores value under key.
func (m *Manager) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.Set(keyring.Item{Key: key, Data: []byte(value), Label: ServiceName + " " + key})
}

// Get returns the value stored under key, or ErrNotFound. An empty stored
// value counts as not found.
func (m *Manager) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, err := m.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if len(it.Data) == 0 {
		return "", ErrNotFound
	}
	return string(it.Data), nil
}

// Delete removes key. Removing a missing key is not an error.
func (m *Manager) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}

// SaveDBDSN stores the database DSN in the keychain.
func (m *Manager) SaveDBDSN(dsn string) error { return m.Set(KeyDBDSN, dsn) }

// LoadDBDSN retrieves the database DSN from the keychain.
func (m *Manager) LoadDBDSN() (string, error) { return m.Get(KeyDBDSN) }

// APIKeyName returns the keychain key holding role's API key.
func APIKeyName(role policy.Role) (string, error) {
	switch role {
	case policy.User:
		return KeyUserAPIKey, nil
	case policy.Admin:
		return KeyAdminAPIKey, nil
	}
	return "", fmt.Errorf("no API key slot for role %q", role)
}

// SaveAPIKey stores the API key for role.
func (m *Manager) SaveAPIKey(role policy.Role, key string) error {
	name, err := APIKeyName(role)
	if err != nil {
		return err
	}
	return m.Set(name, key)
}

// LoadAPIKey retrieves the API key for role.
func (m *Manager) LoadAPIKey(role policy.Role) (string, error) {
	name, err := APIKeyName(role)
	if err != nil {
		return "", err
	}
	return m.Get(name)
}

// ClearAll removes every sqlgate secret from the keychain.
func (m *Manager) ClearAll() error {
	for _, key := range []string{KeyDBDSN, KeyUserAPIKey, KeyAdminAPIKey} {
		if err := m.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
