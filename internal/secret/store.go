package secret

import (
	"runtime"
	"strings"
	"sync"
)

// TokenKey is the key the session token is stored under.
const TokenKey = "auth-token"

// SecretStore provides a pluggable interface for storing sensitive data
// such as the API session token. On macOS it is backed by the Keychain;
// elsewhere the token lives only for the life of the process.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// Default returns the Keychain store scoped to apiURL on macOS and a
// MemoryStore elsewhere.
func Default(apiURL string) SecretStore {
	if runtime.GOOS == "darwin" {
		return NewKeychainStore(apiURL)
	}
	return NewMemoryStore()
}

// ── Session token ──────────────────────────────────────────

// LoadToken returns the saved session token, or "" when none is stored.
func LoadToken(s SecretStore) (string, error) {
	raw, err := s.Get(TokenKey)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// SaveToken stores token; an empty token clears the entry.
func SaveToken(s SecretStore, token string) error {
	if token == "" {
		return s.Delete(TokenKey)
	}
	return s.Set(TokenKey, []byte(token))
}

// ClearToken removes the saved session token.
func ClearToken(s SecretStore) error {
	return s.Delete(TokenKey)
}

// MemoryStore keeps secrets in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string][]byte)}
}

func (m *MemoryStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.secrets[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, key)
	return nil
}
