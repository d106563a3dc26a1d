package secret

import (
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

const keychainService = "docdesk"

// exit status of `security` when no matching item exists
const keychainNotFound = 44

// runner executes `security` with args and returns stdout plus the exit code.
type runner func(args ...string) ([]byte, int, error)

func runSecurity(args ...string) ([]byte, int, error) {
	out, err := exec.Command("security", args...).Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, exitErr.ExitCode(), fmt.Errorf("%s: %w", strings.TrimSpace(string(exitErr.Stderr)), err)
	}
	return out, 0, err
}

// KeychainStore keeps secrets as generic passwords in the macOS Keychain.
// The account is the key suffixed with the API host, so tokens for
// different servers never overwrite each other.
type KeychainStore struct {
	scope string
	run   runner
}

// NewKeychainStore scopes entries to the host of apiURL. An unparsable or
// empty URL leaves entries unscoped.
func NewKeychainStore(apiURL string) *KeychainStore {
	return &KeychainStore{scope: hostOf(apiURL), run: runSecurity}
}

func hostOf(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func (k *KeychainStore) account(key string) string {
	if k.scope == "" {
		return key
	}
	return key + "@" + k.scope
}

// Set writes value, replacing any earlier entry. An empty value deletes it.
func (k *KeychainStore) Set(key string, value []byte) error {
	if len(value) == 0 {
		return k.Delete(key)
	}
	if strings.ContainsAny(string(value), "\r\n") {
		return fmt.Errorf("keychain set %s: value spans lines", key)
	}
	_, _, err := k.run("add-generic-password", "-U",
		"-a", k.account(key),
		"-s", keychainService,
		"-l", "docdesk session ("+k.account(key)+")",
		"-w", string(value),
	)
	if err != nil {
		return fmt.Errorf("keychain set %s: %w", key, err)
	}
	return nil
}

// Get returns nil, nil when there is no entry for key.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	out, code, err := k.run("find-generic-password",
		"-a", k.account(key),
		"-s", keychainService,
		"-w",
	)
	if code == keychainNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keychain get %s: %w", key, err)
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

// Delete is a no-op for a missing entry.
func (k *KeychainStore) Delete(key string) error {
	_, code, err := k.run("delete-generic-password",
		"-a", k.account(key),
		"-s", keychainService,
	)
	if err != nil && code != keychainNotFound {
		return fmt.Errorf("keychain delete %s: %w", key, err)
	}
	return nil
}
