//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// On platforms without a keychain, secrets are kept in a 0600 JSON file:
// {"<service>": {"<account>": "<value>"}}.

func secretsFilePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", secretService, "secrets.json")
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, secretService, "secrets.json")
}

type secretsFile map[string]map[string]string

func readSecrets(path string) (secretsFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return secretsFile{}, nil
	}
	if err != nil {
		return nil, err
	}
	s := secretsFile{}
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return s, nil
}

func secretGet(service, account string) (string, error) {
	s, err := readSecrets(secretsFilePath())
	if err != nil {
		return "", err
	}
	val, ok := s[service][account]
	if !ok {
		return "", fmt.Errorf("no secret %s/%s", service, account)
	}
	return val, nil
}

func secretSet(service, account, value string) error {
	path := secretsFilePath()
	s, err := readSecrets(path)
	if err != nil {
		return err
	}
	if s[service] == nil {
		s[service] = map[string]string{}
	}
	s[service][account] = value

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
