//go:build darwin

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.prospekt.app"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "prospekt-data"
	}
	return filepath.Join(home, "Library", "Application Support", "Prospekt")
}

func apiKeyHint() string {
	return " or run `prospekt config set-secret assistant.api_key <key>` (macOS Keychain, service " + secretService + ")"
}

// defaultsBackend reads and writes the user defaults domain through the
// `defaults` tool.
type defaultsBackend struct {
	domain string
}

func newPlatformBackend() Backend {
	return defaultsBackend{domain: defaultsDomain}
}

// run executes `defaults <verb> <domain> <args...>`. missing reports that
// the tool exited 1, which is how it signals an absent key.
func (b defaultsBackend) run(verb string, args ...string) (out string, missing bool, err error) {
	cmd := exec.Command("defaults", append([]string{verb, b.domain}, args...)...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err = cmd.Run()
	out = strings.TrimSpace(buf.String())

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return out, true, nil
	}
	if err != nil {
		return out, false, fmt.Errorf("defaults %s %s: %w: %s", verb, strings.Join(args, " "), err, out)
	}
	return out, false, nil
}

func (b defaultsBackend) GetString(key string) (string, bool, error) {
	out, missing, err := b.run("read", key)
	if missing || err != nil {
		return "", false, err
	}
	return out, true, nil
}

func (b defaultsBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.GetString(key)
	if !ok {
		return 0, false, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("%s: not an integer: %q", key, s)
	}
	return n, true, nil
}

func (b defaultsBackend) SetString(key, val string) error {
	_, _, err := b.run("write", key, "-string", val)
	return err
}

func (b defaultsBackend) SetInt(key string, val int) error {
	_, _, err := b.run("write", key, "-int", strconv.Itoa(val))
	return err
}

func (b defaultsBackend) Delete(key string) error {
	_, _, err := b.run("delete", key)
	return err
}
