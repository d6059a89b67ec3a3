//go:build darwin

package config

import (
	"fmt"
	"os/exec"
	"strings"
)

// Secrets live in the login keychain as generic passwords.

func secretGet(service, account string) (string, error) {
	out, err := exec.Command("security", "find-generic-password", "-s", service, "-a", account, "-w").Output()
	if err != nil {
		return "", fmt.Errorf("keychain item %s/%s: %w", service, account, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func secretSet(service, account, value string) error {
	// -U updates the item in place when it already exists.
	out, err := exec.Command("security", "add-generic-password", "-U", "-s", service, "-a", account, "-w", value).CombinedOutput()
	if err != nil {
		return fmt.Errorf("writing keychain item %s/%s: %w: %s", service, account, err, strings.TrimSpace(string(out)))
	}
	return nil
}
