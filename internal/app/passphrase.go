package app

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// EnvPassphrase supplies the age identity passphrase without a terminal.
const EnvPassphrase = "QVCS_PASSPHRASE"

// EnvJWTSecret overrides auth.secret from the config file.
const EnvJWTSecret = "QVCS_JWT_SECRET"

// ReadPassphrase returns $QVCS_PASSPHRASE when set and otherwise prompts on
// the controlling terminal without echo.
func ReadPassphrase(prompt string) (string, error) {
	if p, ok := os.LookupEnv(EnvPassphrase); ok {
		return p, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; set %s", EnvPassphrase)
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

// ReadNewPassphrase prompts twice and fails when the entries differ.
func ReadNewPassphrase() (string, error) {
	if p, ok := os.LookupEnv(EnvPassphrase); ok {
		return p, nil
	}
	first, err := ReadPassphrase("New passphrase: ")
	if err != nil {
		return "", err
	}
	second, err := ReadPassphrase("Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passphrases do not match")
	}
	return first, nil
}
