// Package auth provides GitHub authentication token management.
// Callers depend on TokenProvider; the concrete sources are the environment
// and the GitHub CLI.
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// EnvToken is the environment variable holding the GitHub token.
const EnvToken = "GITHUB_TOKEN"

// ErrNoToken is returned when no provider could supply a token.
var ErrNoToken = errors.New("no GitHub token configured")

// TokenProvider defines the interface for obtaining a GitHub authentication token.
type TokenProvider interface {
	GetToken() (string, error)
}

// GhCliProvider obtains tokens by shelling out to the GitHub CLI (`gh auth token`).
type GhCliProvider struct {
	// Command overrides the executable, mainly for tests. Defaults to "gh".
	Command string
}

// GetToken shells out to `gh auth token` to retrieve the current token.
// Returns an error if gh CLI is not installed, not authenticated, or the command fails.
func (g *GhCliProvider) GetToken() (string, error) {
	command := g.Command
	if command == "" {
		command = "gh"
	}

	cmd := exec.Command(command, "auth", "token", "--hostname", "github.com")
	output, err := cmd.Output()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return "", errors.New("gh CLI not found in PATH")
		}
		return "", fmt.Errorf("gh auth token failed: %w", err)
	}

	token := strings.TrimSpace(string(output))
	if token == "" {
		return "", errors.New("gh auth token returned empty token")
	}

	return token, nil
}

// EnvProvider reads GITHUB_TOKEN on every call, so a changed environment is
// picked up without a restart.
type EnvProvider struct {
	// Lookup overrides os.LookupEnv.
	Lookup func(key string) (string, bool)
}

// GetToken reads the GITHUB_TOKEN environment variable.
func (e *EnvProvider) GetToken() (string, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	token, _ := lookup(EnvToken)
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: %s environment variable not set or empty", ErrNoToken, EnvToken)
	}
	return token, nil
}

// ChainProvider tries each provider in order and returns the first token found.
type ChainProvider []TokenProvider

// GetToken returns the first successful token. When all providers fail the
// error wraps ErrNoToken and lists every cause.
func (c ChainProvider) GetToken() (string, error) {
	causes := make([]string, 0, len(c))
	for _, p := range c {
		token, err := p.GetToken()
		if err == nil {
			return token, nil
		}
		causes = append(causes, err.Error())
	}
	return "", fmt.Errorf("%w (%s).\n"+
		"Please either:\n"+
		"  1. Set the GITHUB_TOKEN environment variable with a personal access token, or\n"+
		"  2. Run 'gh auth login' to authenticate with GitHub CLI",
		ErrNoToken, strings.Join(causes, "; "))
}

// Default returns the provider used by the CLI: environment first, then gh.
func Default() TokenProvider {
	return ChainProvider{&EnvProvider{}, &GhCliProvider{}}
}
