// Package secrets resolves service tokens from configuration, environment
// variables, and the operating system keyring, in that order.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	keyring "github.com/zalando/go-keyring"
)

const (
	keyringServiceNameConstant               = "branchflow"
	issueTrackerKeyringKeyTemplateConstant   = "issue-tracker:%s"
	pullRequestKeyringKeyTemplateConstant    = "pull-requests:%s"
	issueTrackerEnvironmentVariableConstant  = "BRANCHFLOW_JIRA_TOKEN"
	pullRequestsEnvironmentVariableConstant  = "BRANCHFLOW_GITHUB_TOKEN"
	tokenNotFoundMessageTemplateConstant     = "no token found for %s in configuration, environment, or keyring"
	keyringLookupFailureTemplateConstant     = "keyring lookup for %s failed: %w"
	keyringStoreEmptyTokenMessageConstant    = "refusing to store an empty token"
	issueTrackerTokenDescriptionConstant     = "issue tracker"
	pullRequestServiceTokenDescriptionConst  = "pull request service"
)

// ErrEmptyToken indicates an attempt to store a blank token.
var ErrEmptyToken = errors.New(keyringStoreEmptyTokenMessageConstant)

// TokenNotFoundError reports that no resolution source produced a token.
type TokenNotFoundError struct {
	Service string
}

// Error describes the missing token.
func (notFoundError TokenNotFoundError) Error() string {
	return fmt.Sprintf(tokenNotFoundMessageTemplateConstant, notFoundError.Service)
}

// KeyringReader retrieves a secret for a service and account key.
type KeyringReader func(serviceName string, accountKey string) (string, error)

// TokenSource resolves tokens using configured values first, environment
// variables second, and the keyring last.
type TokenSource struct {
	keyringReader KeyringReader
	environment   func(string) string
}

// NewTokenSource constructs a TokenSource backed by the system keyring and
// process environment.
func NewTokenSource() *TokenSource {
	return &TokenSource{keyringReader: keyring.Get, environment: os.Getenv}
}

// NewTokenSourceWithLookups constructs a TokenSource with injected lookups.
func NewTokenSourceWithLookups(keyringReader KeyringReader, environment func(string) string) *TokenSource {
	tokenSource := &TokenSource{keyringReader: keyringReader, environment: environment}
	if tokenSource.keyringReader == nil {
		tokenSource.keyringReader = keyring.Get
	}
	if tokenSource.environment == nil {
		tokenSource.environment = os.Getenv
	}
	return tokenSource
}

// IssueTrackerToken resolves the issue tracker token for the given account
// email. The configured value wins when present.
func (tokenSource *TokenSource) IssueTrackerToken(configuredToken string, accountEmail string) (string, error) {
	keyringKey := fmt.Sprintf(issueTrackerKeyringKeyTemplateConstant, accountEmail)
	return tokenSource.resolve(configuredToken, issueTrackerEnvironmentVariableConstant, keyringKey, issueTrackerTokenDescriptionConstant)
}

// PullRequestToken resolves the pull request service token for the given
// repository owner. The configured value wins when present.
func (tokenSource *TokenSource) PullRequestToken(configuredToken string, repositoryOwner string) (string, error) {
	keyringKey := fmt.Sprintf(pullRequestKeyringKeyTemplateConstant, repositoryOwner)
	return tokenSource.resolve(configuredToken, pullRequestsEnvironmentVariableConstant, keyringKey, pullRequestServiceTokenDescriptionConst)
}

func (tokenSource *TokenSource) resolve(configuredToken string, environmentVariableName string, keyringKey string, serviceDescription string) (string, error) {
	trimmedConfiguredToken := strings.TrimSpace(configuredToken)
	if len(trimmedConfiguredToken) > 0 {
		return trimmedConfiguredToken, nil
	}

	environmentToken := strings.TrimSpace(tokenSource.environment(environmentVariableName))
	if len(environmentToken) > 0 {
		return environmentToken, nil
	}

	keyringToken, keyringError := tokenSource.keyringReader(keyringServiceNameConstant, keyringKey)
	if keyringError != nil {
		if errors.Is(keyringError, keyring.ErrNotFound) {
			return "", TokenNotFoundError{Service: serviceDescription}
		}
		return "", fmt.Errorf(keyringLookupFailureTemplateConstant, serviceDescription, keyringError)
	}
	trimmedKeyringToken := strings.TrimSpace(keyringToken)
	if len(trimmedKeyringToken) == 0 {
		return "", TokenNotFoundError{Service: serviceDescription}
	}
	return trimmedKeyringToken, nil
}

// StoreIssueTrackerToken saves the issue tracker token in the keyring.
func StoreIssueTrackerToken(accountEmail string, token string) error {
	if len(strings.TrimSpace(token)) == 0 {
		return ErrEmptyToken
	}
	return keyring.Set(keyringServiceNameConstant, fmt.Sprintf(issueTrackerKeyringKeyTemplateConstant, accountEmail), token)
}

// StorePullRequestToken saves the pull request service token in the keyring.
func StorePullRequestToken(repositoryOwner string, token string) error {
	if len(strings.TrimSpace(token)) == 0 {
		return ErrEmptyToken
	}
	return keyring.Set(keyringServiceNameConstant, fmt.Sprintf(pullRequestKeyringKeyTemplateConstant, repositoryOwner), token)
}
