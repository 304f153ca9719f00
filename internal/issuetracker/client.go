// Package issuetracker provides the REST client used to read and annotate
// issues in the configured issue tracker.
package issuetracker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	issueEndpointTemplateConstant          = "%s/rest/api/2/issue/%s"
	issueFieldsQueryParameterConstant      = "fields"
	issueFieldsQueryValueConstant          = "summary,description,issuetype,status"
	acceptHeaderNameConstant               = "Accept"
	contentTypeHeaderNameConstant          = "Content-Type"
	authorizationHeaderNameConstant        = "Authorization"
	jsonContentTypeConstant                = "application/json"
	basicAuthorizationTemplateConstant     = "Basic %s"
	credentialSeparatorConstant            = ":"
	clientNotConfiguredMessageConstant     = "issue tracker base URL, email, and token must be configured"
	issueKeyRequiredMessageConstant        = "issue key must be provided"
	remoteErrorTemplateConstant            = "issue tracker returned status %d: %s"
	requestBuildErrorTemplateConstant      = "unable to build issue tracker request: %w"
	requestExecutionErrorTemplateConstant  = "issue tracker request failed: %w"
	responseDecodingErrorTemplateConstant  = "unable to decode issue tracker response: %w"
	payloadEncodingErrorTemplateConstant   = "unable to encode issue tracker payload: %w"
	descriptionJoinSeparatorConstant       = "\n\n"
	responseBodyReadLimitConstant          = 8 << 10
	defaultRequestTimeoutDurationConstant  = 15 * time.Second
	trailingSlashCutSetConstant            = "/"
	issueURLBrowseSegmentTemplateConstant  = "%s/browse/%s"
	successStatusLowerBoundInclusiveLimit  = 200
	successStatusUpperBoundExclusiveLimit  = 300
)

// ErrNotConfigured indicates required credentials or the base URL were absent.
var ErrNotConfigured = errors.New(clientNotConfiguredMessageConstant)

// ErrIssueKeyRequired indicates an operation was invoked without an issue key.
var ErrIssueKeyRequired = errors.New(issueKeyRequiredMessageConstant)

// RemoteError reports a non-success response from the issue tracker.
type RemoteError struct {
	StatusCode int
	Body       string
}

// Error describes the remote failure.
func (remoteError RemoteError) Error() string {
	return fmt.Sprintf(remoteErrorTemplateConstant, remoteError.StatusCode, remoteError.Body)
}

// Issue mirrors the issue fields branchflow reads and rewrites.
type Issue struct {
	Key         string
	Summary     string
	Description string
	IssueType   string
	Status      string
	URL         string
}

// Configuration captures the connection settings for the issue tracker.
type Configuration struct {
	BaseURL string        `mapstructure:"base_url"`
	Email   string        `mapstructure:"email"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Client performs authenticated issue tracker requests.
type Client struct {
	baseURL    string
	email      string
	token      string
	httpClient *http.Client
}

// NewClient constructs a Client from the provided configuration.
func NewClient(configuration Configuration) (*Client, error) {
	trimmedBaseURL := strings.TrimRight(strings.TrimSpace(configuration.BaseURL), trailingSlashCutSetConstant)
	trimmedEmail := strings.TrimSpace(configuration.Email)
	trimmedToken := strings.TrimSpace(configuration.Token)
	if len(trimmedBaseURL) == 0 || len(trimmedEmail) == 0 || len(trimmedToken) == 0 {
		return nil, ErrNotConfigured
	}

	requestTimeout := configuration.Timeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeoutDurationConstant
	}

	return &Client{
		baseURL:    trimmedBaseURL,
		email:      trimmedEmail,
		token:      trimmedToken,
		httpClient: &http.Client{Timeout: requestTimeout},
	}, nil
}

// GetIssue fetches a single issue by key.
func (client *Client) GetIssue(executionContext context.Context, issueKey string) (Issue, error) {
	trimmedIssueKey := strings.TrimSpace(issueKey)
	if len(trimmedIssueKey) == 0 {
		return Issue{}, ErrIssueKeyRequired
	}

	endpoint := fmt.Sprintf(issueEndpointTemplateConstant, client.baseURL, url.PathEscape(trimmedIssueKey))
	endpoint += "?" + url.Values{issueFieldsQueryParameterConstant: []string{issueFieldsQueryValueConstant}}.Encode()

	request, requestError := http.NewRequestWithContext(executionContext, http.MethodGet, endpoint, nil)
	if requestError != nil {
		return Issue{}, fmt.Errorf(requestBuildErrorTemplateConstant, requestError)
	}
	client.decorateRequest(request)

	response, responseError := client.httpClient.Do(request)
	if responseError != nil {
		return Issue{}, fmt.Errorf(requestExecutionErrorTemplateConstant, responseError)
	}
	defer response.Body.Close()

	if remoteError := checkResponseStatus(response); remoteError != nil {
		return Issue{}, remoteError
	}

	var payload struct {
		Key    string `json:"key"`
		Fields struct {
			Summary     string `json:"summary"`
			Description string `json:"description"`
			IssueType   struct {
				Name string `json:"name"`
			} `json:"issuetype"`
			Status struct {
				Name string `json:"name"`
			} `json:"status"`
		} `json:"fields"`
	}
	if decodingError := json.NewDecoder(response.Body).Decode(&payload); decodingError != nil {
		return Issue{}, fmt.Errorf(responseDecodingErrorTemplateConstant, decodingError)
	}

	return Issue{
		Key:         payload.Key,
		Summary:     payload.Fields.Summary,
		Description: payload.Fields.Description,
		IssueType:   payload.Fields.IssueType.Name,
		Status:      payload.Fields.Status.Name,
		URL:         fmt.Sprintf(issueURLBrowseSegmentTemplateConstant, client.baseURL, payload.Key),
	}, nil
}

// UpdateDescription replaces the issue description with the provided text.
func (client *Client) UpdateDescription(executionContext context.Context, issueKey string, description string) error {
	trimmedIssueKey := strings.TrimSpace(issueKey)
	if len(trimmedIssueKey) == 0 {
		return ErrIssueKeyRequired
	}

	payload := struct {
		Fields struct {
			Description string `json:"description"`
		} `json:"fields"`
	}{}
	payload.Fields.Description = description

	encodedPayload, encodingError := json.Marshal(payload)
	if encodingError != nil {
		return fmt.Errorf(payloadEncodingErrorTemplateConstant, encodingError)
	}

	endpoint := fmt.Sprintf(issueEndpointTemplateConstant, client.baseURL, url.PathEscape(trimmedIssueKey))
	request, requestError := http.NewRequestWithContext(executionContext, http.MethodPut, endpoint, bytes.NewReader(encodedPayload))
	if requestError != nil {
		return fmt.Errorf(requestBuildErrorTemplateConstant, requestError)
	}
	client.decorateRequest(request)
	request.Header.Set(contentTypeHeaderNameConstant, jsonContentTypeConstant)

	response, responseError := client.httpClient.Do(request)
	if responseError != nil {
		return fmt.Errorf(requestExecutionErrorTemplateConstant, responseError)
	}
	defer response.Body.Close()

	return checkResponseStatus(response)
}

// AppendDescription appends text to the issue description, separated by a
// blank line, or sets the description directly when it is empty. The tracker
// has no native append, so this is a read-modify-write sequence: a concurrent
// editor's change between the read and the write is overwritten. Acceptable
// for a single-operator tool; known limitation.
func (client *Client) AppendDescription(executionContext context.Context, issueKey string, text string) error {
	issue, fetchError := client.GetIssue(executionContext, issueKey)
	if fetchError != nil {
		return fetchError
	}

	return client.UpdateDescription(executionContext, issueKey, JoinDescription(issue.Description, text))
}

// JoinDescription concatenates an existing description and an addition with a
// blank-line separator, returning the addition alone when the existing text is empty.
func JoinDescription(existingDescription string, addition string) string {
	if len(strings.TrimSpace(existingDescription)) == 0 {
		return addition
	}
	return existingDescription + descriptionJoinSeparatorConstant + addition
}

func (client *Client) decorateRequest(request *http.Request) {
	request.Header.Set(acceptHeaderNameConstant, jsonContentTypeConstant)
	credentials := base64.StdEncoding.EncodeToString([]byte(client.email + credentialSeparatorConstant + client.token))
	request.Header.Set(authorizationHeaderNameConstant, fmt.Sprintf(basicAuthorizationTemplateConstant, credentials))
}

func checkResponseStatus(response *http.Response) error {
	if response.StatusCode >= successStatusLowerBoundInclusiveLimit && response.StatusCode < successStatusUpperBoundExclusiveLimit {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(response.Body, responseBodyReadLimitConstant))
	return RemoteError{StatusCode: response.StatusCode, Body: strings.TrimSpace(string(body))}
}
