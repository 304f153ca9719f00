// Package prservice provides the REST client used to open pull requests and
// assign reviewers on the configured pull-request service.
package prservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURLConstant                = "https://api.github.com"
	pullsEndpointTemplateConstant         = "%s/repos/%s/%s/pulls"
	reviewersEndpointTemplateConstant     = "%s/repos/%s/%s/pulls/%d/requested_reviewers"
	acceptHeaderNameConstant              = "Accept"
	contentTypeHeaderNameConstant         = "Content-Type"
	authorizationHeaderNameConstant       = "Authorization"
	jsonContentTypeConstant               = "application/json"
	bearerAuthorizationTemplateConstant   = "Bearer %s"
	clientNotConfiguredMessageConstant    = "pull request service owner, repository, and token must be configured"
	titleRequiredMessageConstant          = "pull request title must be provided"
	remoteErrorTemplateConstant           = "pull request service returned status %d: %s"
	requestBuildErrorTemplateConstant     = "unable to build pull request service request: %w"
	requestExecutionErrorTemplateConstant = "pull request service request failed: %w"
	responseDecodingErrorTemplateConstant = "unable to decode pull request service response: %w"
	payloadEncodingErrorTemplateConstant  = "unable to encode pull request service payload: %w"
	reviewerAssignmentErrorTemplate       = "pull request %s created but reviewer assignment failed: %s"
	responseBodyReadLimitConstant         = 8 << 10
	defaultRequestTimeoutDurationConstant = 15 * time.Second
	trailingSlashCutSetConstant           = "/"
	successStatusLowerBoundInclusiveLimit = 200
	successStatusUpperBoundExclusiveLimit = 300
)

// ErrNotConfigured indicates required credentials or repository coordinates were absent.
var ErrNotConfigured = errors.New(clientNotConfiguredMessageConstant)

// ErrTitleRequired indicates a pull request was requested without a title.
var ErrTitleRequired = errors.New(titleRequiredMessageConstant)

// RemoteError reports a non-success response from the pull-request service.
type RemoteError struct {
	StatusCode int
	Body       string
}

// Error describes the remote failure.
func (remoteError RemoteError) Error() string {
	return fmt.Sprintf(remoteErrorTemplateConstant, remoteError.StatusCode, remoteError.Body)
}

// ReviewerAssignmentError reports a pull request that was created while the
// follow-up reviewer assignment failed. The pull request is not rolled back.
type ReviewerAssignmentError struct {
	PullRequest PullRequest
	Cause       error
}

// Error describes the partial success.
func (assignmentError ReviewerAssignmentError) Error() string {
	return fmt.Sprintf(reviewerAssignmentErrorTemplate, assignmentError.PullRequest.URL, assignmentError.Cause)
}

// Unwrap exposes the underlying cause.
func (assignmentError ReviewerAssignmentError) Unwrap() error {
	return assignmentError.Cause
}

// PullRequest identifies a created pull request.
type PullRequest struct {
	Number int
	URL    string
}

// PullRequestRequest describes the pull request to create.
type PullRequestRequest struct {
	Title     string
	Head      string
	Base      string
	Body      string
	Reviewers []string
}

// Configuration captures the connection settings for the pull-request service.
type Configuration struct {
	BaseURL    string        `mapstructure:"base_url"`
	Owner      string        `mapstructure:"owner"`
	Repository string        `mapstructure:"repository"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Client performs authenticated pull-request service requests.
type Client struct {
	baseURL    string
	owner      string
	repository string
	token      string
	httpClient *http.Client
}

// NewClient constructs a Client from the provided configuration.
func NewClient(configuration Configuration) (*Client, error) {
	trimmedOwner := strings.TrimSpace(configuration.Owner)
	trimmedRepository := strings.TrimSpace(configuration.Repository)
	trimmedToken := strings.TrimSpace(configuration.Token)
	if len(trimmedOwner) == 0 || len(trimmedRepository) == 0 || len(trimmedToken) == 0 {
		return nil, ErrNotConfigured
	}

	trimmedBaseURL := strings.TrimRight(strings.TrimSpace(configuration.BaseURL), trailingSlashCutSetConstant)
	if len(trimmedBaseURL) == 0 {
		trimmedBaseURL = defaultBaseURLConstant
	}

	requestTimeout := configuration.Timeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeoutDurationConstant
	}

	return &Client{
		baseURL:    trimmedBaseURL,
		owner:      trimmedOwner,
		repository: trimmedRepository,
		token:      trimmedToken,
		httpClient: &http.Client{Timeout: requestTimeout},
	}, nil
}

// CreatePullRequest opens a pull request and requests the supplied reviewers.
// Reviewer assignment is a second, independent call: its failure surfaces as a
// ReviewerAssignmentError alongside the created pull request, never a rollback.
func (client *Client) CreatePullRequest(executionContext context.Context, request PullRequestRequest) (PullRequest, error) {
	if len(strings.TrimSpace(request.Title)) == 0 {
		return PullRequest{}, ErrTitleRequired
	}

	payload := struct {
		Title string `json:"title"`
		Head  string `json:"head"`
		Base  string `json:"base"`
		Body  string `json:"body"`
	}{
		Title: request.Title,
		Head:  request.Head,
		Base:  request.Base,
		Body:  request.Body,
	}

	endpoint := fmt.Sprintf(pullsEndpointTemplateConstant, client.baseURL, client.owner, client.repository)
	var response struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
	}
	if postError := client.postJSON(executionContext, endpoint, payload, &response); postError != nil {
		return PullRequest{}, postError
	}

	pullRequest := PullRequest{Number: response.Number, URL: response.HTMLURL}

	if len(request.Reviewers) == 0 {
		return pullRequest, nil
	}

	if assignmentError := client.requestReviewers(executionContext, pullRequest.Number, request.Reviewers); assignmentError != nil {
		return pullRequest, ReviewerAssignmentError{PullRequest: pullRequest, Cause: assignmentError}
	}

	return pullRequest, nil
}

func (client *Client) requestReviewers(executionContext context.Context, pullRequestNumber int, reviewers []string) error {
	payload := struct {
		Reviewers []string `json:"reviewers"`
	}{Reviewers: reviewers}

	endpoint := fmt.Sprintf(reviewersEndpointTemplateConstant, client.baseURL, client.owner, client.repository, pullRequestNumber)
	return client.postJSON(executionContext, endpoint, payload, nil)
}

func (client *Client) postJSON(executionContext context.Context, endpoint string, payload any, target any) error {
	encodedPayload, encodingError := json.Marshal(payload)
	if encodingError != nil {
		return fmt.Errorf(payloadEncodingErrorTemplateConstant, encodingError)
	}

	request, requestError := http.NewRequestWithContext(executionContext, http.MethodPost, endpoint, bytes.NewReader(encodedPayload))
	if requestError != nil {
		return fmt.Errorf(requestBuildErrorTemplateConstant, requestError)
	}
	request.Header.Set(acceptHeaderNameConstant, jsonContentTypeConstant)
	request.Header.Set(contentTypeHeaderNameConstant, jsonContentTypeConstant)
	request.Header.Set(authorizationHeaderNameConstant, fmt.Sprintf(bearerAuthorizationTemplateConstant, client.token))

	response, responseError := client.httpClient.Do(request)
	if responseError != nil {
		return fmt.Errorf(requestExecutionErrorTemplateConstant, responseError)
	}
	defer response.Body.Close()

	if response.StatusCode < successStatusLowerBoundInclusiveLimit || response.StatusCode >= successStatusUpperBoundExclusiveLimit {
		body, _ := io.ReadAll(io.LimitReader(response.Body, responseBodyReadLimitConstant))
		return RemoteError{StatusCode: response.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if target == nil {
		return nil
	}
	if decodingError := json.NewDecoder(response.Body).Decode(target); decodingError != nil {
		return fmt.Errorf(responseDecodingErrorTemplateConstant, decodingError)
	}
	return nil
}
