package prservice_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"branchflow/internal/prservice"
)

const (
	ownerConstant                     = "acme"
	repositoryConstant                = "widgets"
	tokenConstant                     = "service-token"
	pullRequestTitleConstant          = "Merge develop into main"
	pullRequestHeadConstant           = "develop"
	pullRequestBaseConstant           = "main"
	pullRequestBodyConstant           = "Automated merge."
	pullRequestNumberConstant         = 42
	pullRequestURLConstant            = "https://example.com/acme/widgets/pull/42"
	expectedPullsPathConstant         = "/repos/acme/widgets/pulls"
	expectedReviewersPathConstant     = "/repos/acme/widgets/pulls/42/requested_reviewers"
	expectedAuthorizationConstant     = "Bearer service-token"
	missingOwnerCaseNameConstant      = "missing_owner"
	missingTokenCaseNameConstant      = "missing_token"
	missingRepositoryCaseNameConstant = "missing_repository"
)

func TestNewClientValidatesConfiguration(testInstance *testing.T) {
	testCases := []struct {
		name          string
		configuration prservice.Configuration
	}{
		{
			name:          missingOwnerCaseNameConstant,
			configuration: prservice.Configuration{Repository: repositoryConstant, Token: tokenConstant},
		},
		{
			name:          missingRepositoryCaseNameConstant,
			configuration: prservice.Configuration{Owner: ownerConstant, Token: tokenConstant},
		},
		{
			name:          missingTokenCaseNameConstant,
			configuration: prservice.Configuration{Owner: ownerConstant, Repository: repositoryConstant},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			client, creationError := prservice.NewClient(testCase.configuration)
			require.ErrorIs(subtestInstance, creationError, prservice.ErrNotConfigured)
			require.Nil(subtestInstance, client)
		})
	}
}

func TestCreatePullRequestPostsPayloadAndAssignsReviewers(testInstance *testing.T) {
	var pullsRequestBody map[string]string
	var reviewersRequestBody map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		require.Equal(testInstance, http.MethodPost, request.Method)
		require.Equal(testInstance, expectedAuthorizationConstant, request.Header.Get("Authorization"))
		switch request.URL.Path {
		case expectedPullsPathConstant:
			require.NoError(testInstance, json.NewDecoder(request.Body).Decode(&pullsRequestBody))
			responseWriter.WriteHeader(http.StatusCreated)
			fmt.Fprintf(responseWriter, `{"number": %d, "html_url": %q}`, pullRequestNumberConstant, pullRequestURLConstant)
		case expectedReviewersPathConstant:
			require.NoError(testInstance, json.NewDecoder(request.Body).Decode(&reviewersRequestBody))
			responseWriter.WriteHeader(http.StatusCreated)
		default:
			testInstance.Fatalf("unexpected path %s", request.URL.Path)
		}
	}))
	defer server.Close()

	client, creationError := prservice.NewClient(prservice.Configuration{
		BaseURL:    server.URL,
		Owner:      ownerConstant,
		Repository: repositoryConstant,
		Token:      tokenConstant,
	})
	require.NoError(testInstance, creationError)

	pullRequest, requestError := client.CreatePullRequest(context.Background(), prservice.PullRequestRequest{
		Title:     pullRequestTitleConstant,
		Head:      pullRequestHeadConstant,
		Base:      pullRequestBaseConstant,
		Body:      pullRequestBodyConstant,
		Reviewers: []string{"alice", "bob"},
	})
	require.NoError(testInstance, requestError)
	require.Equal(testInstance, pullRequestNumberConstant, pullRequest.Number)
	require.Equal(testInstance, pullRequestURLConstant, pullRequest.URL)
	require.Equal(testInstance, pullRequestTitleConstant, pullsRequestBody["title"])
	require.Equal(testInstance, pullRequestHeadConstant, pullsRequestBody["head"])
	require.Equal(testInstance, pullRequestBaseConstant, pullsRequestBody["base"])
	require.Equal(testInstance, []string{"alice", "bob"}, reviewersRequestBody["reviewers"])
}

func TestCreatePullRequestSurfacesReviewerAssignmentFailure(testInstance *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		case expectedPullsPathConstant:
			responseWriter.WriteHeader(http.StatusCreated)
			fmt.Fprintf(responseWriter, `{"number": %d, "html_url": %q}`, pullRequestNumberConstant, pullRequestURLConstant)
		case expectedReviewersPathConstant:
			responseWriter.WriteHeader(http.StatusUnprocessableEntity)
		default:
			testInstance.Fatalf("unexpected path %s", request.URL.Path)
		}
	}))
	defer server.Close()

	client, creationError := prservice.NewClient(prservice.Configuration{
		BaseURL:    server.URL,
		Owner:      ownerConstant,
		Repository: repositoryConstant,
		Token:      tokenConstant,
	})
	require.NoError(testInstance, creationError)

	pullRequest, requestError := client.CreatePullRequest(context.Background(), prservice.PullRequestRequest{
		Title:     pullRequestTitleConstant,
		Head:      pullRequestHeadConstant,
		Base:      pullRequestBaseConstant,
		Reviewers: []string{"alice"},
	})

	var assignmentError prservice.ReviewerAssignmentError
	require.ErrorAs(testInstance, requestError, &assignmentError)
	require.Equal(testInstance, pullRequestNumberConstant, pullRequest.Number)
	require.Equal(testInstance, pullRequestURLConstant, assignmentError.PullRequest.URL)

	var remoteError prservice.RemoteError
	require.ErrorAs(testInstance, assignmentError.Cause, &remoteError)
	require.Equal(testInstance, http.StatusUnprocessableEntity, remoteError.StatusCode)
}

func TestCreatePullRequestReturnsRemoteError(testInstance *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		responseWriter.WriteHeader(http.StatusForbidden)
		fmt.Fprint(responseWriter, "insufficient scope")
	}))
	defer server.Close()

	client, creationError := prservice.NewClient(prservice.Configuration{
		BaseURL:    server.URL,
		Owner:      ownerConstant,
		Repository: repositoryConstant,
		Token:      tokenConstant,
	})
	require.NoError(testInstance, creationError)

	_, requestError := client.CreatePullRequest(context.Background(), prservice.PullRequestRequest{Title: pullRequestTitleConstant})
	var remoteError prservice.RemoteError
	require.ErrorAs(testInstance, requestError, &remoteError)
	require.Equal(testInstance, http.StatusForbidden, remoteError.StatusCode)
	require.Equal(testInstance, "insufficient scope", remoteError.Body)
}

func TestCreatePullRequestRequiresTitle(testInstance *testing.T) {
	client, creationError := prservice.NewClient(prservice.Configuration{
		Owner:      ownerConstant,
		Repository: repositoryConstant,
		Token:      tokenConstant,
	})
	require.NoError(testInstance, creationError)

	_, requestError := client.CreatePullRequest(context.Background(), prservice.PullRequestRequest{})
	require.ErrorIs(testInstance, requestError, prservice.ErrTitleRequired)
}

func TestReviewersForProjectResolvesConfiguredAssignments(testInstance *testing.T) {
	observedCore, observedLogs := observer.New(zap.WarnLevel)
	directory := prservice.NewReviewerDirectory(map[string][]string{
		"Backend": {"alice", "bob"},
		"mobile":  {"carol"},
	}, zap.New(observedCore))

	require.Equal(testInstance, []string{"alice", "bob"}, directory.ReviewersForProject("backend"))
	require.Equal(testInstance, []string{"carol"}, directory.ReviewersForProject("Mobile"))
	require.Zero(testInstance, observedLogs.Len())

	require.Empty(testInstance, directory.ReviewersForProject("firmware"))
	require.Equal(testInstance, 1, observedLogs.Len())
}
