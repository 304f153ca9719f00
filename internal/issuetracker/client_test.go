package issuetracker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"branchflow/internal/issuetracker"
)

const (
	testIssueKeyConstant = "HKBP-222"
	testEmailConstant    = "operator@example.com"
	testTokenConstant    = "api-token"
)

func newTestConfiguration(baseURL string) issuetracker.Configuration {
	return issuetracker.Configuration{BaseURL: baseURL, Email: testEmailConstant, Token: testTokenConstant}
}

func TestNewClientRequiresConfiguration(testInstance *testing.T) {
	testCases := []struct {
		name          string
		configuration issuetracker.Configuration
	}{
		{name: "missing_base_url", configuration: issuetracker.Configuration{Email: testEmailConstant, Token: testTokenConstant}},
		{name: "missing_email", configuration: issuetracker.Configuration{BaseURL: "https://tracker.example.com", Token: testTokenConstant}},
		{name: "missing_token", configuration: issuetracker.Configuration{BaseURL: "https://tracker.example.com", Email: testEmailConstant}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			client, creationError := issuetracker.NewClient(testCase.configuration)
			require.ErrorIs(testInstance, creationError, issuetracker.ErrNotConfigured)
			require.Nil(testInstance, client)
		})
	}
}

func TestGetIssueDecodesFields(testInstance *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		require.Equal(testInstance, http.MethodGet, request.Method)
		require.Equal(testInstance, "/rest/api/2/issue/"+testIssueKeyConstant, request.URL.Path)
		require.NotEmpty(testInstance, request.Header.Get("Authorization"))

		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(map[string]any{
			"key": testIssueKeyConstant,
			"fields": map[string]any{
				"summary":     "Login fails on expired session",
				"description": "Steps to reproduce",
				"issuetype":   map[string]any{"name": "Bug"},
				"status":      map[string]any{"name": "In Progress"},
			},
		})
	}))
	defer server.Close()

	client, creationError := issuetracker.NewClient(newTestConfiguration(server.URL))
	require.NoError(testInstance, creationError)

	issue, fetchError := client.GetIssue(context.Background(), testIssueKeyConstant)
	require.NoError(testInstance, fetchError)
	require.Equal(testInstance, testIssueKeyConstant, issue.Key)
	require.Equal(testInstance, "Login fails on expired session", issue.Summary)
	require.Equal(testInstance, "Bug", issue.IssueType)
	require.Equal(testInstance, "In Progress", issue.Status)
	require.Equal(testInstance, server.URL+"/browse/"+testIssueKeyConstant, issue.URL)
}

func TestGetIssueSurfacesRemoteError(testInstance *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusNotFound)
		_, _ = writer.Write([]byte("issue does not exist"))
	}))
	defer server.Close()

	client, creationError := issuetracker.NewClient(newTestConfiguration(server.URL))
	require.NoError(testInstance, creationError)

	_, fetchError := client.GetIssue(context.Background(), testIssueKeyConstant)
	var remoteError issuetracker.RemoteError
	require.ErrorAs(testInstance, fetchError, &remoteError)
	require.Equal(testInstance, http.StatusNotFound, remoteError.StatusCode)
	require.Contains(testInstance, remoteError.Body, "does not exist")
}

func TestGetIssueRequiresKey(testInstance *testing.T) {
	client, creationError := issuetracker.NewClient(newTestConfiguration("https://tracker.example.com"))
	require.NoError(testInstance, creationError)

	_, fetchError := client.GetIssue(context.Background(), "  ")
	require.ErrorIs(testInstance, fetchError, issuetracker.ErrIssueKeyRequired)
}

func TestAppendDescriptionPerformsReadModifyWrite(testInstance *testing.T) {
	var submittedDescription string

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.Method {
		case http.MethodGet:
			writer.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(writer).Encode(map[string]any{
				"key": testIssueKeyConstant,
				"fields": map[string]any{
					"summary":     "Login fails",
					"description": "Existing description",
					"issuetype":   map[string]any{"name": "Bug"},
					"status":      map[string]any{"name": "Open"},
				},
			})
		case http.MethodPut:
			var payload struct {
				Fields struct {
					Description string `json:"description"`
				} `json:"fields"`
			}
			require.NoError(testInstance, json.NewDecoder(request.Body).Decode(&payload))
			submittedDescription = payload.Fields.Description
			writer.WriteHeader(http.StatusNoContent)
		default:
			writer.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer server.Close()

	client, creationError := issuetracker.NewClient(newTestConfiguration(server.URL))
	require.NoError(testInstance, creationError)

	appendError := client.AppendDescription(context.Background(), testIssueKeyConstant, "Merge note")
	require.NoError(testInstance, appendError)
	require.Equal(testInstance, "Existing description\n\nMerge note", submittedDescription)
}

func TestJoinDescription(testInstance *testing.T) {
	testCases := []struct {
		name           string
		existing       string
		addition       string
		expectedResult string
	}{
		{name: "empty_existing", existing: "", addition: "X", expectedResult: "X"},
		{name: "whitespace_existing", existing: "  \n", addition: "X", expectedResult: "X"},
		{name: "appended", existing: "X", addition: "Y", expectedResult: "X\n\nY"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expectedResult, issuetracker.JoinDescription(testCase.existing, testCase.addition))
		})
	}
}
