package issuetracker_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"branchflow/internal/issuetracker"
)

type fakeIssueGetter struct {
	issue        issuetracker.Issue
	requestedKey string
}

func (getter *fakeIssueGetter) GetIssue(_ context.Context, issueKey string) (issuetracker.Issue, error) {
	getter.requestedKey = issueKey
	return getter.issue, nil
}

func TestIssueCommandPrintsIssueDetails(testInstance *testing.T) {
	getter := &fakeIssueGetter{
		issue: issuetracker.Issue{
			Key:         "HKBP-222",
			Summary:     "Fix login redirect",
			IssueType:   "Bug",
			Status:      "In Progress",
			URL:         "https://tracker.example.com/browse/HKBP-222",
			Description: "Login loops back to the start page.",
		},
	}
	builder := &issuetracker.CommandBuilder{Client: getter}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetArgs([]string{"HKBP-222"})

	require.NoError(testInstance, command.Execute())
	require.Equal(testInstance, "HKBP-222", getter.requestedKey)

	commandOutput := outputBuffer.String()
	require.Contains(testInstance, commandOutput, "HKBP-222  Fix login redirect")
	require.Contains(testInstance, commandOutput, "Bug")
	require.Contains(testInstance, commandOutput, "In Progress")
	require.Contains(testInstance, commandOutput, "https://tracker.example.com/browse/HKBP-222")
	require.Contains(testInstance, commandOutput, "Login loops back to the start page.")
}
