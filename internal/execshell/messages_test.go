package execshell_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"branchflow/internal/execshell"
)

const testRepositoryPathConstant = "/tmp/repository"

func TestCommandMessageFormatterDescribesGitSubcommands(testInstance *testing.T) {
	formatter := execshell.CommandMessageFormatter{}

	testCases := []struct {
		name            string
		arguments       []string
		expectedStart   string
		expectedSuccess string
	}{
		{
			name:            "work_tree_probe",
			arguments:       []string{"rev-parse", "--is-inside-work-tree"},
			expectedStart:   "Analyzing repository at /tmp/repository",
			expectedSuccess: "/tmp/repository is a Git repository",
		},
		{
			name:            "status",
			arguments:       []string{"status", "--porcelain"},
			expectedStart:   "Reviewing working tree status in /tmp/repository",
			expectedSuccess: "Collected working tree status for /tmp/repository",
		},
		{
			name:            "checkout",
			arguments:       []string{"checkout", "develop"},
			expectedStart:   "Switching /tmp/repository to develop",
			expectedSuccess: "/tmp/repository now on develop",
		},
		{
			name:            "merge",
			arguments:       []string{"merge", "develop"},
			expectedStart:   "Merging develop in /tmp/repository",
			expectedSuccess: "Merged develop in /tmp/repository",
		},
		{
			name:            "branch_deletion",
			arguments:       []string{"branch", "--delete", "--force", "feature/login"},
			expectedStart:   "Removing local branch feature/login in /tmp/repository",
			expectedSuccess: "Removed local branch feature/login in /tmp/repository",
		},
		{
			name:            "remote_branch_deletion",
			arguments:       []string{"push", "origin", "--delete", "feature/login"},
			expectedStart:   "Deleting remote branch feature/login in /tmp/repository",
			expectedSuccess: "Deleted remote branch feature/login in /tmp/repository",
		},
		{
			name:            "push",
			arguments:       []string{"push", "--set-upstream", "origin", "feature/login"},
			expectedStart:   "Pushing feature/login in /tmp/repository",
			expectedSuccess: "Pushed feature/login in /tmp/repository",
		},
		{
			name:            "pull",
			arguments:       []string{"pull", "--ff-only"},
			expectedStart:   "Pulling latest changes in /tmp/repository",
			expectedSuccess: "Pulled latest changes in /tmp/repository",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			command := execshell.ShellCommand{
				Name: execshell.CommandGit,
				Details: execshell.CommandDetails{
					Arguments:        testCase.arguments,
					WorkingDirectory: testRepositoryPathConstant,
				},
			}

			require.Equal(testInstance, testCase.expectedStart, formatter.BuildStartedMessage(command))
			require.Equal(testInstance, testCase.expectedSuccess, formatter.BuildSuccessMessage(command))
		})
	}
}

func TestCommandMessageFormatterIncludesExitCodeAndStandardError(testInstance *testing.T) {
	formatter := execshell.CommandMessageFormatter{}
	command := execshell.ShellCommand{
		Name: execshell.CommandGit,
		Details: execshell.CommandDetails{
			Arguments:        []string{"merge", "develop"},
			WorkingDirectory: testRepositoryPathConstant,
		},
	}
	result := execshell.ExecutionResult{ExitCode: 1, StandardError: "CONFLICT (content): Merge conflict"}

	failureMessage := formatter.BuildFailureMessage(command, result)
	require.Contains(testInstance, failureMessage, "Failed to merge develop")
	require.Contains(testInstance, failureMessage, "exit code 1")
	require.Contains(testInstance, failureMessage, "CONFLICT")
}

func TestCommandMessageFormatterCurrentBranchDetectsDetachedHead(testInstance *testing.T) {
	formatter := execshell.CommandMessageFormatter{}
	command := execshell.ShellCommand{
		Name: execshell.CommandGit,
		Details: execshell.CommandDetails{
			Arguments:        []string{"rev-parse", "--abbrev-ref", "HEAD"},
			WorkingDirectory: testRepositoryPathConstant,
		},
	}

	require.Equal(testInstance, "Identifying current branch in /tmp/repository", formatter.BuildStartedMessage(command))
}

func TestCommandMessageFormatterFallsBackToGenericDescription(testInstance *testing.T) {
	formatter := execshell.CommandMessageFormatter{}
	command := execshell.ShellCommand{
		Name:    execshell.CommandGit,
		Details: execshell.CommandDetails{Arguments: []string{"gc"}},
	}

	require.Equal(testInstance, "Running git gc", formatter.BuildStartedMessage(command))
	require.Equal(testInstance, "Completed git gc", formatter.BuildSuccessMessage(command))
}
