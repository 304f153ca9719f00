package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
)

const (
	gitRevParseSubcommandNameConstant = "rev-parse"
	gitWorkTreeFlagConstant           = "--is-inside-work-tree"
	gitAbbrevRefFlagConstant          = "--abbrev-ref"
	gitStatusSubcommandNameConstant   = "status"
	gitCheckoutSubcommandNameConstant = "checkout"
	gitBranchSubcommandNameConstant   = "branch"
	gitDeleteFlagConstant             = "--delete"
	gitMergeSubcommandNameConstant    = "merge"
	gitDiffSubcommandNameConstant     = "diff"
	gitPullSubcommandNameConstant     = "pull"
	gitPushSubcommandNameConstant     = "push"
	gitPushDeleteFlagConstant         = "--delete"
	gitRevListSubcommandNameConstant  = "rev-list"
)

const (
	gitWorkTreeStartTemplateConstant         = "Analyzing repository at %s"
	gitWorkTreeSuccessTemplateConstant       = "%s is a Git repository"
	gitWorkTreeFailureTemplateConstant       = "Could not confirm %s is a Git repository (exit code %d%s)"
	gitCurrentBranchStartTemplateConstant    = "Identifying current branch in %s"
	gitCurrentBranchSuccessTemplateConstant  = "Current branch in %s is %s"
	gitCurrentBranchDetachedTemplateConstant = "%s is in a detached HEAD state"
	gitCurrentBranchFailureTemplateConstant  = "Failed to identify current branch in %s (exit code %d%s)"
	gitStatusStartTemplateConstant           = "Reviewing working tree status in %s"
	gitStatusSuccessTemplateConstant         = "Collected working tree status for %s"
	gitStatusFailureTemplateConstant         = "Failed to review working tree status in %s (exit code %d%s)"
	gitCheckoutStartTemplateConstant         = "Switching %s to %s"
	gitCheckoutSuccessTemplateConstant       = "%s now on %s"
	gitCheckoutFailureTemplateConstant       = "Failed to switch %s to %s (exit code %d%s)"
	gitBranchDeleteStartTemplateConstant     = "Removing local branch %s in %s"
	gitBranchDeleteSuccessTemplateConstant   = "Removed local branch %s in %s"
	gitBranchDeleteFailureTemplateConstant   = "Failed to remove local branch %s in %s (exit code %d%s)"
	gitBranchListStartTemplateConstant       = "Listing branches in %s"
	gitBranchListSuccessTemplateConstant     = "Listed branches in %s"
	gitBranchListFailureTemplateConstant     = "Failed to list branches in %s (exit code %d%s)"
	gitMergeStartTemplateConstant            = "Merging %s in %s"
	gitMergeSuccessTemplateConstant          = "Merged %s in %s"
	gitMergeFailureTemplateConstant          = "Failed to merge %s in %s (exit code %d%s)"
	gitDiffStartTemplateConstant             = "Comparing against %s in %s"
	gitDiffSuccessTemplateConstant           = "Compared against %s in %s"
	gitDiffFailureTemplateConstant           = "Failed to compare against %s in %s (exit code %d%s)"
	gitPullStartTemplateConstant             = "Pulling latest changes in %s"
	gitPullSuccessTemplateConstant           = "Pulled latest changes in %s"
	gitPullFailureTemplateConstant           = "Failed to pull latest changes in %s (exit code %d%s)"
	gitPushStartTemplateConstant             = "Pushing %s in %s"
	gitPushSuccessTemplateConstant           = "Pushed %s in %s"
	gitPushFailureTemplateConstant           = "Failed to push %s in %s (exit code %d%s)"
	gitPushDeleteStartTemplateConstant       = "Deleting remote branch %s in %s"
	gitPushDeleteSuccessTemplateConstant     = "Deleted remote branch %s in %s"
	gitPushDeleteFailureTemplateConstant     = "Failed to delete remote branch %s in %s (exit code %d%s)"
	gitRevListStartTemplateConstant          = "Counting unpushed commits in %s"
	gitRevListSuccessTemplateConstant        = "Counted unpushed commits in %s"
	gitRevListFailureTemplateConstant        = "Failed to count unpushed commits in %s (exit code %d%s)"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name != CommandGit || len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	if stage == messageStageExecutionFailure {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	subcommand := strings.TrimSpace(command.Details.Arguments[0])
	switch subcommand {
	case gitRevParseSubcommandNameConstant:
		return formatter.describeGitRevParseMessage(command, result, stage)
	case gitStatusSubcommandNameConstant:
		return formatter.describeByLocation(command, result, stage, gitStatusStartTemplateConstant, gitStatusSuccessTemplateConstant, gitStatusFailureTemplateConstant)
	case gitCheckoutSubcommandNameConstant:
		return formatter.describeCheckoutMessage(command, result, stage)
	case gitBranchSubcommandNameConstant:
		return formatter.describeBranchMessage(command, result, stage)
	case gitMergeSubcommandNameConstant:
		return formatter.describeByArgumentAndLocation(command, result, stage, 1, gitMergeStartTemplateConstant, gitMergeSuccessTemplateConstant, gitMergeFailureTemplateConstant)
	case gitDiffSubcommandNameConstant:
		return formatter.describeByArgumentAndLocation(command, result, stage, len(command.Details.Arguments)-1, gitDiffStartTemplateConstant, gitDiffSuccessTemplateConstant, gitDiffFailureTemplateConstant)
	case gitPullSubcommandNameConstant:
		return formatter.describeByLocation(command, result, stage, gitPullStartTemplateConstant, gitPullSuccessTemplateConstant, gitPullFailureTemplateConstant)
	case gitPushSubcommandNameConstant:
		return formatter.describePushMessage(command, result, stage)
	case gitRevListSubcommandNameConstant:
		return formatter.describeByLocation(command, result, stage, gitRevListStartTemplateConstant, gitRevListSuccessTemplateConstant, gitRevListFailureTemplateConstant)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitRevParseMessage(command ShellCommand, result ExecutionResult, stage messageStage) string {
	arguments := command.Details.Arguments
	workingDirectory := formatter.describeWorkingDirectory(command)

	if containsArgument(arguments, gitWorkTreeFlagConstant) {
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitWorkTreeStartTemplateConstant, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitWorkTreeSuccessTemplateConstant, workingDirectory)
		default:
			return fmt.Sprintf(gitWorkTreeFailureTemplateConstant, workingDirectory, result.ExitCode, formatStandardErrorSuffix(result.StandardError))
		}
	}

	if containsArgument(arguments, gitAbbrevRefFlagConstant) {
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitCurrentBranchStartTemplateConstant, workingDirectory)
		case messageStageSuccess:
			trimmed := strings.TrimSpace(result.StandardOutput)
			if len(trimmed) == 0 || strings.EqualFold(trimmed, "HEAD") {
				return fmt.Sprintf(gitCurrentBranchDetachedTemplateConstant, workingDirectory)
			}
			return fmt.Sprintf(gitCurrentBranchSuccessTemplateConstant, workingDirectory, trimmed)
		default:
			return fmt.Sprintf(gitCurrentBranchFailureTemplateConstant, workingDirectory, result.ExitCode, formatStandardErrorSuffix(result.StandardError))
		}
	}

	return formatter.buildGenericMessage(command, result, nil, stage)
}

func (formatter CommandMessageFormatter) describeCheckoutMessage(command ShellCommand, result ExecutionResult, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	target := formatter.lastArgument(command.Details.Arguments)

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitCheckoutStartTemplateConstant, workingDirectory, target)
	case messageStageSuccess:
		return fmt.Sprintf(gitCheckoutSuccessTemplateConstant, workingDirectory, target)
	default:
		return fmt.Sprintf(gitCheckoutFailureTemplateConstant, workingDirectory, target, result.ExitCode, formatStandardErrorSuffix(result.StandardError))
	}
}

func (formatter CommandMessageFormatter) describeBranchMessage(command ShellCommand, result ExecutionResult, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)

	if containsArgument(command.Details.Arguments, gitDeleteFlagConstant) {
		branchName := formatter.lastArgument(command.Details.Arguments)
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitBranchDeleteStartTemplateConstant, branchName, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitBranchDeleteSuccessTemplateConstant, branchName, workingDirectory)
		default:
			return fmt.Sprintf(gitBranchDeleteFailureTemplateConstant, branchName, workingDirectory, result.ExitCode, formatStandardErrorSuffix(result.StandardError))
		}
	}

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitBranchListStartTemplateConstant, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitBranchListSuccessTemplateConstant, workingDirectory)
	default:
		return fmt.Sprintf(gitBranchListFailureTemplateConstant, workingDirectory, result.ExitCode, formatStandardErrorSuffix(result.StandardError))
	}
}

func (formatter CommandMessageFormatter) describePushMessage(command ShellCommand, result ExecutionResult, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	reference := formatter.lastArgument(command.Details.Arguments)

	if containsArgument(command.Details.Arguments, gitPushDeleteFlagConstant) {
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitPushDeleteStartTemplateConstant, reference, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitPushDeleteSuccessTemplateConstant, reference, workingDirectory)
		default:
			return fmt.Sprintf(gitPushDeleteFailureTemplateConstant, reference, workingDirectory, result.ExitCode, formatStandardErrorSuffix(result.StandardError))
		}
	}

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitPushStartTemplateConstant, reference, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitPushSuccessTemplateConstant, reference, workingDirectory)
	default:
		return fmt.Sprintf(gitPushFailureTemplateConstant, reference, workingDirectory, result.ExitCode, formatStandardErrorSuffix(result.StandardError))
	}
}

func (formatter CommandMessageFormatter) describeByLocation(command ShellCommand, result ExecutionResult, stage messageStage, startTemplate string, successTemplate string, failureTemplate string) string {
	workingDirectory := formatter.describeWorkingDirectory(command)

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(startTemplate, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(successTemplate, workingDirectory)
	default:
		return fmt.Sprintf(failureTemplate, workingDirectory, result.ExitCode, formatStandardErrorSuffix(result.StandardError))
	}
}

func (formatter CommandMessageFormatter) describeByArgumentAndLocation(command ShellCommand, result ExecutionResult, stage messageStage, argumentIndex int, startTemplate string, successTemplate string, failureTemplate string) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	argumentValue := formatter.argumentAtIndex(command.Details.Arguments, argumentIndex)

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(startTemplate, argumentValue, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(successTemplate, argumentValue, workingDirectory)
	default:
		return fmt.Sprintf(failureTemplate, argumentValue, workingDirectory, result.ExitCode, formatStandardErrorSuffix(result.StandardError))
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := describeCommand(command)

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatStandardErrorSuffix(result.StandardError))
	default:
		failureMessage := commandFailureUnknownCauseMessageConstant
		if failure != nil {
			failureMessage = failure.Error()
		}
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, failureMessage)
	}
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) argumentAtIndex(arguments []string, index int) string {
	if index < 0 || index >= len(arguments) {
		return fallbackUnknownValueLabelConstant
	}
	trimmedArgument := strings.TrimSpace(arguments[index])
	if len(trimmedArgument) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmedArgument
}

func (formatter CommandMessageFormatter) lastArgument(arguments []string) string {
	return formatter.argumentAtIndex(arguments, len(arguments)-1)
}

func containsArgument(arguments []string, candidate string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == candidate {
			return true
		}
	}
	return false
}
