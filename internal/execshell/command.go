package execshell

import (
	"fmt"
	"strings"
)

const (
	gitCommandNameConstant                     = "git"
	commandFailedTemplateConstant              = "%s exited with code %d%s"
	commandExecutionFailedTemplateConstant     = "%s could not be executed: %s"
	commandDescriptionJoinSeparatorConstant    = " "
	commandFailureStandardErrorSuffixConstant  = ": %s"
	commandFailureUnknownCauseMessageConstant  = "unknown error"
	emptyCommandDescriptionFallbackConstant    = "command"
	commandDescriptionWorkingDirectoryConstant = " (in %s)"
	commandDescriptionArgumentsLimitConstant   = 12
	commandDescriptionTruncationSuffixConstant = " ..."
)

// CommandName identifies a supported executable.
type CommandName string

// CommandGit identifies the git executable.
const CommandGit CommandName = CommandName(gitCommandNameConstant)

// CommandDetails describes one invocation of an external tool.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
}

// ShellCommand pairs a command name with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable outputs of a completed command.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandFailedError reports a command that ran but exited non-zero.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the non-zero exit.
func (failedError CommandFailedError) Error() string {
	return fmt.Sprintf(
		commandFailedTemplateConstant,
		describeCommand(failedError.Command),
		failedError.Result.ExitCode,
		formatStandardErrorSuffix(failedError.Result.StandardError),
	)
}

// CommandExecutionError reports a command that could not be started.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (executionError CommandExecutionError) Error() string {
	causeMessage := commandFailureUnknownCauseMessageConstant
	if executionError.Cause != nil {
		causeMessage = executionError.Cause.Error()
	}
	return fmt.Sprintf(commandExecutionFailedTemplateConstant, describeCommand(executionError.Command), causeMessage)
}

// Unwrap exposes the underlying cause.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

func describeCommand(command ShellCommand) string {
	commandParts := []string{string(command.Name)}
	arguments := command.Details.Arguments
	if len(arguments) > commandDescriptionArgumentsLimitConstant {
		arguments = arguments[:commandDescriptionArgumentsLimitConstant]
	}
	commandParts = append(commandParts, arguments...)

	description := strings.TrimSpace(strings.Join(commandParts, commandDescriptionJoinSeparatorConstant))
	if len(description) == 0 {
		description = emptyCommandDescriptionFallbackConstant
	}
	if len(command.Details.Arguments) > commandDescriptionArgumentsLimitConstant {
		description += commandDescriptionTruncationSuffixConstant
	}

	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) > 0 {
		description += fmt.Sprintf(commandDescriptionWorkingDirectoryConstant, trimmedWorkingDirectory)
	}

	return description
}

func formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return ""
	}
	return fmt.Sprintf(commandFailureStandardErrorSuffixConstant, trimmedStandardError)
}
