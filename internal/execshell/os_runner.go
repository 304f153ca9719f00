package execshell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

const environmentAssignmentSeparatorConstant = "="

// OSCommandRunner executes shell commands through os/exec.
type OSCommandRunner struct{}

// NewOSCommandRunner constructs a runner backed by the operating system.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{}
}

// Run executes the supplied command and captures its output streams. A
// non-zero exit is reported through ExecutionResult.ExitCode rather than an
// error; errors are reserved for commands that could not run at all.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	processCommand := exec.CommandContext(executionContext, string(command.Name), command.Details.Arguments...)

	if len(command.Details.WorkingDirectory) > 0 {
		processCommand.Dir = command.Details.WorkingDirectory
	}
	if len(command.Details.EnvironmentVariables) > 0 {
		processCommand.Env = mergedProcessEnvironment(command.Details.EnvironmentVariables)
	}
	if len(command.Details.StandardInput) > 0 {
		processCommand.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	var capturedStandardOutput bytes.Buffer
	var capturedStandardError bytes.Buffer
	processCommand.Stdout = &capturedStandardOutput
	processCommand.Stderr = &capturedStandardError

	runError := processCommand.Run()
	executionResult := ExecutionResult{
		StandardOutput: capturedStandardOutput.String(),
		StandardError:  capturedStandardError.String(),
	}

	if runError != nil {
		exitFailure := &exec.ExitError{}
		if errors.As(runError, &exitFailure) {
			executionResult.ExitCode = exitFailure.ExitCode()
			return executionResult, nil
		}
		return ExecutionResult{}, runError
	}

	return executionResult, nil
}

func mergedProcessEnvironment(environmentVariables map[string]string) []string {
	mergedEnvironment := append([]string{}, os.Environ()...)
	for environmentKey, environmentValue := range environmentVariables {
		mergedEnvironment = append(mergedEnvironment, environmentKey+environmentAssignmentSeparatorConstant+environmentValue)
	}
	return mergedEnvironment
}
