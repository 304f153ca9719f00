package topics

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"branchflow/internal/execshell"
	"branchflow/internal/gitrepo"
)

const (
	commandUseConstant              = "topic-branches [<branch>]"
	commandShortDescriptionConstant = "List branches sharing the prefix of the current or named branch"
	commandLongDescriptionConstant  = "topic-branches derives the prefix of the reference branch (everything before the last slash) and lists every local and remote branch starting with that prefix."
	branchLineTemplateConstant      = "%s\n"
	defaultRepositoryPathConstant   = "."
)

// LoggerProvider supplies the zap logger for command execution.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the topic-branches cobra command with configurable dependencies.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	Repository            RepositoryManager
	CommandEventsObserver execshell.CommandEventObserver
}

// Build constructs the cobra command for topic branch listing.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		Args:  cobra.MaximumNArgs(1),
		RunE:  builder.run,
	}
	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	logger := builder.resolveLogger()

	repository, repositoryError := builder.resolveRepository(logger)
	if repositoryError != nil {
		return repositoryError
	}

	service, serviceError := NewService(repository, logger)
	if serviceError != nil {
		return serviceError
	}

	referenceBranch := ""
	if len(arguments) > 0 {
		referenceBranch = arguments[0]
	}

	topicBranches, listError := service.ListTopicBranches(command.Context(), defaultRepositoryPathConstant, referenceBranch)
	if listError != nil {
		return listError
	}

	for _, branchName := range topicBranches {
		fmt.Fprintf(command.OutOrStdout(), branchLineTemplateConstant, branchName)
	}
	return nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveRepository(logger *zap.Logger) (RepositoryManager, error) {
	if builder.Repository != nil {
		return builder.Repository, nil
	}
	observers := []execshell.CommandEventObserver{}
	if builder.CommandEventsObserver != nil {
		observers = append(observers, builder.CommandEventsObserver)
	}
	executor, executorError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), observers...)
	if executorError != nil {
		return nil, executorError
	}
	return gitrepo.NewRepositoryManager(executor)
}
