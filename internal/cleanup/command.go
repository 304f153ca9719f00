package cleanup

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"branchflow/internal/execshell"
	"branchflow/internal/gitrepo"
	"branchflow/internal/ui"
	"branchflow/internal/utils"
)

const (
	commandUseConstant                 = "cleanup-branches <substring>"
	commandShortDescriptionConstant    = "Delete local and remote branches whose names contain a substring"
	commandLongDescriptionConstant     = "cleanup-branches lists every branch whose name contains the given substring, asks for one confirmation covering the whole batch, and deletes the branches. The currently checked out branch is always skipped."
	flagIncludeRemoteNameConstant      = "include-remote"
	flagIncludeRemoteDescription       = "also match and delete remote branches"
	flagRemoteNameConstant             = "remote"
	flagRemoteDescriptionConstant      = "remote used for remote branch deletion"
	flagDryRunNameConstant             = "dry-run"
	flagDryRunDescriptionConstant      = "list matching branches without deleting them"
	flagYesNameConstant                = "yes"
	flagYesDescriptionConstant         = "delete without asking for confirmation"
	deletedLineTemplateConstant        = "deleted %s\n"
	skippedLineTemplateConstant        = "skipped %s (%s)\n"
	failedLineTemplateConstant         = "failed %s: %v\n"
	summaryLineTemplateConstant        = "%d deleted, %d skipped, %d failed\n"
	declinedOutputMessageConstant      = "No branches deleted.\n"
	defaultRepositoryPathConstant      = "."
)

// Configuration carries the settings consumed by the cleanup-branches command.
type Configuration struct {
	Remote string `mapstructure:"remote"`
}

// LoggerProvider supplies the zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the resolved tool configuration.
type ConfigurationProvider func() Configuration

// CommandBuilder assembles the cleanup-branches cobra command with configurable dependencies.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	Repository            RepositoryManager
	Prompter              ConfirmationPrompter
	CommandEventsObserver execshell.CommandEventObserver
}

// Build constructs the cobra command for the cleanup workflow.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.run,
	}

	command.Flags().Bool(flagIncludeRemoteNameConstant, false, flagIncludeRemoteDescription)
	command.Flags().String(flagRemoteNameConstant, "", flagRemoteDescriptionConstant)
	command.Flags().Bool(flagDryRunNameConstant, false, flagDryRunDescriptionConstant)
	command.Flags().Bool(flagYesNameConstant, false, flagYesDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	logger := builder.resolveLogger()

	includeRemote, _ := command.Flags().GetBool(flagIncludeRemoteNameConstant)
	remoteName, _ := command.Flags().GetString(flagRemoteNameConstant)
	if len(remoteName) == 0 {
		remoteName = configuration.Remote
	}
	dryRun, _ := command.Flags().GetBool(flagDryRunNameConstant)
	autoConfirm, _ := command.Flags().GetBool(flagYesNameConstant)

	repository, repositoryError := builder.resolveRepository(logger)
	if repositoryError != nil {
		return repositoryError
	}

	service, serviceError := NewService(Dependencies{
		Repository: repository,
		Prompter:   builder.resolvePrompter(command, autoConfirm),
		Logger:     logger,
	})
	if serviceError != nil {
		return serviceError
	}

	summary, cleanupError := service.Cleanup(command.Context(), Options{
		RepositoryPath: defaultRepositoryPathConstant,
		Substring:      arguments[0],
		IncludeRemote:  includeRemote,
		RemoteName:     remoteName,
		DryRun:         dryRun,
	})
	if cleanupError != nil {
		if errors.Is(cleanupError, ErrDeletionDeclined) {
			fmt.Fprint(command.OutOrStdout(), declinedOutputMessageConstant)
			return nil
		}
		return cleanupError
	}

	builder.reportSummary(command, summary)
	return nil
}

func (builder *CommandBuilder) reportSummary(command *cobra.Command, summary Summary) {
	for _, branchResult := range summary.Results {
		switch {
		case branchResult.Skipped:
			fmt.Fprintf(command.OutOrStdout(), skippedLineTemplateConstant, branchResult.Branch.Name, branchResult.SkipReason)
		case branchResult.Failure != nil:
			fmt.Fprintf(command.ErrOrStderr(), failedLineTemplateConstant, branchResult.Branch.Name, branchResult.Failure)
		default:
			fmt.Fprintf(command.OutOrStdout(), deletedLineTemplateConstant, branchResult.Branch.Name)
		}
	}
	fmt.Fprintf(command.OutOrStdout(), summaryLineTemplateConstant, summary.Deleted, summary.Skipped, summary.Failed)
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return Configuration{}
	}
	return builder.ConfigurationProvider()
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

func (builder *CommandBuilder) resolvePrompter(command *cobra.Command, autoConfirm bool) ConfirmationPrompter {
	if autoConfirm {
		return ui.AutoApprovePrompter{}
	}
	if builder.Prompter != nil {
		return builder.Prompter
	}
	return ui.NewIOConfirmationPrompter(command.InOrStdin(), utils.NewFlushingWriter(command.OutOrStdout()))
}
