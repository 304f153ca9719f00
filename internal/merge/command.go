package merge

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"branchflow/internal/execshell"
	"branchflow/internal/gitrepo"
	"branchflow/internal/issuetracker"
	"branchflow/internal/prservice"
	"branchflow/internal/secrets"
	"branchflow/internal/ui"
	"branchflow/internal/utils"
)

const (
	commandUseConstant                   = "merge-branch <target>"
	commandShortDescriptionConstant      = "Merge a target branch into the current branch through a disposable merge branch"
	commandLongDescriptionConstant       = "merge-branch syncs the target branch, creates a merge branch from the current branch, merges the target into it, pushes it, opens a pull request, and appends a note to the tracked issue."
	flagRemoteNameConstant               = "remote"
	flagRemoteDescriptionConstant        = "remote used for pushes and pulls"
	flagPushNameConstant                 = "push"
	flagPushDescriptionConstant          = "push unpushed commits without prompting"
	flagYesNameConstant                  = "yes"
	flagYesDescriptionConstant           = "answer yes to every confirmation prompt"
	flagProjectTypeNameConstant          = "project-type"
	flagProjectTypeDescriptionConstant   = "project type used to resolve pull request reviewers"
	flagSkipPullRequestNameConstant      = "skip-pr"
	flagSkipPullRequestDescription       = "push the merge branch without opening a pull request"
	mergedOutputTemplateConstant         = "Merge branch %s pushed.\n"
	mergedWithPROutputTemplateConstant   = "Merge branch %s pushed. Pull request: %s\n"
	noDifferenceOutputTemplateConstant   = "No changes against %s; merge branch %s discarded.\n"
	ownerRepositoryResolveWarnConstant   = "unable to derive owner and repository from remote; pull request creation disabled"
	issueTrackerDisabledWarnConstant     = "issue tracker credentials unavailable; issue updates disabled"
	pullRequestTokenUnavailableConstant  = "pull request service token unavailable; pull request creation disabled"
	remoteNameLogFieldConstant           = "remote"
	defaultRepositoryPathConstant        = "."
)

// Configuration carries the settings consumed by the merge-branch command.
type Configuration struct {
	Remote       string                     `mapstructure:"remote"`
	ProjectType  string                     `mapstructure:"project_type"`
	IssueTracker issuetracker.Configuration `mapstructure:"issue_tracker"`
	PullRequests prservice.Configuration    `mapstructure:"pull_requests"`
	Reviewers    map[string][]string        `mapstructure:"reviewers"`
}

// LoggerProvider supplies the zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the resolved tool configuration.
type ConfigurationProvider func() Configuration

// CommandBuilder assembles the merge-branch cobra command with configurable dependencies.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	Repository            RepositoryManager
	IssueTracker          IssueAnnotator
	PullRequests          PullRequestCreator
	Reviewers             ReviewerResolver
	Prompter              ConfirmationPrompter
	TokenSource           *secrets.TokenSource
	CommandEventsObserver execshell.CommandEventObserver
	Clock                 Clock
}

// Build constructs the cobra command for the merge-branch workflow.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.run,
	}

	command.Flags().String(flagRemoteNameConstant, "", flagRemoteDescriptionConstant)
	command.Flags().Bool(flagPushNameConstant, false, flagPushDescriptionConstant)
	command.Flags().Bool(flagYesNameConstant, false, flagYesDescriptionConstant)
	command.Flags().String(flagProjectTypeNameConstant, "", flagProjectTypeDescriptionConstant)
	command.Flags().Bool(flagSkipPullRequestNameConstant, false, flagSkipPullRequestDescription)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	logger := builder.resolveLogger()

	remoteName, _ := command.Flags().GetString(flagRemoteNameConstant)
	if len(remoteName) == 0 {
		remoteName = configuration.Remote
	}
	pushWithoutAsk, _ := command.Flags().GetBool(flagPushNameConstant)
	autoConfirm, _ := command.Flags().GetBool(flagYesNameConstant)
	projectType, _ := command.Flags().GetString(flagProjectTypeNameConstant)
	if len(projectType) == 0 {
		projectType = configuration.ProjectType
	}
	skipPullRequest, _ := command.Flags().GetBool(flagSkipPullRequestNameConstant)

	repository, repositoryError := builder.resolveRepository(logger)
	if repositoryError != nil {
		return repositoryError
	}

	prompter := builder.resolvePrompter(command, autoConfirm)
	issueAnnotator := builder.resolveIssueTracker(configuration, logger)
	pullRequestCreator, reviewerResolver := builder.resolvePullRequestService(command, configuration, repository, remoteName, logger)

	service, serviceError := NewService(Dependencies{
		Repository:   repository,
		IssueTracker: issueAnnotator,
		PullRequests: pullRequestCreator,
		Reviewers:    reviewerResolver,
		Prompter:     prompter,
		Clock:        builder.Clock,
		Logger:       logger,
	})
	if serviceError != nil {
		return serviceError
	}

	result, runError := service.Run(command.Context(), Options{
		RepositoryPath:  defaultRepositoryPathConstant,
		TargetBranch:    arguments[0],
		RemoteName:      remoteName,
		PushWithoutAsk:  pushWithoutAsk,
		ProjectType:     projectType,
		SkipPullRequest: skipPullRequest,
	})
	if runError != nil {
		return runError
	}

	builder.reportResult(command, arguments[0], result)
	return nil
}

func (builder *CommandBuilder) reportResult(command *cobra.Command, targetBranch string, result Result) {
	switch {
	case result.Outcome == OutcomeNoDifference:
		fmt.Fprintf(command.OutOrStdout(), noDifferenceOutputTemplateConstant, targetBranch, result.MergeBranch)
	case len(result.PullRequestURL) > 0:
		fmt.Fprintf(command.OutOrStdout(), mergedWithPROutputTemplateConstant, result.MergeBranch, result.PullRequestURL)
	default:
		fmt.Fprintf(command.OutOrStdout(), mergedOutputTemplateConstant, result.MergeBranch)
	}
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

func (builder *CommandBuilder) resolveIssueTracker(configuration Configuration, logger *zap.Logger) IssueAnnotator {
	if builder.IssueTracker != nil {
		return builder.IssueTracker
	}

	trackerConfiguration := configuration.IssueTracker
	tokenSource := builder.resolveTokenSource()
	resolvedToken, tokenError := tokenSource.IssueTrackerToken(trackerConfiguration.Token, trackerConfiguration.Email)
	if tokenError != nil {
		logger.Warn(issueTrackerDisabledWarnConstant, zap.Error(tokenError))
		return nil
	}
	trackerConfiguration.Token = resolvedToken

	client, clientError := issuetracker.NewClient(trackerConfiguration)
	if clientError != nil {
		logger.Warn(issueTrackerDisabledWarnConstant, zap.Error(clientError))
		return nil
	}
	return client
}

func (builder *CommandBuilder) resolvePullRequestService(command *cobra.Command, configuration Configuration, repository RepositoryManager, remoteName string, logger *zap.Logger) (PullRequestCreator, ReviewerResolver) {
	reviewerResolver := builder.Reviewers
	if reviewerResolver == nil {
		reviewerResolver = prservice.NewReviewerDirectory(configuration.Reviewers, logger)
	}

	if builder.PullRequests != nil {
		return builder.PullRequests, reviewerResolver
	}

	serviceConfiguration := configuration.PullRequests
	if len(serviceConfiguration.Owner) == 0 || len(serviceConfiguration.Repository) == 0 {
		owner, repositoryName, resolved := builder.deriveOwnerRepository(command, repository, remoteName)
		if !resolved {
			logger.Warn(ownerRepositoryResolveWarnConstant, zap.String(remoteNameLogFieldConstant, remoteName))
			return nil, reviewerResolver
		}
		if len(serviceConfiguration.Owner) == 0 {
			serviceConfiguration.Owner = owner
		}
		if len(serviceConfiguration.Repository) == 0 {
			serviceConfiguration.Repository = repositoryName
		}
	}

	tokenSource := builder.resolveTokenSource()
	resolvedToken, tokenError := tokenSource.PullRequestToken(serviceConfiguration.Token, serviceConfiguration.Owner)
	if tokenError != nil {
		logger.Warn(pullRequestTokenUnavailableConstant, zap.Error(tokenError))
		return nil, reviewerResolver
	}
	serviceConfiguration.Token = resolvedToken

	client, clientError := prservice.NewClient(serviceConfiguration)
	if clientError != nil {
		logger.Warn(pullRequestTokenUnavailableConstant, zap.Error(clientError))
		return nil, reviewerResolver
	}
	return client, reviewerResolver
}

// remoteURLResolver is satisfied by gitrepo.RepositoryManager; injected test
// doubles that omit it simply skip owner derivation.
type remoteURLResolver interface {
	RemoteURL(executionContext context.Context, repositoryPath string, remoteName string) (string, error)
}

func (builder *CommandBuilder) deriveOwnerRepository(command *cobra.Command, repository RepositoryManager, remoteName string) (string, string, bool) {
	urlProvider, supportsRemoteURL := repository.(remoteURLResolver)
	if !supportsRemoteURL {
		return "", "", false
	}
	if len(remoteName) == 0 {
		remoteName = defaultRemoteNameConstant
	}
	remoteURLText, remoteURLError := urlProvider.RemoteURL(command.Context(), defaultRepositoryPathConstant, remoteName)
	if remoteURLError != nil {
		return "", "", false
	}
	parsedRemoteURL, parseError := gitrepo.ParseRemoteURL(remoteURLText)
	if parseError != nil {
		return "", "", false
	}
	return parsedRemoteURL.Owner, parsedRemoteURL.Repository, true
}

func (builder *CommandBuilder) resolveTokenSource() *secrets.TokenSource {
	if builder.TokenSource != nil {
		return builder.TokenSource
	}
	return secrets.NewTokenSource()
}
