package cleanup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"branchflow/internal/gitrepo"
)

const (
	defaultRemoteNameConstant                = "origin"
	substringRequiredMessageConstant         = "a non-empty branch name substring is required"
	deletionDeclinedMessageConstant          = "branch deletion was not confirmed"
	repositoryManagerRequiredMessageConstant = "repository manager must be configured"
	currentBranchErrorTemplateConstant       = "unable to determine current branch: %w"
	listBranchesErrorTemplateConstant        = "unable to list branches: %w"
	confirmationErrorTemplateConstant        = "unable to read confirmation: %w"
	confirmationPromptTemplateConstant       = "Delete %d branches matching %q? [y/N]: "
	currentBranchSkipReasonConstant          = "currently checked out"
	noMatchingBranchesLogMessageConstant     = "no branches match the requested substring"
	branchDeletedLogMessageConstant          = "branch deleted"
	branchDeletionFailedLogMessageConstant   = "branch deletion failed"
	branchSkippedLogMessageConstant          = "branch skipped"
	dryRunLogMessageConstant                 = "dry run; branch left in place"
	substringLogFieldNameConstant            = "substring"
	branchLogFieldNameConstant               = "branch"
	reasonLogFieldNameConstant               = "reason"
)

// Cleanup failure modes reported before any deletion happens.
var (
	ErrSubstringRequired        = errors.New(substringRequiredMessageConstant)
	ErrDeletionDeclined         = errors.New(deletionDeclinedMessageConstant)
	ErrRepositoryManagerMissing = errors.New(repositoryManagerRequiredMessageConstant)
)

// RepositoryManager captures the git operations the cleanup workflow performs.
type RepositoryManager interface {
	CurrentBranch(executionContext context.Context, repositoryPath string) (string, error)
	ListBranches(executionContext context.Context, repositoryPath string, filter string, includeRemote bool) ([]gitrepo.Branch, error)
	DeleteLocalBranch(executionContext context.Context, repositoryPath string, branchName string, force bool) error
	DeleteRemoteBranch(executionContext context.Context, repositoryPath string, remoteName string, branchName string) error
}

// ConfirmationPrompter collects the single batch confirmation.
type ConfirmationPrompter interface {
	Confirm(prompt string) (bool, error)
}

// Options configures one cleanup run.
type Options struct {
	RepositoryPath string
	Substring      string
	IncludeRemote  bool
	RemoteName     string
	DryRun         bool
}

// BranchDeletionResult reports the outcome for one branch in the batch.
type BranchDeletionResult struct {
	Branch        gitrepo.Branch
	Skipped       bool
	SkipReason    string
	RemoteDeleted bool
	LocalDeleted  bool
	Failure       error
}

// Summary aggregates per-branch outcomes for reporting.
type Summary struct {
	Results []BranchDeletionResult
	Deleted int
	Skipped int
	Failed  int
}

// Dependencies lists the collaborators required by the cleanup workflow.
type Dependencies struct {
	Repository RepositoryManager
	Prompter   ConfirmationPrompter
	Logger     *zap.Logger
}

// Service runs the branch cleanup workflow.
type Service struct {
	dependencies Dependencies
}

// NewService validates dependencies and constructs the cleanup service.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.Repository == nil {
		return nil, ErrRepositoryManagerMissing
	}
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	return &Service{dependencies: dependencies}, nil
}

// Cleanup deletes every branch whose name contains options.Substring after one
// batch confirmation. The currently checked out branch is reported and
// skipped. Deletion is not transactional: a failure on one branch never stops
// the rest of the batch.
func (service *Service) Cleanup(executionContext context.Context, options Options) (Summary, error) {
	trimmedSubstring := strings.TrimSpace(options.Substring)
	if len(trimmedSubstring) == 0 {
		return Summary{}, ErrSubstringRequired
	}

	remoteName := options.RemoteName
	if len(remoteName) == 0 {
		remoteName = defaultRemoteNameConstant
	}

	repository := service.dependencies.Repository
	currentBranch, currentBranchError := repository.CurrentBranch(executionContext, options.RepositoryPath)
	if currentBranchError != nil {
		return Summary{}, fmt.Errorf(currentBranchErrorTemplateConstant, currentBranchError)
	}

	matchingBranches, listError := repository.ListBranches(executionContext, options.RepositoryPath, trimmedSubstring, options.IncludeRemote)
	if listError != nil {
		return Summary{}, fmt.Errorf(listBranchesErrorTemplateConstant, listError)
	}
	if len(matchingBranches) == 0 {
		service.dependencies.Logger.Info(noMatchingBranchesLogMessageConstant,
			zap.String(substringLogFieldNameConstant, trimmedSubstring),
		)
		return Summary{}, nil
	}

	if !options.DryRun && service.dependencies.Prompter != nil {
		promptText := fmt.Sprintf(confirmationPromptTemplateConstant, len(matchingBranches), trimmedSubstring)
		approved, promptError := service.dependencies.Prompter.Confirm(promptText)
		if promptError != nil {
			return Summary{}, fmt.Errorf(confirmationErrorTemplateConstant, promptError)
		}
		if !approved {
			return Summary{}, ErrDeletionDeclined
		}
	}

	summary := Summary{}
	for _, candidateBranch := range matchingBranches {
		branchResult := service.deleteBranch(executionContext, options, remoteName, currentBranch, candidateBranch)
		summary.Results = append(summary.Results, branchResult)
		switch {
		case branchResult.Skipped:
			summary.Skipped++
		case branchResult.Failure != nil:
			summary.Failed++
		default:
			summary.Deleted++
		}
	}
	return summary, nil
}

func (service *Service) deleteBranch(executionContext context.Context, options Options, remoteName string, currentBranch string, candidateBranch gitrepo.Branch) BranchDeletionResult {
	branchResult := BranchDeletionResult{Branch: candidateBranch}

	if candidateBranch.Name == currentBranch {
		branchResult.Skipped = true
		branchResult.SkipReason = currentBranchSkipReasonConstant
		service.dependencies.Logger.Warn(branchSkippedLogMessageConstant,
			zap.String(branchLogFieldNameConstant, candidateBranch.Name),
			zap.String(reasonLogFieldNameConstant, branchResult.SkipReason),
		)
		return branchResult
	}

	if options.DryRun {
		branchResult.Skipped = true
		branchResult.SkipReason = dryRunLogMessageConstant
		service.dependencies.Logger.Info(dryRunLogMessageConstant,
			zap.String(branchLogFieldNameConstant, candidateBranch.Name),
		)
		return branchResult
	}

	branchRemoteName := candidateBranch.RemoteName
	if len(branchRemoteName) == 0 {
		branchRemoteName = remoteName
	}

	if candidateBranch.Remote {
		if remoteDeleteError := service.dependencies.Repository.DeleteRemoteBranch(executionContext, options.RepositoryPath, branchRemoteName, candidateBranch.Name); remoteDeleteError != nil {
			branchResult.Failure = remoteDeleteError
			service.logDeletionFailure(candidateBranch.Name, remoteDeleteError)
			if !candidateBranch.Local {
				return branchResult
			}
		} else {
			branchResult.RemoteDeleted = true
		}
	}

	if candidateBranch.Local {
		if localDeleteError := service.dependencies.Repository.DeleteLocalBranch(executionContext, options.RepositoryPath, candidateBranch.Name, true); localDeleteError != nil {
			branchResult.Failure = localDeleteError
			service.logDeletionFailure(candidateBranch.Name, localDeleteError)
			return branchResult
		}
		branchResult.LocalDeleted = true
	}

	service.dependencies.Logger.Info(branchDeletedLogMessageConstant,
		zap.String(branchLogFieldNameConstant, candidateBranch.Name),
	)
	return branchResult
}

func (service *Service) logDeletionFailure(branchName string, failure error) {
	service.dependencies.Logger.Warn(branchDeletionFailedLogMessageConstant,
		zap.String(branchLogFieldNameConstant, branchName),
		zap.Error(failure),
	)
}
