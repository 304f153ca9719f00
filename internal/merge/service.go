package merge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"branchflow/internal/branchname"
	"branchflow/internal/gitrepo"
	"branchflow/internal/prservice"
)

const (
	defaultRemoteNameConstant                = "origin"
	notRepositoryMessageConstant             = "current directory is not a git repository"
	workingTreeDirtyMessageConstant          = "working tree has uncommitted changes"
	unpushedDeclinedMessageConstant          = "unpushed commits were not pushed"
	repositoryManagerRequiredMessageConstant = "repository manager must be configured"
	clockRequiredMessageConstant             = "clock must be configured"
	currentBranchErrorTemplateConstant       = "unable to determine current branch: %w"
	cleanWorktreeErrorTemplateConstant       = "unable to inspect working tree: %w"
	unpushedCheckErrorTemplateConstant       = "unable to inspect unpushed commits: %w"
	checkoutTargetErrorTemplateConstant      = "unable to switch to target branch %s: %w"
	pullTargetErrorTemplateConstant          = "unable to pull target branch %s: %w"
	checkoutOriginalErrorTemplateConstant    = "unable to switch back to branch %s: %w"
	createBranchErrorTemplateConstant        = "unable to create merge branch %s: %w"
	mergeErrorTemplateConstant               = "unable to merge %s: %w"
	diffErrorTemplateConstant                = "unable to diff against %s: %w"
	pushErrorTemplateConstant                = "unable to push branch %s: %w"
	pushOriginalErrorTemplateConstant        = "unable to push branch %s before merging: %w"
	unpushedCommitsPromptTemplateConstant    = "Branch %s has unpushed commits. Push them now? [y/N]: "
	unpushedPromptFailureTemplateConstant    = "unable to read confirmation: %w"
	restoreFailedLogMessageConstant          = "failed to restore original branch"
	mergeAbortFailedLogMessageConstant       = "failed to abort conflicted merge"
	noDifferenceLogMessageConstant           = "merge produced no changes against target; deleting merge branch, any conflict resolution work on it is discarded"
	mergeBranchDeleteFailedLogMessage        = "failed to delete empty merge branch"
	pullRequestFailedLogMessageConstant      = "pull request creation failed; pushed branch is kept"
	reviewerWarningLogMessageConstant        = "pull request created but reviewer assignment failed"
	issueKeyMissingLogMessageConstant        = "no issue key derivable from branch name; skipping issue update"
	issueUpdateFailedLogMessageConstant      = "failed to append merge note to issue"
	issueTrackerMissingLogMessageConstant    = "issue tracker client not configured; skipping issue update"
	pullRequestMissingLogMessageConstant     = "pull request service not configured; skipping pull request creation"
	pullRequestTitleTemplateConstant         = "Merge %s into %s"
	pullRequestBodyTemplateConstant          = "Merging %s into %s on %s."
	issueNoteTemplateConstant                = "%s merged %s into %s\nPull request: %s"
	issueNoteWithoutURLTemplateConstant      = "%s merged %s into %s"
	issueNoteDateLayoutConstant              = "2006-01-02 15:04"
	branchLogFieldNameConstant               = "branch"
	issueKeyLogFieldNameConstant             = "issue_key"
	pullRequestURLLogFieldNameConstant       = "pull_request_url"
)

// Workflow validation errors.
var (
	ErrNotRepository            = errors.New(notRepositoryMessageConstant)
	ErrWorkingTreeDirty         = errors.New(workingTreeDirtyMessageConstant)
	ErrUnpushedCommitsDeclined  = errors.New(unpushedDeclinedMessageConstant)
	ErrRepositoryManagerMissing = errors.New(repositoryManagerRequiredMessageConstant)
	ErrClockMissing             = errors.New(clockRequiredMessageConstant)
)

// Outcome describes how a merge workflow concluded.
type Outcome string

// Workflow outcomes.
const (
	OutcomeMerged       Outcome = "merged"
	OutcomeNoDifference Outcome = "no_difference"
)

// RepositoryManager captures the git operations the workflow performs.
type RepositoryManager interface {
	IsRepository(executionContext context.Context, repositoryPath string) bool
	CurrentBranch(executionContext context.Context, repositoryPath string) (string, error)
	CheckCleanWorktree(executionContext context.Context, repositoryPath string) (bool, error)
	UpstreamBranch(executionContext context.Context, repositoryPath string, branchName string) (string, bool)
	HasUnpushedCommits(executionContext context.Context, repositoryPath string, branchName string) (bool, error)
	Checkout(executionContext context.Context, repositoryPath string, reference string) error
	CreateBranch(executionContext context.Context, repositoryPath string, branchName string) error
	Pull(executionContext context.Context, repositoryPath string) error
	Merge(executionContext context.Context, repositoryPath string, branchName string) error
	AbortMerge(executionContext context.Context, repositoryPath string) error
	DiffNameStatus(executionContext context.Context, repositoryPath string, reference string) (string, error)
	Push(executionContext context.Context, repositoryPath string, remoteName string, branchName string, setUpstream bool) error
	DeleteLocalBranch(executionContext context.Context, repositoryPath string, branchName string, force bool) error
}

// IssueAnnotator appends workflow notes to tracked issues.
type IssueAnnotator interface {
	AppendDescription(executionContext context.Context, issueKey string, addition string) error
}

// PullRequestCreator opens pull requests on the pull-request service.
type PullRequestCreator interface {
	CreatePullRequest(executionContext context.Context, request prservice.PullRequestRequest) (prservice.PullRequest, error)
}

// ReviewerResolver maps a project type to its configured reviewers.
type ReviewerResolver interface {
	ReviewersForProject(projectType string) []string
}

// ConfirmationPrompter collects the push-or-abort decision for unpushed commits.
type ConfirmationPrompter interface {
	Confirm(prompt string) (bool, error)
}

// Clock supplies the timestamp embedded in merge branch names and issue notes.
type Clock func() time.Time

// Dependencies lists the collaborators required by the merge workflow.
// IssueTracker, PullRequests, and Reviewers may be nil; the corresponding
// steps are then skipped with a warning.
type Dependencies struct {
	Repository   RepositoryManager
	IssueTracker IssueAnnotator
	PullRequests PullRequestCreator
	Reviewers    ReviewerResolver
	Prompter     ConfirmationPrompter
	Clock        Clock
	Logger       *zap.Logger
}

// Options configures a single merge workflow run.
type Options struct {
	RepositoryPath  string
	TargetBranch    string
	RemoteName      string
	PushWithoutAsk  bool
	ProjectType     string
	SkipPullRequest bool
}

// Result reports the terminal state of a completed workflow.
type Result struct {
	Outcome        Outcome
	MergeBranch    string
	PullRequestURL string
}

// Service runs the merge-branch workflow.
type Service struct {
	dependencies Dependencies
}

// NewService validates dependencies and constructs the workflow service.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.Repository == nil {
		return nil, ErrRepositoryManagerMissing
	}
	if dependencies.Clock == nil {
		dependencies.Clock = time.Now
	}
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	return &Service{dependencies: dependencies}, nil
}

// Run executes the workflow against the repository in options.RepositoryPath.
// Whatever path the workflow takes, the branch that was checked out when it
// started is restored before returning.
func (service *Service) Run(executionContext context.Context, options Options) (Result, error) {
	remoteName := options.RemoteName
	if len(remoteName) == 0 {
		remoteName = defaultRemoteNameConstant
	}

	repository := service.dependencies.Repository
	if !repository.IsRepository(executionContext, options.RepositoryPath) {
		return Result{}, ErrNotRepository
	}

	originalBranch, branchError := repository.CurrentBranch(executionContext, options.RepositoryPath)
	if branchError != nil {
		return Result{}, fmt.Errorf(currentBranchErrorTemplateConstant, branchError)
	}

	worktreeClean, worktreeError := repository.CheckCleanWorktree(executionContext, options.RepositoryPath)
	if worktreeError != nil {
		return Result{}, fmt.Errorf(cleanWorktreeErrorTemplateConstant, worktreeError)
	}
	if !worktreeClean {
		return Result{}, ErrWorkingTreeDirty
	}

	if resolutionError := service.resolveUnpushedCommits(executionContext, options, remoteName, originalBranch); resolutionError != nil {
		return Result{}, resolutionError
	}

	restoreOriginalBranch := func() {
		if restoreError := repository.Checkout(executionContext, options.RepositoryPath, originalBranch); restoreError != nil {
			service.dependencies.Logger.Warn(restoreFailedLogMessageConstant,
				zap.String(branchLogFieldNameConstant, originalBranch),
				zap.Error(restoreError),
			)
		}
	}
	defer restoreOriginalBranch()

	if checkoutError := repository.Checkout(executionContext, options.RepositoryPath, options.TargetBranch); checkoutError != nil {
		return Result{}, fmt.Errorf(checkoutTargetErrorTemplateConstant, options.TargetBranch, checkoutError)
	}
	if pullError := repository.Pull(executionContext, options.RepositoryPath); pullError != nil {
		return Result{}, fmt.Errorf(pullTargetErrorTemplateConstant, options.TargetBranch, pullError)
	}

	if checkoutError := repository.Checkout(executionContext, options.RepositoryPath, originalBranch); checkoutError != nil {
		return Result{}, fmt.Errorf(checkoutOriginalErrorTemplateConstant, originalBranch, checkoutError)
	}

	mergeBranch := branchname.MergeBranchName(originalBranch, options.TargetBranch, service.dependencies.Clock())
	if createError := repository.CreateBranch(executionContext, options.RepositoryPath, mergeBranch); createError != nil {
		return Result{}, fmt.Errorf(createBranchErrorTemplateConstant, mergeBranch, createError)
	}

	if mergeError := repository.Merge(executionContext, options.RepositoryPath, options.TargetBranch); mergeError != nil {
		var conflictError gitrepo.MergeConflictError
		if errors.As(mergeError, &conflictError) {
			// The conflicted merge must be aborted before the original
			// branch can be checked out again. The merge branch stays
			// behind for manual resolution.
			if abortError := repository.AbortMerge(executionContext, options.RepositoryPath); abortError != nil {
				service.dependencies.Logger.Warn(mergeAbortFailedLogMessageConstant, zap.Error(abortError))
			}
			return Result{MergeBranch: mergeBranch}, mergeError
		}
		return Result{MergeBranch: mergeBranch}, fmt.Errorf(mergeErrorTemplateConstant, options.TargetBranch, mergeError)
	}

	diffOutput, diffError := repository.DiffNameStatus(executionContext, options.RepositoryPath, options.TargetBranch)
	if diffError != nil {
		return Result{MergeBranch: mergeBranch}, fmt.Errorf(diffErrorTemplateConstant, options.TargetBranch, diffError)
	}
	if len(diffOutput) == 0 {
		service.dependencies.Logger.Warn(noDifferenceLogMessageConstant,
			zap.String(branchLogFieldNameConstant, mergeBranch),
		)
		restoreOriginalBranch()
		if deleteError := repository.DeleteLocalBranch(executionContext, options.RepositoryPath, mergeBranch, true); deleteError != nil {
			service.dependencies.Logger.Warn(mergeBranchDeleteFailedLogMessage,
				zap.String(branchLogFieldNameConstant, mergeBranch),
				zap.Error(deleteError),
			)
		}
		return Result{Outcome: OutcomeNoDifference, MergeBranch: mergeBranch}, nil
	}

	if pushError := repository.Push(executionContext, options.RepositoryPath, remoteName, mergeBranch, true); pushError != nil {
		return Result{MergeBranch: mergeBranch}, fmt.Errorf(pushErrorTemplateConstant, mergeBranch, pushError)
	}

	result := Result{Outcome: OutcomeMerged, MergeBranch: mergeBranch}
	if options.SkipPullRequest {
		return result, nil
	}

	result.PullRequestURL = service.createPullRequest(executionContext, options, originalBranch, mergeBranch)
	service.annotateIssue(executionContext, originalBranch, options.TargetBranch, result.PullRequestURL)

	return result, nil
}

func (service *Service) resolveUnpushedCommits(executionContext context.Context, options Options, remoteName string, originalBranch string) error {
	repository := service.dependencies.Repository

	unpushedCommitsPresent, unpushedError := repository.HasUnpushedCommits(executionContext, options.RepositoryPath, originalBranch)
	if unpushedError != nil {
		return fmt.Errorf(unpushedCheckErrorTemplateConstant, unpushedError)
	}
	if !unpushedCommitsPresent {
		return nil
	}

	pushApproved := options.PushWithoutAsk
	if !pushApproved && service.dependencies.Prompter != nil {
		promptText := fmt.Sprintf(unpushedCommitsPromptTemplateConstant, originalBranch)
		approved, promptError := service.dependencies.Prompter.Confirm(promptText)
		if promptError != nil {
			return fmt.Errorf(unpushedPromptFailureTemplateConstant, promptError)
		}
		pushApproved = approved
	}
	if !pushApproved {
		return ErrUnpushedCommitsDeclined
	}

	_, upstreamConfigured := repository.UpstreamBranch(executionContext, options.RepositoryPath, originalBranch)
	if pushError := repository.Push(executionContext, options.RepositoryPath, remoteName, originalBranch, !upstreamConfigured); pushError != nil {
		return fmt.Errorf(pushOriginalErrorTemplateConstant, originalBranch, pushError)
	}
	return nil
}

func (service *Service) createPullRequest(executionContext context.Context, options Options, originalBranch string, mergeBranch string) string {
	if service.dependencies.PullRequests == nil {
		service.dependencies.Logger.Warn(pullRequestMissingLogMessageConstant)
		return ""
	}

	var reviewers []string
	if service.dependencies.Reviewers != nil {
		reviewers = service.dependencies.Reviewers.ReviewersForProject(options.ProjectType)
	}

	request := prservice.PullRequestRequest{
		Title:     fmt.Sprintf(pullRequestTitleTemplateConstant, originalBranch, options.TargetBranch),
		Head:      mergeBranch,
		Base:      options.TargetBranch,
		Body:      service.buildPullRequestBody(originalBranch, options.TargetBranch),
		Reviewers: reviewers,
	}

	pullRequest, creationError := service.dependencies.PullRequests.CreatePullRequest(executionContext, request)
	if creationError != nil {
		var assignmentError prservice.ReviewerAssignmentError
		if errors.As(creationError, &assignmentError) {
			service.dependencies.Logger.Warn(reviewerWarningLogMessageConstant,
				zap.String(pullRequestURLLogFieldNameConstant, assignmentError.PullRequest.URL),
				zap.Error(assignmentError.Cause),
			)
			return assignmentError.PullRequest.URL
		}
		service.dependencies.Logger.Warn(pullRequestFailedLogMessageConstant,
			zap.String(branchLogFieldNameConstant, mergeBranch),
			zap.Error(creationError),
		)
		return ""
	}
	return pullRequest.URL
}

func (service *Service) buildPullRequestBody(originalBranch string, targetBranch string) string {
	noteDate := service.dependencies.Clock().Format(issueNoteDateLayoutConstant)
	return fmt.Sprintf(pullRequestBodyTemplateConstant, targetBranch, originalBranch, noteDate)
}

func (service *Service) annotateIssue(executionContext context.Context, originalBranch string, targetBranch string, pullRequestURL string) {
	issueKey, issueKeyFound := branchname.DeriveIssueKey(originalBranch)
	if !issueKeyFound {
		service.dependencies.Logger.Warn(issueKeyMissingLogMessageConstant,
			zap.String(branchLogFieldNameConstant, originalBranch),
		)
		return
	}
	if service.dependencies.IssueTracker == nil {
		service.dependencies.Logger.Warn(issueTrackerMissingLogMessageConstant,
			zap.String(issueKeyLogFieldNameConstant, issueKey),
		)
		return
	}

	noteDate := service.dependencies.Clock().Format(issueNoteDateLayoutConstant)
	note := fmt.Sprintf(issueNoteWithoutURLTemplateConstant, noteDate, targetBranch, originalBranch)
	if len(pullRequestURL) > 0 {
		note = fmt.Sprintf(issueNoteTemplateConstant, noteDate, targetBranch, originalBranch, pullRequestURL)
	}

	if appendError := service.dependencies.IssueTracker.AppendDescription(executionContext, issueKey, note); appendError != nil {
		service.dependencies.Logger.Warn(issueUpdateFailedLogMessageConstant,
			zap.String(issueKeyLogFieldNameConstant, issueKey),
			zap.Error(appendError),
		)
	}
}
