package gitrepo

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"branchflow/internal/execshell"
)

const (
	gitExecutorNotConfiguredMessageConstant     = "git executor not configured"
	gitTerminalPromptEnvironmentNameConstant    = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptEnvironmentDisableConstant = "0"
	gitRevParseSubcommandConstant               = "rev-parse"
	gitIsInsideWorkTreeFlagConstant             = "--is-inside-work-tree"
	gitAbbrevRefFlagConstant                    = "--abbrev-ref"
	gitSymbolicFullNameFlagConstant             = "--symbolic-full-name"
	gitHeadReferenceConstant                    = "HEAD"
	gitUpstreamReferenceSuffixConstant          = "@{u}"
	gitStatusSubcommandConstant                 = "status"
	gitStatusPorcelainFlagConstant              = "--porcelain"
	gitRevListSubcommandConstant                = "rev-list"
	gitRevListCountFlagConstant                 = "--count"
	gitRangeSeparatorConstant                   = ".."
	gitBranchSubcommandConstant                 = "branch"
	gitBranchFormatFlagConstant                 = "--format=%(refname:short)"
	gitBranchRemotesFlagConstant                = "--remotes"
	gitBranchDeleteFlagConstant                 = "--delete"
	gitBranchForceFlagConstant                  = "--force"
	gitCheckoutSubcommandConstant               = "checkout"
	gitCheckoutCreateFlagConstant               = "-b"
	gitPullSubcommandConstant                   = "pull"
	gitPullFastForwardFlagConstant              = "--ff-only"
	gitMergeSubcommandConstant                  = "merge"
	gitMergeNoEditFlagConstant                  = "--no-edit"
	gitMergeAbortFlagConstant                   = "--abort"
	gitDiffSubcommandConstant                   = "diff"
	gitDiffNameStatusFlagConstant               = "--name-status"
	gitPushSubcommandConstant                   = "push"
	gitPushSetUpstreamFlagConstant              = "--set-upstream"
	gitPushDeleteFlagConstant                   = "--delete"
	gitRemoteSubcommandConstant                 = "remote"
	gitRemoteGetURLSubcommandConstant           = "get-url"
	remoteHeadPointerMarkerConstant             = "HEAD"
	branchPathSeparatorConstant                 = "/"
	mergeConflictOutputMarkerConstant           = "CONFLICT"
	trueLiteralConstant                         = "true"
)

// ErrGitExecutorNotConfigured indicates the manager was constructed without an executor.
var ErrGitExecutorNotConfigured = errors.New(gitExecutorNotConfiguredMessageConstant)

// GitExecutor exposes the subset of shell execution required for git operations.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Branch describes one branch discovered in the repository.
type Branch struct {
	Name       string
	Local      bool
	Remote     bool
	RemoteName string
}

// MergeConflictError indicates a merge stopped on conflicting changes.
type MergeConflictError struct {
	Branch string
	Output string
}

// Error describes the conflicted merge.
func (conflictError MergeConflictError) Error() string {
	return "merge of " + conflictError.Branch + " stopped on conflicts"
}

// RepositoryManager performs git queries and mutations through a GitExecutor.
type RepositoryManager struct {
	executor GitExecutor
}

// NewRepositoryManager constructs a RepositoryManager from the provided executor.
func NewRepositoryManager(executor GitExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &RepositoryManager{executor: executor}, nil
}

// IsRepository reports whether the path lies inside a git working tree.
func (manager *RepositoryManager) IsRepository(executionContext context.Context, repositoryPath string) bool {
	executionResult, executionError := manager.executeGit(executionContext, repositoryPath, gitRevParseSubcommandConstant, gitIsInsideWorkTreeFlagConstant)
	if executionError != nil {
		return false
	}
	return strings.TrimSpace(executionResult.StandardOutput) == trueLiteralConstant
}

// CurrentBranch resolves the branch currently checked out.
func (manager *RepositoryManager) CurrentBranch(executionContext context.Context, repositoryPath string) (string, error) {
	executionResult, executionError := manager.executeGit(executionContext, repositoryPath, gitRevParseSubcommandConstant, gitAbbrevRefFlagConstant, gitHeadReferenceConstant)
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// CheckCleanWorktree reports whether the working tree has no staged or unstaged changes.
func (manager *RepositoryManager) CheckCleanWorktree(executionContext context.Context, repositoryPath string) (bool, error) {
	executionResult, executionError := manager.executeGit(executionContext, repositoryPath, gitStatusSubcommandConstant, gitStatusPorcelainFlagConstant)
	if executionError != nil {
		return false, executionError
	}
	return len(strings.TrimSpace(executionResult.StandardOutput)) == 0, nil
}

// UpstreamBranch resolves the remote-tracking branch configured for the given branch.
func (manager *RepositoryManager) UpstreamBranch(executionContext context.Context, repositoryPath string, branchName string) (string, bool) {
	executionResult, executionError := manager.executeGit(
		executionContext,
		repositoryPath,
		gitRevParseSubcommandConstant,
		gitAbbrevRefFlagConstant,
		gitSymbolicFullNameFlagConstant,
		branchName+gitUpstreamReferenceSuffixConstant,
	)
	if executionError != nil {
		return "", false
	}
	upstreamName := strings.TrimSpace(executionResult.StandardOutput)
	return upstreamName, len(upstreamName) > 0
}

// HasUnpushedCommits reports whether the branch carries commits absent from its upstream.
// A branch without an upstream counts as unpushed when it resolves to at least one commit.
func (manager *RepositoryManager) HasUnpushedCommits(executionContext context.Context, repositoryPath string, branchName string) (bool, error) {
	upstreamName, upstreamConfigured := manager.UpstreamBranch(executionContext, repositoryPath, branchName)

	revisionRange := branchName
	if upstreamConfigured {
		revisionRange = upstreamName + gitRangeSeparatorConstant + branchName
	}

	executionResult, executionError := manager.executeGit(executionContext, repositoryPath, gitRevListSubcommandConstant, gitRevListCountFlagConstant, revisionRange)
	if executionError != nil {
		return false, executionError
	}

	commitCount, parseError := strconv.Atoi(strings.TrimSpace(executionResult.StandardOutput))
	if parseError != nil {
		return false, parseError
	}
	return commitCount > 0, nil
}

// ListBranches returns branches whose names contain the filter substring.
// Remote copies of local branches collapse into the local entry.
func (manager *RepositoryManager) ListBranches(executionContext context.Context, repositoryPath string, filter string, includeRemote bool) ([]Branch, error) {
	localNames, localError := manager.branchNames(executionContext, repositoryPath, false)
	if localError != nil {
		return nil, localError
	}

	branchesByName := make(map[string]*Branch, len(localNames))
	for _, branchName := range localNames {
		if !strings.Contains(branchName, filter) {
			continue
		}
		branchesByName[branchName] = &Branch{Name: branchName, Local: true}
	}

	if includeRemote {
		remoteNames, remoteError := manager.branchNames(executionContext, repositoryPath, true)
		if remoteError != nil {
			return nil, remoteError
		}
		for _, remoteReference := range remoteNames {
			remoteName, branchName, validReference := splitRemoteReference(remoteReference)
			if !validReference || !strings.Contains(branchName, filter) {
				continue
			}
			if existingBranch, alreadyListed := branchesByName[branchName]; alreadyListed {
				existingBranch.Remote = true
				existingBranch.RemoteName = remoteName
				continue
			}
			branchesByName[branchName] = &Branch{Name: branchName, Remote: true, RemoteName: remoteName}
		}
	}

	branches := make([]Branch, 0, len(branchesByName))
	for _, branchEntry := range branchesByName {
		branches = append(branches, *branchEntry)
	}
	sort.Slice(branches, func(firstIndex int, secondIndex int) bool {
		return branches[firstIndex].Name < branches[secondIndex].Name
	})
	return branches, nil
}

// ListBranchesWithPrefix returns local and remote branch names starting with the prefix.
func (manager *RepositoryManager) ListBranchesWithPrefix(executionContext context.Context, repositoryPath string, prefix string) ([]string, error) {
	localNames, localError := manager.branchNames(executionContext, repositoryPath, false)
	if localError != nil {
		return nil, localError
	}
	remoteNames, remoteError := manager.branchNames(executionContext, repositoryPath, true)
	if remoteError != nil {
		return nil, remoteError
	}

	seenNames := make(map[string]struct{}, len(localNames)+len(remoteNames))
	matchingNames := make([]string, 0, len(localNames))

	appendMatching := func(branchName string) {
		if !strings.HasPrefix(branchName, prefix) {
			return
		}
		if _, alreadySeen := seenNames[branchName]; alreadySeen {
			return
		}
		seenNames[branchName] = struct{}{}
		matchingNames = append(matchingNames, branchName)
	}

	for _, branchName := range localNames {
		appendMatching(branchName)
	}
	for _, remoteReference := range remoteNames {
		_, branchName, validReference := splitRemoteReference(remoteReference)
		if validReference {
			appendMatching(branchName)
		}
	}

	sort.Strings(matchingNames)
	return matchingNames, nil
}

// Checkout switches the working tree to the named reference.
func (manager *RepositoryManager) Checkout(executionContext context.Context, repositoryPath string, reference string) error {
	_, executionError := manager.executeGit(executionContext, repositoryPath, gitCheckoutSubcommandConstant, reference)
	return executionError
}

// CreateBranch creates the named branch and switches the working tree to it.
func (manager *RepositoryManager) CreateBranch(executionContext context.Context, repositoryPath string, branchName string) error {
	_, executionError := manager.executeGit(executionContext, repositoryPath, gitCheckoutSubcommandConstant, gitCheckoutCreateFlagConstant, branchName)
	return executionError
}

// Pull fast-forwards the current branch from its upstream.
func (manager *RepositoryManager) Pull(executionContext context.Context, repositoryPath string) error {
	_, executionError := manager.executeGit(executionContext, repositoryPath, gitPullSubcommandConstant, gitPullFastForwardFlagConstant)
	return executionError
}

// Merge merges the named branch into the current branch. Conflicting merges
// surface a MergeConflictError and leave the repository mid-merge.
func (manager *RepositoryManager) Merge(executionContext context.Context, repositoryPath string, branchName string) error {
	_, executionError := manager.executeGit(executionContext, repositoryPath, gitMergeSubcommandConstant, gitMergeNoEditFlagConstant, branchName)
	if executionError == nil {
		return nil
	}

	var failedError execshell.CommandFailedError
	if errors.As(executionError, &failedError) {
		combinedOutput := failedError.Result.StandardOutput + failedError.Result.StandardError
		if strings.Contains(combinedOutput, mergeConflictOutputMarkerConstant) {
			return MergeConflictError{Branch: branchName, Output: combinedOutput}
		}
	}
	return executionError
}

// AbortMerge cancels an in-progress merge and restores the pre-merge state.
func (manager *RepositoryManager) AbortMerge(executionContext context.Context, repositoryPath string) error {
	_, executionError := manager.executeGit(executionContext, repositoryPath, gitMergeSubcommandConstant, gitMergeAbortFlagConstant)
	return executionError
}

// DiffNameStatus lists changed paths between the working tree's branch and the reference.
func (manager *RepositoryManager) DiffNameStatus(executionContext context.Context, repositoryPath string, reference string) (string, error) {
	executionResult, executionError := manager.executeGit(executionContext, repositoryPath, gitDiffSubcommandConstant, gitDiffNameStatusFlagConstant, reference)
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// Push publishes the branch to the remote, optionally configuring upstream tracking.
func (manager *RepositoryManager) Push(executionContext context.Context, repositoryPath string, remoteName string, branchName string, setUpstream bool) error {
	arguments := []string{gitPushSubcommandConstant}
	if setUpstream {
		arguments = append(arguments, gitPushSetUpstreamFlagConstant)
	}
	arguments = append(arguments, remoteName, branchName)
	_, executionError := manager.executeGit(executionContext, repositoryPath, arguments...)
	return executionError
}

// DeleteLocalBranch removes the named local branch.
func (manager *RepositoryManager) DeleteLocalBranch(executionContext context.Context, repositoryPath string, branchName string, force bool) error {
	arguments := []string{gitBranchSubcommandConstant, gitBranchDeleteFlagConstant}
	if force {
		arguments = append(arguments, gitBranchForceFlagConstant)
	}
	arguments = append(arguments, branchName)
	_, executionError := manager.executeGit(executionContext, repositoryPath, arguments...)
	return executionError
}

// DeleteRemoteBranch removes the named branch from the remote.
func (manager *RepositoryManager) DeleteRemoteBranch(executionContext context.Context, repositoryPath string, remoteName string, branchName string) error {
	_, executionError := manager.executeGit(executionContext, repositoryPath, gitPushSubcommandConstant, remoteName, gitPushDeleteFlagConstant, branchName)
	return executionError
}

// RemoteURL resolves the fetch URL configured for the named remote.
func (manager *RepositoryManager) RemoteURL(executionContext context.Context, repositoryPath string, remoteName string) (string, error) {
	executionResult, executionError := manager.executeGit(executionContext, repositoryPath, gitRemoteSubcommandConstant, gitRemoteGetURLSubcommandConstant, remoteName)
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

func (manager *RepositoryManager) branchNames(executionContext context.Context, repositoryPath string, remote bool) ([]string, error) {
	arguments := []string{gitBranchSubcommandConstant, gitBranchFormatFlagConstant}
	if remote {
		arguments = append(arguments, gitBranchRemotesFlagConstant)
	}

	executionResult, executionError := manager.executeGit(executionContext, repositoryPath, arguments...)
	if executionError != nil {
		return nil, executionError
	}

	lines := strings.Split(executionResult.StandardOutput, "\n")
	branchNames := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmedLine := strings.TrimSpace(line)
		if len(trimmedLine) == 0 {
			continue
		}
		branchNames = append(branchNames, trimmedLine)
	}
	return branchNames, nil
}

func (manager *RepositoryManager) executeGit(executionContext context.Context, repositoryPath string, arguments ...string) (execshell.ExecutionResult, error) {
	return manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: repositoryPath,
		EnvironmentVariables: map[string]string{
			gitTerminalPromptEnvironmentNameConstant: gitTerminalPromptEnvironmentDisableConstant,
		},
	})
}

func splitRemoteReference(remoteReference string) (string, string, bool) {
	separatorIndex := strings.Index(remoteReference, branchPathSeparatorConstant)
	if separatorIndex <= 0 || separatorIndex == len(remoteReference)-1 {
		return "", "", false
	}
	remoteName := remoteReference[:separatorIndex]
	branchName := remoteReference[separatorIndex+1:]
	if branchName == remoteHeadPointerMarkerConstant {
		return "", "", false
	}
	return remoteName, branchName, true
}
