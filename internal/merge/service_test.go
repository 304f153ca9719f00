package merge_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"branchflow/internal/gitrepo"
	"branchflow/internal/merge"
	"branchflow/internal/prservice"
)

const (
	testOriginalBranchConstant      = "HKBP-50/feature"
	testTargetBranchConstant        = "develop"
	testRemoteNameConstant          = "origin"
	testExpectedMergeBranchConstant = "HKBP-50/merge_develop_20240101_120000"
	testPullRequestURLConstant      = "https://example.com/acme/widgets/pull/7"
	testExpectedIssueKeyConstant    = "HKBP-50"
	testDiffOutputConstant          = "M\tservice.go"
	testProjectTypeConstant         = "backend"
)

func testClock() time.Time {
	return time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
}

type fakeRepository struct {
	isRepository     bool
	currentBranch    string
	cleanWorktree    bool
	unpushedCommits  bool
	upstreamBranch   string
	diffOutput       string
	mergeError       error
	pullError        error
	deleteError      error
	calls            []string
	checkedOutBranch string
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		isRepository:     true,
		currentBranch:    testOriginalBranchConstant,
		cleanWorktree:    true,
		upstreamBranch:   testRemoteNameConstant + "/" + testOriginalBranchConstant,
		diffOutput:       testDiffOutputConstant,
		checkedOutBranch: testOriginalBranchConstant,
	}
}

func (repository *fakeRepository) record(format string, values ...any) {
	repository.calls = append(repository.calls, fmt.Sprintf(format, values...))
}

func (repository *fakeRepository) IsRepository(context.Context, string) bool {
	return repository.isRepository
}

func (repository *fakeRepository) CurrentBranch(context.Context, string) (string, error) {
	return repository.currentBranch, nil
}

func (repository *fakeRepository) CheckCleanWorktree(context.Context, string) (bool, error) {
	return repository.cleanWorktree, nil
}

func (repository *fakeRepository) UpstreamBranch(context.Context, string, string) (string, bool) {
	return repository.upstreamBranch, len(repository.upstreamBranch) > 0
}

func (repository *fakeRepository) HasUnpushedCommits(context.Context, string, string) (bool, error) {
	return repository.unpushedCommits, nil
}

func (repository *fakeRepository) Checkout(_ context.Context, _ string, reference string) error {
	repository.record("checkout %s", reference)
	repository.checkedOutBranch = reference
	return nil
}

func (repository *fakeRepository) CreateBranch(_ context.Context, _ string, branchName string) error {
	repository.record("create %s", branchName)
	repository.checkedOutBranch = branchName
	return nil
}

func (repository *fakeRepository) Pull(context.Context, string) error {
	repository.record("pull")
	return repository.pullError
}

func (repository *fakeRepository) Merge(_ context.Context, _ string, branchName string) error {
	repository.record("merge %s", branchName)
	return repository.mergeError
}

func (repository *fakeRepository) AbortMerge(context.Context, string) error {
	repository.record("abort-merge")
	return nil
}

func (repository *fakeRepository) DiffNameStatus(_ context.Context, _ string, reference string) (string, error) {
	repository.record("diff %s", reference)
	return repository.diffOutput, nil
}

func (repository *fakeRepository) Push(_ context.Context, _ string, remoteName string, branchName string, setUpstream bool) error {
	repository.record("push %s %s upstream=%t", remoteName, branchName, setUpstream)
	return nil
}

func (repository *fakeRepository) DeleteLocalBranch(_ context.Context, _ string, branchName string, force bool) error {
	repository.record("delete %s force=%t", branchName, force)
	return repository.deleteError
}

type fakePullRequestCreator struct {
	request       prservice.PullRequestRequest
	creationError error
	called        bool
}

func (creator *fakePullRequestCreator) CreatePullRequest(_ context.Context, request prservice.PullRequestRequest) (prservice.PullRequest, error) {
	creator.called = true
	creator.request = request
	if creator.creationError != nil {
		var assignmentError prservice.ReviewerAssignmentError
		if errors.As(creator.creationError, &assignmentError) {
			return assignmentError.PullRequest, creator.creationError
		}
		return prservice.PullRequest{}, creator.creationError
	}
	return prservice.PullRequest{Number: 7, URL: testPullRequestURLConstant}, nil
}

type fakeIssueAnnotator struct {
	issueKey    string
	addition    string
	appendError error
	called      bool
}

func (annotator *fakeIssueAnnotator) AppendDescription(_ context.Context, issueKey string, addition string) error {
	annotator.called = true
	annotator.issueKey = issueKey
	annotator.addition = addition
	return annotator.appendError
}

type fakeReviewerResolver struct {
	reviewers   []string
	projectType string
}

func (resolver *fakeReviewerResolver) ReviewersForProject(projectType string) []string {
	resolver.projectType = projectType
	return resolver.reviewers
}

type fakePrompter struct {
	response bool
	prompt   string
	called   bool
}

func (prompter *fakePrompter) Confirm(prompt string) (bool, error) {
	prompter.called = true
	prompter.prompt = prompt
	return prompter.response, nil
}

func newTestService(testInstance *testing.T, dependencies merge.Dependencies) *merge.Service {
	if dependencies.Clock == nil {
		dependencies.Clock = testClock
	}
	service, creationError := merge.NewService(dependencies)
	require.NoError(testInstance, creationError)
	return service
}

func TestRunMergesPushesAndAnnotates(testInstance *testing.T) {
	repository := newFakeRepository()
	pullRequests := &fakePullRequestCreator{}
	issueTracker := &fakeIssueAnnotator{}
	reviewers := &fakeReviewerResolver{reviewers: []string{"alice"}}

	service := newTestService(testInstance, merge.Dependencies{
		Repository:   repository,
		IssueTracker: issueTracker,
		PullRequests: pullRequests,
		Reviewers:    reviewers,
	})

	result, runError := service.Run(context.Background(), merge.Options{
		TargetBranch: testTargetBranchConstant,
		RemoteName:   testRemoteNameConstant,
		ProjectType:  testProjectTypeConstant,
	})

	require.NoError(testInstance, runError)
	require.Equal(testInstance, merge.OutcomeMerged, result.Outcome)
	require.Equal(testInstance, testExpectedMergeBranchConstant, result.MergeBranch)
	require.Equal(testInstance, testPullRequestURLConstant, result.PullRequestURL)

	require.Equal(testInstance, []string{
		"checkout " + testTargetBranchConstant,
		"pull",
		"checkout " + testOriginalBranchConstant,
		"create " + testExpectedMergeBranchConstant,
		"merge " + testTargetBranchConstant,
		"diff " + testTargetBranchConstant,
		"push origin " + testExpectedMergeBranchConstant + " upstream=true",
		"checkout " + testOriginalBranchConstant,
	}, repository.calls)
	require.Equal(testInstance, testOriginalBranchConstant, repository.checkedOutBranch)

	require.Equal(testInstance, "Merge HKBP-50/feature into develop", pullRequests.request.Title)
	require.Equal(testInstance, testExpectedMergeBranchConstant, pullRequests.request.Head)
	require.Equal(testInstance, testTargetBranchConstant, pullRequests.request.Base)
	require.Equal(testInstance, []string{"alice"}, pullRequests.request.Reviewers)
	require.Equal(testInstance, testProjectTypeConstant, reviewers.projectType)

	require.Equal(testInstance, testExpectedIssueKeyConstant, issueTracker.issueKey)
	require.Contains(testInstance, issueTracker.addition, testPullRequestURLConstant)
	require.Contains(testInstance, issueTracker.addition, testTargetBranchConstant)
}

func TestRunValidationFailuresPerformNoMutations(testInstance *testing.T) {
	testCases := []struct {
		name          string
		mutate        func(repository *fakeRepository)
		expectedError error
	}{
		{
			name:          "not_a_repository",
			mutate:        func(repository *fakeRepository) { repository.isRepository = false },
			expectedError: merge.ErrNotRepository,
		},
		{
			name:          "dirty_working_tree",
			mutate:        func(repository *fakeRepository) { repository.cleanWorktree = false },
			expectedError: merge.ErrWorkingTreeDirty,
		},
		{
			name:          "unpushed_commits_declined",
			mutate:        func(repository *fakeRepository) { repository.unpushedCommits = true },
			expectedError: merge.ErrUnpushedCommitsDeclined,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			repository := newFakeRepository()
			testCase.mutate(repository)

			service := newTestService(subtestInstance, merge.Dependencies{
				Repository: repository,
				Prompter:   &fakePrompter{response: false},
			})

			_, runError := service.Run(context.Background(), merge.Options{TargetBranch: testTargetBranchConstant})

			require.ErrorIs(subtestInstance, runError, testCase.expectedError)
			require.Empty(subtestInstance, repository.calls)
		})
	}
}

func TestRunPushesUnpushedCommitsWhenApproved(testInstance *testing.T) {
	repository := newFakeRepository()
	repository.unpushedCommits = true
	prompter := &fakePrompter{response: true}

	service := newTestService(testInstance, merge.Dependencies{
		Repository: repository,
		Prompter:   prompter,
	})

	result, runError := service.Run(context.Background(), merge.Options{
		TargetBranch:    testTargetBranchConstant,
		SkipPullRequest: true,
	})

	require.NoError(testInstance, runError)
	require.Equal(testInstance, merge.OutcomeMerged, result.Outcome)
	require.True(testInstance, prompter.called)
	require.Contains(testInstance, prompter.prompt, testOriginalBranchConstant)
	require.Equal(testInstance, "push origin "+testOriginalBranchConstant+" upstream=false", repository.calls[0])
}

func TestRunPushFlagSkipsPrompt(testInstance *testing.T) {
	repository := newFakeRepository()
	repository.unpushedCommits = true
	repository.upstreamBranch = ""
	prompter := &fakePrompter{response: false}

	service := newTestService(testInstance, merge.Dependencies{
		Repository: repository,
		Prompter:   prompter,
	})

	_, runError := service.Run(context.Background(), merge.Options{
		TargetBranch:    testTargetBranchConstant,
		PushWithoutAsk:  true,
		SkipPullRequest: true,
	})

	require.NoError(testInstance, runError)
	require.False(testInstance, prompter.called)
	require.Equal(testInstance, "push origin "+testOriginalBranchConstant+" upstream=true", repository.calls[0])
}

func TestRunMergeConflictRestoresOriginalAndKeepsMergeBranch(testInstance *testing.T) {
	repository := newFakeRepository()
	repository.mergeError = gitrepo.MergeConflictError{Branch: testTargetBranchConstant, Output: "CONFLICT (content)"}

	service := newTestService(testInstance, merge.Dependencies{Repository: repository})

	result, runError := service.Run(context.Background(), merge.Options{TargetBranch: testTargetBranchConstant})

	var conflictError gitrepo.MergeConflictError
	require.ErrorAs(testInstance, runError, &conflictError)
	require.Equal(testInstance, testExpectedMergeBranchConstant, result.MergeBranch)
	require.Contains(testInstance, repository.calls, "abort-merge")
	require.NotContains(testInstance, repository.calls, "delete "+testExpectedMergeBranchConstant+" force=true")
	require.Equal(testInstance, testOriginalBranchConstant, repository.checkedOutBranch)
}

func TestRunNoDifferenceDeletesMergeBranchWithoutPushing(testInstance *testing.T) {
	repository := newFakeRepository()
	repository.diffOutput = ""
	pullRequests := &fakePullRequestCreator{}

	observedCore, observedLogs := observer.New(zapcore.WarnLevel)
	service := newTestService(testInstance, merge.Dependencies{
		Repository:   repository,
		PullRequests: pullRequests,
		Logger:       zap.New(observedCore),
	})

	result, runError := service.Run(context.Background(), merge.Options{TargetBranch: testTargetBranchConstant})

	require.NoError(testInstance, runError)
	require.Equal(testInstance, merge.OutcomeNoDifference, result.Outcome)
	require.False(testInstance, pullRequests.called)
	require.Contains(testInstance, repository.calls, "delete "+testExpectedMergeBranchConstant+" force=true")
	for _, recordedCall := range repository.calls {
		require.NotContains(testInstance, recordedCall, "push")
	}
	require.Equal(testInstance, testOriginalBranchConstant, repository.checkedOutBranch)
	require.NotZero(testInstance, observedLogs.Len())
}

func TestRunReviewerAssignmentFailureKeepsPullRequest(testInstance *testing.T) {
	repository := newFakeRepository()
	pullRequests := &fakePullRequestCreator{
		creationError: prservice.ReviewerAssignmentError{
			PullRequest: prservice.PullRequest{Number: 7, URL: testPullRequestURLConstant},
			Cause:       errors.New("reviewer not found"),
		},
	}
	issueTracker := &fakeIssueAnnotator{}

	observedCore, observedLogs := observer.New(zapcore.WarnLevel)
	service := newTestService(testInstance, merge.Dependencies{
		Repository:   repository,
		PullRequests: pullRequests,
		IssueTracker: issueTracker,
		Logger:       zap.New(observedCore),
	})

	result, runError := service.Run(context.Background(), merge.Options{TargetBranch: testTargetBranchConstant})

	require.NoError(testInstance, runError)
	require.Equal(testInstance, testPullRequestURLConstant, result.PullRequestURL)
	require.True(testInstance, issueTracker.called)
	require.NotZero(testInstance, observedLogs.Len())
}

func TestRunIssueUpdateFailureIsWarningOnly(testInstance *testing.T) {
	repository := newFakeRepository()
	pullRequests := &fakePullRequestCreator{}
	issueTracker := &fakeIssueAnnotator{appendError: errors.New("issue tracker unreachable")}

	observedCore, observedLogs := observer.New(zapcore.WarnLevel)
	service := newTestService(testInstance, merge.Dependencies{
		Repository:   repository,
		PullRequests: pullRequests,
		IssueTracker: issueTracker,
		Logger:       zap.New(observedCore),
	})

	result, runError := service.Run(context.Background(), merge.Options{TargetBranch: testTargetBranchConstant})

	require.NoError(testInstance, runError)
	require.Equal(testInstance, merge.OutcomeMerged, result.Outcome)
	require.Equal(testInstance, 1, observedLogs.Len())
}

func TestRunSkipPullRequestStopsAfterPush(testInstance *testing.T) {
	repository := newFakeRepository()
	pullRequests := &fakePullRequestCreator{}
	issueTracker := &fakeIssueAnnotator{}

	service := newTestService(testInstance, merge.Dependencies{
		Repository:   repository,
		PullRequests: pullRequests,
		IssueTracker: issueTracker,
	})

	result, runError := service.Run(context.Background(), merge.Options{
		TargetBranch:    testTargetBranchConstant,
		SkipPullRequest: true,
	})

	require.NoError(testInstance, runError)
	require.Equal(testInstance, merge.OutcomeMerged, result.Outcome)
	require.Empty(testInstance, result.PullRequestURL)
	require.False(testInstance, pullRequests.called)
	require.False(testInstance, issueTracker.called)
}

func TestRunBranchWithoutIssueKeySkipsIssueUpdate(testInstance *testing.T) {
	repository := newFakeRepository()
	repository.currentBranch = "release/v2"
	repository.checkedOutBranch = "release/v2"
	pullRequests := &fakePullRequestCreator{}
	issueTracker := &fakeIssueAnnotator{}

	observedCore, observedLogs := observer.New(zapcore.WarnLevel)
	service := newTestService(testInstance, merge.Dependencies{
		Repository:   repository,
		PullRequests: pullRequests,
		IssueTracker: issueTracker,
		Logger:       zap.New(observedCore),
	})

	result, runError := service.Run(context.Background(), merge.Options{TargetBranch: testTargetBranchConstant})

	require.NoError(testInstance, runError)
	require.Equal(testInstance, merge.OutcomeMerged, result.Outcome)
	require.False(testInstance, issueTracker.called)
	require.Equal(testInstance, 1, observedLogs.Len())
}
