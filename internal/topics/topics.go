// Package topics lists the topic branches sharing a reference branch's prefix.
package topics

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"branchflow/internal/branchname"
	"branchflow/internal/gitrepo"
)

const (
	repositoryManagerRequiredMessageConstant = "repository manager must be configured"
	currentBranchErrorTemplateConstant       = "unable to determine current branch: %w"
	listBranchesErrorTemplateConstant        = "unable to list branches with prefix %s: %w"
	prefixLogFieldNameConstant               = "prefix"
	branchCountLogFieldNameConstant          = "branch_count"
	topicBranchesLogMessageConstant          = "topic branches resolved"
)

// ErrRepositoryManagerMissing indicates the service was built without a repository manager.
var ErrRepositoryManagerMissing = errors.New(repositoryManagerRequiredMessageConstant)

// RepositoryManager captures the read-only git queries the listing performs.
type RepositoryManager interface {
	CurrentBranch(executionContext context.Context, repositoryPath string) (string, error)
	ListBranchesWithPrefix(executionContext context.Context, repositoryPath string, prefix string) ([]string, error)
}

// Service lists topic branches grouped by a shared prefix.
type Service struct {
	repository RepositoryManager
	logger     *zap.Logger
}

// NewService validates dependencies and constructs the listing service.
func NewService(repository RepositoryManager, logger *zap.Logger) (*Service, error) {
	if repository == nil {
		return nil, ErrRepositoryManagerMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repository: repository, logger: logger}, nil
}

// ListTopicBranches returns every branch sharing the reference branch's
// prefix, ordered and deduplicated. An empty reference branch means the
// currently checked out branch.
func (service *Service) ListTopicBranches(executionContext context.Context, repositoryPath string, referenceBranch string) ([]string, error) {
	if len(referenceBranch) == 0 {
		currentBranch, branchError := service.repository.CurrentBranch(executionContext, repositoryPath)
		if branchError != nil {
			return nil, fmt.Errorf(currentBranchErrorTemplateConstant, branchError)
		}
		referenceBranch = currentBranch
	}

	branchPrefix := branchname.Prefix(referenceBranch)
	topicBranches, listError := service.repository.ListBranchesWithPrefix(executionContext, repositoryPath, branchPrefix)
	if listError != nil {
		return nil, fmt.Errorf(listBranchesErrorTemplateConstant, branchPrefix, listError)
	}

	service.logger.Debug(topicBranchesLogMessageConstant,
		zap.String(prefixLogFieldNameConstant, branchPrefix),
		zap.Int(branchCountLogFieldNameConstant, len(topicBranches)),
	)
	return topicBranches, nil
}

var _ RepositoryManager = (*gitrepo.RepositoryManager)(nil)
