package prservice

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

const (
	unknownProjectTypeMessageConstant = "no reviewers configured for project type"
	projectTypeLogFieldNameConstant   = "project_type"
	knownTypesLogFieldNameConstant    = "known_project_types"
)

// ReviewerDirectory resolves the reviewer list for a project type from
// configuration. Unknown project types resolve to an empty list with a
// diagnostic log entry rather than an error.
type ReviewerDirectory struct {
	assignments map[string][]string
	logger      *zap.Logger
}

// NewReviewerDirectory builds a directory from configured assignments. Project
// type keys are normalized to lower case.
func NewReviewerDirectory(assignments map[string][]string, logger *zap.Logger) *ReviewerDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalizedAssignments := make(map[string][]string, len(assignments))
	for projectType, reviewers := range assignments {
		normalizedAssignments[strings.ToLower(strings.TrimSpace(projectType))] = reviewers
	}
	return &ReviewerDirectory{assignments: normalizedAssignments, logger: logger}
}

// ReviewersForProject returns the configured reviewers for the project type.
func (directory *ReviewerDirectory) ReviewersForProject(projectType string) []string {
	normalizedProjectType := strings.ToLower(strings.TrimSpace(projectType))
	reviewers, found := directory.assignments[normalizedProjectType]
	if !found {
		directory.logger.Warn(unknownProjectTypeMessageConstant,
			zap.String(projectTypeLogFieldNameConstant, projectType),
			zap.Strings(knownTypesLogFieldNameConstant, directory.knownProjectTypes()),
		)
		return nil
	}
	return reviewers
}

func (directory *ReviewerDirectory) knownProjectTypes() []string {
	knownTypes := make([]string, 0, len(directory.assignments))
	for projectType := range directory.assignments {
		knownTypes = append(knownTypes, projectType)
	}
	sort.Strings(knownTypes)
	return knownTypes
}
