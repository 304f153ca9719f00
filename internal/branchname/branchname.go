// Package branchname derives branch prefixes, merge-branch names, and issue
// keys from the prefix/topic naming convention used across branchflow.
package branchname

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	branchSegmentSeparatorConstant   = "/"
	mergeBranchNameTemplateConstant  = "%s/merge_%s_%s"
	mergeBranchTimestampLayoutForm   = "20060102_150405"
	bugPrefixedIssueKeyPatternSource = `^Bug/([A-Z]+-\d+)`
	leadingIssueKeyPatternSource     = `^([A-Z]+-\d+)`
)

var (
	bugPrefixedIssueKeyPattern = regexp.MustCompile(bugPrefixedIssueKeyPatternSource)
	leadingIssueKeyPattern     = regexp.MustCompile(leadingIssueKeyPatternSource)
)

// Prefix returns the branch name up to, but excluding, its last path segment.
// A branch name without a separator is returned unchanged.
func Prefix(branchName string) string {
	separatorIndex := strings.LastIndex(branchName, branchSegmentSeparatorConstant)
	if separatorIndex == -1 {
		return branchName
	}
	return branchName[:separatorIndex]
}

// MergeBranchName builds the disposable branch name used to merge the target
// branch into the original branch's lineage. The timestamp keeps repeated
// merges of the same target distinct and branch-name safe.
func MergeBranchName(originalBranch string, targetBranch string, timestamp time.Time) string {
	return fmt.Sprintf(
		mergeBranchNameTemplateConstant,
		Prefix(originalBranch),
		targetBranch,
		timestamp.Format(mergeBranchTimestampLayoutForm),
	)
}

// DeriveIssueKey extracts an issue-tracker key from a branch name. Branches
// named Bug/<KEY>/... are matched before branches starting with the key.
func DeriveIssueKey(branchName string) (string, bool) {
	if matches := bugPrefixedIssueKeyPattern.FindStringSubmatch(branchName); len(matches) > 1 {
		return matches[1], true
	}
	if matches := leadingIssueKeyPattern.FindStringSubmatch(branchName); len(matches) > 1 {
		return matches[1], true
	}
	return "", false
}
