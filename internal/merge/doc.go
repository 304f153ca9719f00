// Package merge orchestrates the merge-branch workflow: validating repository
// state, syncing the target branch, creating a disposable merge branch,
// pushing it, opening a pull request, and annotating the tracked issue.
package merge
