// Package gitrepo contains helpers for interrogating and manipulating Git repositories.
//
// It exposes RepositoryManager for inspecting branches, working-tree status,
// and upstream state, along with the mutating branch operations consumed by
// the merge and cleanup workflows.
package gitrepo
