// Package cleanup removes local and remote branches whose names contain a
// caller-supplied substring, gated by a single upfront confirmation.
package cleanup
