// Package ui formats human-readable console output for interactive sessions.
//
// It renders git command lifecycle events as concise progress messages and
// collects confirmation responses before destructive operations, while
// detailed telemetry continues to flow through structured loggers.
package ui
