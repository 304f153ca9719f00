// Package utils exposes reusable helpers consumed by multiple commands.
//
// It houses the ConfigurationLoader and LoggerFactory abstractions that
// integrate Viper, XDG configuration paths, environment variables, and zap
// logging for the CLI, along with small context and writer utilities.
package utils
