package utils

import "context"

type commandContextKey string

const configurationFilePathContextKeyConstant commandContextKey = "configuration_file_path"

// CommandContextAccessor reads and writes CLI metadata carried on command
// execution contexts.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithConfigurationFilePath returns a context carrying the resolved
// configuration file path. A nil parent context falls back to
// context.Background.
func (accessor CommandContextAccessor) WithConfigurationFilePath(parentContext context.Context, configurationFilePath string) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, configurationFilePathContextKeyConstant, configurationFilePath)
}

// ConfigurationFilePath reports the configuration file path stored on the
// context, when present.
func (accessor CommandContextAccessor) ConfigurationFilePath(executionContext context.Context) (string, bool) {
	if executionContext == nil {
		return "", false
	}
	storedFilePath, filePathPresent := executionContext.Value(configurationFilePathContextKeyConstant).(string)
	return storedFilePath, filePathPresent
}
