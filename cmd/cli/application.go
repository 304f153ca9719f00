package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"branchflow/internal/cleanup"
	"branchflow/internal/execshell"
	"branchflow/internal/issuetracker"
	"branchflow/internal/merge"
	"branchflow/internal/topics"
	"branchflow/internal/ui"
	"branchflow/internal/utils"
)

const (
	applicationNameConstant                 = "branchflow"
	applicationShortDescriptionConstant     = "Command-line interface for the branch merge and cleanup workflow"
	applicationLongDescriptionConstant      = "branchflow automates a branch/merge/pull-request workflow: it creates disposable merge branches, pushes them, opens pull requests, annotates tracked issues, and cleans up spent branches."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	environmentPrefixConstant               = "BRANCHFLOW"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	mergeRemoteConfigKeyConstant            = "tools.merge.remote"
	cleanupRemoteConfigKeyConstant          = "tools.cleanup.remote"
	defaultRemoteNameConstant               = "origin"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Tools  ApplicationToolsConfiguration  `mapstructure:"tools"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationToolsConfiguration holds configuration for CLI subcommands grouped by tool.
type ApplicationToolsConfiguration struct {
	Merge   merge.Configuration   `mapstructure:"merge"`
	Cleanup cleanup.Configuration `mapstructure:"cleanup"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	commandContextAccessor utils.CommandContextAccessor
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		utils.DefaultConfigurationSearchPaths(applicationNameConstant),
	)

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)

	loggerProvider := func() *zap.Logger {
		return application.logger
	}
	eventObserver := commandEventObserverProxy{application: application}

	mergeBuilder := merge.CommandBuilder{
		LoggerProvider: loggerProvider,
		ConfigurationProvider: func() merge.Configuration {
			return application.configuration.Tools.Merge
		},
		CommandEventsObserver: eventObserver,
	}
	if mergeCommand, mergeBuildError := mergeBuilder.Build(); mergeBuildError == nil {
		cobraCommand.AddCommand(mergeCommand)
	}

	cleanupBuilder := cleanup.CommandBuilder{
		LoggerProvider: loggerProvider,
		ConfigurationProvider: func() cleanup.Configuration {
			return application.configuration.Tools.Cleanup
		},
		CommandEventsObserver: eventObserver,
	}
	if cleanupCommand, cleanupBuildError := cleanupBuilder.Build(); cleanupBuildError == nil {
		cobraCommand.AddCommand(cleanupCommand)
	}

	topicsBuilder := topics.CommandBuilder{
		LoggerProvider:        loggerProvider,
		CommandEventsObserver: eventObserver,
	}
	if topicsCommand, topicsBuildError := topicsBuilder.Build(); topicsBuildError == nil {
		cobraCommand.AddCommand(topicsCommand)
	}

	issueBuilder := issuetracker.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		ConfigurationProvider: func() issuetracker.Configuration {
			return application.configuration.Tools.Merge.IssueTracker
		},
	}
	if issueCommand, issueBuildError := issueBuilder.Build(); issueBuildError == nil {
		cobraCommand.AddCommand(issueCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatConsole),
		mergeRemoteConfigKeyConstant:     defaultRemoteNameConstant,
		cleanupRemoteConfigKeyConstant:   defaultRemoteNameConstant,
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(
			command.Context(),
			application.configurationMetadata.ConfigFileUsed,
		)
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}
	return command.Help()
}

func (application *Application) flushLogger() error {
	return application.syncLoggerInstance(application.logger)
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}

// commandEventObserverProxy defers observer resolution until the logger and
// configuration exist; console output is only produced for the console log
// format.
type commandEventObserverProxy struct {
	application *Application
}

func (proxy commandEventObserverProxy) resolve() execshell.CommandEventObserver {
	if proxy.application == nil || !proxy.application.humanReadableLoggingEnabled() {
		return nil
	}
	return ui.NewConsoleCommandEventLogger(proxy.application.logger)
}

// CommandStarted forwards start notifications to the console observer when enabled.
func (proxy commandEventObserverProxy) CommandStarted(command execshell.ShellCommand) {
	if observer := proxy.resolve(); observer != nil {
		observer.CommandStarted(command)
	}
}

// CommandCompleted forwards completion notifications to the console observer when enabled.
func (proxy commandEventObserverProxy) CommandCompleted(command execshell.ShellCommand, result execshell.ExecutionResult) {
	if observer := proxy.resolve(); observer != nil {
		observer.CommandCompleted(command, result)
	}
}

// CommandExecutionFailed forwards failure notifications to the console observer when enabled.
func (proxy commandEventObserverProxy) CommandExecutionFailed(command execshell.ShellCommand, failure error) {
	if observer := proxy.resolve(); observer != nil {
		observer.CommandExecutionFailed(command, failure)
	}
}
