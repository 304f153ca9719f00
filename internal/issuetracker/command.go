package issuetracker

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"branchflow/internal/secrets"
)

const (
	commandUseConstant              = "issue <key>"
	commandShortDescriptionConstant = "Show a tracked issue's summary, status, and description"
	commandLongDescriptionConstant  = "issue fetches the named issue from the configured issue tracker and prints its key, summary, type, status, browse URL, and description."
	issueHeaderTemplateConstant     = "%s  %s\n"
	issueFieldTemplateConstant      = "%-8s %s\n"
	issueTypeFieldLabelConstant     = "Type"
	issueStatusFieldLabelConstant   = "Status"
	issueURLFieldLabelConstant      = "URL"
	descriptionSeparatorConstant    = "\n"
)

// LoggerProvider supplies the zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the resolved issue tracker configuration.
type ConfigurationProvider func() Configuration

// IssueGetter fetches issues from the tracker.
type IssueGetter interface {
	GetIssue(executionContext context.Context, issueKey string) (Issue, error)
}

// CommandBuilder assembles the issue cobra command with configurable dependencies.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	Client                IssueGetter
	TokenSource           *secrets.TokenSource
}

// Build constructs the cobra command for issue inspection.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.run,
	}
	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	client, clientError := builder.resolveClient()
	if clientError != nil {
		return clientError
	}

	issue, issueError := client.GetIssue(command.Context(), arguments[0])
	if issueError != nil {
		return issueError
	}

	fmt.Fprintf(command.OutOrStdout(), issueHeaderTemplateConstant, issue.Key, issue.Summary)
	fmt.Fprintf(command.OutOrStdout(), issueFieldTemplateConstant, issueTypeFieldLabelConstant, issue.IssueType)
	fmt.Fprintf(command.OutOrStdout(), issueFieldTemplateConstant, issueStatusFieldLabelConstant, issue.Status)
	fmt.Fprintf(command.OutOrStdout(), issueFieldTemplateConstant, issueURLFieldLabelConstant, issue.URL)
	if len(strings.TrimSpace(issue.Description)) > 0 {
		fmt.Fprint(command.OutOrStdout(), descriptionSeparatorConstant)
		fmt.Fprintln(command.OutOrStdout(), issue.Description)
	}
	return nil
}

func (builder *CommandBuilder) resolveClient() (IssueGetter, error) {
	if builder.Client != nil {
		return builder.Client, nil
	}

	configuration := Configuration{}
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}

	tokenSource := builder.TokenSource
	if tokenSource == nil {
		tokenSource = secrets.NewTokenSource()
	}
	resolvedToken, tokenError := tokenSource.IssueTrackerToken(configuration.Token, configuration.Email)
	if tokenError != nil {
		return nil, tokenError
	}
	configuration.Token = resolvedToken

	return NewClient(configuration)
}
