// Package cli implements the executor command-line interface.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/YArzumanyan/data-factory/pkg/buildinfo"
	"github.com/YArzumanyan/data-factory/pkg/config"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands: the logger and the metadata
// store / artifact repository / workspace overrides bound to the root
// command's persistent flags.
type CLI struct {
	Logger *log.Logger

	metadataURL string
	artifactURL string
	workspace   string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "executor",
		Short: "Executor reconstructs and runs cross-pipeline semantic execution graphs",
		Long: `Executor fetches RDF pipeline metadata from a metadata store, reconstructs
the combined execution graph across pipeline boundaries, and either
visualizes it or runs each step as a containerized plugin.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.PersistentFlags().StringVar(&c.metadataURL, "url", "", "metadata store base URL (overrides "+config.EnvMetadataBase+")")
	root.PersistentFlags().StringVar(&c.artifactURL, "artifact-url", "", "artifact repository base URL (overrides "+config.EnvArtifactBase+")")
	root.PersistentFlags().StringVar(&c.workspace, "workspace", "", "local workspace root (overrides "+config.EnvWorkspace+")")

	root.AddCommand(c.visualizeCommand())
	root.AddCommand(c.executeCommand())

	return root
}

// buildConfig loads configuration from the environment and .env file, then
// applies any non-empty root persistent-flag overrides.
func (c *CLI) buildConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	return cfg.Overrides(c.metadataURL, c.artifactURL, c.workspace), nil
}
