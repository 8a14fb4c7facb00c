// Package config defines the executor's immutable configuration: the
// metadata store base URL, the artifact repository base URL, and the local
// workspace directory. Values are loaded once from a `.env` file and the
// process environment, then may be overridden by CLI flags.
package config

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/YArzumanyan/data-factory/pkg/errors"
)

// Environment variable names recognized by Load.
const (
	EnvMetadataBase = "PIPELINE_ENDPOINT"
	EnvArtifactBase = "ARTIFACT_REPOSITORY_URL"
	EnvWorkspace    = "MAIN_WORKSPACE"
)

// DefaultWorkspace is used when neither MAIN_WORKSPACE nor a --workspace
// flag is set.
const DefaultWorkspace = "./tmp/executor_workspace"

// Config is the immutable set of values the orchestrator and its backend
// need to resolve and execute a pipeline.
type Config struct {
	MetadataBase string
	ArtifactBase string
	Workspace    string
}

// Load reads a `.env` file (if present, ignored if absent) into the process
// environment, then builds a Config from PIPELINE_ENDPOINT,
// ARTIFACT_REPOSITORY_URL, and MAIN_WORKSPACE. Call Overrides afterward to
// apply CLI flag values.
func Load() (Config, error) {
	_ = godotenv.Load() // .env is optional; missing file is not an error

	cfg := Config{
		MetadataBase: os.Getenv(EnvMetadataBase),
		ArtifactBase: os.Getenv(EnvArtifactBase),
		Workspace:    os.Getenv(EnvWorkspace),
	}
	if cfg.Workspace == "" {
		cfg.Workspace = DefaultWorkspace
	}
	return cfg, nil
}

// Overrides applies non-empty flag values on top of cfg, returning a new
// Config. Empty strings are treated as "not set" and leave the existing
// value in place.
func (c Config) Overrides(metadataBase, artifactBase, workspace string) Config {
	out := c
	if metadataBase != "" {
		out.MetadataBase = metadataBase
	}
	if artifactBase != "" {
		out.ArtifactBase = artifactBase
	}
	if workspace != "" {
		out.Workspace = workspace
	}
	return out
}

// Validate checks that the metadata endpoint is set. ArtifactBase is an
// optional rewrite target: when unset, accessURLs observed in the graph are
// fetched as-is. Workspace always has a default and never fails validation.
func (c Config) Validate() error {
	if c.MetadataBase == "" {
		return errors.New(errors.CodeFetch, "metadata endpoint not set (env %s or --url)", EnvMetadataBase)
	}
	return nil
}
