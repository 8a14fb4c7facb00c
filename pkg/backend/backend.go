// Package backend implements the execution backend: the full set of
// side-effecting operations (workspace staging, artifact download, archive
// unpacking, container build, container run, output finalize) that the
// orchestrator drives once per step. Live performs real filesystem, network,
// and container-runtime operations. DryRun logs the same sequence of
// intents and returns deterministic synthetic paths, letting the
// orchestrator walk and report a complete execution plan without touching
// the filesystem, network, or container runtime.
package backend

import (
	"context"
	"strings"
)

// PluginConfig is the subset of a plugin's config.json the core needs: the
// absolute in-container paths where the runtime expects input files and
// will write output files. Other fields in config.json are permitted and
// ignored.
type PluginConfig struct {
	InputDirectory  string `json:"input_directory"`
	OutputDirectory string `json:"output_directory"`
}

// Backend is the capability set the orchestrator drives against a
// workspace, an artifact repository, and a container runtime. Live and
// DryRun are its two realizations.
type Backend interface {
	// SetupWorkspace prepares the workspace root for a fresh run.
	SetupWorkspace(ctx context.Context, workspace string) error

	// PrepareStepWorkspace returns the inputs, outputs, and plugin
	// directories for one step under workspace, disambiguated by stepIRI so
	// steps sharing a label do not collide.
	PrepareStepWorkspace(ctx context.Context, workspace, stepLabel, stepIRI string) (inputs, outputs, plugin string, err error)

	// StageInput recursively copies the tree rooted at src into dst,
	// creating dst if it does not exist. A missing src is a no-op.
	StageInput(ctx context.Context, src, dst string) error

	// FetchFile downloads url into targetDir, rewriting its scheme and
	// authority to artifactBase first when artifactBase is non-empty, and
	// returns the path to the downloaded file.
	FetchFile(ctx context.Context, url, targetDir, artifactBase string) (string, error)

	// DetectAndUnpackArchive sniffs the archive format at path by content,
	// not by file extension, and unpacks it into dst.
	DetectAndUnpackArchive(ctx context.Context, path, dst string) error

	// ReadPluginConfig reads config.json from pluginDir.
	ReadPluginConfig(ctx context.Context, pluginDir string) (PluginConfig, error)

	// BuildImage builds a container image tagged tag from contextDir.
	BuildImage(ctx context.Context, tag, contextDir string) error

	// RunContainer runs the image tagged tag, bind-mounting inputs and
	// outputs to cfg's in-container directories, auto-removing the
	// container on exit.
	RunContainer(ctx context.Context, tag, inputs, outputs string, cfg PluginConfig) error

	// FinalizeOutput moves outputsDir to persistentDir/baseName atomically
	// within the workspace and returns the new path.
	FinalizeOutput(ctx context.Context, outputsDir, persistentDir, baseName string) (string, error)
}

// Sanitize replaces spaces in a label with underscores, the one
// normalization rule applied to every workspace path segment derived from a
// node label.
func Sanitize(label string) string {
	return strings.ReplaceAll(label, " ", "_")
}
