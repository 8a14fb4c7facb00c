package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	charmlog "github.com/charmbracelet/log"
)

// DryRun realizes every Backend operation as a single log line describing
// the action a Live backend would take, returning deterministic synthetic
// paths. It never touches the filesystem, the network, or a container
// runtime, so the orchestrator can walk the full graph and report a
// complete execution plan with no side effects.
type DryRun struct {
	Logger *charmlog.Logger
}

// NewDryRun creates a DryRun backend. logger may be nil, in which case a
// default logger is used.
func NewDryRun(logger *charmlog.Logger) *DryRun {
	if logger == nil {
		logger = charmlog.New(os.Stderr)
	}
	return &DryRun{Logger: logger}
}

func (d *DryRun) SetupWorkspace(ctx context.Context, workspace string) error {
	d.Logger.Info("[dry-run] would remove and recreate workspace", "path", workspace)
	return nil
}

func (d *DryRun) PrepareStepWorkspace(ctx context.Context, workspace, stepLabel, stepIRI string) (inputs, outputs, plugin string, err error) {
	dir := filepath.Join(workspace, fmt.Sprintf("%s_%s", Sanitize(stepLabel), shortID(stepIRI)))
	d.Logger.Info("[dry-run] would prepare step workspace", "dir", dir)
	return filepath.Join(dir, "inputs"), filepath.Join(dir, "outputs"), filepath.Join(dir, "plugin"), nil
}

func (d *DryRun) StageInput(ctx context.Context, src, dst string) error {
	d.Logger.Info("[dry-run] would stage input", "src", src, "dst", dst)
	return nil
}

func (d *DryRun) FetchFile(ctx context.Context, rawURL, targetDir, artifactBase string) (string, error) {
	d.Logger.Info("[dry-run] would fetch file", "url", rawURL, "targetDir", targetDir, "artifactBase", artifactBase)
	return filepath.Join(targetDir, basename(rawURL)), nil
}

func (d *DryRun) DetectAndUnpackArchive(ctx context.Context, path, dst string) error {
	d.Logger.Info("[dry-run] would detect and unpack archive", "path", path, "dst", dst)
	return nil
}

func (d *DryRun) ReadPluginConfig(ctx context.Context, pluginDir string) (PluginConfig, error) {
	cfg := PluginConfig{InputDirectory: "/data/input", OutputDirectory: "/data/output"}
	d.Logger.Info("[dry-run] would read plugin config", "pluginDir", pluginDir, "config", cfg)
	return cfg, nil
}

func (d *DryRun) BuildImage(ctx context.Context, tag, contextDir string) error {
	d.Logger.Info("[dry-run] would build container image", "tag", tag, "context", contextDir)
	return nil
}

func (d *DryRun) RunContainer(ctx context.Context, tag, inputs, outputs string, cfg PluginConfig) error {
	d.Logger.Info("[dry-run] would run container", "tag", tag, "inputs", inputs, "outputs", outputs,
		"containerInput", cfg.InputDirectory, "containerOutput", cfg.OutputDirectory)
	return nil
}

func (d *DryRun) FinalizeOutput(ctx context.Context, outputsDir, persistentDir, baseName string) (string, error) {
	target := filepath.Join(persistentDir, Sanitize(baseName))
	d.Logger.Info("[dry-run] would finalize output", "from", outputsDir, "to", target)
	return target, nil
}

var _ Backend = (*Live)(nil)
var _ Backend = (*DryRun)(nil)
