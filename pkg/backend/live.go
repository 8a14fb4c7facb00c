package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/YArzumanyan/data-factory/pkg/errors"
	"github.com/YArzumanyan/data-factory/pkg/httputil"
	"github.com/YArzumanyan/data-factory/pkg/observability"
)

// fetchTimeout bounds a single artifact download.
const fetchTimeout = 30 * time.Second

// downloadChunkSize is the buffer size used for streaming artifact bodies
// to disk; an artifact is never buffered whole in memory.
const downloadChunkSize = 8 * 1024

// defaultContainerRuntime names the external CLI invoked to build and run
// container images when Live.ContainerRuntime is empty. Setting
// Live.ContainerRuntime selects a Docker-compatible CLI under a different
// name (e.g. "podman").
const defaultContainerRuntime = "docker"

// Live is the real execution backend: it touches the filesystem, the
// network, and an external container runtime CLI.
type Live struct {
	HTTP             *http.Client
	Logger           *charmlog.Logger
	ContainerRuntime string // defaults to "docker" if empty
}

// NewLive creates a Live backend. logger may be nil, in which case a
// default logger is used.
func NewLive(logger *charmlog.Logger) *Live {
	if logger == nil {
		logger = charmlog.New(os.Stderr)
	}
	return &Live{
		HTTP:   httputil.NewClient(fetchTimeout),
		Logger: logger,
	}
}

func (l *Live) runtime() string {
	if l.ContainerRuntime != "" {
		return l.ContainerRuntime
	}
	return defaultContainerRuntime
}

// SetupWorkspace removes any existing workspace root and recreates it.
func (l *Live) SetupWorkspace(ctx context.Context, workspace string) error {
	l.Logger.Info("setting up workspace", "path", workspace)
	if err := os.RemoveAll(workspace); err != nil {
		return errors.Wrap(errors.CodeFetch, err, "removing existing workspace %s", workspace)
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return errors.Wrap(errors.CodeFetch, err, "creating workspace %s", workspace)
	}
	return nil
}

// PrepareStepWorkspace creates the inputs/outputs/plugin directories for
// one step under workspace/{sanitized_label}_{step_uuid}/.
func (l *Live) PrepareStepWorkspace(ctx context.Context, workspace, stepLabel, stepIRI string) (inputs, outputs, plugin string, err error) {
	dir := filepath.Join(workspace, fmt.Sprintf("%s_%s", Sanitize(stepLabel), shortID(stepIRI)))
	inputs = filepath.Join(dir, "inputs")
	outputs = filepath.Join(dir, "outputs")
	plugin = filepath.Join(dir, "plugin")

	for _, d := range []string{inputs, outputs, plugin} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return "", "", "", errors.Wrap(errors.CodeFetch, err, "creating step workspace directory %s", d)
		}
	}
	return inputs, outputs, plugin, nil
}

// StageInput recursively copies src into dst. A missing src is a no-op.
func (l *Live) StageInput(ctx context.Context, src, dst string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	return copyTree(src, dst)
}

// FetchFile downloads url (optionally rewritten against artifactBase) into
// targetDir, streaming the body in 8 KiB chunks.
func (l *Live) FetchFile(ctx context.Context, rawURL, targetDir, artifactBase string) (string, error) {
	start := time.Now()
	observability.Execution().OnFetchStart(ctx, rawURL)

	resolved := rawURL
	if artifactBase != "" {
		resolved = httputil.RewriteBase(rawURL, artifactBase)
	}

	n, path, err := l.fetchFile(ctx, resolved, targetDir)
	observability.Execution().OnFetchComplete(ctx, rawURL, n, time.Since(start), err)
	return path, err
}

func (l *Live) fetchFile(ctx context.Context, url, targetDir string) (int64, string, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", errors.Wrap(errors.CodeFetch, err, "building request for %s", url)
	}

	resp, err := l.HTTP.Do(req)
	if err != nil {
		return 0, "", errors.Wrap(errors.CodeFetch, err, "fetching %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, "", errors.New(errors.CodeFetch, "fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return 0, "", errors.Wrap(errors.CodeFetch, err, "creating target directory %s", targetDir)
	}

	path := filepath.Join(targetDir, basename(url))
	out, err := os.Create(path)
	if err != nil {
		return 0, "", errors.Wrap(errors.CodeFetch, err, "creating file %s", path)
	}
	defer out.Close()

	buf := make([]byte, downloadChunkSize)
	n, err := io.CopyBuffer(out, resp.Body, buf)
	if err != nil {
		return n, "", errors.Wrap(errors.CodeFetch, err, "writing %s", path)
	}
	return n, path, nil
}

// DetectAndUnpackArchive sniffs path's content and unpacks it into dst.
func (l *Live) DetectAndUnpackArchive(ctx context.Context, path, dst string) error {
	l.Logger.Debug("unpacking archive", "path", path, "dst", dst)
	return unpackArchive(path, dst)
}

// ReadPluginConfig reads config.json from pluginDir.
func (l *Live) ReadPluginConfig(ctx context.Context, pluginDir string) (PluginConfig, error) {
	path := filepath.Join(pluginDir, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return PluginConfig{}, errors.Wrap(errors.CodeUnsupportedArchive, err, "reading plugin config %s", path)
	}
	var cfg PluginConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return PluginConfig{}, errors.Wrap(errors.CodeUnsupportedArchive, err, "parsing plugin config %s", path)
	}
	return cfg, nil
}

// BuildImage invokes `docker build -t tag contextDir`.
func (l *Live) BuildImage(ctx context.Context, tag, contextDir string) error {
	start := time.Now()
	observability.Execution().OnContainerBuildStart(ctx, tag)
	l.Logger.Info("building container image", "tag", tag, "context", contextDir)

	cmd := exec.CommandContext(ctx, l.runtime(), "build", "-t", tag, contextDir)
	out, err := cmd.CombinedOutput()

	observability.Execution().OnContainerBuildComplete(ctx, tag, time.Since(start), err)
	if err != nil {
		return errors.Wrap(errors.CodeContainerBuild, err, "building image %s: %s", tag, string(out))
	}
	return nil
}

// RunContainer invokes `docker run --rm` with bind-mounts for inputs and
// outputs at the directories cfg requests inside the container. Docker
// bind-mount sources must be absolute host paths, so inputs/outputs are
// resolved via filepath.Abs before being passed to -v.
func (l *Live) RunContainer(ctx context.Context, tag, inputs, outputs string, cfg PluginConfig) error {
	start := time.Now()
	observability.Execution().OnContainerRunStart(ctx, tag)
	l.Logger.Info("running container", "tag", tag)

	absInputs, err := filepath.Abs(inputs)
	if err != nil {
		return errors.Wrap(errors.CodeContainerRun, err, "resolving absolute path for %s", inputs)
	}
	absOutputs, err := filepath.Abs(outputs)
	if err != nil {
		return errors.Wrap(errors.CodeContainerRun, err, "resolving absolute path for %s", outputs)
	}

	args := []string{
		"run", "--rm",
		"-v", fmt.Sprintf("%s:%s", absInputs, cfg.InputDirectory),
		"-v", fmt.Sprintf("%s:%s", absOutputs, cfg.OutputDirectory),
		tag,
	}
	cmd := exec.CommandContext(ctx, l.runtime(), args...)
	out, err := cmd.CombinedOutput()

	observability.Execution().OnContainerRunComplete(ctx, tag, time.Since(start), err)
	if err != nil {
		return errors.Wrap(errors.CodeContainerRun, err, "running %s: %s", tag, string(out))
	}
	return nil
}

// FinalizeOutput moves outputsDir to persistentDir/baseName.
func (l *Live) FinalizeOutput(ctx context.Context, outputsDir, persistentDir, baseName string) (string, error) {
	if err := os.MkdirAll(persistentDir, 0o755); err != nil {
		return "", errors.Wrap(errors.CodeFetch, err, "creating results directory %s", persistentDir)
	}
	target := filepath.Join(persistentDir, Sanitize(baseName))
	if err := os.Rename(outputsDir, target); err != nil {
		return "", errors.Wrap(errors.CodeFetch, err, "finalizing output %s -> %s", outputsDir, target)
	}
	return target, nil
}
