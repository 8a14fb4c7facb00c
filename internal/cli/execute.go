package cli

import (
	"context"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/YArzumanyan/data-factory/pkg/backend"
	"github.com/YArzumanyan/data-factory/pkg/errors"
	"github.com/YArzumanyan/data-factory/pkg/graphbuilder"
	"github.com/YArzumanyan/data-factory/pkg/orchestrator"
)

// dockerRuntime is the container runtime CLI checked for before a non-dry
// run: the same name Live shells out to when building and running plugin
// images.
const dockerRuntime = "docker"

// executeCommand creates the execute command, which reconstructs the
// combined execution graph and runs each step in topological order.
func (c *CLI) executeCommand() *cobra.Command {
	var (
		regenerate []string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "execute <start-uuid>",
		Short: "Execute the pipeline rooted at the given UUID",
		Long: `Execute reconstructs the cross-pipeline execution graph starting from
the given pipeline UUID, downloads initial datasets, and runs every step
of the normalized graph in topological order as a containerized plugin.

With --dry-run, pipeline metadata is still fetched to build the graph,
but no artifact download, filesystem, or container operation is
performed; each phase is only logged.`,
		Args: uuidArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateRegenerateUUIDs(regenerate); err != nil {
				return err
			}
			return c.runExecute(cmd.Context(), args[0], regenerate, dryRun)
		},
	}

	cmd.Flags().StringArrayVarP(&regenerate, "regenerate", "r", nil, "dataset UUID whose generating pipeline should be re-fetched instead of using its published accessURL (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log the execution plan without downloading artifacts or touching the filesystem or a container runtime (pipeline metadata is still fetched)")

	return cmd
}

func (c *CLI) runExecute(ctx context.Context, startUUID string, regenerate []string, dryRun bool) error {
	cfg, err := c.buildConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client := graphbuilder.NewMetadataClient(cfg.MetadataBase)
	builder := graphbuilder.New(client, c.Logger)

	progress := newProgress(c.Logger)
	g, err := builder.Build(ctx, startUUID, regenerate)
	if err != nil {
		return err
	}
	progress.done("reconstructed execution graph")

	if g.NodeCount() == 0 {
		return errors.New(errors.CodeGraphNormalization, "combined graph is empty: no pipeline could be fetched for %s", startUUID)
	}
	if err := g.Validate(); err != nil {
		return errors.Wrap(errors.CodeGraphNormalization, err, "combined graph is not executable")
	}

	var be backend.Backend
	if dryRun {
		be = backend.NewDryRun(c.Logger)
	} else {
		if _, err := exec.LookPath(dockerRuntime); err != nil {
			return errors.Wrap(errors.CodeRuntimeMissing, err, "container runtime %q not found in PATH", dockerRuntime)
		}
		be = backend.NewLive(c.Logger)
	}

	run := newProgress(c.Logger)
	results, err := orchestrator.New(g, be, cfg, c.Logger).Run(ctx)
	if err != nil {
		return err
	}
	run.done("execution complete")

	c.Logger.Info("final results", "variables", len(results))
	return nil
}
