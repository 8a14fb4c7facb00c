package cli

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YArzumanyan/data-factory/pkg/graphbuilder"
	"github.com/YArzumanyan/data-factory/pkg/render"
)

// visualizeCommand creates the visualize command for rendering the combined
// execution graph without running anything.
func (c *CLI) visualizeCommand() *cobra.Command {
	var (
		regenerate []string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "visualize <start-uuid>",
		Short: "Render the combined execution graph for a pipeline",
		Long: `Visualize reconstructs the cross-pipeline execution graph starting from
the given pipeline UUID and renders it as a Graphviz diagram, without
fetching artifacts or running any step.`,
		Args: uuidArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateRegenerateUUIDs(regenerate); err != nil {
				return err
			}
			return c.runVisualize(cmd.Context(), args[0], regenerate, output)
		},
	}

	cmd.Flags().StringArrayVarP(&regenerate, "regenerate", "r", nil, "dataset UUID whose generating pipeline should be re-fetched instead of using its published accessURL (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "graph.svg", "output file (.svg or .png)")

	return cmd
}

func (c *CLI) runVisualize(ctx context.Context, startUUID string, regenerate []string, output string) error {
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

	dot := render.ToDOT(g, startUUID)

	var data []byte
	if strings.HasSuffix(strings.ToLower(output), ".png") {
		data, err = render.RenderPNG(dot)
	} else {
		data, err = render.RenderSVG(dot)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(output, data, 0o644); err != nil {
		return err
	}
	c.Logger.Info("wrote visualization", "path", output, "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return nil
}
