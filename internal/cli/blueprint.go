package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewBlueprintCmd создаёт группу команд для blueprints.
func NewBlueprintCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "blueprint",
		Aliases: []string{"bp"},
		Short:   "Manage blueprints",
	}

	cmd.AddCommand(
		newBlueprintListCmd(clientFn, outputFn),
		newBlueprintCreateCmd(clientFn, outputFn),
		newBlueprintShowCmd(clientFn, outputFn),
	)

	return cmd
}

var blueprintHeaders = []string{"ID", "NAME", "VERSION", "STEPS", "BRANCHES", "CREATED"}

func blueprintRow(b BlueprintResponse) []string {
	return []string{b.ID, b.Name, strconv.Itoa(b.Version), strconv.Itoa(b.Steps), strconv.Itoa(b.Branches), b.CreatedAt}
}

func newBlueprintListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List blueprints with step and branch counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			bps, err := clientFn().ListBlueprints()
			if err != nil {
				return err
			}

			rows := make([][]string, len(bps))
			for i, b := range bps {
				rows[i] = blueprintRow(b)
			}

			outputFn().Print(blueprintHeaders, rows, bps)
			return nil
		},
	}
}

func newBlueprintCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a blueprint from a YAML or JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			bp, err := readBlueprint(file)
			if err != nil {
				return err
			}

			created, err := clientFn().CreateBlueprint(bp)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Blueprint created: %s", created.ID))
			out.Print(blueprintHeaders, [][]string{blueprintRow(*created)}, created)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to blueprint file (.yaml, .yml or .json)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newBlueprintShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show BLUEPRINT_ID",
		Short: "Show blueprint details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bp, err := clientFn().GetBlueprint(args[0])
			if err != nil {
				return err
			}

			outputFn().Detail([][2]string{
				{"ID", bp.ID},
				{"Name", bp.Name},
				{"Version", strconv.Itoa(bp.Version)},
				{"Steps", strconv.Itoa(bp.Steps)},
				{"Branches", strconv.Itoa(bp.Branches)},
				{"Start nodes", strings.Join(bp.StartNodes, ", ")},
				{"Created", bp.CreatedAt},
			}, bp)
			return nil
		},
	}
}
