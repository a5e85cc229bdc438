package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewInstanceCmd создаёт группу команд для instances.
func NewInstanceCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "instance",
		Aliases: []string{"inst"},
		Short:   "Manage action instances",
	}

	cmd.AddCommand(
		newInstanceListCmd(clientFn, outputFn),
		newInstanceCreateCmd(clientFn, outputFn),
		newInstanceShowCmd(clientFn, outputFn),
		newInstanceStartCmd(clientFn, outputFn),
		newInstanceCancelCmd(clientFn, outputFn),
		newInstanceNodesCmd(clientFn, outputFn),
	)

	return cmd
}

var instanceHeaders = []string{"ID", "BLUEPRINT", "STATUS", "PROGRESS", "FINISHED", "CREATED"}

func instanceRow(inst InstanceResponse) []string {
	finished := strconv.Itoa(len(inst.FinishedNodeIDs))
	if inst.Nodes != nil {
		finished += "/" + strconv.Itoa(inst.Nodes.Total)
	}
	return []string{inst.ID, inst.BlueprintID, inst.Status, formatProgress(inst.Progress), finished, inst.CreatedAt}
}

func formatProgress(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64) + "%"
}

func newInstanceListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListInstancesOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			instances, err := clientFn().ListInstances(opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(instances))
			for i, inst := range instances {
				rows[i] = instanceRow(inst)
			}

			outputFn().Print(instanceHeaders, rows, instances)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.BlueprintID, "blueprint-id", "", "Filter by blueprint ID")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (READY, RUNNING, COMPLETED, FAILED)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Max number of instances")

	return cmd
}

func newInstanceCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var start bool

	cmd := &cobra.Command{
		Use:   "create BLUEPRINT_ID",
		Short: "Create an instance of a blueprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			inst, err := clientFn().CreateInstance(args[0], start)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Instance created: %s (%s)", inst.ID, inst.Status))
			out.Print(instanceHeaders, [][]string{instanceRow(*inst)}, inst)
			return nil
		},
	}

	cmd.Flags().BoolVar(&start, "start", false, "Start the instance right after creation")

	return cmd
}

func newInstanceShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show INSTANCE_ID",
		Short: "Show instance details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := clientFn().GetInstance(args[0])
			if err != nil {
				return err
			}

			pairs := [][2]string{
				{"ID", inst.ID},
				{"Blueprint", inst.BlueprintID},
				{"Status", inst.Status},
				{"Progress", formatProgress(inst.Progress)},
				{"Finished nodes", strings.Join(inst.FinishedNodeIDs, ", ")},
				{"Error", inst.Error},
				{"Created", inst.CreatedAt},
				{"Started", inst.StartedAt},
				{"Finished", inst.FinishedAt},
			}
			if inst.CancelRequested {
				pairs = append(pairs, [2]string{"Cancel", "requested"})
			}
			if s := inst.Nodes; s != nil {
				pairs = append(pairs, [2]string{"Nodes", fmt.Sprintf(
					"total=%d unready=%d ready=%d running=%d completed=%d failed=%d",
					s.Total, s.Unready, s.Ready, s.Running, s.Completed, s.Failed,
				)})
			}

			outputFn().Detail(pairs, inst)
			return nil
		},
	}
}

func newInstanceStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "start INSTANCE_ID",
		Short: "Start a READY instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			inst, err := clientFn().StartInstance(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Instance started: %s (%s)", inst.ID, inst.Status))
			out.Print(instanceHeaders, [][]string{instanceRow(*inst)}, inst)
			return nil
		},
	}
}

func newInstanceCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel INSTANCE_ID",
		Short: "Request cancellation of a running instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			inst, err := clientFn().CancelInstance(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Cancellation requested: %s", inst.ID))
			out.Print(instanceHeaders, [][]string{instanceRow(*inst)}, inst)
			return nil
		},
	}
}

func newInstanceNodesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "nodes INSTANCE_ID",
		Short: "List nodes of an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes, err := clientFn().ListNodes(args[0])
			if err != nil {
				return err
			}

			headers := []string{"NODE", "DEFINITION", "STATUS", "PROGRESS", "MESSAGE", "ERROR"}
			rows := make([][]string, len(nodes))
			for i, n := range nodes {
				rows[i] = []string{n.NodeID, n.DefinitionID, n.Status, formatProgress(n.Progress), n.Message, n.Error}
			}

			outputFn().Print(headers, rows, nodes)
			return nil
		},
	}
}
