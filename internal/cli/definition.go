package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewDefinitionCmd создаёт группу команд для определений узлов.
func NewDefinitionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "definition",
		Aliases: []string{"def"},
		Short:   "Manage work node definitions",
	}

	cmd.AddCommand(
		newDefinitionListCmd(clientFn, outputFn),
		newDefinitionCreateCmd(clientFn, outputFn),
		newDefinitionShowCmd(clientFn, outputFn),
	)

	return cmd
}

func definitionRow(d DefinitionResponse) []string {
	return []string{d.ID, strconv.Itoa(d.Version), d.Name, strconv.Itoa(len(d.Handles)), d.CreatedAt}
}

var definitionHeaders = []string{"ID", "VERSION", "NAME", "HANDLES", "CREATED"}

func newDefinitionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := clientFn().ListDefinitions()
			if err != nil {
				return err
			}

			rows := make([][]string, len(defs))
			for i, d := range defs {
				rows[i] = definitionRow(d)
			}

			outputFn().Print(definitionHeaders, rows, defs)
			return nil
		},
	}
}

func newDefinitionCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a definition from a YAML or JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			def, err := readDefinition(file)
			if err != nil {
				return err
			}

			created, err := clientFn().CreateDefinition(def)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Definition created: %s", created.ID))
			out.Print(definitionHeaders, [][]string{definitionRow(*created)}, created)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to definition file (.yaml, .yml or .json)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newDefinitionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show DEFINITION_ID",
		Short: "Show definition details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := clientFn().GetDefinition(args[0])
			if err != nil {
				return err
			}

			handles := make([]string, len(def.Handles))
			for i, h := range def.Handles {
				handles[i] = h.ID + "(" + h.Type + ")"
			}

			outputFn().Detail([][2]string{
				{"ID", def.ID},
				{"Version", strconv.Itoa(def.Version)},
				{"Name", def.Name},
				{"Handles", strings.Join(handles, ", ")},
				{"Command", strings.TrimSpace(def.Command + " " + strings.Join(def.Args, " "))},
				{"Created", def.CreatedAt},
			}, def)
			return nil
		},
	}
}
