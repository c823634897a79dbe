package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/internal/adapters/yamldoc"
	"github.com/aretw0/arbor/internal/presentation/graph"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the workflow graph visualization",
	Long:  `Loads the workflow document and outputs a Mermaid diagram (graph TD) of its nodes and transitions.`,
	Run: func(cmd *cobra.Command, args []string) {
		file, _ := cmd.Flags().GetString("file")
		if !cmd.Flags().Changed("file") && len(args) > 0 {
			file = args[0]
		}

		g, err := yamldoc.LoadFile(file)
		if err != nil {
			fmt.Printf("Error loading workflow: %v\n", err)
			os.Exit(1)
		}

		fmt.Print(graph.GenerateMermaid(g))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
