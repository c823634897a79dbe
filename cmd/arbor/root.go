package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor is a declarative workflow execution engine",
	Long:  `Arbor runs workflow graphs defined in YAML documents: typed task nodes joined by sequential, conditional and parallel transitions, executed against a shared context.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Collaborator credentials (OPENAI_API_KEY, REDIS_PASSWORD) come from
	// the environment; .env is a convenience for local runs.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringP("file", "f", "workflow.yaml", "Workflow document to load")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("lenient", false, "Treat unreachable nodes as warnings instead of errors")
}
