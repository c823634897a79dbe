package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/internal/cli"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Statically check a workflow document",
	Long:  `Loads the workflow document and runs the pre-execution checks: reference integrity, reachability, cycle detection, and expression syntax.`,
	Run: func(cmd *cobra.Command, args []string) {
		file, _ := cmd.Flags().GetString("file")
		if !cmd.Flags().Changed("file") && len(args) > 0 {
			file = args[0]
		}
		logLevel, _ := cmd.Flags().GetString("log-level")
		lenient, _ := cmd.Flags().GetBool("lenient")

		app, err := cli.NewApp(cli.Options{LogLevel: logLevel, Lenient: lenient})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		if _, err := app.LoadFile(file); err != nil {
			fmt.Printf("Invalid: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s is valid\n", file)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
